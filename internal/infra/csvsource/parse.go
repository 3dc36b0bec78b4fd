// Package csvsource turns spreadsheet exports into question sets.
//
// Expected header columns (case-insensitive): Q, A1..A6, CAT, SOUND, VIDEO,
// BACKGROUND, P1 and optionally CORRECT. Only MULTICHOICE (single choice) and
// MULTIANSWER (multi choice) rows are kept. A1 is the correct answer of a
// single choice row; CORRECT lists the correct columns of a multi choice row,
// e.g. "A1;A3", and defaults to A1.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"quizsync-service/internal/domain"
)

const (
	categorySingle = "MULTICHOICE"
	categoryMulti  = "MULTIANSWER"
	maxAnswers     = 6
)

var mediaName = regexp.MustCompile(`(?i)^(.+?\.(mp3|wav|mp4|jpg|jpeg|png|gif))`)

// Parse reads all rows and returns the normalised questions in file order.
func Parse(r io.Reader) ([]domain.Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrNoQuestions
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := columns["Q"]; !ok {
		return nil, fmt.Errorf("missing Q column")
	}

	var questions []domain.Question
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cell := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		var kind domain.QuestionKind
		switch strings.ToUpper(cell("CAT")) {
		case categorySingle:
			kind = domain.KindSingleChoice
		case categoryMulti:
			kind = domain.KindMultiChoice
		default:
			continue
		}

		// columns with a value, remembering which A-column each answer came from
		var answers []string
		slots := make(map[int]int, maxAnswers)
		for n := 1; n <= maxAnswers; n++ {
			if a := cell(fmt.Sprintf("A%d", n)); a != "" {
				slots[n] = len(answers)
				answers = append(answers, a)
			}
		}
		text := cell("Q")
		if text == "" || len(answers) == 0 {
			continue
		}

		q := domain.Question{
			Text:    text,
			Answers: answers,
			Kind:    kind,
			Media: domain.Media{
				Audio:      CleanFilename(cell("SOUND")),
				Video:      CleanFilename(cell("VIDEO")),
				Background: CleanFilename(cell("BACKGROUND")),
				Image:      CleanFilename(cell("P1")),
			},
		}
		if kind == domain.KindMultiChoice {
			q.Correct = correctColumns(cell("CORRECT"), slots)
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}

// CleanFilename strips anything after a known media extension, such as a
// query string copied along with the name. Absolute URLs are kept as is.
func CleanFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(strings.ToLower(name), "http") {
		return name
	}
	if m := mediaName.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return strings.SplitN(name, "?", 2)[0]
}

// MediaFilenames lists the distinct media files a question set refers to.
func MediaFilenames(questions []domain.Question) []string {
	seen := make(map[string]bool)
	var names []string
	for _, q := range questions {
		for _, ref := range []string{q.Media.Audio, q.Media.Video, q.Media.Image, q.Media.Background} {
			if ref == "" || strings.HasPrefix(strings.ToLower(ref), "http") || seen[ref] {
				continue
			}
			seen[ref] = true
			names = append(names, ref)
		}
	}
	return names
}

func correctColumns(raw string, slots map[int]int) []int {
	var correct []int
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' || r == ' ' }) {
		part = strings.TrimPrefix(strings.ToUpper(part), "A")
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			continue
		}
		if idx, ok := slots[n]; ok && !slices.Contains(correct, idx) {
			correct = append(correct, idx)
		}
	}
	if len(correct) == 0 {
		return []int{0}
	}
	return correct
}
