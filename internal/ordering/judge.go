package ordering

import (
	"fmt"
	"sort"

	"quizsync-service/internal/domain"
)

// Judge decides whether a displayed selection answers q correctly.
//
// The selection is a set: repeated indices count once. Single choice: exactly
// one answer selected and it is canonical 0. Multi choice: the canonical set
// must equal q.CorrectCanonical() exactly; there is no partial credit.
func Judge(q domain.Question, displayed []int) (bool, error) {
	m, err := NewMapper(q.AnswerOrder, len(q.Answers))
	if err != nil {
		return false, err
	}
	canonical, err := m.ToCanonical(displayed)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidSelection, err)
	}

	switch q.Kind {
	case domain.KindMultiChoice:
		want := SortedSet(q.CorrectCanonical())
		if len(want) != len(canonical) {
			return false, nil
		}
		for i := range want {
			if want[i] != canonical[i] {
				return false, nil
			}
		}
		return true, nil
	default:
		return len(canonical) == 1 && canonical[0] == 0, nil
	}
}

// ValidateCorrect checks that every canonical correct index of q names one of
// its answers.
func ValidateCorrect(q domain.Question) error {
	for _, c := range q.Correct {
		if c < 0 || c >= len(q.Answers) {
			return fmt.Errorf("correct index %d out of range [0,%d)", c, len(q.Answers))
		}
	}
	return nil
}

// SortedSet returns the distinct values of in, ascending.
func SortedSet(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

// Points is the award for a judged answer.
func Points(correct bool) int {
	if correct {
		return domain.PointsPerCorrectAnswer
	}
	return 0
}
