package ordering

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidOrder is returned for an answer order that is not a permutation
// of the question's answers.
var ErrInvalidOrder = errors.New("answer order is not a permutation")

// Mapper translates between displayed and canonical answer indices.
type Mapper struct {
	order   []int // displayed -> canonical
	inverse []int // canonical -> displayed
}

// NewMapper builds a mapper for a question with n answers. A nil order means
// the question was never shuffled and displays in canonical order.
func NewMapper(order []int, n int) (Mapper, error) {
	if order == nil {
		order = Identity(n)
	}
	if len(order) != n || !IsPermutation(order) {
		return Mapper{}, fmt.Errorf("%w: %v for %d answers", ErrInvalidOrder, order, n)
	}
	return Mapper{order: order, inverse: Inverse(order)}, nil
}

// Len is the number of answers.
func (m Mapper) Len() int { return len(m.order) }

// Canonical maps a displayed index to its authored index.
func (m Mapper) Canonical(displayed int) (int, bool) {
	if displayed < 0 || displayed >= len(m.order) {
		return 0, false
	}
	return m.order[displayed], true
}

// Displayed maps an authored index to where it is shown.
func (m Mapper) Displayed(canonical int) (int, bool) {
	if canonical < 0 || canonical >= len(m.inverse) {
		return 0, false
	}
	return m.inverse[canonical], true
}

// CorrectDisplayed is the displayed slot of canonical answer 0.
func (m Mapper) CorrectDisplayed() int {
	if len(m.inverse) == 0 {
		return -1
	}
	return m.inverse[0]
}

// DisplayAnswers returns answers in displayed order.
func (m Mapper) DisplayAnswers(answers []string) []string {
	out := make([]string, 0, len(m.order))
	for _, c := range m.order {
		if c < len(answers) {
			out = append(out, answers[c])
		}
	}
	return out
}

// ToCanonical translates a displayed selection into a sorted set of canonical
// indices. Duplicates collapse; an out of range index is an error.
func (m Mapper) ToCanonical(selection []int) ([]int, error) {
	seen := make(map[int]struct{}, len(selection))
	out := make([]int, 0, len(selection))
	for _, d := range selection {
		c, ok := m.Canonical(d)
		if !ok {
			return nil, fmt.Errorf("displayed index %d out of range [0,%d)", d, m.Len())
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Ints(out)
	return out, nil
}
