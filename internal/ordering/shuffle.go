// Package ordering owns the per-question answer order: the one-time shuffle
// at load and the displayed <-> canonical translation every view goes through.
package ordering

import "math/rand"

// Shuffle returns a uniformly random permutation of [0, n) using Fisher-Yates.
// n <= 1 yields the identity.
func Shuffle(rnd *rand.Rand, n int) []int {
	order := Identity(n)
	for i := len(order) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Identity returns [0, 1, ..., n-1].
func Identity(n int) []int {
	if n < 0 {
		n = 0
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// IsPermutation reports whether p is a bijection on [0, len(p)).
func IsPermutation(p []int) bool {
	seen := make([]bool, len(p))
	for _, v := range p {
		if v < 0 || v >= len(p) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Inverse returns q such that q[p[i]] == i. p must be a permutation.
func Inverse(p []int) []int {
	inv := make([]int, len(p))
	for i, v := range p {
		inv[v] = i
	}
	return inv
}
