package tasks

import "math/rand/v2"

// Shuffle permutes s in place with the Fisher–Yates algorithm.
//
// intn(n) must return a uniform integer in [0, n); nil uses [rand.IntN].
func Shuffle[T any](s []T, intn func(n int) int) {
	if intn == nil {
		intn = rand.IntN
	}
	for i := len(s) - 1; i > 0; i-- {
		j := intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
