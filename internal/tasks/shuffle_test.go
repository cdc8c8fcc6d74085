package tasks

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestShuffle(t *testing.T) {
	t.Run("Permutation", func(t *testing.T) {
		in := make([]int, 200)
		for i := range in {
			in[i] = i
		}
		out := slices.Clone(in)

		Shuffle(out, nil)

		sorted := slices.Clone(out)
		slices.Sort(sorted)
		if !slices.Equal(sorted, in) {
			t.Error("shuffle must return the same multiset of elements")
		}
		if slices.Equal(out, in) {
			t.Error("200 elements came back in their original order")
		}
	})

	t.Run("Small Inputs", func(t *testing.T) {
		var empty []string
		Shuffle(empty, nil)

		one := []string{"a"}
		Shuffle(one, nil)
		if one[0] != "a" {
			t.Error("single element must be unchanged")
		}
	})

	t.Run("Uniform Positions", func(t *testing.T) {
		const (
			n      = 5
			trials = 50000
		)
		rng := rand.New(rand.NewPCG(1, 2))
		var counts [n][n]int

		for range trials {
			s := []int{0, 1, 2, 3, 4}
			Shuffle(s, rng.IntN)
			for pos, v := range s {
				counts[v][pos]++
			}
		}

		expected := trials / n
		tolerance := expected / 20
		for v := range n {
			for pos := range n {
				if got := counts[v][pos]; got < expected-tolerance || got > expected+tolerance {
					t.Errorf("element %d at position %d: %d times, expected about %d", v, pos, got, expected)
				}
			}
		}
	})

	t.Run("Draws From Shrinking Range", func(t *testing.T) {
		var bounds []int
		Shuffle([]int{1, 2, 3, 4}, func(n int) int {
			bounds = append(bounds, n)
			return 0
		})
		if !slices.Equal(bounds, []int{4, 3, 2}) {
			t.Errorf("expected draws over [0,i] for i = 3..1, got bounds %v", bounds)
		}
	})
}
