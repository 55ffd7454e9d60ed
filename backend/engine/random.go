package engine

import (
	"math/rand"
	"time"
)

// IntSource is the randomness capability the generator draws from.
// Production uses a time-seeded source, tests inject a fixed seed, and
// both run the exact same generation code path.
type IntSource interface {
	IntN(bound int) int
}

type randSource struct {
	r *rand.Rand
}

func (s randSource) IntN(bound int) int {
	return s.r.Intn(bound)
}

// NewSource returns a time-seeded source. Variant generation needs
// statistical spread, not cryptographic strength.
func NewSource() IntSource {
	return randSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededSource returns a reproducible source for a fixed seed.
func NewSeededSource(seed int64) IntSource {
	return randSource{r: rand.New(rand.NewSource(seed))}
}

// permutation draws a uniform random permutation of [0, n) using
// Fisher–Yates.
func permutation(src IntSource, n int) []int {
	p := identity(n)
	for i := n - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}
