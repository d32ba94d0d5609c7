package engine

import (
	"math/rand/v2"
	"time"
)

// Permuter supplies the only randomness the engine uses: the order in which
// positions and leftover workers are visited and the tie-break among equally
// ranked candidates.
type Permuter interface {
	// Perm returns a permutation of [0, n).
	Perm(n int) []int
}

// RandPermuter seeded PCG-backed permuter. Not safe for concurrent use.
type RandPermuter struct {
	rng *rand.Rand
}

// NewRandPermuter returns a permuter seeded with seed. A zero seed picks one
// from the clock.
func NewRandPermuter(seed uint64) *RandPermuter {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandPermuter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandPermuter) Perm(n int) []int {
	return p.rng.Perm(n)
}

// IdentityPermuter always returns 0..n-1; tests use it to pin orderings.
type IdentityPermuter struct{}

func (IdentityPermuter) Perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// ReversePermuter always returns n-1..0.
type ReversePermuter struct{}

func (ReversePermuter) Perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = n - 1 - i
	}
	return out
}
