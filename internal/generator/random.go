package generator

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// RandomSource is the randomness used for code bodies and value draws.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
	Float64() float64
}

// lockedSource serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewRandomSource returns a goroutine-safe ChaCha8 source seeded from crypto/rand.
func NewRandomSource() RandomSource {
	var seed [32]byte
	_, _ = crand.Read(seed[:]) // crypto/rand.Read never returns an error since Go 1.24
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededSource returns a deterministic, goroutine-safe source. Intended for tests.
func NewSeededSource(seed uint64) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
