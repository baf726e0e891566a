package pacing

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandSource yields uniform floats in [0, 1). Implementations must be safe
// for concurrent use.
type RandSource interface {
	Float64() float64
}

// RandFunc adapts a function to a RandSource.
type RandFunc func() float64

// Float64 implements RandSource.
func (f RandFunc) Float64() float64 { return f() }

// Fixed always returns the same value. Useful in tests.
type Fixed float64

// Float64 implements RandSource.
func (f Fixed) Float64() float64 { return float64(f) }

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandSource returns a mutex-guarded PCG source seeded from seed.
func NewRandSource(seed uint64) RandSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// DefaultRandSource returns a PCG source seeded from the clock.
func DefaultRandSource() RandSource {
	return NewRandSource(uint64(time.Now().UnixNano()))
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
