package pipeline

import (
	"math/rand"
	"sync"
	"time"
)

// Random is the randomness capability handed to stochastic evaluators.
// Implementations must be safe for concurrent use.
type Random interface {
	Intn(n int) int
	Float64() float64
}

type lockedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededRandom returns a deterministic source for the given seed.
func NewSeededRandom(seed int64) Random {
	return &lockedRandom{rnd: rand.New(rand.NewSource(seed))}
}

// NewSystemRandom returns a time-seeded source for production use.
func NewSystemRandom() Random {
	return NewSeededRandom(time.Now().UnixNano())
}

func (r *lockedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

func (r *lockedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

// IntBetween draws an integer in the closed range [lo, hi].
func IntBetween(r Random, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}
