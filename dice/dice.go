// dice/dice.go
package dice

import (
	"math/rand"
	"sync"
	"time"
)

// Roller is the dice source injected into the game engine, so sessions
// are reproducible under test.
type Roller interface {
	Roll() int
}

// SixSided rolls a fair die in [1,6]. Safe for concurrent use.
type SixSided struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSixSided() *SixSided {
	return &SixSided{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeeded builds a roller with a fixed seed.
func NewSeeded(seed int64) *SixSided {
	return &SixSided{rng: rand.New(rand.NewSource(seed))}
}

func (d *SixSided) Roll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(6) + 1
}

// Valid reports whether v is a legal die value.
func Valid(v int) bool {
	return v >= 1 && v <= 6
}
