package math

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

var (
	rngOnce sync.Once
	rng     *rand.Rand
)

func random() *rand.Rand {
	rngOnce.Do(func() {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	})
	return rng
}

// RandomInRange returns a float in [min, max).
func RandomInRange(min, max float32) float32 {
	return min + random().Float32()*(max-min)
}

// RandomIntInRange returns an int in [min, max].
func RandomIntInRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + random().Intn(max-min+1)
}
