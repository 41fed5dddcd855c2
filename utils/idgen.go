package utils

import (
	"fmt"
	"sync"
	"time"
)

// IDGenerator produces unique, time-sortable run identifiers.
type IDGenerator struct {
	mu       sync.Mutex
	lastTime int64
	sequence int64
}

// NewIDGenerator creates a new ID generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Generate returns a unique id of the form prefix_millis_seq.
func (g *IDGenerator) Generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now == g.lastTime {
		g.sequence++
	} else {
		g.lastTime = now
		g.sequence = 0
	}
	return fmt.Sprintf("%s_%d_%d", prefix, now, g.sequence)
}
