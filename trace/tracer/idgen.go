// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"math/rand"
	"sync"
	"time"
)

// idGenerator produces span and trace ids (spec.md §4.5). 64-bit ids are
// uniformly random and non-zero. When 128-bit trace ids are enabled, the
// high 64 bits are seeded once per generator as
// (epochSeconds << 32) | (lower 32 bits of a random draw), and the low 64
// bits are uniformly random per trace, matching the teacher's own synthetic
// id helper (DataDog-dd-trace-go: ddtrace/tracer/writer_test.go randUint64).
type idGenerator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	high uint64
}

func newIDGenerator(seed int64) *idGenerator {
	g := &idGenerator{rng: rand.New(rand.NewSource(seed))}
	g.high = (uint64(time.Now().Unix()) << 32) | uint64(uint32(g.rng.Int63()))
	return g
}

// randUint64 returns a uniformly random, non-zero 64-bit id.
func (g *idGenerator) randUint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if v := g.rng.Uint64(); v != 0 {
			return v
		}
	}
}

// traceIDHigh128 returns the fixed high-64 half used when 128-bit trace ids
// are enabled.
func (g *idGenerator) traceIDHigh128() uint64 {
	return g.high
}
