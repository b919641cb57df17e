package bitstream

import (
	"context"
	"math/rand"
	"sync"
)

// Generator produces deterministic pseudorandom bitstreams from a seed. It
// exists for engine self-qualification and tests: the same seed always yields
// the same sequence of bitstreams regardless of how many workers consume it.
type Generator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	bits int64
}

// NewGenerator returns a generator serving bitstreams of n bits seeded with
// seed.
func NewGenerator(seed, n int64) *Generator {
	return &Generator{
		rng:  rand.New(rand.NewSource(seed)),
		bits: n,
	}
}

// Next returns the next pseudorandom bitstream. The generator never
// exhausts.
func (g *Generator) Next(ctx context.Context) (Bits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	raw := make([]byte, BytesForBits(g.bits))
	g.rng.Read(raw)
	return FromBytes(raw, g.bits), nil
}
