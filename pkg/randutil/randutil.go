// Package randutil provides the uniform random source every workload
// generator draws from.
//
// A Source is owned by exactly one worker. Nothing in this package is
// shared between goroutines, so there is no locking on the draw path.
package randutil

import (
	"golang.org/x/exp/rand"
)

// DefaultSeed is the master seed used when none is configured.
const DefaultSeed = 1729

// Source is a seeded PCG engine. It is not safe for concurrent use.
type Source struct {
	pcg  rand.PCGSource
	rng  *rand.Rand
	seed uint64
}

// New returns a Source seeded with seed.
func New(seed uint64) *Source {
	s := &Source{}
	s.rng = rand.New(&s.pcg)
	s.Seed(seed)
	return s
}

// Seed resets the engine. Only draws made after the call are affected.
func (s *Source) Seed(seed uint64) {
	s.seed = seed
	s.pcg.Seed(seed)
}

// CurrentSeed returns the seed last applied to the engine.
func (s *Source) CurrentSeed() uint64 {
	return s.seed
}

// Uint32 returns a uniformly distributed 32-bit value.
func (s *Source) Uint32() uint32 {
	return uint32(s.pcg.Uint64() >> 32)
}

// Uint64 returns a uniformly distributed 64-bit value.
func (s *Source) Uint64() uint64 {
	return s.pcg.Uint64()
}

// Uint64n returns a uniformly distributed value in [0, n). It panics if n == 0.
func (s *Source) Uint64n(n uint64) uint64 {
	return s.rng.Uint64n(n)
}

// Float64 returns a uniformly distributed value in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Intn returns a uniformly distributed value in [0, n).
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Read fills p with random bytes.
func (s *Source) Read(p []byte) {
	var v uint64
	for i := range p {
		if i&7 == 0 {
			v = s.pcg.Uint64()
		}
		p[i] = byte(v)
		v >>= 8
	}
}

// DeriveSeed maps a master seed and a stream number to an independent
// seed using the splitmix64 finalizer. Distinct streams of the same master
// seed never share a sequence, and the mapping is stable across runs.
func DeriveSeed(master, stream uint64) uint64 {
	z := master + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
