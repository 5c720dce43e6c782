// Package valuegen produces value payloads for inserts and updates.
package valuegen

import (
	"github.com/eunmann/idxbench/pkg/randutil"
)

// Generator fills a reusable buffer with random bytes. It is owned by one
// worker and is not safe for concurrent use.
type Generator struct {
	rng *randutil.Source
	buf []byte
}

// New returns a generator of size-byte values.
func New(size int, seed uint64) *Generator {
	return &Generator{
		rng: randutil.New(seed),
		buf: make([]byte, size),
	}
}

// Next refills the buffer and returns it. The slice is valid until the
// next call.
func (g *Generator) Next() []byte {
	g.rng.Read(g.buf)
	return g.buf
}

// Size returns the value length.
func (g *Generator) Size() int {
	return len(g.buf)
}
