package keygen

import (
	"github.com/eunmann/idxbench/pkg/randutil"
)

// Context is one worker's view of a Generator: its RNG, its sequential
// cursor and its output buffer. A Context must not be shared between
// goroutines.
type Context struct {
	g     *Generator
	rng   *randutil.Source
	first uint64
	last  uint64
	next  uint64
	buf   [MaxKeySize]byte
}

// NewContext returns a Context whose sequential cursor walks [first, last].
// Workers that generate sequentially must be given disjoint ranges.
func (g *Generator) NewContext(seed, first, last uint64) *Context {
	first = max(first, 1)
	last = max(last, first)
	return &Context{
		g:     g,
		rng:   randutil.New(seed),
		first: first,
		last:  last,
		next:  first,
	}
}

// Reseed reseeds this context's RNG only.
func (c *Context) Reseed(seed uint64) {
	c.rng.Seed(seed)
}

// Rand exposes the context's RNG for callers that need extra draws on the
// same stream (e.g. the negative-access coin).
func (c *Context) Rand() *randutil.Source {
	return c.rng
}

// Cursor returns the next id a sequential draw will produce.
func (c *Context) Cursor() uint64 {
	return c.next
}

// Generator returns the generator this context draws from.
func (c *Context) Generator() *Generator {
	return c.g
}

// Next returns the next key in operation-count mode. The returned slice
// aliases the context's buffer and is valid until the next call.
//
// If inSequence is set, the id is the next value of the cursor. Otherwise it
// is drawn from the configured distribution, or from [B+1, B+N] when negative
// is set, where B is the generator's NegativeBase, so that the key is
// guaranteed absent from the index.
func (c *Context) Next(negative, inSequence bool) []byte {
	return c.g.Encode(c.buf[:], 0, c.nextID(negative, inSequence))
}

// NextTID is Next for time mode: tid is written right after the prefix so
// that workers inserting sequentially never collide.
func (c *Context) NextTID(tid uint8, negative, inSequence bool) []byte {
	return c.g.Encode(c.buf[:], tid, c.nextID(negative, inSequence))
}

// NextID draws an id without encoding it.
func (c *Context) NextID(negative, inSequence bool) uint64 {
	return c.nextID(negative, inSequence)
}

func (c *Context) nextID(negative, inSequence bool) uint64 {
	if inSequence {
		id := c.next
		// The cursor wraps rather than leaving its range; the caller sizes
		// ranges so that this only happens on a time-mode run that outlives
		// the id space.
		if c.next == c.last {
			c.next = c.first
		} else {
			c.next++
		}
		return id
	}
	n := c.g.cfg.Keyspace
	if negative {
		return c.g.negBase + c.g.ids.NextIDBounded(c.rng, n)
	}
	return c.g.ids.NextID(c.rng)
}
