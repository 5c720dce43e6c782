package index

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

func init() {
	Register("pebble", NewPebble)
}

const pebbleStripes = 1024

// Pebble wraps a pebble LSM on an in-memory filesystem. Pebble has no
// conditional writes, so Insert, Update and Remove serialize per key
// through a fixed set of striped locks.
type Pebble struct {
	db      *pebble.DB
	stripes [pebbleStripes]sync.Mutex
}

// NewPebble opens pebble on vfs.NewMem. Params: cache-mb (default 64).
func NewPebble(opts Options) (Index, error) {
	cacheMB, err := opts.IntParam("cache-mb", 64)
	if err != nil {
		return nil, err
	}

	cache := pebble.NewCache(int64(cacheMB) << 20)
	defer cache.Unref()

	db, err := pebble.Open("", &pebble.Options{
		FS:    vfs.NewMem(),
		Cache: cache,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) lock(key []byte) *sync.Mutex {
	return &p.stripes[xxhash.Sum64(key)%pebbleStripes]
}

func (p *Pebble) exists(key []byte) bool {
	_, closer, err := p.db.Get(key)
	if err != nil {
		return false
	}
	_ = closer.Close()
	return true
}

// Insert implements Index.
func (p *Pebble) Insert(key, value []byte) bool {
	l := p.lock(key)
	l.Lock()
	defer l.Unlock()
	if p.exists(key) {
		return false
	}
	return p.db.Set(key, value, pebble.NoSync) == nil
}

// Read implements Index.
func (p *Pebble) Read(key []byte, out []byte) ([]byte, bool) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		return out[:0], false
	}
	out = append(out[:0], v...)
	_ = closer.Close()
	return out, true
}

// Update implements Index.
func (p *Pebble) Update(key, value []byte) bool {
	l := p.lock(key)
	l.Lock()
	defer l.Unlock()
	if !p.exists(key) {
		return false
	}
	return p.db.Set(key, value, pebble.NoSync) == nil
}

// Remove implements Index.
func (p *Pebble) Remove(key []byte) bool {
	l := p.lock(key)
	l.Lock()
	defer l.Unlock()
	if !p.exists(key) {
		return false
	}
	return p.db.Delete(key, pebble.NoSync) == nil
}

// Scan implements Index.
func (p *Pebble) Scan(start []byte, limit int, out []byte) int {
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: start})
	if err != nil {
		return 0
	}
	defer it.Close()

	n, off := 0, 0
	for valid := it.First(); valid && n < limit; valid = it.Next() {
		v := it.Value()
		if off+len(v) <= len(out) {
			off += copy(out[off:], v)
		}
		n++
	}
	return n
}

// Close implements Index.
func (p *Pebble) Close() error {
	return p.db.Close()
}
