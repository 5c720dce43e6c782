package index

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/cpu"
)

func init() {
	Register("hashmap", NewHashMap)
}

type shard struct {
	mu sync.RWMutex
	m  map[string][]byte
	_  cpu.CacheLinePad
}

// HashMap is a baseline unordered index: a fixed set of Go maps, each
// behind its own RWMutex. It does not support scans.
type HashMap struct {
	shards []shard
	mask   uint64
}

// NewHashMap builds a HashMap. Params: shards (rounded up to a power of
// two, default 64).
func NewHashMap(opts Options) (Index, error) {
	n, err := opts.IntParam("shards", 64)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("hashmap: shards must be positive, got %d", n)
	}
	n = 1 << bits.Len(uint(n-1))

	h := &HashMap{shards: make([]shard, n), mask: uint64(n - 1)}
	per := int(opts.Records / uint64(n))
	for i := range h.shards {
		h.shards[i].m = make(map[string][]byte, per)
	}
	return h, nil
}

func (h *HashMap) shard(key []byte) *shard {
	return &h.shards[xxhash.Sum64(key)&h.mask]
}

// Insert implements Index.
func (h *HashMap) Insert(key, value []byte) bool {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[string(key)]; ok {
		return false
	}
	s.m[string(key)] = append([]byte(nil), value...)
	return true
}

// Read implements Index.
func (h *HashMap) Read(key []byte, out []byte) ([]byte, bool) {
	s := h.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[string(key)]
	if !ok {
		return out[:0], false
	}
	return append(out[:0], v...), true
}

// Update implements Index.
func (h *HashMap) Update(key, value []byte) bool {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[string(key)]
	if !ok {
		return false
	}
	if len(v) == len(value) {
		copy(v, value)
	} else {
		s.m[string(key)] = append([]byte(nil), value...)
	}
	return true
}

// Remove implements Index.
func (h *HashMap) Remove(key []byte) bool {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[string(key)]; !ok {
		return false
	}
	delete(s.m, string(key))
	return true
}

// Scan implements Index. Maps are unordered, so nothing is visited.
func (h *HashMap) Scan(_ []byte, _ int, _ []byte) int {
	return 0
}

// Len returns the number of records.
func (h *HashMap) Len() int {
	n := 0
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Close implements Index.
func (h *HashMap) Close() error {
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.Lock()
		s.m = nil
		s.mu.Unlock()
	}
	return nil
}
