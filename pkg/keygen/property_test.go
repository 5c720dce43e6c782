package keygen

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/eunmann/idxbench/pkg/distribution"
	"github.com/eunmann/idxbench/pkg/randutil"
)

func TestKeyEncodingProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("decode inverts encode modulo id width", prop.ForAll(
		func(id uint64, size int) bool {
			g, err := New(Config{Keyspace: 1, KeySize: size})
			if err != nil {
				return false
			}
			want := id
			if size < 8 {
				want = id & (1<<(8*uint(size)) - 1)
			}
			return g.DecodeID(g.Encode(make([]byte, MaxKeySize), 0, id)) == want
		},
		gen.UInt64(),
		gen.IntRange(1, 24),
	))

	properties.Property("encoding preserves id order", prop.ForAll(
		func(a, b uint32) bool {
			g, err := New(Config{Keyspace: 1, KeySize: 8, Prefix: "p"})
			if err != nil {
				return false
			}
			ka := string(g.Encode(make([]byte, MaxKeySize), 0, uint64(a)))
			kb := string(g.Encode(make([]byte, MaxKeySize), 0, uint64(b)))
			return (a < b) == (ka < kb)
		},
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.Property("bounded draws stay in range", prop.ForAll(
		func(upper uint64, seed uint64, kind int) bool {
			ids, err := NewIDGenerator(distribution.Kind(kind), 1<<16, 0.3)
			if err != nil {
				return false
			}
			r := randutil.New(seed)
			for i := 0; i < 64; i++ {
				v := ids.NextIDBounded(r, upper)
				if v < 1 || v > upper {
					return false
				}
			}
			return true
		},
		gen.UInt64Range(1, 1<<16),
		gen.UInt64(),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
