package keygen

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunmann/idxbench/pkg/distribution"
	"github.com/eunmann/idxbench/pkg/randutil"
)

func newGen(t *testing.T, cfg Config) *Generator {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func TestEncodeTruncatesAndPads(t *testing.T) {
	const id = 0x1_0000_0002

	g4 := newGen(t, Config{Keyspace: 100, KeySize: 4})
	buf := make([]byte, MaxKeySize)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, g4.Encode(buf, 0, id))

	g12 := newGen(t, Config{Keyspace: 100, KeySize: 12})
	want := []byte{0, 0, 0, 0, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
	assert.Equal(t, want, g12.Encode(buf, 0, id))

	g8 := newGen(t, Config{Keyspace: 100, KeySize: 8})
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2}, g8.Encode(buf, 0, id))
}

func TestEncodeLayout(t *testing.T) {
	g := newGen(t, Config{Keyspace: 1000, KeySize: 10, Prefix: "ab", TIDPrefix: true})
	assert.Equal(t, 10, g.Size())
	assert.Equal(t, 7, g.IDSize())

	key := g.Encode(make([]byte, MaxKeySize), 9, 0x0102)
	assert.Equal(t, []byte("ab"), key[:2])
	assert.Equal(t, byte(9), key[2])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0x01, 0x02}, key[3:])
	assert.Equal(t, uint64(0x0102), g.DecodeID(key))
}

func TestSizeIncludesPrefixAndTID(t *testing.T) {
	g := newGen(t, Config{Keyspace: 10, KeySize: 16, Prefix: "user"})
	assert.Equal(t, 16, g.Size())
	assert.Equal(t, 12, g.IDSize())
	assert.Equal(t, uint64(10), g.Keyspace())
}

func TestConstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no id byte", Config{Keyspace: 10, KeySize: 3, Prefix: "abc"}, ErrKeyTooSmall},
		{"tid eats last byte", Config{Keyspace: 10, KeySize: 1, TIDPrefix: true}, ErrKeyTooSmall},
		{"keyspace too wide", Config{Keyspace: 300, KeySize: 1}, ErrKeyTooSmall},
		{"negative overflow", Config{Keyspace: 200, KeySize: 1, NegativeAccess: true}, ErrNegativeOverflow},
		{"zero keyspace", Config{Keyspace: 0, KeySize: 8}, ErrKeyspace},
		{"too large", Config{Keyspace: 10, KeySize: MaxKeySize + 1}, ErrKeyTooLarge},
		{"bad skew", Config{Keyspace: 10, KeySize: 8, Distribution: distribution.Zipfian, Skew: 1.5}, distribution.ErrInvalidSkew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := New(Config{Keyspace: 127, KeySize: 1, NegativeAccess: true})
	assert.NoError(t, err)
}

func TestLoadSequenceDeterministic(t *testing.T) {
	cfg := Config{Keyspace: 5000, KeySize: 8, Prefix: "k", Distribution: distribution.Zipfian, Skew: 0.99}
	run := func() [][]byte {
		g := newGen(t, cfg)
		ctx := g.NewContext(randutil.DefaultSeed, 1, cfg.Keyspace)
		keys := make([][]byte, 0, cfg.Keyspace)
		for i := uint64(0); i < cfg.Keyspace; i++ {
			keys = append(keys, bytes.Clone(ctx.Next(false, true)))
		}
		return keys
	}
	assert.Equal(t, run(), run())
}

func TestRandomSequenceDeterministic(t *testing.T) {
	for _, kind := range []distribution.Kind{distribution.Uniform, distribution.SelfSimilar, distribution.Zipfian} {
		cfg := Config{Keyspace: 10000, KeySize: 8, Distribution: kind, Skew: 0.2}
		a := newGen(t, cfg).NewContext(42, 1, 1)
		b := newGen(t, cfg).NewContext(42, 1, 1)
		for i := 0; i < 1000; i++ {
			require.Equal(t, a.Next(false, false), b.Next(false, false), "%v draw %d", kind, i)
		}
	}
}

func TestLoadCoversKeyspaceOnce(t *testing.T) {
	const n = 20000
	g := newGen(t, Config{Keyspace: n, KeySize: 3})
	ctx := g.NewContext(1, 1, n)

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key := ctx.Next(false, true)
		_, dup := seen[string(key)]
		require.False(t, dup, "duplicate key %x", key)
		seen[string(key)] = struct{}{}
	}
	require.Len(t, seen, n)

	for id := uint64(1); id <= n; id++ {
		_, ok := seen[string(g.Encode(make([]byte, MaxKeySize), 0, id))]
		require.True(t, ok, "id %d missing", id)
	}
}

func TestDisjointCursors(t *testing.T) {
	g := newGen(t, Config{Keyspace: 100, KeySize: 8})
	a := g.NewContext(1, 101, 150)
	b := g.NewContext(2, 151, 200)

	seen := make(map[uint64]bool)
	for i := 0; i < 50; i++ {
		for _, c := range []*Context{a, b} {
			id := c.NextID(false, true)
			require.False(t, seen[id])
			require.Greater(t, id, uint64(100))
			seen[id] = true
		}
	}
	assert.Len(t, seen, 100)
}

func TestCursorWraps(t *testing.T) {
	g := newGen(t, Config{Keyspace: 10, KeySize: 8})
	c := g.NewContext(1, 3, 5)
	got := []uint64{}
	for i := 0; i < 5; i++ {
		got = append(got, c.NextID(false, true))
	}
	assert.Equal(t, []uint64{3, 4, 5, 3, 4}, got)
}

func TestNegativeAccessNeverHitsLoadedIDs(t *testing.T) {
	const n = 1000
	for _, kind := range []distribution.Kind{distribution.Uniform, distribution.SelfSimilar, distribution.Zipfian} {
		g := newGen(t, Config{Keyspace: n, KeySize: 8, Distribution: kind, Skew: 0.3, NegativeAccess: true})
		c := g.NewContext(uint64(kind)+1, 1, n)
		for i := 0; i < 10000; i++ {
			id := c.NextID(true, false)
			require.Greater(t, id, uint64(n), "%v", kind)
			require.LessOrEqual(t, id, uint64(2*n), "%v", kind)
		}
	}
}

func TestNegativeBaseSkipsInsertedIDs(t *testing.T) {
	const n, base = 1000, 25_000
	g := newGen(t, Config{Keyspace: n, KeySize: 8, NegativeAccess: true, NegativeBase: base})
	assert.Equal(t, uint64(base), g.NegativeBase())
	c := g.NewContext(3, 1, n)
	for i := 0; i < 10000; i++ {
		id := c.NextID(true, false)
		require.Greater(t, id, uint64(base))
		require.LessOrEqual(t, id, uint64(base+n))
	}

	// A base below N is raised to N.
	g = newGen(t, Config{Keyspace: n, KeySize: 8, NegativeAccess: true, NegativeBase: 10})
	assert.Equal(t, uint64(n), g.NegativeBase())

	_, err := New(Config{Keyspace: 1000, KeySize: 2, NegativeAccess: true, NegativeBase: 65000})
	assert.ErrorIs(t, err, ErrNegativeOverflow)
}

func TestNegativeAccessNarrowKeys(t *testing.T) {
	// 2-byte ids: N = 30000 keeps 2N below 65535, so truncation cannot fold
	// a negative id onto a loaded one.
	const n = 30000
	g := newGen(t, Config{Keyspace: n, KeySize: 2, NegativeAccess: true})
	c := g.NewContext(9, 1, n)
	for i := 0; i < 10000; i++ {
		id := g.DecodeID(c.Next(true, false))
		require.Greater(t, id, uint64(n))
	}
}

func TestNextIDBoundedRange(t *testing.T) {
	const n = 4096
	for _, kind := range []distribution.Kind{distribution.Uniform, distribution.SelfSimilar, distribution.Zipfian} {
		ids, err := NewIDGenerator(kind, n, 0.5)
		require.NoError(t, err)
		r := randutil.New(17)
		for _, upper := range []uint64{1, n / 2, n} {
			for i := 0; i < 2000; i++ {
				v := ids.NextIDBounded(r, upper)
				require.GreaterOrEqual(t, v, uint64(1))
				require.LessOrEqual(t, v, upper, "%v upper=%d", kind, upper)
			}
		}
		for i := 0; i < 2000; i++ {
			v := ids.NextID(r)
			require.GreaterOrEqual(t, v, uint64(1))
			require.LessOrEqual(t, v, uint64(n))
		}
	}
}

func TestNextTIDPartitions(t *testing.T) {
	g := newGen(t, Config{Keyspace: 100, KeySize: 9, TIDPrefix: true})
	a := g.NewContext(1, 101, g.MaxID())
	b := g.NewContext(2, 101, g.MaxID())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ka := string(a.NextTID(1, false, true))
		kb := string(b.NextTID(2, false, true))
		require.False(t, seen[ka])
		require.False(t, seen[kb])
		seen[ka], seen[kb] = true, true
	}
}

func TestBufferReused(t *testing.T) {
	g := newGen(t, Config{Keyspace: 100, KeySize: 8})
	c := g.NewContext(1, 1, 100)
	k1 := c.Next(false, true)
	snapshot := bytes.Clone(k1)
	k2 := c.Next(false, true)
	assert.Same(t, &k1[0], &k2[0])
	assert.NotEqual(t, snapshot, k2)
}

func BenchmarkNextZipfian(b *testing.B) {
	g, err := New(Config{Keyspace: 1_000_000, KeySize: 16, Distribution: distribution.Zipfian, Skew: 0.99})
	if err != nil {
		b.Fatal(err)
	}
	c := g.NewContext(1, 1, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Next(false, false)
	}
}
