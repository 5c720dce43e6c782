// Package keygen generates fixed-width benchmark keys.
//
// A key is laid out as
//
//	[prefix][tid byte, time mode only][id bytes]
//
// where the id is an 8-byte unsigned integer written big-endian. If the id
// portion is narrower than 8 bytes the most significant bytes are dropped;
// if it is wider, the id is left-padded with zero bytes.
//
// Generator holds the immutable configuration and id distribution and is
// shared by all workers. Each worker draws through its own Context, which
// owns the RNG, the sequential cursor and the output buffer.
package keygen

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/eunmann/idxbench/pkg/distribution"
)

// MaxKeySize bounds the total key length, prefix and tid byte included.
const MaxKeySize = 128

// MaxKeyspace bounds the keyspace so that negative ids in [N+1, 2N] never
// overflow uint64 with the default NegativeBase.
const MaxKeyspace = math.MaxUint64 / 2

var (
	// ErrKeyTooSmall indicates that no byte is left for the id once the
	// prefix and the tid byte are accounted for.
	ErrKeyTooSmall = errors.New("key size too small")
	// ErrKeyTooLarge indicates a key size above MaxKeySize.
	ErrKeyTooLarge = errors.New("key size too large")
	// ErrKeyspace indicates a zero or oversized keyspace.
	ErrKeyspace = errors.New("invalid keyspace")
	// ErrNegativeOverflow indicates that negative ids would be truncated onto
	// ids of the loaded population.
	ErrNegativeOverflow = errors.New("negative access ids do not fit in key")
)

// Config describes the keys a Generator produces.
type Config struct {
	// Keyspace is N, the number of loaded records. Ids range over [1, N].
	Keyspace uint64
	// KeySize is the total key length in bytes, prefix and tid byte included.
	KeySize int
	// Prefix is copied verbatim at the start of every key.
	Prefix string
	// TIDPrefix reserves one byte after the prefix for the worker id.
	TIDPrefix bool
	// Distribution picks ids for non-sequential draws.
	Distribution distribution.Kind
	// Skew parameterizes self-similar and Zipfian draws.
	Skew float64
	// NegativeAccess requires ids up to NegativeBase+N to be representable.
	NegativeAccess bool
	// NegativeBase shifts negative ids to [NegativeBase+1, NegativeBase+N],
	// past any id inserted after the load. Zero means N.
	NegativeBase uint64
}

// Generator produces keys for one benchmark. It is immutable and safe for
// concurrent use; per-worker state lives in Context.
type Generator struct {
	cfg     Config
	idSize  int
	maxID   uint64
	negBase uint64
	ids     IDGenerator
}

// New validates cfg and builds a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Keyspace == 0 || cfg.Keyspace > MaxKeyspace {
		return nil, fmt.Errorf("%w: %d", ErrKeyspace, cfg.Keyspace)
	}
	if cfg.KeySize > MaxKeySize {
		return nil, fmt.Errorf("%w: %d > %d", ErrKeyTooLarge, cfg.KeySize, MaxKeySize)
	}

	overhead := len(cfg.Prefix)
	if cfg.TIDPrefix {
		overhead++
	}
	idSize := cfg.KeySize - overhead
	if idSize < 1 {
		return nil, fmt.Errorf("%w: size %d leaves no id byte after %d prefix bytes",
			ErrKeyTooSmall, cfg.KeySize, overhead)
	}

	maxID := uint64(math.MaxUint64)
	if idSize < 8 {
		maxID = 1<<(8*uint(idSize)) - 1
	}
	if cfg.Keyspace > maxID {
		return nil, fmt.Errorf("%w: keyspace %d exceeds %d-byte ids (max %d)",
			ErrKeyTooSmall, cfg.Keyspace, idSize, maxID)
	}
	negBase := max(cfg.NegativeBase, cfg.Keyspace)
	if cfg.NegativeAccess && (negBase > math.MaxUint64-cfg.Keyspace || negBase+cfg.Keyspace > maxID) {
		return nil, fmt.Errorf("%w: %d+%d exceeds %d-byte ids (max %d)",
			ErrNegativeOverflow, negBase, cfg.Keyspace, idSize, maxID)
	}

	ids, err := NewIDGenerator(cfg.Distribution, cfg.Keyspace, cfg.Skew)
	if err != nil {
		return nil, fmt.Errorf("build id generator: %w", err)
	}

	return &Generator{
		cfg:     cfg,
		idSize:  idSize,
		maxID:   maxID,
		negBase: negBase,
		ids:     ids,
	}, nil
}

// Size returns the total key length, prefix and tid byte included.
func (g *Generator) Size() int {
	return g.cfg.KeySize
}

// Keyspace returns N.
func (g *Generator) Keyspace() uint64 {
	return g.cfg.Keyspace
}

// IDSize returns the number of bytes the id occupies.
func (g *Generator) IDSize() int {
	return g.idSize
}

// NegativeBase returns the id right below the first negative id.
func (g *Generator) NegativeBase() uint64 {
	return g.negBase
}

// MaxID returns the largest id that encodes without truncation.
func (g *Generator) MaxID() uint64 {
	return g.maxID
}

// Config returns the configuration the generator was built with.
func (g *Generator) Config() Config {
	return g.cfg
}

// IDs returns the id generator used for random draws.
func (g *Generator) IDs() IDGenerator {
	return g.ids
}

// Encode writes the key for (tid, id) into dst, which must hold Size()
// bytes, and returns dst[:Size()]. tid is ignored unless TIDPrefix is set.
func (g *Generator) Encode(dst []byte, tid uint8, id uint64) []byte {
	dst = dst[:g.cfg.KeySize]
	n := copy(dst, g.cfg.Prefix)
	if g.cfg.TIDPrefix {
		dst[n] = tid
		n++
	}
	encodeID(dst[n:], id)
	return dst
}

// DecodeID recovers the (possibly truncated) id from a key produced by
// Encode.
func (g *Generator) DecodeID(key []byte) uint64 {
	off := len(g.cfg.Prefix)
	if g.cfg.TIDPrefix {
		off++
	}
	return decodeID(key[off:g.cfg.KeySize])
}

// encodeID writes id big-endian into out, truncating high bytes or
// left-padding with zeros to fill len(out).
func encodeID(out []byte, id uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], id)
	if len(out) >= 8 {
		pad := len(out) - 8
		clear(out[:pad])
		copy(out[pad:], tmp[:])
		return
	}
	copy(out, tmp[8-len(out):])
}

func decodeID(in []byte) uint64 {
	if len(in) > 8 {
		in = in[len(in)-8:]
	}
	var v uint64
	for _, b := range in {
		v = v<<8 | uint64(b)
	}
	return v
}
