// Package distribution provides the integer distributions used to pick
// record ids: uniform, self-similar and Zipfian.
//
// Every distribution is immutable after construction and draws from a
// caller-owned randutil.Source, so one value can be shared by all workers.
// Re-parameterizing the upper bound returns a new value and never mutates
// the receiver.
package distribution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eunmann/idxbench/pkg/randutil"
)

var (
	// ErrEmptyRange indicates lo > hi or lo == 0.
	ErrEmptyRange = errors.New("empty id range")
	// ErrInvalidSkew indicates a skew parameter outside the accepted domain.
	ErrInvalidSkew = errors.New("invalid skew")
)

// Kind selects a distribution family.
type Kind uint8

const (
	// Uniform draws every id with equal probability.
	Uniform Kind = iota
	// SelfSimilar concentrates draws on a hot fraction of the range.
	SelfSimilar
	// Zipfian draws ids following a power law over their rank.
	Zipfian
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case SelfSimilar:
		return "selfsimilar"
	case Zipfian:
		return "zipfian"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses a distribution name. It accepts "self-similar" as an
// alias and is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform":
		return Uniform, nil
	case "selfsimilar", "self-similar", "self_similar":
		return SelfSimilar, nil
	case "zipfian", "zipf":
		return Zipfian, nil
	default:
		return 0, fmt.Errorf("unknown distribution %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Distribution draws integers from a closed range.
type Distribution interface {
	// Next returns a value in [lo, hi].
	Next(r *randutil.Source) uint64
	// Bounds returns the closed range of Next.
	Bounds() (lo, hi uint64)
	// WithUpper returns the same distribution over [lo, hi].
	WithUpper(hi uint64) (Distribution, error)
}

// New builds a distribution of the given kind over [lo, hi]. skew is
// ignored for Uniform.
func New(kind Kind, lo, hi uint64, skew float64) (Distribution, error) {
	switch kind {
	case Uniform:
		return NewUniform(lo, hi)
	case SelfSimilar:
		return NewSelfSimilar(lo, hi, skew)
	case Zipfian:
		return NewZipfian(lo, hi, skew)
	default:
		return nil, fmt.Errorf("new distribution: unknown kind %d", kind)
	}
}

func checkRange(lo, hi uint64) error {
	if lo == 0 || lo > hi {
		return fmt.Errorf("%w: [%d, %d]", ErrEmptyRange, lo, hi)
	}
	return nil
}

// UniformDist draws uniformly from [lo, hi].
type UniformDist struct {
	lo, hi uint64
}

// NewUniform returns a uniform distribution over [lo, hi].
func NewUniform(lo, hi uint64) (*UniformDist, error) {
	if err := checkRange(lo, hi); err != nil {
		return nil, err
	}
	return &UniformDist{lo: lo, hi: hi}, nil
}

// Next implements Distribution.
func (d *UniformDist) Next(r *randutil.Source) uint64 {
	return d.lo + r.Uint64n(d.hi-d.lo+1)
}

// Bounds implements Distribution.
func (d *UniformDist) Bounds() (uint64, uint64) {
	return d.lo, d.hi
}

// WithUpper implements Distribution.
func (d *UniformDist) WithUpper(hi uint64) (Distribution, error) {
	return NewUniform(d.lo, hi)
}
