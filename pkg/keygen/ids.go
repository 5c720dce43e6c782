package keygen

import (
	"fmt"
	"sync/atomic"

	"github.com/eunmann/idxbench/pkg/distribution"
	"github.com/eunmann/idxbench/pkg/randutil"
)

// IDGenerator draws record ids.
type IDGenerator interface {
	// NextID returns an id in [1, N].
	NextID(r *randutil.Source) uint64
	// NextIDBounded returns an id in [1, upper].
	NextIDBounded(r *randutil.Source, upper uint64) uint64
}

// NewIDGenerator returns the id generator for kind over [1, n].
func NewIDGenerator(kind distribution.Kind, n uint64, skew float64) (IDGenerator, error) {
	switch kind {
	case distribution.Uniform:
		d, err := distribution.NewUniform(1, n)
		if err != nil {
			return nil, err
		}
		return &UniformIDs{dist: d}, nil
	case distribution.SelfSimilar:
		d, err := distribution.NewSelfSimilar(1, n, skew)
		if err != nil {
			return nil, err
		}
		return &SelfSimilarIDs{dist: d}, nil
	case distribution.Zipfian:
		d, err := distribution.NewZipfian(1, n, skew)
		if err != nil {
			return nil, err
		}
		return &ZipfianIDs{dist: d}, nil
	default:
		return nil, fmt.Errorf("unknown distribution %v", kind)
	}
}

// UniformIDs draws ids uniformly.
type UniformIDs struct {
	dist *distribution.UniformDist
}

// NextID implements IDGenerator.
func (u *UniformIDs) NextID(r *randutil.Source) uint64 {
	return u.dist.Next(r)
}

// NextIDBounded implements IDGenerator.
func (u *UniformIDs) NextIDBounded(r *randutil.Source, upper uint64) uint64 {
	return 1 + r.Uint64n(max(upper, 1))
}

// SelfSimilarIDs draws ids from a self-similar distribution.
type SelfSimilarIDs struct {
	dist *distribution.SelfSimilarDist
}

// NextID implements IDGenerator.
func (s *SelfSimilarIDs) NextID(r *randutil.Source) uint64 {
	return s.dist.Next(r)
}

// NextIDBounded implements IDGenerator. Only the upper bound differs from
// the main distribution, so the bounded copy is cheap to build.
func (s *SelfSimilarIDs) NextIDBounded(r *randutil.Source, upper uint64) uint64 {
	_, hi := s.dist.Bounds()
	if upper == hi {
		return s.dist.Next(r)
	}
	d, err := s.dist.WithUpper(max(upper, 1))
	if err != nil {
		panic(err)
	}
	return d.Next(r)
}

// ZipfianIDs draws ids from a Zipfian distribution.
type ZipfianIDs struct {
	dist *distribution.ZipfianDist

	// bounded caches the last distribution built for NextIDBounded, since
	// rebuilding costs O(upper).
	bounded atomic.Pointer[distribution.ZipfianDist]
}

// NextID implements IDGenerator.
func (z *ZipfianIDs) NextID(r *randutil.Source) uint64 {
	return z.dist.Next(r)
}

// NextIDBounded implements IDGenerator.
func (z *ZipfianIDs) NextIDBounded(r *randutil.Source, upper uint64) uint64 {
	upper = max(upper, 1)
	if _, hi := z.dist.Bounds(); upper == hi {
		return z.dist.Next(r)
	}
	if d := z.bounded.Load(); d != nil {
		if _, hi := d.Bounds(); hi == upper {
			return d.Next(r)
		}
	}
	d, err := z.dist.WithUpper(upper)
	if err != nil {
		panic(err)
	}
	zd := d.(*distribution.ZipfianDist)
	z.bounded.Store(zd)
	return zd.Next(r)
}
