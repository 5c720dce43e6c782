package distribution

import (
	"fmt"
	"math"

	"github.com/eunmann/idxbench/pkg/randutil"
)

// SelfSimilarDist implements the self-similar distribution of Gray et al.:
// a fraction skew of the range receives 1-skew of the draws, recursively.
// skew = 0.2 gives the classic 80/20 rule, skew = 0.5 is uniform and skew
// close to 0 puts nearly every draw on lo.
type SelfSimilarDist struct {
	lo, hi   uint64
	skew     float64
	exponent float64
}

// NewSelfSimilar returns a self-similar distribution over [lo, hi]. skew
// must lie in the open interval (0, 1).
func NewSelfSimilar(lo, hi uint64, skew float64) (*SelfSimilarDist, error) {
	if err := checkRange(lo, hi); err != nil {
		return nil, err
	}
	if !(skew > 0 && skew < 1) {
		return nil, fmt.Errorf("%w: self-similar skew %v not in (0, 1)", ErrInvalidSkew, skew)
	}
	return &SelfSimilarDist{
		lo:       lo,
		hi:       hi,
		skew:     skew,
		exponent: math.Log(skew) / math.Log(1-skew),
	}, nil
}

// Next implements Distribution.
func (d *SelfSimilarDist) Next(r *randutil.Source) uint64 {
	span := float64(d.hi - d.lo + 1)
	off := uint64(span * math.Pow(r.Float64(), d.exponent))
	v := d.lo + off
	if v > d.hi {
		v = d.hi
	}
	return v
}

// Bounds implements Distribution.
func (d *SelfSimilarDist) Bounds() (uint64, uint64) {
	return d.lo, d.hi
}

// Skew returns the skew parameter.
func (d *SelfSimilarDist) Skew() float64 {
	return d.skew
}

// WithUpper implements Distribution. The exponent depends only on skew, so
// only the bound changes.
func (d *SelfSimilarDist) WithUpper(hi uint64) (Distribution, error) {
	if err := checkRange(d.lo, hi); err != nil {
		return nil, err
	}
	c := *d
	c.hi = hi
	return &c, nil
}
