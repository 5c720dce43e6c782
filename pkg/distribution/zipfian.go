package distribution

import (
	"fmt"
	"math"

	"github.com/eunmann/idxbench/pkg/randutil"
)

// ZipfianDist draws ranks following a Zipf law with exponent theta using
// the constant-time algorithm from Gray et al., "Quickly Generating
// Billion-Record Synthetic Databases". Rank 1 maps to lo.
//
// Construction costs O(n) to compute zeta(n, theta); draws are O(1).
type ZipfianDist struct {
	lo, hi uint64
	n      uint64
	theta  float64
	zetan  float64
	zeta2  float64
	alpha  float64
	eta    float64
	half   float64 // 1 + 0.5^theta
}

// NewZipfian returns a Zipfian distribution over [lo, hi]. theta must lie
// in the open interval (0, 1); larger values are more skewed.
func NewZipfian(lo, hi uint64, theta float64) (*ZipfianDist, error) {
	if err := checkRange(lo, hi); err != nil {
		return nil, err
	}
	if !(theta > 0 && theta < 1) {
		return nil, fmt.Errorf("%w: zipfian theta %v not in (0, 1)", ErrInvalidSkew, theta)
	}
	n := hi - lo + 1
	return newZipfian(lo, hi, theta, zeta(0, n, theta, 0)), nil
}

func newZipfian(lo, hi uint64, theta, zetan float64) *ZipfianDist {
	n := hi - lo + 1
	d := &ZipfianDist{
		lo:    lo,
		hi:    hi,
		n:     n,
		theta: theta,
		zetan: zetan,
		zeta2: zeta(0, 2, theta, 0),
		alpha: 1 / (1 - theta),
		half:  1 + math.Pow(0.5, theta),
	}
	d.eta = (1 - math.Pow(2/float64(n), 1-theta)) / (1 - d.zeta2/zetan)
	return d
}

// zeta returns sum_{i=from+1}^{to} 1/i^theta added to partial.
func zeta(from, to uint64, theta, partial float64) float64 {
	sum := partial
	for i := from + 1; i <= to; i++ {
		sum += 1 / math.Pow(float64(i), theta)
	}
	return sum
}

// Next implements Distribution.
func (d *ZipfianDist) Next(r *randutil.Source) uint64 {
	u := r.Float64()
	uz := u * d.zetan
	if uz < 1 {
		return d.lo
	}
	if uz < d.half {
		return min(d.lo+1, d.hi)
	}
	v := d.lo + uint64(float64(d.n)*math.Pow(d.eta*u-d.eta+1, d.alpha))
	if v > d.hi {
		v = d.hi
	}
	return v
}

// Bounds implements Distribution.
func (d *ZipfianDist) Bounds() (uint64, uint64) {
	return d.lo, d.hi
}

// Theta returns the skew exponent.
func (d *ZipfianDist) Theta() float64 {
	return d.theta
}

// WithUpper implements Distribution. Growing the range extends the zeta sum
// incrementally; shrinking recomputes it.
func (d *ZipfianDist) WithUpper(hi uint64) (Distribution, error) {
	if err := checkRange(d.lo, hi); err != nil {
		return nil, err
	}
	if hi == d.hi {
		return d, nil
	}
	n := hi - d.lo + 1
	var z float64
	if n > d.n {
		z = zeta(d.n, n, d.theta, d.zetan)
	} else {
		z = zeta(0, n, d.theta, 0)
	}
	return newZipfian(d.lo, hi, d.theta, z), nil
}
