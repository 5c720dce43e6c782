// Package opgen picks the kind of each benchmark operation.
//
// The configured mix is turned once into a 256-entry table. A draw is one
// random byte used as an index into that table, so sampling costs the same
// regardless of the mix.
package opgen

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/eunmann/idxbench/pkg/randutil"
)

// TableSize is the number of entries in the operation table. The mix
// resolution is therefore 1/TableSize.
const TableSize = 256

// ErrInvalidRatios indicates a negative, non-finite or all-zero mix.
var ErrInvalidRatios = errors.New("invalid operation ratios")

// Kind is one index operation.
type Kind uint8

const (
	Read Kind = iota
	Insert
	Update
	Remove
	Scan

	// NumKinds is the number of operation kinds.
	NumKinds = 5
)

var kindNames = [NumKinds]string{"read", "insert", "update", "remove", "scan"}

func (k Kind) String() string {
	if int(k) < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// ParseKind parses an operation name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Ratios is the operation mix. Values need not sum to one.
type Ratios struct {
	Read   float64 `json:"read" yaml:"read"`
	Insert float64 `json:"insert" yaml:"insert"`
	Update float64 `json:"update" yaml:"update"`
	Remove float64 `json:"remove" yaml:"remove"`
	Scan   float64 `json:"scan" yaml:"scan"`
}

func (r Ratios) weights() [NumKinds]float64 {
	return [NumKinds]float64{r.Read, r.Insert, r.Update, r.Remove, r.Scan}
}

// Of returns the ratio configured for k.
func (r Ratios) Of(k Kind) float64 {
	if int(k) >= NumKinds {
		return 0
	}
	return r.weights()[k]
}

// Validate reports whether r can be normalized.
func (r Ratios) Validate() error {
	var sum float64
	for i, w := range r.weights() {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: %s ratio %v", ErrInvalidRatios, Kind(i), w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("%w: all ratios are zero", ErrInvalidRatios)
	}
	return nil
}

// Generator holds the immutable operation table.
type Generator struct {
	ratios Ratios
	seed   uint64
	table  [TableSize]Kind
	counts [NumKinds]int
}

// New builds the operation table for ratios. Every kind is given its exact
// share of TableSize slots rounded by largest remainder, and the slots are
// then shuffled with an engine seeded from seed. The table is identical for
// identical arguments.
func New(ratios Ratios, seed uint64) (*Generator, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{ratios: ratios, seed: seed}
	g.counts = apportion(ratios.weights())

	i := 0
	for k, n := range g.counts {
		for j := 0; j < n; j++ {
			g.table[i] = Kind(k)
			i++
		}
	}

	r := randutil.New(seed)
	for i := TableSize - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		g.table[i], g.table[j] = g.table[j], g.table[i]
	}
	return g, nil
}

// apportion splits TableSize slots between weights. Each count is the floor
// of its exact share, and the leftover slots go to the largest fractional
// parts (ties to the lower kind).
func apportion(w [NumKinds]float64) [NumKinds]int {
	var sum float64
	for _, v := range w {
		sum += v
	}

	var counts [NumKinds]int
	var frac [NumKinds]float64
	assigned := 0
	for i, v := range w {
		exact := TableSize * v / sum
		counts[i] = int(math.Floor(exact))
		frac[i] = exact - float64(counts[i])
		assigned += counts[i]
	}

	order := []int{0, 1, 2, 3, 4}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for _, k := range order {
		if assigned >= TableSize {
			break
		}
		if w[k] == 0 {
			continue
		}
		counts[k]++
		assigned++
	}
	return counts
}

// Ratios returns the mix the table was built from.
func (g *Generator) Ratios() Ratios {
	return g.ratios
}

// Seed returns the seed the table was shuffled with.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Table returns a copy of the operation table.
func (g *Generator) Table() [TableSize]Kind {
	return g.table
}

// Counts returns the number of table slots held by each kind.
func (g *Generator) Counts() [NumKinds]int {
	return g.counts
}

// Sampler returns a per-worker sampler drawing with its own engine.
func (g *Generator) Sampler(seed uint64) *Sampler {
	return &Sampler{table: &g.table, rng: randutil.New(seed)}
}

// Sampler draws operation kinds. It is not safe for concurrent use.
type Sampler struct {
	table *[TableSize]Kind
	rng   *randutil.Source
}

// Next returns the next operation kind.
func (s *Sampler) Next() Kind {
	return s.table[s.rng.Uint32()&0xff]
}

// Reseed reseeds the sampler's engine.
func (s *Sampler) Reseed(seed uint64) {
	s.rng.Seed(seed)
}
