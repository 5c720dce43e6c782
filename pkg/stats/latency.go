package stats

import (
	"math"
	"slices"
	"time"

	"github.com/eunmann/idxbench/pkg/opgen"
)

// Percentiles reported for latency, in the order they are printed.
var Percentiles = []float64{50, 90, 99, 99.9, 99.99, 99.999}

// Quantile is one percentile of a latency distribution.
type Quantile struct {
	Percentile float64       `json:"percentile" yaml:"percentile"`
	Value      time.Duration `json:"value_ns" yaml:"value_ns"`
}

// LatencySummary describes a set of latency samples.
type LatencySummary struct {
	Count     int           `json:"count" yaml:"count"`
	Min       time.Duration `json:"min_ns" yaml:"min_ns"`
	Max       time.Duration `json:"max_ns" yaml:"max_ns"`
	Mean      time.Duration `json:"mean_ns" yaml:"mean_ns"`
	Quantiles []Quantile    `json:"quantiles" yaml:"quantiles"`
}

// Summarize computes min, max, mean and Percentiles over samples using the
// nearest-rank method. The zero value is returned for no samples.
func Summarize(samples []Sample) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	lat := make([]time.Duration, len(samples))
	var sum time.Duration
	for i, s := range samples {
		lat[i] = s.Latency()
		sum += lat[i]
	}
	slices.Sort(lat)

	n := len(lat)
	out := LatencySummary{
		Count:     n,
		Min:       lat[0],
		Max:       lat[n-1],
		Mean:      sum / time.Duration(n),
		Quantiles: make([]Quantile, 0, len(Percentiles)),
	}
	for _, p := range Percentiles {
		out.Quantiles = append(out.Quantiles, Quantile{Percentile: p, Value: lat[rank(p, n)]})
	}
	return out
}

// SummarizeByKind summarizes the samples of every kind present.
func SummarizeByKind(samples []Sample) map[opgen.Kind]LatencySummary {
	byKind := make(map[opgen.Kind][]Sample)
	for _, s := range samples {
		byKind[s.Kind] = append(byKind[s.Kind], s)
	}
	out := make(map[opgen.Kind]LatencySummary, len(byKind))
	for k, ss := range byKind {
		out[k] = Summarize(ss)
	}
	return out
}

// rank returns the zero-based nearest-rank index of percentile p in n
// sorted values.
func rank(p float64, n int) int {
	i := int(math.Ceil(p/100*float64(n))) - 1
	return min(max(i, 0), n-1)
}
