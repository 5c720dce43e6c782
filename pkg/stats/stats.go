// Package stats holds the per-worker counters of a benchmark phase and the
// latency samples they collect.
//
// Each worker owns exactly one Record. Records are padded so that two
// workers never write to the same cache line. The completed and missed
// counters are atomics because the progress sampler reads them while the
// workers run; everything else is read only after the workers have joined.
package stats

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/eunmann/idxbench/pkg/opgen"
)

// Sample is one timed operation. Start and End are offsets from the start
// of the phase.
type Sample struct {
	Kind  opgen.Kind
	Start time.Duration
	End   time.Duration
}

// Latency returns End - Start.
func (s Sample) Latency() time.Duration {
	return s.End - s.Start
}

// Record accumulates the statistics of one worker.
type Record struct {
	_ cpu.CacheLinePad

	hits   atomic.Uint64
	misses atomic.Uint64

	kinds   [opgen.NumKinds]uint64
	kindHit [opgen.NumKinds]uint64
	samples []Sample

	_ cpu.CacheLinePad
}

// NewRecords allocates one record per worker. sampleHint preallocates the
// latency buffer of every record.
func NewRecords(workers, sampleHint int) []Record {
	recs := make([]Record, workers)
	if sampleHint > 0 {
		for i := range recs {
			recs[i].samples = make([]Sample, 0, sampleHint)
		}
	}
	return recs
}

// Done counts one completed operation of kind k. ok reports whether the
// operation found or affected a record. Only the owning worker may call it.
func (r *Record) Done(k opgen.Kind, ok bool) {
	r.kinds[k]++
	if ok {
		r.kindHit[k]++
		r.hits.Store(r.hits.Load() + 1)
		return
	}
	r.misses.Store(r.misses.Load() + 1)
}

// AddSample appends a latency sample. Only the owning worker may call it.
func (r *Record) AddSample(k opgen.Kind, start, end time.Duration) {
	r.samples = append(r.samples, Sample{Kind: k, Start: start, End: end})
}

// Completed returns the number of operations finished so far, hit or miss.
// It is safe to call while the owner is running.
func (r *Record) Completed() uint64 {
	return r.hits.Load() + r.misses.Load()
}

// Hits returns the number of operations that found or affected a record.
func (r *Record) Hits() uint64 {
	return r.hits.Load()
}

// Misses returns the number of operations that did not.
func (r *Record) Misses() uint64 {
	return r.misses.Load()
}

// Samples returns the latency samples in the order they were taken.
func (r *Record) Samples() []Sample {
	return r.samples
}

// Completed sums the completed counters of recs using atomic loads.
func Completed(recs []Record) uint64 {
	var n uint64
	for i := range recs {
		n += recs[i].Completed()
	}
	return n
}

// KindTotals is the outcome of one operation kind.
type KindTotals struct {
	Count  uint64 `json:"count" yaml:"count"`
	Hits   uint64 `json:"hits" yaml:"hits"`
	Misses uint64 `json:"misses" yaml:"misses"`
}

// Totals is the aggregate of all records of a phase.
type Totals struct {
	Completed uint64                    `json:"completed" yaml:"completed"`
	Hits      uint64                    `json:"hits" yaml:"hits"`
	Misses    uint64                    `json:"misses" yaml:"misses"`
	PerKind   map[opgen.Kind]KindTotals `json:"per_kind" yaml:"per_kind"`
	PerWorker []uint64                  `json:"per_worker" yaml:"per_worker"`
}

// Aggregate merges recs. It must only be called after the owners have
// stopped.
func Aggregate(recs []Record) Totals {
	t := Totals{
		PerKind:   make(map[opgen.Kind]KindTotals, opgen.NumKinds),
		PerWorker: make([]uint64, len(recs)),
	}
	for i := range recs {
		r := &recs[i]
		t.Hits += r.Hits()
		t.Misses += r.Misses()
		t.PerWorker[i] = r.Completed()
		for k := 0; k < opgen.NumKinds; k++ {
			if r.kinds[k] == 0 {
				continue
			}
			kt := t.PerKind[opgen.Kind(k)]
			kt.Count += r.kinds[k]
			kt.Hits += r.kindHit[k]
			kt.Misses += r.kinds[k] - r.kindHit[k]
			t.PerKind[opgen.Kind(k)] = kt
		}
	}
	t.Completed = t.Hits + t.Misses
	return t
}

// MergeSamples concatenates the samples of recs worker by worker. Samples
// keep their order within a worker; there is no order across workers.
func MergeSamples(recs []Record) []Sample {
	n := 0
	for i := range recs {
		n += len(recs[i].samples)
	}
	out := make([]Sample, 0, n)
	for i := range recs {
		out = append(out, recs[i].samples...)
	}
	return out
}
