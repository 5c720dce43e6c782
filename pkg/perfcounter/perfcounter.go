// Package perfcounter reads hardware performance counters around the run
// phase.
//
// On Linux the counters are perf events opened for every thread of the
// process with the inherit bit set, so threads the Go runtime spawns after
// Start are counted from the moment they are created. Threads that exist
// at Start are counted from Start. Everywhere else New returns a profiler
// whose Start fails with ErrUnsupported.
package perfcounter

import (
	"errors"
	"time"
)

// ErrUnsupported indicates that hardware counters are not available.
var ErrUnsupported = errors.New("hardware counters unsupported")

// ErrNotStarted indicates Stop without a successful Start.
var ErrNotStarted = errors.New("profiler not started")

// Counters holds the totals collected between Start and Stop.
type Counters struct {
	Cycles          uint64        `json:"cycles" yaml:"cycles"`
	Instructions    uint64        `json:"instructions" yaml:"instructions"`
	CacheReferences uint64        `json:"cache_references" yaml:"cache_references"`
	CacheMisses     uint64        `json:"cache_misses" yaml:"cache_misses"`
	BranchMisses    uint64        `json:"branch_misses" yaml:"branch_misses"`
	Elapsed         time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	// Threads is the number of threads counters were attached to at Start.
	Threads int `json:"threads" yaml:"threads"`
}

// IPC returns instructions per cycle.
func (c Counters) IPC() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return float64(c.Instructions) / float64(c.Cycles)
}

// CacheMissRatio returns cache misses over cache references.
func (c Counters) CacheMissRatio() float64 {
	if c.CacheReferences == 0 {
		return 0
	}
	return float64(c.CacheMisses) / float64(c.CacheReferences)
}

// PerOp divides every counter by ops.
func (c Counters) PerOp(ops uint64) map[string]float64 {
	if ops == 0 {
		return nil
	}
	n := float64(ops)
	return map[string]float64{
		"cycles":           float64(c.Cycles) / n,
		"instructions":     float64(c.Instructions) / n,
		"cache_references": float64(c.CacheReferences) / n,
		"cache_misses":     float64(c.CacheMisses) / n,
		"branch_misses":    float64(c.BranchMisses) / n,
	}
}

// Profiler brackets a measured region.
type Profiler interface {
	Start() error
	Stop() (Counters, error)
}

type event int

const (
	evCycles event = iota
	evInstructions
	evCacheReferences
	evCacheMisses
	evBranchMisses
	numEvents
)

func (c *Counters) set(e event, v uint64) {
	switch e {
	case evCycles:
		c.Cycles = v
	case evInstructions:
		c.Instructions = v
	case evCacheReferences:
		c.CacheReferences = v
	case evCacheMisses:
		c.CacheMisses = v
	case evBranchMisses:
		c.BranchMisses = v
	}
}
