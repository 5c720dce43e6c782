// Package bench drives an index through the load and run phases.
//
// Load is single-threaded and inserts ids 1..N in order, so two runs with
// the same options populate the index identically. Run spawns one worker
// per configured thread. Each worker owns its key context, operation
// sampler, value generator and statistics record; the only state the
// workers share is the stop flag.
package bench

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eunmann/idxbench/pkg/index"
	"github.com/eunmann/idxbench/pkg/keygen"
	"github.com/eunmann/idxbench/pkg/memdiag"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/perfcounter"
)

// MaxScan bounds the records a single scan may visit.
const MaxScan = 1000

// StopPollEvery is the number of iterations between two checks of the stop
// flag. With 1, time-mode overshoot is at most one operation.
const StopPollEvery = 1

// ErrBadState indicates a phase invoked out of order.
var ErrBadState = errors.New("benchmark in wrong state")

// State is the lifecycle of a Benchmark.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Observer receives progress as the benchmark runs. *metrics.Metrics
// implements it.
type Observer interface {
	SetState(state int)
	Window(phase string, ops uint64, elapsed time.Duration)
	Misses(phase string, n uint64)
	ObserveLatency(kind string, d time.Duration)
}

// Option customizes a Benchmark.
type Option func(*Benchmark)

// WithObserver publishes progress to o.
func WithObserver(o Observer) Option {
	return func(b *Benchmark) { b.observer = o }
}

// WithProfiler overrides the hardware-counter profiler used when
// Options.Profile is set.
func WithProfiler(p perfcounter.Profiler) Option {
	return func(b *Benchmark) { b.profiler = p }
}

// WithMemTracker tags t with the current phase as the benchmark advances.
func WithMemTracker(t *memdiag.Tracker) Option {
	return func(b *Benchmark) { b.tracker = t }
}

// Benchmark runs one configured workload against one index.
type Benchmark struct {
	opts  Options
	idx   index.Index
	keys  *keygen.Generator
	ops   *opgen.Generator
	state atomic.Int32

	observer Observer
	profiler perfcounter.Profiler
	tracker  *memdiag.Tracker

	// stop is the only mutable state shared by run-phase workers.
	stop atomic.Bool
}

// New validates opts and prepares the generators. Configuration errors are
// returned here, before any phase starts.
func New(idx index.Index, opts Options, options ...Option) (*Benchmark, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	keys, err := keygen.New(opts.keyConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	ops, err := opgen.New(opts.Ratios, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	b := &Benchmark{
		opts: opts,
		idx:  idx,
		keys: keys,
		ops:  ops,
	}
	for _, o := range options {
		o(b)
	}
	if b.profiler == nil && opts.Profile {
		b.profiler = perfcounter.New()
	}
	return b, nil
}

// Options returns the benchmark configuration.
func (b *Benchmark) Options() Options {
	return b.opts
}

// Keys returns the key generator.
func (b *Benchmark) Keys() *keygen.Generator {
	return b.keys
}

// OpTable returns the operation generator.
func (b *Benchmark) OpTable() *opgen.Generator {
	return b.ops
}

// State returns the current state.
func (b *Benchmark) State() State {
	return State(b.state.Load())
}

func (b *Benchmark) transition(from, to State) error {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: want %s, have %s", ErrBadState, from, b.State())
	}
	b.setState(to)
	return nil
}

func (b *Benchmark) setState(s State) {
	b.state.Store(int32(s))
	if b.observer != nil {
		b.observer.SetState(int(s))
	}
	if b.tracker != nil {
		b.tracker.SetPhase(s.String())
	}
}

// RunOp dispatches one operation to the index and reports whether it found
// or affected a record. Scans visit at most min(ScanSize, MaxScan) records
// and succeed when they visit at least one. out receives read values and
// scanBuf scanned ones.
func (b *Benchmark) RunOp(kind opgen.Kind, key, value, out, scanBuf []byte) bool {
	switch kind {
	case opgen.Read:
		_, ok := b.idx.Read(key, out)
		return ok
	case opgen.Insert:
		return b.idx.Insert(key, value)
	case opgen.Update:
		return b.idx.Update(key, value)
	case opgen.Remove:
		return b.idx.Remove(key)
	case opgen.Scan:
		return b.idx.Scan(key, min(b.opts.ScanSize, MaxScan), scanBuf) > 0
	default:
		panic(fmt.Sprintf("bench: unknown operation %v", kind))
	}
}
