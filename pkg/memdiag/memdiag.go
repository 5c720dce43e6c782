// Package memdiag reads Go runtime memory statistics for the report and,
// when enabled, logs them periodically while a phase runs.
//
// runtime.ReadMemStats stops the world, so periodic tracking is off by
// default and should only be turned on when diagnosing the harness itself.
package memdiag

import (
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/idxbench/pkg/humanfmt"
)

// Config controls the periodic tracker.
type Config struct {
	// Enabled turns periodic logging on.
	Enabled bool
	// LogInterval is the period between samples.
	LogInterval time.Duration
}

// DefaultConfig returns a disabled tracker configuration.
func DefaultConfig() Config {
	return Config{LogInterval: 5 * time.Second}
}

// Stats is a subset of runtime.MemStats.
type Stats struct {
	HeapAlloc  uint64        `json:"heap_alloc" yaml:"heap_alloc"`
	HeapInuse  uint64        `json:"heap_inuse" yaml:"heap_inuse"`
	HeapSys    uint64        `json:"heap_sys" yaml:"heap_sys"`
	Sys        uint64        `json:"sys" yaml:"sys"`
	TotalAlloc uint64        `json:"total_alloc" yaml:"total_alloc"`
	Mallocs    uint64        `json:"mallocs" yaml:"mallocs"`
	NumGC      uint32        `json:"num_gc" yaml:"num_gc"`
	PauseTotal time.Duration `json:"gc_pause_total_ns" yaml:"gc_pause_total_ns"`
}

// Read returns the current statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		HeapSys:    m.HeapSys,
		Sys:        m.Sys,
		TotalAlloc: m.TotalAlloc,
		Mallocs:    m.Mallocs,
		NumGC:      m.NumGC,
		PauseTotal: time.Duration(m.PauseTotalNs),
	}
}

// Since returns the growth of the cumulative counters from prev to s. Gauges
// keep the value of s.
func (s Stats) Since(prev Stats) Stats {
	d := s
	d.TotalAlloc -= prev.TotalAlloc
	d.Mallocs -= prev.Mallocs
	d.NumGC -= prev.NumGC
	d.PauseTotal -= prev.PauseTotal
	return d
}

// ForceGC runs a full collection and returns memory to the OS so that a
// phase does not pay for the garbage of the previous one.
func ForceGC() Stats {
	runtime.GC()
	debug.FreeOSMemory()
	return Read()
}

// RegisterPprof mounts the pprof handlers on mux under /debug/pprof/.
func RegisterPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// Tracker logs memory statistics on a ticker and remembers the peak heap.
type Tracker struct {
	config  Config
	log     zerolog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	started atomic.Bool

	mu       sync.Mutex
	phase    string
	peakHeap uint64
}

// NewTracker creates a tracker that logs to log.
func NewTracker(config Config, log zerolog.Logger) *Tracker {
	if config.LogInterval <= 0 {
		config.LogInterval = DefaultConfig().LogInterval
	}
	return &Tracker{
		config: config,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		phase:  "init",
	}
}

// Start begins periodic logging if enabled. Calling it twice is a no-op.
func (t *Tracker) Start() {
	if !t.config.Enabled || !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.loop()
}

// Stop ends periodic logging and waits for the last sample.
func (t *Tracker) Stop() {
	if !t.started.Load() {
		return
	}
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	<-t.doneCh
}

// SetPhase tags subsequent samples with phase.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
	if t.config.Enabled {
		t.Sample("phase_change")
	}
}

// Sample reads and logs the current statistics at debug level.
func (t *Tracker) Sample(reason string) Stats {
	s := Read()

	t.mu.Lock()
	t.peakHeap = max(t.peakHeap, s.HeapAlloc)
	phase, peak := t.phase, t.peakHeap
	t.mu.Unlock()

	t.log.Debug().
		Str("reason", reason).
		Str("phase", phase).
		Str("heap_alloc", humanfmt.BytesUint64(s.HeapAlloc)).
		Str("heap_inuse", humanfmt.BytesUint64(s.HeapInuse)).
		Str("sys", humanfmt.BytesUint64(s.Sys)).
		Str("peak_heap", humanfmt.BytesUint64(peak)).
		Uint32("num_gc", s.NumGC).
		Msg("memory stats")
	return s
}

// PeakHeap returns the largest heap allocation sampled.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}

func (t *Tracker) loop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.config.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.Sample("shutdown")
			return
		case <-ticker.C:
			t.Sample("periodic")
		}
	}
}
