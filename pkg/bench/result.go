package bench

import (
	"time"

	"github.com/eunmann/idxbench/pkg/memdiag"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/perfcounter"
	"github.com/eunmann/idxbench/pkg/stats"
)

// Window is one progress sample.
type Window struct {
	// End is the offset of the window end from the start of the phase.
	End       time.Duration `json:"end_ns" yaml:"end_ns"`
	Ops       uint64        `json:"ops" yaml:"ops"`
	OpsPerSec float64       `json:"ops_per_sec" yaml:"ops_per_sec"`
}

// PhaseResult is the outcome of one phase.
type PhaseResult struct {
	Phase     string        `json:"phase" yaml:"phase"`
	Skipped   bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Workers   int           `json:"workers" yaml:"workers"`
	Elapsed   time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	Totals    stats.Totals  `json:"totals" yaml:"totals"`
	OpsPerSec float64       `json:"ops_per_sec" yaml:"ops_per_sec"`
	Windows   []Window      `json:"windows,omitempty" yaml:"windows,omitempty"`
	Memory    memdiag.Stats `json:"memory" yaml:"memory"`
}

// RunResult extends PhaseResult with what only the run phase collects.
type RunResult struct {
	PhaseResult `yaml:",inline"`

	// Samples holds the timed operations, worker by worker.
	Samples       []stats.Sample                      `json:"-" yaml:"-"`
	Latency       stats.LatencySummary                `json:"latency" yaml:"latency"`
	LatencyByKind map[opgen.Kind]stats.LatencySummary `json:"latency_by_kind,omitempty" yaml:"latency_by_kind,omitempty"`
	Counters      *perfcounter.Counters               `json:"counters,omitempty" yaml:"counters,omitempty"`
}

func throughput(ops uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(ops) / elapsed.Seconds()
}
