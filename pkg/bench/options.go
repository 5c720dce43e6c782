package bench

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eunmann/idxbench/pkg/distribution"
	"github.com/eunmann/idxbench/pkg/keygen"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/randutil"
)

// ErrInvalidOptions wraps every configuration error reported by Validate.
var ErrInvalidOptions = errors.New("invalid benchmark options")

// MaxTimeModeThreads bounds time-mode concurrency: each worker's inserts
// are told apart by a one-byte thread id, and 0 belongs to the loaded keys.
const MaxTimeModeThreads = 255

// Mode selects how the run phase terminates.
type Mode uint8

const (
	// ModeOperations stops once a fixed number of operations completed.
	ModeOperations Mode = iota
	// ModeTime stops once a wall-clock budget elapsed.
	ModeTime
)

func (m Mode) String() string {
	switch m {
	case ModeOperations:
		return "operation"
	case ModeTime:
		return "time"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode accepts "operation", "operations", "ops" and "time".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "operation", "operations", "ops", "op":
		return ModeOperations, nil
	case "time", "timed":
		return ModeTime, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Options configures one benchmark. It is immutable once the benchmark is
// built.
type Options struct {
	// Records is N, the number of records loaded.
	Records uint64 `json:"records" yaml:"records"`
	// Operations is the run-phase budget in operation mode.
	Operations uint64 `json:"operations" yaml:"operations"`
	// Threads is the number of run-phase workers.
	Threads int `json:"threads" yaml:"threads"`
	// SamplingPeriod is the progress sampling window; 0 disables sampling.
	SamplingPeriod time.Duration `json:"sampling_period_ns" yaml:"sampling_period_ns"`

	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	KeySize   int    `json:"key_size" yaml:"key_size"`
	ValueSize int    `json:"value_size" yaml:"value_size"`

	Ratios   opgen.Ratios `json:"ratios" yaml:"ratios"`
	ScanSize int          `json:"scan_size" yaml:"scan_size"`

	Distribution distribution.Kind `json:"distribution" yaml:"distribution"`
	Skew         float64           `json:"skew" yaml:"skew"`
	Seed         uint64            `json:"seed" yaml:"seed"`

	// Profile brackets the run phase with hardware counters.
	Profile  bool `json:"profile" yaml:"profile"`
	SkipLoad bool `json:"skip_load" yaml:"skip_load"`
	// LatencySampling is the probability that an operation is timed.
	LatencySampling float64 `json:"latency_sampling" yaml:"latency_sampling"`

	Mode     Mode          `json:"mode" yaml:"mode"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`

	NegativeAccess     bool    `json:"negative_access" yaml:"negative_access"`
	NegativeAccessRate float64 `json:"negative_access_rate" yaml:"negative_access_rate"`
}

// DefaultOptions returns the defaults of the command line.
func DefaultOptions() Options {
	return Options{
		Records:            1_000_000,
		Operations:         1_000_000,
		Threads:            1,
		SamplingPeriod:     time.Second,
		KeySize:            8,
		ValueSize:          8,
		Ratios:             opgen.Ratios{Read: 1},
		ScanSize:           100,
		Distribution:       distribution.Uniform,
		Skew:               0.2,
		Seed:               randutil.DefaultSeed,
		Mode:               ModeOperations,
		NegativeAccessRate: 0.2,
	}
}

// Validate reports every violated rule at once.
func (o Options) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if o.Records == 0 {
		bad("records must be positive")
	}
	if o.Threads < 1 {
		bad("threads must be positive, got %d", o.Threads)
	}
	switch o.Mode {
	case ModeOperations:
	case ModeTime:
		if o.Duration <= 0 {
			bad("time mode needs a positive duration, got %v", o.Duration)
		}
		if o.Threads > MaxTimeModeThreads {
			bad("time mode supports at most %d threads, got %d", MaxTimeModeThreads, o.Threads)
		}
	default:
		bad("unknown mode %v", o.Mode)
	}
	if o.SamplingPeriod < 0 {
		bad("sampling period must not be negative")
	}
	if o.KeySize < 1 || o.KeySize > keygen.MaxKeySize {
		bad("key size must be in [1, %d], got %d", keygen.MaxKeySize, o.KeySize)
	}
	if o.ValueSize < 0 {
		bad("value size must not be negative, got %d", o.ValueSize)
	}
	if o.ScanSize < 0 {
		bad("scan size must not be negative, got %d", o.ScanSize)
	}
	if err := o.Ratios.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !unit(o.LatencySampling) {
		bad("latency sampling must be in [0, 1], got %v", o.LatencySampling)
	}
	if !unit(o.NegativeAccessRate) {
		bad("negative access rate must be in [0, 1], got %v", o.NegativeAccessRate)
	}

	if len(errs) == 0 {
		g, err := keygen.New(o.keyConfig())
		if err != nil {
			errs = append(errs, err)
		} else if last := o.lastInsertID(); last > g.MaxID() {
			bad("key size %d cannot hold run-phase insert id %d", o.KeySize, last)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (o Options) keyConfig() keygen.Config {
	return keygen.Config{
		Keyspace:       o.Records,
		KeySize:        o.KeySize,
		Prefix:         o.KeyPrefix,
		TIDPrefix:      o.Mode == ModeTime,
		Distribution:   o.Distribution,
		Skew:           o.Skew,
		NegativeAccess: o.NegativeAccess,
		NegativeBase:   o.lastInsertID(),
	}
}

// quota returns the operation budget of worker w and the largest budget of
// any worker. The first Operations % Threads workers get one extra.
func (o Options) quota(w int) (mine, largest uint64) {
	t := uint64(o.Threads)
	base, extra := o.Operations/t, o.Operations%t
	largest = base
	if extra > 0 {
		largest++
	}
	mine = base
	if uint64(w) < extra {
		mine++
	}
	return mine, largest
}

// insertRange returns the disjoint id range worker w inserts into during
// an operation-mode run.
func (o Options) insertRange(w int) (first, last uint64) {
	_, q := o.quota(w)
	first = o.Records + 1 + uint64(w)*q
	last = first + max(q, 1) - 1
	return first, last
}

// lastInsertID returns the largest id an operation-mode run may insert, or
// 0 when the run inserts nothing beyond the keyspace.
func (o Options) lastInsertID() uint64 {
	if o.Mode != ModeOperations || o.Ratios.Insert == 0 || o.Threads < 1 {
		return 0
	}
	_, last := o.insertRange(o.Threads - 1)
	return last
}
