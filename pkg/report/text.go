package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/eunmann/idxbench/pkg/bench"
	"github.com/eunmann/idxbench/pkg/distribution"
	"github.com/eunmann/idxbench/pkg/humanfmt"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/stats"
)

// textWriter remembers the first write error so the layout code can stay
// linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	t.printf("\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

func (r *Report) writeText(w io.Writer) error {
	t := &textWriter{w: w}
	o := r.Options

	t.section("Environment")
	env := r.Environment
	t.printf("Host:            %s (%s/%s, kernel %s)\n", env.Hostname, env.OS, env.Arch, orNA(env.Kernel))
	t.printf("CPU:             %s, %d cores, GOMAXPROCS %d\n", orNA(env.CPUModel), env.NumCPU, env.GOMAXPROCS)
	mem := humanfmt.BytesUint64(env.TotalMemory)
	if !env.MemoryReliable {
		mem += " (assumed)"
	}
	t.printf("Memory:          %s\n", mem)
	t.printf("Go:              %s\n", env.GoVersion)

	t.section("Overview")
	t.printf("Index:           %s\n", r.Index)
	t.printf("Records:         %s\n", humanfmt.CountUint64(o.Records))
	if o.Mode == bench.ModeTime {
		t.printf("Duration:        %s\n", humanfmt.Duration(o.Duration))
	} else {
		t.printf("Operations:      %s\n", humanfmt.CountUint64(o.Operations))
	}
	t.printf("Threads:         %d\n", o.Threads)
	t.printf("Sampling:        %s\n", humanfmt.Duration(o.SamplingPeriod))
	t.printf("Latency sample:  %g\n", o.LatencySampling)
	t.printf("Key size:        %d (prefix %q)\n", o.KeySize, o.KeyPrefix)
	t.printf("Value size:      %d\n", o.ValueSize)
	t.printf("Random seed:     %d\n", o.Seed)
	t.printf("Distribution:    %s", o.Distribution)
	if o.Distribution != distribution.Uniform {
		t.printf(" (skew %g)", o.Skew)
	}
	t.printf("\n")
	if o.NegativeAccess {
		t.printf("Negative access: %g\n", o.NegativeAccessRate)
	}
	t.printf("Mix:             read %g, insert %g, update %g, remove %g, scan %g (scan size %d)\n",
		o.Ratios.Read, o.Ratios.Insert, o.Ratios.Update, o.Ratios.Remove, o.Ratios.Scan, o.ScanSize)

	t.section("Load")
	if r.Load.Skipped {
		t.printf("Skipped\n")
	} else {
		writePhase(t, &r.Load)
	}

	t.section("Run")
	writePhase(t, &r.Run.PhaseResult)
	writeKinds(t, r.Run.Totals)
	writeWindows(t, r.Run.Windows)

	if r.Run.Latency.Count > 0 {
		t.section("Latencies")
		t.printf("Samples: %s\n", humanfmt.Count(int64(r.Run.Latency.Count)))
		writeLatency(t, "all", r.Run.Latency)
		for _, k := range sortedKinds(r.Run.LatencyByKind) {
			writeLatency(t, k.String(), r.Run.LatencyByKind[k])
		}
	}

	if c := r.Run.Counters; c != nil {
		t.section("Hardware counters")
		ops := r.Run.Totals.Completed
		per := c.PerOp(ops)
		t.printf("Cycles:          %d (%.1f/op)\n", c.Cycles, per["cycles"])
		t.printf("Instructions:    %d (%.1f/op)\n", c.Instructions, per["instructions"])
		t.printf("IPC:             %.2f\n", c.IPC())
		t.printf("Cache refs:      %d (%.2f/op)\n", c.CacheReferences, per["cache_references"])
		t.printf("Cache misses:    %d (%.2f/op, %.1f%%)\n", c.CacheMisses, per["cache_misses"], 100*c.CacheMissRatio())
		t.printf("Branch misses:   %d (%.2f/op)\n", c.BranchMisses, per["branch_misses"])
	}

	if r.PeakHeap > 0 {
		t.section("Memory")
		t.printf("Peak heap:       %s\n", humanfmt.BytesUint64(r.PeakHeap))
	}
	return t.err
}

func writePhase(t *textWriter, p *bench.PhaseResult) {
	t.printf("Operations:      %s (%s hits, %s misses)\n",
		humanfmt.CountUint64(p.Totals.Completed),
		humanfmt.CountUint64(p.Totals.Hits),
		humanfmt.CountUint64(p.Totals.Misses))
	t.printf("Elapsed:         %s\n", humanfmt.Duration(p.Elapsed))
	t.printf("Throughput:      %s\n", humanfmt.RatePerSec(p.OpsPerSec))
	if p.Memory.HeapInuse > 0 {
		t.printf("Heap in use:     %s\n", humanfmt.BytesUint64(p.Memory.HeapInuse))
	}
}

func writeKinds(t *textWriter, tot stats.Totals) {
	t.printf("\n%-8s %14s %14s %14s\n", "kind", "count", "hits", "misses")
	for k := opgen.Kind(0); k < opgen.NumKinds; k++ {
		kt, ok := tot.PerKind[k]
		if !ok {
			continue
		}
		t.printf("%-8s %14d %14d %14d\n", k, kt.Count, kt.Hits, kt.Misses)
	}
	if len(tot.PerWorker) > 1 {
		t.printf("\nPer thread:")
		for _, n := range tot.PerWorker {
			t.printf(" %d", n)
		}
		t.printf("\n")
	}
}

func writeWindows(t *textWriter, windows []bench.Window) {
	if len(windows) < 2 {
		return
	}
	t.printf("\nSamples:\n")
	for _, w := range windows {
		t.printf("  %10s %14d %s\n", humanfmt.Duration(w.End), w.Ops, humanfmt.RatePerSec(w.OpsPerSec))
	}
}

func writeLatency(t *textWriter, label string, s stats.LatencySummary) {
	t.printf("%-7s min %s", label, humanfmt.Latency(s.Min))
	for _, q := range s.Quantiles {
		t.printf(", %g%% %s", q.Percentile, humanfmt.Latency(q.Value))
	}
	t.printf(", max %s, mean %s\n", humanfmt.Latency(s.Max), humanfmt.Latency(s.Mean))
}

func sortedKinds(m map[opgen.Kind]stats.LatencySummary) []opgen.Kind {
	kinds := make([]opgen.Kind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
