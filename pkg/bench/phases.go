package bench

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/idxbench/internal/logctx"
	"github.com/eunmann/idxbench/pkg/keygen"
	"github.com/eunmann/idxbench/pkg/logging"
	"github.com/eunmann/idxbench/pkg/memdiag"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/perfcounter"
	"github.com/eunmann/idxbench/pkg/randutil"
	"github.com/eunmann/idxbench/pkg/stats"
	"github.com/eunmann/idxbench/pkg/valuegen"
)

// Seed streams derived from Options.Seed. Worker w uses streamWorker+w*4
// through streamWorker+w*4+3.
const (
	streamLoadKeys uint64 = iota
	streamLoadValues
	streamWorker
)

// loadCancelEvery is the number of inserts between context checks during
// load.
const loadCancelEvery = 1 << 14

// Load inserts ids 1..N in order from a single goroutine. With SkipLoad the
// index is left untouched and the benchmark moves straight to loaded.
func (b *Benchmark) Load(ctx context.Context) (PhaseResult, error) {
	ctx = logctx.WithPhase(ctx, "load")
	log := logctx.FromContext(ctx)

	if b.opts.SkipLoad {
		if err := b.transition(StateIdle, StateLoaded); err != nil {
			return PhaseResult{}, err
		}
		log.Info().Msg("load phase skipped")
		return PhaseResult{Phase: "load", Skipped: true}, nil
	}
	if err := b.transition(StateIdle, StateLoading); err != nil {
		return PhaseResult{}, err
	}

	n := b.opts.Records
	recs := stats.NewRecords(1, 0)
	rec := &recs[0]
	kctx := b.keys.NewContext(randutil.DeriveSeed(b.opts.Seed, streamLoadKeys), 1, n)
	vals := valuegen.New(b.opts.ValueSize, randutil.DeriveSeed(b.opts.Seed, streamLoadValues))

	logging.PhaseStarted(log, "load", 1)
	smp := newSampler("load", b.opts.SamplingPeriod, recs, b.observer, log)
	begin := time.Now()
	smp.start(begin)

	var err error
	for i := uint64(0); i < n; i++ {
		if i%loadCancelEvery == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}
		rec.Done(opgen.Insert, b.idx.Insert(kctx.NextTID(0, false, true), vals.Next()))
	}

	elapsed := time.Since(begin)
	windows := smp.finish()
	totals := stats.Aggregate(recs)
	res := PhaseResult{
		Phase:     "load",
		Workers:   1,
		Elapsed:   elapsed,
		Totals:    totals,
		OpsPerSec: throughput(totals.Completed, elapsed),
		Windows:   windows,
		Memory:    memdiag.Read(),
	}
	if b.observer != nil && totals.Misses > 0 {
		b.observer.Misses("load", totals.Misses)
	}

	if err != nil {
		b.setState(StateDone)
		return res, fmt.Errorf("load interrupted after %d records: %w", totals.Completed, err)
	}
	b.setState(StateLoaded)

	logging.PhaseComplete(log, "load", elapsed).
		Count("operations", totals.Completed).
		Count("failed", totals.Misses).
		Rate(totals.Completed).
		Log("load phase complete")
	if totals.Misses > 0 {
		log.Warn().Uint64("failed", totals.Misses).Msg("index rejected load inserts")
	}
	return res, nil
}

// Run executes the configured mix on Threads workers until the operation
// budget is spent or the duration elapsed. Cancelling ctx stops the workers
// at their next iteration; the partial result is returned with the error.
func (b *Benchmark) Run(ctx context.Context) (RunResult, error) {
	ctx = logctx.WithPhase(ctx, "run")
	log := logctx.FromContext(ctx)

	if err := b.transition(StateLoaded, StateRunning); err != nil {
		return RunResult{}, err
	}

	before := memdiag.ForceGC()
	threads := b.opts.Threads

	sampleHint := 0
	if b.opts.LatencySampling > 0 && b.opts.Mode == ModeOperations {
		q, _ := b.opts.quota(0)
		sampleHint = int(min(float64(q)*b.opts.LatencySampling*1.1, 1<<20))
	}
	recs := stats.NewRecords(threads, sampleHint)
	workers := make([]*worker, threads)
	for w := range workers {
		workers[w] = b.newWorker(w, &recs[w])
	}

	b.stop.Store(false)
	done := make(chan struct{})

	profiling := false
	if b.profiler != nil {
		if err := b.profiler.Start(); err != nil {
			log.Warn().Err(err).Msg("hardware counters unavailable, continuing without")
		} else {
			profiling = true
		}
	}

	logging.PhaseStarted(log, "run", threads)
	smp := newSampler("run", b.opts.SamplingPeriod, recs, b.observer, log)
	begin := time.Now()
	go b.control(ctx, done, begin)
	smp.start(begin)

	var g errgroup.Group
	g.SetLimit(threads)
	for _, wk := range workers {
		g.Go(func() error {
			wk.loop(begin)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(begin)
	close(done)

	var counters *perfcounter.Counters
	if profiling {
		if c, err := b.profiler.Stop(); err != nil {
			log.Warn().Err(err).Msg("read hardware counters")
		} else {
			counters = &c
		}
	}

	windows := smp.finish()
	b.setState(StateDone)

	totals := stats.Aggregate(recs)
	samples := stats.MergeSamples(recs)
	res := RunResult{
		PhaseResult: PhaseResult{
			Phase:     "run",
			Workers:   threads,
			Elapsed:   elapsed,
			Totals:    totals,
			OpsPerSec: throughput(totals.Completed, elapsed),
			Windows:   windows,
			Memory:    memdiag.Read().Since(before),
		},
		Samples:       samples,
		Latency:       stats.Summarize(samples),
		LatencyByKind: stats.SummarizeByKind(samples),
		Counters:      counters,
	}
	if b.observer != nil {
		if totals.Misses > 0 {
			b.observer.Misses("run", totals.Misses)
		}
		for _, s := range samples {
			b.observer.ObserveLatency(s.Kind.String(), s.Latency())
		}
	}

	ev := logging.PhaseComplete(log, "run", elapsed).
		Int("threads", threads).
		Str("mode", b.opts.Mode.String()).
		Count("operations", totals.Completed).
		Count("misses", totals.Misses).
		Rate(totals.Completed)
	if len(samples) > 0 {
		ev = ev.Int("latency_samples", len(samples))
	}
	ev.Log("run phase complete")

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run interrupted: %w", err)
	}
	return res, nil
}

// control raises the stop flag when the time budget measured from begin
// elapses or ctx is cancelled, whichever comes first, and exits once the
// workers joined.
func (b *Benchmark) control(ctx context.Context, done <-chan struct{}, begin time.Time) {
	var deadline <-chan time.Time
	if b.opts.Mode == ModeTime {
		t := time.NewTimer(b.opts.Duration - time.Since(begin))
		defer t.Stop()
		deadline = t.C
	}
	select {
	case <-deadline:
	case <-ctx.Done():
	case <-done:
		return
	}
	b.stop.Store(true)
}

// worker is the per-thread state of the run phase. Nothing in it is shared.
type worker struct {
	b       *Benchmark
	id      int
	rec     *stats.Record
	keys    *keygen.Context
	ops     *opgen.Sampler
	vals    *valuegen.Generator
	coin    *randutil.Source
	quota   uint64
	tid     uint8
	out     []byte
	scanBuf []byte
}

func (b *Benchmark) newWorker(w int, rec *stats.Record) *worker {
	base := streamWorker + uint64(w)*4
	seed := func(i uint64) uint64 { return randutil.DeriveSeed(b.opts.Seed, base+i) }

	first, last := b.opts.Records+1, b.keys.MaxID()
	var quota uint64
	tid := uint8(0)
	if b.opts.Mode == ModeOperations {
		quota, _ = b.opts.quota(w)
		first, last = b.opts.insertRange(w)
	} else {
		tid = uint8(w + 1)
	}

	return &worker{
		b:       b,
		id:      w,
		rec:     rec,
		keys:    b.keys.NewContext(seed(0), first, last),
		ops:     b.ops.Sampler(seed(1)),
		vals:    valuegen.New(b.opts.ValueSize, seed(2)),
		coin:    randutil.New(seed(3)),
		quota:   quota,
		tid:     tid,
		out:     make([]byte, 0, b.opts.ValueSize),
		scanBuf: make([]byte, MaxScan*b.opts.ValueSize),
	}
}

func (wk *worker) loop(begin time.Time) {
	b := wk.b
	timed := b.opts.Mode == ModeTime
	sampling := b.opts.LatencySampling
	negRate := b.opts.NegativeAccessRate
	if !b.opts.NegativeAccess {
		negRate = 0
	}

	for i := uint64(0); ; i++ {
		if !timed && i >= wk.quota {
			return
		}
		if i%StopPollEvery == 0 && b.stop.Load() {
			return
		}

		kind := wk.ops.Next()
		var key []byte
		if kind == opgen.Insert {
			key = wk.keys.NextTID(wk.tid, false, true)
		} else {
			neg := negRate > 0 && wk.coin.Float64() < negRate
			key = wk.keys.NextTID(0, neg, false)
		}
		var value []byte
		if kind == opgen.Insert || kind == opgen.Update {
			value = wk.vals.Next()
		}

		if sampling > 0 && wk.coin.Float64() < sampling {
			start := time.Since(begin)
			ok := b.RunOp(kind, key, value, wk.out, wk.scanBuf)
			end := time.Since(begin)
			wk.rec.Done(kind, ok)
			wk.rec.AddSample(kind, start, end)
			continue
		}
		wk.rec.Done(kind, b.RunOp(kind, key, value, wk.out, wk.scanBuf))
	}
}
