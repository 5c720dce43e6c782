package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eunmann/idxbench/internal/logctx"
	"github.com/eunmann/idxbench/pkg/bench"
	"github.com/eunmann/idxbench/pkg/index"
	"github.com/eunmann/idxbench/pkg/logging"
	"github.com/eunmann/idxbench/pkg/memdiag"
	"github.com/eunmann/idxbench/pkg/metrics"
	"github.com/eunmann/idxbench/pkg/report"
	"github.com/eunmann/idxbench/pkg/sysinfo"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load an index and run a workload against it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRunConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func runBenchmark(ctx context.Context, cfg runConfig, stdout io.Writer) error {
	log := logging.L().With().Str("index", cfg.Index).Logger()
	ctx = logctx.WithLogger(ctx, log)

	idx, err := index.Open(cfg.Index, index.Options{
		KeySize:   cfg.Bench.KeySize,
		ValueSize: cfg.Bench.ValueSize,
		Threads:   cfg.Bench.Threads,
		Records:   cfg.Bench.Records,
		Params:    cfg.IndexParams,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Warn().Err(err).Msg("close index")
		}
	}()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.MetricsAddr, m, cfg.Pprof, log)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("shutdown metrics listener")
			}
		}()
	}

	benchOpts := []bench.Option{bench.WithObserver(m)}
	var tracker *memdiag.Tracker
	if cfg.MemDebug {
		tracker = memdiag.NewTracker(memdiag.Config{Enabled: true, LogInterval: cfg.MemInterval}, log)
		tracker.Start()
		defer tracker.Stop()
		benchOpts = append(benchOpts, bench.WithMemTracker(tracker))
	}

	b, err := bench.New(idx, cfg.Bench, benchOpts...)
	if err != nil {
		return err
	}

	env := sysinfo.Describe()
	logEnvironment(log, env)
	rep := &report.Report{
		Index:       cfg.Index,
		Options:     cfg.Bench,
		Environment: env,
	}

	rep.Load, err = b.Load(ctx)
	if err != nil {
		return err
	}
	rep.Run, err = b.Run(ctx)
	// An interrupted run still produces a report of what completed.
	interrupted := err
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if tracker != nil {
		rep.PeakHeap = tracker.PeakHeap()
	}

	if err := rep.Write(stdout, cfg.Format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	artifacts, err := writeArtifacts(ctx, cfg, rep)
	if err != nil {
		return err
	}
	if cfg.Upload != "" {
		if err := upload(ctx, cfg.Upload, artifacts); err != nil {
			return err
		}
	}
	return interrupted
}

func logEnvironment(log zerolog.Logger, env sysinfo.Environment) {
	log.Info().
		Str("host", env.Hostname).
		Str("os", env.OS).
		Str("arch", env.Arch).
		Str("kernel", env.Kernel).
		Str("cpu", env.CPUModel).
		Int("num_cpu", env.NumCPU).
		Int("gomaxprocs", env.GOMAXPROCS).
		Uint64("total_memory", env.TotalMemory).
		Bool("memory_reliable", env.MemoryReliable).
		Str("go", env.GoVersion).
		Msg("environment")
}

// writeArtifacts writes the report file and the latency export, returning
// the paths written. With --upload and no --out the report goes to a
// temporary file.
func writeArtifacts(ctx context.Context, cfg runConfig, rep *report.Report) ([]string, error) {
	log := logctx.FromContext(ctx)
	var paths []string

	out := cfg.Out
	if out == "" && cfg.Upload != "" {
		f, err := os.CreateTemp("", "idxbench-report-*."+extension(cfg.Format))
		if err != nil {
			return nil, fmt.Errorf("create report file: %w", err)
		}
		out = f.Name()
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("create report file: %w", err)
		}
	}
	if out != "" {
		start := time.Now()
		if err := rep.WriteFile(out, cfg.Format); err != nil {
			return nil, err
		}
		logging.ArtifactWritten(log, "report", time.Since(start)).Str("path", out).Log("report written")
		paths = append(paths, out)
	}

	if cfg.LatencyOut != "" {
		start := time.Now()
		if err := report.ExportLatencies(cfg.LatencyOut, rep.Run.Samples); err != nil {
			return nil, err
		}
		logging.ArtifactWritten(log, "latency", time.Since(start)).
			Str("path", cfg.LatencyOut).
			Count("samples", uint64(len(rep.Run.Samples))).
			Log("latency samples exported")
		paths = append(paths, cfg.LatencyOut)
	}
	return paths, nil
}

func upload(ctx context.Context, dst string, paths []string) error {
	log := logctx.FromContext(ctx)
	if len(paths) == 0 {
		log.Warn().Msg("nothing to upload")
		return nil
	}
	// Uploads run on a fresh context so that an interrupted run still ships
	// its partial report.
	upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()

	u, err := report.NewUploader(upCtx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		start := time.Now()
		url, err := u.Upload(upCtx, dst, p)
		if err != nil {
			return err
		}
		logging.ArtifactWritten(log, "upload", time.Since(start)).Str("url", url).Log("artifact uploaded")
	}
	return nil
}

func extension(f report.Format) string {
	switch f {
	case report.FormatJSON:
		return "json"
	case report.FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}
