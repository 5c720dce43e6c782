package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eunmann/idxbench/pkg/bench"
	"github.com/eunmann/idxbench/pkg/distribution"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/report"
)

// EnvPrefix prefixes environment variables that override flags, e.g.
// IDXBENCH_KEY_SIZE for --key-size.
const EnvPrefix = "IDXBENCH"

// runConfig is everything the run command needs, resolved from flags,
// environment and config file.
type runConfig struct {
	Bench       bench.Options
	Index       string
	IndexParams map[string]string
	Format      report.Format
	Out         string
	LatencyOut  string
	Upload      string
	MetricsAddr string
	Pprof       bool
	MemDebug    bool
	MemInterval time.Duration
}

func addRunFlags(fs *pflag.FlagSet) {
	d := bench.DefaultOptions()

	fs.String("config", "", "YAML or JSON file with flag values")
	fs.String("index", "hashmap", "built-in index name or path to an index plugin (.so)")
	fs.StringSlice("index-opt", nil, "index parameter as key=value (repeatable)")

	fs.Uint64P("records", "n", d.Records, "number of records loaded")
	fs.Uint64P("operations", "p", d.Operations, "operations in the run phase (operation mode)")
	fs.IntP("threads", "t", d.Threads, "run-phase worker threads")
	fs.IntP("sampling-ms", "S", int(d.SamplingPeriod/time.Millisecond), "throughput sampling period in ms, 0 disables")

	fs.String("key-prefix", d.KeyPrefix, "prefix prepended to every key")
	fs.Int("key-size", d.KeySize, "key size in bytes, prefix included")
	fs.Int("value-size", d.ValueSize, "value size in bytes")

	fs.Float64P("read", "r", d.Ratios.Read, "share of reads")
	fs.Float64P("insert", "i", d.Ratios.Insert, "share of inserts")
	fs.Float64P("update", "u", d.Ratios.Update, "share of updates")
	fs.Float64P("remove", "d", d.Ratios.Remove, "share of removes")
	fs.Float64P("scan", "s", d.Ratios.Scan, "share of scans")
	fs.Int("scan-size", d.ScanSize, fmt.Sprintf("records per scan, capped at %d", bench.MaxScan))

	fs.String("distribution", d.Distribution.String(), "key distribution: uniform, selfsimilar or zipfian")
	fs.Float64("skew", d.Skew, "skew of selfsimilar and zipfian distributions, in (0, 1)")
	fs.Uint64("seed", d.Seed, "master random seed")

	fs.Bool("pcm", d.Profile, "collect hardware counters during the run phase")
	fs.Bool("skip-load", d.SkipLoad, "skip the load phase")
	fs.Float64("latency-sampling", d.LatencySampling, "fraction of operations timed, in [0, 1]")
	fs.String("mode", d.Mode.String(), "termination: operation or time")
	fs.Float64("seconds", d.Duration.Seconds(), "run-phase duration in time mode")
	fs.Bool("negative-access", d.NegativeAccess, "direct some reads at keys that were never loaded")
	fs.Float64("negative-access-rate", d.NegativeAccessRate, "fraction of non-insert operations that miss on purpose")

	fs.String("format", string(report.FormatText), "report format: text, json or yaml")
	fs.StringP("out", "o", "", "also write the report to this file")
	fs.String("latency-out", "", "export latency samples to .parquet, .csv or .csv.zst")
	fs.String("upload", "", "upload the report and latency export to s3://bucket/prefix/")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.Bool("pprof", false, "mount /debug/pprof on the metrics listener")
	fs.Bool("mem-debug", false, "log heap statistics periodically")
	fs.Duration("mem-interval", 5*time.Second, "period of --mem-debug samples")
}

// newViper binds fs, the environment and the optional config file.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func loadRunConfig(fs *pflag.FlagSet) (runConfig, error) {
	v, err := newViper(fs)
	if err != nil {
		return runConfig{}, err
	}

	var errs []error
	dist, err := distribution.ParseKind(v.GetString("distribution"))
	errs = append(errs, err)
	mode, err := bench.ParseMode(v.GetString("mode"))
	errs = append(errs, err)
	format, err := report.ParseFormat(v.GetString("format"))
	errs = append(errs, err)
	params, err := parseIndexParams(v.GetStringSlice("index-opt"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return runConfig{}, err
	}

	opts := bench.Options{
		Records:        v.GetUint64("records"),
		Operations:     v.GetUint64("operations"),
		Threads:        v.GetInt("threads"),
		SamplingPeriod: time.Duration(v.GetInt("sampling-ms")) * time.Millisecond,
		KeyPrefix:      v.GetString("key-prefix"),
		KeySize:        v.GetInt("key-size"),
		ValueSize:      v.GetInt("value-size"),
		Ratios: opgen.Ratios{
			Read:   v.GetFloat64("read"),
			Insert: v.GetFloat64("insert"),
			Update: v.GetFloat64("update"),
			Remove: v.GetFloat64("remove"),
			Scan:   v.GetFloat64("scan"),
		},
		ScanSize:           v.GetInt("scan-size"),
		Distribution:       dist,
		Skew:               v.GetFloat64("skew"),
		Seed:               v.GetUint64("seed"),
		Profile:            v.GetBool("pcm"),
		SkipLoad:           v.GetBool("skip-load"),
		LatencySampling:    v.GetFloat64("latency-sampling"),
		Mode:               mode,
		Duration:           time.Duration(v.GetFloat64("seconds") * float64(time.Second)),
		NegativeAccess:     v.GetBool("negative-access"),
		NegativeAccessRate: v.GetFloat64("negative-access-rate"),
	}
	if err := opts.Validate(); err != nil {
		return runConfig{}, err
	}

	return runConfig{
		Bench:       opts,
		Index:       v.GetString("index"),
		IndexParams: params,
		Format:      format,
		Out:         v.GetString("out"),
		LatencyOut:  v.GetString("latency-out"),
		Upload:      v.GetString("upload"),
		MetricsAddr: v.GetString("metrics-addr"),
		Pprof:       v.GetBool("pprof"),
		MemDebug:    v.GetBool("mem-debug"),
		MemInterval: v.GetDuration("mem-interval"),
	}, nil
}

func parseIndexParams(kvs []string) (map[string]string, error) {
	params := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("index option %q: want key=value", kv)
		}
		params[k] = val
	}
	return params, nil
}
