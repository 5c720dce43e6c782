package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eunmann/idxbench/pkg/bench"
	"github.com/eunmann/idxbench/pkg/opgen"
	"github.com/eunmann/idxbench/pkg/perfcounter"
	"github.com/eunmann/idxbench/pkg/stats"
	"github.com/eunmann/idxbench/pkg/sysinfo"
)

func sampleSet() []stats.Sample {
	return []stats.Sample{
		{Kind: opgen.Read, Start: 10 * time.Microsecond, End: 12 * time.Microsecond},
		{Kind: opgen.Insert, Start: 20 * time.Microsecond, End: 25 * time.Microsecond},
		{Kind: opgen.Read, Start: 30 * time.Microsecond, End: 31 * time.Microsecond},
	}
}

func sampleReport() *Report {
	samples := sampleSet()
	return &Report{
		Index:       "hashmap",
		Options:     bench.DefaultOptions(),
		Environment: sysinfo.Environment{Hostname: "bench-1", OS: "linux", Arch: "amd64", NumCPU: 8, TotalMemory: 16 << 30, MemoryReliable: true},
		Load: bench.PhaseResult{
			Phase:     "load",
			Workers:   1,
			Elapsed:   time.Second,
			Totals:    stats.Totals{Completed: 1000, Hits: 1000},
			OpsPerSec: 1000,
		},
		Run: bench.RunResult{
			PhaseResult: bench.PhaseResult{
				Phase:   "run",
				Workers: 2,
				Elapsed: 2 * time.Second,
				Totals: stats.Totals{
					Completed: 3000, Hits: 2900, Misses: 100,
					PerKind: map[opgen.Kind]stats.KindTotals{
						opgen.Read:   {Count: 2000, Hits: 1950, Misses: 50},
						opgen.Insert: {Count: 1000, Hits: 950, Misses: 50},
					},
					PerWorker: []uint64{1500, 1500},
				},
				OpsPerSec: 1500,
				Windows: []bench.Window{
					{End: time.Second, Ops: 1400, OpsPerSec: 1400},
					{End: 2 * time.Second, Ops: 1600, OpsPerSec: 1600},
				},
			},
			Samples:       samples,
			Latency:       stats.Summarize(samples),
			LatencyByKind: stats.SummarizeByKind(samples),
			Counters:      &perfcounter.Counters{Cycles: 6000, Instructions: 12000, CacheReferences: 300, CacheMisses: 30},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatText))
	out := buf.String()

	for _, want := range []string{
		"Overview", "hashmap", "Load", "Run",
		"Latencies", "Samples: 3", "Hardware counters", "2.00",
		"read", "insert", "Per thread: 1500 1500",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Memory\n======", "tracker was off")
}

func TestWriteTextSkippedLoad(t *testing.T) {
	r := sampleReport()
	r.Load = bench.PhaseResult{Phase: "load", Skipped: true}
	r.Run.Counters = nil
	r.Run.Samples, r.Run.Latency, r.Run.LatencyByKind = nil, stats.LatencySummary{}, nil

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatText))
	assert.Contains(t, buf.String(), "Skipped")
	assert.NotContains(t, buf.String(), "Latencies")
	assert.NotContains(t, buf.String(), "Hardware counters")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "hashmap", got["index"])

	run := got["run"].(map[string]any)
	assert.Equal(t, "run", run["phase"])
	assert.NotContains(t, run, "Samples")
	totals := run["totals"].(map[string]any)
	assert.Contains(t, totals["per_kind"], "read")
	opts := got["options"].(map[string]any)
	assert.Equal(t, "operation", opts["mode"])
	assert.Equal(t, "uniform", opts["distribution"])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatYAML))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "hashmap", got["index"])
	run := got["run"].(map[string]any)
	assert.Equal(t, "run", run["phase"], "phase result is inlined")
	assert.Equal(t, 2, run["workers"])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrors(t *testing.T) {
	assert.ErrorIs(t, sampleReport().Write(io.Discard, Format("xml")), ErrUnknownFormat)
	assert.EqualError(t, sampleReport().Write(failingWriter{}, FormatText), "disk full")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, sampleReport().WriteFile(path, FormatJSON))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	err = sampleReport().WriteFile(filepath.Join(t.TempDir(), "r.xml"), Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lat.parquet")
	require.NoError(t, ExportLatencies(path, sampleSet()))

	rows, err := parquet.ReadFile[LatencyRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, LatencyRow{Kind: "insert", StartNs: 20000, EndNs: 25000, LatencyNs: 5000}, rows[1])
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	want := "kind,start_ns,end_ns,latency_ns\nread,10000,12000,2000\ninsert,20000,25000,5000\nread,30000,31000,1000\n"

	plain := filepath.Join(dir, "lat.csv")
	require.NoError(t, ExportLatencies(plain, sampleSet()))
	got, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	records, err := csv.NewReader(bytes.NewReader(got)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"insert", "20000", "25000", "5000"}, records[2])

	compressed := filepath.Join(dir, "lat.csv.zst")
	require.NoError(t, ExportLatencies(compressed, sampleSet()))
	f, err := os.Open(compressed)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	got, err = io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestExportUnknownExtension(t *testing.T) {
	err := ExportLatencies(filepath.Join(t.TempDir(), "lat.xlsx"), sampleSet())
	assert.ErrorIs(t, err, ErrUnknownExport)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		wantErr     bool
	}{
		{"s3://b/k/x.json", "b", "k/x.json", false},
		{"s3://b", "b", "", false},
		{"s3://b/", "b", "", false},
		{"s3:///k", "", "", true},
		{"https://b/k", "", "", true},
	}
	for _, tt := range tests {
		b, k, err := ParseS3URL(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrBadS3URL, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.bucket, b, tt.in)
		assert.Equal(t, tt.key, k, tt.in)
	}
}

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	local := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(local, []byte(`{"index":"hashmap"}`), 0o644))

	fake := &fakeS3{}
	u := NewUploaderWithClient(fake)

	url, err := u.Upload(context.Background(), "s3://results/runs/", local)
	require.NoError(t, err)
	assert.Equal(t, "s3://results/runs/report.json", url)
	assert.Equal(t, "results", fake.bucket)
	assert.Equal(t, "runs/report.json", fake.key)
	assert.Equal(t, "application/json", fake.contentType)
	assert.Equal(t, `{"index":"hashmap"}`, string(fake.body))

	url, err = u.Upload(context.Background(), "s3://results/exact-name.json", local)
	require.NoError(t, err)
	assert.Equal(t, "s3://results/exact-name.json", url)

	fake.err = errors.New("access denied")
	_, err = u.Upload(context.Background(), "s3://results/", local)
	assert.ErrorContains(t, err, "access denied")

	_, err = u.Upload(context.Background(), "s3://results/", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a.csv"))
	assert.Equal(t, "application/zstd", contentType("a.csv.zst"))
	assert.Equal(t, "application/vnd.apache.parquet", contentType("a.parquet"))
	assert.True(t, strings.HasPrefix(contentType("report.txt"), "text/"))
}
