package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/idxbench/pkg/fileutil"
	"github.com/eunmann/idxbench/pkg/stats"
)

// ErrUnknownExport indicates a latency export path with an unsupported
// extension.
var ErrUnknownExport = errors.New("unsupported latency export format")

// LatencyRow is one exported latency sample. Offsets are nanoseconds since
// the start of the run phase.
type LatencyRow struct {
	Kind      string `parquet:"kind,dict"`
	StartNs   int64  `parquet:"start_ns"`
	EndNs     int64  `parquet:"end_ns"`
	LatencyNs int64  `parquet:"latency_ns"`
}

func toRow(s stats.Sample) LatencyRow {
	return LatencyRow{
		Kind:      s.Kind.String(),
		StartNs:   int64(s.Start),
		EndNs:     int64(s.End),
		LatencyNs: int64(s.Latency()),
	}
}

// ExportLatencies writes samples to path. The extension picks the format:
// .parquet (zstd-compressed columns), .csv.zst or .csv. The file appears
// only once it is complete.
func ExportLatencies(path string, samples []stats.Sample) error {
	var write func(io.Writer, []stats.Sample) error
	switch {
	case strings.HasSuffix(path, ".parquet"):
		write = writeParquet
	case strings.HasSuffix(path, ".csv.zst"):
		write = writeCSVZstd
	case strings.HasSuffix(path, ".csv"):
		write = writeCSV
	default:
		return fmt.Errorf("%w: %s", ErrUnknownExport, path)
	}
	if err := fileutil.WriteAtomic(path, func(w io.Writer) error { return write(w, samples) }); err != nil {
		return fmt.Errorf("export latencies to %s: %w", path, err)
	}
	return nil
}

const parquetBatch = 4096

func writeParquet(w io.Writer, samples []stats.Sample) error {
	pw := parquet.NewGenericWriter[LatencyRow](w, parquet.Compression(&parquet.Zstd))
	batch := make([]LatencyRow, 0, parquetBatch)
	for i, s := range samples {
		batch = append(batch, toRow(s))
		if len(batch) == parquetBatch || i == len(samples)-1 {
			if _, err := pw.Write(batch); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

func writeCSVZstd(w io.Writer, samples []stats.Sample) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := writeCSV(enc, samples); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish zstd stream: %w", err)
	}
	return nil
}

var csvHeader = []string{"kind", "start_ns", "end_ns", "latency_ns"}

func writeCSV(w io.Writer, samples []stats.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(csvHeader))
	for _, s := range samples {
		r := toRow(s)
		record[0] = r.Kind
		record[1] = strconv.FormatInt(r.StartNs, 10)
		record[2] = strconv.FormatInt(r.EndNs, 10)
		record[3] = strconv.FormatInt(r.LatencyNs, 10)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
