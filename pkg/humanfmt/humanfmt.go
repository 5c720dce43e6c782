// Package humanfmt renders counts, rates, sizes and durations for log
// companions and the text report.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

type unit struct {
	scale  float64
	suffix string
}

// Decimal multipliers for counts and rates.
var decimal = []unit{
	{1e12, "T"},
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "K"},
}

// IEC multipliers for byte sizes.
var binary = []unit{
	{1 << 40, " TiB"},
	{1 << 30, " GiB"},
	{1 << 20, " MiB"},
	{1 << 10, " KiB"},
}

func scaled(v float64, units []unit) (float64, string, bool) {
	for _, u := range units {
		if v >= u.scale {
			return v / u.scale, u.suffix, true
		}
	}
	return v, "", false
}

// Bytes formats a byte count, e.g. "1.50 MiB" or "512 B".
func Bytes(b int64) string {
	if v, suffix, ok := scaled(float64(b), binary); ok && b > 0 {
		return fmt.Sprintf("%.2f%s", v, suffix)
	}
	return fmt.Sprintf("%d B", b)
}

// BytesUint64 is Bytes for uint64.
func BytesUint64(b uint64) string {
	return Bytes(int64(b))
}

// Count formats a count, e.g. "1.23M" or "789".
func Count(n int64) string {
	if v, suffix, ok := scaled(float64(n), decimal); ok && n > 0 {
		return fmt.Sprintf("%.2f%s", v, suffix)
	}
	return strconv.FormatInt(n, 10)
}

// CountUint64 is Count for uint64.
func CountUint64(n uint64) string {
	return Count(int64(n))
}

// Rate formats n operations over d as "<count> ops/s".
func Rate(n uint64, d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return RatePerSec(float64(n) / d.Seconds())
}

// RatePerSec formats an operations-per-second figure.
func RatePerSec(ops float64) string {
	if v, suffix, ok := scaled(ops, decimal); ok {
		return fmt.Sprintf("%.2f%s ops/s", v, suffix)
	}
	return fmt.Sprintf("%.0f ops/s", ops)
}

// Duration formats d compactly: "1.23s", "45.6ms", "789.0µs", "1m30s",
// "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return trimZero(d/time.Hour, "h", (d%time.Hour)/time.Minute, "m")
	case d >= time.Minute:
		return trimZero(d/time.Minute, "m", (d%time.Minute)/time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func trimZero(major time.Duration, majorUnit string, minor time.Duration, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}

// Latency formats a latency in nanoseconds with a fixed unit so that
// columns line up in the text report.
func Latency(d time.Duration) string {
	return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
}
