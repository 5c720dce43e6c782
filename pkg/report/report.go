// Package report renders benchmark results and ships them.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eunmann/idxbench/pkg/bench"
	"github.com/eunmann/idxbench/pkg/fileutil"
	"github.com/eunmann/idxbench/pkg/sysinfo"
)

// ErrUnknownFormat indicates an output format other than text, json or yaml.
var ErrUnknownFormat = errors.New("unknown report format")

// Format selects how a Report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json, yaml and yml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Report is everything one benchmark invocation produced.
type Report struct {
	Index       string              `json:"index" yaml:"index"`
	Options     bench.Options       `json:"options" yaml:"options"`
	Environment sysinfo.Environment `json:"environment" yaml:"environment"`
	Load        bench.PhaseResult   `json:"load" yaml:"load"`
	Run         bench.RunResult     `json:"run" yaml:"run"`
	// PeakHeap is the largest heap seen by the memory tracker, 0 when it
	// was off.
	PeakHeap uint64 `json:"peak_heap,omitempty" yaml:"peak_heap,omitempty"`
}

// Write renders r to w in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	switch f {
	case FormatText, "":
		return r.writeText(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// WriteFile renders r into path, replacing it only once rendering
// succeeded.
func (r *Report) WriteFile(path string, f Format) error {
	if err := fileutil.WriteAtomic(path, func(w io.Writer) error { return r.Write(w, f) }); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
