// Package sysinfo describes the machine a benchmark runs on.
//
// Platform probes fill in what they can; anything they cannot determine is
// left at its zero value and flagged, never guessed.
package sysinfo

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// DefaultMemoryBytes is reported when total memory cannot be detected.
const DefaultMemoryBytes uint64 = 4 << 30

// Environment is a snapshot of the host and runtime.
type Environment struct {
	Hostname       string   `json:"hostname" yaml:"hostname"`
	OS             string   `json:"os" yaml:"os"`
	Arch           string   `json:"arch" yaml:"arch"`
	Kernel         string   `json:"kernel,omitempty" yaml:"kernel,omitempty"`
	CPUModel       string   `json:"cpu_model,omitempty" yaml:"cpu_model,omitempty"`
	NumCPU         int      `json:"num_cpu" yaml:"num_cpu"`
	GOMAXPROCS     int      `json:"gomaxprocs" yaml:"gomaxprocs"`
	GoVersion      string   `json:"go_version" yaml:"go_version"`
	CacheLineSize  int      `json:"cache_line_size" yaml:"cache_line_size"`
	TotalMemory    uint64   `json:"total_memory" yaml:"total_memory"`
	MemoryReliable bool     `json:"memory_reliable" yaml:"memory_reliable"`
	CPUFeatures    []string `json:"cpu_features,omitempty" yaml:"cpu_features,omitempty"`
}

// Describe probes the current host.
func Describe() Environment {
	host, _ := os.Hostname()
	env := Environment{
		Hostname:      host,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		GoVersion:     runtime.Version(),
		CacheLineSize: CacheLineSize(),
		Kernel:        kernelRelease(),
		CPUModel:      cpuModel(),
		CPUFeatures:   cpuFeatures(),
	}

	env.TotalMemory, env.MemoryReliable = totalMemory()
	if !env.MemoryReliable || env.TotalMemory == 0 {
		env.TotalMemory, env.MemoryReliable = DefaultMemoryBytes, false
	}
	return env
}

// CacheLineSize returns the cache-line width the runtime pads for.
func CacheLineSize() int {
	return int(unsafe.Sizeof(cpu.CacheLinePad{}))
}

func cpuFeatures() []string {
	var f []string
	switch runtime.GOARCH {
	case "amd64", "386":
		add := func(ok bool, name string) {
			if ok {
				f = append(f, name)
			}
		}
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasAVX512F, "avx512f")
		add(cpu.X86.HasBMI2, "bmi2")
		add(cpu.X86.HasPOPCNT, "popcnt")
		add(cpu.X86.HasSSE42, "sse4.2")
	case "arm64":
		if cpu.ARM64.HasATOMICS {
			f = append(f, "lse")
		}
		if cpu.ARM64.HasCRC32 {
			f = append(f, "crc32")
		}
	}
	return f
}
