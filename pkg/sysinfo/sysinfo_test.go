package sysinfo

import (
	"runtime"
	"testing"
)

func TestDescribe(t *testing.T) {
	env := Describe()

	if env.OS != runtime.GOOS || env.Arch != runtime.GOARCH {
		t.Errorf("platform = %s/%s, want %s/%s", env.OS, env.Arch, runtime.GOOS, runtime.GOARCH)
	}
	if env.NumCPU < 1 || env.GOMAXPROCS < 1 {
		t.Errorf("cpu counts = %d/%d", env.NumCPU, env.GOMAXPROCS)
	}
	if env.TotalMemory == 0 {
		t.Error("total memory must never be zero")
	}
	if !env.MemoryReliable && env.TotalMemory != DefaultMemoryBytes {
		t.Errorf("unreliable memory should fall back to default, got %d", env.TotalMemory)
	}
	if runtime.GOOS == "linux" && !env.MemoryReliable {
		t.Error("expected reliable memory detection on linux")
	}
}

func TestCacheLineSize(t *testing.T) {
	n := CacheLineSize()
	if n < 32 || n&(n-1) != 0 {
		t.Errorf("cache line size %d is not a plausible power of two", n)
	}
}
