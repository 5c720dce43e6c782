//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package sysinfo

func totalMemory() (uint64, bool) { return 0, false }

func kernelRelease() string { return "" }

func cpuModel() string { return "" }
