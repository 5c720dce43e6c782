//go:build darwin

package sysinfo

import "golang.org/x/sys/unix"

func totalMemory() (uint64, bool) {
	mem, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, false
	}
	return mem, true
}

func kernelRelease() string {
	v, _ := unix.Sysctl("kern.osrelease")
	return v
}

func cpuModel() string {
	v, _ := unix.Sysctl("machdep.cpu.brand_string")
	return v
}
