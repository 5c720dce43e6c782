//go:build freebsd || openbsd || netbsd || dragonfly

package sysinfo

import "golang.org/x/sys/unix"

func totalMemory() (uint64, bool) {
	for _, name := range []string{"hw.physmem", "hw.realmem"} {
		if mem, err := unix.SysctlUint64(name); err == nil && mem > 0 {
			return mem, true
		}
	}
	return 0, false
}

func kernelRelease() string {
	v, _ := unix.Sysctl("kern.osrelease")
	return v
}

func cpuModel() string {
	v, _ := unix.Sysctl("hw.model")
	return v
}
