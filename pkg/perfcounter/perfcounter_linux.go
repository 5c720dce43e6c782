//go:build linux

package perfcounter

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

var hwConfig = [numEvents]uint64{
	evCycles:          unix.PERF_COUNT_HW_CPU_CYCLES,
	evInstructions:    unix.PERF_COUNT_HW_INSTRUCTIONS,
	evCacheReferences: unix.PERF_COUNT_HW_CACHE_REFERENCES,
	evCacheMisses:     unix.PERF_COUNT_HW_CACHE_MISSES,
	evBranchMisses:    unix.PERF_COUNT_HW_BRANCH_MISSES,
}

type perfProfiler struct {
	fds     [numEvents][]int
	threads int
	start   time.Time
}

// New returns a perf-event profiler.
func New() Profiler {
	return &perfProfiler{}
}

func (p *perfProfiler) Start() error {
	tids, err := threadIDs()
	if err != nil {
		return fmt.Errorf("%w: list threads: %w", ErrUnsupported, err)
	}

	for e := event(0); e < numEvents; e++ {
		for _, tid := range tids {
			fd, err := openEvent(hwConfig[e], tid)
			if err != nil {
				if len(p.fds[e]) == 0 {
					p.closeAll()
					return fmt.Errorf("%w: perf_event_open: %w", ErrUnsupported, err)
				}
				// The thread may have exited since the listing.
				continue
			}
			p.fds[e] = append(p.fds[e], fd)
		}
	}
	p.threads = len(p.fds[evCycles])

	for e := range p.fds {
		for _, fd := range p.fds[e] {
			_ = unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0)
			_ = unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0)
		}
	}
	p.start = time.Now()
	return nil
}

func (p *perfProfiler) Stop() (Counters, error) {
	if p.threads == 0 {
		return Counters{}, ErrNotStarted
	}
	elapsed := time.Since(p.start)
	defer p.closeAll()

	c := Counters{Elapsed: elapsed, Threads: p.threads}
	var buf [8]byte
	for e := range p.fds {
		var sum uint64
		for _, fd := range p.fds[e] {
			_ = unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0)
			n, err := unix.Read(fd, buf[:])
			if err != nil {
				return Counters{}, fmt.Errorf("read counter: %w", err)
			}
			if n == len(buf) {
				sum += binary.NativeEndian.Uint64(buf[:])
			}
		}
		c.set(event(e), sum)
	}
	return c, nil
}

func (p *perfProfiler) closeAll() {
	for e := range p.fds {
		for _, fd := range p.fds[e] {
			_ = unix.Close(fd)
		}
		p.fds[e] = nil
	}
	p.threads = 0
}

func openEvent(config uint64, tid int) (int, error) {
	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_HARDWARE,
		Config: config,
		Bits:   unix.PerfBitDisabled | unix.PerfBitInherit | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}
	attr.Size = uint32(unsafe.Sizeof(attr))
	return unix.PerfEventOpen(&attr, tid, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
}

func threadIDs() ([]int, error) {
	entries, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		if tid, err := strconv.Atoi(e.Name()); err == nil {
			tids = append(tids, tid)
		}
	}
	return tids, nil
}
