//go:build !linux

package perfcounter

type unsupported struct{}

// New returns a profiler that is never available on this platform.
func New() Profiler {
	return unsupported{}
}

func (unsupported) Start() error {
	return ErrUnsupported
}

func (unsupported) Stop() (Counters, error) {
	return Counters{}, ErrNotStarted
}
