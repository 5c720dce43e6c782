package bench

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/idxbench/pkg/logging"
	"github.com/eunmann/idxbench/pkg/stats"
)

// sampler snapshots the completed counters of a phase every period. It
// reads the records with atomic loads only.
type sampler struct {
	phase    string
	period   time.Duration
	recs     []stats.Record
	observer Observer
	log      zerolog.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	windows []Window
}

func newSampler(phase string, period time.Duration, recs []stats.Record, obs Observer, log zerolog.Logger) *sampler {
	return &sampler{
		phase:    phase,
		period:   period,
		recs:     recs,
		observer: obs,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *sampler) start(begin time.Time) {
	go s.loop(begin)
}

// finish stops the sampler after the workers joined and returns every
// window, the last one possibly shorter than the period.
func (s *sampler) finish() []Window {
	close(s.stopCh)
	<-s.doneCh
	return s.windows
}

func (s *sampler) loop(begin time.Time) {
	defer close(s.doneCh)

	var (
		last    uint64
		lastEnd time.Duration
	)
	record := func() {
		end := time.Since(begin)
		cur := stats.Completed(s.recs)
		delta, span := cur-last, end-lastEnd
		last, lastEnd = cur, end
		if delta == 0 && span <= 0 {
			return
		}

		w := Window{End: end, Ops: delta, OpsPerSec: throughput(delta, span)}
		s.windows = append(s.windows, w)
		if s.observer != nil {
			s.observer.Window(s.phase, delta, span)
		}
		logging.WindowComplete(s.log, s.phase, span).
			Count("operations", delta).
			Rate(delta).
			LogDebug("sampling window")
	}

	if s.period <= 0 {
		<-s.stopCh
		record()
		return
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			record()
			return
		case <-ticker.C:
			record()
		}
	}
}
