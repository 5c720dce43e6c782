package memdiag

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var sink [][]byte

func TestSinceSubtractsCumulative(t *testing.T) {
	before := Read()
	for i := 0; i < 100; i++ {
		sink = append(sink, make([]byte, 1024))
	}
	after := Read()
	sink = nil

	d := after.Since(before)
	if d.TotalAlloc < 100*1024 {
		t.Errorf("TotalAlloc delta = %d, want >= %d", d.TotalAlloc, 100*1024)
	}
	if d.HeapAlloc != after.HeapAlloc {
		t.Error("gauges must keep the current value")
	}
}

func TestForceGCAdvancesCycles(t *testing.T) {
	before := Read()
	after := ForceGC()
	if after.NumGC <= before.NumGC {
		t.Errorf("NumGC %d -> %d, want increase", before.NumGC, after.NumGC)
	}
}

func TestTrackerDisabledIsNoop(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(DefaultConfig(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	tr.Start()
	tr.SetPhase("run")
	tr.Stop()
	if buf.Len() != 0 {
		t.Errorf("disabled tracker logged: %s", buf.String())
	}
}

func TestTrackerLogsAndTracksPeak(t *testing.T) {
	var buf syncBuffer
	tr := NewTracker(Config{Enabled: true, LogInterval: 5 * time.Millisecond}, zerolog.New(&buf).Level(zerolog.DebugLevel))
	tr.Start()
	tr.Start()
	tr.SetPhase("load")
	time.Sleep(20 * time.Millisecond)
	tr.Stop()
	tr.Stop()

	out := buf.String()
	for _, want := range []string{`"reason":"phase_change"`, `"reason":"shutdown"`, `"phase":"load"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in output", want)
		}
	}
	if tr.PeakHeap() == 0 {
		t.Error("expected non-zero peak heap")
	}
}

func TestRegisterPprof(t *testing.T) {
	mux := http.NewServeMux()
	RegisterPprof(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
