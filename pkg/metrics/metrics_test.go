package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowAccumulates(t *testing.T) {
	m := New()
	m.Window("run", 1000, time.Second)
	m.Window("run", 500, 250*time.Millisecond)
	m.Window("load", 10, time.Second)
	m.Misses("run", 3)

	assert.Equal(t, 1500.0, testutil.ToFloat64(m.ops.WithLabelValues("run")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.ops.WithLabelValues("load")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.throughput))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.misses.WithLabelValues("run")))
}

func TestStateAndLatency(t *testing.T) {
	m := New()
	m.SetState(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.state))

	m.ObserveLatency("read", time.Microsecond)
	m.ObserveLatency("read", 2*time.Microsecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestServeExposesMetrics(t *testing.T) {
	m := New()
	m.Window("run", 42, time.Second)

	s, err := Serve("127.0.0.1:0", m, true, zerolog.Nop())
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
	}()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `idxbench_operations_total{phase="run"} 42`)

	resp, err = http.Get("http://" + s.Addr() + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeBadAddr(t *testing.T) {
	_, err := Serve("256.0.0.1:bad", New(), false, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "listen metrics"))
}
