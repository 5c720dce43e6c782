package logctx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eunmann/idxbench/pkg/logging"
)

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(zerolog.New(&buf).With().Str("global", "yes").Logger())
	defer logging.Init(false, false)

	//nolint:staticcheck // nil context is part of the contract
	for _, ctx := range []context.Context{nil, context.Background()} {
		buf.Reset()
		logger := FromContext(ctx)
		logger.Info().Msg("test")
		if !strings.Contains(buf.String(), `"global":"yes"`) {
			t.Errorf("expected global logger, got: %s", buf.String())
		}
	}
}

func TestWithLogger_AndFromContext(t *testing.T) {
	var buf bytes.Buffer
	custom := zerolog.New(&buf).With().Str("custom", "field").Logger()

	logger := FromContext(WithLogger(context.Background(), custom))
	logger.Info().Msg("test")

	if !strings.Contains(buf.String(), `"custom":"field"`) {
		t.Errorf("expected custom field, got: %s", buf.String())
	}
}

func TestFieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	ctx = WithStr(ctx, "index", "pebble")
	ctx = WithPhase(ctx, "run")
	ctx = WithWorker(ctx, 3)

	logger := FromContext(ctx)
	logger.Info().Msg("test")

	out := buf.String()
	for _, want := range []string{`"index":"pebble"`, `"phase":"run"`, `"worker":3`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestWithLogger_NilContext(t *testing.T) {
	var buf bytes.Buffer
	//nolint:staticcheck // nil context is part of the contract
	ctx := WithLogger(nil, zerolog.New(&buf))
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	logger := FromContext(ctx)
	logger.Info().Msg("x")
	if buf.Len() == 0 {
		t.Error("expected output")
	}
}
