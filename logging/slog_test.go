package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "a=1",
		"level=INFO", "msg=inf", "b=2",
		"level=WARN", "msg=wrn", "c=3",
		"level=ERROR", "msg=err", "d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("component", "auth").Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "component=auth")
	assert.Contains(t, out, "k=v")
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn")
	require.NoError(t, err)

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown", "address", "0xabc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"address":"0xabc"`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
