package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	enabled bool
	err     error
	handled int
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return h.enabled }

func (h *recordingHandler) Handle(context.Context, slog.Record) error {
	h.handled++
	return h.err
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandlerFansOut(t *testing.T) {
	buf1 := &bytes.Buffer{}
	buf2 := &bytes.Buffer{}
	multi := NewMultiHandler(
		slog.NewTextHandler(buf1, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(buf2, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)

	slog.New(multi).Info("batch flushed", "count", 3)

	assert.Contains(t, buf1.String(), "batch flushed")
	assert.Contains(t, buf1.String(), "count=3")
	assert.Contains(t, buf2.String(), "batch flushed")
}

func TestMultiHandlerEnabledPerLevel(t *testing.T) {
	multi := NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	assert.True(t, multi.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, multi.Enabled(context.Background(), slog.LevelDebug))
}

func TestMultiHandlerSkipsDisabledHandlers(t *testing.T) {
	off := &recordingHandler{enabled: false}
	on := &recordingHandler{enabled: true}
	multi := NewMultiHandler(off, on)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	assert.NoError(t, multi.Handle(context.Background(), record))
	assert.Zero(t, off.handled)
	assert.Equal(t, 1, on.handled)
}

func TestMultiHandlerFirstErrorDoesNotStopFanOut(t *testing.T) {
	failing := &recordingHandler{enabled: true, err: errors.New("disk full")}
	healthy := &recordingHandler{enabled: true}
	multi := NewMultiHandler(failing, healthy)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	err := multi.Handle(context.Background(), record)

	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, healthy.handled, "remaining handlers still receive the record")
}

func TestMultiHandlerWithAttrsAndGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	multi := NewMultiHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := multi.WithAttrs([]slog.Attr{slog.String("component", "ingest")}).WithGroup("event")
	slog.New(handler).Info("dropped", "id", "123")

	output := buf.String()
	assert.Contains(t, output, "component=ingest")
	assert.Contains(t, output, "event.id=123")
}

func TestMultiHandlerEmpty(t *testing.T) {
	multi := NewMultiHandler()

	assert.False(t, multi.Enabled(context.Background(), slog.LevelInfo))
	assert.NotPanics(t, func() {
		slog.New(multi).Info("test")
	})
}
