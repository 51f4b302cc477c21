package heartbeat

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewReporterValidation(t *testing.T) {
	src := func() Snapshot { return Snapshot{} }

	_, err := NewReporter("not a schedule", src)
	assert.ErrorContains(t, err, "invalid schedule")

	_, err = NewReporter("@every 1m", nil)
	assert.ErrorContains(t, err, "source is required")

	r, err := NewReporter("", src)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, r.schedule)

	_, err = NewReporter("*/5 * * * *", src)
	assert.NoError(t, err)
}

func TestReportTracksUnhealthyStreak(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	healthy := false
	r, err := NewReporter("@every 1m", func() Snapshot {
		return Snapshot{State: "disconnected", Healthy: healthy, Attempts: 4}
	}, WithStaleAfter(2), WithLogger(logger))
	require.NoError(t, err)

	r.Report()
	assert.Equal(t, 1, r.Unhealthy())
	assert.NotContains(t, out.String(), "backend link down")

	r.Report()
	assert.Equal(t, 2, r.Unhealthy())
	assert.Contains(t, out.String(), "backend link down")
	assert.Equal(t, int64(4), r.Last().Attempts)

	healthy = true
	r.Report()
	assert.Equal(t, 0, r.Unhealthy())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines[len(lines)-1], "msg=heartbeat")
}

func TestStartStopsOnCancel(t *testing.T) {
	r, err := NewReporter("@every 1h", func() Snapshot { return Snapshot{} })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop")
	}
}
