// Package heartbeat periodically logs the relay's link status and warns
// when the backend link stays down.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	robfigcron "github.com/robfig/cron/v3"
)

// DefaultSchedule reports once a minute.
const DefaultSchedule = "@every 1m"

// DefaultStaleAfter is how many consecutive unhealthy reports trigger a warning.
const DefaultStaleAfter = 3

// Snapshot is a point-in-time view of the relay.
type Snapshot struct {
	State      string
	Healthy    bool
	Sockets    int
	Attempts   int64
	Reconnects int64
	Handled    int64
	Skipped    int64
	Failed     int64
}

// Source produces the current snapshot.
type Source func() Snapshot

// Reporter logs a Snapshot on a cron schedule.
type Reporter struct {
	schedule   string
	source     Source
	staleAfter int
	logger     *slog.Logger

	mu        sync.Mutex
	unhealthy int
	last      Snapshot
}

type Option func(*Reporter)

func WithStaleAfter(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.staleAfter = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReporter validates schedule (standard 5-field cron or a descriptor
// such as "@every 30s") and returns a Reporter.
func NewReporter(schedule string, source Source, opts ...Option) (*Reporter, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := robfigcron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("heartbeat: invalid schedule %q: %w", schedule, err)
	}
	if source == nil {
		return nil, fmt.Errorf("heartbeat: status source is required")
	}

	r := &Reporter{
		schedule:   schedule,
		source:     source,
		staleAfter: DefaultStaleAfter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "heartbeat")
	return r, nil
}

// Start runs the schedule until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) error {
	c := robfigcron.New()
	if _, err := c.AddFunc(r.schedule, r.Report); err != nil {
		return fmt.Errorf("heartbeat: schedule: %w", err)
	}
	c.Start()
	r.logger.Info("heartbeat: started", "schedule", r.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("heartbeat: stopped")
	return ctx.Err()
}

// Report takes one snapshot and logs it.
func (r *Reporter) Report() {
	snap := r.source()

	r.mu.Lock()
	r.last = snap
	if snap.Healthy {
		r.unhealthy = 0
	} else {
		r.unhealthy++
	}
	unhealthy := r.unhealthy
	r.mu.Unlock()

	attrs := []any{
		"state", snap.State,
		"sockets", snap.Sockets,
		"attempts", snap.Attempts,
		"reconnects", snap.Reconnects,
		"handled", snap.Handled,
		"skipped", snap.Skipped,
		"failed", snap.Failed,
	}
	if unhealthy >= r.staleAfter {
		r.logger.Warn("heartbeat: backend link down", append(attrs, "reports", unhealthy)...)
		return
	}
	r.logger.Info("heartbeat", attrs...)
}

// Unhealthy returns the number of consecutive unhealthy reports.
func (r *Reporter) Unhealthy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unhealthy
}

// Last returns the most recent snapshot.
func (r *Reporter) Last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
