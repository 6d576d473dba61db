// Package reaper marks idle conversation sessions as abandoned.
//
// Sessions are owned by their visitor's browser; when a visitor walks away
// the session stays active until the reaper flips it, keeping the visitor
// token free for a fresh conversation later.
package reaper

import (
	"log/slog"
	"time"

	"github.com/carebridge/leadflow/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep every 15 minutes.
const DefaultSchedule = "*/15 * * * *"

// DefaultIdleWindow is how long a session may sit without activity before it
// is considered abandoned.
const DefaultIdleWindow = 24 * time.Hour

// Reaper periodically abandons idle sessions.
type Reaper struct {
	store      store.Store
	idleWindow time.Duration
	cron       *cron.Cron
}

// New creates a reaper over the given store. A non-positive idle window
// falls back to the default.
func New(st store.Store, idleWindow time.Duration) *Reaper {
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Reaper{store: st, idleWindow: idleWindow, cron: c}
}

// Start schedules the sweep with the given cron expression and begins
// running. An empty schedule uses the default.
func (r *Reaper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce() }); err != nil {
		return err
	}
	r.cron.Start()
	slog.Info("Session reaper started", "schedule", schedule, "idleWindow", r.idleWindow)
	return nil
}

// RunOnce performs a single sweep and returns how many sessions were
// abandoned.
func (r *Reaper) RunOnce() int {
	cutoff := time.Now().Add(-r.idleWindow)
	count, err := r.store.MarkAbandonedBefore(cutoff)
	if err != nil {
		slog.Error("Session reaper sweep failed", "error", err)
		return 0
	}
	if count > 0 {
		slog.Info("Session reaper abandoned idle sessions", "count", count, "cutoff", cutoff)
	}
	return count
}

// Stop stops the cron scheduler and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Debug("Session reaper stopped")
}
