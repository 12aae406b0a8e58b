package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// Watcher drives the run loop continuously at a fixed poll interval.
// Cycles never overlap: if a poll is still running when the next tick
// fires, the tick is skipped.
type Watcher struct {
	runLoop  *RunLoop
	interval time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(runLoop *RunLoop, interval time.Duration) (*Watcher, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("poll interval too short: %s", interval)
	}
	return &Watcher{runLoop: runLoop, interval: interval}, nil
}

// Run polls immediately, then on every interval tick, until ctx is
// cancelled. It blocks until shutdown completes, waiting for any in-flight
// cycle.
func (w *Watcher) Run(ctx context.Context) error {
	w.pollOnce(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", w.interval), func() {
		w.pollOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}

	w.mu.Lock()
	w.cron = c
	w.started = true
	w.mu.Unlock()

	c.Start()
	<-ctx.Done()

	logger.Info("shutting down, waiting for in-flight cycle")
	stopped := c.Stop()
	<-stopped.Done()

	w.mu.Lock()
	w.started = false
	w.mu.Unlock()

	return ctx.Err()
}

func (w *Watcher) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	results, err := w.runLoop.PollOnce(ctx)
	if err != nil {
		logger.Error("poll cycle failed: %v", err)
		return
	}

	var published, skipped, failed int
	for _, r := range results {
		switch r.Result.Status {
		case domain.StatusPublished:
			published++
		case domain.StatusSkipped:
			skipped++
		case domain.StatusFailed:
			failed++
		}
	}
	logger.Info("poll cycle done in %s: %d published, %d skipped, %d failed",
		time.Since(start).Round(time.Millisecond), published, skipped, failed)
}
