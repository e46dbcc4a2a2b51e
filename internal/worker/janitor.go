// Package worker provides background workers that keep the ledger caches tidy.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/utils"
)

// Janitor periodically evicts expired entries from in-process caches.
// Remote backends expire on their own and need no sweeping.
type Janitor struct {
	sweepers []cache.Sweeper

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewJanitor creates a janitor over the given caches.
func NewJanitor(sweepers ...cache.Sweeper) *Janitor {
	return &Janitor{sweepers: sweepers}
}

// Start begins sweeping every interval. Calling Start on a running janitor
// is a no-op.
func (j *Janitor) Start(interval time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopChan != nil {
		utils.Warn("cache janitor is already running")
		return
	}
	if interval <= 0 {
		utils.Warn("cache janitor disabled", slog.String("interval", interval.String()))
		return
	}

	j.stopChan = make(chan struct{})
	j.done = make(chan struct{})

	utils.Info("starting cache janitor",
		slog.String("interval", interval.String()),
		slog.Int("caches", len(j.sweepers)),
	)

	go j.loop(interval, j.stopChan, j.done)
}

// Stop signals the loop to exit and waits for it, or for ctx to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	stop, done := j.stopChan, j.done
	j.stopChan, j.done = nil, nil
	j.mu.Unlock()

	if stop == nil {
		return nil
	}

	utils.Info("stopping cache janitor")
	close(stop)

	select {
	case <-done:
		utils.Info("cache janitor stopped gracefully")
		return nil
	case <-ctx.Done():
		utils.Warn("cache janitor stop timed out")
		return ctx.Err()
	}
}

func (j *Janitor) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep runs one eviction pass over every cache and returns the number of
// entries dropped.
func (j *Janitor) Sweep() int {
	total := 0
	for _, s := range j.sweepers {
		total += s.Cleanup()
	}
	if total > 0 {
		utils.Debug("cache janitor evicted entries", slog.Int("evicted", total))
	}
	return total
}
