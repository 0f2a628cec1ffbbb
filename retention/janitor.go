// Package retention deletes conversations past their time-to-live.
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// TTL after which an inactive conversation is eligible for deletion.
	TTL = 3 * 24 * time.Hour
	// DefaultInterval between sweeps.
	DefaultInterval = 24 * time.Hour
)

// Store is the slice of the conversation store the janitor needs.
type Store interface {
	DeleteExpiredConversations(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor sweeps expired conversations once at start and then on a fixed
// period, concurrently with request-serving traffic. The store's
// delete-where-still-matches semantics guarantee a conversation that
// receives a message mid-sweep survives it.
type Janitor struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewJanitor creates a janitor with the default 24h interval.
func NewJanitor(store Store, logger *slog.Logger) *Janitor {
	return NewJanitorWithInterval(store, logger, DefaultInterval)
}

// NewJanitorWithInterval creates a janitor with a custom interval.
func NewJanitorWithInterval(store Store, logger *slog.Logger, interval time.Duration) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "retention.janitor"),
		now:      time.Now,
	}
}

// Start begins the periodic sweep. The first sweep runs immediately.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go j.run(sweepCtx)
}

// Stop cancels the sweep loop and waits for it to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel := j.cancel
	done := j.done
	j.mu.Unlock()

	cancel()
	<-done
}

func (j *Janitor) run(ctx context.Context) {
	defer func() {
		j.mu.Lock()
		j.running = false
		close(j.done)
		j.mu.Unlock()
	}()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopping")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	started := j.now()
	deleted, err := j.Sweep(ctx)
	if err != nil {
		j.logger.Error("sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("cleaned up expired conversations",
			"deleted", deleted,
			"duration", time.Since(started),
		)
	}
}

// Sweep deletes all conversations whose last activity is older than the
// TTL, returning how many were removed. Zero matches is a normal result,
// not an error.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	return j.store.DeleteExpiredConversations(ctx, j.now().Add(-TTL))
}

// IsRunning reports whether the periodic loop is active.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
