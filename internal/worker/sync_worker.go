package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nota/internal/amqp"
	"nota/internal/sheets"
	"nota/internal/storage"
)

// SyncWorker mirrors the stored collection into a spreadsheet. Every sync is
// a full rewrite: the store is read in one piece and the mirror replaced.
type SyncWorker struct {
	store  storage.Store
	mirror sheets.RecordMirror

	mu         sync.Mutex
	lastSynced time.Time
	syncs      int
}

func NewSyncWorker(store storage.Store, mirror sheets.RecordMirror) *SyncWorker {
	return &SyncWorker{
		store:  store,
		mirror: mirror,
	}
}

// HandleChange processes a change message from AMQP. A message stamped
// before the start of the last successful sync is already reflected in the
// mirror and is acknowledged without work.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.mu.Lock()
	last := w.lastSynced
	w.mu.Unlock()

	if !last.IsZero() && msg.Timestamp.Before(last) {
		slog.DebugContext(ctx, "Skipping change already mirrored",
			"op", msg.Op,
			"version", msg.Version,
			"timestamp", msg.Timestamp,
			"last_synced", last)
		return nil
	}

	slog.InfoContext(ctx, "Processing change message",
		"op", msg.Op,
		"id", msg.ID,
		"version", msg.Version)

	return w.SyncNow(ctx)
}

// SyncNow reads the whole store and replaces the mirror with it.
func (w *SyncWorker) SyncNow(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := time.Now()
	records, err := w.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}

	w.lastSynced = started
	w.syncs++
	slog.InfoContext(ctx, "Mirror synchronized",
		"records", len(records),
		"duration", time.Since(started))
	return nil
}

// Syncs reports how many syncs completed.
func (w *SyncWorker) Syncs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs
}

// Run syncs once immediately and then every interval until ctx is done.
// Failed syncs are logged and retried on the next tick.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.SyncNow(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial sync failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Periodic sync stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := w.SyncNow(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}
