package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nota/internal/amqp"
	"nota/internal/core"
	"nota/internal/sheets/memory"
	"nota/internal/storage"
)

func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	return storage.NewMemoryStore(
		core.NewRecord(core.Fields{Date: core.NewDate(2024, 3, 1), Item: "beras", Quantity: 2, UnitPrice: 15000}),
		core.NewRecord(core.Fields{Date: core.NewDate(2024, 3, 2), Item: "minyak", Quantity: 3, UnitPrice: 10000}),
	)
}

func TestSyncWorker_SyncNowMirrorsStore(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	mirror := memory.New()
	w := NewSyncWorker(store, mirror)

	require.NoError(t, w.SyncNow(ctx))

	want, err := store.LoadAll(ctx)
	require.NoError(t, err)
	got, err := mirror.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, w.Syncs())
}

func TestSyncWorker_HandleChangeSkipsStaleMessages(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(seededStore(t), mirror)

	stale := amqp.NewChangeMessage(amqp.OpCreate, "a", "2024-03-01", 1, 1)
	stale.Timestamp = time.Now().Add(-time.Minute)

	require.NoError(t, w.HandleChange(ctx, stale), "first message always syncs")
	require.Equal(t, 1, mirror.Replaces())

	require.NoError(t, w.HandleChange(ctx, stale))
	assert.Equal(t, 1, mirror.Replaces(), "message older than last sync is skipped")

	fresh := amqp.NewChangeMessage(amqp.OpDelete, "a", "2024-03-01", 0, 2)
	fresh.Timestamp = time.Now().Add(time.Second)
	require.NoError(t, w.HandleChange(ctx, fresh))
	assert.Equal(t, 2, mirror.Replaces())
}

func TestSyncWorker_MirrorFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	mirror.FailWith(errors.New("quota exceeded"))
	w := NewSyncWorker(seededStore(t), mirror)

	err := w.HandleChange(ctx, amqp.NewChangeMessage(amqp.OpCreate, "a", "", 1, 1))
	require.Error(t, err)
	assert.Zero(t, w.Syncs())
}

func TestSyncWorker_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mirror := memory.New()
	w := NewSyncWorker(seededStore(t), mirror)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return mirror.Replaces() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
