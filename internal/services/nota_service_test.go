package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nota/internal/amqp"
	"nota/internal/core"
	"nota/internal/storage"
)

var errDiskFull = errors.New("disk full")

// failingStore wraps a memory store and fails SaveAll on demand.
type failingStore struct {
	*storage.MemoryStore
	failSave bool
	loadErr  error
}

func (f *failingStore) LoadAll(ctx context.Context) ([]core.Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.LoadAll(ctx)
}

func (f *failingStore) SaveAll(ctx context.Context, records []core.Record) error {
	if f.failSave {
		return errDiskFull
	}
	return f.MemoryStore.SaveAll(ctx, records)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*amqp.ChangeMessage
	err      error
	closed   bool
}

func (p *recordingPublisher) PublishChange(_ context.Context, msg *amqp.ChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) PublishChange(ctx context.Context, _ *amqp.ChangeMessage) error {
	p.entered <- struct{}{}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *blockingPublisher) Close() error { return nil }

func fields(date core.Date, item string, qty, price int64) core.Fields {
	return core.Fields{Date: date, Item: item, Quantity: qty, UnitPrice: price}
}

func openService(t *testing.T, seed ...core.Record) (*NotaService, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(seed...)
	svc := NewNotaService(store, nil)
	require.NoError(t, svc.Open(context.Background()))
	return svc, store
}

func TestNotaService_NotOpen(t *testing.T) {
	svc := NewNotaService(storage.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Records()
	assert.ErrorIs(t, err, ErrNotOpen)
	_, _, err = svc.Create(ctx, fields(core.NewDate(2024, 3, 1), "x", 1, 1000))
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, svc.DeleteAt(ctx, 0), ErrNotOpen)
	assert.ErrorIs(t, svc.Reload(ctx), ErrNotOpen)
}

func TestNotaService_OpenMalformedStore(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), loadErr: core.ErrMalformedStore}
	svc := NewNotaService(store, nil)

	err := svc.Open(context.Background())
	require.ErrorIs(t, err, core.ErrMalformedStore)

	_, err = svc.Records()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestNotaService_CreateComputesTotalAndPersists(t *testing.T) {
	ctx := context.Background()
	svc, store := openService(t)
	day := core.NewDate(2024, 3, 1)

	rec, _, err := svc.Create(ctx, fields(day, "beras", 2, 15000))
	require.NoError(t, err)
	assert.Equal(t, int64(30000), rec.Total)
	assert.NotEmpty(t, rec.ID)

	persisted, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, rec, persisted[0])

	totals, err := svc.Totals(&day)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), totals.Overall)
	assert.Equal(t, int64(30000), totals.Day.Total)
}

func TestNotaService_DailyScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t)
	march1 := core.NewDate(2024, 3, 1)
	march2 := core.NewDate(2024, 3, 2)

	for want, f := range []core.Fields{
		fields(march1, "beras", 2, 15000),
		fields(march1, "gula", 1, 5000),
		fields(march2, "minyak", 3, 10000),
	} {
		_, index, err := svc.Create(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, want, index)
	}

	totals, err := svc.Totals(&march1)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), totals.Day.Total)
	assert.Equal(t, int64(65000), totals.Overall)

	listed, err := svc.List(&march2)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 2, listed[0].Index)

	daily, err := svc.DailyTotals()
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "Jumat", daily[0].DayName)
}

func TestNotaService_UpdateAtRecomputesTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t)
	day := core.NewDate(2024, 3, 1)
	created, _, err := svc.Create(ctx, fields(day, "beras", 2, 15000))
	require.NoError(t, err)

	updated, err := svc.UpdateAt(ctx, 0, fields(day, "beras", 3, 15000))
	require.NoError(t, err)
	assert.Equal(t, int64(45000), updated.Total)
	assert.Equal(t, created.ID, updated.ID)

	totals, err := svc.Totals(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), totals.Overall)
	assert.Nil(t, totals.Day)
}

func TestNotaService_UpdateByID(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t)
	day := core.NewDate(2024, 3, 1)
	created, _, err := svc.Create(ctx, fields(day, "beras", 2, 15000))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, fields(core.NewDate(2024, 3, 5), "beras merah", 1, 20000))
	require.NoError(t, err)
	assert.Equal(t, "beras merah", updated.Item)
	assert.Equal(t, int64(20000), updated.Total)

	_, err = svc.Update(ctx, "missing", fields(day, "", 1, 1000))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNotaService_DeleteShiftsPositions(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t)
	day := core.NewDate(2024, 3, 1)
	var ids []string
	for _, item := range []string{"a", "b", "c"} {
		rec, _, err := svc.Create(ctx, fields(day, item, 1, 1000))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	require.NoError(t, svc.DeleteAt(ctx, 1))

	records, err := svc.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ids[0], records[0].ID)
	assert.Equal(t, ids[2], records[1].ID)

	require.NoError(t, svc.Delete(ctx, ids[0]))
	assert.Equal(t, 1, svc.Len())
	assert.ErrorIs(t, svc.Delete(ctx, ids[0]), core.ErrNotFound)
}

func TestNotaService_InvalidIndex(t *testing.T) {
	ctx := context.Background()
	svc, store := openService(t)
	day := core.NewDate(2024, 3, 1)
	_, _, err := svc.Create(ctx, fields(day, "a", 1, 1000))
	require.NoError(t, err)
	saves := store.Saves()

	for _, index := range []int{-1, 1, 99} {
		_, err := svc.UpdateAt(ctx, index, fields(day, "b", 1, 1000))
		assert.ErrorIs(t, err, core.ErrInvalidIndex)
		assert.ErrorIs(t, svc.DeleteAt(ctx, index), core.ErrInvalidIndex)
	}

	assert.Equal(t, saves, store.Saves(), "rejected operations must not write")
	assert.Equal(t, 1, svc.Len())
}

func TestNotaService_FailedSaveLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	day := core.NewDate(2024, 3, 1)
	seed := core.NewRecord(fields(day, "a", 2, 1000))
	store := &failingStore{MemoryStore: storage.NewMemoryStore(seed)}
	pub := &recordingPublisher{}
	svc := NewNotaService(store, pub)
	require.NoError(t, svc.Open(ctx))
	version := svc.Version()

	store.failSave = true

	_, _, err := svc.Create(ctx, fields(day, "b", 1, 1000))
	require.ErrorIs(t, err, errDiskFull)
	_, err = svc.UpdateAt(ctx, 0, fields(day, "a", 5, 1000))
	require.ErrorIs(t, err, errDiskFull)
	require.ErrorIs(t, svc.Delete(ctx, seed.ID), errDiskFull)

	records, err := svc.Records()
	require.NoError(t, err)
	assert.Equal(t, []core.Record{seed}, records)
	assert.Equal(t, version, svc.Version())
	assert.Empty(t, pub.messages)
}

func TestNotaService_PublishesChanges(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewNotaService(storage.NewMemoryStore(), pub)
	require.NoError(t, svc.Open(ctx))

	rec, _, err := svc.Create(ctx, fields(core.NewDate(2024, 3, 1), "a", 1, 1000))
	require.NoError(t, err, "publish failures must not fail the mutation")
	require.NoError(t, svc.Delete(ctx, rec.ID))

	require.Len(t, pub.messages, 2)
	assert.Equal(t, amqp.OpCreate, pub.messages[0].Op)
	assert.Equal(t, rec.ID, pub.messages[0].ID)
	assert.Equal(t, amqp.OpDelete, pub.messages[1].Op)
	assert.Equal(t, 0, pub.messages[1].Count)
	assert.Greater(t, pub.messages[1].Version, pub.messages[0].Version)

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
}

func TestNotaService_ReloadPicksUpExternalWrites(t *testing.T) {
	ctx := context.Background()
	svc, store := openService(t)
	external := core.NewRecord(fields(core.NewDate(2024, 3, 1), "x", 3, 1000))
	require.NoError(t, store.SaveAll(ctx, []core.Record{external}))

	assert.Equal(t, 0, svc.Len())
	require.NoError(t, svc.Reload(ctx))
	assert.Equal(t, 1, svc.Len())

	got, index, err := svc.Get(external.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, int64(3000), got.Total)
}

func TestNotaService_RecordsIsACopy(t *testing.T) {
	ctx := context.Background()
	svc, _ := openService(t)
	_, _, err := svc.Create(ctx, fields(core.NewDate(2024, 3, 1), "a", 1, 1000))
	require.NoError(t, err)

	records, err := svc.Records()
	require.NoError(t, err)
	records[0].Total = 0

	again, err := svc.Records()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), again[0].Total)
}

func TestNotaService_ReadsDoNotWaitForPublish(t *testing.T) {
	ctx := context.Background()
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewNotaService(storage.NewMemoryStore(), pub)
	require.NoError(t, svc.Open(ctx))

	done := make(chan error, 1)
	go func() {
		_, _, err := svc.Create(ctx, fields(core.NewDate(2024, 3, 1), "a", 2, 1000))
		done <- err
	}()
	<-pub.entered

	read := make(chan core.Totals, 1)
	go func() {
		totals, _ := svc.Totals(nil)
		read <- totals
	}()
	select {
	case totals := <-read:
		assert.Equal(t, int64(2000), totals.Overall)
	case <-time.After(time.Second):
		t.Fatal("Totals blocked while a change message was being published")
	}

	close(pub.release)
	require.NoError(t, <-done)
}

func TestNotaService_CSVReloadMatchesMemory(t *testing.T) {
	ctx := context.Background()
	svc := NewNotaService(storage.NewCSVStore(filepath.Join(t.TempDir(), "nota.csv")), nil)
	require.NoError(t, svc.Open(ctx))

	_, _, err := svc.Create(ctx, fields(core.NewDate(2024, 3, 1), "Kopi\r\nSusu", 2, 15000))
	require.NoError(t, err)
	before, err := svc.Records()
	require.NoError(t, err)

	require.NoError(t, svc.Reload(ctx))
	after, err := svc.Records()
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Fields(), after[0].Fields())
	assert.Equal(t, before[0].Total, after[0].Total)
}
