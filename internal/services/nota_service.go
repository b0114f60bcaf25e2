package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"nota/internal/amqp"
	"nota/internal/core"
	"nota/internal/storage"
)

// ErrNotOpen is returned by every operation issued before Open succeeded or
// after Close.
var ErrNotOpen = errors.New("nota service is not open")

// Publisher announces collection changes to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
	Close() error
}

// NotaService owns the in-memory collection and keeps it in step with the
// store. Every mutation persists the whole next collection before it becomes
// visible; a failed save leaves the previous collection in place.
type NotaService struct {
	store     storage.Store
	publisher Publisher

	mu      sync.RWMutex
	open    bool
	records []core.Record
	version int64
}

// NewNotaService wires a store and an optional publisher. Call Open before use.
func NewNotaService(store storage.Store, publisher Publisher) *NotaService {
	return &NotaService{
		store:     store,
		publisher: publisher,
	}
}

// Open hydrates the collection from the store. Opening twice is a no-op.
func (s *NotaService) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	if err := s.hydrate(ctx); err != nil {
		return err
	}
	s.open = true
	slog.InfoContext(ctx, "Nota collection opened", "records", len(s.records))
	return nil
}

// Reload re-reads the store, discarding the in-memory collection. On error
// the previous collection is kept.
func (s *NotaService) Reload(ctx context.Context) error {
	return s.mutate(ctx, func() (*amqp.ChangeMessage, error) {
		if err := s.hydrate(ctx); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Nota collection reloaded", "records", len(s.records))
		return amqp.NewChangeMessage(amqp.OpReload, "", "", len(s.records), s.version), nil
	})
}

func (s *NotaService) hydrate(ctx context.Context) error {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	s.records = records
	s.version++
	return nil
}

// Close releases the store and the publisher.
func (s *NotaService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false

	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close nota service: %w", errors.Join(errs...))
	}
	return nil
}

// Version increases with every successful mutation or reload.
func (s *NotaService) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Records returns a copy of the collection in order.
func (s *NotaService) Records() ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	return slices.Clone(s.records), nil
}

func (s *NotaService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the record with the given identifier.
func (s *NotaService) Get(id string) (core.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return core.Record{}, -1, ErrNotOpen
	}
	i := s.indexOf(id)
	if i < 0 {
		return core.Record{}, -1, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return s.records[i], i, nil
}

// List returns the records, optionally limited to one date, each with its
// position in the full collection.
func (s *NotaService) List(date *core.Date) ([]core.Indexed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	return core.Filter(s.records, date), nil
}

// Totals returns the overall total and, with a date, that day's total.
func (s *NotaService) Totals(date *core.Date) (core.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return core.Totals{}, ErrNotOpen
	}
	return core.ComputeTotals(s.records, date), nil
}

// DailyTotals returns one total per distinct date, oldest first.
func (s *NotaService) DailyTotals() ([]core.DayTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	return core.DailyTotals(s.records), nil
}

// Create appends a new record and returns it with its position.
func (s *NotaService) Create(ctx context.Context, f core.Fields) (rec core.Record, index int, err error) {
	err = s.mutate(ctx, func() (*amqp.ChangeMessage, error) {
		rec = core.NewRecord(f)
		if err := s.commit(ctx, append(slices.Clone(s.records), rec)); err != nil {
			return nil, err
		}
		index = len(s.records) - 1
		slog.InfoContext(ctx, "Nota created", "id", rec.ID, "index", index, "date", rec.Date.String(), "total", rec.Total)
		return amqp.NewChangeMessage(amqp.OpCreate, rec.ID, rec.Date.String(), len(s.records), s.version), nil
	})
	if err != nil {
		return core.Record{}, -1, err
	}
	return rec, index, nil
}

// Update replaces the editable fields of the record with the given id.
func (s *NotaService) Update(ctx context.Context, id string, f core.Fields) (rec core.Record, err error) {
	err = s.mutate(ctx, func() (msg *amqp.ChangeMessage, err error) {
		i := s.indexOf(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		rec, msg, err = s.updateAt(ctx, i, f)
		return msg, err
	})
	if err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

// UpdateAt replaces the editable fields of the record at a position.
func (s *NotaService) UpdateAt(ctx context.Context, index int, f core.Fields) (rec core.Record, err error) {
	err = s.mutate(ctx, func() (msg *amqp.ChangeMessage, err error) {
		if err := s.checkIndex(index); err != nil {
			return nil, err
		}
		rec, msg, err = s.updateAt(ctx, index, f)
		return msg, err
	})
	if err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func (s *NotaService) updateAt(ctx context.Context, i int, f core.Fields) (core.Record, *amqp.ChangeMessage, error) {
	next := slices.Clone(s.records)
	next[i].Apply(f)
	if err := s.commit(ctx, next); err != nil {
		return core.Record{}, nil, err
	}

	rec := s.records[i]
	slog.InfoContext(ctx, "Nota updated", "id", rec.ID, "index", i, "total", rec.Total)
	return rec, amqp.NewChangeMessage(amqp.OpUpdate, rec.ID, rec.Date.String(), len(s.records), s.version), nil
}

// Delete removes the record with the given id. Later records move up by one.
func (s *NotaService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func() (*amqp.ChangeMessage, error) {
		i := s.indexOf(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return s.deleteAt(ctx, i)
	})
}

// DeleteAt removes the record at a position. Later records move up by one.
func (s *NotaService) DeleteAt(ctx context.Context, index int) error {
	return s.mutate(ctx, func() (*amqp.ChangeMessage, error) {
		if err := s.checkIndex(index); err != nil {
			return nil, err
		}
		return s.deleteAt(ctx, index)
	})
}

func (s *NotaService) deleteAt(ctx context.Context, i int) (*amqp.ChangeMessage, error) {
	removed := s.records[i]
	next := slices.Delete(slices.Clone(s.records), i, i+1)
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Nota deleted", "id", removed.ID, "index", i)
	return amqp.NewChangeMessage(amqp.OpDelete, removed.ID, removed.Date.String(), len(s.records), s.version), nil
}

// mutate runs fn under the write lock and publishes the message it returns
// once the lock is released.
func (s *NotaService) mutate(ctx context.Context, fn func() (*amqp.ChangeMessage, error)) error {
	msg, err := func() (*amqp.ChangeMessage, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.open {
			return nil, ErrNotOpen
		}
		return fn()
	}()
	if err != nil {
		return err
	}
	s.publish(ctx, msg)
	return nil
}

// commit persists next and only then makes it the current collection.
func (s *NotaService) commit(ctx context.Context, next []core.Record) error {
	if err := s.store.SaveAll(ctx, next); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}
	s.records = next
	s.version++
	return nil
}

func (s *NotaService) checkIndex(index int) error {
	if index < 0 || index >= len(s.records) {
		return fmt.Errorf("%w: %d not in [0, %d)", core.ErrInvalidIndex, index, len(s.records))
	}
	return nil
}

func (s *NotaService) indexOf(id string) int {
	return slices.IndexFunc(s.records, func(r core.Record) bool { return r.ID == id })
}

func (s *NotaService) publish(ctx context.Context, msg *amqp.ChangeMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"op", msg.Op, "id", msg.ID, "error", err)
	}
}
