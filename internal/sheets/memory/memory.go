package memory

import (
	"context"
	"slices"
	"sync"

	"nota/internal/core"
	ports "nota/internal/sheets"
)

var (
	_ ports.RecordMirror = (*Mirror)(nil)
	_ ports.RecordReader = (*Mirror)(nil)
)

// Mirror is an in-process stand-in for the spreadsheet.
type Mirror struct {
	mu       sync.Mutex
	records  []core.Record
	replaces int
	err      error
}

func New() *Mirror {
	return &Mirror{}
}

// FailWith makes subsequent ReplaceAll calls return err. Pass nil to recover.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ReplaceAll stores a copy of records.
func (m *Mirror) ReplaceAll(_ context.Context, records []core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = slices.Clone(records)
	m.replaces++
	return nil
}

// ReadAll returns the last replaced collection.
func (m *Mirror) ReadAll(_ context.Context) ([]core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records), nil
}

// Replaces reports how many times ReplaceAll succeeded.
func (m *Mirror) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}
