// Package storage persists the nota collection.
//
// Every implementation has read-all/write-all semantics: LoadAll returns the
// whole collection in order and SaveAll replaces it. There are no partial
// updates at this layer; the service layer rebuilds the collection in memory
// and writes it back after each mutation.
package storage

import (
	"context"

	"nota/internal/core"
)

// Store is the persistence boundary for the nota collection.
type Store interface {
	// LoadAll returns the persisted collection. A store that has never been
	// written returns an empty collection and no error. Content that does not
	// match the schema yields an error wrapping core.ErrMalformedStore.
	LoadAll(ctx context.Context) ([]core.Record, error)

	// SaveAll overwrites the persisted collection with records. It returns
	// only once the data is durable.
	SaveAll(ctx context.Context, records []core.Record) error

	Close() error
}

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLiteRepository)(nil)
	_ Store = (*MemoryStore)(nil)
)
