package sheets

import (
	"context"

	"nota/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordMirror keeps an external copy of the whole collection.
	RecordMirror interface {
		// ReplaceAll overwrites the mirror with records, in order.
		ReplaceAll(ctx context.Context, records []core.Record) error
	}

	// RecordReader reads the mirrored collection back.
	RecordReader interface {
		ReadAll(ctx context.Context) ([]core.Record, error)
	}
)
