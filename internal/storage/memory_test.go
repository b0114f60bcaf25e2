package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CopiesOnLoadAndSave(t *testing.T) {
	ctx := context.Background()
	records := sampleRecords()
	s := NewMemoryStore(records...)

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	got[0].Item = "changed"

	again, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, records[0].Item, again[0].Item)

	require.NoError(t, s.SaveAll(ctx, records[:1]))
	records[0].Item = "mutated after save"
	again, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.NotEqual(t, "mutated after save", again[0].Item)
	assert.Equal(t, 1, s.Saves())
}
