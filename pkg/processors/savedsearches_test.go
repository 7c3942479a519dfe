package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
)

func TestSavedSearchesProcessorAddsNewSearch(t *testing.T) {
	store := newFakeStore()
	p := NewSavedSearchesProcessor(store, nil)

	chunk := &model.SyncChunk{SavedSearches: []*model.SavedSearch{{Guid: "s1", Name: "todo", Query: "tag:todo"}}}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counters.Added)
	got, err := store.FindSavedSearchByGuid(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tag:todo", got.Query)
}

func TestSavedSearchesProcessorExpunge(t *testing.T) {
	store := newFakeStore()
	store.savedSearches["s1"] = &model.SavedSearch{LocalID: "l1", Guid: "s1"}
	p := NewSavedSearchesProcessor(store, nil)

	chunk := &model.SyncChunk{ExpungedSearches: []string{"s1"}}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counters.Expunged)
	got, err := store.FindSavedSearchByGuid(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSavedSearchesProcessorSkipsExpungedIncomingInSameBatch(t *testing.T) {
	store := newFakeStore()
	p := NewSavedSearchesProcessor(store, nil)

	chunk := &model.SyncChunk{
		SavedSearches:    []*model.SavedSearch{{Guid: "s1", Name: "stale"}},
		ExpungedSearches: []string{"s1"},
	}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, counters.Added)
	assert.Equal(t, 1, counters.Expunged)
}
