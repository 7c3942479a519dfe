package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
)

func TestLinkedNotebooksProcessorAddsNew(t *testing.T) {
	store := newFakeStore()
	p := NewLinkedNotebooksProcessor(store)

	chunk := &model.SyncChunk{LinkedNotebooks: []*model.LinkedNotebook{{Guid: "ln1", ShareName: "Shared"}}}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counters.Added)
	got, err := store.FindLinkedNotebookByGuid(context.Background(), "ln1")
	require.NoError(t, err)
	assert.Equal(t, "Shared", got.ShareName)
}

func TestLinkedNotebooksProcessorIncomingAlwaysOverridesLocal(t *testing.T) {
	store := newFakeStore()
	store.linked["ln1"] = &model.LinkedNotebook{Guid: "ln1", ShareName: "old"}
	p := NewLinkedNotebooksProcessor(store)

	chunk := &model.SyncChunk{LinkedNotebooks: []*model.LinkedNotebook{{Guid: "ln1", ShareName: "new"}}}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counters.Updated)
	got, err := store.FindLinkedNotebookByGuid(context.Background(), "ln1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ShareName)
}

func TestLinkedNotebooksProcessorExpunge(t *testing.T) {
	store := newFakeStore()
	store.linked["ln1"] = &model.LinkedNotebook{Guid: "ln1"}
	p := NewLinkedNotebooksProcessor(store)

	chunk := &model.SyncChunk{ExpungedLinkedNotebooks: []string{"ln1"}}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counters.Expunged)
	got, err := store.FindLinkedNotebookByGuid(context.Background(), "ln1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLinkedNotebooksProcessorExpungeWinsOverSameBatchUpdate(t *testing.T) {
	store := newFakeStore()
	store.linked["ln1"] = &model.LinkedNotebook{Guid: "ln1", ShareName: "stale"}
	p := NewLinkedNotebooksProcessor(store)

	chunk := &model.SyncChunk{
		LinkedNotebooks:         []*model.LinkedNotebook{{Guid: "ln1", ShareName: "updated"}},
		ExpungedLinkedNotebooks: []string{"ln1"},
	}
	counters, err := p.Process(context.Background(), []*model.SyncChunk{chunk}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, counters.Added)
	assert.Equal(t, 0, counters.Updated)
	assert.Equal(t, 1, counters.Expunged)
}
