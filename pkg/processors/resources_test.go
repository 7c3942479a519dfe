package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
)

func TestResourcesProcessorAddsNewResource(t *testing.T) {
	store := newFakeStore()
	full := &model.Resource{Guid: "r1", NoteGuid: "n1", Mime: "image/png", Data: []byte("bytes")}
	ns := &fakeNoteStore{resources: map[string]*model.Resource{"r1": full}}
	p := NewResourcesProcessor(store, &fakeProvider{store: ns}, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Resource{{Guid: "r1", NoteGuid: "n1"}}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, ResourceAdded, results[0].Outcome)
	got, err := store.FindResourceByGuid(context.Background(), "r1", true)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.Mime)
}

func TestResourcesProcessorSkipsResourceWithNoNoteRef(t *testing.T) {
	store := newFakeStore()
	p := NewResourcesProcessor(store, &fakeProvider{store: &fakeNoteStore{}}, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Resource{{Guid: "orphan"}}, nil)

	assert.Empty(t, results)
}

func TestResourcesProcessorExpunge(t *testing.T) {
	store := newFakeStore()
	store.resources["r1"] = &model.Resource{LocalID: "l1", Guid: "r1"}
	p := NewResourcesProcessor(store, &fakeProvider{store: &fakeNoteStore{}}, nil)

	results := p.ProcessMetadata(context.Background(), nil, []string{"r1"})

	require.Len(t, results, 1)
	assert.Equal(t, ResourceExpunged, results[0].Outcome)
}

func TestResourcesProcessorDuplicatesConflictingOwningNote(t *testing.T) {
	store := newFakeStore()
	store.notes["note-1"] = &model.Note{
		LocalID:         "note-local-1",
		Guid:            "note-1",
		Title:           "Trip report",
		LocallyModified: true,
		Resources:       []*model.Resource{{LocalID: "r-local-1", Guid: "r1", NoteGuid: "note-1"}},
	}
	store.resources["r1"] = &model.Resource{LocalID: "r-local-1", Guid: "r1", NoteGuid: "note-1"}

	ns := &fakeNoteStore{resources: map[string]*model.Resource{"r1": {Guid: "r1", NoteGuid: "note-1", Mime: "image/png"}}}
	p := NewResourcesProcessor(store, &fakeProvider{store: ns}, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Resource{{Guid: "r1", NoteGuid: "note-1"}}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, ResourceUpdated, results[0].Outcome)

	notes, err := store.ListNotes(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, notes, 2, "expected the original note plus a duplicated conflict copy")

	var clone *model.Note
	for _, n := range notes {
		if n.Guid == "" {
			clone = n
		}
	}
	require.NotNil(t, clone, "expected a clone with a cleared guid")
	assert.Contains(t, clone.Title, "Conflicting")
	assert.Equal(t, "note-1", clone.Attributes.ConflictSourceNoteGuid)
}
