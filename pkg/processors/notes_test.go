package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/notestore"
)

func TestNotesProcessorAddsNewNote(t *testing.T) {
	store := newFakeStore()
	ns := &fakeNoteStore{notes: map[string]*model.Note{
		"n1": {Guid: "n1", Title: "Full", Content: "<en-note>body</en-note>"},
	}}
	p := NewNotesProcessor(store, &fakeProvider{store: ns}, nil, NotesConfig{}, nil, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, NoteAdded, results[0].Outcome)
	got, err := store.FindNoteByGuid(context.Background(), "n1", 0)
	require.NoError(t, err)
	assert.Equal(t, "Full", got.Title)
	assert.NotEmpty(t, got.LocalID)
}

func TestNotesProcessorUpdatesExistingPreservingLocalIDAndFavorited(t *testing.T) {
	store := newFakeStore()
	store.notes["n1"] = &model.Note{LocalID: "local-1", Guid: "n1", Title: "old", LocallyFavorited: true}
	ns := &fakeNoteStore{notes: map[string]*model.Note{"n1": {Guid: "n1", Title: "new"}}}
	p := NewNotesProcessor(store, &fakeProvider{store: ns}, nil, NotesConfig{}, nil, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, NoteUpdated, results[0].Outcome)
	got, err := store.FindNoteByGuid(context.Background(), "n1", 0)
	require.NoError(t, err)
	assert.Equal(t, "local-1", got.LocalID)
	assert.True(t, got.LocallyFavorited)
	assert.Equal(t, "new", got.Title)
}

func TestNotesProcessorPreservesResourceLocalIDsByGuid(t *testing.T) {
	store := newFakeStore()
	store.notes["n1"] = &model.Note{
		LocalID: "local-1", Guid: "n1",
		Resources: []*model.Resource{{LocalID: "res-local-1", Guid: "r1"}},
	}
	ns := &fakeNoteStore{notes: map[string]*model.Note{
		"n1": {Guid: "n1", Resources: []*model.Resource{{Guid: "r1"}, {Guid: "r2"}}},
	}}
	p := NewNotesProcessor(store, &fakeProvider{store: ns}, nil, NotesConfig{}, nil, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, NoteUpdated, results[0].Outcome)

	got, err := store.FindNoteByGuid(context.Background(), "n1", 0)
	require.NoError(t, err)
	require.Len(t, got.Resources, 2)
	for _, r := range got.Resources {
		if r.Guid == "r1" {
			assert.Equal(t, "res-local-1", r.LocalID)
		} else {
			assert.NotEmpty(t, r.LocalID)
			assert.NotEqual(t, "res-local-1", r.LocalID)
		}
	}
}

func TestNotesProcessorExpungesNote(t *testing.T) {
	store := newFakeStore()
	store.notes["n1"] = &model.Note{LocalID: "local-1", Guid: "n1"}
	p := NewNotesProcessor(store, &fakeProvider{store: &fakeNoteStore{}}, nil, NotesConfig{}, nil, nil)

	results := p.ProcessMetadata(context.Background(), nil, []string{"n1"})

	require.Len(t, results, 1)
	assert.Equal(t, NoteExpunged, results[0].Outcome)
}

func TestNotesProcessorTripsCancelerOnStopCondition(t *testing.T) {
	store := newFakeStore()
	ns := &fakeNoteStore{err: &notestore.RemoteError{Code: notestore.CodeRateLimitReached}}
	canceler := NewCanceler()
	p := NewNotesProcessor(store, &fakeProvider{store: ns}, nil, NotesConfig{}, canceler, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, NoteFailedToDownloadFullData, results[0].Outcome)
	tripped, reason := canceler.Tripped()
	assert.True(t, tripped)
	assert.Error(t, reason)
}

func TestNotesProcessorSkipsRemainingWorkWhenCancelerAlreadyTripped(t *testing.T) {
	store := newFakeStore()
	canceler := NewCanceler()
	canceler.Trip(assert.AnError)
	p := NewNotesProcessor(store, &fakeProvider{store: &fakeNoteStore{}}, nil, NotesConfig{}, canceler, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, []string{"n2"})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, NoteCancelled, r.Outcome)
	}
}

type stubNoteResolver struct {
	action ConflictAction
}

func (r *stubNoteResolver) ResolveNoteConflict(ctx context.Context, incoming, local *model.Note) (ConflictAction, *model.Note, error) {
	return r.action, nil, nil
}

func TestNotesProcessorResolverUseMineSkipsDownload(t *testing.T) {
	store := newFakeStore()
	store.notes["n1"] = &model.Note{LocalID: "local-1", Guid: "n1", Title: "mine"}
	p := NewNotesProcessor(store, &fakeProvider{store: &fakeNoteStore{}}, &stubNoteResolver{action: UseMine}, NotesConfig{}, nil, nil)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, NoteIgnored, results[0].Outcome)
	got, err := store.FindNoteByGuid(context.Background(), "n1", 0)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Title)
}

type fakeInkSaver struct {
	saved map[string][]byte
}

func (s *fakeInkSaver) Save(resourceGuid string, data []byte) error {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[resourceGuid] = data
	return nil
}

func TestNotesProcessorSavesInkNoteImages(t *testing.T) {
	store := newFakeStore()
	ns := &fakeNoteStore{notes: map[string]*model.Note{
		"n1": {Guid: "n1", Resources: []*model.Resource{{Guid: "r1", Mime: "application/vnd.evernote.ink"}}},
	}}
	ink := &fakeInkSaver{}
	p := NewNotesProcessor(store, &fakeProvider{store: ns}, nil, NotesConfig{SaveInkNoteImages: true}, nil, ink)

	results := p.ProcessMetadata(context.Background(), []*model.Note{{Guid: "n1"}}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, NoteAdded, results[0].Outcome)
	assert.Equal(t, []byte("raster"), ink.saved["r1"])
}
