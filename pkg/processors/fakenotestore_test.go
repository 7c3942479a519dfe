package processors

import (
	"context"

	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/notestore"
)

// fakeNoteStore answers GetResource/GetNote from fixed maps and
// GetResourceAsInkNoteImage from inkImages (a fixed "raster" body for
// any guid not in it); every other call panics, since no processor
// test drives them.
type fakeNoteStore struct {
	resources map[string]*model.Resource
	notes     map[string]*model.Note
	inkImages map[string][]byte
	err       error
}

func (s *fakeNoteStore) GetFilteredSyncChunk(context.Context, model.USN, int, notestore.SyncChunkFilter) (*model.SyncChunk, error) {
	panic("not used")
}
func (s *fakeNoteStore) GetLinkedNotebookSyncChunk(context.Context, *model.LinkedNotebook, model.USN, int, notestore.SyncChunkFilter) (*model.SyncChunk, error) {
	panic("not used")
}
func (s *fakeNoteStore) GetNote(ctx context.Context, guid string, withContent, withResourcesData, withResourcesRecognition, withResourcesAlternateData bool) (*model.Note, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.notes[guid], nil
}
func (s *fakeNoteStore) GetResource(ctx context.Context, guid string, withData, withRecognition, withAlternateData, withAttributes bool) (*model.Resource, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resources[guid], nil
}
func (s *fakeNoteStore) GetNoteThumbnail(context.Context, string, int) ([]byte, error) { panic("not used") }
func (s *fakeNoteStore) GetResourceAsInkNoteImage(ctx context.Context, guid string) ([]byte, error) {
	if data, ok := s.inkImages[guid]; ok {
		return data, nil
	}
	return []byte("raster"), nil
}
func (s *fakeNoteStore) CreateNotebook(context.Context, *model.Notebook) (*model.Notebook, error) {
	panic("not used")
}
func (s *fakeNoteStore) UpdateNotebook(context.Context, *model.Notebook) (model.USN, error) {
	panic("not used")
}
func (s *fakeNoteStore) CreateTag(context.Context, *model.Tag) (*model.Tag, error) { panic("not used") }
func (s *fakeNoteStore) UpdateTag(context.Context, *model.Tag) (model.USN, error)  { panic("not used") }
func (s *fakeNoteStore) CreateSavedSearch(context.Context, *model.SavedSearch) (*model.SavedSearch, error) {
	panic("not used")
}
func (s *fakeNoteStore) UpdateSavedSearch(context.Context, *model.SavedSearch) (model.USN, error) {
	panic("not used")
}
func (s *fakeNoteStore) CreateNote(context.Context, *model.Note) (*model.Note, error) {
	panic("not used")
}
func (s *fakeNoteStore) UpdateNote(context.Context, *model.Note) (model.USN, error) {
	panic("not used")
}

var _ notestore.NoteStore = (*fakeNoteStore)(nil)

// fakeProvider always hands back the same store regardless of notebook.
type fakeProvider struct{ store notestore.NoteStore }

func (p *fakeProvider) NoteStoreForNotebook(ctx context.Context, notebookGuid string) (notestore.NoteStore, error) {
	return p.store, nil
}
func (p *fakeProvider) UserOwnNoteStore() notestore.NoteStore { return p.store }

var _ notestore.Provider = (*fakeProvider)(nil)
