package processors

import (
	"context"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
)

// fakeStore is an in-memory localstore.Store for processor tests; no
// network, no disk.
type fakeStore struct {
	notebooks     map[string]*model.Notebook
	tags          map[string]*model.Tag
	savedSearches map[string]*model.SavedSearch
	linked        map[string]*model.LinkedNotebook
	notes         map[string]*model.Note
	resources     map[string]*model.Resource
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notebooks:     make(map[string]*model.Notebook),
		tags:          make(map[string]*model.Tag),
		savedSearches: make(map[string]*model.SavedSearch),
		linked:        make(map[string]*model.LinkedNotebook),
		notes:         make(map[string]*model.Note),
		resources:     make(map[string]*model.Resource),
	}
}

func (s *fakeStore) FindNotebookByGuid(ctx context.Context, guid string) (*model.Notebook, error) {
	return s.notebooks[guid], nil
}
func (s *fakeStore) FindNotebookByName(ctx context.Context, name, linkedNotebookGuid string) (*model.Notebook, error) {
	for _, nb := range s.notebooks {
		if nb.Name == name && nb.LinkedNotebookGuid == linkedNotebookGuid {
			return nb, nil
		}
	}
	return nil, nil
}
func (s *fakeStore) PutNotebook(ctx context.Context, nb *model.Notebook) error {
	if nb.LocalID == "" {
		nb.LocalID = model.NewLocalID()
	}
	s.notebooks[nb.Guid] = nb
	return nil
}
func (s *fakeStore) ExpungeNotebookByGuid(ctx context.Context, guid string) error {
	delete(s.notebooks, guid)
	return nil
}
func (s *fakeStore) ListNotebooks(ctx context.Context, locallyModifiedOnly bool) ([]*model.Notebook, error) {
	var out []*model.Notebook
	for _, nb := range s.notebooks {
		if locallyModifiedOnly && !nb.LocallyModified {
			continue
		}
		out = append(out, nb)
	}
	return out, nil
}

func (s *fakeStore) FindTagByGuid(ctx context.Context, guid string) (*model.Tag, error) {
	return s.tags[guid], nil
}
func (s *fakeStore) FindTagByName(ctx context.Context, name, linkedNotebookGuid string) (*model.Tag, error) {
	for _, t := range s.tags {
		if t.Name == name && t.LinkedNotebookGuid == linkedNotebookGuid {
			return t, nil
		}
	}
	return nil, nil
}
func (s *fakeStore) FindTagByLocalID(ctx context.Context, localID string) (*model.Tag, error) {
	for _, t := range s.tags {
		if t.LocalID == localID {
			return t, nil
		}
	}
	return nil, nil
}
func (s *fakeStore) PutTag(ctx context.Context, t *model.Tag) error {
	if t.LocalID == "" {
		t.LocalID = model.NewLocalID()
	}
	s.tags[t.Guid] = t
	return nil
}
func (s *fakeStore) ExpungeTagByGuid(ctx context.Context, guid string) error {
	delete(s.tags, guid)
	return nil
}
func (s *fakeStore) ListTags(ctx context.Context, locallyModifiedOnly bool) ([]*model.Tag, error) {
	var out []*model.Tag
	for _, t := range s.tags {
		if locallyModifiedOnly && !t.LocallyModified {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) FindSavedSearchByGuid(ctx context.Context, guid string) (*model.SavedSearch, error) {
	return s.savedSearches[guid], nil
}
func (s *fakeStore) FindSavedSearchByName(ctx context.Context, name string) (*model.SavedSearch, error) {
	for _, sr := range s.savedSearches {
		if sr.Name == name {
			return sr, nil
		}
	}
	return nil, nil
}
func (s *fakeStore) PutSavedSearch(ctx context.Context, sr *model.SavedSearch) error {
	if sr.LocalID == "" {
		sr.LocalID = model.NewLocalID()
	}
	s.savedSearches[sr.Guid] = sr
	return nil
}
func (s *fakeStore) ExpungeSavedSearchByGuid(ctx context.Context, guid string) error {
	delete(s.savedSearches, guid)
	return nil
}
func (s *fakeStore) ListSavedSearches(ctx context.Context, locallyModifiedOnly bool) ([]*model.SavedSearch, error) {
	var out []*model.SavedSearch
	for _, sr := range s.savedSearches {
		if locallyModifiedOnly && !sr.LocallyModified {
			continue
		}
		out = append(out, sr)
	}
	return out, nil
}

func (s *fakeStore) FindLinkedNotebookByGuid(ctx context.Context, guid string) (*model.LinkedNotebook, error) {
	return s.linked[guid], nil
}
func (s *fakeStore) PutLinkedNotebook(ctx context.Context, l *model.LinkedNotebook) error {
	s.linked[l.Guid] = l
	return nil
}
func (s *fakeStore) ExpungeLinkedNotebookByGuid(ctx context.Context, guid string) error {
	delete(s.linked, guid)
	return nil
}
func (s *fakeStore) ListLinkedNotebooks(ctx context.Context) ([]*model.LinkedNotebook, error) {
	var out []*model.LinkedNotebook
	for _, l := range s.linked {
		out = append(out, l)
	}
	return out, nil
}

func (s *fakeStore) FindNoteByGuid(ctx context.Context, guid string, opts localstore.NoteFetchOption) (*model.Note, error) {
	return s.notes[guid], nil
}
func (s *fakeStore) FindNoteByLocalID(ctx context.Context, localID string, opts localstore.NoteFetchOption) (*model.Note, error) {
	for _, n := range s.notes {
		if n.LocalID == localID {
			return n, nil
		}
	}
	return nil, nil
}
func (s *fakeStore) PutNote(ctx context.Context, n *model.Note) error {
	if n.LocalID == "" {
		n.LocalID = model.NewLocalID()
	}
	s.notes[n.Guid] = n
	return nil
}
func (s *fakeStore) ExpungeNoteByGuid(ctx context.Context, guid string) error {
	delete(s.notes, guid)
	return nil
}
func (s *fakeStore) ListNotes(ctx context.Context, locallyModifiedOnly bool) ([]*model.Note, error) {
	var out []*model.Note
	for _, n := range s.notes {
		if locallyModifiedOnly && !n.LocallyModified {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeStore) FindResourceByGuid(ctx context.Context, guid string, withBinaryData bool) (*model.Resource, error) {
	return s.resources[guid], nil
}
func (s *fakeStore) PutResource(ctx context.Context, r *model.Resource) error {
	if r.LocalID == "" {
		r.LocalID = model.NewLocalID()
	}
	s.resources[r.Guid] = r
	return nil
}
func (s *fakeStore) ExpungeResourceByGuid(ctx context.Context, guid string) error {
	delete(s.resources, guid)
	return nil
}
func (s *fakeStore) ListResources(ctx context.Context, locallyModifiedOnly bool) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, r := range s.resources {
		if locallyModifiedOnly && !r.LocallyModified {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var _ localstore.Store = (*fakeStore)(nil)
