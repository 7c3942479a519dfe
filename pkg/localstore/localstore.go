// Package localstore defines the local content-store collaborator
// (§6 "RPC surface consumed from the local store"): the narrow
// interface the sync engine uses to read and write notebooks, notes,
// resources, tags and saved searches. Persistence-format choice is
// explicitly out of scope for the core; sqlitestore is one reference
// implementation, not a requirement.
package localstore

import (
	"context"

	"github.com/mattsolo1/notewire/pkg/model"
)

// NoteFetchOption controls how much of a note FindNoteByGuid/
// FindNoteByLocalID returns.
type NoteFetchOption int

const (
	WithResourceMetadata NoteFetchOption = 1 << iota
	WithResourceBinaryData
)

func (o NoteFetchOption) Has(flag NoteFetchOption) bool { return o&flag != 0 }

// Store is the local content-store collaborator. All operations are
// safe for concurrent callers; the core relies on that without
// additional locking (§5).
type Store interface {
	FindNotebookByGuid(ctx context.Context, guid string) (*model.Notebook, error)
	FindNotebookByName(ctx context.Context, name, linkedNotebookGuid string) (*model.Notebook, error)
	PutNotebook(ctx context.Context, nb *model.Notebook) error
	ExpungeNotebookByGuid(ctx context.Context, guid string) error
	ListNotebooks(ctx context.Context, locallyModifiedOnly bool) ([]*model.Notebook, error)

	FindTagByGuid(ctx context.Context, guid string) (*model.Tag, error)
	FindTagByName(ctx context.Context, name, linkedNotebookGuid string) (*model.Tag, error)
	FindTagByLocalID(ctx context.Context, localID string) (*model.Tag, error)
	PutTag(ctx context.Context, t *model.Tag) error
	ExpungeTagByGuid(ctx context.Context, guid string) error
	ListTags(ctx context.Context, locallyModifiedOnly bool) ([]*model.Tag, error)

	FindSavedSearchByGuid(ctx context.Context, guid string) (*model.SavedSearch, error)
	FindSavedSearchByName(ctx context.Context, name string) (*model.SavedSearch, error)
	PutSavedSearch(ctx context.Context, s *model.SavedSearch) error
	ExpungeSavedSearchByGuid(ctx context.Context, guid string) error
	ListSavedSearches(ctx context.Context, locallyModifiedOnly bool) ([]*model.SavedSearch, error)

	FindLinkedNotebookByGuid(ctx context.Context, guid string) (*model.LinkedNotebook, error)
	PutLinkedNotebook(ctx context.Context, l *model.LinkedNotebook) error
	ExpungeLinkedNotebookByGuid(ctx context.Context, guid string) error
	ListLinkedNotebooks(ctx context.Context) ([]*model.LinkedNotebook, error)

	FindNoteByGuid(ctx context.Context, guid string, opts NoteFetchOption) (*model.Note, error)
	FindNoteByLocalID(ctx context.Context, localID string, opts NoteFetchOption) (*model.Note, error)
	PutNote(ctx context.Context, n *model.Note) error
	ExpungeNoteByGuid(ctx context.Context, guid string) error
	ListNotes(ctx context.Context, locallyModifiedOnly bool) ([]*model.Note, error)

	FindResourceByGuid(ctx context.Context, guid string, withBinaryData bool) (*model.Resource, error)
	PutResource(ctx context.Context, r *model.Resource) error
	ExpungeResourceByGuid(ctx context.Context, guid string) error
	ListResources(ctx context.Context, locallyModifiedOnly bool) ([]*model.Resource, error)
}
