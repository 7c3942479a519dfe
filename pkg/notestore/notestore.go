// Package notestore defines the remote note-store collaborator: the
// RPC surface the sync engine consumes, and the error taxonomy it
// recognizes specially (rate limiting, auth expiry).
package notestore

import (
	"context"
	"fmt"
	"time"

	"github.com/mattsolo1/notewire/pkg/model"
)

// Code identifies a remote error the engine must treat specially.
type Code int

const (
	// CodeGeneric is any remote failure with no special handling.
	CodeGeneric Code = iota
	// CodeRateLimitReached means the account has hit its API rate
	// limit; RateLimitDuration names how long to back off.
	CodeRateLimitReached
	// CodeAuthenticationExpired means the caller's credentials expired
	// mid-sync and must be refreshed out of band.
	CodeAuthenticationExpired
)

// RemoteError wraps a failure returned by the remote service,
// equivalent in role to the source's EDAMSystemException.
type RemoteError struct {
	Code              Code
	RateLimitDuration time.Duration
	Err               error
}

func (e *RemoteError) Error() string {
	switch e.Code {
	case CodeRateLimitReached:
		return fmt.Sprintf("rate limit reached, retry after %s", e.RateLimitDuration)
	case CodeAuthenticationExpired:
		return "authentication expired"
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "remote error"
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsStopCondition reports whether this error should trip the shared
// canceler for the rest of the batch (§4.5, §4.7).
func (e *RemoteError) IsStopCondition() bool {
	return e.Code == CodeRateLimitReached || e.Code == CodeAuthenticationExpired
}

// SyncChunkFilter selects which entity kinds a sync-chunk request
// should include, per §4.2.
type SyncChunkFilter struct {
	IncludeNotebooks              bool
	IncludeNotes                  bool
	IncludeTags                   bool
	IncludeSearches               bool
	IncludeNoteResources          bool
	IncludeNoteAttributes         bool
	IncludeNoteApplicationDataFullMap bool
	IncludeLinkedNotebooks        bool
	IncludeExpunged               bool
	IncludeResources              bool
}

// IncrementalFilter is the filter used for a normal incremental sync:
// everything, including expunge notices.
func IncrementalFilter() SyncChunkFilter {
	return SyncChunkFilter{
		IncludeNotebooks: true, IncludeNotes: true, IncludeTags: true,
		IncludeSearches: true, IncludeNoteResources: true,
		IncludeNoteAttributes: true, IncludeNoteApplicationDataFullMap: true,
		IncludeLinkedNotebooks: true, IncludeExpunged: true, IncludeResources: true,
	}
}

// FullReloadFilter omits expunge notices and standalone resources: used
// when rebuilding local state from scratch, where there is nothing to
// expunge yet.
func FullReloadFilter() SyncChunkFilter {
	f := IncrementalFilter()
	f.IncludeExpunged = false
	f.IncludeResources = false
	return f
}

// NoteStore is the remote collaborator interface: the RPC surface
// consumed from the remote service (§6). A caller supplies a concrete
// implementation backed by whatever transport it uses; the core issues
// no requests of its own.
type NoteStore interface {
	GetFilteredSyncChunk(ctx context.Context, afterUSN model.USN, maxEntries int, filter SyncChunkFilter) (*model.SyncChunk, error)
	GetLinkedNotebookSyncChunk(ctx context.Context, lnb *model.LinkedNotebook, afterUSN model.USN, maxEntries int, filter SyncChunkFilter) (*model.SyncChunk, error)

	GetNote(ctx context.Context, guid string, withContent, withResourcesData, withResourcesRecognition, withResourcesAlternateData bool) (*model.Note, error)
	GetResource(ctx context.Context, guid string, withData, withRecognition, withAlternateData, withAttributes bool) (*model.Resource, error)

	GetNoteThumbnail(ctx context.Context, guid string, pixelSize int) ([]byte, error)
	GetResourceAsInkNoteImage(ctx context.Context, resourceGuid string) ([]byte, error)

	CreateNotebook(ctx context.Context, nb *model.Notebook) (*model.Notebook, error)
	UpdateNotebook(ctx context.Context, nb *model.Notebook) (model.USN, error)
	CreateTag(ctx context.Context, t *model.Tag) (*model.Tag, error)
	UpdateTag(ctx context.Context, t *model.Tag) (model.USN, error)
	CreateSavedSearch(ctx context.Context, s *model.SavedSearch) (*model.SavedSearch, error)
	UpdateSavedSearch(ctx context.Context, s *model.SavedSearch) (model.USN, error)
	CreateNote(ctx context.Context, n *model.Note) (*model.Note, error)
	UpdateNote(ctx context.Context, n *model.Note) (model.USN, error)
}

// Provider resolves the note-store endpoint that should service a
// given notebook: the user's own shard, or a linked notebook's.
type Provider interface {
	NoteStoreForNotebook(ctx context.Context, notebookGuid string) (NoteStore, error)
	UserOwnNoteStore() NoteStore
}
