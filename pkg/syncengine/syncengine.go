// Package syncengine composes syncchunks, processors and sender into a
// single sync run, analogous to the original's
// SynchronizerPrivate/Synchronizer (§7, SyncResult).
package syncengine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/notestore"
	"github.com/mattsolo1/notewire/pkg/nwlog"
	"github.com/mattsolo1/notewire/pkg/processors"
	"github.com/mattsolo1/notewire/pkg/processors/durable"
	"github.com/mattsolo1/notewire/pkg/sender"
	"github.com/mattsolo1/notewire/pkg/syncchunks"
	"github.com/mattsolo1/notewire/pkg/syncconfig"
	"github.com/mattsolo1/notewire/pkg/syncstate"
)

// Events is the collapsed, Go-idiomatic equivalent of the original's
// ISyncEventsNotifier: optional callbacks the caller can set to
// observe progress beyond the per-batch statuses returned at the end.
// Every field may be left nil.
type Events struct {
	OnSyncChunksDownloadProgress func(scope string, p syncchunks.Progress)
	OnNotebooksProgress          func(scope string, c processors.Counters)
	OnTagsProgress               func(scope string, c processors.Counters)
	OnSavedSearchesProgress      func(scope string, c processors.Counters)
	OnLinkedNotebooksProgress    func(c processors.Counters)
	OnNoteResult                 func(scope string, r processors.NoteResult)
	OnResourceResult             func(scope string, r processors.ResourceResult)
	OnSendProgress               func(scope string, s sender.SendStatus)
}

func (e *Events) downloadProgress(scope string) syncchunks.ProgressFunc {
	if e == nil || e.OnSyncChunksDownloadProgress == nil {
		return nil
	}
	return func(p syncchunks.Progress) { e.OnSyncChunksDownloadProgress(scope, p) }
}

func (e *Events) notebooksProgress(scope string) processors.ProgressFunc {
	if e == nil || e.OnNotebooksProgress == nil {
		return nil
	}
	return func(c processors.Counters) { e.OnNotebooksProgress(scope, c) }
}

func (e *Events) tagsProgress(scope string) processors.ProgressFunc {
	if e == nil || e.OnTagsProgress == nil {
		return nil
	}
	return func(c processors.Counters) { e.OnTagsProgress(scope, c) }
}

func (e *Events) savedSearchesProgress(scope string) processors.ProgressFunc {
	if e == nil || e.OnSavedSearchesProgress == nil {
		return nil
	}
	return func(c processors.Counters) { e.OnSavedSearchesProgress(scope, c) }
}

func (e *Events) linkedNotebooksProgress() processors.ProgressFunc {
	if e == nil || e.OnLinkedNotebooksProgress == nil {
		return nil
	}
	return e.OnLinkedNotebooksProgress
}

func (e *Events) sendProgress(scope string) sender.ProgressFunc {
	if e == nil || e.OnSendProgress == nil {
		return nil
	}
	return func(s sender.SendStatus) { e.OnSendProgress(scope, s) }
}

// Collaborators are the narrow interfaces the engine is built against;
// none of them is owned by the engine (§1 "out of scope" collaborator
// surfaces).
type Collaborators struct {
	Local               localstore.Store
	NoteStoreProvider   notestore.Provider
	NotebookResolver    processors.NotebookConflictResolver
	TagResolver         processors.TagConflictResolver
	SavedSearchResolver processors.SavedSearchConflictResolver
	NoteResolver        processors.NoteConflictResolver
	InkNoteImageSaver   processors.InkNoteImageSaver
}

// ScopeStatus is one scope's (user-own, or one linked notebook's)
// outcome for a single sync run.
type ScopeStatus struct {
	DownloadErr         error
	NotebookCounters    processors.Counters
	TagCounters         processors.Counters
	SavedSearchCounters processors.Counters
	NoteResults         []processors.NoteResult
	ResourceResults     []processors.ResourceResult
	SendStatus          *sender.SendStatus
	SendErr             error
}

// SyncResult is the return value of one Sync call (§7).
type SyncResult struct {
	SyncState              *model.SyncState
	UserOwn                ScopeStatus
	LinkedNotebooks        map[string]ScopeStatus
	LinkedNotebookCounters processors.Counters
}

// Engine ties the collaborators, config and pluggable conflict
// resolvers together into runnable sync operations.
type Engine struct {
	cfg     syncconfig.EngineConfig
	collab  Collaborators
	storage *syncchunks.Storage
	chunks  *syncchunks.Provider
	events  *Events
}

// New builds an Engine. Downloaded sync chunks are cached (§4.1) under
// <cfg.PersistentStorageRoot>/sync_chunks.
func New(cfg syncconfig.EngineConfig, collab Collaborators, events *Events) *Engine {
	storage := syncchunks.NewStorage(filepath.Join(cfg.PersistentStorageRoot, "sync_chunks"))
	return &Engine{
		cfg:     cfg,
		collab:  collab,
		storage: storage,
		chunks:  syncchunks.NewProvider(storage),
		events:  events,
	}
}

// Sync runs one full sync cycle: download and apply the user's own
// sync chunks, then each linked notebook's, then send every locally
// modified entity, per scope.
func (eng *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	log := nwlog.WithComponent("sync.engine")

	state, err := syncstate.Load(eng.cfg.PersistentStorageRoot)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	filter := notestore.IncrementalFilter()
	if eng.cfg.FullReload {
		filter = notestore.FullReloadFilter()
	}

	result := &SyncResult{
		SyncState:       state,
		LinkedNotebooks: make(map[string]ScopeStatus),
	}

	userStore := eng.collab.NoteStoreProvider.UserOwnNoteStore()
	downloader := syncchunks.NewDownloader(userStore, eng.cfg.MaxEntriesPerChunk, filter)

	userChunks, err := eng.chunks.FetchUserOwnChunks(ctx, state.UserDataUpdateCount, downloader, eng.events.downloadProgress("user_own"))
	result.UserOwn.DownloadErr = err
	if err != nil {
		log.Error().Err(err).Msg("user-own sync chunk download failed")
	}
	if len(userChunks) > 0 {
		if hi, ok := highestChunkUSN(userChunks); ok && hi > state.UserDataUpdateCount {
			state.UserDataUpdateCount = hi
		}
	}

	if err := eng.applyChunks(ctx, "user_own", userChunks, &result.UserOwn); err != nil {
		log.Error().Err(err).Msg("failed to apply user-own sync chunks")
	}

	lnbProcessor := processors.NewLinkedNotebooksProcessor(eng.collab.Local)
	lnbCounters, err := lnbProcessor.Process(ctx, userChunks, eng.events.linkedNotebooksProgress())
	result.LinkedNotebookCounters = lnbCounters
	if err != nil {
		log.Error().Err(err).Msg("failed to apply linked notebook entries")
	}

	linkedNotebooks, err := eng.collab.Local.ListLinkedNotebooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list linked notebooks: %w", err)
	}
	for _, lnb := range linkedNotebooks {
		status := ScopeStatus{}
		afterUSN := state.LinkedNotebookUpdateCount[lnb.Guid]
		lnbStore, err := eng.collab.NoteStoreProvider.NoteStoreForNotebook(ctx, lnb.Guid)
		if err != nil {
			status.DownloadErr = err
			result.LinkedNotebooks[lnb.Guid] = status
			continue
		}
		lnbDownloader := syncchunks.NewDownloader(lnbStore, eng.cfg.MaxEntriesPerChunk, filter)
		chunks, err := eng.chunks.FetchLinkedNotebookChunks(ctx, lnb, afterUSN, lnbDownloader, eng.events.downloadProgress(lnb.Guid))
		status.DownloadErr = err
		if len(chunks) > 0 {
			if hi, ok := highestChunkUSN(chunks); ok && hi > afterUSN {
				state.LinkedNotebookUpdateCount[lnb.Guid] = hi
			}
		}
		if err := eng.applyChunks(ctx, lnb.Guid, chunks, &status); err != nil {
			log.Error().Str("linked_notebook", lnb.Guid).Err(err).Msg("failed to apply linked notebook sync chunks")
		}
		result.LinkedNotebooks[lnb.Guid] = status
	}

	result.UserOwn.SendStatus, result.UserOwn.SendErr = sender.NewSender(eng.collab.Local, userStore).Send(ctx, "", eng.events.sendProgress("user_own"))
	if result.UserOwn.SendStatus != nil {
		if result.UserOwn.SendStatus.UserDataUpdateCount > state.UserDataUpdateCount {
			state.UserDataUpdateCount = result.UserOwn.SendStatus.UserDataUpdateCount
		}
	}

	for _, lnb := range linkedNotebooks {
		lnbStore, err := eng.collab.NoteStoreProvider.NoteStoreForNotebook(ctx, lnb.Guid)
		if err != nil {
			continue
		}
		status := result.LinkedNotebooks[lnb.Guid]
		status.SendStatus, status.SendErr = sender.NewSender(eng.collab.Local, lnbStore).Send(ctx, lnb.Guid, eng.events.sendProgress(lnb.Guid))
		if status.SendStatus != nil && status.SendStatus.UserDataUpdateCount > state.LinkedNotebookUpdateCount[lnb.Guid] {
			state.LinkedNotebookUpdateCount[lnb.Guid] = status.SendStatus.UserDataUpdateCount
		}
		result.LinkedNotebooks[lnb.Guid] = status
	}

	if err := syncstate.Save(eng.cfg.PersistentStorageRoot, state); err != nil {
		return result, fmt.Errorf("save sync state: %w", err)
	}

	return result, nil
}

// applyChunks runs the per-entity-kind processors and the durable
// note/resource processors over one scope's downloaded chunks.
func (eng *Engine) applyChunks(ctx context.Context, scope string, chunks []*model.SyncChunk, status *ScopeStatus) error {
	linkedNotebookGuid := scope
	if scope == "user_own" {
		linkedNotebookGuid = ""
	}

	notebooksProc := processors.NewNotebooksProcessor(eng.collab.Local, eng.collab.NotebookResolver)
	notebookCounters, err := notebooksProc.Process(ctx, chunks, linkedNotebookGuid, eng.events.notebooksProgress(scope))
	status.NotebookCounters = notebookCounters
	if err != nil {
		return fmt.Errorf("notebooks: %w", err)
	}

	tagsProc := processors.NewTagsProcessor(eng.collab.Local, eng.collab.TagResolver)
	tagCounters, err := tagsProc.Process(ctx, chunks, linkedNotebookGuid, eng.events.tagsProgress(scope))
	status.TagCounters = tagCounters
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}

	if linkedNotebookGuid == "" {
		searchesProc := processors.NewSavedSearchesProcessor(eng.collab.Local, eng.collab.SavedSearchResolver)
		searchCounters, err := searchesProc.Process(ctx, chunks, eng.events.savedSearchesProgress(scope))
		status.SavedSearchCounters = searchCounters
		if err != nil {
			return fmt.Errorf("saved searches: %w", err)
		}
	}

	var incomingNotes []*model.Note
	var expungedNotes []string
	var incomingResources []*model.Resource
	var expungedResources []string
	for _, c := range chunks {
		incomingNotes = append(incomingNotes, c.Notes...)
		expungedNotes = append(expungedNotes, c.ExpungedNotes...)
		incomingResources = append(incomingResources, c.Resources...)
	}

	canceler := processors.NewCanceler()
	notesProc := processors.NewNotesProcessor(eng.collab.Local, eng.collab.NoteStoreProvider, eng.collab.NoteResolver, processors.NotesConfig{
		DownloadThumbnails: eng.cfg.DownloadNoteThumbnails,
		ThumbnailPixelSize: eng.cfg.ThumbnailPixelSize,
		SaveInkNoteImages:  eng.cfg.SaveInkNoteImages,
		InkNoteImagesDir:   eng.cfg.InkNoteImagesDir,
	}, canceler, eng.collab.InkNoteImageSaver)
	durableNotes := durable.NewDurableNotesProcessor(notesProc, eng.cfg.PersistentStorageRoot)
	noteResults, err := durableNotes.Process(ctx, incomingNotes, expungedNotes, linkedNotebookGuid)
	if err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	status.NoteResults = noteResults
	if eng.events != nil && eng.events.OnNoteResult != nil {
		for _, r := range noteResults {
			eng.events.OnNoteResult(scope, r)
		}
	}

	resourcesProc := processors.NewResourcesProcessor(eng.collab.Local, eng.collab.NoteStoreProvider, canceler)
	durableResources := durable.NewDurableResourcesProcessor(resourcesProc, eng.cfg.PersistentStorageRoot)
	resourceResults, err := durableResources.Process(ctx, incomingResources, expungedResources, linkedNotebookGuid)
	if err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	status.ResourceResults = resourceResults
	if eng.events != nil && eng.events.OnResourceResult != nil {
		for _, r := range resourceResults {
			eng.events.OnResourceResult(scope, r)
		}
	}

	return nil
}

func highestChunkUSN(chunks []*model.SyncChunk) (model.USN, bool) {
	var (
		max   model.USN
		found bool
	)
	for _, c := range chunks {
		if c.ChunkHighUSN != nil && (!found || *c.ChunkHighUSN > max) {
			max, found = *c.ChunkHighUSN, true
		}
	}
	return max, found
}
