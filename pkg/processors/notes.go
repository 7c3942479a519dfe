package processors

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/notestore"
	"github.com/mattsolo1/notewire/pkg/nwlog"
	"golang.org/x/sync/errgroup"
)

// NoteOutcome is the per-item result of processing one note (§4.5).
type NoteOutcome int

const (
	NoteAdded NoteOutcome = iota
	NoteUpdated
	NoteExpunged
	NoteIgnored
	NoteFailedToDownloadFullData
	NoteFailedToPutToLocalStorage
	NoteFailedToExpunge
	NoteFailedToResolveConflict
	NoteCancelled
)

// NoteResult pairs a note's guid with the outcome of processing it.
type NoteResult struct {
	Guid    string
	USN     model.USN
	Outcome NoteOutcome
	Err     error
}

// NoteConflictResolver is consulted whenever an incoming note's guid
// matches a note already in the local store, whether or not that local
// note is locally modified.
type NoteConflictResolver interface {
	ResolveNoteConflict(ctx context.Context, incoming, local *model.Note) (ConflictAction, *model.Note, error)
}

// NotesConfig controls the optional, best-effort extras the notes
// processor attempts per item (§4.5 steps 5-6).
type NotesConfig struct {
	DownloadThumbnails bool
	ThumbnailPixelSize int
	SaveInkNoteImages  bool
	InkNoteImagesDir   string
}

// Canceler is a cooperative, trip-once cancellation signal shared
// across every in-flight item in a batch (§4.5 "stop-on-error").
type Canceler struct {
	mu      sync.Mutex
	tripped bool
	reason  error
}

func NewCanceler() *Canceler { return &Canceler{} }

// Trip marks the canceler tripped; the first reason recorded wins.
func (c *Canceler) Trip(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tripped {
		c.tripped = true
		c.reason = reason
	}
}

func (c *Canceler) Tripped() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped, c.reason
}

// NotesProcessor downloads full note bodies per item and writes them
// to the local store, per §4.5.
type NotesProcessor struct {
	local    localstore.Store
	provider notestore.Provider
	resolver NoteConflictResolver
	cfg      NotesConfig
	canceler *Canceler
	ink      InkNoteImageSaver
}

// InkNoteImageSaver persists a rasterized ink-note image (§4.5 step 6).
// Kept as a narrow collaborator so the processor doesn't depend on a
// filesystem directly.
type InkNoteImageSaver interface {
	Save(resourceGuid string, data []byte) error
}

func NewNotesProcessor(local localstore.Store, provider notestore.Provider, resolver NoteConflictResolver, cfg NotesConfig, canceler *Canceler, ink InkNoteImageSaver) *NotesProcessor {
	if canceler == nil {
		canceler = NewCanceler()
	}
	return &NotesProcessor{local: local, provider: provider, resolver: resolver, cfg: cfg, canceler: canceler, ink: ink}
}

// ProcessMetadata downloads and stores the full body of every note
// named in the batch's metadata-only entries, and expunges the guids
// named. Every item runs concurrently via an errgroup; a rate-limit or
// auth-expired error trips the shared canceler so siblings abort.
func (p *NotesProcessor) ProcessMetadata(ctx context.Context, incoming []*model.Note, expunged []string) []NoteResult {
	log := nwlog.WithComponent("sync.processors.notes")
	results := make([]NoteResult, 0, len(incoming)+len(expunged))
	var mu sync.Mutex
	record := func(r NoteResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	var expungeGroup errgroup.Group
	for _, guid := range expunged {
		guid := guid
		expungeGroup.Go(func() error {
			if tripped, _ := p.canceler.Tripped(); tripped {
				record(NoteResult{Guid: guid, Outcome: NoteCancelled})
				return nil
			}
			if err := p.local.ExpungeNoteByGuid(ctx, guid); err != nil {
				log.Error().Str("guid", guid).Err(err).Msg("failed to expunge note")
				record(NoteResult{Guid: guid, Outcome: NoteFailedToExpunge, Err: err})
				return nil
			}
			record(NoteResult{Guid: guid, Outcome: NoteExpunged})
			return nil
		})
	}
	expungeGroup.Wait()

	var group errgroup.Group
	for _, n := range incoming {
		n := n
		group.Go(func() error {
			result := p.processOne(ctx, n)
			record(result)
			return nil
		})
	}
	group.Wait()

	return results
}

func (p *NotesProcessor) processOne(ctx context.Context, incoming *model.Note) NoteResult {
	log := nwlog.WithComponent("sync.processors.notes")

	if tripped, _ := p.canceler.Tripped(); tripped {
		return NoteResult{Guid: incoming.Guid, Outcome: NoteCancelled}
	}
	select {
	case <-ctx.Done():
		return NoteResult{Guid: incoming.Guid, Outcome: NoteCancelled}
	default:
	}

	local, err := p.local.FindNoteByGuid(ctx, incoming.Guid, localstore.WithResourceMetadata)
	if err != nil {
		return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToPutToLocalStorage, Err: err}
	}

	isUpdate := local != nil
	preserveLocalID := incoming.LocalID
	preserveFavorited := false
	if local != nil {
		preserveLocalID = local.LocalID
		preserveFavorited = local.LocallyFavorited
		if p.resolver != nil {
			action, renamed, err := p.resolver.ResolveNoteConflict(ctx, incoming, local)
			if err != nil {
				return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToResolveConflict, Err: err}
			}
			switch action {
			case UseTheirs:
			case UseMine:
				return NoteResult{Guid: incoming.Guid, Outcome: NoteIgnored}
			case IgnoreMine:
			case MoveMine:
				if renamed == nil {
					return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToResolveConflict, Err: fmt.Errorf("resolver returned MoveMine with no renamed note")}
				}
				if err := p.local.PutNote(ctx, renamed); err != nil {
					return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToPutToLocalStorage, Err: err}
				}
			}
		}
	}

	store, err := p.provider.NoteStoreForNotebook(ctx, incoming.NotebookGuid)
	if err != nil {
		return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToDownloadFullData, Err: err}
	}

	full, err := store.GetNote(ctx, incoming.Guid, true, true, true, true)
	if err != nil {
		if re, ok := err.(*notestore.RemoteError); ok && re.IsStopCondition() {
			p.canceler.Trip(re)
		}
		return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToDownloadFullData, Err: err}
	}

	full.LocalID = preserveLocalID
	full.LocallyFavorited = preserveFavorited
	preserveResourceLocalIDs(full, local)

	if p.cfg.DownloadThumbnails {
		size := p.cfg.ThumbnailPixelSize
		if size <= 0 {
			size = 300
		}
		if thumb, err := store.GetNoteThumbnail(ctx, incoming.Guid, size); err != nil {
			log.Warn().Str("guid", incoming.Guid).Err(err).Msg("thumbnail download failed, continuing without one")
		} else {
			full.ThumbnailData = thumb
		}
	}

	if p.cfg.SaveInkNoteImages && p.ink != nil {
		for _, r := range full.Resources {
			if r.Mime != "application/vnd.evernote.ink" {
				continue
			}
			raster, err := store.GetResourceAsInkNoteImage(ctx, r.Guid)
			if err != nil {
				log.Warn().Str("resource_guid", r.Guid).Err(err).Msg("ink note image download failed, skipping")
				continue
			}
			if err := p.ink.Save(r.Guid, raster); err != nil {
				log.Warn().Str("resource_guid", r.Guid).Err(err).Msg("ink note image save failed, skipping")
			}
		}
	}

	if err := p.local.PutNote(ctx, full); err != nil {
		return NoteResult{Guid: incoming.Guid, Outcome: NoteFailedToPutToLocalStorage, Err: err}
	}

	if isUpdate {
		return NoteResult{Guid: full.Guid, USN: full.UpdateSequenceNum, Outcome: NoteUpdated}
	}
	return NoteResult{Guid: full.Guid, USN: full.UpdateSequenceNum, Outcome: NoteAdded}
}

// preserveResourceLocalIDs matches incoming resources to the
// previously-stored local's resources by guid so server-supplied fresh
// ids do not displace locally-assigned ones (§4.5 step 4).
func preserveResourceLocalIDs(full, local *model.Note) {
	if local == nil {
		for _, r := range full.Resources {
			if r.LocalID == "" {
				r.LocalID = model.NewLocalID()
			}
		}
		return
	}
	byGuid := make(map[string]string, len(local.Resources))
	for _, r := range local.Resources {
		if r.Guid != "" {
			byGuid[r.Guid] = r.LocalID
		}
	}
	for _, r := range full.Resources {
		if id, ok := byGuid[r.Guid]; ok {
			r.LocalID = id
		} else if r.LocalID == "" {
			r.LocalID = model.NewLocalID()
		}
	}
}
