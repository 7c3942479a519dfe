package processors

import (
	"context"
	"sync"

	"github.com/mattsolo1/notewire/pkg/enml"
	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/notestore"
	"github.com/mattsolo1/notewire/pkg/nwlog"
	"golang.org/x/sync/errgroup"
)

// ResourceOutcome is the per-item result of processing one resource
// (§4.5).
type ResourceOutcome int

const (
	ResourceAdded ResourceOutcome = iota
	ResourceUpdated
	ResourceExpunged
	ResourceIgnored
	ResourceFailedToDownloadFullData
	ResourceFailedToPutToLocalStorage
	ResourceFailedToExpunge
	ResourceFailedToResolveConflict
	ResourceCancelled
)

// ResourceResult pairs a resource's guid with the outcome of
// processing it.
type ResourceResult struct {
	Guid    string
	USN     model.USN
	Outcome ResourceOutcome
	Err     error
}

// ResourcesProcessor downloads full resource bodies per item. Unlike
// notes it has an additional conflict path: a resource whose local
// copy points at a different note, or whose owning note is locally
// modified, forces the owning note (and all of its sibling resources)
// to be duplicated before the incoming update is applied to the
// original (§4.5). A local copy whose owning note is not in the local
// store is overwritten without any duplicate being made.
type ResourcesProcessor struct {
	local    localstore.Store
	provider notestore.Provider
	canceler *Canceler
}

func NewResourcesProcessor(local localstore.Store, provider notestore.Provider, canceler *Canceler) *ResourcesProcessor {
	if canceler == nil {
		canceler = NewCanceler()
	}
	return &ResourcesProcessor{local: local, provider: provider, canceler: canceler}
}

func (p *ResourcesProcessor) ProcessMetadata(ctx context.Context, incoming []*model.Resource, expunged []string) []ResourceResult {
	log := nwlog.WithComponent("sync.processors.resources")

	// A resource with a usn but no note binding can't be placed; skip
	// it rather than fail the whole batch.
	filtered := incoming[:0:0]
	for _, r := range incoming {
		if _, _, ok := r.NoteRef(); !ok {
			log.Warn().Str("guid", r.Guid).Msg("resource has no note_guid or note_local_id, skipping")
			continue
		}
		filtered = append(filtered, r)
	}
	incoming = filtered

	results := make([]ResourceResult, 0, len(incoming)+len(expunged))
	var mu sync.Mutex
	record := func(r ResourceResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	var expungeGroup errgroup.Group
	for _, guid := range expunged {
		guid := guid
		expungeGroup.Go(func() error {
			if tripped, _ := p.canceler.Tripped(); tripped {
				record(ResourceResult{Guid: guid, Outcome: ResourceCancelled})
				return nil
			}
			if err := p.local.ExpungeResourceByGuid(ctx, guid); err != nil {
				log.Error().Str("guid", guid).Err(err).Msg("failed to expunge resource")
				record(ResourceResult{Guid: guid, Outcome: ResourceFailedToExpunge, Err: err})
				return nil
			}
			record(ResourceResult{Guid: guid, Outcome: ResourceExpunged})
			return nil
		})
	}
	expungeGroup.Wait()

	var group errgroup.Group
	for _, r := range incoming {
		r := r
		group.Go(func() error {
			record(p.processOne(ctx, r))
			return nil
		})
	}
	group.Wait()

	return results
}

func (p *ResourcesProcessor) processOne(ctx context.Context, incoming *model.Resource) ResourceResult {
	if tripped, _ := p.canceler.Tripped(); tripped {
		return ResourceResult{Guid: incoming.Guid, Outcome: ResourceCancelled}
	}
	select {
	case <-ctx.Done():
		return ResourceResult{Guid: incoming.Guid, Outcome: ResourceCancelled}
	default:
	}

	local, err := p.local.FindResourceByGuid(ctx, incoming.Guid, false)
	if err != nil {
		return ResourceResult{Guid: incoming.Guid, Outcome: ResourceFailedToPutToLocalStorage, Err: err}
	}

	isUpdate := local != nil
	preserveLocalID := incoming.LocalID
	if local != nil {
		preserveLocalID = local.LocalID

		owningNote, err := p.local.FindNoteByGuid(ctx, local.NoteGuid, localstore.WithResourceMetadata)
		if err != nil {
			return ResourceResult{Guid: incoming.Guid, Outcome: ResourceFailedToResolveConflict, Err: err}
		}

		conflicting := local.NoteGuid == "" || local.NoteGuid != incoming.NoteGuid || (owningNote != nil && owningNote.LocallyModified)
		if conflicting && owningNote != nil {
			if err := p.duplicateConflictingNote(ctx, owningNote); err != nil {
				return ResourceResult{Guid: incoming.Guid, Outcome: ResourceFailedToResolveConflict, Err: err}
			}
		}
	}

	store, err := p.provider.NoteStoreForNotebook(ctx, incoming.NoteGuid)
	if err != nil {
		return ResourceResult{Guid: incoming.Guid, Outcome: ResourceFailedToDownloadFullData, Err: err}
	}

	full, err := store.GetResource(ctx, incoming.Guid, true, true, true, true)
	if err != nil {
		if re, ok := err.(*notestore.RemoteError); ok && re.IsStopCondition() {
			p.canceler.Trip(re)
		}
		return ResourceResult{Guid: incoming.Guid, Outcome: ResourceFailedToDownloadFullData, Err: err}
	}

	full.LocalID = preserveLocalID
	if err := p.local.PutResource(ctx, full); err != nil {
		return ResourceResult{Guid: incoming.Guid, Outcome: ResourceFailedToPutToLocalStorage, Err: err}
	}

	if isUpdate {
		return ResourceResult{Guid: full.Guid, USN: full.UpdateSequenceNum, Outcome: ResourceUpdated}
	}
	return ResourceResult{Guid: full.Guid, USN: full.UpdateSequenceNum, Outcome: ResourceAdded}
}

// duplicateConflictingNote clones owningNote and every one of its
// resources under fresh local-ids, clearing remote guids/USNs on the
// clones and marking the clone's title as conflicting, so the
// incoming resource update can proceed against the original without
// clobbering a note the user has edited or reassigned locally (§4.5).
func (p *ResourcesProcessor) duplicateConflictingNote(ctx context.Context, owningNote *model.Note) error {
	clone := *owningNote
	clone.LocalID = model.NewLocalID()
	clone.Guid = ""
	clone.UpdateSequenceNum = 0
	clone.LocallyModified = true
	clone.Title = owningNote.Title + enml.ConflictTitleSuffix
	clone.Attributes.ConflictSourceNoteGuid = owningNote.Guid

	clonedResources := make([]*model.Resource, 0, len(owningNote.Resources))
	for _, r := range owningNote.Resources {
		rc := *r
		rc.LocalID = model.NewLocalID()
		rc.Guid = ""
		rc.UpdateSequenceNum = 0
		rc.LocallyModified = true
		rc.NoteGuid = ""
		rc.NoteLocalID = clone.LocalID
		clonedResources = append(clonedResources, &rc)
	}
	clone.Resources = clonedResources

	return p.local.PutNote(ctx, &clone)
}
