package processors

import (
	"context"
	"fmt"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/nwlog"
)

// SavedSearchConflictResolver is the pluggable resolver for saved
// search conflicts. Saved searches are never scoped to a linked
// notebook, so it is always consulted for a local collision.
type SavedSearchConflictResolver interface {
	ResolveSavedSearchConflict(ctx context.Context, incoming, local *model.SavedSearch) (ConflictAction, *model.SavedSearch, error)
}

// SavedSearchesProcessor applies saved-search entities and expunge
// notices from a batch of sync chunks to the local store (§4.4).
type SavedSearchesProcessor struct {
	store    localstore.Store
	resolver SavedSearchConflictResolver
}

func NewSavedSearchesProcessor(store localstore.Store, resolver SavedSearchConflictResolver) *SavedSearchesProcessor {
	return &SavedSearchesProcessor{store: store, resolver: resolver}
}

func (p *SavedSearchesProcessor) Process(ctx context.Context, chunks []*model.SyncChunk, onProgress ProgressFunc) (Counters, error) {
	log := nwlog.WithComponent("sync.processors.savedsearches")
	counters := &Counters{}

	expunged := make(map[string]struct{})
	var incoming []*model.SavedSearch
	for _, chunk := range chunks {
		for _, g := range chunk.ExpungedSearches {
			expunged[g] = struct{}{}
		}
		incoming = append(incoming, chunk.SavedSearches...)
	}

	filtered := incoming[:0:0]
	for _, s := range incoming {
		if _, skip := expunged[s.Guid]; !skip {
			filtered = append(filtered, s)
		}
	}
	incoming = filtered

	for guid := range expunged {
		if err := p.store.ExpungeSavedSearchByGuid(ctx, guid); err != nil {
			return counters.Snapshot(), fmt.Errorf("expunge saved search %s: %w", guid, err)
		}
		counters.incExpunged()
		notify(onProgress, counters)
	}

	for _, s := range incoming {
		counters.incTotal()
		if err := p.applyOne(ctx, s, counters); err != nil {
			log.Error().Str("guid", s.Guid).Err(err).Msg("failed to apply saved search")
			return counters.Snapshot(), err
		}
		notify(onProgress, counters)
	}

	return counters.Snapshot(), nil
}

func (p *SavedSearchesProcessor) applyOne(ctx context.Context, incoming *model.SavedSearch, counters *Counters) error {
	local, err := p.store.FindSavedSearchByGuid(ctx, incoming.Guid)
	if err != nil {
		return err
	}

	if local != nil {
		resolved := incoming
		if p.resolver != nil {
			action, renamed, err := p.resolver.ResolveSavedSearchConflict(ctx, incoming, local)
			if err != nil {
				return fmt.Errorf("resolve saved search conflict: %w", err)
			}
			switch action {
			case UseTheirs:
				incoming.LocalID = local.LocalID
				resolved = incoming
			case UseMine:
				return nil
			case IgnoreMine:
				resolved = incoming
			case MoveMine:
				if renamed == nil {
					return fmt.Errorf("resolver returned MoveMine with no renamed saved search")
				}
				if err := p.store.PutSavedSearch(ctx, renamed); err != nil {
					return fmt.Errorf("persist renamed saved search: %w", err)
				}
				resolved = incoming
			default:
				return fmt.Errorf("unexpected conflict resolver action %d", action)
			}
		} else {
			incoming.LocalID = local.LocalID
		}
		if err := p.store.PutSavedSearch(ctx, resolved); err != nil {
			return err
		}
		counters.incUpdated()
		return nil
	}

	byName, err := p.store.FindSavedSearchByName(ctx, incoming.Name)
	if err != nil {
		return err
	}
	if byName != nil && p.resolver != nil {
		action, renamed, err := p.resolver.ResolveSavedSearchConflict(ctx, incoming, byName)
		if err != nil {
			return fmt.Errorf("resolve saved search name conflict: %w", err)
		}
		switch action {
		case UseMine:
			return nil
		case MoveMine:
			if renamed == nil {
				return fmt.Errorf("resolver returned MoveMine with no renamed saved search")
			}
			if err := p.store.PutSavedSearch(ctx, renamed); err != nil {
				return fmt.Errorf("persist renamed saved search: %w", err)
			}
		case UseTheirs, IgnoreMine:
		default:
			return fmt.Errorf("unexpected conflict resolver action %d", action)
		}
	}

	incoming.LocalID = model.NewLocalID()
	if err := p.store.PutSavedSearch(ctx, incoming); err != nil {
		return err
	}
	counters.incAdded()
	return nil
}
