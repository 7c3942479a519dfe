package processors

import (
	"context"
	"fmt"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/nwlog"
)

// TagConflictResolver is the pluggable resolver for tag conflicts.
type TagConflictResolver interface {
	ResolveTagConflict(ctx context.Context, incoming, local *model.Tag) (ConflictAction, *model.Tag, error)
}

// TagsProcessor applies tag entities and expunge notices from a batch
// of sync chunks to the local store (§4.4).
type TagsProcessor struct {
	store    localstore.Store
	resolver TagConflictResolver
}

func NewTagsProcessor(store localstore.Store, resolver TagConflictResolver) *TagsProcessor {
	return &TagsProcessor{store: store, resolver: resolver}
}

func (p *TagsProcessor) Process(ctx context.Context, chunks []*model.SyncChunk, linkedNotebookGuid string, onProgress ProgressFunc) (Counters, error) {
	log := nwlog.WithComponent("sync.processors.tags")
	counters := &Counters{}

	expunged := make(map[string]struct{})
	var incoming []*model.Tag
	for _, chunk := range chunks {
		for _, g := range chunk.ExpungedTags {
			expunged[g] = struct{}{}
		}
		incoming = append(incoming, chunk.Tags...)
	}

	filtered := incoming[:0:0]
	for _, t := range incoming {
		if _, skip := expunged[t.Guid]; !skip {
			filtered = append(filtered, t)
		}
	}
	incoming = filtered

	for guid := range expunged {
		if err := p.store.ExpungeTagByGuid(ctx, guid); err != nil {
			return counters.Snapshot(), fmt.Errorf("expunge tag %s: %w", guid, err)
		}
		counters.incExpunged()
		notify(onProgress, counters)
	}

	isLinked := linkedNotebookGuid != ""
	for _, t := range incoming {
		counters.incTotal()
		if err := p.applyOne(ctx, t, isLinked, counters); err != nil {
			log.Error().Str("guid", t.Guid).Err(err).Msg("failed to apply tag")
			return counters.Snapshot(), err
		}
		notify(onProgress, counters)
	}

	return counters.Snapshot(), nil
}

func (p *TagsProcessor) applyOne(ctx context.Context, incoming *model.Tag, isLinked bool, counters *Counters) error {
	local, err := p.store.FindTagByGuid(ctx, incoming.Guid)
	if err != nil {
		return err
	}

	if local != nil {
		resolved := incoming
		if !isLinked && p.resolver != nil {
			action, renamed, err := p.resolver.ResolveTagConflict(ctx, incoming, local)
			if err != nil {
				return fmt.Errorf("resolve tag conflict: %w", err)
			}
			switch action {
			case UseTheirs:
				incoming.LocalID = local.LocalID
				incoming.LocallyFavorited = local.LocallyFavorited
				resolved = incoming
			case UseMine:
				return nil
			case IgnoreMine:
				resolved = incoming
			case MoveMine:
				if renamed == nil {
					return fmt.Errorf("resolver returned MoveMine with no renamed tag")
				}
				if err := p.store.PutTag(ctx, renamed); err != nil {
					return fmt.Errorf("persist renamed tag: %w", err)
				}
				resolved = incoming
			default:
				return fmt.Errorf("unexpected conflict resolver action %d", action)
			}
		} else {
			incoming.LocalID = local.LocalID
			incoming.LocallyFavorited = local.LocallyFavorited
		}
		if err := p.store.PutTag(ctx, resolved); err != nil {
			return err
		}
		counters.incUpdated()
		return nil
	}

	byName, err := p.store.FindTagByName(ctx, incoming.Name, incoming.LinkedNotebookGuid)
	if err != nil {
		return err
	}
	if byName != nil && !isLinked && p.resolver != nil {
		action, renamed, err := p.resolver.ResolveTagConflict(ctx, incoming, byName)
		if err != nil {
			return fmt.Errorf("resolve tag name conflict: %w", err)
		}
		switch action {
		case UseMine:
			return nil
		case MoveMine:
			if renamed == nil {
				return fmt.Errorf("resolver returned MoveMine with no renamed tag")
			}
			if err := p.store.PutTag(ctx, renamed); err != nil {
				return fmt.Errorf("persist renamed tag: %w", err)
			}
		case UseTheirs, IgnoreMine:
		default:
			return fmt.Errorf("unexpected conflict resolver action %d", action)
		}
	}

	incoming.LocalID = model.NewLocalID()
	if err := p.store.PutTag(ctx, incoming); err != nil {
		return err
	}
	counters.incAdded()
	return nil
}
