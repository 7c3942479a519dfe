package processors

import (
	"context"
	"fmt"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/nwlog"
)

// NotebookConflictResolver is the pluggable resolver consulted when an
// incoming notebook collides with a local one by guid or by name
// (§4.4). Linked-notebook processing never consults it: incoming
// always overrides local there.
type NotebookConflictResolver interface {
	ResolveNotebookConflict(ctx context.Context, incoming, local *model.Notebook) (ConflictAction, *model.Notebook, error)
}

// NotebooksProcessor applies notebook entities and expunge notices
// from a batch of sync chunks to the local store (§4.4).
type NotebooksProcessor struct {
	store    localstore.Store
	resolver NotebookConflictResolver
}

func NewNotebooksProcessor(store localstore.Store, resolver NotebookConflictResolver) *NotebooksProcessor {
	return &NotebooksProcessor{store: store, resolver: resolver}
}

// Process applies every notebook change across chunks to the local
// store, reporting progress via onProgress after each transition.
func (p *NotebooksProcessor) Process(ctx context.Context, chunks []*model.SyncChunk, linkedNotebookGuid string, onProgress ProgressFunc) (Counters, error) {
	log := nwlog.WithComponent("sync.processors.notebooks")
	counters := &Counters{}

	expunged := make(map[string]struct{})
	var incoming []*model.Notebook
	for _, chunk := range chunks {
		for _, g := range chunk.ExpungedNotebooks {
			expunged[g] = struct{}{}
		}
		incoming = append(incoming, chunk.Notebooks...)
	}

	// Server's expunge wins over a same-batch update.
	filtered := incoming[:0:0]
	for _, nb := range incoming {
		if _, skip := expunged[nb.Guid]; !skip {
			filtered = append(filtered, nb)
		}
	}
	incoming = filtered

	for guid := range expunged {
		if err := p.store.ExpungeNotebookByGuid(ctx, guid); err != nil {
			return counters.Snapshot(), fmt.Errorf("expunge notebook %s: %w", guid, err)
		}
		counters.incExpunged()
		notify(onProgress, counters)
	}

	isLinked := linkedNotebookGuid != ""
	for _, nb := range incoming {
		counters.incTotal()
		if err := p.applyOne(ctx, nb, isLinked, counters); err != nil {
			log.Error().Str("guid", nb.Guid).Err(err).Msg("failed to apply notebook")
			return counters.Snapshot(), err
		}
		notify(onProgress, counters)
	}

	return counters.Snapshot(), nil
}

func (p *NotebooksProcessor) applyOne(ctx context.Context, incoming *model.Notebook, isLinked bool, counters *Counters) error {
	local, err := p.store.FindNotebookByGuid(ctx, incoming.Guid)
	if err != nil {
		return err
	}

	if local != nil {
		resolved := incoming
		if !isLinked && p.resolver != nil {
			action, renamed, err := p.resolver.ResolveNotebookConflict(ctx, incoming, local)
			if err != nil {
				return fmt.Errorf("resolve notebook conflict: %w", err)
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
					return fmt.Errorf("resolver returned MoveMine with no renamed notebook")
				}
				if err := p.store.PutNotebook(ctx, renamed); err != nil {
					return fmt.Errorf("persist renamed notebook: %w", err)
				}
				resolved = incoming
			default:
				return fmt.Errorf("unexpected conflict resolver action %d", action)
			}
		} else {
			incoming.LocalID = local.LocalID
			incoming.LocallyFavorited = local.LocallyFavorited
		}
		if err := p.resolveDefaultNotebook(ctx, resolved); err != nil {
			return fmt.Errorf("resolve default notebook: %w", err)
		}
		if err := p.store.PutNotebook(ctx, resolved); err != nil {
			return err
		}
		counters.incUpdated()
		return nil
	}

	// Not found by guid — check for a name conflict (scoped to the
	// linked notebook, if any).
	byName, err := p.store.FindNotebookByName(ctx, incoming.Name, incoming.LinkedNotebookGuid)
	if err != nil {
		return err
	}
	if byName != nil && !isLinked && p.resolver != nil {
		action, renamed, err := p.resolver.ResolveNotebookConflict(ctx, incoming, byName)
		if err != nil {
			return fmt.Errorf("resolve notebook name conflict: %w", err)
		}
		switch action {
		case UseMine:
			return nil
		case MoveMine:
			if renamed == nil {
				return fmt.Errorf("resolver returned MoveMine with no renamed notebook")
			}
			if err := p.store.PutNotebook(ctx, renamed); err != nil {
				return fmt.Errorf("persist renamed notebook: %w", err)
			}
		case UseTheirs, IgnoreMine:
			// fall through: incoming becomes new below.
		default:
			return fmt.Errorf("unexpected conflict resolver action %d", action)
		}
	}

	incoming.LocalID = model.NewLocalID()
	if err := p.resolveDefaultNotebook(ctx, incoming); err != nil {
		return fmt.Errorf("resolve default notebook: %w", err)
	}
	if err := p.store.PutNotebook(ctx, incoming); err != nil {
		return err
	}
	counters.incAdded()
	return nil
}

// resolveDefaultNotebook demotes whatever notebook currently holds the
// local default flag when incoming claims it instead, so exactly one
// notebook in the scope is ever marked default.
func (p *NotebooksProcessor) resolveDefaultNotebook(ctx context.Context, incoming *model.Notebook) error {
	if !incoming.IsDefault {
		return nil
	}
	all, err := p.store.ListNotebooks(ctx, false)
	if err != nil {
		return err
	}
	for _, nb := range all {
		if nb.Guid == incoming.Guid {
			continue
		}
		if nb.IsDefault && nb.LinkedNotebookGuid == incoming.LinkedNotebookGuid {
			nb.IsDefault = false
			if err := p.store.PutNotebook(ctx, nb); err != nil {
				return err
			}
		}
	}
	return nil
}
