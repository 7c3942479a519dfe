package processors

import (
	"context"
	"fmt"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/nwlog"
)

// LinkedNotebooksProcessor applies linked-notebook entities and
// expunge notices to the local store. Unlike the other item
// processors it never consults a conflict resolver: a linked notebook
// is a pointer to someone else's notebook, so incoming always
// overrides local (§4.4).
type LinkedNotebooksProcessor struct {
	store localstore.Store
}

func NewLinkedNotebooksProcessor(store localstore.Store) *LinkedNotebooksProcessor {
	return &LinkedNotebooksProcessor{store: store}
}

func (p *LinkedNotebooksProcessor) Process(ctx context.Context, chunks []*model.SyncChunk, onProgress ProgressFunc) (Counters, error) {
	log := nwlog.WithComponent("sync.processors.linkednotebooks")
	counters := &Counters{}

	expunged := make(map[string]struct{})
	var incoming []*model.LinkedNotebook
	for _, chunk := range chunks {
		for _, g := range chunk.ExpungedLinkedNotebooks {
			expunged[g] = struct{}{}
		}
		incoming = append(incoming, chunk.LinkedNotebooks...)
	}

	filtered := incoming[:0:0]
	for _, l := range incoming {
		if _, skip := expunged[l.Guid]; !skip {
			filtered = append(filtered, l)
		}
	}
	incoming = filtered

	for guid := range expunged {
		if err := p.store.ExpungeLinkedNotebookByGuid(ctx, guid); err != nil {
			return counters.Snapshot(), fmt.Errorf("expunge linked notebook %s: %w", guid, err)
		}
		counters.incExpunged()
		notify(onProgress, counters)
	}

	for _, l := range incoming {
		counters.incTotal()
		if err := p.applyOne(ctx, l, counters); err != nil {
			log.Error().Str("guid", l.Guid).Err(err).Msg("failed to apply linked notebook")
			return counters.Snapshot(), err
		}
		notify(onProgress, counters)
	}

	return counters.Snapshot(), nil
}

func (p *LinkedNotebooksProcessor) applyOne(ctx context.Context, incoming *model.LinkedNotebook, counters *Counters) error {
	local, err := p.store.FindLinkedNotebookByGuid(ctx, incoming.Guid)
	if err != nil {
		return err
	}

	if local != nil {
		if err := p.store.PutLinkedNotebook(ctx, incoming); err != nil {
			return err
		}
		counters.incUpdated()
		return nil
	}

	if err := p.store.PutLinkedNotebook(ctx, incoming); err != nil {
		return err
	}
	counters.incAdded()
	return nil
}
