package syncchunks

import (
	"context"

	"github.com/mattsolo1/notewire/pkg/model"
)

// Provider composes Storage and Downloader (§4.3): it serves cached
// chunks when they cover the requested range and falls back to
// downloading whatever is missing, writing the result back to
// storage.
type Provider struct {
	storage *Storage
}

// NewProvider creates a Provider over storage.
func NewProvider(storage *Storage) *Provider {
	return &Provider{storage: storage}
}

// FetchUserOwnChunks returns every sync chunk past afterUSN for the
// user's own account, consulting the cache first.
func (p *Provider) FetchUserOwnChunks(ctx context.Context, afterUSN model.USN, downloader *Downloader, onProgress ProgressFunc) ([]*model.SyncChunk, error) {
	ranges, err := p.storage.FetchUserOwnUSNRanges()
	if err != nil {
		return nil, err
	}

	contiguous, hi := contiguousFrom(ranges, afterUSN)
	if !contiguous {
		outcome := downloader.DownloadUserOwn(ctx, afterUSN, onProgress)
		if len(outcome.Chunks) > 0 {
			if err := p.storage.PutUserOwnChunks(afterUSN, outcome.Chunks); err != nil {
				return nil, err
			}
		}
		if outcome.Err != nil {
			return outcome.Chunks, outcome.Err
		}
		return p.storage.FetchRelevantUserOwnChunks(afterUSN)
	}

	stored, err := p.storage.FetchRelevantUserOwnChunks(afterUSN)
	if err != nil {
		return nil, err
	}

	outcome := downloader.DownloadUserOwn(ctx, hi, onProgress)
	if len(outcome.Chunks) > 0 {
		if err := p.storage.PutUserOwnChunks(hi, outcome.Chunks); err != nil {
			return nil, err
		}
	}
	if outcome.Err != nil {
		return append(stored, outcome.Chunks...), outcome.Err
	}
	return append(stored, outcome.Chunks...), nil
}

// FetchLinkedNotebookChunks is the linked-notebook analogue of
// FetchUserOwnChunks.
func (p *Provider) FetchLinkedNotebookChunks(ctx context.Context, lnb *model.LinkedNotebook, afterUSN model.USN, downloader *Downloader, onProgress ProgressFunc) ([]*model.SyncChunk, error) {
	ranges, err := p.storage.FetchLinkedNotebookUSNRanges(lnb.Guid)
	if err != nil {
		return nil, err
	}

	contiguous, hi := contiguousFrom(ranges, afterUSN)
	if !contiguous {
		outcome := downloader.DownloadLinkedNotebook(ctx, lnb, afterUSN, onProgress)
		if len(outcome.Chunks) > 0 {
			if err := p.storage.PutLinkedNotebookChunks(lnb.Guid, afterUSN, outcome.Chunks); err != nil {
				return nil, err
			}
		}
		if outcome.Err != nil {
			return outcome.Chunks, outcome.Err
		}
		return p.storage.FetchRelevantLinkedNotebookChunks(lnb.Guid, afterUSN)
	}

	stored, err := p.storage.FetchRelevantLinkedNotebookChunks(lnb.Guid, afterUSN)
	if err != nil {
		return nil, err
	}

	outcome := downloader.DownloadLinkedNotebook(ctx, lnb, hi, onProgress)
	if len(outcome.Chunks) > 0 {
		if err := p.storage.PutLinkedNotebookChunks(lnb.Guid, hi, outcome.Chunks); err != nil {
			return nil, err
		}
	}
	if outcome.Err != nil {
		return append(stored, outcome.Chunks...), outcome.Err
	}
	return append(stored, outcome.Chunks...), nil
}

// contiguousFrom reports whether ranges form an unbroken chain
// starting at afterUSN (or at the very beginning, if afterUSN==0), and
// if so the high end of that chain.
func contiguousFrom(ranges []USNRange, afterUSN model.USN) (bool, model.USN) {
	if len(ranges) == 0 {
		return false, afterUSN
	}
	if ranges[0].Lo != afterUSN {
		return false, afterUSN
	}
	hi := ranges[0].Hi
	for _, r := range ranges[1:] {
		if r.Lo != hi {
			return false, afterUSN
		}
		hi = r.Hi
	}
	return true, hi
}
