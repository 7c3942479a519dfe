// Package syncchunks implements the on-disk sync-chunk cache
// (SyncChunksStorage, §4.1), the downloader that pulls chunks from the
// remote service (SyncChunksDownloader, §4.2), and the provider that
// composes the two (SyncChunksProvider, §4.3).
package syncchunks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mattsolo1/notewire/pkg/model"
)

const userOwnDir = "user_own"

// USNRange is an exclusive-low, inclusive-high USN window, (lo, hi] in
// spec terms: it covers entities with lo < USN <= hi, where lo is the
// after-USN the request that produced it started from.
type USNRange struct {
	Lo model.USN
	Hi model.USN
}

// StoredChunk pairs a sync chunk with the USN range it was requested
// for and is stored under — the "lo" is not otherwise recoverable from
// the chunk's own contents once its low-USN entities have been
// filtered out by Fetch*Relevant*Chunks.
type StoredChunk struct {
	Range USNRange
	Chunk *model.SyncChunk
}

// Storage is the on-disk cache of sync chunks, keyed by USN range and
// separated by scope (the user's own account, or a linked notebook).
// A reader/writer lock protects the in-memory USN-range index; each
// scope's directory is scanned lazily on first access and cached.
type Storage struct {
	root string

	mu    sync.RWMutex
	index map[string][]USNRange // scope -> sorted, non-overlapping ranges
	built map[string]bool       // scope -> index has been scanned
}

// NewStorage creates a Storage rooted at root. The directory is
// created lazily on first write.
func NewStorage(root string) *Storage {
	return &Storage{
		root:  root,
		index: make(map[string][]USNRange),
		built: make(map[string]bool),
	}
}

func scopeDir(root, scope string) string {
	return filepath.Join(root, scope)
}

func (s *Storage) ensureIndex(scope string) error {
	s.mu.RLock()
	built := s.built[scope]
	s.mu.RUnlock()
	if built {
		return nil
	}

	dir := scopeDir(s.root, scope)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.built[scope] = true
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan sync chunk dir %s: %w", dir, err)
	}

	var ranges []USNRange
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r, ok := parseRangeFileName(e.Name())
		if !ok {
			continue
		}
		ranges = append(ranges, r)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Lo < ranges[j].Lo })

	s.mu.Lock()
	s.index[scope] = ranges
	s.built[scope] = true
	s.mu.Unlock()
	return nil
}

func parseRangeFileName(name string) (USNRange, bool) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return USNRange{}, false
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return USNRange{}, false
	}
	return USNRange{Lo: model.USN(lo), Hi: model.USN(hi)}, true
}

func rangeFileName(r USNRange) string {
	return fmt.Sprintf("%d_%d", r.Lo, r.Hi)
}

// FetchUserOwnUSNRanges returns the sorted, non-overlapping ranges
// currently stored for the user's own account.
func (s *Storage) FetchUserOwnUSNRanges() ([]USNRange, error) {
	return s.fetchRanges(userOwnDir)
}

// FetchLinkedNotebookUSNRanges returns the sorted, non-overlapping
// ranges currently stored for a linked notebook.
func (s *Storage) FetchLinkedNotebookUSNRanges(lnbGuid string) ([]USNRange, error) {
	return s.fetchRanges(lnbGuid)
}

func (s *Storage) fetchRanges(scope string) ([]USNRange, error) {
	if err := s.ensureIndex(scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]USNRange, len(s.index[scope]))
	copy(out, s.index[scope])
	return out, nil
}

// FetchRelevantUserOwnChunks returns stored chunks covering USNs past
// afterUSN, with any chunk straddling afterUSN filtered in place so
// every remaining entity has USN > afterUSN.
func (s *Storage) FetchRelevantUserOwnChunks(afterUSN model.USN) ([]*model.SyncChunk, error) {
	return s.fetchRelevant(userOwnDir, afterUSN)
}

// FetchRelevantLinkedNotebookChunks is the linked-notebook analogue of
// FetchRelevantUserOwnChunks.
func (s *Storage) FetchRelevantLinkedNotebookChunks(lnbGuid string, afterUSN model.USN) ([]*model.SyncChunk, error) {
	return s.fetchRelevant(lnbGuid, afterUSN)
}

func (s *Storage) fetchRelevant(scope string, afterUSN model.USN) ([]*model.SyncChunk, error) {
	ranges, err := s.fetchRanges(scope)
	if err != nil {
		return nil, err
	}

	var out []*model.SyncChunk
	for _, r := range ranges {
		if r.Hi <= afterUSN {
			continue
		}
		chunk, err := s.readChunk(scope, r)
		if err != nil {
			return nil, err
		}
		if r.Lo <= afterUSN && afterUSN < r.Hi {
			filterChunkAfterUSN(chunk, afterUSN)
		}
		out = append(out, chunk)
	}
	return out, nil
}

// filterChunkAfterUSN removes every entity and expunge entry with
// USN <= afterUSN from chunk, in place.
func filterChunkAfterUSN(chunk *model.SyncChunk, afterUSN model.USN) {
	chunk.Notebooks = filterEntities(chunk.Notebooks, afterUSN, func(n *model.Notebook) model.USN { return n.UpdateSequenceNum })
	chunk.Notes = filterEntities(chunk.Notes, afterUSN, func(n *model.Note) model.USN { return n.UpdateSequenceNum })
	chunk.Resources = filterEntities(chunk.Resources, afterUSN, func(r *model.Resource) model.USN { return r.UpdateSequenceNum })
	chunk.Tags = filterEntities(chunk.Tags, afterUSN, func(t *model.Tag) model.USN { return t.UpdateSequenceNum })
	chunk.SavedSearches = filterEntities(chunk.SavedSearches, afterUSN, func(s *model.SavedSearch) model.USN { return s.UpdateSequenceNum })
	chunk.LinkedNotebooks = filterEntities(chunk.LinkedNotebooks, afterUSN, func(l *model.LinkedNotebook) model.USN { return l.UpdateSequenceNum })
}

func filterEntities[T any](items []T, afterUSN model.USN, usnOf func(T) model.USN) []T {
	if len(items) == 0 {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if usnOf(it) > afterUSN {
			out = append(out, it)
		}
	}
	return out
}

func (s *Storage) readChunk(scope string, r USNRange) (*model.SyncChunk, error) {
	path := filepath.Join(scopeDir(s.root, scope), rangeFileName(r))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sync chunk %s: %w", path, err)
	}
	var chunk model.SyncChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("parse sync chunk %s: %w", path, err)
	}
	return &chunk, nil
}

// PutUserOwnChunks persists chunks fetched starting at afterUSN for
// the user's own account. If any new chunk's low end overlaps an
// existing stored range in this scope, the entire scope is cleared
// first, since that signals a prior failed sync that must restart.
func (s *Storage) PutUserOwnChunks(afterUSN model.USN, chunks []*model.SyncChunk) error {
	return s.putChunks(userOwnDir, afterUSN, chunks)
}

// PutLinkedNotebookChunks is the linked-notebook analogue of
// PutUserOwnChunks.
func (s *Storage) PutLinkedNotebookChunks(lnbGuid string, afterUSN model.USN, chunks []*model.SyncChunk) error {
	return s.putChunks(lnbGuid, afterUSN, chunks)
}

func (s *Storage) putChunks(scope string, afterUSN model.USN, chunks []*model.SyncChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureIndex(scope); err != nil {
		return err
	}

	stored := make([]StoredChunk, 0, len(chunks))
	lo := afterUSN
	for _, c := range chunks {
		if c.ChunkHighUSN == nil {
			return fmt.Errorf("sync chunk has nil chunk_high_usn, cannot store")
		}
		hi := *c.ChunkHighUSN
		stored = append(stored, StoredChunk{Range: USNRange{Lo: lo, Hi: hi}, Chunk: c})
		lo = hi
	}

	s.mu.Lock()
	existing := s.index[scope]
	overlap := false
	for _, sc := range stored {
		for _, e := range existing {
			if sc.Range.Lo < e.Hi && e.Lo < sc.Range.Hi {
				overlap = true
				break
			}
		}
		if overlap {
			break
		}
	}
	s.mu.Unlock()

	if overlap {
		if err := s.clearScope(scope); err != nil {
			return err
		}
	}

	dir := scopeDir(s.root, scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sync chunk dir %s: %w", dir, err)
	}

	for _, sc := range stored {
		data, err := json.Marshal(sc.Chunk)
		if err != nil {
			return fmt.Errorf("marshal sync chunk: %w", err)
		}
		path := filepath.Join(dir, rangeFileName(sc.Range))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write sync chunk %s: %w", path, err)
		}
	}

	s.mu.Lock()
	ranges := append(append([]USNRange{}, s.index[scope]...), rangesOf(stored)...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Lo < ranges[j].Lo })
	s.index[scope] = ranges
	s.mu.Unlock()
	return nil
}

func rangesOf(stored []StoredChunk) []USNRange {
	out := make([]USNRange, len(stored))
	for i, sc := range stored {
		out[i] = sc.Range
	}
	return out
}

// ClearUserOwn removes all stored chunks for the user's own account.
func (s *Storage) ClearUserOwn() error { return s.clearScope(userOwnDir) }

// ClearLinkedNotebook removes all stored chunks for a linked notebook.
func (s *Storage) ClearLinkedNotebook(lnbGuid string) error { return s.clearScope(lnbGuid) }

// ClearAll removes every stored chunk, in every scope.
func (s *Storage) ClearAll() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("clear sync chunk storage: %w", err)
	}
	s.mu.Lock()
	s.index = make(map[string][]USNRange)
	s.built = make(map[string]bool)
	s.mu.Unlock()
	return nil
}

func (s *Storage) clearScope(scope string) error {
	dir := scopeDir(s.root, scope)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear sync chunk scope %s: %w", scope, err)
	}
	s.mu.Lock()
	delete(s.index, scope)
	s.built[scope] = true
	s.mu.Unlock()
	return nil
}

// Flush is a no-op for this implementation: PutUserOwnChunks and
// PutLinkedNotebookChunks persist synchronously, so there is never a
// pending in-memory chunk for Flush to write out. It exists to satisfy
// callers written against the §4.1 contract, where an implementation
// that batches writes would need it.
func (s *Storage) Flush() error { return nil }
