// Package sender uploads locally-modified entities to the remote
// service in dependency order (§4.7).
package sender

import (
	"context"
	"sync"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
	"github.com/mattsolo1/notewire/pkg/notestore"
	"github.com/mattsolo1/notewire/pkg/nwlog"
)

// EntityKind names one of the four entity kinds the sender uploads.
type EntityKind string

const (
	KindSavedSearch EntityKind = "saved_search"
	KindTag         EntityKind = "tag"
	KindNotebook    EntityKind = "notebook"
	KindNote        EntityKind = "note"
)

// SendStatus is a monotonic progress snapshot: every counter only ever
// increases across the lifetime of one Send call.
type SendStatus struct {
	mu       sync.Mutex
	Attempted map[EntityKind]int
	Sent      map[EntityKind]int
	Failed    map[EntityKind]int

	NeedToRepeatIncrementalSync bool
	UserDataUpdateCount         model.USN
	StopErr                     error
}

func newSendStatus() *SendStatus {
	return &SendStatus{
		Attempted: make(map[EntityKind]int),
		Sent:      make(map[EntityKind]int),
		Failed:    make(map[EntityKind]int),
	}
}

func (s *SendStatus) incAttempted(k EntityKind) { s.mu.Lock(); s.Attempted[k]++; s.mu.Unlock() }
func (s *SendStatus) incSent(k EntityKind)      { s.mu.Lock(); s.Sent[k]++; s.mu.Unlock() }
func (s *SendStatus) incFailed(k EntityKind)    { s.mu.Lock(); s.Failed[k]++; s.mu.Unlock() }

func (s *SendStatus) observeUSN(usn model.USN, previousMax *model.USN) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usn > s.UserDataUpdateCount {
		s.UserDataUpdateCount = usn
	}
	if previousMax != nil && usn != *previousMax+1 {
		s.NeedToRepeatIncrementalSync = true
	}
	*previousMax = usn
}

// Snapshot returns a copy of the counters safe to hand to a progress
// callback without racing the sender's own goroutine.
func (s *SendStatus) Snapshot() SendStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := SendStatus{
		Attempted:                   make(map[EntityKind]int, len(s.Attempted)),
		Sent:                        make(map[EntityKind]int, len(s.Sent)),
		Failed:                      make(map[EntityKind]int, len(s.Failed)),
		NeedToRepeatIncrementalSync: s.NeedToRepeatIncrementalSync,
		UserDataUpdateCount:         s.UserDataUpdateCount,
		StopErr:                     s.StopErr,
	}
	for k, v := range s.Attempted {
		cp.Attempted[k] = v
	}
	for k, v := range s.Sent {
		cp.Sent[k] = v
	}
	for k, v := range s.Failed {
		cp.Failed[k] = v
	}
	return cp
}

// ProgressFunc receives a SendStatus snapshot after each item.
type ProgressFunc func(SendStatus)

// Sender uploads one scope's worth of locally-modified entities (the
// user's own account, or a single linked notebook) against the
// note-store endpoint that serves that scope.
type Sender struct {
	local localstore.Store
	store notestore.NoteStore
}

func NewSender(local localstore.Store, store notestore.NoteStore) *Sender {
	return &Sender{local: local, store: store}
}

// Send uploads every locally-modified saved search, tag, notebook and
// note scoped to linkedNotebookGuid (empty for the user's own
// account), in dependency order, reporting progress via onProgress.
func (s *Sender) Send(ctx context.Context, linkedNotebookGuid string, onProgress ProgressFunc) (*SendStatus, error) {
	log := nwlog.WithComponent("sync.sender")
	status := newSendStatus()
	var previousMaxUSN model.USN
	notify := func() {
		if onProgress != nil {
			onProgress(status.Snapshot())
		}
	}

	stopped := func() bool { return status.StopErr != nil }
	recordStopIfNeeded := func(err error) {
		if re, ok := err.(*notestore.RemoteError); ok && re.IsStopCondition() && status.StopErr == nil {
			status.StopErr = re
		}
	}

	searches, err := s.local.ListSavedSearches(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, search := range scoped(searches, func(*model.SavedSearch) string { return "" }, linkedNotebookGuid) {
		if stopped() {
			break
		}
		s.sendSavedSearch(ctx, search, status, &previousMaxUSN, recordStopIfNeeded)
		notify()
	}

	allTags, err := s.local.ListTags(ctx, true)
	if err != nil {
		return nil, err
	}
	tags := scoped(allTags, func(t *model.Tag) string { return t.LinkedNotebookGuid }, linkedNotebookGuid)
	resolvedTagGuid, failedNewTag := s.sendTags(ctx, tags, status, &previousMaxUSN, recordStopIfNeeded, notify)

	allNotebooks, err := s.local.ListNotebooks(ctx, false)
	if err != nil {
		return nil, err
	}
	notebooks := scoped(allNotebooks, func(n *model.Notebook) string { return n.LinkedNotebookGuid }, linkedNotebookGuid)
	notebookGuidByLocalID := make(map[string]string, len(notebooks))
	for _, nb := range notebooks {
		if stopped() {
			break
		}
		if !nb.LocallyModified {
			continue
		}
		wasNew := !nb.HasGuid()
		err := s.sendNotebook(ctx, nb, status, &previousMaxUSN)
		if err != nil {
			status.incFailed(KindNotebook)
			recordStopIfNeeded(err)
			log.Warn().Str("local_id", nb.LocalID).Err(err).Msg("failed to send notebook")
		} else {
			status.incSent(KindNotebook)
			if wasNew {
				notebookGuidByLocalID[nb.LocalID] = nb.Guid
			}
		}
		notify()
	}

	notebookLocalIDs := make(map[string]struct{}, len(notebooks))
	notebookGuids := make(map[string]struct{}, len(notebooks))
	for _, nb := range notebooks {
		notebookLocalIDs[nb.LocalID] = struct{}{}
		if nb.HasGuid() {
			notebookGuids[nb.Guid] = struct{}{}
			notebookGuidByLocalID[nb.LocalID] = nb.Guid
		}
	}

	allNotes, err := s.local.ListNotes(ctx, true)
	if err != nil {
		return nil, err
	}
	var notes []*model.Note
	for _, n := range allNotes {
		guid, localID, ok := n.NotebookRef()
		if !ok {
			continue
		}
		_, byLocalID := notebookLocalIDs[localID]
		_, byGuid := notebookGuids[guid]
		if byLocalID || byGuid {
			notes = append(notes, n)
		}
	}
	for _, n := range notes {
		if stopped() {
			break
		}
		s.sendNote(ctx, n, status, &previousMaxUSN, notebookGuidByLocalID, resolvedTagGuid, failedNewTag, recordStopIfNeeded)
		notify()
	}

	return status, nil
}

// scoped filters items to those whose linked-notebook guid matches
// wantGuid ("" selects the user's own scope).
func scoped[T any](items []T, guidOf func(T) string, wantGuid string) []T {
	out := items[:0:0]
	for _, it := range items {
		if guidOf(it) == wantGuid {
			out = append(out, it)
		}
	}
	return out
}

func (s *Sender) sendSavedSearch(ctx context.Context, search *model.SavedSearch, status *SendStatus, previousMaxUSN *model.USN, recordStop func(error)) {
	status.incAttempted(KindSavedSearch)
	var (
		result *model.SavedSearch
		usn    model.USN
		err    error
	)
	if search.HasGuid() {
		usn, err = s.store.UpdateSavedSearch(ctx, search)
	} else {
		result, err = s.store.CreateSavedSearch(ctx, search)
		if err == nil {
			search.Guid = result.Guid
			usn = result.UpdateSequenceNum
		}
	}
	if err != nil {
		status.incFailed(KindSavedSearch)
		recordStop(err)
		return
	}
	search.UpdateSequenceNum = usn
	search.LocallyModified = false
	if err := s.local.PutSavedSearch(ctx, search); err != nil {
		status.incFailed(KindSavedSearch)
		return
	}
	status.observeUSN(usn, previousMaxUSN)
	status.incSent(KindSavedSearch)
}

func (s *Sender) sendNotebook(ctx context.Context, nb *model.Notebook, status *SendStatus, previousMaxUSN *model.USN) error {
	status.incAttempted(KindNotebook)
	var usn model.USN
	if nb.HasGuid() {
		u, err := s.store.UpdateNotebook(ctx, nb)
		if err != nil {
			return err
		}
		usn = u
	} else {
		result, err := s.store.CreateNotebook(ctx, nb)
		if err != nil {
			return err
		}
		nb.Guid = result.Guid
		usn = result.UpdateSequenceNum
	}
	nb.UpdateSequenceNum = usn
	nb.LocallyModified = false
	if err := s.local.PutNotebook(ctx, nb); err != nil {
		return err
	}
	status.observeUSN(usn, previousMaxUSN)
	return nil
}

// sendTags uploads tags in dependency-respecting waves and returns the
// resolved guid for every tag local-id that ended up with one (sent
// successfully this round, or already remote before this call) plus
// the set of locally-new tag local-ids that failed to send.
func (s *Sender) sendTags(ctx context.Context, tags []*model.Tag, status *SendStatus, previousMaxUSN *model.USN, recordStop func(error), notify func()) (map[string]string, map[string]bool) {
	log := nwlog.WithComponent("sync.sender")
	pending := make(map[string]*model.Tag, len(tags))
	for _, t := range tags {
		pending[t.LocalID] = t
	}
	resolved := make(map[string]string)
	failedNew := make(map[string]bool)

	for len(pending) > 0 {
		progressed := false
		for localID, t := range pending {
			if status.StopErr != nil {
				continue
			}
			if t.ParentTagLocalID != "" {
				if _, stillPending := pending[t.ParentTagLocalID]; stillPending {
					continue // wait for the parent
				}
				if failedNew[t.ParentTagLocalID] {
					delete(pending, localID)
					failedNew[localID] = true
					status.incAttempted(KindTag)
					status.incFailed(KindTag)
					progressed = true
					notify()
					continue
				}
				if guid, ok := resolved[t.ParentTagLocalID]; ok {
					t.ParentGuid = guid
				}
			}

			wasNew := !t.HasGuid()
			status.incAttempted(KindTag)
			err := s.sendOneTag(ctx, t, status, previousMaxUSN)
			delete(pending, localID)
			progressed = true
			if err != nil {
				status.incFailed(KindTag)
				recordStop(err)
				if wasNew {
					failedNew[localID] = true
				}
				log.Warn().Str("local_id", localID).Err(err).Msg("failed to send tag")
			} else {
				status.incSent(KindTag)
				resolved[localID] = t.Guid
			}
			notify()
		}
		if !progressed {
			break
		}
	}

	// Anything still pending was held back because this scope stopped
	// mid-wave, or waits on a parent that never left pending.
	for range pending {
		status.incAttempted(KindTag)
		status.incFailed(KindTag)
	}

	return resolved, failedNew
}

func (s *Sender) sendOneTag(ctx context.Context, t *model.Tag, status *SendStatus, previousMaxUSN *model.USN) error {
	var usn model.USN
	if t.HasGuid() {
		u, err := s.store.UpdateTag(ctx, t)
		if err != nil {
			return err
		}
		usn = u
	} else {
		result, err := s.store.CreateTag(ctx, t)
		if err != nil {
			return err
		}
		t.Guid = result.Guid
		usn = result.UpdateSequenceNum
	}
	t.UpdateSequenceNum = usn
	t.LocallyModified = false
	if err := s.local.PutTag(ctx, t); err != nil {
		return err
	}
	status.observeUSN(usn, previousMaxUSN)
	return nil
}

func (s *Sender) sendNote(ctx context.Context, n *model.Note, status *SendStatus, previousMaxUSN *model.USN, notebookGuidByLocalID, resolvedTagGuid map[string]string, failedNewTag map[string]bool, recordStop func(error)) {
	log := nwlog.WithComponent("sync.sender")
	status.incAttempted(KindNote)

	notebookGuid := n.NotebookGuid
	if notebookGuid == "" {
		guid, ok := notebookGuidByLocalID[n.NotebookLocalID]
		if !ok {
			status.incFailed(KindNote)
			log.Warn().Str("local_id", n.LocalID).Msg("note's notebook has no remote guid, holding for a future sync")
			return
		}
		notebookGuid = guid
	}
	n.NotebookGuid = notebookGuid

	tagGuids := append([]string(nil), n.TagGuids...)
	needsRetry := false
	for _, tagLocalID := range n.TagLocalIDs {
		if guid, ok := resolvedTagGuid[tagLocalID]; ok {
			tagGuids = append(tagGuids, guid)
			continue
		}
		if failedNewTag[tagLocalID] {
			needsRetry = true
			continue
		}
		// Tag was already remote and its update failed: its existing
		// guid reference (if the note already carried one) stays valid.
	}
	n.TagGuids = tagGuids

	var usn model.USN
	if n.HasGuid() {
		u, err := s.store.UpdateNote(ctx, n)
		if err != nil {
			status.incFailed(KindNote)
			recordStop(err)
			return
		}
		usn = u
	} else {
		result, err := s.store.CreateNote(ctx, n)
		if err != nil {
			status.incFailed(KindNote)
			recordStop(err)
			return
		}
		n.Guid = result.Guid
		usn = result.UpdateSequenceNum
	}

	n.UpdateSequenceNum = usn
	n.LocallyModified = needsRetry
	if err := s.local.PutNote(ctx, n); err != nil {
		status.incFailed(KindNote)
		return
	}
	status.observeUSN(usn, previousMaxUSN)
	status.incSent(KindNote)
}
