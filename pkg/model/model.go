// Package model defines the shared record types that flow through both
// the sync engine and the ENML converter: notebooks, notes, resources,
// tags, saved searches and linked notebooks.
package model

import "github.com/google/uuid"

// USN is an update-sequence-number: a monotonically increasing integer
// assigned by the remote service per change within a scope (the user's
// own account, or a single linked notebook).
type USN int32

// NewLocalID generates a fresh local identifier for an entity created
// on this device before it has ever been synced to the remote service.
func NewLocalID() string {
	return uuid.NewString()
}

// Notebook groups notes. A notebook created locally has no Guid until
// the first successful sync; it always has a LocalID.
type Notebook struct {
	LocalID             string
	Guid                string
	Name                string
	LinkedNotebookGuid  string
	UpdateSequenceNum   USN
	LocallyModified     bool
	LocallyFavorited    bool
	IsDefault           bool
}

// HasGuid reports whether the notebook has been assigned a remote guid.
func (n *Notebook) HasGuid() bool { return n.Guid != "" }

// NoteAttributes carries the optional per-note metadata the service
// tracks alongside content.
type NoteAttributes struct {
	Latitude             *float64
	Longitude            *float64
	Altitude             *float64
	Source               string
	SourceURL            string
	ReminderOrder        *int64
	ReminderTime         *int64
	ReminderDoneTime     *int64
	ConflictSourceNoteGuid string
	ApplicationData      map[string]string
}

// Note is a single note: title, ENML content, attached resources, tag
// references and the notebook it belongs to.
type Note struct {
	LocalID           string
	Guid              string
	Title             string
	Content           string // ENML
	NotebookGuid      string
	NotebookLocalID   string
	TagGuids          []string
	TagLocalIDs       []string
	Resources         []*Resource
	Attributes        NoteAttributes
	UpdateSequenceNum USN
	LocallyModified   bool
	LocallyFavorited  bool
	Active            bool
	ThumbnailData     []byte
}

// HasGuid reports whether the note has been assigned a remote guid.
func (n *Note) HasGuid() bool { return n.Guid != "" }

// NotebookRef returns whichever of guid/local-id identifies the note's
// notebook; spec requires at least one to be present.
func (n *Note) NotebookRef() (guid, localID string, ok bool) {
	if n.NotebookGuid != "" {
		return n.NotebookGuid, n.NotebookLocalID, true
	}
	if n.NotebookLocalID != "" {
		return "", n.NotebookLocalID, true
	}
	return "", "", false
}

// ResourceAttributes carries optional resource metadata.
type ResourceAttributes struct {
	SourceURL   string
	Timestamp   *int64
	Latitude    *float64
	Longitude   *float64
	Altitude    *float64
	FileName    string
	Attachment  bool
}

// Resource is a binary attachment (image, ink note, recognition data…)
// owned by exactly one note.
type Resource struct {
	LocalID           string
	Guid              string
	NoteGuid          string
	NoteLocalID       string
	Data              []byte
	BodyHash          [16]byte // MD5
	Size              int
	Mime              string
	Width             int16
	Height            int16
	RecognitionData   []byte
	AlternateData     []byte
	Attributes        ResourceAttributes
	UpdateSequenceNum USN
	LocallyModified   bool
}

// NoteRef returns whichever of note-guid/note-local-id binds the
// resource to its owning note.
func (r *Resource) NoteRef() (guid, localID string, ok bool) {
	if r.NoteGuid != "" {
		return r.NoteGuid, r.NoteLocalID, true
	}
	if r.NoteLocalID != "" {
		return "", r.NoteLocalID, true
	}
	return "", "", false
}

// Tag is a node in a per-scope parent/child tree; a tag cannot be its
// own ancestor.
type Tag struct {
	LocalID            string
	Guid               string
	Name               string
	ParentGuid         string
	ParentTagLocalID   string
	LinkedNotebookGuid string
	UpdateSequenceNum  USN
	LocallyModified    bool
	LocallyFavorited   bool
}

func (t *Tag) HasGuid() bool { return t.Guid != "" }

// SavedSearch is a flat, user-owned saved query.
type SavedSearch struct {
	LocalID           string
	Guid              string
	Name              string
	Query             string
	UpdateSequenceNum USN
	LocallyModified   bool
}

func (s *SavedSearch) HasGuid() bool { return s.Guid != "" }

// LinkedNotebook references a notebook owned by another account; it
// owns its own USN space.
type LinkedNotebook struct {
	Guid              string
	Username           string
	ShareName          string
	ShardID            string
	UpdateSequenceNum  USN
}

// SyncChunk is an atomic, bounded download unit: a bundle of entities
// and expunge notices whose USNs fall in (lo, ChunkHighUSN].
type SyncChunk struct {
	ChunkHighUSN *USN
	UpdateCount  USN

	Notebooks       []*Notebook
	Notes           []*Note
	Resources       []*Resource
	Tags            []*Tag
	SavedSearches   []*SavedSearch
	LinkedNotebooks []*LinkedNotebook

	ExpungedNotebooks       []string
	ExpungedNotes           []string
	ExpungedTags            []string
	ExpungedSearches        []string
	ExpungedLinkedNotebooks []string
}

// HighestEntityUSN scans every entity list of the chunk and returns the
// largest USN seen, used to validate the "a chunk with non-null
// ChunkHighUSN has at least one entity whose USN equals it" invariant.
// Expunged guids carry no USN and are not considered.
func (c *SyncChunk) HighestEntityUSN() (USN, bool) {
	var (
		max   USN
		found bool
	)
	consider := func(u USN) {
		if !found || u > max {
			max, found = u, true
		}
	}
	for _, n := range c.Notebooks {
		consider(n.UpdateSequenceNum)
	}
	for _, n := range c.Notes {
		consider(n.UpdateSequenceNum)
	}
	for _, r := range c.Resources {
		consider(r.UpdateSequenceNum)
	}
	for _, t := range c.Tags {
		consider(t.UpdateSequenceNum)
	}
	for _, s := range c.SavedSearches {
		consider(s.UpdateSequenceNum)
	}
	for _, l := range c.LinkedNotebooks {
		consider(l.UpdateSequenceNum)
	}
	return max, found
}

// SyncState is the persisted checkpoint of a sync run: the user's own
// update count and, per linked notebook, its own update count and last
// sync time.
type SyncState struct {
	UserDataUpdateCount      USN                  `yaml:"user_data_update_count"`
	LastSyncTime             int64                `yaml:"last_sync_time"`
	LinkedNotebookUpdateCount map[string]USN       `yaml:"linked_notebook_update_count"`
	LinkedNotebookLastSyncTime map[string]int64    `yaml:"linked_notebook_last_sync_time"`
}

// NewSyncState returns a zero-value SyncState with initialized maps.
func NewSyncState() *SyncState {
	return &SyncState{
		LinkedNotebookUpdateCount:  make(map[string]USN),
		LinkedNotebookLastSyncTime: make(map[string]int64),
	}
}
