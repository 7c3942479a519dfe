package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLocalIDIsUnique(t *testing.T) {
	a := NewLocalID()
	b := NewLocalID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHasGuid(t *testing.T) {
	n := &Notebook{}
	assert.False(t, n.HasGuid())
	n.Guid = "g1"
	assert.True(t, n.HasGuid())
}

func TestNoteRefPrefersGuid(t *testing.T) {
	n := &Note{NotebookGuid: "g1", NotebookLocalID: "l1"}
	guid, localID, ok := n.NotebookRef()
	assert.True(t, ok)
	assert.Equal(t, "g1", guid)
	assert.Equal(t, "l1", localID)
}

func TestNoteRefFallsBackToLocalID(t *testing.T) {
	n := &Note{NotebookLocalID: "l1"}
	guid, localID, ok := n.NotebookRef()
	assert.True(t, ok)
	assert.Empty(t, guid)
	assert.Equal(t, "l1", localID)
}

func TestNoteRefMissingBoth(t *testing.T) {
	n := &Note{}
	_, _, ok := n.NotebookRef()
	assert.False(t, ok)
}

func TestResourceRefPrefersGuid(t *testing.T) {
	r := &Resource{NoteGuid: "g1", NoteLocalID: "l1"}
	guid, localID, ok := r.NoteRef()
	assert.True(t, ok)
	assert.Equal(t, "g1", guid)
	assert.Equal(t, "l1", localID)
}

func TestSyncChunkHighestEntityUSN(t *testing.T) {
	chunk := &SyncChunk{
		Notebooks: []*Notebook{{UpdateSequenceNum: 5}},
		Notes:     []*Note{{UpdateSequenceNum: 12}},
		Tags:      []*Tag{{UpdateSequenceNum: 3}},
	}
	max, found := chunk.HighestEntityUSN()
	assert.True(t, found)
	assert.Equal(t, USN(12), max)
}

func TestSyncChunkHighestEntityUSNEmpty(t *testing.T) {
	chunk := &SyncChunk{}
	_, found := chunk.HighestEntityUSN()
	assert.False(t, found)
}

func TestNewSyncStateInitializesMaps(t *testing.T) {
	s := NewSyncState()
	assert.NotNil(t, s.LinkedNotebookUpdateCount)
	assert.NotNil(t, s.LinkedNotebookLastSyncTime)
	assert.Equal(t, USN(0), s.UserDataUpdateCount)
}
