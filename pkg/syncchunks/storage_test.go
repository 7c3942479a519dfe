package syncchunks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
)

func usn(n int32) *model.USN {
	u := model.USN(n)
	return &u
}

func TestPutThenFetchRelevantUserOwnChunks(t *testing.T) {
	storage := NewStorage(t.TempDir())

	chunk := &model.SyncChunk{
		ChunkHighUSN: usn(10),
		Notes:        []*model.Note{{LocalID: "n1", UpdateSequenceNum: 10}},
	}
	require.NoError(t, storage.PutUserOwnChunks(0, []*model.SyncChunk{chunk}))

	got, err := storage.FetchRelevantUserOwnChunks(0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.USN(10), *got[0].ChunkHighUSN)
	assert.Len(t, got[0].Notes, 1)
}

func TestFetchRelevantFiltersPartiallyCoveredChunk(t *testing.T) {
	storage := NewStorage(t.TempDir())

	chunk := &model.SyncChunk{
		ChunkHighUSN: usn(10),
		Notes: []*model.Note{
			{LocalID: "old", UpdateSequenceNum: 4},
			{LocalID: "new", UpdateSequenceNum: 9},
		},
	}
	require.NoError(t, storage.PutUserOwnChunks(0, []*model.SyncChunk{chunk}))

	got, err := storage.FetchRelevantUserOwnChunks(5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Notes, 1)
	assert.Equal(t, "new", got[0].Notes[0].LocalID)
}

func TestFetchRelevantSkipsFullyStaleChunk(t *testing.T) {
	storage := NewStorage(t.TempDir())

	chunk := &model.SyncChunk{ChunkHighUSN: usn(5)}
	require.NoError(t, storage.PutUserOwnChunks(0, []*model.SyncChunk{chunk}))

	got, err := storage.FetchRelevantUserOwnChunks(5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPutChunksRejectsNilChunkHighUSN(t *testing.T) {
	storage := NewStorage(t.TempDir())
	err := storage.PutUserOwnChunks(0, []*model.SyncChunk{{}})
	assert.Error(t, err)
}

func TestPutChunksOverlapClearsScope(t *testing.T) {
	storage := NewStorage(t.TempDir())

	require.NoError(t, storage.PutUserOwnChunks(0, []*model.SyncChunk{{ChunkHighUSN: usn(10)}}))
	// A new chunk claiming to start at 5 overlaps the stored (0,10] range.
	require.NoError(t, storage.PutUserOwnChunks(5, []*model.SyncChunk{{ChunkHighUSN: usn(20)}}))

	ranges, err := storage.FetchUserOwnUSNRanges()
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, model.USN(5), ranges[0].Lo)
	assert.Equal(t, model.USN(20), ranges[0].Hi)
}

func TestClearUserOwn(t *testing.T) {
	storage := NewStorage(t.TempDir())
	require.NoError(t, storage.PutUserOwnChunks(0, []*model.SyncChunk{{ChunkHighUSN: usn(10)}}))
	require.NoError(t, storage.ClearUserOwn())

	got, err := storage.FetchRelevantUserOwnChunks(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
