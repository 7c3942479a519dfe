package syncstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
)

func TestLoadMissingFileReturnsFreshState(t *testing.T) {
	state, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, model.USN(0), state.UserDataUpdateCount)
	assert.NotNil(t, state.LinkedNotebookUpdateCount)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	root := t.TempDir()
	state := model.NewSyncState()
	state.UserDataUpdateCount = 42
	state.LastSyncTime = 1700000000
	state.LinkedNotebookUpdateCount["shard-1"] = 7

	require.NoError(t, Save(root, state))

	got, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, model.USN(42), got.UserDataUpdateCount)
	assert.Equal(t, int64(1700000000), got.LastSyncTime)
	assert.Equal(t, model.USN(7), got.LinkedNotebookUpdateCount["shard-1"])
}

func TestSaveCreatesMissingDirectory(t *testing.T) {
	root := t.TempDir() + "/nested/sync"
	require.NoError(t, Save(root, model.NewSyncState()))
	_, err := Load(root)
	require.NoError(t, err)
}
