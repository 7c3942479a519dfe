package durable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/notewire/pkg/model"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(t.TempDir(), "Notes")
	require.NoError(t, err)
	return j
}

func TestMarkProcessedRoundTrips(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.MarkProcessed("guid-1", model.USN(7)))

	got, err := j.LoadProcessed()
	require.NoError(t, err)
	assert.Equal(t, model.USN(7), got["guid-1"])
}

func TestMarkProcessedClearsCarryOver(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.SaveFailedToProcess("guid-1", map[string]string{"note": "stub"}))
	require.NoError(t, j.MarkFailedToExpunge("guid-1"))

	require.NoError(t, j.MarkProcessed("guid-1", model.USN(1)))

	carryOver, err := loadJSONDir[map[string]string](j.failedToProcessDir())
	require.NoError(t, err)
	assert.Empty(t, carryOver)

	failed, err := j.LoadFailedToExpunge()
	require.NoError(t, err)
	_, stillFailed := failed["guid-1"]
	assert.False(t, stillFailed)
}

func TestMarkAndClearFailedToExpunge(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.MarkFailedToExpunge("guid-1"))
	set, err := j.LoadFailedToExpunge()
	require.NoError(t, err)
	_, ok := set["guid-1"]
	assert.True(t, ok)

	require.NoError(t, j.ClearFailedToExpunge("guid-1"))
	set, err = j.LoadFailedToExpunge()
	require.NoError(t, err)
	_, ok = set["guid-1"]
	assert.False(t, ok)
}

func TestMarkExpunged(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.MarkExpunged("guid-2"))
	set, err := j.LoadExpunged()
	require.NoError(t, err)
	_, ok := set["guid-2"]
	assert.True(t, ok)
}

func TestLoadProcessedEmptyWhenNoFile(t *testing.T) {
	j := newTestJournal(t)
	got, err := j.LoadProcessed()
	require.NoError(t, err)
	assert.Empty(t, got)
}
