package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestArchiveSaveAndLoad(t *testing.T) {
	state, players, tracker := analyzedRound(t)
	r, err := New(state, players, tracker)
	require.NoError(t, err)

	archive := NewArchive(zaptest.NewLogger(t), t.TempDir())
	require.NoError(t, archive.Save(r))

	loaded, err := archive.Load(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, loaded.ID)
	assert.Equal(t, r.MapName, loaded.MapName)
	assert.Equal(t, r.Scores, loaded.Scores)
	assert.Equal(t, r.Movements, loaded.Movements)
	assert.Equal(t, r.Players, loaded.Players)
	assert.Equal(t, r.Checksum, loaded.ComputeChecksum())
}

func TestArchiveList(t *testing.T) {
	dir := t.TempDir()
	archive := NewArchive(nil, dir)

	ids, err := archive.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	state, players, tracker := analyzedRound(t)
	r, err := New(state, players, tracker)
	require.NoError(t, err)
	require.NoError(t, archive.Save(r))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ids, err = archive.List()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r.ID}, ids)
}

func TestArchiveMissingDirectory(t *testing.T) {
	archive := NewArchive(nil, filepath.Join(t.TempDir(), "missing"))

	ids, err := archive.List()
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = archive.Load(uuid.New())
	assert.Error(t, err)
}

func TestArchiveDetectsTampering(t *testing.T) {
	state, players, tracker := analyzedRound(t)
	r, err := New(state, players, tracker)
	require.NoError(t, err)
	r.Checksum = "deadbeef"

	dir := t.TempDir()
	_, err = r.SaveToFile(dir)
	require.NoError(t, err)

	_, err = LoadFromFile(dir, r.ID)
	assert.ErrorContains(t, err, "checksum mismatch")
}
