package recordstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgestream/streamsup/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "records"), nil)
	require.NoError(t, err)
	return s
}

func testRecord(id string) *model.Record {
	now := time.Now()
	return &model.Record{
		ID:        id,
		CameraURL: "rtsp://cam/1",
		StreamKey: "K",
		CourtID:   "C1",
		State:     model.StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveFindByIDRoundTrip(t *testing.T) {
	s := newTestStore(t)
	r := testRecord("r1")

	require.NoError(t, s.Save(r))

	got, err := s.FindByID("r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.CameraURL, got.CameraURL)
	assert.Equal(t, r.StreamKey, got.StreamKey)
	assert.Equal(t, r.CourtID, got.CourtID)
	assert.Equal(t, r.State, got.State)
}

func TestFindByIDAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.FindByID("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByIDSelfHealsCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.dir, 0o750))
	path := s.path("bad")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o640))

	got, err := s.FindByID("bad")
	require.NoError(t, err)
	assert.Nil(t, got)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupt file should be removed")
}

func TestFindAllSkipsCorruptEntries(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testRecord("good")))
	require.NoError(t, os.WriteFile(s.path("bad"), []byte("not json"), 0o640))

	all, err := s.FindAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)
}

func TestFindRunningFilters(t *testing.T) {
	s := newTestStore(t)
	running := testRecord("running")
	running.State = model.StateRunning
	stopped := testRecord("stopped")
	stopped.State = model.StateStopped
	require.NoError(t, s.Save(running))
	require.NoError(t, s.Save(stopped))

	got, err := s.FindRunning()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "running", got[0].ID)
}

func TestDeleteIsSuccessWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Delete("never-existed"))
}

func TestClearRemovesAllRecords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testRecord("a")))
	require.NoError(t, s.Save(testRecord("b")))

	require.NoError(t, s.Clear())

	all, err := s.FindAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSaveRecreatesMissingDirectory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.dir))

	require.NoError(t, s.Save(testRecord("r1")))

	got, err := s.FindByID("r1")
	require.NoError(t, err)
	require.NotNil(t, got)
}
