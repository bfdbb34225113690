package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	w, err := NewRotatingWriter(logPath)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, logPath, w.Path())
}

func TestRotatingWriterWriteAccumulatesSize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath)
	require.NoError(t, err)
	defer w.Close()

	n, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.EqualValues(t, 6, w.Size())
}

func TestRotatingWriterRotatesPastMaxSize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath, WithMaxSize(10), WithMaxFiles(3))
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("more-data-past-the-limit"))
	require.NoError(t, err)

	_, err = os.Stat(logPath + ".1")
	require.NoError(t, err, "expected a rotated generation to exist")
}

func TestTranscoderLogWriterSanitizesRecordID(t *testing.T) {
	dir := t.TempDir()
	w, err := TranscoderLogWriter(dir, "2026-07-30/weird id")
	require.NoError(t, err)
	defer w.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestListRotatedFilesOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")
	w, err := NewRotatingWriter(logPath, WithMaxSize(1), WithMaxFiles(5))
	require.NoError(t, err)
	defer w.Close()

	_, _ = w.Write([]byte("a"))
	_, _ = w.Write([]byte("b"))
	_, _ = w.Write([]byte("c"))

	files, err := ListRotatedFiles(logPath)
	require.NoError(t, err)
	require.NotEmpty(t, files)
}
