package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanledger/scanledger/constants"
)

func newTestSource(t *testing.T) *LocalSource {
	t.Helper()
	s, err := NewLocal(t.TempDir(), 0, nil, nil)
	require.NoError(t, err)
	return s
}

func drop(t *testing.T, s *LocalSource, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.IncomingDir(), name), []byte(content), 0o644))
}

func TestNewLocalCreatesAreas(t *testing.T) {
	root := t.TempDir()
	_, err := NewLocal(root, 0, nil, nil)
	require.NoError(t, err)

	for _, sub := range []string{"incoming", "processed", "error"} {
		fi, err := os.Stat(filepath.Join(root, sub))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}

func TestListNewFiles(t *testing.T) {
	s := newTestSource(t)
	drop(t, s, "a.pdf", "pdf bytes")
	drop(t, s, "b.jpg", "jpg bytes")
	drop(t, s, "notes.txt", "not a receipt")
	drop(t, s, ".hidden.pdf", "hidden")

	tasks, err := s.ListNewFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	byID := map[string]constants.FileType{}
	for _, task := range tasks {
		byID[task.ID] = task.Type
	}
	assert.Equal(t, constants.PDF, byID["a.pdf"])
	assert.Equal(t, constants.IMAGE, byID["b.jpg"])
}

func TestListNewFilesSkipsOversize(t *testing.T) {
	s, err := NewLocal(t.TempDir(), 4, nil, nil)
	require.NoError(t, err)
	drop(t, s, "big.pdf", "more than four bytes")

	tasks, err := s.ListNewFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDownload(t *testing.T) {
	s := newTestSource(t)
	drop(t, s, "a.pdf", "content")

	path, err := s.Download(context.Background(), "a.pdf")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	_, err = s.Download(context.Background(), "missing.pdf")
	assert.Error(t, err)
}

func TestMoveToProcessedIsDated(t *testing.T) {
	s := newTestSource(t)
	drop(t, s, "a.pdf", "x")

	date := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.MoveToProcessed(context.Background(), "a.pdf", date))

	_, err := os.Stat(filepath.Join(s.root, "processed", "2024-01", "a.pdf"))
	require.NoError(t, err)

	ok, err := s.ExistsIn(context.Background(), "a.pdf", FolderProcessed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExistsIn(context.Background(), "a.pdf", FolderError)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMoveToErrorWritesReason(t *testing.T) {
	s := newTestSource(t)
	drop(t, s, "bad.pdf", "x")

	require.NoError(t, s.MoveToError(context.Background(), "bad.pdf", "needs manual review"))

	_, err := os.Stat(filepath.Join(s.root, "error", "bad.pdf"))
	require.NoError(t, err)

	reason, err := os.ReadFile(filepath.Join(s.root, "error", "bad.pdf.reason.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(reason), "needs manual review")
}

func TestMoveCollisionGetsSuffix(t *testing.T) {
	s := newTestSource(t)
	date := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	drop(t, s, "a.pdf", "first")
	require.NoError(t, s.MoveToProcessed(context.Background(), "a.pdf", date))

	drop(t, s, "a.pdf", "second")
	require.NoError(t, s.MoveToProcessed(context.Background(), "a.pdf", date))

	dir := filepath.Join(s.root, "processed", "2024-01")
	_, err := os.Stat(filepath.Join(dir, "a.pdf"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "a-1.pdf"))
	require.NoError(t, err)

	// the suffixed variant still counts as present
	ok, err := s.ExistsIn(context.Background(), "a.pdf", FolderProcessed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExistsInIgnoresSuffixedSibling(t *testing.T) {
	s := newTestSource(t)
	date := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	drop(t, s, "receipt.pdf", "stuck")
	drop(t, s, "receipt-2.pdf", "moved")
	require.NoError(t, s.MoveToProcessed(context.Background(), "receipt-2.pdf", date))

	// receipt.pdf never moved; the sibling must not stand in for it
	ok, err := s.ExistsIn(context.Background(), "receipt.pdf", FolderProcessed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ExistsIn(context.Background(), "receipt-2.pdf", FolderProcessed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMoveMissingFileFails(t *testing.T) {
	s := newTestSource(t)
	assert.Error(t, s.MoveToProcessed(context.Background(), "ghost.pdf", time.Now()))
}
