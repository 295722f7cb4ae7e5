package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emarren/vaultflow/pkg/schema"
)

func newTestStore(t *testing.T) (*FSDocumentStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFSDocumentStore(dir), dir
}

func seed(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFSDocumentStore_ReadWrite(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.Write(ctx, "notes/today.md", "hello", WriteOptions{Mode: WriteCreate})
	require.NoError(t, err)
	assert.True(t, res.Written)

	got, err := s.Read(ctx, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	// Create mode refuses to clobber.
	_, err = s.Write(ctx, "notes/today.md", "again", WriteOptions{Mode: WriteCreate})
	require.Error(t, err)

	// Append and prepend compose around existing content.
	_, err = s.Write(ctx, "notes/today.md", "!", WriteOptions{Mode: WriteAppend})
	require.NoError(t, err)
	_, err = s.Write(ctx, "notes/today.md", ">", WriteOptions{Mode: WritePrepend})
	require.NoError(t, err)

	got, err = s.Read(ctx, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, ">hello!", got)
}

func TestFSDocumentStore_ConfirmedOverwrite(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	seed(t, dir, "a.md", "original")

	decline := func(ctx context.Context, path string) (bool, error) { return false, nil }
	s.WithConfirmer(decline)

	res, err := s.Write(ctx, "a.md", "new", WriteOptions{Mode: WriteOverwrite, Confirm: true})
	require.NoError(t, err)
	assert.True(t, res.Declined)
	assert.False(t, res.Written)

	// Declined means untouched.
	got, err := s.Read(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "original", got)

	s.WithConfirmer(func(ctx context.Context, path string) (bool, error) { return true, nil })
	res, err = s.Write(ctx, "a.md", "new", WriteOptions{Mode: WriteOverwrite, Confirm: true})
	require.NoError(t, err)
	assert.True(t, res.Written)
}

func TestFSDocumentStore_PathEscapeRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"../outside.md", "a/../../b.md", "/etc/passwd"} {
		_, err := s.Read(ctx, path)
		require.Error(t, err, path)
		var fe *schema.FlowError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, schema.ErrCodeValidation, fe.Code)
	}
}

func TestFSDocumentStore_ReadMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Read(context.Background(), "ghost.md")
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}

func TestFSDocumentStore_ListAndFolders(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	seed(t, dir, "inbox/a.md", "")
	seed(t, dir, "inbox/deep/b.md", "")
	seed(t, dir, "top.md", "")

	all, err := s.List(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.md", "inbox/deep/b.md", "top.md"}, all)

	direct, err := s.List(ctx, "inbox", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox/a.md"}, direct)

	folders, err := s.Folders(ctx, "inbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox/deep"}, folders)
}

func TestFSDocumentStore_Search(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	seed(t, dir, "a.md", "nothing here\nfind ME now\n")
	seed(t, dir, "b.md", "find me too")

	hits, err := s.Search(ctx, "find me", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a.md", hits[0].Path)
	assert.Equal(t, 2, hits[0].Line)

	limited, err := s.Search(ctx, "find me", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFSDocumentStore_Rename(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	seed(t, dir, "old.md", "content")
	seed(t, dir, "taken.md", "x")

	require.NoError(t, s.Rename(ctx, "old.md", "archive/new.md"))

	got, err := s.Read(ctx, "archive/new.md")
	require.NoError(t, err)
	assert.Equal(t, "content", got)

	_, err = s.Read(ctx, "old.md")
	require.Error(t, err)

	// Existing targets are protected.
	seed(t, dir, "another.md", "y")
	require.Error(t, s.Rename(ctx, "another.md", "taken.md"))
	require.Error(t, s.Rename(ctx, "ghost.md", "anywhere.md"))
}
