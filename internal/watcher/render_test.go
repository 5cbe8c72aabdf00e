package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/markdown"
)

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "docs/a.html", OutputPath("docs/a.md"))
	assert.Equal(t, "b.html", OutputPath("b.markdown"))
}

func TestHTMLWriter_RenderFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(src, []byte("Use `go test`\n\n<img src=x onerror=alert(1)>"), 0o644))

	w := NewHTMLWriter(markdown.New(), nil)
	out, err := w.RenderFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "note.html"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<code")
	assert.NotContains(t, string(data), "onerror")

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestHTMLWriter_RenderFileErrors(t *testing.T) {
	dir := t.TempDir()
	w := NewHTMLWriter(markdown.New(), nil)

	_, err := w.RenderFile(filepath.Join(dir, "note.txt"))
	assert.Error(t, err)
	assert.Equal(t, chaterrors.ErrCodeInvalidPath, chaterrors.Code(err))

	_, err = w.RenderFile(filepath.Join(dir, "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTMLWriter_Handle(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.md")
	gone := filepath.Join(dir, "gone.md")
	require.NoError(t, os.WriteFile(keep, []byte("# Keep"), 0o644))
	require.NoError(t, os.WriteFile(OutputPath(gone), []byte("stale"), 0o644))

	w := NewHTMLWriter(markdown.New(), nil)
	err := w.Handle(context.Background(), []ChangeEvent{
		{Type: EventTypeModified, Path: keep},
		{Type: EventTypeDeleted, Path: gone},
		{Type: EventTypeRenamed, Path: filepath.Join(dir, "never-rendered.md")},
		{Type: EventTypeCreated, Path: filepath.Join(dir, "vanished.md")},
	})
	require.NoError(t, err)

	assert.FileExists(t, OutputPath(keep))
	assert.NoFileExists(t, OutputPath(gone))
	assert.NoFileExists(t, filepath.Join(dir, "vanished.html"))
}

func TestHTMLWriter_RenderTree(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.md", "sub/b.markdown", "sub/c.txt", ".git/d.md"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("*x*"), 0o644))
	}

	w := NewHTMLWriter(markdown.New(), nil)
	n, err := w.RenderTree(context.Background(), dir, IgnoreFilter([]string{".git"}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.FileExists(t, filepath.Join(dir, "a.html"))
	assert.FileExists(t, filepath.Join(dir, "sub", "b.html"))
	assert.NoFileExists(t, filepath.Join(dir, "sub", "c.html"))
	assert.NoFileExists(t, filepath.Join(dir, ".git", "d.html"))
}

func TestHTMLWriter_RenderTreeCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewHTMLWriter(markdown.New(), nil)
	n, err := w.RenderTree(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
