package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/solstice/internal/config"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/ops"
	"github.com/justyntemme/solstice/internal/rename"
	"github.com/justyntemme/solstice/internal/search"
	"github.com/justyntemme/solstice/internal/store"
	"github.com/justyntemme/solstice/internal/trash"
	"github.com/justyntemme/solstice/internal/undo"
)

type fakeTrash struct{ dir string }

func (f fakeTrash) MoveToTrash(path string) (trash.Item, error) {
	slot, err := os.MkdirTemp(f.dir, "item")
	if err != nil {
		return trash.Item{}, err
	}
	dst := filepath.Join(slot, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return trash.Item{}, err
	}
	return trash.Item{Name: filepath.Base(path), OriginalPath: path, TrashPath: dst}, nil
}

func testConfig() config.Config {
	cfg := *config.DefaultConfig()
	cfg.Thumbnails.CacheDir = ""
	cfg.Watcher.DebounceMs = 50
	return cfg
}

func newTestService(t *testing.T, withStore bool) *Service {
	t.Helper()
	deps := Deps{Trash: fakeTrash{dir: t.TempDir()}, Events: events.NewBroadcaster()}
	if withStore {
		db, err := store.Open(filepath.Join(t.TempDir(), "solstice.db"), deps.Events)
		require.NoError(t, err)
		deps.Store = db
	}
	s := New(testConfig(), deps)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRenameCarriesTagsThroughUndoRedo(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, true)
	dir := t.TempDir()
	foo := filepath.Join(dir, "foo.txt")
	writeFile(t, foo, "hi")

	_, err := s.AddFileTag(foo, "work")
	require.NoError(t, err)

	bar, err := s.RenameItem(foo, "bar.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bar.txt"), bar)

	tags, err := s.TagsFor(bar)
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, tags)

	h := s.History()
	assert.True(t, h.CanUndo)
	assert.Equal(t, string(undo.KindRename), h.NextUndo)

	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, foo)
	tags, err = s.TagsFor(foo)
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, tags)

	_, err = s.Redo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, bar)
	tags, err = s.TagsFor(bar)
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, tags)
}

func TestCopyAndMoveAreUndoable(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, false)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dest := filepath.Join(dir, "dest")
	writeFile(t, src, "a")
	require.NoError(t, os.Mkdir(dest, 0o755))

	done, err := s.CopyItems([]string{src}, dest)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.FileExists(t, filepath.Join(dest, "a.txt"))

	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dest, "a.txt"))
	assert.FileExists(t, src)

	_, err = s.MoveItems([]string{src}, dest)
	require.NoError(t, err)
	assert.NoFileExists(t, src)

	a, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, undo.KindMove, a.Kind())
	assert.FileExists(t, src)
}

func TestCreateIsUndoable(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, false)
	dir := t.TempDir()

	folder, err := s.CreateFolder(dir, "New Folder")
	require.NoError(t, err)
	assert.DirExists(t, folder)

	file, err := s.CreateFile(dir, "notes.md")
	require.NoError(t, err)
	assert.FileExists(t, file)

	_, err = s.CreateFile(dir, "notes.md")
	assert.ErrorIs(t, err, ops.ErrAlreadyExists)

	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.NoFileExists(t, file)
	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.NoDirExists(t, folder)
}

func TestUndoCreateKeepsLaterContentInTrash(t *testing.T) {
	ctx := context.Background()
	trashDir := t.TempDir()
	s := New(testConfig(), Deps{Trash: fakeTrash{dir: trashDir}, Events: events.NewBroadcaster()})
	t.Cleanup(func() { s.Close() })
	dir := t.TempDir()

	folder, err := s.CreateFolder(dir, "Projects")
	require.NoError(t, err)
	writeFile(t, filepath.Join(folder, "thesis.docx"), "chapter one")

	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.NoDirExists(t, folder)

	saved, err := filepath.Glob(filepath.Join(trashDir, "*", "Projects", "thesis.docx"))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	data, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	assert.Equal(t, "chapter one", string(data))
}

func TestDeleteItems(t *testing.T) {
	s := newTestService(t, false)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "x")

	items, err := s.DeleteItems([]string{a})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NoFileExists(t, a)
	assert.False(t, s.History().CanUndo)
}

func TestDeleteItemsDropsTags(t *testing.T) {
	s := newTestService(t, true)
	dir := t.TempDir()
	report := filepath.Join(dir, "report.pdf")
	keep := filepath.Join(dir, "keep.pdf")
	writeFile(t, report, "r")
	writeFile(t, keep, "k")
	_, err := s.AddFileTag(report, "work")
	require.NoError(t, err)
	_, err = s.AddFileTag(keep, "work")
	require.NoError(t, err)

	_, err = s.DeleteItems([]string{report})
	require.NoError(t, err)

	all, err := s.AllTags()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{keep: {"work"}}, all)
}

func TestBatchRenameAndApplyRename(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, false)
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt"} {
		p := filepath.Join(dir, name)
		writeFile(t, p, "")
		paths = append(paths, p)
	}

	_, err := s.BatchRename(nil)
	assert.ErrorIs(t, err, ErrEmptyList)

	_, _, err = s.ApplyRename(ctx, paths, rename.Numbering{Start: 1, Step: 0, Position: rename.Replace})
	assert.ErrorIs(t, err, rename.ErrConflict)
	assert.FileExists(t, paths[0])

	p, res, err := s.ApplyRename(ctx, paths, rename.Affix{Prefix: "x_"})
	require.NoError(t, err)
	assert.True(t, p.OK())
	assert.Equal(t, 2, res.Count)
	assert.FileExists(t, filepath.Join(dir, "x_a.txt"))

	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, paths[0])
	assert.FileExists(t, paths[1])

	res, err = s.BatchRename([]ops.RenameOperation{
		{OldPath: paths[0], NewName: "c.txt"},
		{OldPath: filepath.Join(dir, "missing.txt"), NewName: "d.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, string(undo.KindBatchRename), s.History().NextUndo)
}

func TestApplyRenameRefusesExistingTarget(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, false)
	dir := t.TempDir()
	a, b, one := filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"), filepath.Join(dir, "1.txt")
	for _, p := range []string{a, b, one} {
		writeFile(t, p, filepath.Base(p))
	}

	p, res, err := s.ApplyRename(ctx, []string{a, b}, rename.Numbering{Start: 1, Step: 1, Position: rename.Replace})
	assert.ErrorIs(t, err, rename.ErrConflict)
	assert.Len(t, p.Conflicts, 1)
	assert.Zero(t, res.Count)
	assert.FileExists(t, a)
	assert.FileExists(t, b)
	assert.NoFileExists(t, filepath.Join(dir, "2.txt"))
	assert.False(t, s.History().CanUndo)
}

func TestSearchRouting(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, false)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "needle.go"), "package main")
	writeFile(t, filepath.Join(root, "needle.txt"), "hay")

	res, err := s.Search(ctx, root, "needle", search.KindAll)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, "complete", res.Outcome)

	res, err = s.Search(ctx, root, "needle ext:go", search.KindAll)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "needle.go", res.Results[0].Name)

	res, err = s.Search(ctx, root, "contents:hay", search.KindAll)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, search.MatchContent, res.Results[0].MatchType)

	res, err = s.AdvancedSearch(ctx, search.Options{Root: root, Query: "NEEDLE", Kind: search.KindAll})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearchAbandonedByContext(t *testing.T) {
	s := newTestService(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Search(ctx, t.TempDir(), "x", search.KindAll)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyQueryAndIdleCancel(t *testing.T) {
	s := newTestService(t, false)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "")

	res, err := s.Search(context.Background(), root, "   ", search.KindAll)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, "complete", res.Outcome)

	assert.False(t, s.CancelSearch(), "nothing running")
}

func TestFolderStatsAndSize(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, false)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bin"), "12345")
	writeFile(t, filepath.Join(root, "sub", "b.bin"), "123")

	st, err := s.FolderStats(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.TotalSize)
	assert.Equal(t, int64(2), st.FileCount)
	assert.Equal(t, int64(1), st.FolderCount)

	size, err := s.FolderSize(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func TestReadFileContent(t *testing.T) {
	s := newTestService(t, false)
	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	writeFile(t, small, "hello")

	text, err := s.ReadFileContent(small)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxPreviewBytes+1), 0o644))
	_, err = s.ReadFileContent(big)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.ReadFileContent(dir)
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestItemProperties(t *testing.T) {
	s := newTestService(t, false)
	path := filepath.Join(t.TempDir(), "p.txt")
	writeFile(t, path, "abc")

	props, err := s.ItemProperties(path)
	require.NoError(t, err)
	assert.True(t, props.IsFile)
	assert.False(t, props.IsDir)
	assert.Equal(t, int64(3), props.Size)
	assert.False(t, props.Accessed.IsZero())
}

func TestWithoutStore(t *testing.T) {
	s := newTestService(t, false)
	_, err := s.AllTags()
	assert.ErrorIs(t, err, ErrNoStore)
	assert.ErrorIs(t, s.AddFavorite("/x"), ErrNoStore)
}

func TestWatchPublishesDirChanged(t *testing.T) {
	s := newTestService(t, false)
	ch := s.Events().Subscribe()
	defer s.Events().Unsubscribe(ch)

	dir := t.TempDir()
	require.NoError(t, s.Watch(dir))
	writeFile(t, filepath.Join(dir, "new.txt"), "x")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == events.DirChanged {
				assert.Equal(t, filepath.Clean(dir), e.Path)
				return
			}
		case <-timeout:
			t.Fatal("no dir-changed event")
		}
	}
}

func TestClosedService(t *testing.T) {
	s := newTestService(t, false)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.FolderStats(context.Background(), t.TempDir())
	assert.True(t, errors.Is(err, ErrClosed))
}
