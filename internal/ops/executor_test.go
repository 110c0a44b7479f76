package ops

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/trash"
)

type fakeTrash struct {
	dir   string
	fail  string
	moved []string
}

func (f *fakeTrash) MoveToTrash(path string) (trash.Item, error) {
	if path == f.fail {
		return trash.Item{}, errors.New("trash refused")
	}
	dst := filepath.Join(f.dir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return trash.Item{}, err
	}
	f.moved = append(f.moved, path)
	return trash.Item{Name: filepath.Base(path), OriginalPath: path, TrashPath: dst}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestExecutor(t *testing.T) (*Executor, *fakeTrash, *recorder) {
	t.Helper()
	ft := &fakeTrash{dir: t.TempDir()}
	rec := &recorder{}
	return NewExecutor(Options{Trash: ft, Events: rec}), ft, rec
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolve(t *testing.T) {
	for _, bad := range []string{"", "   ", "a\x00b"} {
		_, err := Resolve(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", bad)
	}

	got, err := Resolve("some/../dir/./file")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "file", filepath.Base(got))
	assert.Equal(t, "dir", filepath.Base(filepath.Dir(got)))
}

func TestRename(t *testing.T) {
	exec, _, rec := newTestExecutor(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "foo.txt"), "x")

	newPath, err := exec.Rename(filepath.Join(dir, "foo.txt"), "bar.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bar.txt"), newPath)
	assert.FileExists(t, newPath)
	assert.NoFileExists(t, filepath.Join(dir, "foo.txt"))

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.OpCompleted, rec.events[0].Type)
	assert.Equal(t, "rename", rec.events[0].Op)
}

func TestRenameErrors(t *testing.T) {
	exec, _, rec := newTestExecutor(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")

	_, err := exec.Rename(filepath.Join(dir, "a.txt"), "b.txt")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	for _, name := range []string{"", ".", "..", "x/y"} {
		_, err = exec.Rename(filepath.Join(dir, "a.txt"), name)
		assert.ErrorIs(t, err, ErrInvalidPath, "name %q", name)
	}

	_, err = exec.Rename(filepath.Join(dir, "missing.txt"), "c.txt")
	assert.ErrorIs(t, err, ErrIO)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "rename", opErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Empty(t, rec.events)
}

func TestCreate(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	dir := t.TempDir()

	folder, err := exec.CreateDirectory(dir, "new folder")
	require.NoError(t, err)
	assert.DirExists(t, folder)

	file, err := exec.CreateFile(dir, "notes.txt")
	require.NoError(t, err)
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	_, err = exec.CreateDirectory(dir, "new folder")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = exec.CreateFile(dir, "notes.txt")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = exec.CreateFile(dir, "new folder")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = exec.CreateFile(filepath.Join(dir, "nope"), "x.txt")
	assert.ErrorIs(t, err, ErrIO)
}

func TestDeleteGoesToTrash(t *testing.T) {
	exec, ft, _ := newTestExecutor(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tree", "a", "b.txt"), "b")

	require.NoError(t, exec.Delete(filepath.Join(dir, "tree")))
	assert.NoDirExists(t, filepath.Join(dir, "tree"))
	assert.Equal(t, []string{filepath.Join(dir, "tree")}, ft.moved)
	assert.FileExists(t, filepath.Join(ft.dir, "tree", "a", "b.txt"))

	assert.ErrorIs(t, exec.Delete(filepath.Join(dir, "tree")), ErrIO)
}

func TestDeleteManyResolvesFirst(t *testing.T) {
	exec, ft, _ := newTestExecutor(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	_, err := exec.DeleteMany([]string{filepath.Join(dir, "a.txt"), ""})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
	assert.Empty(t, ft.moved)

	_, err = exec.DeleteMany(nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDeleteMany(t *testing.T) {
	exec, ft, _ := newTestExecutor(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	c := filepath.Join(dir, "c.txt")
	for _, p := range []string{a, b, c} {
		writeFile(t, p, "x")
	}
	ft.fail = b

	items, err := exec.DeleteMany([]string{a, b, c})
	assert.ErrorIs(t, err, ErrIO)
	require.Len(t, items, 1)
	assert.Equal(t, a, items[0].OriginalPath)
	assert.NoFileExists(t, a)
	assert.FileExists(t, b)
	assert.FileExists(t, c)
}

func TestCopyTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "one.txt"), "12345")
	writeFile(t, filepath.Join(src, "sub", "two.txt"), "1234567890")

	var mu sync.Mutex
	var last, total int64
	exec := NewExecutor(Options{Progress: func(done, tot int64) {
		mu.Lock()
		last, total = done, tot
		mu.Unlock()
	}})

	dst := filepath.Join(dir, "dst")
	require.NoError(t, exec.CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1234567890", string(data))
	assert.FileExists(t, filepath.Join(src, "one.txt"))

	assert.EqualValues(t, 15, total)
	assert.EqualValues(t, 15, last)

	assert.ErrorIs(t, exec.CopyTree(src, dst), ErrAlreadyExists)
	assert.ErrorIs(t, exec.CopyTree(src, filepath.Join(src, "sub", "inner")), ErrInvalidPath)
	assert.ErrorIs(t, exec.CopyTree(filepath.Join(dir, "missing"), filepath.Join(dir, "x")), ErrIO)
}

func TestCopyItemsIntoSameDirectory(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "report.pdf")
	writeFile(t, src, "pdf")
	writeFile(t, filepath.Join(dir, "report_copy1.pdf"), "older")

	done, err := exec.CopyItems([]string{src}, dir)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, filepath.Join(dir, "report_copy2.pdf"), done[0].Target)
	assert.FileExists(t, done[0].Target)
}

func TestMoveItems(t *testing.T) {
	exec, _, rec := newTestExecutor(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	sub := filepath.Join(dir, "sub")
	writeFile(t, a, "a")
	writeFile(t, filepath.Join(sub, "keep.txt"), "k")
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))

	done, err := exec.MoveItems([]string{a, sub}, dest)
	require.NoError(t, err)
	assert.Equal(t, []Transfer{
		{Source: a, Target: filepath.Join(dest, "a.txt")},
		{Source: sub, Target: filepath.Join(dest, "sub")},
	}, done)
	assert.FileExists(t, filepath.Join(dest, "sub", "keep.txt"))
	require.NotEmpty(t, rec.events)
	assert.Equal(t, "move", rec.events[len(rec.events)-1].Op)
}

func TestMoveItemsStopsAtFirstFailure(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	dest := filepath.Join(dir, "dest")
	writeFile(t, filepath.Join(dest, "a.txt"), "taken")

	done, err := exec.MoveItems([]string{a, b}, dest)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Empty(t, done)
	assert.FileExists(t, b)
}

func TestMoveIntoItself(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "folder")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "child"), 0o755))

	err := exec.Move(src, filepath.Join(src, "child", "folder"))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestBatchRename(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "taken.txt"), "t")

	res := exec.BatchRename([]RenameOperation{
		{OldPath: filepath.Join(dir, "a.txt"), NewName: "a_001.txt"},
		{OldPath: filepath.Join(dir, "b.txt"), NewName: "taken.txt"},
		{OldPath: filepath.Join(dir, "missing.txt"), NewName: "m.txt"},
	})

	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Errors, 2)
	assert.ErrorIs(t, res.Errors[0], ErrAlreadyExists)
	assert.ErrorIs(t, res.Errors[1], ErrIO)
	assert.Equal(t, []Transfer{{Source: filepath.Join(dir, "a.txt"), Target: filepath.Join(dir, "a_001.txt")}}, res.Renamed)
}

func TestIsWithin(t *testing.T) {
	root := filepath.FromSlash("/a/b")
	tests := []struct {
		path string
		want bool
	}{
		{"/a/b", true},
		{"/a/b/c", true},
		{"/a/bc", false},
		{"/a", false},
		{"/a/b/../x", false},
	}
	for _, tt := range tests {
		got := isWithin(filepath.Clean(filepath.FromSlash(tt.path)), root)
		assert.Equal(t, tt.want, got, tt.path)
	}
}
