package undo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/ops"
	"github.com/justyntemme/solstice/internal/trash"
)

type dirTrash struct{ dir string }

func (d dirTrash) MoveToTrash(path string) (trash.Item, error) {
	slot, err := os.MkdirTemp(d.dir, "item")
	if err != nil {
		return trash.Item{}, err
	}
	dst := filepath.Join(slot, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return trash.Item{}, err
	}
	return trash.Item{Name: filepath.Base(path), OriginalPath: path, TrashPath: dst}, nil
}

func newExecutor(t *testing.T) *ops.Executor {
	t.Helper()
	return ops.NewExecutor(ops.Options{Trash: dirTrash{dir: t.TempDir()}})
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(newExecutor(t), Config{})
}

func TestRenameRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	foo := filepath.Join(dir, "foo.txt")
	require.NoError(t, os.WriteFile(foo, []byte("hi"), 0o644))

	exec := newExecutor(t)
	m := NewManager(exec, Config{})

	bar, err := exec.Rename(foo, "bar.txt")
	require.NoError(t, err)
	require.NoError(t, m.Push(NewRename(foo, bar, "foo.txt", "bar.txt")))

	_, err = m.Undo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, foo)
	assert.NoFileExists(t, bar)
	u, r := m.Len()
	assert.Equal(t, 0, u)
	assert.Equal(t, 1, r)

	_, err = m.Redo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, bar)
	assert.NoFileExists(t, foo)
	assert.True(t, m.CanUndo())
	assert.False(t, m.CanRedo())
}

func TestEmptyStacks(t *testing.T) {
	m := newManager(t)
	_, err := m.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNothingToUndo)
	_, err = m.Redo(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestMoveAndCopyInverse(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(dest, 0o755))

	exec := newExecutor(t)
	m := NewManager(exec, Config{})

	moved, err := exec.MoveItems([]string{src}, dest)
	require.NoError(t, err)
	require.NoError(t, m.Push(NewMove(false, []MovedItem{{OriginalPath: moved[0].Source, CurrentPath: moved[0].Target}}, dest)))

	_, err = m.Undo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, src)
	assert.NoFileExists(t, filepath.Join(dest, "a.txt"))

	copied, err := exec.CopyItems([]string{src}, dest)
	require.NoError(t, err)
	require.NoError(t, m.Push(NewMove(true, []MovedItem{{OriginalPath: copied[0].Source, CurrentPath: copied[0].Target}}, dest)))
	assert.False(t, m.CanRedo(), "push clears redo")

	_, err = m.Undo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, src, "undoing a copy keeps the original")
	assert.NoFileExists(t, filepath.Join(dest, "a.txt"))

	_, err = m.Redo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "a.txt"))
}

func TestCreateInverse(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	exec := newExecutor(t)
	m := NewManager(exec, Config{})

	path, err := exec.CreateDirectory(dir, "New Folder")
	require.NoError(t, err)
	require.NoError(t, m.Push(NewCreate(ItemFolder, path, dir, "New Folder")))

	_, err = m.Undo(ctx)
	require.NoError(t, err)
	assert.NoDirExists(t, path)

	_, err = m.Redo(ctx)
	require.NoError(t, err)
	assert.DirExists(t, path)
}

func TestBatchRenameInverse(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	exec := newExecutor(t)
	m := NewManager(exec, Config{})

	var pairs []PathPair
	for _, name := range []string{"a.txt", "b.txt"} {
		old := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(old, nil, 0o644))
		newPath, err := exec.Rename(old, "new_"+name)
		require.NoError(t, err)
		pairs = append(pairs, PathPair{OldPath: old, NewPath: newPath})
	}
	require.NoError(t, m.Push(NewBatchRename(pairs)))

	_, err := m.Undo(ctx)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
	assert.FileExists(t, filepath.Join(dir, "b.txt"))
}

func TestUndoFailureDropsAction(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newManager(t)

	require.NoError(t, m.Push(NewRename(
		filepath.Join(dir, "gone.txt"), filepath.Join(dir, "also-gone.txt"), "gone.txt", "also-gone.txt")))

	_, err := m.Undo(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ops.ErrIO)
	u, r := m.Len()
	assert.Zero(t, u)
	assert.Zero(t, r)
}

func TestCapacityEvictsOldest(t *testing.T) {
	m := NewManager(nopExec{}, Config{Capacity: 3})
	var ids []string
	for i := 0; i < 5; i++ {
		a := NewCreate(ItemFile, "/tmp/x", "/tmp", "x")
		ids = append(ids, a.ID)
		require.NoError(t, m.Push(a))
	}
	u, _ := m.Len()
	assert.Equal(t, 3, u)

	top, ok := m.PeekUndo()
	require.True(t, ok)
	assert.Equal(t, ids[4], top.Info().ID)

	for i := 4; i >= 2; i-- {
		a, err := m.Undo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ids[i], a.Info().ID)
	}
	assert.False(t, m.CanUndo())
}

func TestPushRejectsIncompleteAction(t *testing.T) {
	m := newManager(t)
	assert.Error(t, m.Push(Rename{OldPath: "/a"}))
	assert.Error(t, m.Push(Move{}))
	assert.False(t, m.CanUndo())
}

func TestEventsPublished(t *testing.T) {
	b := events.NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	m := NewManager(nopExec{}, Config{Events: b})
	require.NoError(t, m.Push(NewCreate(ItemFile, "/tmp/x", "/tmp", "x")))

	e := <-ch
	assert.Equal(t, events.UndoChanged, e.Type)
	assert.Equal(t, 1, e.UndoDepth)
}

func TestCancelledContext(t *testing.T) {
	m := NewManager(nopExec{}, Config{})
	require.NoError(t, m.Push(NewCreate(ItemFile, "/tmp/x", "/tmp", "x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Undo(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, m.CanUndo(), "a cancelled undo leaves the stack alone")
}

func TestMarshalRoundTrip(t *testing.T) {
	in := NewMove(true, []MovedItem{{OriginalPath: "/a/x", CurrentPath: "/b/x"}}, "/b")
	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"move"`)

	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, KindMove, out.Kind())
	assert.Equal(t, in.ID, out.Info().ID)
	assert.Equal(t, in.Items, out.(Move).Items)

	a, err := Unmarshal([]byte(`{"type":"rename","oldPath":"/d/foo","newPath":"/d/bar"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, a.Info().ID)

	_, err = Unmarshal([]byte(`{"type":"delete"}`))
	assert.Error(t, err)
	_, err = Unmarshal([]byte(`{"type":"create"}`))
	assert.Error(t, err)
}

// nopExec succeeds at everything, or fails everything when fail is set.
type nopExec struct{ fail bool }

func (n nopExec) err() error {
	if n.fail {
		return errors.New("failed")
	}
	return nil
}

func (n nopExec) Rename(path, newName string) (string, error) {
	return filepath.Join(filepath.Dir(path), newName), n.err()
}
func (n nopExec) Move(string, string) error     { return n.err() }
func (n nopExec) CopyTree(string, string) error { return n.err() }
func (n nopExec) Delete(string) error           { return n.err() }
func (n nopExec) CreateFile(p, name string) (string, error) {
	return filepath.Join(p, name), n.err()
}
func (n nopExec) CreateDirectory(p, name string) (string, error) {
	return filepath.Join(p, name), n.err()
}

// toggleExec fails while fail is set.
type toggleExec struct {
	nopExec
	fail *bool
}

func (e toggleExec) Rename(path, newName string) (string, error) {
	return nopExec{fail: *e.fail}.Rename(path, newName)
}
func (e toggleExec) Delete(string) error { return nopExec{fail: *e.fail}.err() }

func TestStackInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(t, "capacity")
		fail := false
		m := NewManager(toggleExec{fail: &fail}, Config{Capacity: capacity})
		ctx := context.Background()

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			fail = rapid.Float64Range(0, 1).Draw(t, "failRoll") < 0.15
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				if err := m.Push(NewRename("/d/a", "/d/b", "a", "b")); err != nil {
					t.Fatalf("push: %v", err)
				}
				if m.CanRedo() {
					t.Fatalf("redo not cleared by push")
				}
			case 1:
				before, _ := m.Len()
				_, err := m.Undo(ctx)
				after, _ := m.Len()
				if before > 0 && after != before-1 {
					t.Fatalf("undo depth %d -> %d", before, after)
				}
				if before == 0 && !errors.Is(err, ErrNothingToUndo) {
					t.Fatalf("expected ErrNothingToUndo, got %v", err)
				}
			case 2:
				_, before := m.Len()
				_, err := m.Redo(ctx)
				_, after := m.Len()
				if before > 0 && after != before-1 {
					t.Fatalf("redo depth %d -> %d", before, after)
				}
				if before == 0 && !errors.Is(err, ErrNothingToRedo) {
					t.Fatalf("expected ErrNothingToRedo, got %v", err)
				}
			}

			m.mu.Lock()
			seen := map[string]bool{}
			for _, a := range append(append([]Action{}, m.undo...), m.redo...) {
				id := a.Info().ID
				if seen[id] {
					m.mu.Unlock()
					t.Fatalf("action %s present twice", id)
				}
				seen[id] = true
			}
			if len(m.undo) > capacity || len(m.redo) > capacity {
				m.mu.Unlock()
				t.Fatalf("stack over capacity: %d/%d", len(m.undo), len(m.redo))
			}
			m.mu.Unlock()
		}
	})
}
