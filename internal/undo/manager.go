package undo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/metrics"
)

// DefaultCapacity bounds both stacks.
const DefaultCapacity = 50

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Executor performs the file operations actions are replayed with.
type Executor interface {
	Rename(path, newName string) (string, error)
	Move(src, dst string) error
	CopyTree(src, dst string) error
	Delete(path string) error
	CreateFile(parent, name string) (string, error)
	CreateDirectory(parent, name string) (string, error)
}

// Config configures a Manager.
type Config struct {
	Capacity int
	Events   events.Publisher
}

// Manager owns the undo and redo stacks. Every transition holds the lock for
// its whole duration, so an action is never observed on both stacks.
type Manager struct {
	mu       sync.Mutex
	exec     Executor
	events   events.Publisher
	capacity int
	undo     []Action
	redo     []Action
}

func NewManager(exec Executor, cfg Config) *Manager {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	return &Manager{
		exec:     exec,
		events:   cfg.Events,
		capacity: cfg.Capacity,
	}
}

// Push records a completed operation and clears the redo stack. The oldest
// action is evicted once the stack is over capacity.
func (m *Manager) Push(a Action) error {
	if err := validate(a); err != nil {
		return err
	}
	m.mu.Lock()
	m.undo = pushBounded(m.undo, a, m.capacity)
	m.redo = nil
	m.changedLocked()
	m.mu.Unlock()
	debug.Log(debug.UNDO, "push %s %s", a.Kind(), a.Info().ID)
	return nil
}

// Undo pops the newest action and executes its inverse. On success the
// action moves to the redo stack. On failure it is dropped and the error is
// returned.
func (m *Manager) Undo(ctx context.Context) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.undo) == 0 {
		return nil, ErrNothingToUndo
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]

	err := m.reverse(ctx, a)
	metrics.RecordUndo("undo", string(a.Kind()), err == nil)
	if err != nil {
		logging.Warn("undo failed, action dropped",
			zap.String("kind", string(a.Kind())),
			zap.String("id", a.Info().ID),
			zap.Error(err))
		m.changedLocked()
		return a, fmt.Errorf("undo %s: %w", a.Kind(), err)
	}
	m.redo = pushBounded(m.redo, a, m.capacity)
	m.changedLocked()
	return a, nil
}

// Redo pops the newest undone action and executes it forward again.
func (m *Manager) Redo(ctx context.Context) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.redo) == 0 {
		return nil, ErrNothingToRedo
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]

	err := m.forward(ctx, a)
	metrics.RecordUndo("redo", string(a.Kind()), err == nil)
	if err != nil {
		logging.Warn("redo failed, action dropped",
			zap.String("kind", string(a.Kind())),
			zap.String("id", a.Info().ID),
			zap.Error(err))
		m.changedLocked()
		return a, fmt.Errorf("redo %s: %w", a.Kind(), err)
	}
	m.undo = pushBounded(m.undo, a, m.capacity)
	m.changedLocked()
	return a, nil
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// PeekUndo returns the action Undo would reverse next.
func (m *Manager) PeekUndo() (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return nil, false
	}
	return m.undo[len(m.undo)-1], true
}

// PeekRedo returns the action Redo would replay next.
func (m *Manager) PeekRedo() (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return nil, false
	}
	return m.redo[len(m.redo)-1], true
}

// Len returns the depth of both stacks.
func (m *Manager) Len() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Clear empties both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.undo, m.redo = nil, nil
	m.changedLocked()
	m.mu.Unlock()
}

func (m *Manager) changedLocked() {
	metrics.SetUndoDepth(len(m.undo), len(m.redo))
	m.events.Publish(events.Event{
		Type:      events.UndoChanged,
		UndoDepth: len(m.undo),
		RedoDepth: len(m.redo),
	})
}

func pushBounded(stack []Action, a Action, capacity int) []Action {
	stack = append(stack, a)
	if over := len(stack) - capacity; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

// reverse executes the inverse of a.
func (m *Manager) reverse(ctx context.Context, a Action) error {
	switch v := a.(type) {
	case Rename:
		_, err := m.exec.Rename(v.NewPath, nameOr(v.OldName, v.OldPath))
		return err
	case Move:
		var errs []error
		for _, it := range v.Items {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			var err error
			if v.IsCopy {
				err = m.exec.Delete(it.CurrentPath)
			} else {
				err = m.exec.Move(it.CurrentPath, it.OriginalPath)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case Create:
		return m.exec.Delete(v.Path)
	case BatchRename:
		var errs []error
		for i := len(v.Operations) - 1; i >= 0; i-- {
			op := v.Operations[i]
			if _, err := m.exec.Rename(op.NewPath, filepath.Base(op.OldPath)); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

// forward executes a again.
func (m *Manager) forward(ctx context.Context, a Action) error {
	switch v := a.(type) {
	case Rename:
		_, err := m.exec.Rename(v.OldPath, nameOr(v.NewName, v.NewPath))
		return err
	case Move:
		var errs []error
		for _, it := range v.Items {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			var err error
			if v.IsCopy {
				err = m.exec.CopyTree(it.OriginalPath, it.CurrentPath)
			} else {
				err = m.exec.Move(it.OriginalPath, it.CurrentPath)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case Create:
		parent := v.ParentPath
		if parent == "" {
			parent = filepath.Dir(v.Path)
		}
		name := nameOr(v.Name, v.Path)
		var err error
		if v.ItemType == ItemFolder {
			_, err = m.exec.CreateDirectory(parent, name)
		} else {
			_, err = m.exec.CreateFile(parent, name)
		}
		return err
	case BatchRename:
		var errs []error
		for _, op := range v.Operations {
			if _, err := m.exec.Rename(op.OldPath, filepath.Base(op.NewPath)); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

func nameOr(name, path string) string {
	if name != "" {
		return name
	}
	return filepath.Base(path)
}
