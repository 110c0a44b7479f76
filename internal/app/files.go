package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/fs"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/ops"
	"github.com/justyntemme/solstice/internal/rename"
	"github.com/justyntemme/solstice/internal/trash"
	"github.com/justyntemme/solstice/internal/undo"
)

// MaxPreviewBytes caps ReadFileContent.
const MaxPreviewBytes = 1 << 20

var (
	ErrTooLarge  = errors.New("file too large to preview")
	ErrNotAFile  = errors.New("not a regular file")
	ErrEmptyList = errors.New("no items given")
)

// Every successful mutation below records its undo action. A multi-item
// copy or move that stops part way records the items that did transfer.

// CopyItems copies sources into dstDir.
func (s *Service) CopyItems(sources []string, dstDir string) ([]ops.Transfer, error) {
	done, err := s.exec.CopyItems(sources, dstDir)
	if len(done) > 0 {
		s.push(undo.NewMove(true, movedItems(done), filepath.Dir(done[0].Target)))
	}
	return done, err
}

// MoveItems moves sources into dstDir, carrying their tags along.
func (s *Service) MoveItems(sources []string, dstDir string) ([]ops.Transfer, error) {
	done, err := s.exec.MoveItems(sources, dstDir)
	for _, t := range done {
		s.retag(t.Source, t.Target)
	}
	if len(done) > 0 {
		s.push(undo.NewMove(false, movedItems(done), filepath.Dir(done[0].Target)))
	}
	return done, err
}

// RenameItem renames path to newName within its directory.
func (s *Service) RenameItem(path, newName string) (string, error) {
	oldPath, err := ops.Resolve(path)
	if err != nil {
		return "", err
	}
	newPath, err := s.exec.Rename(oldPath, newName)
	if err != nil {
		return "", err
	}
	if newPath != oldPath {
		s.retag(oldPath, newPath)
		s.push(undo.NewRename(oldPath, newPath, filepath.Base(oldPath), filepath.Base(newPath)))
	}
	return newPath, nil
}

// CreateFolder creates parent/name.
func (s *Service) CreateFolder(parent, name string) (string, error) {
	path, err := s.exec.CreateDirectory(parent, name)
	if err != nil {
		return "", err
	}
	s.push(undo.NewCreate(undo.ItemFolder, path, filepath.Dir(path), name))
	return path, nil
}

// CreateFile creates an empty file parent/name.
func (s *Service) CreateFile(parent, name string) (string, error) {
	path, err := s.exec.CreateFile(parent, name)
	if err != nil {
		return "", err
	}
	s.push(undo.NewCreate(undo.ItemFile, path, filepath.Dir(path), name))
	return path, nil
}

// DeleteItems moves paths to the trash and drops the tags of what was
// trashed. Trashing is not undoable here; the platform trash is the way back.
func (s *Service) DeleteItems(paths []string) ([]trash.Item, error) {
	items, err := s.exec.DeleteMany(paths)
	if s.store != nil {
		for _, it := range items {
			if ferr := s.store.ForgetPath(it.OriginalPath); ferr != nil {
				logging.Warn("tags not dropped", zap.String("path", it.OriginalPath), zap.Error(ferr))
			}
		}
	}
	return items, err
}

// BatchRename applies independent renames and records the ones that
// succeeded as a single undo action.
func (s *Service) BatchRename(renames []ops.RenameOperation) (ops.BatchResult, error) {
	if len(renames) == 0 {
		return ops.BatchResult{}, ErrEmptyList
	}
	res := s.exec.BatchRename(renames)
	s.recordBatch(res)
	return res, nil
}

// PreviewRename computes the outcome of applying strategy to paths without
// touching the disk.
func (s *Service) PreviewRename(paths []string, strategy rename.Strategy) (rename.Preview, error) {
	if len(paths) == 0 {
		return rename.Preview{}, ErrEmptyList
	}
	return rename.Plan(paths, strategy)
}

// ApplyRename plans and commits strategy over paths. A plan with conflicts
// is rejected with rename.ErrConflict and nothing is renamed.
func (s *Service) ApplyRename(ctx context.Context, paths []string, strategy rename.Strategy) (rename.Preview, ops.BatchResult, error) {
	p, err := s.PreviewRename(paths, strategy)
	if err != nil {
		return rename.Preview{}, ops.BatchResult{}, err
	}
	action, res, err := rename.Commit(ctx, p, s.exec)
	if err != nil {
		return p, res, err
	}
	for _, t := range res.Renamed {
		s.retag(t.Source, t.Target)
	}
	if len(action.Operations) > 0 {
		s.push(action)
	}
	return p, res, nil
}

func (s *Service) recordBatch(res ops.BatchResult) {
	if len(res.Renamed) == 0 {
		return
	}
	pairs := make([]undo.PathPair, len(res.Renamed))
	for i, t := range res.Renamed {
		s.retag(t.Source, t.Target)
		pairs[i] = undo.PathPair{OldPath: t.Source, NewPath: t.Target}
	}
	s.push(undo.NewBatchRename(pairs))
}

// PushUndoable records an operation performed outside the service.
func (s *Service) PushUndoable(a undo.Action) error {
	return s.undo.Push(a)
}

// Undo reverses the newest action.
func (s *Service) Undo(ctx context.Context) (undo.Action, error) {
	a, err := s.undo.Undo(ctx)
	if a != nil {
		s.retagAction(a, true)
	}
	return a, err
}

// Redo re-applies the newest undone action.
func (s *Service) Redo(ctx context.Context) (undo.Action, error) {
	a, err := s.undo.Redo(ctx)
	if a != nil {
		s.retagAction(a, false)
	}
	return a, err
}

// History describes both stacks.
type History struct {
	CanUndo   bool   `json:"canUndo"`
	CanRedo   bool   `json:"canRedo"`
	UndoDepth int    `json:"undoDepth"`
	RedoDepth int    `json:"redoDepth"`
	NextUndo  string `json:"nextUndo,omitempty"`
	NextRedo  string `json:"nextRedo,omitempty"`
}

// History reports the undo and redo stacks.
func (s *Service) History() History {
	u, r := s.undo.Len()
	h := History{CanUndo: u > 0, CanRedo: r > 0, UndoDepth: u, RedoDepth: r}
	if a, ok := s.undo.PeekUndo(); ok {
		h.NextUndo = string(a.Kind())
	}
	if a, ok := s.undo.PeekRedo(); ok {
		h.NextRedo = string(a.Kind())
	}
	return h
}

func (s *Service) push(a undo.Action) {
	if err := s.undo.Push(a); err != nil {
		logging.Error("record undo action failed", zap.String("kind", string(a.Kind())), zap.Error(err))
	}
}

// retagAction moves tags to follow the paths an undo or redo touched.
// Pairs that did not actually move on disk are left alone.
func (s *Service) retagAction(a undo.Action, undone bool) {
	var from, to []string
	switch a := a.(type) {
	case undo.Rename:
		from, to = []string{a.NewPath}, []string{a.OldPath}
	case undo.Move:
		if a.IsCopy {
			return
		}
		for _, it := range a.Items {
			from = append(from, it.CurrentPath)
			to = append(to, it.OriginalPath)
		}
	case undo.BatchRename:
		for _, op := range a.Operations {
			from = append(from, op.NewPath)
			to = append(to, op.OldPath)
		}
	default:
		return
	}
	if !undone {
		from, to = to, from
	}
	for i := range from {
		if !exists(from[i]) && exists(to[i]) {
			s.retag(from[i], to[i])
		}
	}
}

func (s *Service) retag(from, to string) {
	if s.store == nil {
		return
	}
	if err := s.store.RenamePath(from, to); err != nil {
		logging.Warn("tags not moved", zap.String("from", from), zap.String("to", to), zap.Error(err))
	}
}

func movedItems(done []ops.Transfer) []undo.MovedItem {
	items := make([]undo.MovedItem, len(done))
	for i, t := range done {
		items[i] = undo.MovedItem{OriginalPath: t.Source, CurrentPath: t.Target}
	}
	return items
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// ItemProperties returns the detail view of path.
func (s *Service) ItemProperties(path string) (fs.Properties, error) {
	return fs.ReadProperties(path)
}

// ReadFileContent returns a file's text for preview, refusing anything over
// MaxPreviewBytes.
func (s *Service) ReadFileContent(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if info.Size() > MaxPreviewBytes {
		return "", fmt.Errorf("%w: %s is %s, limit %s", ErrTooLarge,
			filepath.Base(path), humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxPreviewBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Thumbnail returns a data: URL with a scaled JPEG of the image at path.
func (s *Service) Thumbnail(path string) (string, error) {
	return s.thumbs.DataURL(path)
}
