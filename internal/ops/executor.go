// Package ops executes mutating file operations on explicit, user-selected
// paths: copy, move, rename, create and delete.
//
// Unlike traversal, nothing here tolerates a bad path. A path that cannot be
// resolved fails the whole call with ErrInvalidPath.
package ops

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/metrics"
	"github.com/justyntemme/solstice/internal/trash"
)

// Common file permission modes
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// Trasher moves a path to the platform trash.
type Trasher interface {
	MoveToTrash(path string) (trash.Item, error)
}

// SystemTrash uses the operating system trash.
type SystemTrash struct{}

func (SystemTrash) MoveToTrash(path string) (trash.Item, error) {
	return trash.MoveToTrash(path)
}

// Options configures an Executor.
type Options struct {
	Trash    Trasher
	Events   events.Publisher
	Progress func(done, total int64)
}

// Executor performs file operations and reports each outcome.
type Executor struct {
	trash    Trasher
	events   events.Publisher
	progress func(done, total int64)
}

// Transfer is one item copied or moved.
type Transfer struct {
	Source string `json:"originalPath"`
	Target string `json:"currentPath"`
}

// RenameOperation renames OldPath to NewName within its parent directory.
type RenameOperation struct {
	OldPath string `json:"oldPath"`
	NewName string `json:"newName"`
}

// BatchResult reports a batch rename. Failed items do not stop the batch.
type BatchResult struct {
	Count   int
	Errors  []error
	Renamed []Transfer
}

func NewExecutor(opts Options) *Executor {
	if opts.Trash == nil {
		opts.Trash = SystemTrash{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Executor{
		trash:    opts.Trash,
		events:   opts.Events,
		progress: opts.Progress,
	}
}

// Resolve returns the absolute, cleaned form of path.
func Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" || strings.ContainsRune(path, 0) {
		return "", opErr("resolve", path, ErrInvalidPath, nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", opErr("resolve", path, ErrInvalidPath, err)
	}
	return filepath.Clean(abs), nil
}

// validName rejects names that would escape the parent directory.
func validName(op, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsRune(name, 0) ||
		strings.ContainsRune(name, '/') ||
		strings.ContainsRune(name, filepath.Separator) {
		return opErr(op, name, ErrInvalidPath, nil)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// ioKind maps an os error to an error kind.
func ioKind(err error) error {
	if errors.Is(err, iofs.ErrExist) {
		return ErrAlreadyExists
	}
	return ErrIO
}

// finish records the outcome of one operation.
func (e *Executor) finish(op string, paths []string, err error) error {
	metrics.RecordFileOp(op, err == nil)
	if err != nil {
		logging.Warn("file operation failed", zap.String("op", op), zap.Strings("paths", paths), zap.Error(err))
		return err
	}
	debug.Log(debug.OPS, "%s ok: %v", op, paths)
	e.events.Publish(events.Event{Type: events.OpCompleted, Op: op, Paths: paths})
	return nil
}

// Move renames src to dst. It has rename(2) semantics and fails where the
// rename primitive fails, including across filesystems.
func (e *Executor) Move(src, dst string) error {
	err := e.move(src, dst)
	return e.finish("move", []string{src, dst}, err)
}

func (e *Executor) move(src, dst string) error {
	src, err := Resolve(src)
	if err != nil {
		return err
	}
	dst, err = Resolve(dst)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if isWithin(dst, src) {
		return opErr("move", dst, ErrInvalidPath, errors.New("destination is inside source"))
	}
	if pathExists(dst) {
		return opErr("move", dst, ErrAlreadyExists, nil)
	}
	if err := os.Rename(src, dst); err != nil {
		return opErr("move", src, ErrIO, err)
	}
	return nil
}

// Rename gives path a new name in the same directory and returns the new path.
func (e *Executor) Rename(path, newName string) (string, error) {
	newPath, err := e.rename(path, newName)
	return newPath, e.finish("rename", []string{path, newPath}, err)
}

func (e *Executor) rename(path, newName string) (string, error) {
	path, err := Resolve(path)
	if err != nil {
		return "", err
	}
	if err := validName("rename", newName); err != nil {
		return "", err
	}
	oldInfo, err := os.Lstat(path)
	if err != nil {
		return "", opErr("rename", path, ErrIO, err)
	}

	newPath := filepath.Join(filepath.Dir(path), newName)
	if newPath == path {
		return newPath, nil
	}
	// A case-only rename on a case-insensitive filesystem sees itself
	if info, err := os.Lstat(newPath); err == nil && !os.SameFile(oldInfo, info) {
		return "", opErr("rename", newPath, ErrAlreadyExists, nil)
	}
	if err := os.Rename(path, newPath); err != nil {
		return "", opErr("rename", path, ErrIO, err)
	}
	return newPath, nil
}

// CreateDirectory creates parent/name and returns its path.
func (e *Executor) CreateDirectory(parent, name string) (string, error) {
	path, err := e.create(parent, name, func(path string) error {
		return os.Mkdir(path, DirPermission)
	})
	return path, e.finish("create-folder", []string{path}, err)
}

// CreateFile creates an empty file parent/name and returns its path.
func (e *Executor) CreateFile(parent, name string) (string, error) {
	path, err := e.create(parent, name, func(path string) error {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, FilePermission)
		if err != nil {
			return err
		}
		return file.Close()
	})
	return path, e.finish("create-file", []string{path}, err)
}

func (e *Executor) create(parent, name string, mk func(string) error) (string, error) {
	parent, err := Resolve(parent)
	if err != nil {
		return "", err
	}
	if err := validName("create", name); err != nil {
		return "", err
	}
	path := filepath.Join(parent, name)
	if pathExists(path) {
		return "", opErr("create", path, ErrAlreadyExists, nil)
	}
	if err := mk(path); err != nil {
		return "", opErr("create", path, ioKind(err), err)
	}
	return path, nil
}

// Delete moves path to the trash. It is the inverse of a create or a copy;
// anything written inside path since then stays recoverable.
func (e *Executor) Delete(path string) error {
	err := e.trashOne(path)
	return e.finish("delete", []string{path}, err)
}

func (e *Executor) trashOne(path string) error {
	path, err := Resolve(path)
	if err != nil {
		return err
	}
	if _, err := e.trash.MoveToTrash(path); err != nil {
		return opErr("delete", path, ErrIO, err)
	}
	return nil
}

// DeleteMany moves every path to the trash. All paths are resolved before
// anything is touched; trashing stops at the first failure.
func (e *Executor) DeleteMany(paths []string) ([]trash.Item, error) {
	items, err := e.deleteMany(paths)
	return items, e.finish("trash", paths, err)
}

func (e *Executor) deleteMany(paths []string) ([]trash.Item, error) {
	resolved, err := resolveAll(paths)
	if err != nil {
		return nil, err
	}
	items := make([]trash.Item, 0, len(resolved))
	for _, path := range resolved {
		item, err := e.trash.MoveToTrash(path)
		if err != nil {
			return items, opErr("trash", path, ErrIO, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// MoveItems moves each source into dstDir under its own base name. It stops
// at the first failure and returns what was moved so far.
func (e *Executor) MoveItems(sources []string, dstDir string) ([]Transfer, error) {
	done, err := e.transferItems(sources, dstDir, false)
	return done, e.finish("move", targets(sources, done), err)
}

// CopyItems copies each source into dstDir. Copying an item into its own
// directory picks a free "_copyN" name.
func (e *Executor) CopyItems(sources []string, dstDir string) ([]Transfer, error) {
	done, err := e.transferItems(sources, dstDir, true)
	return done, e.finish("copy", targets(sources, done), err)
}

func (e *Executor) transferItems(sources []string, dstDir string, isCopy bool) ([]Transfer, error) {
	resolved, err := resolveAll(sources)
	if err != nil {
		return nil, err
	}
	dstDir, err = Resolve(dstDir)
	if err != nil {
		return nil, err
	}

	done := make([]Transfer, 0, len(resolved))
	for _, src := range resolved {
		dst := filepath.Join(dstDir, filepath.Base(src))
		if isCopy {
			if dst == src {
				dst = uniqueCopyName(dst)
			}
			err = e.copyTree(src, dst)
		} else {
			if dst == src {
				continue
			}
			err = e.move(src, dst)
		}
		if err != nil {
			return done, err
		}
		done = append(done, Transfer{Source: src, Target: dst})
	}
	return done, nil
}

// BatchRename applies every rename independently and counts the successes.
func (e *Executor) BatchRename(renames []RenameOperation) BatchResult {
	var res BatchResult
	paths := make([]string, 0, len(renames))
	for _, op := range renames {
		newPath, err := e.rename(op.OldPath, op.NewName)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Count++
		res.Renamed = append(res.Renamed, Transfer{Source: op.OldPath, Target: newPath})
		paths = append(paths, newPath)
	}
	var err error
	if res.Count == 0 && len(res.Errors) > 0 {
		err = res.Errors[0]
	}
	e.finish("batch-rename", paths, err)
	return res
}

func resolveAll(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, opErr("resolve", "", ErrInvalidPath, errors.New("no paths"))
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := Resolve(p)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}

func targets(sources []string, done []Transfer) []string {
	if len(done) == 0 {
		return sources
	}
	out := make([]string, len(done))
	for i, t := range done {
		out[i] = t.Target
	}
	return out
}

// uniqueCopyName returns path with "_copyN" inserted before the extension,
// using the lowest N that is free.
func uniqueCopyName(path string) string {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, base+"_copy"+strconv.Itoa(i)+ext)
		if !pathExists(candidate) {
			return candidate
		}
	}
}

// isWithin reports whether path is root or below it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
