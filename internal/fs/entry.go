package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/search"
)

// ErrNotAccessible marks a path that could not be stat'd or listed:
// permission denied, broken link, or removed mid-scan. Traversals skip it.
var ErrNotAccessible = errors.New("not accessible")

// Entry is a snapshot of one filesystem object.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"isDirectory"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
	Created time.Time `json:"created"`
	Ext     string    `json:"extension"` // lowercase with dot, empty for directories
}

// Kind returns the derived type bucket of the entry.
func (e Entry) Kind() search.Kind {
	return search.KindOf(e.IsDir, e.Ext)
}

// ReadEntry stats path, following symlinks.
func ReadEntry(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrNotAccessible, path, err)
	}
	return newEntry(path, info), nil
}

// Properties is the detail view of one path.
type Properties struct {
	Entry
	IsFile   bool      `json:"isFile"`
	Accessed time.Time `json:"accessed"`
	Mode     string    `json:"mode"`
}

// ReadProperties stats path, following symlinks. Directories report their
// own inode size, not the size of their contents.
func ReadProperties(path string) (Properties, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Properties{}, fmt.Errorf("%w: %s: %w", ErrNotAccessible, path, err)
	}
	e := newEntry(path, info)
	e.Size = info.Size()
	return Properties{
		Entry:    e,
		IsFile:   info.Mode().IsRegular(),
		Accessed: accessTime(info),
		Mode:     info.Mode().String(),
	}, nil
}

func newEntry(path string, info os.FileInfo) Entry {
	e := Entry{
		Name:    filepath.Base(path),
		Path:    path,
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Created: birthTime(path, info),
	}
	if !e.IsDir {
		e.Size = info.Size()
		e.Ext = extOf(e.Name)
	}
	return e
}

func extOf(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// candidate is a child found by a single-level listing, typed by Lstat.
type candidate struct {
	name      string
	path      string
	isDir     bool
	isSymlink bool
}

// walkChildren calls fn for each direct child of dir. fn may run
// concurrently when workers > 1. The returned error is the failure to
// read dir itself; per-child errors are skipped.
func walkChildren(dir string, workers int, fn func(candidate)) error {
	conf := &fastwalk.Config{
		Follow:     false,
		MaxDepth:   1,
		NumWorkers: workers,
	}

	var rootErr error
	var errOnce sync.Once
	err := fastwalk.Walk(conf, dir, func(fullPath string, d iofs.DirEntry, err error) error {
		if err != nil {
			if fullPath == dir {
				errOnce.Do(func() { rootErr = err })
			}
			debug.Log(debug.FS_ENTRY, "walkChildren: error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == dir {
			return nil
		}
		fn(candidate{
			name:      d.Name(),
			path:      fullPath,
			isDir:     d.IsDir(),
			isSymlink: d.Type()&iofs.ModeSymlink != 0,
		})

		// Single level only
		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	return rootErr
}

// ListDirectory returns the stat'd children of dir sorted by name.
// A missing dir yields an empty list and no error. Children that cannot
// be stat'd are left out.
func ListDirectory(dir string) ([]Entry, error) {
	dir = filepath.Clean(dir)
	debug.Log(debug.FS, "ListDirectory: reading %q", dir)

	info, err := os.Stat(dir)
	if errors.Is(err, iofs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return []Entry{}, fmt.Errorf("%w: %s: %w", ErrNotAccessible, dir, err)
	}
	if !info.IsDir() {
		return []Entry{}, nil
	}

	var mu sync.Mutex
	result := []Entry{}
	err = walkChildren(dir, 0, func(c candidate) {
		e, err := ReadEntry(c.path)
		if err != nil {
			debug.Log(debug.FS_ENTRY, "ListDirectory: skipping %q: %v", c.name, err)
			return
		}
		mu.Lock()
		result = append(result, e)
		mu.Unlock()
	})
	if err != nil {
		debug.Log(debug.FS, "ListDirectory: %q: %v", dir, err)
		return []Entry{}, fmt.Errorf("%w: %s: %w", ErrNotAccessible, dir, err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	debug.Log(debug.FS, "ListDirectory: returning %d entries", len(result))
	return result, nil
}
