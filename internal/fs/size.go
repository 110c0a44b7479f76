package fs

import (
	"context"
	iofs "io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"golang.org/x/sync/singleflight"

	"github.com/justyntemme/solstice/internal/debug"
)

// DefaultFolderMaxDepth is how many directory levels folder stats descend.
const DefaultFolderMaxDepth = 11

// FolderStats is the aggregate of a depth-bounded walk.
type FolderStats struct {
	TotalSize   int64 `json:"totalSize"`
	FileCount   int64 `json:"fileCount"`
	FolderCount int64 `json:"folderCount"`
}

// CalculateFolderStats sums file sizes and counts files and folders under
// path, listing at most maxDepth levels. Unreadable nodes are skipped.
// Symlinks are counted as files and never followed.
func CalculateFolderStats(path string, maxDepth int) FolderStats {
	if maxDepth <= 0 {
		maxDepth = DefaultFolderMaxDepth
	}
	root := filepath.Clean(path)

	var size, files, folders atomic.Int64
	conf := &fastwalk.Config{
		Follow:   false,
		MaxDepth: maxDepth,
	}
	err := fastwalk.Walk(conf, root, func(fullPath string, d iofs.DirEntry, err error) error {
		if err != nil {
			debug.Log(debug.FS_WALK, "folderStats: error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == root {
			return nil
		}
		if d.IsDir() {
			folders.Add(1)
			return nil
		}
		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			return nil
		}
		files.Add(1)
		size.Add(info.Size())
		return nil
	})
	if err != nil {
		debug.Log(debug.FS, "folderStats: %q: %v", root, err)
	}

	return FolderStats{
		TotalSize:   size.Load(),
		FileCount:   files.Load(),
		FolderCount: folders.Load(),
	}
}

// SizeCalculator collapses concurrent requests for the same folder into one
// walk. A caller whose context ends stops waiting; the walk itself runs to
// completion and later callers share its result.
type SizeCalculator struct {
	group    singleflight.Group
	maxDepth int
}

// NewSizeCalculator creates a calculator bounded to maxDepth levels.
func NewSizeCalculator(maxDepth int) *SizeCalculator {
	return &SizeCalculator{maxDepth: maxDepth}
}

// Stats returns the folder stats for path.
func (c *SizeCalculator) Stats(ctx context.Context, path string) (FolderStats, error) {
	key := filepath.Clean(path)
	ch := c.group.DoChan(key, func() (any, error) {
		return CalculateFolderStats(key, c.maxDepth), nil
	})
	select {
	case r := <-ch:
		return r.Val.(FolderStats), nil
	case <-ctx.Done():
		debug.Log(debug.FS, "SizeCalculator: abandoned %q: %v", key, ctx.Err())
		return FolderStats{}, ctx.Err()
	}
}

// Size returns just the byte total for path.
func (c *SizeCalculator) Size(ctx context.Context, path string) (int64, error) {
	st, err := c.Stats(ctx, path)
	return st.TotalSize, err
}
