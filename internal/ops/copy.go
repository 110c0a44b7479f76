package ops

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"
	"github.com/otiai10/copy"
	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/logging"
)

// CopyTree copies src to dst recursively, creating destination directories
// as needed. The first unrecoverable error fails the call with ErrIO; a
// partially copied tree is left in place.
func (e *Executor) CopyTree(src, dst string) error {
	err := e.copyTree(src, dst)
	return e.finish("copy", []string{dst}, err)
}

func (e *Executor) copyTree(src, dst string) error {
	src, err := Resolve(src)
	if err != nil {
		return err
	}
	dst, err = Resolve(dst)
	if err != nil {
		return err
	}
	info, err := os.Lstat(src)
	if err != nil {
		return opErr("copy", src, ErrIO, err)
	}
	if info.IsDir() && isWithin(dst, src) {
		return opErr("copy", dst, ErrInvalidPath, errors.New("destination is inside source"))
	}
	if pathExists(dst) {
		return opErr("copy", dst, ErrAlreadyExists, nil)
	}

	total := info.Size()
	if info.IsDir() {
		total = treeSize(src)
	}

	var done atomic.Int64
	opts := copy.Options{
		OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
		OnDirExists: func(string, string) copy.DirExistsAction {
			return copy.Untouchable
		},
		PermissionControl: copy.PerservePermission,
		PreserveTimes:     true,
	}
	if e.progress != nil {
		e.progress(0, total)
		opts.WrapReader = func(r io.Reader) io.Reader {
			return &progressReader{r: r, onRead: func(n int64) {
				e.progress(done.Add(n), total)
			}}
		}
	}

	if err := copy.Copy(src, dst, opts); err != nil {
		return opErr("copy", src, ErrIO, err)
	}
	logging.Debug("copied tree",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.String("size", humanize.IBytes(uint64(total))))
	return nil
}

// treeSize sums regular file sizes under root for progress reporting.
func treeSize(root string) int64 {
	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}
	fastwalk.Walk(&conf, root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total.Add(info.Size())
			}
		}
		return nil
	})
	return total.Load()
}

// progressReader wraps an io.Reader and calls onRead after each read
type progressReader struct {
	r      io.Reader
	onRead func(int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 && pr.onRead != nil {
		pr.onRead(int64(n))
	}
	return n, err
}
