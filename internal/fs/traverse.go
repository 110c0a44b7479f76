package fs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/metrics"
)

// Traversal defaults.
const (
	DefaultMaxResults     = 500
	DefaultMaxConcurrency = 20
	DefaultTimeout        = 30 * time.Second
)

// Outcome records how a traversal resolved.
type Outcome int

const (
	Complete  Outcome = iota // queue drained
	Capped                   // MaxResults reached
	TimedOut                 // wall-clock timeout fired
	Cancelled                // caller's context ended
)

func (o Outcome) String() string {
	switch o {
	case Capped:
		return "capped"
	case TimedOut:
		return "timeout"
	case Cancelled:
		return "cancelled"
	default:
		return "complete"
	}
}

// TraverseOptions bounds one traversal.
type TraverseOptions struct {
	MaxResults     int
	MaxConcurrency int
	Timeout        time.Duration
	MaxDepth       int    // directory levels listed below each root; 0 = unbounded
	Label          string // metrics label

	// OnProgress is called from the coordinator after each listing.
	OnProgress func(dirsListed, results int)
}

func (o TraverseOptions) withDefaults() TraverseOptions {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Label == "" {
		o.Label = "traverse"
	}
	return o
}

// Candidate is a child entry offered to a Visitor. IsDir and IsSymlink come
// from the directory listing (Lstat semantics): a symlink to a directory has
// IsDir false and is never descended.
type Candidate struct {
	Name      string
	Path      string
	IsDir     bool
	IsSymlink bool
	Depth     int // 1 for children of a root
}

// Verdict is a Visitor's decision for one candidate.
type Verdict struct {
	Match   bool
	Descend bool
}

// Visitor decides whether a candidate is a result and whether to descend
// into it. Visitors run on worker goroutines and must be safe for
// concurrent use.
type Visitor[T any] func(Candidate) (T, Verdict)

// TraverseResult is what a traversal collected before it resolved.
type TraverseResult[T any] struct {
	Items      []T
	Outcome    Outcome
	DirsListed int
	Errors     int
	Elapsed    time.Duration
}

type dirJob struct {
	path  string
	depth int
}

type dirBatch[T any] struct {
	matches []T
	subdirs []dirJob
	err     error
}

// Traverse walks roots breadth-first with at most MaxConcurrency directory
// listings in flight and returns at most MaxResults matches. It resolves
// exactly once: when the queue drains, the cap is hit, the timeout fires, or
// ctx ends, whichever comes first. Listing errors are counted and skipped.
//
// The calling goroutine is the coordinator: it alone owns the queue, the
// in-flight count, the results and the visited set. Workers only list.
func Traverse[T any](ctx context.Context, roots []string, opts TraverseOptions, visit Visitor[T]) TraverseResult[T] {
	opts = opts.withDefaults()
	start := time.Now()

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var res TraverseResult[T]
	visited := make(map[string]struct{})
	queue := make([]dirJob, 0, len(roots))
	skipSystem := false
	for _, r := range roots {
		p := filepath.Clean(r)
		if _, ok := visited[p]; ok {
			continue
		}
		visited[p] = struct{}{}
		queue = append(queue, dirJob{path: p})
		if p == "/" {
			skipSystem = true
		}
	}

	// Sized so a worker finishing after resolution never blocks.
	done := make(chan dirBatch[T], opts.MaxConcurrency)
	inFlight := 0

loop:
	for {
		for len(queue) > 0 && inFlight < opts.MaxConcurrency {
			job := queue[0]
			queue = queue[1:]
			inFlight++
			debug.Log(debug.FS_WALK, "traverse: list %q depth=%d inFlight=%d queued=%d", job.path, job.depth, inFlight, len(queue))
			go listJob(ctx, job, opts, skipSystem, visit, done)
		}
		if inFlight == 0 {
			res.Outcome = Complete
			break
		}

		select {
		case b := <-done:
			inFlight--
			res.DirsListed++
			if b.err != nil {
				res.Errors++
			}
			for _, m := range b.matches {
				if len(res.Items) >= opts.MaxResults {
					break
				}
				res.Items = append(res.Items, m)
			}
			if opts.OnProgress != nil {
				opts.OnProgress(res.DirsListed, len(res.Items))
			}
			if len(res.Items) >= opts.MaxResults {
				res.Outcome = Capped
				break loop
			}
			for _, sd := range b.subdirs {
				if _, ok := visited[sd.path]; ok {
					continue
				}
				visited[sd.path] = struct{}{}
				queue = append(queue, sd)
			}

		case <-ctx.Done():
			if parent.Err() != nil {
				res.Outcome = Cancelled
			} else {
				res.Outcome = TimedOut
				logging.Warn("traversal timed out",
					zap.Strings("roots", roots),
					zap.Duration("timeout", opts.Timeout),
					zap.Int("results", len(res.Items)))
			}
			break loop
		}
	}

	res.Elapsed = time.Since(start)
	metrics.RecordTraversal(opts.Label, res.Outcome.String(), res.Elapsed, len(res.Items))
	debug.Log(debug.FS_WALK, "traverse: %s after %v dirs=%d errors=%d results=%d",
		res.Outcome, res.Elapsed, res.DirsListed, res.Errors, len(res.Items))
	return res
}

// listJob lists one directory and applies the visitor to each child. It
// always sends exactly one batch.
func listJob[T any](ctx context.Context, job dirJob, opts TraverseOptions, skipSystem bool, visit Visitor[T], out chan<- dirBatch[T]) {
	var b dirBatch[T]
	defer func() { out <- b }()
	defer func() {
		if r := recover(); r != nil {
			b.err = fmt.Errorf("visitor panic in %s: %v", job.path, r)
			logging.Error("traversal visitor panicked", zap.String("dir", job.path), zap.Any("panic", r))
		}
	}()

	var mu sync.Mutex
	var children []candidate
	err := walkChildren(job.path, 1, func(c candidate) {
		mu.Lock()
		children = append(children, c)
		mu.Unlock()
	})
	metrics.RecordDirListed(err != nil)
	if err != nil {
		debug.Log(debug.FS_WALK, "traverse: skip %q: %v", job.path, err)
		b.err = err
		return
	}

	depth := job.depth + 1
	for _, c := range children {
		if ctx.Err() != nil {
			return
		}
		if IsReserved(c.name) || (skipSystem && shouldSkipPath(c.path)) {
			continue
		}
		item, v := visit(Candidate{
			Name:      c.name,
			Path:      c.path,
			IsDir:     c.isDir,
			IsSymlink: c.isSymlink,
			Depth:     depth,
		})
		if v.Match && len(b.matches) < opts.MaxResults {
			b.matches = append(b.matches, item)
		}
		if v.Descend && c.isDir && !c.isSymlink && (opts.MaxDepth <= 0 || depth < opts.MaxDepth) {
			b.subdirs = append(b.subdirs, dirJob{path: filepath.Clean(c.path), depth: depth})
		}
	}
}
