package fs

import (
	"context"
	"fmt"
	"sync"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/search"
)

type OpType int

const (
	FetchDir OpType = iota
	SearchDir
	AdvancedSearchDir
	FolderSize
	CancelSearch
)

func (o OpType) String() string {
	switch o {
	case FetchDir:
		return "fetch"
	case SearchDir:
		return "search"
	case AdvancedSearchDir:
		return "advanced"
	case FolderSize:
		return "size"
	case CancelSearch:
		return "cancel"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type Request struct {
	Op       OpType
	Path     string
	Query    string
	Kind     search.Kind
	Advanced *search.Options // AdvancedSearchDir only
	Gen      int64           // Generation counter to track stale requests
}

type Response struct {
	Op        OpType
	Path      string
	Entries   []Entry
	Hits      []SearchHit
	Stats     FolderStats
	Outcome   Outcome
	Err       error
	Gen       int64 // Generation counter from request
	Cancelled bool  // True if search was cancelled
}

// Progress represents a progress update during long operations
type Progress struct {
	Gen        int64
	DirsListed int
	Results    int
}

// SystemConfig bounds the searches a System runs.
type SystemConfig struct {
	Traverse TraverseOptions
	Advanced AdvancedConfig
	Sizes    *SizeCalculator
}

// System serves filesystem requests over channels. At most one search runs
// at a time: a new search or a directory fetch cancels the running one.
type System struct {
	RequestChan  chan Request
	ResponseChan chan Response
	ProgressChan chan Progress // Channel for progress updates

	cfg SystemConfig

	// Cancellation support
	cancelMu     sync.Mutex
	cancelFunc   context.CancelFunc
	currentGen   int64
	searchActive bool
}

func NewSystem(cfg SystemConfig) *System {
	if cfg.Sizes == nil {
		cfg.Sizes = NewSizeCalculator(DefaultFolderMaxDepth)
	}
	return &System{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
		ProgressChan: make(chan Progress, 100), // Buffered to avoid blocking
		cfg:          cfg,
	}
}

// SearchActive reports whether a search goroutine is running.
func (s *System) SearchActive() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	return s.searchActive
}

// cancelSearchLocked stops the running search, if any. Caller holds cancelMu.
func (s *System) cancelSearchLocked(reason string) {
	if s.cancelFunc != nil {
		debug.Log(debug.FS, "Cancelling search gen %d: %s", s.currentGen, reason)
		s.cancelFunc()
		s.cancelFunc = nil
	}
}

// Start processes requests until RequestChan is closed.
func (s *System) Start() {
	for req := range s.RequestChan {
		debug.Log(debug.FS, "Request: op=%s path=%q query=%q gen=%d", req.Op, req.Path, req.Query, req.Gen)

		switch req.Op {
		case CancelSearch:
			// Gen 0 cancels whatever runs; otherwise only that generation
			s.cancelMu.Lock()
			if req.Gen == 0 || req.Gen == s.currentGen {
				s.cancelSearchLocked("cancel requested")
			}
			s.cancelMu.Unlock()
			// No response: the search goroutine reports Cancelled

		case FetchDir:
			s.cancelMu.Lock()
			s.cancelSearchLocked("directory fetch")
			s.cancelMu.Unlock()

			entries, err := ListDirectory(req.Path)
			debug.Log(debug.FS, "FetchDir response: path=%q entries=%d gen=%d err=%v",
				req.Path, len(entries), req.Gen, err)
			s.ResponseChan <- Response{Op: FetchDir, Path: req.Path, Entries: entries, Err: err, Gen: req.Gen}

		case FolderSize:
			go func(req Request) {
				st, err := s.cfg.Sizes.Stats(context.Background(), req.Path)
				s.ResponseChan <- Response{Op: FolderSize, Path: req.Path, Stats: st, Err: err, Gen: req.Gen}
			}(req)

		case SearchDir, AdvancedSearchDir:
			s.cancelMu.Lock()
			s.cancelSearchLocked("superseded")
			ctx, cancel := context.WithCancel(context.Background())
			s.cancelFunc = cancel
			s.currentGen = req.Gen
			s.searchActive = true
			s.cancelMu.Unlock()

			// Run search in goroutine so we can process cancel requests
			go func(ctx context.Context, cancel context.CancelFunc, req Request) {
				defer cancel()
				resp := s.runSearch(ctx, req)
				resp.Gen = req.Gen
				if ctx.Err() != nil {
					resp.Cancelled = true
				}

				s.cancelMu.Lock()
				if s.currentGen == req.Gen {
					s.searchActive = false
					s.cancelFunc = nil
				}
				s.cancelMu.Unlock()

				debug.Log(debug.FS, "%s response: path=%q entries=%d hits=%d gen=%d outcome=%s",
					req.Op, resp.Path, len(resp.Entries), len(resp.Hits), resp.Gen, resp.Outcome)
				s.ResponseChan <- resp
			}(ctx, cancel, req)

		default:
			s.ResponseChan <- Response{Op: req.Op, Path: req.Path, Gen: req.Gen, Err: fmt.Errorf("unknown op %s", req.Op)}
		}
	}
}

func (s *System) progressFunc(gen int64) func(int, int) {
	return func(dirs, results int) {
		select {
		case s.ProgressChan <- Progress{Gen: gen, DirsListed: dirs, Results: results}:
		default:
			// Channel full, skip this update
		}
	}
}

func (s *System) runSearch(ctx context.Context, req Request) Response {
	topts := s.cfg.Traverse
	topts.OnProgress = s.progressFunc(req.Gen)

	if req.Op == SearchDir {
		res := Search(ctx, req.Path, req.Query, req.Kind, topts)
		return Response{Op: SearchDir, Path: req.Path, Entries: res.Items, Outcome: res.Outcome}
	}

	if req.Advanced == nil {
		return Response{Op: AdvancedSearchDir, Path: req.Path, Err: fmt.Errorf("advanced search without options")}
	}
	acfg := s.cfg.Advanced
	acfg.Traverse.OnProgress = topts.OnProgress
	res, err := AdvancedSearch(ctx, *req.Advanced, acfg)
	return Response{Op: AdvancedSearchDir, Path: req.Advanced.Root, Hits: res.Items, Outcome: res.Outcome, Err: err}
}
