// Package app wires the core packages into one Service that front ends
// (the stdio bridge, the CLI) drive.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/config"
	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/fs"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/ops"
	"github.com/justyntemme/solstice/internal/store"
	"github.com/justyntemme/solstice/internal/thumbs"
	"github.com/justyntemme/solstice/internal/undo"
)

var (
	// ErrNoStore is returned by tag, favorite and setting calls when the
	// service runs without a database.
	ErrNoStore = errors.New("tag store not configured")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("service closed")
)

// Deps are the collaborators a Service can be given instead of building its
// own. All fields are optional.
type Deps struct {
	Store  *store.DB
	Trash  ops.Trasher
	Events *events.Broadcaster
}

// Service owns one executor, one undo history and one search loop.
type Service struct {
	cfg    config.Config
	events *events.Broadcaster
	exec   *ops.Executor
	undo   *undo.Manager
	store  *store.DB
	thumbs *thumbs.Cache
	sizes  *fs.SizeCalculator
	system *fs.System

	gen       atomic.Int64
	sendMu    sync.RWMutex // guards RequestChan against Close
	closed    bool
	waitMu    sync.Mutex
	waiters   map[int64]chan fs.Response
	done      chan struct{}
	closeOnce sync.Once

	watchMu sync.Mutex
	watcher *DirectoryWatcher
}

// New builds a Service from cfg and starts its search loop. Call Close to
// stop it.
func New(cfg config.Config, deps Deps) *Service {
	b := deps.Events
	if b == nil {
		b = events.NewBroadcaster()
	}

	topts := fs.TraverseOptions{
		MaxResults:     cfg.Search.MaxResults,
		MaxConcurrency: cfg.Search.MaxConcurrency,
		Timeout:        cfg.Search.SearchTimeout(),
		Label:          "search",
	}
	atopts := topts
	atopts.MaxDepth = cfg.Search.AdvancedMaxDepth
	atopts.Label = "advanced"

	sizes := fs.NewSizeCalculator(cfg.FolderSize.MaxDepth)
	exec := ops.NewExecutor(ops.Options{Trash: deps.Trash, Events: b})

	s := &Service{
		cfg:    cfg,
		events: b,
		exec:   exec,
		undo:   undo.NewManager(exec, undo.Config{Capacity: cfg.Undo.Capacity, Events: b}),
		store:  deps.Store,
		thumbs: thumbs.New(thumbs.Config{
			MaxEntries: cfg.Thumbnails.MaxEntries,
			MaxPixels:  cfg.Thumbnails.MaxPixels,
			CacheDir:   cfg.Thumbnails.CacheDir,
		}),
		sizes: sizes,
		system: fs.NewSystem(fs.SystemConfig{
			Traverse: topts,
			Advanced: fs.AdvancedConfig{
				Traverse:        atopts,
				TextExtensions:  cfg.Search.TextExtensions,
				ContentMaxBytes: cfg.Search.ContentMaxBytes,
			},
			Sizes: sizes,
		}),
		waiters: make(map[int64]chan fs.Response),
		done:    make(chan struct{}),
	}

	go s.system.Start()
	go s.dispatch()

	logging.Info("service started",
		zap.Int("maxResults", topts.MaxResults),
		zap.Duration("timeout", topts.Timeout),
		zap.Bool("store", s.store != nil))
	return s
}

// Events returns the broadcaster every component publishes to.
func (s *Service) Events() *events.Broadcaster { return s.events }

// Executor returns the file operation executor.
func (s *Service) Executor() *ops.Executor { return s.exec }

// Close stops the search loop and the watcher and closes the store.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.done)
		close(s.system.RequestChan)
		s.sendMu.Unlock()

		s.watchMu.Lock()
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		s.watchMu.Unlock()

		if s.store != nil {
			err = errors.Join(err, s.store.Close())
		}
		logging.Info("service stopped")
	})
	return err
}

// dispatch routes System responses to the callers waiting on them and turns
// progress updates into events.
func (s *Service) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case resp := <-s.system.ResponseChan:
			s.waitMu.Lock()
			ch, ok := s.waiters[resp.Gen]
			delete(s.waiters, resp.Gen)
			s.waitMu.Unlock()
			if !ok {
				debug.Log(debug.APP, "dropping stale response op=%s gen=%d", resp.Op, resp.Gen)
				continue
			}
			ch <- resp
		case p := <-s.system.ProgressChan:
			s.events.Publish(events.Event{
				Type:    events.SearchProgress,
				Gen:     p.Gen,
				Dirs:    p.DirsListed,
				Results: p.Results,
			})
		}
	}
}

// request sends req to the System and waits for its response. When ctx
// ends first, a search is cancelled and its late response dropped.
func (s *Service) request(ctx context.Context, req fs.Request) (fs.Response, error) {
	req.Gen = s.gen.Add(1)
	ch := make(chan fs.Response, 1)

	s.waitMu.Lock()
	s.waiters[req.Gen] = ch
	s.waitMu.Unlock()

	forget := func() {
		s.waitMu.Lock()
		delete(s.waiters, req.Gen)
		s.waitMu.Unlock()
	}

	if err := s.send(ctx, req); err != nil {
		forget()
		return fs.Response{}, err
	}

	select {
	case resp := <-ch:
		return resp, resp.Err
	case <-s.done:
		forget()
		return fs.Response{}, ErrClosed
	case <-ctx.Done():
		forget()
		if req.Op == fs.SearchDir || req.Op == fs.AdvancedSearchDir {
			s.cancel(req.Gen)
		}
		return fs.Response{}, ctx.Err()
	}
}

func (s *Service) send(ctx context.Context, req fs.Request) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.system.RequestChan <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) cancel(gen int64) {
	if err := s.send(context.Background(), fs.Request{Op: fs.CancelSearch, Gen: gen}); err != nil {
		debug.Log(debug.APP, "cancel gen %d: %v", gen, err)
	}
}

// CancelSearch stops whichever search is running and reports whether one
// was. Its caller receives a result marked cancelled.
func (s *Service) CancelSearch() bool {
	if !s.system.SearchActive() {
		return false
	}
	s.cancel(0)
	return true
}
