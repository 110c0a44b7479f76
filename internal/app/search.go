package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/fs"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/search"
)

// SearchResult is what one search returned.
type SearchResult struct {
	Results   []fs.SearchHit `json:"results"`
	Outcome   string         `json:"outcome"`
	Cancelled bool           `json:"cancelled"`
}

// ListDirectory returns the children of path.
func (s *Service) ListDirectory(path string) ([]fs.Entry, error) {
	return fs.ListDirectory(path)
}

// Navigate lists path through the search loop, cancelling any running
// search, and makes path the only watched directory.
func (s *Service) Navigate(ctx context.Context, path string) ([]fs.Entry, error) {
	resp, err := s.request(ctx, fs.Request{Op: fs.FetchDir, Path: path})
	if err != nil {
		return nil, err
	}
	s.watchMu.Lock()
	w := s.watcher
	s.watchMu.Unlock()
	if w != nil {
		w.UnwatchAll()
		if err := w.Watch(path); err != nil {
			logging.Warn("navigate: watch failed", zap.String("path", path), zap.Error(err))
		}
	}
	return resp.Entries, nil
}

// Search runs a name search under root. A query carrying directives other
// than plain words (ext:, size:, contents:, a glob, ...) runs as an advanced
// search instead. A newer search cancels this one.
func (s *Service) Search(ctx context.Context, root, query string, kind search.Kind) (SearchResult, error) {
	q := search.Parse(query)
	if q.IsEmpty() {
		return SearchResult{Results: []fs.SearchHit{}, Outcome: fs.Complete.String()}, nil
	}
	if needsAdvanced(q) {
		opts, err := q.Options(root)
		if err != nil {
			return SearchResult{}, err
		}
		if opts.Kind == search.KindAll {
			opts.Kind = kind
		}
		debug.Log(debug.APP, "search %q routed to advanced: %+v", query, opts)
		return s.AdvancedSearch(ctx, opts)
	}

	words := make([]string, 0, len(q.Directives))
	for _, d := range q.Directives {
		words = append(words, d.Value)
	}
	resp, err := s.request(ctx, fs.Request{Op: fs.SearchDir, Path: root, Query: strings.Join(words, " "), Kind: kind})
	if err != nil {
		return SearchResult{}, err
	}
	hits := make([]fs.SearchHit, len(resp.Entries))
	for i, e := range resp.Entries {
		hits[i] = fs.SearchHit{Entry: e, MatchType: search.MatchName}
	}
	return SearchResult{Results: hits, Outcome: resp.Outcome.String(), Cancelled: resp.Cancelled}, nil
}

// AdvancedSearch runs the composed filters in opts.
func (s *Service) AdvancedSearch(ctx context.Context, opts search.Options) (SearchResult, error) {
	resp, err := s.request(ctx, fs.Request{Op: fs.AdvancedSearchDir, Path: opts.Root, Advanced: &opts})
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Results: resp.Hits, Outcome: resp.Outcome.String(), Cancelled: resp.Cancelled}, nil
}

func needsAdvanced(q *search.Query) bool {
	if q.HasContentSearch() {
		return true
	}
	for _, d := range q.Directives {
		if d.Type != search.DirFilename || strings.Contains(d.Value, "*") {
			return true
		}
	}
	return false
}

// FolderStats returns the size, file count and folder count under path.
func (s *Service) FolderStats(ctx context.Context, path string) (fs.FolderStats, error) {
	resp, err := s.request(ctx, fs.Request{Op: fs.FolderSize, Path: path})
	if err != nil {
		return fs.FolderStats{}, err
	}
	return resp.Stats, nil
}

// FolderSize returns the byte total under path. Concurrent calls for the
// same folder share one walk.
func (s *Service) FolderSize(ctx context.Context, path string) (int64, error) {
	return s.sizes.Size(ctx, path)
}

// Drives lists mounted volumes.
func (s *Service) Drives() []fs.Drive {
	return fs.ListDrives()
}

// SpecialFolders maps well-known folder names to existing paths.
func (s *Service) SpecialFolders() map[string]string {
	return fs.SpecialFolders()
}

// Watch adds dir to the watched set, starting the watcher on first use.
// Changes are published as dir-changed events.
func (s *Service) Watch(dir string) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		w, err := NewDirectoryWatcher(s.cfg.Watcher.DebounceMs, s.events)
		if err != nil {
			return err
		}
		s.watcher = w
	}
	return s.watcher.Watch(dir)
}

// Unwatch removes dir from the watched set.
func (s *Service) Unwatch(dir string) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Unwatch(dir)
}
