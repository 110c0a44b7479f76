package fs

import (
	"context"
	"os"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/search"
)

// DefaultAdvancedMaxDepth is how many directory levels an advanced search lists.
const DefaultAdvancedMaxDepth = 6

// SearchHit is an advanced search result.
type SearchHit struct {
	Entry
	MatchType string `json:"matchType"` // "name" or "content"
}

// AdvancedConfig carries the content-search bounds.
type AdvancedConfig struct {
	Traverse        TraverseOptions
	TextExtensions  []string
	ContentMaxBytes int64
}

// AdvancedSearch runs the composed name/content/date/size/kind predicates
// over the traversal engine, depth-bounded to Traverse.MaxDepth
// (DefaultAdvancedMaxDepth when zero). Entries failing the kind filter are
// not emitted but their directories are still descended. The only error is
// an invalid filter (an unparseable date).
func AdvancedSearch(ctx context.Context, opts search.Options, cfg AdvancedConfig) (TraverseResult[SearchHit], error) {
	filters, err := search.NewFilters(opts)
	if err != nil {
		return TraverseResult[SearchHit]{}, err
	}
	matcher := search.NewMatcher(filters, cfg.TextExtensions, cfg.ContentMaxBytes)
	return advancedSearch(ctx, opts.Root, matcher, cfg.Traverse), nil
}

func advancedSearch(ctx context.Context, root string, m *search.Matcher, topts TraverseOptions) TraverseResult[SearchHit] {
	if topts.MaxDepth <= 0 {
		topts.MaxDepth = DefaultAdvancedMaxDepth
	}
	if topts.Label == "" {
		topts.Label = "advanced"
	}
	debug.Log(debug.SEARCH, "AdvancedSearch: root=%q maxDepth=%d", root, topts.MaxDepth)

	visit := func(c Candidate) (SearchHit, Verdict) {
		info, err := os.Stat(c.Path)
		if err != nil {
			debug.Log(debug.FS_ENTRY, "AdvancedSearch: stat %q: %v", c.Path, err)
			return SearchHit{}, Verdict{}
		}
		v := Verdict{Descend: c.IsDir}
		ext := ""
		if !info.IsDir() {
			ext = extOf(c.Name)
		}
		ok, how := m.Match(c.Path, c.Name, ext, info)
		if !ok {
			return SearchHit{}, v
		}
		v.Match = true
		return SearchHit{Entry: newEntry(c.Path, info), MatchType: how}, v
	}

	return Traverse(ctx, []string{root}, topts, visit)
}
