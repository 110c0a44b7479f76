package fs

import (
	"context"
	"strings"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/search"
)

// Search finds entries under root whose name contains query
// (case-insensitive) and whose kind passes the filter. It always recurses
// into directories and only stats entries that already matched.
func Search(ctx context.Context, root, query string, kind search.Kind, opts TraverseOptions) TraverseResult[Entry] {
	if opts.Label == "" {
		opts.Label = "search"
	}
	name := strings.ToLower(query)
	debug.Log(debug.SEARCH, "Search: root=%q query=%q kind=%s", root, query, kind)

	visit := func(c Candidate) (Entry, Verdict) {
		v := Verdict{Descend: c.IsDir}
		if !strings.Contains(strings.ToLower(c.Name), name) {
			return Entry{}, v
		}
		ext := ""
		if !c.IsDir {
			ext = extOf(c.Name)
		}
		if !kind.Accepts(search.KindOf(c.IsDir, ext)) {
			return Entry{}, v
		}
		e, err := ReadEntry(c.Path)
		if err != nil {
			debug.Log(debug.FS_ENTRY, "Search: stat %q: %v", c.Path, err)
			return Entry{}, v
		}
		v.Match = true
		return e, v
	}

	return Traverse(ctx, []string{root}, opts, visit)
}
