package rename

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/justyntemme/solstice/internal/ops"
	"github.com/justyntemme/solstice/internal/undo"
)

// ErrConflict blocks a commit whose new names collide.
var ErrConflict = errors.New("rename conflict")

// Item is one planned rename.
type Item struct {
	OldPath string `json:"oldPath"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
	Changed bool   `json:"changed"`
}

// Conflict groups the items that would end up with the same name, compared
// without regard to case or Unicode normalization.
type Conflict struct {
	Name   string   `json:"name"`
	Paths  []string `json:"paths"`
	Reason string   `json:"reason"`
}

// Preview is the full outcome of a batch rename, computed before anything
// on disk changes.
type Preview struct {
	Items     []Item     `json:"items"`
	Conflicts []Conflict `json:"conflicts"`
}

// OK reports whether the preview can be committed.
func (p Preview) OK() bool { return len(p.Conflicts) == 0 }

// Plan applies s to every path and checks the resulting names for
// collisions within each directory, and against files already on disk that
// are not vacated earlier in the same batch.
func Plan(paths []string, s Strategy) (Preview, error) {
	if v, ok := s.(validator); ok {
		if err := v.validate(); err != nil {
			return Preview{}, err
		}
	}

	var p Preview
	fold := cases.Fold()
	groups := map[string]int{}

	for i, path := range paths {
		name := filepath.Base(path)
		base, ext := splitExt(name)
		newName := s.Apply(base, ext, i) + ext

		p.Items = append(p.Items, Item{
			OldPath: path,
			OldName: name,
			NewName: newName,
			Changed: newName != name,
		})

		if reason := invalidName(newName); reason != "" {
			p.Conflicts = append(p.Conflicts, Conflict{Name: newName, Paths: []string{path}, Reason: reason})
			continue
		}

		key := filepath.Dir(path) + "\x00" + fold.String(norm.NFC.String(newName))
		if at, ok := groups[key]; ok {
			p.Conflicts[at].Paths = append(p.Conflicts[at].Paths, path)
			continue
		}
		groups[key] = len(p.Conflicts)
		p.Conflicts = append(p.Conflicts, Conflict{Name: newName, Paths: []string{path}, Reason: "duplicate name"})
	}

	// Keep only groups that actually collide
	conflicts := p.Conflicts[:0]
	for _, c := range p.Conflicts {
		if len(c.Paths) > 1 || c.Reason != "duplicate name" {
			conflicts = append(conflicts, c)
		}
	}
	p.Conflicts = conflicts
	p.Conflicts = append(p.Conflicts, diskConflicts(p.Items, fold)...)
	return p, nil
}

// diskConflicts reports changed items whose new name is taken on disk. A
// target that is the old name of an item renamed earlier in the batch is
// free by the time its turn comes; a case-only rename of the same file is
// not a collision. Targets held by unchanged batch items are already
// reported as duplicates.
func diskConflicts(items []Item, fold cases.Caser) []Conflict {
	key := func(path, name string) string {
		return filepath.Dir(path) + "\x00" + fold.String(norm.NFC.String(name))
	}
	owner := make(map[string]int, len(items))
	for i, it := range items {
		owner[key(it.OldPath, it.OldName)] = i
	}

	var out []Conflict
	for i, it := range items {
		if !it.Changed {
			continue
		}
		if j, ok := owner[key(it.OldPath, it.NewName)]; ok {
			if j == i || (j < i && items[j].Changed) || !items[j].Changed {
				continue
			}
		}
		target := filepath.Join(filepath.Dir(it.OldPath), it.NewName)
		info, err := os.Lstat(target)
		if err != nil {
			continue
		}
		if self, err := os.Lstat(it.OldPath); err == nil && os.SameFile(info, self) {
			continue
		}
		out = append(out, Conflict{Name: it.NewName, Paths: []string{it.OldPath}, Reason: "exists on disk"})
	}
	return out
}

// splitExt splits name into base and extension. A leading-dot name such as
// ".bashrc" is all base.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

func invalidName(name string) string {
	switch {
	case name == "", name == ".", name == "..":
		return "empty name"
	case strings.ContainsRune(name, '/'), strings.ContainsRune(name, filepath.Separator):
		return "name contains a path separator"
	case strings.ContainsRune(name, 0):
		return "name contains NUL"
	}
	return ""
}

// Renamer applies a batch of renames.
type Renamer interface {
	BatchRename(renames []ops.RenameOperation) ops.BatchResult
}

// Commit applies a conflict-free preview. A preview with any conflict is
// rejected with ErrConflict before anything is renamed. The returned action
// covers the renames that succeeded.
func Commit(ctx context.Context, p Preview, r Renamer) (undo.BatchRename, ops.BatchResult, error) {
	if !p.OK() {
		return undo.BatchRename{}, ops.BatchResult{}, fmt.Errorf("%w: %d conflicting name(s)", ErrConflict, len(p.Conflicts))
	}
	if err := ctx.Err(); err != nil {
		return undo.BatchRename{}, ops.BatchResult{}, err
	}

	var renames []ops.RenameOperation
	for _, it := range p.Items {
		if it.Changed {
			renames = append(renames, ops.RenameOperation{OldPath: it.OldPath, NewName: it.NewName})
		}
	}
	if len(renames) == 0 {
		return undo.BatchRename{}, ops.BatchResult{}, nil
	}

	res := r.BatchRename(renames)
	pairs := make([]undo.PathPair, 0, len(res.Renamed))
	for _, t := range res.Renamed {
		pairs = append(pairs, undo.PathPair{OldPath: t.Source, NewPath: t.Target})
	}
	return undo.NewBatchRename(pairs), res, nil
}
