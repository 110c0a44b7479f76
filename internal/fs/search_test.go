package fs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/justyntemme/solstice/internal/search"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearch(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root,
		"Reports/q1-report.pdf",
		"Reports/archive/report-2019.zip",
		"photos/report.png",
		"notes.txt",
		"report/",
	)

	testCases := []struct {
		name  string
		query string
		kind  search.Kind
		want  []string
	}{
		{"all kinds, case-insensitive", "REPORT", search.KindAll, []string{"Reports", "q1-report.pdf", "report", "report-2019.zip", "report.png"}},
		{"documents only", "report", search.KindDocument, []string{"q1-report.pdf"}},
		{"folders only", "report", search.KindFolder, []string{"Reports", "report"}},
		{"images only", "report", search.KindImage, []string{"report.png"}},
		{"no match", "missing", search.KindAll, []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Search(context.Background(), root, tc.query, tc.kind, TraverseOptions{})
			got := names(res.Items)
			if !equalStrings(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
			if res.Outcome != Complete {
				t.Errorf("expected Complete, got %s", res.Outcome)
			}
		})
	}
}

func TestSearch_EntriesAreStatted(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "data.BIN"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	res := Search(context.Background(), root, "data", search.KindAll, TraverseOptions{})
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res.Items))
	}
	e := res.Items[0]
	if e.Size != 2048 || e.Ext != ".bin" || e.ModTime.IsZero() {
		t.Errorf("unexpected entry %+v", e)
	}
}

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func int64p(n int64) *int64 { return &n }

func TestAdvancedSearch_SizeFilter(t *testing.T) {
	root := t.TempDir()
	writeSized(t, filepath.Join(root, "five.dat"), 5*1024)
	writeSized(t, filepath.Join(root, "fifteen.dat"), 15*1024)
	writeSized(t, filepath.Join(root, "twentyfive.dat"), 25*1024)

	opts := search.Options{Root: root, Query: "", SizeMin: int64p(10240), SizeMax: int64p(20480)}
	res, err := AdvancedSearch(context.Background(), opts, AdvancedConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "fifteen.dat" {
		t.Fatalf("expected only fifteen.dat, got %+v", res.Items)
	}
}

func TestAdvancedSearch_Content(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "src/")
	files := map[string]string{
		"src/main.go":    "package main // TODO: needle",
		"src/needle.txt": "nothing here",
		"src/data.bin":   "needle in a binary",
		"src/other.md":   "no match",
	}
	for p, content := range files {
		if err := os.WriteFile(filepath.Join(root, p), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	opts := search.Options{Root: root, Query: "needle", SearchContent: true}
	res, err := AdvancedSearch(context.Background(), opts, AdvancedConfig{TextExtensions: []string{".go", ".txt", ".md"}})
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	for _, h := range res.Items {
		got[h.Name] = h.MatchType
	}
	want := map[string]string{"main.go": search.MatchContent, "needle.txt": search.MatchName}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got match type %q, want %q", k, got[k], v)
		}
	}
}

func TestAdvancedSearch_KindMismatchStillDescends(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "projects/plan/plan.pdf", "projects/plan/plan.png")

	opts := search.Options{Root: root, Query: "plan", Kind: search.KindDocument}
	res, err := AdvancedSearch(context.Background(), opts, AdvancedConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "plan.pdf" {
		t.Fatalf("expected plan.pdf only, got %+v", res.Items)
	}
}

func TestAdvancedSearch_DepthBound(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root,
		"l1/l2/l3/l4/l5/hit6.txt",
		"l1/l2/l3/l4/l5/l6/hit7.txt",
	)

	opts := search.Options{Root: root, Query: "hit"}
	res, err := AdvancedSearch(context.Background(), opts, AdvancedConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "hit6.txt" {
		t.Fatalf("expected only hit6.txt within depth, got %+v", res.Items)
	}
}

func TestAdvancedSearch_DateRange(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "old.log")
	recent := filepath.Join(root, "recent.log")
	writeSized(t, old, 1)
	writeSized(t, recent, 1)
	past := time.Date(2020, 6, 1, 12, 0, 0, 0, time.Local)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	opts := search.Options{Root: root, Query: ".log", DateFrom: "2020-06-01", DateTo: "2020-06-01"}
	res, err := AdvancedSearch(context.Background(), opts, AdvancedConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "old.log" {
		t.Fatalf("expected old.log only, got %+v", res.Items)
	}
}

func TestAdvancedSearch_InvalidDate(t *testing.T) {
	_, err := AdvancedSearch(context.Background(), search.Options{Root: t.TempDir(), DateFrom: "soon"}, AdvancedConfig{})
	if err == nil {
		t.Error("expected error for invalid date")
	}
}
