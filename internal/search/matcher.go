package search

import (
	"os"
	"strings"
	"time"
)

// Match types reported on advanced search hits.
const (
	MatchName    = "name"
	MatchContent = "content"
)

// DefaultContentMaxBytes caps the size of files read for content matching.
const DefaultContentMaxBytes = 100 * 1024

// Matcher evaluates candidates against compiled Filters. It is safe for
// concurrent use once built.
type Matcher struct {
	filters         *Filters
	textExts        map[string]bool
	contentMaxBytes int64
	contentFunc     func(path string) (string, error)
}

// NewMatcher creates a Matcher for f. textExts lists the extensions eligible
// for content search; contentMaxBytes <= 0 selects the default cap.
func NewMatcher(f *Filters, textExts []string, contentMaxBytes int64) *Matcher {
	if contentMaxBytes <= 0 {
		contentMaxBytes = DefaultContentMaxBytes
	}
	exts := make(map[string]bool, len(textExts))
	for _, e := range textExts {
		exts[strings.ToLower(e)] = true
	}
	return &Matcher{
		filters:         f,
		textExts:        exts,
		contentMaxBytes: contentMaxBytes,
		contentFunc: func(path string) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// MatchName tests the entry name against the regex, or the lowercase
// substring when no regex compiled.
func (m *Matcher) MatchName(name string) bool {
	if m.filters.Regex != nil {
		return m.filters.Regex.MatchString(name)
	}
	return strings.Contains(strings.ToLower(name), m.filters.Name)
}

// MatchContent reads a file and tests its contents. Files outside the text
// allow-list, at or above the size cap, or unreadable never match.
func (m *Matcher) MatchContent(path, ext string, size int64) bool {
	if !m.filters.Content || !m.textExts[ext] || size >= m.contentMaxBytes {
		return false
	}
	content, err := m.contentFunc(path)
	if err != nil {
		return false
	}
	if m.filters.Regex != nil {
		return m.filters.Regex.MatchString(content)
	}
	return strings.Contains(strings.ToLower(content), m.filters.Name)
}

// MatchDate checks the inclusive modified-time range.
func (m *Matcher) MatchDate(mod time.Time) bool {
	if f := m.filters.DateFrom; f != nil && mod.Before(*f) {
		return false
	}
	if t := m.filters.DateTo; t != nil && mod.After(*t) {
		return false
	}
	return true
}

// MatchSize checks the inclusive size range. Directories always pass.
func (m *Matcher) MatchSize(isDir bool, size int64) bool {
	if isDir {
		return true
	}
	if lo := m.filters.SizeMin; lo != nil && size < *lo {
		return false
	}
	if hi := m.filters.SizeMax; hi != nil && size > *hi {
		return false
	}
	return true
}

// MatchKind checks the kind filter and the optional extension filter.
func (m *Matcher) MatchKind(isDir bool, ext string) bool {
	if !m.filters.Kind.Accepts(KindOf(isDir, ext)) {
		return false
	}
	return m.filters.Extension == "" || (!isDir && ext == m.filters.Extension)
}

// Match applies every predicate to one stat'd entry and returns whether it is
// a hit and how it matched: (name OR content) AND date AND size.
// Content is only tried for files whose name did not already match.
func (m *Matcher) Match(path, name, ext string, info os.FileInfo) (bool, string) {
	if !m.MatchKind(info.IsDir(), ext) {
		return false, ""
	}
	if m.filters.HasDateRange() && !m.MatchDate(info.ModTime()) {
		return false, ""
	}
	if m.filters.HasSizeRange() && !m.MatchSize(info.IsDir(), info.Size()) {
		return false, ""
	}
	if m.MatchName(name) {
		return true, MatchName
	}
	if !info.IsDir() && m.MatchContent(path, ext, info.Size()) {
		return true, MatchContent
	}
	return false, ""
}
