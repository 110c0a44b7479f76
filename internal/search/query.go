package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Directive types
type DirectiveType int

const (
	DirFilename DirectiveType = iota
	DirContents
	DirExt
	DirKind
	DirSize
	DirModified
	DirRegex
)

// Comparison operators for size/date
type Operator int

const (
	OpNone Operator = iota
	OpGreater
	OpLess
	OpGreaterEq
	OpLessEq
	OpEquals
)

// Directive represents a single search directive
type Directive struct {
	Type     DirectiveType
	Value    string
	Operator Operator
}

// Query holds parsed search directives
type Query struct {
	Directives []Directive
	Raw        string
}

// Parse parses a search string into directives
// Examples:
//   - "foo" -> filename:foo
//   - "contents:hello" -> search file contents for "hello"
//   - "ext:go" -> files with .go extension
//   - "kind:image" -> images only
//   - "size:>1MB" -> files larger than 1MB
//   - "modified:>=2024-01-01" -> files modified on or after Jan 1, 2024
//   - "regex:^IMG_\d+" -> regex name match
func Parse(input string) *Query {
	q := &Query{Raw: input}
	input = strings.TrimSpace(input)
	if input == "" {
		return q
	}

	for _, part := range splitRespectingQuotes(input) {
		q.Directives = append(q.Directives, parseDirective(part))
	}
	return q
}

// IsEmpty returns true if query has no directives
func (q *Query) IsEmpty() bool {
	return len(q.Directives) == 0
}

// HasContentSearch returns true if query includes content search
func (q *Query) HasContentSearch() bool {
	for _, d := range q.Directives {
		if d.Type == DirContents {
			return true
		}
	}
	return false
}

// Options converts the query into advanced search options rooted at root.
// Name and content share one pattern, so the last text directive wins.
// Size and date operators become inclusive bounds.
func (q *Query) Options(root string) (Options, error) {
	opts := Options{Root: root, Kind: KindAll}
	var names []string

	for _, d := range q.Directives {
		switch d.Type {
		case DirFilename:
			if strings.Contains(d.Value, "*") {
				opts.Query = globToRegex(d.Value)
				opts.UseRegex = true
				continue
			}
			names = append(names, d.Value)
		case DirRegex:
			opts.Query = d.Value
			opts.UseRegex = true
		case DirContents:
			opts.Query = d.Value
			opts.SearchContent = true
		case DirExt:
			opts.Extension = d.Value
		case DirKind:
			opts.Kind = ParseKind(d.Value)
		case DirSize:
			n, err := ParseSize(d.Value)
			if err != nil {
				return opts, err
			}
			lo, hi := sizeBounds(n, d.Operator)
			if lo != nil {
				opts.SizeMin = lo
			}
			if hi != nil {
				opts.SizeMax = hi
			}
		case DirModified:
			from, to := dateBounds(d.Value, d.Operator)
			if from != "" {
				opts.DateFrom = from
			}
			if to != "" {
				opts.DateTo = to
			}
		}
	}
	if opts.Query == "" && len(names) > 0 {
		opts.Query = strings.Join(names, " ")
	}
	return opts, nil
}

func splitRespectingQuotes(s string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, r := range s {
		switch {
		case (r == '"' || r == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = r
		case r == quoteChar && inQuotes:
			inQuotes = false
			quoteChar = 0
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

func parseDirective(s string) Directive {
	if idx := strings.Index(s, ":"); idx > 0 {
		directive := strings.ToLower(s[:idx])
		value := strings.Trim(s[idx+1:], "\"'")

		switch directive {
		case "filename", "name", "file":
			return Directive{Type: DirFilename, Value: value}

		case "contents", "content", "text", "body":
			return Directive{Type: DirContents, Value: value}

		case "ext", "extension":
			if !strings.HasPrefix(value, ".") {
				value = "." + value
			}
			return Directive{Type: DirExt, Value: strings.ToLower(value)}

		case "kind", "type":
			return Directive{Type: DirKind, Value: strings.ToLower(value)}

		case "regex", "re":
			return Directive{Type: DirRegex, Value: value}

		case "size":
			op, num := parseOperator(value)
			return Directive{Type: DirSize, Value: num, Operator: op}

		case "modified", "date", "mtime":
			op, date := parseOperator(value)
			return Directive{Type: DirModified, Value: date, Operator: op}
		}
	}

	// Default to filename search
	return Directive{Type: DirFilename, Value: s}
}

func parseOperator(s string) (Operator, string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGreaterEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, "<="):
		return OpLessEq, strings.TrimSpace(s[2:])
	case strings.HasPrefix(s, ">"):
		return OpGreater, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "<"):
		return OpLess, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "="):
		return OpEquals, strings.TrimSpace(s[1:])
	default:
		return OpEquals, s
	}
}

func sizeBounds(n int64, op Operator) (lo, hi *int64) {
	switch op {
	case OpGreater:
		v := n + 1
		return &v, nil
	case OpGreaterEq:
		return &n, nil
	case OpLess:
		v := n - 1
		return nil, &v
	case OpLessEq:
		return nil, &n
	default:
		a, b := n, n
		return &a, &b
	}
}

// dateBounds keeps the raw date text; NewFilters widens day-precision
// upper bounds to the end of that day.
func dateBounds(s string, op Operator) (from, to string) {
	switch op {
	case OpGreater, OpGreaterEq:
		return s, ""
	case OpLess, OpLessEq:
		return "", s
	default:
		return s, s
	}
}

// ParseSize converts size strings like "1KB", "10MB", "1GB" to bytes.
// Units are binary (1KB = 1024 bytes).
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := int64(1)
	numStr := s

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		numStr = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(n * float64(multiplier)), nil
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
}

// ParseDate parses date strings like "2024-01-01", "2024-01", "today",
// "yesterday" or RFC 3339 timestamps, in local time.
func ParseDate(s string) (time.Time, error) {
	t, _, err := parseDate(s)
	return t, err
}

// parseDate also reports whether the value only has day precision.
func parseDate(s string) (time.Time, bool, error) {
	raw := strings.TrimSpace(s)
	s = strings.ToLower(raw)
	now := time.Now()

	switch s {
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true, nil
	case "yesterday":
		y, m, d := now.AddDate(0, 0, -1).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true, nil
	case "week":
		return now.AddDate(0, 0, -7), false, nil
	case "month":
		return now.AddDate(0, -1, 0), false, nil
	case "year":
		return now.AddDate(-1, 0, 0), false, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q", raw)
}

// globToRegex turns a * wildcard pattern into an anchored regex.
func globToRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}
