package search

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Options is the request shape of an advanced search.
type Options struct {
	Root          string `json:"searchPath"`
	Query         string `json:"query"`
	Kind          Kind   `json:"fileType"`
	Extension     string `json:"extension,omitempty"`
	SearchContent bool   `json:"searchContent"`
	UseRegex      bool   `json:"useRegex"`
	DateFrom      string `json:"dateFrom,omitempty"`
	DateTo        string `json:"dateTo,omitempty"`
	SizeMin       *int64 `json:"sizeMin,omitempty"`
	SizeMax       *int64 `json:"sizeMax,omitempty"`
}

// Filters is the compiled, immutable form of Options. Build it with
// NewFilters and share it freely between goroutines.
type Filters struct {
	Name      string // lowercased substring
	Kind      Kind
	Extension string
	Content   bool
	Regex     *regexp.Regexp // nil unless UseRegex compiled
	DateFrom  *time.Time
	DateTo    *time.Time
	SizeMin   *int64
	SizeMax   *int64
}

// NewFilters compiles opts. An invalid regex silently degrades to
// substring matching. An unparseable date is an error.
func NewFilters(opts Options) (*Filters, error) {
	f := &Filters{
		Name:    strings.ToLower(opts.Query),
		Kind:    ParseKind(string(opts.Kind)),
		Content: opts.SearchContent,
		SizeMin: opts.SizeMin,
		SizeMax: opts.SizeMax,
	}
	if opts.Extension != "" {
		ext := strings.ToLower(opts.Extension)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.Extension = ext
	}
	if opts.UseRegex && opts.Query != "" {
		if re, err := regexp.Compile("(?i)" + opts.Query); err == nil {
			f.Regex = re
		}
	}
	if opts.DateFrom != "" {
		t, _, err := parseDate(opts.DateFrom)
		if err != nil {
			return nil, fmt.Errorf("dateFrom: %w", err)
		}
		f.DateFrom = &t
	}
	if opts.DateTo != "" {
		t, day, err := parseDate(opts.DateTo)
		if err != nil {
			return nil, fmt.Errorf("dateTo: %w", err)
		}
		if day {
			// A bare date includes the whole day.
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		f.DateTo = &t
	}
	return f, nil
}

// HasDateRange reports whether either date bound is set.
func (f *Filters) HasDateRange() bool {
	return f.DateFrom != nil || f.DateTo != nil
}

// HasSizeRange reports whether either size bound is set.
func (f *Filters) HasSizeRange() bool {
	return f.SizeMin != nil || f.SizeMax != nil
}
