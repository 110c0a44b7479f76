// Package rename computes batch renames. Every strategy maps a base name
// (the file name without its extension) to a new base name; the extension
// is re-attached unchanged.
package rename

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Strategy transforms the base name of the index-th file in a batch. ext is
// the file's extension including the dot; it is informational only.
type Strategy interface {
	Apply(base, ext string, index int) string
}

// validator is implemented by strategies that can be misconfigured.
type validator interface {
	validate() error
}

// FindReplace replaces every occurrence of Find.
type FindReplace struct {
	Find          string `json:"find"`
	Replace       string `json:"replace"`
	Regex         bool   `json:"useRegex"`
	CaseSensitive bool   `json:"caseSensitive"`

	re *regexp.Regexp
}

func (f *FindReplace) compile() error {
	if f.re != nil || f.Find == "" {
		return nil
	}
	pattern := f.Find
	if !f.Regex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if !f.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("find pattern: %w", err)
	}
	f.re = re
	return nil
}

func (f *FindReplace) validate() error { return f.compile() }

func (f *FindReplace) Apply(base, _ string, _ int) string {
	if f.Find == "" || f.compile() != nil {
		return base
	}
	if f.Regex {
		return f.re.ReplaceAllString(base, f.Replace)
	}
	return f.re.ReplaceAllLiteralString(base, f.Replace)
}

// Position places the number produced by Numbering.
type Position string

const (
	Prefix  Position = "prefix"
	Suffix  Position = "suffix"
	Replace Position = "replace"
)

// Numbering adds Start + index*Step, zero-padded to Padding digits.
type Numbering struct {
	Start     int      `json:"start"`
	Step      int      `json:"step"`
	Padding   int      `json:"padding"`
	Position  Position `json:"position"`
	Separator string   `json:"separator"`
}

func (n Numbering) validate() error {
	switch n.Position {
	case Prefix, Suffix, Replace, "":
		return nil
	}
	return fmt.Errorf("unknown numbering position %q", n.Position)
}

func (n Numbering) Apply(base, _ string, index int) string {
	num := pad(n.Start+index*n.Step, n.Padding)
	switch n.Position {
	case Prefix:
		return num + n.Separator + base
	case Replace:
		return num
	default:
		return base + n.Separator + num
	}
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + pad(-n, width)
	}
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// CaseMode selects a case transform.
type CaseMode string

const (
	Upper  CaseMode = "upper"
	Lower  CaseMode = "lower"
	Title  CaseMode = "title"
	Camel  CaseMode = "camel"
	Pascal CaseMode = "pascal"
	Snake  CaseMode = "snake"
	Kebab  CaseMode = "kebab"
)

type CaseTransform struct {
	Mode CaseMode `json:"mode"`
}

func (c CaseTransform) validate() error {
	switch c.Mode {
	case Upper, Lower, Title, Camel, Pascal, Snake, Kebab:
		return nil
	}
	return fmt.Errorf("unknown case mode %q", c.Mode)
}

func (c CaseTransform) Apply(base, _ string, _ int) string {
	lower := cases.Lower(language.Und)
	title := cases.Title(language.Und)
	switch c.Mode {
	case Upper:
		return cases.Upper(language.Und).String(base)
	case Lower:
		return lower.String(base)
	case Title:
		return title.String(base)
	case Camel, Pascal:
		words := splitWords(base)
		var b strings.Builder
		for i, w := range words {
			if i == 0 && c.Mode == Camel {
				b.WriteString(lower.String(w))
				continue
			}
			b.WriteString(title.String(w))
		}
		return b.String()
	case Snake:
		return lower.String(strings.Join(splitWords(base), "_"))
	case Kebab:
		return lower.String(strings.Join(splitWords(base), "-"))
	}
	return base
}

// splitWords breaks s at separators and at lower-to-upper case changes.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && len(cur) > 0 &&
			(unicode.IsLower(cur[len(cur)-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(cur[len(cur)-1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// Affix adds a prefix and a suffix.
type Affix struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

func (a Affix) Apply(base, _ string, _ int) string {
	return a.Prefix + base + a.Suffix
}

// Remove deletes every occurrence of Text, literally or as a pattern.
type Remove struct {
	Text  string `json:"text"`
	Regex bool   `json:"useRegex"`

	re *regexp.Regexp
}

func (r *Remove) validate() error {
	if !r.Regex || r.Text == "" || r.re != nil {
		return nil
	}
	re, err := regexp.Compile(r.Text)
	if err != nil {
		return fmt.Errorf("remove pattern: %w", err)
	}
	r.re = re
	return nil
}

func (r *Remove) Apply(base, _ string, _ int) string {
	if r.Text == "" {
		return base
	}
	if !r.Regex {
		return strings.ReplaceAll(base, r.Text, "")
	}
	if r.validate() != nil {
		return base
	}
	return r.re.ReplaceAllString(base, "")
}

// Template substitutes {name}, {counter}, {ext} and {date} in Pattern.
// {counter} is Start + index, zero-padded to Padding digits; {ext} is the
// extension without its dot; {date} is Date as YYYY-MM-DD.
type Template struct {
	Pattern string    `json:"pattern"`
	Start   int       `json:"start"`
	Padding int       `json:"padding"`
	Date    time.Time `json:"date"`
}

func (t Template) Apply(base, ext string, index int) string {
	date := t.Date
	if date.IsZero() {
		date = time.Now()
	}
	r := strings.NewReplacer(
		"{name}", base,
		"{counter}", pad(t.Start+index, t.Padding),
		"{ext}", strings.TrimPrefix(ext, "."),
		"{date}", date.Format("2006-01-02"),
	)
	return r.Replace(t.Pattern)
}

// Chain applies strategies in order.
type Chain []Strategy

func (c Chain) validate() error {
	for _, s := range c {
		if v, ok := s.(validator); ok {
			if err := v.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c Chain) Apply(base, ext string, index int) string {
	for _, s := range c {
		base = s.Apply(base, ext, index)
	}
	return base
}
