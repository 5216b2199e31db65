// Package template compiles destination-name templates such as
// "$Source_$LogType_$LogDate(yyyy-MM)" and resolves them against log records.
//
// A placeholder is a '$' immediately followed by a known keyword. Textual
// placeholders accept a truncation modifier, "$Context(4)"; date placeholders
// accept a custom date format, "$LogDate(dd.MM.yyyy)". Anything else,
// including unknown keywords and empty parentheses, is copied verbatim.
//
// A compiled Template is immutable and may be resolved from many goroutines.
package template

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
)

type fieldKind uint8

const (
	textField fieldKind = iota
	dateField
)

type field struct {
	keyword string
	kind    fieldKind
	text    func(*record.Record) string
	date    func(*record.Record) time.Time
}

type segment struct {
	literal  string
	field    *field
	truncate int
	layout   dateLayout
}

// Template is a compiled destination-name template.
type Template struct {
	text     string
	segments []segment
	sizeHint int
}

// SyntaxError reports a malformed placeholder found while compiling.
type SyntaxError struct {
	Template string
	Offset   int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %q: offset %d: %s", e.Template, e.Offset, e.Msg)
}

// Unwrap makes SyntaxError match errs.ErrTemplateSyntax.
func (e *SyntaxError) Unwrap() error { return errs.ErrTemplateSyntax }

func builtinFields() []*field {
	category := func(r *record.Record) string { return r.Category.String() }
	timestamp := func(r *record.Record) time.Time { return r.Timestamp }
	return []*field{
		{keyword: "Source", kind: textField, text: func(r *record.Record) string { return r.Source }},
		{keyword: "Context", kind: textField, text: func(r *record.Record) string { return r.Context }},
		{keyword: "LogType", kind: textField, text: category},
		{keyword: "Category", kind: textField, text: category},
		{keyword: "LogDate", kind: dateField, date: timestamp},
		{keyword: "Timestamp", kind: dateField, date: timestamp},
	}
}

// Compile parses text into a Template.
func Compile(text string, opts ...Option) (*Template, error) {
	if text == "" {
		return nil, errs.InvalidArgument("template text is empty")
	}

	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.err != nil {
		return nil, o.err
	}

	defaultLayout, off, err := compileDateFormat(o.dateFormat)
	if err != nil {
		return nil, &SyntaxError{Template: o.dateFormat, Offset: off, Msg: "default date format: " + err.Error()}
	}

	fields := o.fieldList()
	t := &Template{text: text}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			t.sizeHint += lit.Len()
			lit.Reset()
		}
	}
	fail := func(offset int, format string, args ...any) (*Template, error) {
		return nil, &SyntaxError{Template: text, Offset: offset, Msg: fmt.Sprintf(format, args...)}
	}

	for i := 0; i < len(text); {
		if text[i] != '$' {
			lit.WriteByte(text[i])
			i++
			continue
		}
		f := matchField(fields, text[i+1:])
		if f == nil {
			lit.WriteByte('$')
			i++
			continue
		}

		flush()
		seg := segment{field: f}
		j := i + 1 + len(f.keyword)
		if j+1 < len(text) && text[j] == '(' {
			switch f.kind {
			case textField:
				if isDigit(text[j+1]) {
					k := j + 1
					for k < len(text) && isDigit(text[k]) {
						k++
					}
					if k >= len(text) || text[k] != ')' {
						return fail(k, "expected ')' after truncation length of $%s", f.keyword)
					}
					n, err := strconv.Atoi(text[j+1 : k])
					if err != nil || n <= 0 {
						return fail(j+1, "invalid truncation length %q for $%s", text[j+1:k], f.keyword)
					}
					seg.truncate = n
					j = k + 1
				}
			case dateField:
				if text[j+1] != ')' {
					k, err := closingParen(text, j+1)
					if err != nil {
						return fail(k, "%v for $%s", err, f.keyword)
					}
					layout, off, err := compileDateFormat(text[j+1 : k])
					if err != nil {
						return fail(j+1+off, "%v", err)
					}
					seg.layout = layout
					j = k + 1
				}
			}
		}
		if f.kind == dateField && seg.layout == nil {
			seg.layout = defaultLayout
		}
		t.segments = append(t.segments, seg)
		t.sizeHint += 16
		i = j
	}
	flush()
	return t, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string, opts ...Option) *Template {
	t, err := Compile(text, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template text the Template was compiled from.
func (t *Template) String() string { return t.text }

// Resolve renders the template for r. Absent fields, and every field of a
// nil record, render as the empty string.
func (t *Template) Resolve(r *record.Record) string {
	b := make([]byte, 0, t.sizeHint)
	for i := range t.segments {
		seg := &t.segments[i]
		if seg.field == nil {
			b = append(b, seg.literal...)
			continue
		}
		if r == nil {
			continue
		}
		switch seg.field.kind {
		case textField:
			b = append(b, truncate(seg.field.text(r), seg.truncate)...)
		case dateField:
			ts := seg.field.date(r)
			if ts.IsZero() {
				continue
			}
			b = seg.layout.appendTo(b, ts.UTC())
		}
	}
	return string(b)
}

// matchField returns the longest keyword that prefixes s.
func matchField(fields []*field, s string) *field {
	for _, f := range fields {
		if strings.HasPrefix(s, f.keyword) {
			return f
		}
	}
	return nil
}

// closingParen finds the ')' closing a date format that starts at from,
// skipping quoted literals and escaped characters.
func closingParen(text string, from int) (int, error) {
	for i := from; i < len(text); i++ {
		switch c := text[i]; c {
		case ')':
			return i, nil
		case '\\':
			i++
		case '\'', '"':
			end := strings.IndexByte(text[i+1:], c)
			if end < 0 {
				return i, fmt.Errorf("unterminated quoted literal")
			}
			i += end + 1
		}
	}
	return len(text), fmt.Errorf("unterminated date format")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func validKeyword(kw string) bool {
	if kw == "" {
		return false
	}
	for _, r := range kw {
		if r >= utf8.RuneSelf || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func sortByKeywordLength(fields []*field) {
	sort.SliceStable(fields, func(i, j int) bool {
		return len(fields[i].keyword) > len(fields[j].keyword)
	})
}
