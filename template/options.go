package template

import (
	"time"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
)

// Option customizes template compilation
type Option func(*options)

type options struct {
	dateFormat string
	fields     map[string]*field
	err        error
}

func newOptions() *options {
	o := &options{
		dateFormat: DefaultDateFormat,
		fields:     make(map[string]*field),
	}
	for _, f := range builtinFields() {
		o.fields[f.keyword] = f
	}
	return o
}

func (o *options) fieldList() []*field {
	list := make([]*field, 0, len(o.fields))
	for _, f := range o.fields {
		list = append(list, f)
	}
	sortByKeywordLength(list)
	return list
}

func (o *options) setErr(err error) {
	if o.err == nil {
		o.err = err
	}
}

// WithDefaultDateFormat sets the format used by date placeholders without a modifier
func WithDefaultDateFormat(format string) Option {
	return func(o *options) {
		if format == "" {
			o.setErr(errs.InvalidArgument("default date format is empty"))
			return
		}
		o.dateFormat = format
	}
}

// WithField registers a textual placeholder resolved by fn.
// Registering a built-in keyword replaces it
func WithField(keyword string, fn func(*record.Record) string) Option {
	return func(o *options) {
		if !validKeyword(keyword) || fn == nil {
			o.setErr(errs.InvalidArgument("invalid placeholder %q", keyword))
			return
		}
		o.fields[keyword] = &field{keyword: keyword, kind: textField, text: fn}
	}
}

// WithDateField registers a date placeholder resolved by fn
func WithDateField(keyword string, fn func(*record.Record) time.Time) Option {
	return func(o *options) {
		if !validKeyword(keyword) || fn == nil {
			o.setErr(errs.InvalidArgument("invalid placeholder %q", keyword))
			return
		}
		o.fields[keyword] = &field{keyword: keyword, kind: dateField, date: fn}
	}
}
