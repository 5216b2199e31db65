// Package record defines the log record consumed by the logsink writer.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a record's severity or kind.
// The set is closed; Categories lists every member.
type Category int32

const (
	Info Category = iota
	Success
	Event
	Warning
	Error
	Failure
	Critical
)

var categoryNames = [...]string{
	Info:     "Info",
	Success:  "Success",
	Event:    "Event",
	Warning:  "Warning",
	Error:    "Error",
	Failure:  "Failure",
	Critical: "Critical",
}

// Categories returns every member of the enumeration in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryNames))
	for i := range categoryNames {
		out[i] = Category(i)
	}
	return out
}

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int32(c))
	}
	return categoryNames[c]
}

// ParseCategory returns the category with the given name, ignoring case.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if strings.EqualFold(n, name) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown category %d", int32(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Item is an arbitrary named payload attached to a record.
type Item struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// Record is one log event. Empty strings and a zero Timestamp stand for
// absent fields. Records are not modified once handed to a writer.
type Record struct {
	ID          string    `json:"id,omitempty"`
	Source      string    `json:"source,omitempty"`
	Context     string    `json:"context,omitempty"`
	Category    Category  `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Items       []Item    `json:"items,omitempty"`
}

// UTC returns the timestamp in its canonical UTC form.
func (r *Record) UTC() time.Time {
	return r.Timestamp.UTC()
}
