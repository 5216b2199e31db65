package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDateFormat is used by date placeholders that carry no format modifier.
const DefaultDateFormat = "dd-MMM-yyyy"

type dateTokenKind uint8

const (
	tokLiteral dateTokenKind = iota
	tokYear
	tokMonth
	tokDay
	tokHour24
	tokHour12
	tokMinute
	tokSecond
	tokFraction
	tokFractionTrim
	tokAMPM
	tokOffset
	tokZone
)

type dateToken struct {
	kind dateTokenKind
	n    int
	lit  string
}

// dateLayout is a compiled custom date format in the
// "dd-MMM-yyyy hh:mm:ss" notation used by log destination templates.
type dateLayout []dateToken

// compileDateFormat converts a custom date format into a token list.
// The returned offset points at the offending character on failure.
func compileDateFormat(format string) (dateLayout, int, error) {
	var (
		out dateLayout
		lit strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, dateToken{kind: tokLiteral, lit: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(format); {
		c := format[i]
		switch c {
		case '\'', '"':
			end := strings.IndexByte(format[i+1:], c)
			if end < 0 {
				return nil, i, fmt.Errorf("unterminated quoted literal in date format")
			}
			lit.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		case '\\':
			if i+1 >= len(format) {
				return nil, i, fmt.Errorf("dangling escape in date format")
			}
			lit.WriteByte(format[i+1])
			i += 2
			continue
		case '%':
			i++
			continue
		}

		n := 1
		for i+n < len(format) && format[i+n] == c {
			n++
		}

		var tok dateToken
		switch c {
		case 'y':
			tok = dateToken{kind: tokYear, n: n}
		case 'M':
			tok = dateToken{kind: tokMonth, n: n}
		case 'd':
			tok = dateToken{kind: tokDay, n: n}
		case 'H':
			tok = dateToken{kind: tokHour24, n: min(n, 2)}
		case 'h':
			tok = dateToken{kind: tokHour12, n: min(n, 2)}
		case 'm':
			tok = dateToken{kind: tokMinute, n: min(n, 2)}
		case 's':
			tok = dateToken{kind: tokSecond, n: min(n, 2)}
		case 'f', 'F':
			if n > 7 {
				return nil, i, fmt.Errorf("fraction specifier longer than 7 digits")
			}
			tok = dateToken{kind: tokFraction, n: n}
			if c == 'F' {
				tok.kind = tokFractionTrim
			}
		case 't':
			tok = dateToken{kind: tokAMPM, n: min(n, 2)}
		case 'z':
			tok = dateToken{kind: tokOffset, n: min(n, 3)}
		case 'K':
			tok = dateToken{kind: tokZone}
			n = 1
		default:
			lit.WriteByte(c)
			i++
			continue
		}
		flush()
		out = append(out, tok)
		i += n
	}
	flush()
	return out, 0, nil
}

// appendTo formats t into b.
func (l dateLayout) appendTo(b []byte, t time.Time) []byte {
	for _, tok := range l {
		switch tok.kind {
		case tokLiteral:
			b = append(b, tok.lit...)
		case tokYear:
			switch {
			case tok.n == 1:
				b = strconv.AppendInt(b, int64(t.Year()%100), 10)
			case tok.n == 2:
				b = appendPadded(b, t.Year()%100, 2)
			default:
				b = appendPadded(b, t.Year(), tok.n)
			}
		case tokMonth:
			switch tok.n {
			case 1, 2:
				b = appendPadded(b, int(t.Month()), tok.n)
			case 3:
				b = append(b, t.Month().String()[:3]...)
			default:
				b = append(b, t.Month().String()...)
			}
		case tokDay:
			switch tok.n {
			case 1, 2:
				b = appendPadded(b, t.Day(), tok.n)
			case 3:
				b = append(b, t.Weekday().String()[:3]...)
			default:
				b = append(b, t.Weekday().String()...)
			}
		case tokHour24:
			b = appendPadded(b, t.Hour(), tok.n)
		case tokHour12:
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			b = appendPadded(b, h, tok.n)
		case tokMinute:
			b = appendPadded(b, t.Minute(), tok.n)
		case tokSecond:
			b = appendPadded(b, t.Second(), tok.n)
		case tokFraction, tokFractionTrim:
			digits := fmt.Sprintf("%09d", t.Nanosecond())[:tok.n]
			if tok.kind == tokFractionTrim {
				digits = strings.TrimRight(digits, "0")
			}
			b = append(b, digits...)
		case tokAMPM:
			mark := "AM"
			if t.Hour() >= 12 {
				mark = "PM"
			}
			b = append(b, mark[:tok.n]...)
		case tokOffset:
			b = appendOffset(b, t, tok.n)
		case tokZone:
			if t.Location() == time.UTC {
				b = append(b, 'Z')
			} else {
				b = appendOffset(b, t, 3)
			}
		}
	}
	return b
}

func appendOffset(b []byte, t time.Time, n int) []byte {
	_, secs := t.Zone()
	sign := byte('+')
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	b = append(b, sign)
	hours, minutes := secs/3600, (secs%3600)/60
	switch n {
	case 1:
		b = strconv.AppendInt(b, int64(hours), 10)
	case 2:
		b = appendPadded(b, hours, 2)
	default:
		b = appendPadded(b, hours, 2)
		b = append(b, ':')
		b = appendPadded(b, minutes, 2)
	}
	return b
}

func appendPadded(b []byte, v, width int) []byte {
	s := strconv.Itoa(v)
	for i := len(s); i < width; i++ {
		b = append(b, '0')
	}
	return append(b, s...)
}
