package fmtpath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrTemplateSyntax is the sentinel wrapped by every TemplateSyntaxError.
var ErrTemplateSyntax = errors.New("unsupported path template syntax")

// TemplateSyntaxError reports a malformed template or an unsupported format
// specifier at compile time.
type TemplateSyntaxError struct {
	Template string
	Msg      string
}

func (e *TemplateSyntaxError) Error() string {
	return fmt.Sprintf("template %q: %s (supported: {name}, {name:d}, {name:g}, {name:%%strftime} with %s)", e.Template, e.Msg, supportedDirectives())
}

func (e *TemplateSyntaxError) Unwrap() error { return ErrTemplateSyntax }

func syntaxError(template, msg string) error {
	return &TemplateSyntaxError{Template: template, Msg: msg}
}

// strftime directive table. The subset is deliberately small: numeric,
// fixed-width directives that can be matched back out of a path.
type directive struct {
	width int
	part  int
}

const (
	partYear = iota
	partYear2
	partMonth
	partDay
	partHour
	partMinute
	partSecond
	partYearDay
	numParts
)

var directives = map[byte]directive{
	'Y': {4, partYear},
	'y': {2, partYear2},
	'm': {2, partMonth},
	'd': {2, partDay},
	'H': {2, partHour},
	'M': {2, partMinute},
	'S': {2, partSecond},
	'j': {3, partYearDay},
}

func supportedDirectives() string {
	return "%Y %y %m %d %H %M %S %j"
}

type timeToken struct {
	literal string // set when width == 0
	dir     directive
}

type strftimeLayout struct {
	spec   string
	tokens []timeToken
}

func compileStrftime(spec string) (*strftimeLayout, error) {
	l := &strftimeLayout{spec: spec}
	for i := 0; i < len(spec); {
		if spec[i] != '%' {
			j := i
			for j < len(spec) && spec[j] != '%' {
				j++
			}
			l.tokens = append(l.tokens, timeToken{literal: spec[i:j]})
			i = j
			continue
		}
		if i+1 >= len(spec) {
			return nil, fmt.Errorf("dangling %% in datetime spec %q", spec)
		}
		c := spec[i+1]
		if c == '%' {
			l.tokens = append(l.tokens, timeToken{literal: "%"})
			i += 2
			continue
		}
		d, ok := directives[c]
		if !ok {
			return nil, fmt.Errorf("unsupported strftime directive %%%c in %q (supported: %s)", c, spec, supportedDirectives())
		}
		l.tokens = append(l.tokens, timeToken{dir: d})
		i += 2
	}
	return l, nil
}

func (l *strftimeLayout) pattern() string {
	var b strings.Builder
	for _, tok := range l.tokens {
		if tok.dir.width == 0 {
			b.WriteString(regexp.QuoteMeta(tok.literal))
			continue
		}
		fmt.Fprintf(&b, `\d{%d}`, tok.dir.width)
	}
	return b.String()
}

func (l *strftimeLayout) format(t time.Time) string {
	var b strings.Builder
	for _, tok := range l.tokens {
		if tok.dir.width == 0 {
			b.WriteString(tok.literal)
			continue
		}
		var v int
		switch tok.dir.part {
		case partYear:
			v = t.Year()
		case partYear2:
			v = t.Year() % 100
		case partMonth:
			v = int(t.Month())
		case partDay:
			v = t.Day()
		case partHour:
			v = t.Hour()
		case partMinute:
			v = t.Minute()
		case partSecond:
			v = t.Second()
		case partYearDay:
			v = t.YearDay()
		}
		fmt.Fprintf(&b, "%0*d", tok.dir.width, v)
	}
	return b.String()
}

// parseInto extracts the layout's components out of raw (which is known to
// match pattern()) and merges them into parts. Conflicting values for a
// component already supplied by another occurrence are an error.
func (l *strftimeLayout) parseInto(parts *timeParts, raw string) error {
	pos := 0
	for _, tok := range l.tokens {
		if tok.dir.width == 0 {
			pos += len(tok.literal)
			continue
		}
		field := raw[pos : pos+tok.dir.width]
		pos += tok.dir.width
		v, err := strconv.Atoi(field)
		if err != nil {
			return fmt.Errorf("datetime spec %q: %w", l.spec, err)
		}
		if err := parts.set(tok.dir.part, v); err != nil {
			return fmt.Errorf("datetime spec %q: %w", l.spec, err)
		}
	}
	return nil
}

// timeParts accumulates datetime components across placeholder occurrences,
// e.g. one occurrence supplying the date and another the time.
type timeParts struct {
	set_ [numParts]bool
	val  [numParts]int
}

var partNames = [numParts]string{"year", "year", "month", "day", "hour", "minute", "second", "day-of-year"}

func (p *timeParts) set(part, v int) error {
	if p.set_[part] && p.val[part] != v {
		return fmt.Errorf("conflicting %s values %d and %d", partNames[part], p.val[part], v)
	}
	p.set_[part] = true
	p.val[part] = v
	return nil
}

// resolve builds the final time.Time. Missing components default to
// strptime's defaults (year 1900, January 1st, midnight). Times are UTC:
// path text carries no zone information.
func (p *timeParts) resolve() (time.Time, error) {
	year := 1900
	if p.set_[partYear] {
		year = p.val[partYear]
		if p.set_[partYear2] && p.val[partYear2] != year%100 {
			return time.Time{}, fmt.Errorf("conflicting year values %d and %%y=%02d", year, p.val[partYear2])
		}
	} else if p.set_[partYear2] {
		// strptime century pivot: 69-99 -> 1900s, 00-68 -> 2000s
		y2 := p.val[partYear2]
		if y2 >= 69 {
			year = 1900 + y2
		} else {
			year = 2000 + y2
		}
	}

	month, day := 1, 1
	if p.set_[partMonth] {
		month = p.val[partMonth]
	}
	if p.set_[partDay] {
		day = p.val[partDay]
	}
	if p.set_[partYearDay] {
		derived := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, p.val[partYearDay]-1)
		if p.set_[partMonth] && int(derived.Month()) != month {
			return time.Time{}, fmt.Errorf("day-of-year %d conflicts with month %d", p.val[partYearDay], month)
		}
		if p.set_[partDay] && derived.Day() != day {
			return time.Time{}, fmt.Errorf("day-of-year %d conflicts with day %d", p.val[partYearDay], day)
		}
		month, day = int(derived.Month()), derived.Day()
	}

	t := time.Date(year, time.Month(month), day, p.val[partHour], p.val[partMinute], p.val[partSecond], 0, time.UTC)
	if p.set_[partMonth] && int(t.Month()) != month || p.set_[partDay] && t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid calendar date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}
