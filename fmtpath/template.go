// Package fmtpath compiles path templates containing named placeholders
// into bidirectional matchers: the same template both extracts typed values
// from a concrete path and renders concrete or glob paths from values.
//
// Supported placeholder forms:
//
//	{name}      untyped string, non-greedy match
//	{name:d}    integer, optional sign
//	{name:g}    float, optional sign and exponent
//	{name:%Y…}  datetime, restricted strftime subset (see strftime.go)
//
// A placeholder name may appear more than once; all occurrences must agree
// on value when a path is parsed.
package fmtpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the value type a placeholder extracts.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindTime
)

const (
	regexInt    = `[\-\+]?\d+`
	regexFloat  = `[\-\+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][\-\+]?\d+)?`
	regexString = `.*?`
)

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type placeholder struct {
	name   string
	kind   Kind
	group  string // unique capture group name, one per occurrence
	layout *strftimeLayout
}

type segment struct {
	literal string
	ph      *placeholder
}

// Template is a compiled path template. It is immutable after Compile.
type Template struct {
	src      string
	segments []segment
	re       *regexp.Regexp
	kinds    map[string]Kind
	names    []string // first-appearance order
}

// Compile parses a path template. It returns a TemplateSyntaxError (wrapping
// ErrTemplateSyntax) for unsupported format specifiers or malformed
// placeholders.
func Compile(src string) (*Template, error) {
	t := &Template{
		src:   src,
		kinds: map[string]Kind{},
	}

	var pattern strings.Builder
	pattern.WriteString(`\A`)
	groupSeq := 0

	rest := src
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if err := checkLiteral(src, rest); err != nil {
				return nil, err
			}
			lit := unescapeBraces(rest)
			t.segments = append(t.segments, segment{literal: lit})
			pattern.WriteString(regexp.QuoteMeta(lit))
			break
		}
		if err := checkLiteral(src, rest[:open]); err != nil {
			return nil, err
		}
		if open+1 < len(rest) && rest[open+1] == '{' {
			lit := unescapeBraces(rest[:open+2])
			t.segments = append(t.segments, segment{literal: lit})
			pattern.WriteString(regexp.QuoteMeta(lit))
			rest = rest[open+2:]
			continue
		}
		if open > 0 {
			lit := unescapeBraces(rest[:open])
			t.segments = append(t.segments, segment{literal: lit})
			pattern.WriteString(regexp.QuoteMeta(lit))
		}
		rest = rest[open+1:]
		close := strings.IndexByte(rest, '}')
		if close < 0 {
			return nil, syntaxError(src, "unterminated placeholder")
		}
		field := rest[:close]
		rest = rest[close+1:]

		name, spec := field, ""
		if i := strings.IndexByte(field, ':'); i >= 0 {
			name, spec = field[:i], field[i+1:]
		}
		if strings.ContainsAny(name, "!.[") {
			return nil, syntaxError(src, fmt.Sprintf("conversions and attribute access are not supported: %q", field))
		}
		if !nameRe.MatchString(name) {
			return nil, syntaxError(src, fmt.Sprintf("invalid placeholder name %q", name))
		}

		ph := &placeholder{name: name, group: fmt.Sprintf("g%d", groupSeq)}
		groupSeq++

		var sub string
		switch {
		case spec == "":
			ph.kind = KindString
			sub = regexString
		case spec == "d":
			ph.kind = KindInt
			sub = regexInt
		case spec == "g":
			ph.kind = KindFloat
			sub = regexFloat
		case strings.HasPrefix(spec, "%"):
			if strings.Contains(spec, "/") {
				return nil, syntaxError(src, fmt.Sprintf("'/' is not allowed inside a placeholder spec (%q); split the placeholder across path segments instead", field))
			}
			layout, err := compileStrftime(spec)
			if err != nil {
				return nil, syntaxError(src, err.Error())
			}
			ph.kind = KindTime
			ph.layout = layout
			sub = layout.pattern()
		default:
			return nil, syntaxError(src, fmt.Sprintf("unsupported format spec %q", spec))
		}

		if prev, ok := t.kinds[name]; ok {
			if prev != ph.kind {
				return nil, syntaxError(src, fmt.Sprintf("placeholder %q occurs with conflicting format specs", name))
			}
		} else {
			t.kinds[name] = ph.kind
			t.names = append(t.names, name)
		}

		t.segments = append(t.segments, segment{ph: ph})
		fmt.Fprintf(&pattern, `(?P<%s>%s)`, ph.group, sub)
	}
	pattern.WriteString(`\z`)

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, syntaxError(src, err.Error())
	}
	t.re = re
	return t, nil
}

// MustCompile is like Compile but panics on error. Intended for templates
// known at compile time.
func MustCompile(src string) *Template {
	t, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the original template text.
func (t *Template) String() string { return t.src }

// FieldNames returns the placeholder names in first-appearance order.
func (t *Template) FieldNames() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// HasField reports whether name is a placeholder of the template.
func (t *Template) HasField(name string) bool {
	_, ok := t.kinds[name]
	return ok
}

// FieldKind returns the value kind of the named placeholder.
func (t *Template) FieldKind(name string) (Kind, bool) {
	k, ok := t.kinds[name]
	return k, ok
}

// Parse matches path against the template and extracts the typed placeholder
// values. Occurrences of the same name must agree: scalars must be
// identical, datetime occurrences must supply non-conflicting components.
func (t *Template) Parse(path string) (map[string]any, error) {
	m := t.re.FindStringSubmatch(path)
	if m == nil {
		return nil, fmt.Errorf("path %q does not match template %q", path, t.src)
	}

	scalars := map[string]any{}
	times := map[string]*timeParts{}
	for _, seg := range t.segments {
		if seg.ph == nil {
			continue
		}
		ph := seg.ph
		raw := m[t.re.SubexpIndex(ph.group)]

		if ph.kind == KindTime {
			parts, ok := times[ph.name]
			if !ok {
				parts = &timeParts{}
				times[ph.name] = parts
			}
			if err := ph.layout.parseInto(parts, raw); err != nil {
				return nil, fmt.Errorf("path %q, placeholder %q: %w", path, ph.name, err)
			}
			continue
		}

		var v any
		var err error
		switch ph.kind {
		case KindInt:
			v, err = strconv.ParseInt(raw, 10, 64)
		case KindFloat:
			v, err = strconv.ParseFloat(raw, 64)
		default:
			v = raw
		}
		if err != nil {
			return nil, fmt.Errorf("path %q, placeholder %q: %w", path, ph.name, err)
		}
		if prev, ok := scalars[ph.name]; ok && prev != v {
			return nil, fmt.Errorf("path %q: placeholder %q matched inconsistent values %v and %v", path, ph.name, prev, v)
		}
		scalars[ph.name] = v
	}

	out := make(map[string]any, len(scalars)+len(times))
	for k, v := range scalars {
		out[k] = v
	}
	for k, parts := range times {
		tv, err := parts.resolve()
		if err != nil {
			return nil, fmt.Errorf("path %q, placeholder %q: %w", path, k, err)
		}
		out[k] = tv
	}
	return out, nil
}

// Render substitutes values into the template and returns the concrete
// path. Every placeholder name must be present in values.
func (t *Template) Render(values map[string]any) (string, error) {
	var missing []string
	for _, name := range t.names {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: required placeholders undefined: %s", t.src, strings.Join(missing, ", "))
	}
	return t.render(values, false)
}

// RenderGlob is like Render, but placeholders absent from values become the
// wildcard "*", producing a filesystem glob pattern for discovery.
func (t *Template) RenderGlob(values map[string]any) (string, error) {
	return t.render(values, true)
}

func (t *Template) render(values map[string]any, glob bool) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.ph == nil {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := values[seg.ph.name]
		if !ok {
			if !glob {
				return "", fmt.Errorf("template %q: placeholder %q undefined", t.src, seg.ph.name)
			}
			b.WriteString("*")
			continue
		}
		s, err := formatValue(seg.ph, v)
		if err != nil {
			return "", fmt.Errorf("template %q: %w", t.src, err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func formatValue(ph *placeholder, v any) (string, error) {
	switch ph.kind {
	case KindInt:
		i, ok := asInt64(v)
		if !ok {
			return "", fmt.Errorf("placeholder %q requires an integer, got %T", ph.name, v)
		}
		return strconv.FormatInt(i, 10), nil
	case KindFloat:
		switch f := v.(type) {
		case float64:
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		case float32:
			return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
		default:
			if i, ok := asInt64(v); ok {
				return strconv.FormatFloat(float64(i), 'g', -1, 64), nil
			}
			return "", fmt.Errorf("placeholder %q requires a float, got %T", ph.name, v)
		}
	case KindTime:
		tv, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("placeholder %q requires a time.Time, got %T", ph.name, v)
		}
		return ph.layout.format(tv), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func asInt64(v any) (int64, bool) {
	switch i := v.(type) {
	case int:
		return int64(i), true
	case int64:
		return i, true
	case int32:
		return int64(i), true
	case int16:
		return int64(i), true
	case int8:
		return int64(i), true
	case uint:
		return int64(i), true
	case uint64:
		return int64(i), true
	case uint32:
		return int64(i), true
	}
	return 0, false
}

// checkLiteral rejects a single '}' in a literal chunk; only the escaped
// form "}}" is legal outside a placeholder.
func checkLiteral(src, lit string) error {
	for i := 0; i < len(lit); i++ {
		if lit[i] != '}' {
			continue
		}
		if i+1 < len(lit) && lit[i+1] == '}' {
			i++
			continue
		}
		return syntaxError(src, "single '}' without matching '{'")
	}
	return nil
}

func unescapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{{", "{")
	return strings.ReplaceAll(s, "}}", "}")
}
