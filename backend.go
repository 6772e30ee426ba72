package fileset

import (
	"io"
	"path"
	"reflect"

	"github.com/go-git/go-billy/v5"
)

// coerceDecoded validates the root shape of a decoded file and applies the
// equality constraints not already satisfied by the path properties.
// Singleton files hold one mapping; non-singleton files hold a list of
// mappings.
func coerceDecoded(p string, content any, pathProps Props, constraints Constraints, singleton bool) ([]Props, error) {
	var rows []Props
	if singleton {
		m, ok := asPropsMap(content)
		if !ok {
			return nil, decodeErrf(p, "expected a mapping, got %T", content)
		}
		rows = []Props{m}
	} else {
		list, ok := asPropsList(content)
		if !ok {
			return nil, decodeErrf(p, "expected a list of mappings, got %T", content)
		}
		rows = list
	}

	return filterRecords(rows, pathProps, constraints), nil
}

// filterRecords applies the equality constraints not already satisfied by
// the path properties. A row lacking a constrained key is kept; the
// constraint simply does not apply to it.
func filterRecords(rows []Props, pathProps Props, constraints Constraints) []Props {
	result := make([]Props, 0, len(rows))
	for _, row := range rows {
		keep := true
		for ck, cv := range constraints {
			if _, fromPath := pathProps[ck]; fromPath {
				continue // already satisfied by the path placeholders
			}
			rv, ok := row[ck]
			if !ok {
				continue
			}
			if !valuesEqual(rv, cv) {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, row)
		}
	}
	return result
}

func asPropsMap(v any) (Props, bool) {
	switch m := v.(type) {
	case Props:
		return m, true
	case map[string]any:
		return Props(m), true
	}
	return nil, false
}

func asPropsList(v any) ([]Props, bool) {
	switch l := v.(type) {
	case []Props:
		return l, true
	case []map[string]any:
		out := make([]Props, len(l))
		for i, m := range l {
			out[i] = Props(m)
		}
		return out, true
	case []any:
		out := make([]Props, len(l))
		for i, item := range l {
			m, ok := asPropsMap(item)
			if !ok {
				return nil, false
			}
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// coerceForEncode turns a write batch into the file's root value. A
// singleton file accepts several records only when they are all identical.
func coerceForEncode(p string, records []Props, singleton bool) (any, error) {
	if !singleton {
		return records, nil
	}
	switch len(records) {
	case 0:
		return nil, conversionErrf("no records to save to singleton file %q", p)
	case 1:
		return records[0], nil
	default:
		first := records[0]
		for _, rec := range records[1:] {
			if !reflect.DeepEqual(first, rec) {
				return nil, conversionErrf("%d differing records for singleton file %q", len(records), p)
			}
		}
		return first, nil
	}
}

func readAll(fs billy.Filesystem, p string) ([]byte, error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeAll(fs billy.Filesystem, p string, data []byte) error {
	if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := fs.Create(p)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
