package fileset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// cloneProps returns a one-level copy of p.
func cloneProps(p Props) Props {
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cloneRecords(records []Props) []Props {
	out := make([]Props, len(records))
	for i, r := range records {
		out[i] = cloneProps(r)
	}
	return out
}

func sortedKeys(p Props) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// valuesEqual compares two scalar values, treating the integer types as one
// family and int/float of equal magnitude as equal. Decoded files and path
// templates produce different concrete numeric types for the same logical
// value (ojg yields int64, yaml.v3 yields int), so strict == would make
// constraints silently miss.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ia, aok := toInt64(a); aok {
		if ib, bok := toInt64(b); bok {
			return ia == ib
		}
		if fb, bok := toFloat64(b); bok {
			return float64(ia) == fb
		}
		return false
	}
	if fa, aok := toFloat64(a); aok {
		if ib, bok := toInt64(b); bok {
			return fa == float64(ib)
		}
		if fb, bok := toFloat64(b); bok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func toInt64(v any) (int64, bool) {
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
	case uint16:
		return int64(i), true
	case uint8:
		return int64(i), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	return 0, false
}

// valueToken renders a scalar as a canonical, type-tagged string so values
// can key maps. Integer types collapse to one token family; a float that is
// not integral keeps its own tag so 1 and 1.5 never collide.
func valueToken(v any) string {
	if v == nil {
		return "n:"
	}
	if i, ok := toInt64(v); ok {
		return "i:" + strconv.FormatInt(i, 10)
	}
	if f, ok := toFloat64(v); ok {
		if f == float64(int64(f)) {
			return "i:" + strconv.FormatInt(int64(f), 10)
		}
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	switch t := v.(type) {
	case string:
		return "s:" + t
	case bool:
		return "b:" + strconv.FormatBool(t)
	case time.Time:
		return "t:" + t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("x:%v", v)
	}
}

// propsToken renders the values of keys in p as one canonical string, used
// to group records per target file and to key cache entries.
func propsToken(p Props, keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		if v, ok := p[k]; ok {
			b.WriteString(valueToken(v))
		}
		b.WriteByte(';')
	}
	return b.String()
}
