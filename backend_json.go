package fileset

import (
	"github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg/oj"
)

// JSONBackend reads and writes JSON files. With Singleton set, a file's
// root is one object; otherwise it is an array of objects.
type JSONBackend struct {
	Singleton bool
}

var _ Backend = JSONBackend{}

func (b JSONBackend) Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error) {
	data, err := readAll(fs, path)
	if err != nil {
		return nil, err
	}
	content, err := oj.Parse(data)
	if err != nil {
		return nil, decodeErr(path, err)
	}
	return coerceDecoded(path, content, pathProps, constraints, b.Singleton)
}

func (b JSONBackend) Encode(fs billy.Filesystem, path string, records []Props) error {
	content, err := coerceForEncode(path, records, b.Singleton)
	if err != nil {
		return err
	}
	data, err := oj.Marshal(toPlain(content), 2)
	if err != nil {
		return conversionErrf("encode %q: %v", path, err)
	}
	return writeAll(fs, path, data)
}

// toPlain lowers Props values back to plain maps/slices for the encoders.
func toPlain(v any) any {
	switch t := v.(type) {
	case Props:
		return map[string]any(t)
	case []Props:
		out := make([]any, len(t))
		for i, p := range t {
			out[i] = map[string]any(p)
		}
		return out
	}
	return v
}
