package fileset

import (
	"github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v3"
)

// YAMLBackend reads and writes YAML files, with the same singleton
// convention as JSONBackend.
type YAMLBackend struct {
	Singleton bool
}

var _ Backend = YAMLBackend{}

func (b YAMLBackend) Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error) {
	data, err := readAll(fs, path)
	if err != nil {
		return nil, err
	}
	var content any
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, decodeErr(path, err)
	}
	return coerceDecoded(path, content, pathProps, constraints, b.Singleton)
}

func (b YAMLBackend) Encode(fs billy.Filesystem, path string, records []Props) error {
	content, err := coerceForEncode(path, records, b.Singleton)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(toPlain(content))
	if err != nil {
		return conversionErrf("encode %q: %v", path, err)
	}
	return writeAll(fs, path, data)
}
