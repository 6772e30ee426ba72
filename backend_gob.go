package fileset

import (
	"bytes"
	"encoding/gob"

	"github.com/go-git/go-billy/v5"
)

// GobBackend reads and writes records in Go's binary gob encoding. Unlike
// the text backends it round-trips every scalar type exactly, including
// time.Time. The on-disk layout follows the singleton convention: one
// Props value or a []Props slice.
type GobBackend struct {
	Singleton bool
}

var _ Backend = GobBackend{}

func (b GobBackend) Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error) {
	data, err := readAll(fs, path)
	if err != nil {
		return nil, err
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	var content any
	if b.Singleton {
		var m Props
		if err := dec.Decode(&m); err != nil {
			return nil, decodeErr(path, err)
		}
		content = m
	} else {
		var l []Props
		if err := dec.Decode(&l); err != nil {
			return nil, decodeErr(path, err)
		}
		content = l
	}
	return coerceDecoded(path, content, pathProps, constraints, b.Singleton)
}

func (b GobBackend) Encode(fs billy.Filesystem, path string, records []Props) error {
	content, err := coerceForEncode(path, records, b.Singleton)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(content); err != nil {
		return conversionErrf("encode %q: %v", path, err)
	}
	return writeAll(fs, path, buf.Bytes())
}
