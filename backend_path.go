package fileset

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
)

// PathBackend ignores file content entirely: each discovered file yields
// one empty record, which Single then fills with the path-derived
// properties. Useful when the template placeholders are the data.
type PathBackend struct{}

var _ Backend = PathBackend{}

func (PathBackend) Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error) {
	return []Props{{}}, nil
}

func (PathBackend) Encode(fs billy.Filesystem, path string, records []Props) error {
	return fmt.Errorf("path backend cannot encode content: %w", ErrNotWritable)
}
