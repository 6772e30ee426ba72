// Package fileset maps sets of files on a filesystem-like backend to
// structured in-memory records. A path template ("locpath") such as
// /data/{country}/{year:d}.json doubles as the file-discovery glob and the
// definition of the key columns extracted from each path. Single sources
// read and write one file set; composite sources join several sources into
// one flat dataset on their shared path properties and split writes back
// per source.
package fileset

import (
	"github.com/go-git/go-billy/v5"
)

// Props is one logical row: the union of path-derived and content-derived
// properties. Values are scalars (string, int64, float64, bool, time.Time,
// nil) or nested structures produced by a backend.
type Props map[string]any

// Constraints are equality constraints on property names. Constraints on
// path properties narrow file discovery; constraints on content properties
// filter decoded rows.
type Constraints = Props

// Backend decodes a file's content into records and encodes records back.
// Implementations are thin format adapters; they validate the expected root
// shape, apply residual constraints on decode, and create parent
// directories on encode.
type Backend interface {
	Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error)
	Encode(fs billy.Filesystem, path string, records []Props) error
}

// Frontend converts between the flat record form and a user-facing shape
// (a single mapping, a list of mappings, or a Frame).
type Frontend interface {
	RecordsToContent(records []Props) (any, error)
	RecordsToContents(records []Props) (any, error)
	ContentToRecords(content any) ([]Props, error)
	ContentsToRecords(contents any) ([]Props, error)
}

// Source is a readable (and possibly writable) record set. Both Single and
// Composite implement it, so a composite's child can itself be a composite.
type Source interface {
	// ReadRecords returns the flat records matching the constraints.
	ReadRecords(constraints Constraints) ([]Props, error)
	// WriteRecords persists records, grouping them by target file.
	WriteRecords(records []Props, opts ...WriteOption) error
	// ReadContent returns a single matching row via the frontend.
	ReadContent(constraints Constraints) (any, error)
	// ReadContents returns all matching rows via the frontend.
	ReadContents(constraints Constraints) (any, error)
	// WriteContent writes one frontend-shaped row.
	WriteContent(content any, opts ...WriteOption) error
	// WriteContents writes frontend-shaped rows.
	WriteContents(contents any, opts ...WriteOption) error
	// InvalidateCache drops cache entries matching the constraints.
	InvalidateCache(constraints Constraints) error
	// KeyProps returns the path property names usable as join and filter
	// keys for this source.
	KeyProps() []string
	// Writable reports whether writes are enabled.
	Writable() bool

	// Internal record form: bare key-prop names, child-prefixed content
	// props. Closed to external implementations.
	readBare(constraints Constraints) ([]Props, error)
	writeBare(records []Props, dryRun bool) error
}

type writeConfig struct {
	dryRun bool
}

// WriteOption adjusts a single write call.
type WriteOption func(*writeConfig)

// DryRun simulates the write: grouping, cache invalidation and path
// rendering happen, encoding does not.
func DryRun() WriteOption {
	return func(c *writeConfig) { c.dryRun = true }
}

func applyWriteOptions(opts []WriteOption) writeConfig {
	var c writeConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}
