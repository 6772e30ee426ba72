package fileset

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, fs billy.Filesystem, path, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
}

// newJSONSingle builds a writable Single over memfs with singleton JSON
// files, pre-populated from files (path -> raw content).
func newJSONSingle(t *testing.T, locpath string, files map[string]string) (*Single, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	for p, content := range files {
		writeTestFile(t, fs, p, content)
	}
	s, err := New(locpath, Options{Writable: true, FS: fs})
	require.NoError(t, err)
	return s, fs
}

// countingBackend wraps a backend and counts Decode calls, to observe cache
// hits and write batching.
type countingBackend struct {
	inner   Backend
	decodes int
	encodes int
}

func (b *countingBackend) Decode(fs billy.Filesystem, path string, pathProps Props, constraints Constraints) ([]Props, error) {
	b.decodes++
	return b.inner.Decode(fs, path, pathProps, constraints)
}

func (b *countingBackend) Encode(fs billy.Filesystem, path string, records []Props) error {
	b.encodes++
	return b.inner.Encode(fs, path, records)
}

// findRecord returns the first record where key equals want, failing the
// test when none matches.
func findRecord(t *testing.T, records []Props, key string, want any) Props {
	t.Helper()
	for _, rec := range records {
		if v, ok := rec[key]; ok && valuesEqual(v, want) {
			return rec
		}
	}
	t.Fatalf("no record with %s=%v in %v", key, want, records)
	return nil
}
