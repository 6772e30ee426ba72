package fileset

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/fileset/fmtpath"
)

// Meta field names accepted by a metadata column mapping.
const (
	MetaName     = "name"
	MetaSize     = "size"
	MetaModified = "modified"
)

// FileStore enumerates, opens and deletes the files addressed by one path
// template on a billy filesystem. It is the thin filesystem layer under
// Single; it knows nothing about file content.
type FileStore struct {
	fs       billy.Filesystem
	tmpl     *fmtpath.Template
	locpath  string
	writable bool
	root     string
}

// Entry is one discovered file with its path-derived properties.
type Entry struct {
	Path  string
	Props Props
}

// NewFileStore compiles locpath and binds it to fs. The template is
// immutable afterwards.
func NewFileStore(locpath string, writable bool, fs billy.Filesystem) (*FileStore, error) {
	locpath = path.Clean(strings.ReplaceAll(locpath, "\\", "/"))
	tmpl, err := fmtpath.Compile(locpath)
	if err != nil {
		return nil, err
	}
	return &FileStore{
		fs:       fs,
		tmpl:     tmpl,
		locpath:  locpath,
		writable: writable,
		root:     rootFolder(locpath),
	}, nil
}

// rootFolder returns the deepest folder of locpath that contains no
// placeholder.
func rootFolder(locpath string) string {
	prefix := locpath
	if i := strings.IndexByte(locpath, '{'); i >= 0 {
		prefix = locpath[:i]
	}
	return path.Dir(prefix + "x")
}

// Locpath returns the normalized template string. Two stores address the
// same file set iff their locpaths are equal.
func (s *FileStore) Locpath() string { return s.locpath }

// Template returns the compiled path template.
func (s *FileStore) Template() *fmtpath.Template { return s.tmpl }

// FS returns the underlying filesystem.
func (s *FileStore) FS() billy.Filesystem { return s.fs }

// Writable reports whether write operations are enabled.
func (s *FileStore) Writable() bool { return s.writable }

// RootFolder returns the deepest placeholder-free folder of the template,
// used as the scope of the advisory lock.
func (s *FileStore) RootFolder() string { return s.root }

// PathProps returns the placeholder names of the template.
func (s *FileStore) PathProps() []string { return s.tmpl.FieldNames() }

// ParsePathProps extracts the template's placeholder values from a concrete
// path.
func (s *FileStore) ParsePathProps(p string) (Props, error) {
	values, err := s.tmpl.Parse(p)
	if err != nil {
		return nil, err
	}
	return Props(values), nil
}

// RenderPath renders the concrete path for fully constraining values.
// Constraint keys that are not placeholders are ignored.
func (s *FileStore) RenderPath(constraints Constraints) (string, error) {
	return s.tmpl.Render(constraints)
}

// RenderGlobPath renders a glob pattern; placeholders absent from the
// constraints become wildcards.
func (s *FileStore) RenderGlobPath(constraints Constraints) (string, error) {
	return s.tmpl.RenderGlob(constraints)
}

// ListPaths returns the existing paths matching the constraints in natural
// (numeric-aware) order.
func (s *FileStore) ListPaths(constraints Constraints) ([]string, error) {
	pattern, err := s.RenderGlobPath(constraints)
	if err != nil {
		return nil, err
	}
	paths, err := util.Glob(s.fs, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	fmtpath.SortNatural(paths)
	return paths, nil
}

// List returns the matching paths with their extracted path properties, in
// natural order of the path string.
func (s *FileStore) List(constraints Constraints) ([]Entry, error) {
	paths, err := s.ListPaths(constraints)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		props, err := s.ParsePathProps(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: p, Props: props})
	}
	return entries, nil
}

// ListWithMeta is List with the mapped metadata columns merged into each
// entry's props. Path-derived values win over metadata columns of the same
// name.
func (s *FileStore) ListWithMeta(constraints Constraints, mapping map[string]string) ([]Entry, error) {
	entries, err := s.List(constraints)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		meta, err := s.Meta(e.Path, mapping)
		if err != nil {
			continue // raced away, keep the bare entry
		}
		merged := make(Props, len(meta)+len(e.Props))
		for k, v := range meta {
			merged[k] = v
		}
		for k, v := range e.Props {
			merged[k] = v
		}
		entries[i].Props = merged
	}
	return entries, nil
}

// Meta returns the metadata of one file projected through mapping
// (column name -> meta field, see MetaName/MetaSize/MetaModified).
func (s *FileStore) Meta(p string, mapping map[string]string) (Props, error) {
	fi, err := s.fs.Stat(p)
	if err != nil {
		return nil, err
	}
	out := make(Props, len(mapping))
	for col, field := range mapping {
		switch field {
		case MetaName:
			out[col] = fi.Name()
		case MetaSize:
			out[col] = fi.Size()
		case MetaModified:
			out[col] = fi.ModTime()
		default:
			return nil, fmt.Errorf("unknown meta field %q for column %q: %w", field, col, ErrConfig)
		}
	}
	return out, nil
}

// Exists reports whether the fully constrained path exists.
func (s *FileStore) Exists(constraints Constraints) (bool, error) {
	p, err := s.RenderPath(constraints)
	if err != nil {
		return false, err
	}
	if _, err := s.fs.Stat(p); err != nil {
		return false, nil
	}
	return true, nil
}

// Open opens the fully constrained path for reading.
func (s *FileStore) Open(constraints Constraints) (billy.File, error) {
	p, err := s.RenderPath(constraints)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(p)
}

// Create opens the fully constrained path for writing, creating parent
// directories as needed. Fails with ErrNotWritable on a read-only store.
func (s *FileStore) Create(constraints Constraints) (billy.File, error) {
	if !s.writable {
		return nil, fmt.Errorf("create: %w", ErrNotWritable)
	}
	p, err := s.RenderPath(constraints)
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("makedirs for %q: %w", p, err)
	}
	return s.fs.Create(p)
}

// Delete removes every path matching the constraints. Directories are
// removed recursively. Deleting data files does not touch cache files; use
// Single.InvalidateCache for that.
func (s *FileStore) Delete(constraints Constraints, logger *slog.Logger) error {
	if !s.writable {
		return fmt.Errorf("delete: %w", ErrNotWritable)
	}
	paths, err := s.ListPaths(constraints)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fi, err := s.fs.Stat(p)
		if err != nil {
			continue // raced away
		}
		if logger != nil {
			logger.Info("deleting", "path", p)
		}
		if fi.IsDir() {
			err = util.RemoveAll(s.fs, p)
		} else {
			err = s.fs.Remove(p)
		}
		if err != nil {
			return fmt.Errorf("delete %q: %w", p, err)
		}
	}
	return nil
}
