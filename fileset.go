package fileset

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Options configures a Single source. The zero value is a read-only JSON
// singleton source on the host filesystem, without cache.
type Options struct {
	// Writable enables write and delete operations.
	Writable bool
	// FS is the filesystem holding the data files. Defaults to the host
	// filesystem.
	FS billy.Filesystem
	// Backend decodes and encodes file content. Defaults to
	// JSONBackend{Singleton: true}.
	Backend Backend
	// Frontend converts records to the user-facing shape. Defaults to
	// RecordFrontend.
	Frontend Frontend
	// CacheLocpath enables the record cache; it addresses the cache files
	// and may be coarser than the data template (fewer placeholders), so
	// several data files share one cache file.
	CacheLocpath string
	// CacheFS holds the cache files. Defaults to FS.
	CacheFS billy.Filesystem
	// Version computes data-file version signatures for the cache.
	// Defaults to ModTimeVersion.
	Version VersionFunc
	// TimestampProp, when set, adds the file modification time to every
	// record under this name.
	TimestampProp string
	// Meta maps record column names to file metadata fields (MetaName,
	// MetaSize, MetaModified).
	Meta map[string]string
	// MetaAll exposes every metadata field under its own name. Only valid
	// on read-only sources: without an explicit mapping the write path
	// cannot tell metadata columns from content.
	MetaAll bool
	// Logger receives operational logging. Defaults to a discard logger;
	// there is no package-global logger state.
	Logger *slog.Logger
}

// New builds a Single source for one locpath.
func New(locpath string, opts Options) (*Single, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fs := opts.FS
	if fs == nil {
		fs = osfs.New("/")
	}
	store, err := NewFileStore(locpath, opts.Writable, fs)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend = JSONBackend{Singleton: true}
	}
	frontend := opts.Frontend
	if frontend == nil {
		frontend = RecordFrontend{}
	}
	version := opts.Version
	if version == nil {
		version = ModTimeVersion
	}

	meta := opts.Meta
	if opts.MetaAll {
		if opts.Writable {
			return nil, fmt.Errorf("writable source with implicit metadata columns requires an explicit Meta mapping: %w", ErrConfig)
		}
		if meta != nil {
			return nil, fmt.Errorf("MetaAll and Meta are mutually exclusive: %w", ErrConfig)
		}
		meta = map[string]string{
			MetaName:     MetaName,
			MetaSize:     MetaSize,
			MetaModified: MetaModified,
		}
	}
	for col, field := range meta {
		switch field {
		case MetaName, MetaSize, MetaModified:
		default:
			return nil, fmt.Errorf("unknown meta field %q for column %q: %w", field, col, ErrConfig)
		}
		if store.Template().HasField(col) {
			return nil, fmt.Errorf("meta column %q collides with a path placeholder: %w", col, ErrConfig)
		}
	}

	s := &Single{
		store:         store,
		backend:       backend,
		frontend:      frontend,
		version:       version,
		timestampProp: opts.TimestampProp,
		meta:          meta,
		logger:        logger,
		lockToken:     newLockToken(),
	}

	if opts.CacheLocpath != "" {
		cacheFS := opts.CacheFS
		if cacheFS == nil {
			cacheFS = fs
		}
		cacheStore, err := NewFileStore(opts.CacheLocpath, true, cacheFS)
		if err != nil {
			return nil, fmt.Errorf("cache locpath: %w", err)
		}
		s.cache = newRecordCache(cacheStore, logger)
	}
	return s, nil
}

// CompositeOptions configures a Composite source.
type CompositeOptions struct {
	// JoinKeys overrides the join keys of individual children; a child
	// absent from the map joins on all of its key props.
	JoinKeys map[string][]string
	// JoinLevelName is the reserved pseudo-child name exposing the join
	// key columns. Defaults to "index".
	JoinLevelName string
	// Separator between child name and property name in flat record keys.
	// Defaults to ".".
	Separator string
	// Frontend converts joined records to the user-facing shape. Defaults
	// to RecordFrontend.
	Frontend Frontend
	// Logger receives operational logging. Defaults to a discard logger.
	Logger *slog.Logger
}

// NewComposite joins the named child sources on the union of their path
// properties. Children may be Single sources or nested Composites.
func NewComposite(children map[string]Source, opts CompositeOptions) (*Composite, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("composite needs at least one child: %w", ErrConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	frontend := opts.Frontend
	if frontend == nil {
		frontend = RecordFrontend{}
	}
	joinLevel := opts.JoinLevelName
	if joinLevel == "" {
		joinLevel = "index"
	}
	sep := opts.Separator
	if sep == "" {
		sep = "."
	}

	c := &Composite{
		children:  map[string]Source{},
		joinKeys:  map[string][]string{},
		joinLevel: joinLevel,
		sep:       sep,
		frontend:  frontend,
		logger:    logger,
	}
	keyUnion := map[string]struct{}{}
	for name, child := range children {
		if name == joinLevel {
			return nil, fmt.Errorf("child name %q collides with the join level name: %w", name, ErrConfig)
		}
		keys := opts.JoinKeys[name]
		if keys == nil {
			keys = child.KeyProps()
		}
		c.children[name] = child
		c.joinKeys[name] = keys
		c.order = append(c.order, name)
		for _, k := range keys {
			keyUnion[k] = struct{}{}
		}
	}
	sort.Strings(c.order)
	for k := range keyUnion {
		c.allKeys = append(c.allKeys, k)
	}
	sort.Strings(c.allKeys)
	return c, nil
}
