package fileset

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Single is the read/write engine for one FileStore: it resolves
// constraints to matching files, applies the cache, delegates decoding and
// encoding to the backend, and merges path-derived with content-derived
// properties into uniform records.
type Single struct {
	store         *FileStore
	backend       Backend
	frontend      Frontend
	cache         *recordCache // nil when no cache is configured
	version       VersionFunc
	timestampProp string
	meta          map[string]string
	logger        *slog.Logger
	lockToken     string
}

var _ Source = (*Single)(nil)

// Equal reports whether both sources address the same file set, i.e. their
// normalized template strings match.
func (s *Single) Equal(o *Single) bool {
	return o != nil && s.store.Locpath() == o.store.Locpath()
}

// Store exposes the underlying FileStore for raw path-level access.
func (s *Single) Store() *FileStore { return s.store }

// KeyProps returns the template's placeholder names.
func (s *Single) KeyProps() []string { return s.store.PathProps() }

// Writable reports whether writes are enabled.
func (s *Single) Writable() bool { return s.store.Writable() }

// ListPaths returns the existing paths matching the constraints.
func (s *Single) ListPaths(constraints Constraints) ([]string, error) {
	return s.store.ListPaths(constraints)
}

// ReadRecords returns one record per decoded row of every matching file,
// augmented with the path-derived properties (which win on key collision),
// the timestamp column and metadata columns when configured. Records appear
// in natural file-listing order.
func (s *Single) ReadRecords(constraints Constraints) ([]Props, error) {
	return s.readBare(constraints)
}

func (s *Single) readBare(constraints Constraints) ([]Props, error) {
	entries, err := s.store.List(constraints)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reading files", "locpath", s.store.Locpath(), "count", len(entries))

	var result []Props
	for _, entry := range entries {
		entry := entry

		var records []Props
		if s.cache != nil {
			// Cached entries must hold the full decode, so the residual
			// content filter is applied after retrieval, never baked in.
			decode := func() ([]Props, error) {
				return s.decodeFile(entry, nil)
			}
			records, err = s.cache.getOrDecode(entry.Path, entry.Props, s.version(s.store.FS(), entry.Path), decode)
			if err == nil {
				records = filterRecords(records, entry.Props, constraints)
			}
		} else {
			records, err = s.decodeFile(entry, constraints)
		}
		if err != nil {
			if s.cache != nil {
				s.cache.flush()
			}
			return nil, err
		}
		result = append(result, records...)
	}
	if s.cache != nil {
		s.cache.flush()
	}
	return result, nil
}

// decodeFile reads one file through the backend and merges in the
// path-derived values, which take precedence over content values of the
// same name.
func (s *Single) decodeFile(entry Entry, constraints Constraints) ([]Props, error) {
	records, err := s.backend.Decode(s.store.FS(), entry.Path, entry.Props, constraints)
	if err != nil {
		return nil, decodeErr(entry.Path, err)
	}

	var metaProps Props
	if len(s.meta) > 0 {
		metaProps, err = s.store.Meta(entry.Path, s.meta)
		if err != nil {
			metaProps = Props{}
		}
	}

	for _, rec := range records {
		if s.timestampProp != "" {
			if fi, err := s.store.FS().Stat(entry.Path); err == nil {
				rec[s.timestampProp] = fi.ModTime()
			}
		}
		for k, v := range metaProps {
			rec[k] = v
		}
		for k, v := range entry.Props {
			rec[k] = v
		}
	}
	return records, nil
}

// WriteRecords groups the records by their path-derived key tuple, one
// batch per target file: records sharing path-prop values but differing in
// content props land in the same file. Each batch invalidates its cache
// entries before the backend encodes it.
func (s *Single) WriteRecords(records []Props, opts ...WriteOption) error {
	cfg := applyWriteOptions(opts)
	return s.writeBare(records, cfg.dryRun)
}

func (s *Single) writeBare(records []Props, dryRun bool) error {
	if !s.store.Writable() {
		return fmt.Errorf("write: %w", ErrNotWritable)
	}

	type batch struct {
		pathProps Props
		contents  []Props
	}
	keyNames := s.store.PathProps()
	var order []string
	batches := map[string]*batch{}
	for _, rec := range records {
		pathProps, content := s.splitRecord(rec)
		token := propsToken(pathProps, keyNames)
		b, ok := batches[token]
		if !ok {
			b = &batch{pathProps: pathProps}
			batches[token] = b
			order = append(order, token)
		}
		b.contents = append(b.contents, content)
	}

	prefix := ""
	if dryRun {
		prefix = "(dry run) "
	}
	for _, token := range order {
		b := batches[token]
		if err := s.InvalidateCache(b.pathProps); err != nil {
			return err
		}
		p, err := s.store.RenderPath(b.pathProps)
		if err != nil {
			return err
		}
		s.logger.Info(prefix+"saving", "path", p, "records", len(b.contents))
		if dryRun {
			continue
		}
		if err := s.backend.Encode(s.store.FS(), p, b.contents); err != nil {
			return err
		}
	}
	return nil
}

// splitRecord splits one record into its path-derived key tuple and its
// content properties. Timestamp and metadata columns belong to neither and
// are dropped.
func (s *Single) splitRecord(rec Props) (pathProps, content Props) {
	pathProps = Props{}
	content = Props{}
	for k, v := range rec {
		switch {
		case s.store.Template().HasField(k):
			pathProps[k] = v
		case k == s.timestampProp && s.timestampProp != "":
		case s.meta[k] != "":
		default:
			content[k] = v
		}
	}
	return pathProps, content
}

// InvalidateCache deletes the cache files matching the constraints. It is a
// no-op without a configured cache. Deleting a data file does not
// invalidate its cache entries automatically; call this explicitly.
func (s *Single) InvalidateCache(constraints Constraints) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.invalidate(constraints)
}

// Delete removes the data files matching the constraints.
func (s *Single) Delete(constraints Constraints) error {
	return s.store.Delete(constraints, s.logger)
}

// ReadContent returns the single record matching the constraints in the
// frontend's single-row shape. Zero or several matches fail with
// ErrSingletonExpected.
func (s *Single) ReadContent(constraints Constraints) (any, error) {
	records, err := s.readBare(constraints)
	if err != nil {
		return nil, err
	}
	return s.frontend.RecordsToContent(records)
}

// ReadContents returns all matching records in the frontend's multi-row
// shape.
func (s *Single) ReadContents(constraints Constraints) (any, error) {
	records, err := s.readBare(constraints)
	if err != nil {
		return nil, err
	}
	return s.frontend.RecordsToContents(records)
}

// WriteContent writes one frontend-shaped row.
func (s *Single) WriteContent(content any, opts ...WriteOption) error {
	if !s.store.Writable() {
		return fmt.Errorf("write: %w", ErrNotWritable)
	}
	records, err := s.frontend.ContentToRecords(content)
	if err != nil {
		return err
	}
	return s.WriteRecords(records, opts...)
}

// WriteContents writes frontend-shaped rows.
func (s *Single) WriteContents(contents any, opts ...WriteOption) error {
	if !s.store.Writable() {
		return fmt.Errorf("write: %w", ErrNotWritable)
	}
	records, err := s.frontend.ContentsToRecords(contents)
	if err != nil {
		return err
	}
	return s.WriteRecords(records, opts...)
}

func newLockToken() string {
	return uuid.NewString()
}
