package fileset

import (
	"bytes"
	"encoding/gob"
	"io"
	"log/slog"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// VersionFunc computes a file's version signature. Two signatures being
// equal means the file content is assumed unchanged. An empty signature is
// legal: it compares equal to itself, so filesystems that cannot version
// files serve from cache until explicitly invalidated.
type VersionFunc func(fs billy.Filesystem, path string) string

// ModTimeVersion signs a file with its modification timestamp. This is the
// default; it assumes the filesystem reports mtimes reliably.
func ModTimeVersion(fs billy.Filesystem, path string) string {
	fi, err := fs.Stat(path)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 10)
}

// StatVersion signs a file with its modification timestamp and size, for
// backends whose mtime resolution is coarse.
func StatVersion(fs billy.Filesystem, path string) string {
	fi, err := fs.Stat(path)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(fi.Size(), 10)
}

func init() {
	gob.Register(Props{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// cacheEntry is the cached decode result for one data file.
type cacheEntry struct {
	Signature string
	Records   []Props
}

// cachePayload is the in-memory image of one cache file: a mapping from
// data-file path-prop tokens to entries.
type cachePayload struct {
	key     Props // path props of the cache file itself
	keyID   string
	entries map[string]cacheEntry
	dirty   bool
}

// recordCache persists decoded records in sibling files addressed by a
// second, usually coarser path template. At most one cache-file payload is
// open at a time, and only for the duration of one read batch: switching
// cache files flushes the previous payload, and flush() at the end of a
// batch persists and closes the last one, so the next batch reloads
// payloads from disk and sees external changes to cache files. Missing or
// corrupt cache files count as empty, never as errors; the cache is a
// performance layer, not a source of truth.
type recordCache struct {
	store  *FileStore
	logger *slog.Logger

	mu      sync.Mutex // guards current against concurrent invalidation
	current *cachePayload
}

func newRecordCache(store *FileStore, logger *slog.Logger) *recordCache {
	return &recordCache{store: store, logger: logger}
}

// getOrDecode returns the cached records for the file at dataPath if the
// stored signature still matches, and otherwise decodes fresh records and
// stores them under the new signature. Decode errors propagate; cache I/O
// errors never do.
func (c *recordCache) getOrDecode(dataPath string, pathProps Props, signature string, decode func() ([]Props, error)) ([]Props, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cachePath, err := c.store.RenderPath(pathProps)
	if err != nil {
		// The cache template requires a prop the data template does not
		// supply; treat as uncacheable.
		c.logger.Warn("cache path not renderable", "path", dataPath, "err", err)
		return decode()
	}
	cacheProps, err := c.store.ParsePathProps(cachePath)
	if err != nil {
		c.logger.Warn("cache path not parseable", "path", cachePath, "err", err)
		return decode()
	}
	c.ensurePayload(cacheProps)

	entryKey := propsToken(pathProps, sortedKeys(pathProps))
	if e, ok := c.current.entries[entryKey]; ok {
		if e.Signature == signature {
			c.logger.Debug("cache hit", "path", dataPath)
			return cloneRecords(e.Records), nil
		}
		c.logger.Debug("cache out of date", "path", dataPath)
	}

	records, err := decode()
	if err != nil {
		return nil, err
	}
	c.current.entries[entryKey] = cacheEntry{Signature: signature, Records: cloneRecords(records)}
	c.current.dirty = true
	return records, nil
}

// ensurePayload makes the payload for the given cache-file props current,
// flushing and replacing the previous one if it addressed a different file.
// Callers must hold mu.
func (c *recordCache) ensurePayload(cacheProps Props) {
	keyID := propsToken(cacheProps, sortedKeys(cacheProps))
	if c.current != nil && c.current.keyID == keyID {
		return
	}
	c.flushLocked()
	c.current = &cachePayload{
		key:     cacheProps,
		keyID:   keyID,
		entries: c.load(cacheProps),
	}
}

func (c *recordCache) load(cacheProps Props) map[string]cacheEntry {
	f, err := c.store.Open(cacheProps)
	if err != nil {
		return map[string]cacheEntry{}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return map[string]cacheEntry{}
	}
	var entries map[string]cacheEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		c.logger.Warn("corrupt cache payload ignored", "path", c.store.Locpath(), "err", err)
		return map[string]cacheEntry{}
	}
	return entries
}

// flush persists and closes the open payload. Called at the end of each
// read batch.
func (c *recordCache) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// flushLocked persists the open payload if it accumulated fresh entries and
// closes it, so the next batch reloads it from disk. Write failures are
// logged and swallowed. Callers must hold mu.
func (c *recordCache) flushLocked() {
	payload := c.current
	c.current = nil
	if payload == nil || !payload.dirty {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload.entries); err != nil {
		c.logger.Warn("cache encode failed", "err", err)
		return
	}
	p, err := c.store.RenderPath(payload.key)
	if err != nil {
		c.logger.Warn("cache flush failed", "err", err)
		return
	}
	if err := writeFileAt(c.store.FS(), p, buf.Bytes()); err != nil {
		c.logger.Warn("cache flush failed", "path", p, "err", err)
	}
}

// invalidate deletes the cache files matching the constraints and drops the
// open payload.
func (c *recordCache) invalidate(constraints Constraints) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return c.store.Delete(constraints, c.logger)
}

func writeFileAt(fs billy.Filesystem, p string, data []byte) error {
	if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	return util.WriteFile(fs, p, data, 0o644)
}
