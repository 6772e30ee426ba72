package fileset

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cache entries when data files change on disk. It
// watches the source's root folder recursively and maps every event whose
// path matches the template back to its path properties. Only sources on
// the host filesystem can be watched; fsnotify has no view into in-memory
// filesystems.
type Watcher struct {
	source  *Single
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
	onEvent func(Props, fsnotify.Op) // test hook
}

// NewWatcher starts watching the source's file tree. The caller must Close
// the watcher when done.
func NewWatcher(source *Single) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	w := &Watcher{
		source: source,
		fsw:    fsw,
		logger: source.logger,
		done:   make(chan struct{}),
	}
	if err := w.addTree(source.store.RootFolder()); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

// Close stops the watcher and waits for the event loop to drain.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

// addTree registers dir and all its subdirectories. New subdirectories
// appearing later are picked up from their create events.
func (w *Watcher) addTree(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.addTree(path.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	p := strings.ReplaceAll(event.Name, "\\", "/")

	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			if err := w.fsw.Add(p); err != nil {
				w.logger.Warn("watch new folder", "path", p, "err", err)
			}
			return
		}
	}

	props, err := w.source.store.ParsePathProps(p)
	if err != nil {
		return // not a data file of this source
	}
	w.logger.Info("file changed", "path", p, "op", event.Op.String())
	if err := w.source.InvalidateCache(props); err != nil {
		w.logger.Warn("invalidate after change", "path", p, "err", err)
	}
	if w.onEvent != nil {
		w.onEvent(props, event.Op)
	}
}
