package fileset

import (
	"os"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	dataPath := dir + "/1.json"
	cachePath := dir + "/records.cache"
	require.NoError(t, os.WriteFile(dataPath, []byte(`{"x": 1}`), 0o644))

	s, err := New(dir+"/{id:d}.json", Options{
		FS:           osfs.New("/"),
		CacheLocpath: cachePath,
	})
	require.NoError(t, err)

	_, err = s.ReadRecords(nil)
	require.NoError(t, err)
	_, err = os.Stat(cachePath)
	require.NoError(t, err, "read must have produced a cache file")

	w, err := NewWatcher(s)
	require.NoError(t, err)
	defer w.Close()

	events := make(chan Props, 16)
	w.onEvent = func(props Props, op fsnotify.Op) { events <- props }

	require.NoError(t, os.WriteFile(dataPath, []byte(`{"x": 2}`), 0o644))

	select {
	case props := <-events:
		assert.Equal(t, Props{"id": int64(1)}, props)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event observed")
	}

	assert.Eventually(t, func() bool {
		_, err := os.Stat(cachePath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "cache file must be invalidated")
}

func TestWatcherPicksUpNewFolders(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir+"/{country}/{id:d}.json", Options{FS: osfs.New("/")})
	require.NoError(t, err)

	w, err := NewWatcher(s)
	require.NoError(t, err)
	defer w.Close()

	events := make(chan Props, 16)
	w.onEvent = func(props Props, op fsnotify.Op) { events <- props }

	require.NoError(t, os.Mkdir(dir+"/us", 0o755))
	time.Sleep(100 * time.Millisecond) // let the watcher register the folder
	require.NoError(t, os.WriteFile(dir+"/us/7.json", []byte(`{"x": 1}`), 0o644))

	select {
	case props := <-events:
		assert.Equal(t, Props{"country": "us", "id": int64(7)}, props)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for file in new folder")
	}
}

func TestWatcherIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir+"/{id:d}.json", Options{FS: osfs.New("/")})
	require.NoError(t, err)

	w, err := NewWatcher(s)
	require.NoError(t, err)
	defer w.Close()

	events := make(chan Props, 16)
	w.onEvent = func(props Props, op fsnotify.Op) { events <- props }

	require.NoError(t, os.WriteFile(dir+"/notes.txt", []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(dir+"/3.json", []byte(`{"x": 1}`), 0o644))

	props := <-events
	assert.Equal(t, Props{"id": int64(3)}, props)
}
