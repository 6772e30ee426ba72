package fileset

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBackend(t *testing.T) {
	t.Run("singleton", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `{"a": 1, "b": "x"}`)
		records, err := JSONBackend{Singleton: true}.Decode(fs, "/f.json", nil, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(1), records[0]["a"])
		assert.Equal(t, "x", records[0]["b"])
	})

	t.Run("singleton rejects array root", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `[{"a": 1}]`)
		_, err := JSONBackend{Singleton: true}.Decode(fs, "/f.json", nil, nil)
		assert.ErrorIs(t, err, ErrConversion)
	})

	t.Run("list", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `[{"a": 1}, {"a": 2}]`)
		records, err := JSONBackend{}.Decode(fs, "/f.json", nil, nil)
		require.NoError(t, err)
		require.Len(t, records, 2)
	})

	t.Run("content constraints filter rows", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `[{"a": 1, "b": 10}, {"a": 2, "b": 20}]`)
		records, err := JSONBackend{}.Decode(fs, "/f.json", nil, Constraints{"a": 2})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(20), records[0]["b"])
	})

	t.Run("path constraints do not filter content", func(t *testing.T) {
		// A constraint satisfied by the path must not drop rows whose
		// content happens to carry the same key with another value.
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `[{"country": "stale", "b": 1}]`)
		records, err := JSONBackend{}.Decode(fs, "/f.json",
			Props{"country": "us"}, Constraints{"country": "us"})
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("rows missing a constrained key are kept", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `[{"a": 1}, {"b": 2}]`)
		records, err := JSONBackend{}.Decode(fs, "/f.json", nil, Constraints{"a": 1})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("malformed content", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.json", `{"a": `)
		_, err := JSONBackend{Singleton: true}.Decode(fs, "/f.json", nil, nil)
		assert.ErrorIs(t, err, ErrConversion)
	})

	t.Run("round trip", func(t *testing.T) {
		fs := memfs.New()
		in := []Props{{"a": int64(1)}, {"a": int64(2)}}
		require.NoError(t, JSONBackend{}.Encode(fs, "/out/f.json", in))
		out, err := JSONBackend{}.Decode(fs, "/out/f.json", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestYAMLBackend(t *testing.T) {
	t.Run("singleton", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.yaml", "a: 1\nb: x\n")
		records, err := YAMLBackend{Singleton: true}.Decode(fs, "/f.yaml", nil, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 1, records[0]["a"])
		assert.Equal(t, "x", records[0]["b"])
	})

	t.Run("list round trip", func(t *testing.T) {
		fs := memfs.New()
		in := []Props{{"a": 1}, {"a": 2}}
		require.NoError(t, YAMLBackend{}.Encode(fs, "/f.yaml", in))
		out, err := YAMLBackend{}.Decode(fs, "/f.yaml", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestCSVBackend(t *testing.T) {
	t.Run("decode with header", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.csv", "a,b\n1,x\n2,y\n")
		records, err := CSVBackend{}.Decode(fs, "/f.csv", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []Props{
			{"a": "1", "b": "x"},
			{"a": "2", "b": "y"},
		}, records)
	})

	t.Run("empty file", func(t *testing.T) {
		fs := memfs.New()
		writeTestFile(t, fs, "/f.csv", "")
		records, err := CSVBackend{}.Decode(fs, "/f.csv", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("encode unions columns", func(t *testing.T) {
		fs := memfs.New()
		in := []Props{{"a": 1}, {"a": 2, "b": "x"}}
		require.NoError(t, CSVBackend{}.Encode(fs, "/f.csv", in))
		records, err := CSVBackend{}.Decode(fs, "/f.csv", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []Props{
			{"a": "1", "b": ""},
			{"a": "2", "b": "x"},
		}, records)
	})
}

func TestGobBackend(t *testing.T) {
	fs := memfs.New()
	in := []Props{{"a": int64(1), "f": 1.5, "ok": true}}
	require.NoError(t, GobBackend{}.Encode(fs, "/f.gob", in))
	out, err := GobBackend{}.Decode(fs, "/f.gob", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPathBackend(t *testing.T) {
	fs := memfs.New()
	records, err := PathBackend{}.Decode(fs, "/whatever", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []Props{{}}, records)

	err = PathBackend{}.Encode(fs, "/whatever", []Props{{"a": 1}})
	assert.ErrorIs(t, err, ErrNotWritable)
}

func TestCoerceForEncodeSingleton(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		_, err := coerceForEncode("/f.json", nil, true)
		assert.ErrorIs(t, err, ErrConversion)
	})

	t.Run("identical duplicates collapse", func(t *testing.T) {
		v, err := coerceForEncode("/f.json", []Props{{"a": 1}, {"a": 1}}, true)
		require.NoError(t, err)
		assert.Equal(t, Props{"a": 1}, v)
	})

	t.Run("differing duplicates fail", func(t *testing.T) {
		_, err := coerceForEncode("/f.json", []Props{{"a": 1}, {"a": 2}}, true)
		assert.ErrorIs(t, err, ErrConversion)
	})
}
