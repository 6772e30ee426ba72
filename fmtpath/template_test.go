package fmtpath

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	t.Run("field names in first appearance order", func(t *testing.T) {
		tmpl, err := Compile("/data/{country}/{year:d}/{country}.json")
		require.NoError(t, err)
		assert.Equal(t, []string{"country", "year"}, tmpl.FieldNames())
		assert.True(t, tmpl.HasField("year"))
		assert.False(t, tmpl.HasField("month"))
	})

	t.Run("unsupported spec", func(t *testing.T) {
		_, err := Compile("/data/{x:08.2f}.json")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTemplateSyntax)
		var serr *TemplateSyntaxError
		assert.ErrorAs(t, err, &serr)
	})

	t.Run("conversion not supported", func(t *testing.T) {
		_, err := Compile("/data/{x!r}.json")
		assert.ErrorIs(t, err, ErrTemplateSyntax)
	})

	t.Run("unterminated placeholder", func(t *testing.T) {
		_, err := Compile("/data/{x.json")
		assert.ErrorIs(t, err, ErrTemplateSyntax)
	})

	t.Run("slash inside datetime spec", func(t *testing.T) {
		_, err := Compile("/data/{day:%Y/%m}.json")
		assert.ErrorIs(t, err, ErrTemplateSyntax)
	})

	t.Run("conflicting specs for one name", func(t *testing.T) {
		_, err := Compile("/{id:d}/{id:g}.json")
		assert.ErrorIs(t, err, ErrTemplateSyntax)
	})

	t.Run("stray closing brace", func(t *testing.T) {
		for _, src := range []string{"a}b{x}", "{x}a}b", "a}b}}c{x}", "}"} {
			_, err := Compile(src)
			assert.ErrorIs(t, err, ErrTemplateSyntax, src)
		}
	})

	t.Run("escaped braces are literal", func(t *testing.T) {
		tmpl, err := Compile("/data/{{raw}}/{id:d}.json")
		require.NoError(t, err)
		got, err := tmpl.Render(map[string]any{"id": 7})
		require.NoError(t, err)
		assert.Equal(t, "/data/{raw}/7.json", got)
	})
}

func TestParse(t *testing.T) {
	t.Run("typed extraction", func(t *testing.T) {
		tmpl := MustCompile("/data/{country}/{year:d}/{ratio:g}.json")
		props, err := tmpl.Parse("/data/de/2023/0.75.json")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"country": "de", "year": int64(2023), "ratio": 0.75}, props)
	})

	t.Run("signed numbers and exponents", func(t *testing.T) {
		tmpl := MustCompile("/{n:d}/{g:g}")
		props, err := tmpl.Parse("/-12/+1.5e-3")
		require.NoError(t, err)
		assert.Equal(t, int64(-12), props["n"])
		assert.Equal(t, 1.5e-3, props["g"])
	})

	t.Run("no match is an error", func(t *testing.T) {
		tmpl := MustCompile("/data/{year:d}.json")
		_, err := tmpl.Parse("/data/notanumber.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/data/notanumber.json")
	})

	t.Run("repeated scalar must agree", func(t *testing.T) {
		tmpl := MustCompile("/{id}/sub/{id}.json")
		props, err := tmpl.Parse("/a/sub/a.json")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "a"}, props)

		_, err = tmpl.Parse("/a/sub/b.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inconsistent")
	})

	t.Run("datetime", func(t *testing.T) {
		tmpl := MustCompile("{date:%Y-%m-%d %H:%M:%S}")
		props, err := tmpl.Parse("2022-01-01 12:00:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC), props["date"])
	})

	t.Run("datetime split across segments", func(t *testing.T) {
		tmpl := MustCompile("{date:%Y-%m-%d}/{date:%H:%M:%S}")
		props, err := tmpl.Parse("2022-01-01/12:00:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC), props["date"])
	})

	t.Run("conflicting datetime components", func(t *testing.T) {
		tmpl := MustCompile("{date:%Y}/{date:%Y-%m}")
		_, err := tmpl.Parse("2021/2022-01")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conflicting")
	})

	t.Run("day of year", func(t *testing.T) {
		tmpl := MustCompile("{d:%Y-%j}")
		props, err := tmpl.Parse("2023-032")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), props["d"])
	})
}

func TestRender(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		tmpl := MustCompile("/data/{country}/{year:d}/{ratio:g}.json")
		values := map[string]any{"country": "de", "year": int64(2023), "ratio": 0.75}
		path, err := tmpl.Render(values)
		require.NoError(t, err)
		assert.Equal(t, "/data/de/2023/0.75.json", path)

		back, err := tmpl.Parse(path)
		require.NoError(t, err)
		assert.Equal(t, values, back)
	})

	t.Run("missing placeholder", func(t *testing.T) {
		tmpl := MustCompile("/data/{country}/{year:d}.json")
		_, err := tmpl.Render(map[string]any{"country": "de"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "year")
	})

	t.Run("datetime rendering", func(t *testing.T) {
		tmpl := MustCompile("/logs/{day:%Y-%m-%d}/{day:%H%M}.log")
		path, err := tmpl.Render(map[string]any{"day": time.Date(2024, 3, 9, 8, 5, 0, 0, time.UTC)})
		require.NoError(t, err)
		assert.Equal(t, "/logs/2024-03-09/0805.log", path)
	})

	t.Run("int accepts go int", func(t *testing.T) {
		tmpl := MustCompile("/{n:d}")
		path, err := tmpl.Render(map[string]any{"n": 42})
		require.NoError(t, err)
		assert.Equal(t, "/42", path)
	})

	t.Run("type mismatch", func(t *testing.T) {
		tmpl := MustCompile("/{n:d}")
		_, err := tmpl.Render(map[string]any{"n": "x"})
		require.Error(t, err)
	})
}

func TestRenderGlob(t *testing.T) {
	tmpl := MustCompile("/data/{country}/{year:d}.json")

	t.Run("missing placeholders become wildcards", func(t *testing.T) {
		glob, err := tmpl.RenderGlob(map[string]any{"country": "de"})
		require.NoError(t, err)
		assert.Equal(t, "/data/de/*.json", glob)
	})

	t.Run("no constraints", func(t *testing.T) {
		glob, err := tmpl.RenderGlob(nil)
		require.NoError(t, err)
		assert.Equal(t, "/data/*/*.json", glob)
	})

	t.Run("fully constrained equals render", func(t *testing.T) {
		glob, err := tmpl.RenderGlob(map[string]any{"country": "de", "year": 2023})
		require.NoError(t, err)
		path, err := tmpl.Render(map[string]any{"country": "de", "year": 2023})
		require.NoError(t, err)
		assert.Equal(t, path, glob)
	})
}

func TestErrorsIs(t *testing.T) {
	_, err := Compile("/{x:q}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateSyntax))
}
