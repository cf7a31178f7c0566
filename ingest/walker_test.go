package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-omg/rag-ingest/readers"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func paths(outcomes []Outcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, filepath.Base(o.Path))
	}
	return out
}

type panicReader struct{}

func (r *panicReader) Format() readers.Format { return readers.Markdown }

func (r *panicReader) ReadText(path string) (string, error) { panic("boom") }

func Test_Walk(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.md":          "# B",
		"a.txt":         "plain a",
		"c.xyz":         "unknown",
		"noext":         "no extension",
		"sub/nested.md": "never visited",
	})

	w := NewWalker(nil, readers.NewRegistry(readers.Options{}), 1)
	outcomes, err := w.Walk(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.md", "c.xyz", "noext"}, paths(outcomes))

	assert.True(t, outcomes[0].Success())
	assert.Equal(t, "plain a", outcomes[0].Doc.Text)
	assert.Equal(t, filepath.Join(dir, "a.txt"), outcomes[0].Doc.Source)
	assert.Equal(t, readers.Markdown, outcomes[0].Format)

	assert.True(t, outcomes[1].Success())
	assert.Equal(t, "# B", outcomes[1].Doc.Text)

	for _, o := range outcomes[2:] {
		assert.False(t, o.Success())
		assert.Nil(t, o.Doc)
		assert.ErrorIs(t, o.Err, readers.ErrUnsupportedFormat)
		assert.Equal(t, readers.Unsupported, o.Format)
	}
}

func Test_Walk_Parallel(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{}
	var want []string
	for _, name := range []string{"01.md", "02.md", "03.txt", "04.md", "05.txt", "06.md", "07.md"} {
		files[name] = "content of " + name
		want = append(want, name)
	}
	writeFiles(t, dir, files)

	w := NewWalker(nil, readers.NewRegistry(readers.Options{}), 4)
	outcomes, err := w.Walk(dir)
	require.NoError(t, err)

	assert.Equal(t, want, paths(outcomes))
	for _, o := range outcomes {
		require.True(t, o.Success())
		assert.Equal(t, "content of "+filepath.Base(o.Path), o.Doc.Text)
	}
}

func Test_Walk_EmptyFolder(t *testing.T) {
	w := NewWalker(nil, readers.NewRegistry(readers.Options{}), 1)
	outcomes, err := w.Walk(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func Test_Walk_MissingFolder(t *testing.T) {
	w := NewWalker(nil, readers.NewRegistry(readers.Options{}), 1)
	_, err := w.Walk(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, readers.ErrIO)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func Test_Walk_ReaderPanic(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.md": "a", "b.txt": "b"})

	reg := readers.NewRegistry(readers.Options{})
	require.NoError(t, reg.Register(&panicReader{}))

	outcomes, err := NewWalker(nil, reg, 1).Walk(dir)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.False(t, o.Success())
		assert.ErrorIs(t, o.Err, readers.ErrConversion)
	}
}
