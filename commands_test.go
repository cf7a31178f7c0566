package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-omg/rag-ingest/chunker"
	"github.com/gamma-omg/rag-ingest/docstore"
	"github.com/gamma-omg/rag-ingest/ingest"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCmdWithConfig(t, &app{}, "log_level: warn\n", args...)
}

func runCmdWithConfig(t *testing.T, a *app, cfg string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config", writeConfig(t, cfg), "--env", ""))

	err := a.execute(context.Background(), root)
	return stdout.String(), stderr.String(), err
}

func Test_IngestCmd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# Title\n\nShort paragraph."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte(strings.Repeat("x", 600)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.docx"), []byte("not a zip"), 0o644))

	stdout, stderr, err := runCmd(t, "ingest", dir)
	require.NoError(t, err)

	assert.Equal(t, "25\n256\n256\n128\n", stdout)
	assert.Contains(t, stderr, "c.docx (conversion_failure)")
}

func Test_IngestCmd_NoDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.docx"), []byte("not a zip"), 0o644))

	stdout, _, err := runCmd(t, "ingest", dir)
	assert.ErrorIs(t, err, ingest.ErrNoDocuments)
	assert.Empty(t, stdout)
}

func Test_IngestCmd_UnreadableFolder(t *testing.T) {
	_, _, err := runCmd(t, "ingest", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func Test_GroupBySource(t *testing.T) {
	nodes := []chunker.Node{
		{Content: "a1", Source: "a.md"},
		{Content: "a2", Source: "a.md"},
		{Content: "b1", Source: "b.md"},
	}

	docs := groupBySource(nodes)

	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].File)
	assert.Len(t, docs[0].Nodes, 2)
	assert.Equal(t, "b.md", docs[1].File)
	assert.Equal(t, "b1", docs[1].Nodes[0].Content)
}

func Test_Index(t *testing.T) {
	ctx := context.Background()
	store, err := docstore.NewChromemStore(docstore.ChromemStoreConfig{
		EmbeddingFunc: func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text)), 1}, nil
		},
	})
	require.NoError(t, err)

	a := &app{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	first := []chunker.Node{
		{Content: "one", Source: "a.md"},
		{Content: "two", Source: "a.md"},
		{Content: "three", Source: "b.md"},
	}
	chunker.Number(first)
	require.NoError(t, a.index(ctx, store, first))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// a.md shrank to a single node; its stale node must go
	second := []chunker.Node{{Content: "one, edited", Source: "a.md"}}
	chunker.Number(second)
	require.NoError(t, a.index(ctx, store, second))

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func Test_Execute_ClosesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ingest.log")
	cfg := "log_level: info\nlog: " + logPath + "\n"

	var folders = []string{
		filepath.Join(t.TempDir(), "missing"),
		t.TempDir(),
	}

	for i, folder := range folders {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			a := &app{}
			_, _, err := runCmdWithConfig(t, a, cfg, "ingest", folder)
			assert.Error(t, err)

			assert.Nil(t, a.closeLog)
			assert.NoError(t, a.close())
		})
	}

	// the empty folder run logs its summary before failing
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
