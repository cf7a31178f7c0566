package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/gamma-omg/rag-ingest/chunker"
	"github.com/gamma-omg/rag-ingest/readers"
)

// Resolver maps a file path to the reader for its format.
type Resolver interface {
	Resolve(path string) (readers.FileReader, error)
}

// Walker converts the direct entries of a folder. Entries are visited in
// lexicographic filename order; subdirectories are skipped, never recursed.
type Walker struct {
	log      *slog.Logger
	resolver Resolver
	workers  int
}

func NewWalker(log *slog.Logger, resolver Resolver, workers int) *Walker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Walker{
		log:      log,
		resolver: resolver,
		workers:  max(workers, 1),
	}
}

// Walk returns one outcome per file in folder. It fails only when the folder
// itself cannot be read; per-file failures are reported in the outcomes.
func (w *Walker) Walk(folder string) ([]Outcome, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w: %w", folder, readers.ErrIO, err)
	}

	// os.ReadDir sorts entries by filename
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(folder, e.Name())
		if isDir(e, path) {
			w.log.Debug("skipping subdirectory", slog.String("path", path))
			continue
		}

		paths = append(paths, path)
	}

	outcomes := make([]Outcome, len(paths))
	if w.workers == 1 {
		for i, path := range paths {
			outcomes[i] = w.parse(path)
		}
		return outcomes, nil
	}

	var g errgroup.Group
	g.SetLimit(w.workers)
	for i, path := range paths {
		g.Go(func() error {
			outcomes[i] = w.parse(path)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (w *Walker) parse(path string) (o Outcome) {
	o = Outcome{Path: path, Format: readers.Detect(path)}
	defer func() {
		if p := recover(); p != nil {
			o.Doc = nil
			o.Err = fmt.Errorf("failed to read %s: %w: %v", path, readers.ErrConversion, p)
		}
	}()

	reader, err := w.resolver.Resolve(path)
	if err != nil {
		o.Err = err
		return o
	}

	text, err := reader.ReadText(path)
	if err != nil {
		o.Err = err
		return o
	}

	o.Doc = &chunker.Document{Text: text, Source: path}
	return o
}

func isDir(e os.DirEntry, path string) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}

	// broken links fall through and fail in the reader
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
