package docstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// ChromemStore keeps nodes in an embedded chromem-go database, in memory or
// persisted under a directory.
type ChromemStore struct {
	log           *slog.Logger
	results       int
	requestSize   int
	minSimilarity float32
	col           *chromem.Collection
}

type ChromemStoreConfig struct {
	Options
	// Path of the persistent database. Empty keeps everything in memory.
	Path          string
	Compress      bool
	EmbeddingFunc chromem.EmbeddingFunc
	Log           *slog.Logger
}

func NewChromemStore(cfg ChromemStoreConfig) (*ChromemStore, error) {
	opts := cfg.Options.withDefaults()

	db := chromem.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
		}
	}

	if opts.Reset {
		if err := db.DeleteCollection(opts.Collection); err != nil {
			return nil, fmt.Errorf("failed to reset collection %s: %w", opts.Collection, err)
		}
	}

	col, err := db.GetOrCreateCollection(opts.Collection, nil, cfg.EmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", opts.Collection, err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &ChromemStore{
		log:           log,
		results:       opts.Results,
		requestSize:   opts.RequestSize,
		minSimilarity: opts.MinSimilarity,
		col:           col,
	}, nil
}

// Injest adds the nodes of doc. Documents with an existing ID are replaced.
func (ds *ChromemStore) Injest(ctx context.Context, doc Doc) error {
	for i, bucket := range buckets(doc.Nodes, ds.requestSize) {
		docs := make([]chromem.Document, 0, len(bucket))
		for _, n := range bucket {
			docs = append(docs, chromem.Document{
				ID:      n.ID,
				Content: n.Content,
				Metadata: map[string]string{
					FilePath: doc.File,
					Section:  n.Section,
					NodeKind: string(n.Kind),
					Order:    strconv.Itoa(n.Order),
				},
			})
		}

		ds.log.Debug("adding batch",
			slog.String("file", doc.File),
			slog.Int("batch", i),
			slog.Int("nodes", len(bucket)))

		if err := ds.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to injest doc %s: %w", doc.File, err)
		}
	}

	return nil
}

func (ds *ChromemStore) Retrieve(ctx context.Context, query string) ([]SearchResult, error) {
	// chromem rejects requests for more results than the collection holds
	n := min(ds.results, ds.col.Count())
	if n == 0 {
		return nil, nil
	}

	r, err := ds.col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve texts: %w", err)
	}

	res := make([]SearchResult, 0, len(r))
	for _, doc := range r {
		if doc.Similarity < ds.minSimilarity {
			continue
		}

		res = append(res, SearchResult{
			Text:    doc.Content,
			File:    doc.Metadata[FilePath],
			Section: doc.Metadata[Section],
			Score:   doc.Similarity,
		})
	}

	return res, nil
}

func (ds *ChromemStore) Forget(ctx context.Context, file string) error {
	err := ds.col.Delete(ctx, map[string]string{FilePath: file}, nil)
	if err != nil {
		return fmt.Errorf("failed to forget doc %s: %w", file, err)
	}

	return nil
}

func (ds *ChromemStore) Count(ctx context.Context) (int, error) {
	return ds.col.Count(), nil
}
