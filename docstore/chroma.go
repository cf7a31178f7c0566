package docstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// chromaCollection is the part of chroma.Collection the store uses.
type chromaCollection interface {
	Upsert(ctx context.Context, opts ...chroma.CollectionAddOption) error
	Query(ctx context.Context, opts ...chroma.CollectionQueryOption) (chroma.QueryResult, error)
	Delete(ctx context.Context, opts ...chroma.CollectionDeleteOption) error
	Count(ctx context.Context) (int, error)
}

// ChromaStore keeps nodes in a remote Chroma server.
type ChromaStore struct {
	log           *slog.Logger
	results       int
	requestSize   int
	minSimilarity float32
	col           chromaCollection
}

type ChromaStoreConfig struct {
	Options
	BaseURL       string
	EmbeddingFunc embeddings.EmbeddingFunction
	Log           *slog.Logger
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig) (*ChromaStore, error) {
	opts := cfg.Options.withDefaults()

	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	if opts.Reset {
		// a missing collection fails the delete; connectivity is checked below
		if err := client.DeleteCollection(ctx, opts.Collection); err != nil && cfg.Log != nil {
			cfg.Log.Warn("failed to reset collection",
				slog.String("collection", opts.Collection),
				slog.Any("error", err))
		}
	}

	col, err := client.GetOrCreateCollection(ctx, opts.Collection, createOptions(cfg.EmbeddingFunc)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", opts.Collection, err)
	}

	return newChromaStore(cfg.Log, col, opts), nil
}

// createOptions puts new collections in cosine space, which Retrieve relies
// on to turn distances into similarities.
func createOptions(ef embeddings.EmbeddingFunction) []chroma.CreateCollectionOption {
	opts := []chroma.CreateCollectionOption{chroma.WithHNSWSpaceCreate(embeddings.COSINE)}
	if ef != nil {
		opts = append(opts, chroma.WithEmbeddingFunctionCreate(ef))
	}
	return opts
}

func newChromaStore(log *slog.Logger, col chromaCollection, opts Options) *ChromaStore {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &ChromaStore{
		log:           log,
		results:       opts.Results,
		requestSize:   opts.RequestSize,
		minSimilarity: opts.MinSimilarity,
		col:           col,
	}
}

// Injest upserts the nodes of doc by node ID, one request per bucket.
func (ds *ChromaStore) Injest(ctx context.Context, doc Doc) error {
	for i, bucket := range buckets(doc.Nodes, ds.requestSize) {
		ids := make([]chroma.DocumentID, 0, len(bucket))
		texts := make([]string, 0, len(bucket))
		metas := make([]chroma.DocumentMetadata, 0, len(bucket))
		for _, n := range bucket {
			ids = append(ids, chroma.DocumentID(n.ID))
			texts = append(texts, n.Content)
			metas = append(metas, chroma.NewDocumentMetadata(
				chroma.NewStringAttribute(FilePath, doc.File),
				chroma.NewStringAttribute(Section, n.Section),
				chroma.NewStringAttribute(NodeKind, string(n.Kind)),
				chroma.NewIntAttribute(Order, int64(n.Order)),
			))
		}

		ds.log.Debug("upserting batch",
			slog.String("file", doc.File),
			slog.Int("batch", i),
			slog.Int("nodes", len(bucket)))

		err := ds.col.Upsert(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to injest doc %s: %w", doc.File, err)
		}
	}

	return nil
}

func (ds *ChromaStore) Retrieve(ctx context.Context, query string) ([]SearchResult, error) {
	r, err := ds.col.Query(ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(ds.results),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve texts: %w", err)
	}

	docGroups := r.GetDocumentsGroups()
	if len(docGroups) == 0 {
		return nil, nil
	}

	docs := docGroups[0]
	metadatas := r.GetMetadatasGroups()[0]
	distances := r.GetDistancesGroups()[0]

	res := make([]SearchResult, 0, len(docs))
	for i := range len(docs) {
		// collections are created in cosine space, see createOptions
		score := 1 - float32(distances[i])
		if score < ds.minSimilarity {
			continue
		}

		file, _ := metadatas[i].GetString(FilePath)
		section, _ := metadatas[i].GetString(Section)
		res = append(res, SearchResult{
			Text:    docs[i].ContentString(),
			File:    file,
			Section: section,
			Score:   score,
		})
	}

	return res, nil
}

func (ds *ChromaStore) Forget(ctx context.Context, file string) error {
	err := ds.col.Delete(ctx, chroma.WithWhereDelete(chroma.EqString(FilePath, file)))
	if err != nil {
		return fmt.Errorf("failed to forget doc %s: %w", file, err)
	}

	return nil
}

func (ds *ChromaStore) Count(ctx context.Context) (int, error) {
	n, err := ds.col.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}

	return n, nil
}
