package docstore

import (
	"context"

	"github.com/gamma-omg/rag-ingest/chunker"
)

// Metadata keys stored with every node.
const (
	FilePath = "file_path"
	Section  = "section"
	Order    = "order"
	NodeKind = "kind"
)

// Doc is the node sequence of a single source file.
type Doc struct {
	File  string
	Nodes []chunker.Node
}

type SearchResult struct {
	Text    string
	File    string
	Section string
	Score   float32
}

// Store indexes nodes and answers similarity queries over them.
type Store interface {
	Injest(ctx context.Context, doc Doc) error
	Retrieve(ctx context.Context, query string) ([]SearchResult, error)
	Forget(ctx context.Context, file string) error
	Count(ctx context.Context) (int, error)
}

// Options shared by both store backends.
type Options struct {
	Collection    string
	Results       int
	RequestSize   int
	MinSimilarity float32
	Reset         bool
}

const (
	DefaultCollection    = "documents"
	DefaultResults       = 10
	DefaultMinSimilarity = 0.7
)

func (o Options) withDefaults() Options {
	if o.Collection == "" {
		o.Collection = DefaultCollection
	}
	if o.Results <= 0 {
		o.Results = DefaultResults
	}
	return o
}
