package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gamma-omg/rag-ingest/chunker"
	"github.com/gamma-omg/rag-ingest/readers"
)

// ErrNoDocuments is returned when every file in the folder failed to convert.
var ErrNoDocuments = errors.New("no documents survived parsing")

type folderWalker interface {
	Walk(folder string) ([]Outcome, error)
}

// Config controls chunk sizes and conversion parallelism.
type Config struct {
	Chunking chunker.Config
	Workers  int
}

// Result is the flat node sequence of an ingestion run together with the
// files that were left out.
type Result struct {
	Nodes     []chunker.Node
	Skipped   []Skipped
	Documents int
}

// Pipeline runs walker, filter, structural chunker and fallback splitter.
type Pipeline struct {
	log     *slog.Logger
	walker  folderWalker
	chunker *chunker.Chunker
	cfg     chunker.Config
}

func NewPipeline(log *slog.Logger, resolver Resolver, cfg Config) (*Pipeline, error) {
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		log:     log,
		walker:  NewWalker(log, resolver, cfg.Workers),
		chunker: chunker.New(cfg.Chunking),
		cfg:     cfg.Chunking,
	}, nil
}

// Ingest converts every file in folder and returns the nodes of the documents
// that converted successfully, grouped by file in walk order and in text
// order within a file. Failed files never reach the chunker; they are listed
// in Result.Skipped. ErrNoDocuments is returned alongside the result when
// nothing survives.
func (p *Pipeline) Ingest(folder string) (*Result, error) {
	outcomes, err := p.walker.Walk(folder)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, o := range outcomes {
		if !o.Success() {
			kind := readers.Kind(o.Err)
			if o.Err == nil {
				kind = "empty_outcome"
			}
			p.log.Warn("skipping file",
				slog.String("path", o.Path),
				slog.String("kind", kind),
				slog.Any("error", o.Err))
			res.Skipped = append(res.Skipped, Skipped{Path: o.Path, Kind: kind, Err: o.Err})
			continue
		}

		nodes := p.Chunk(*o.Doc)
		p.log.Debug("document chunked",
			slog.String("path", o.Path),
			slog.String("format", o.Format.String()),
			slog.Int("nodes", len(nodes)))

		res.Documents++
		res.Nodes = append(res.Nodes, nodes...)
	}

	chunker.Number(res.Nodes)

	if res.Documents == 0 {
		return res, fmt.Errorf("ingesting %s: %w", folder, ErrNoDocuments)
	}

	return res, nil
}

// Chunk splits a single document, replacing every over-length candidate in
// place with its fallback windows. Atomic candidates are kept whole.
func (p *Pipeline) Chunk(doc chunker.Document) []chunker.Node {
	candidates := p.chunker.Chunk(doc, p.cfg.MaxLen)
	nodes := make([]chunker.Node, 0, len(candidates))

	for _, c := range candidates {
		if c.Size > p.cfg.MaxLen && c.Kind != chunker.KindAtomic {
			nodes = append(nodes, chunker.Split(c, p.cfg.MaxLen, p.cfg.Overlap)...)
			continue
		}
		nodes = append(nodes, c)
	}

	return nodes
}
