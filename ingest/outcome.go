// Package ingest walks a folder of documents, converts every file it can and
// turns the surviving documents into one ordered sequence of nodes.
package ingest

import (
	"github.com/gamma-omg/rag-ingest/chunker"
	"github.com/gamma-omg/rag-ingest/readers"
)

// Outcome is the result of converting a single file. Exactly one of Doc and
// Err is set.
type Outcome struct {
	Path   string
	Format readers.Format
	Doc    *chunker.Document
	Err    error
}

func (o Outcome) Success() bool {
	return o.Err == nil && o.Doc != nil
}

// Skipped reports a file that was left out of the node sequence.
type Skipped struct {
	Path string
	Kind string
	Err  error
}
