// Package chunker splits normalized documents into bounded-size nodes: first
// along Markdown structure, then with fixed-size overlapping windows for
// anything still too long.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	DefaultMaxLen  = 256
	DefaultOverlap = 20
)

// Kind records which stage produced a node.
type Kind string

const (
	KindStructural Kind = "structural"
	KindFallback   Kind = "fallback"
	// KindAtomic nodes are code blocks or tables kept whole by policy; they
	// are the only nodes allowed to exceed the size limit.
	KindAtomic Kind = "atomic"
)

var nodeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/gamma-omg/rag-ingest/node"))

// Document is the normalized text of one source file.
type Document struct {
	Text   string
	Source string
}

// Node is a unit of text with source attribution, the unit that gets indexed.
type Node struct {
	ID      string
	Content string
	Order   int
	Source  string
	Size    int
	Section string
	Kind    Kind
}

// Config holds the size limits and the atomic-block policy.
type Config struct {
	MaxLen       int
	Overlap      int
	AtomicCode   bool
	AtomicTables bool
}

func DefaultConfig() Config {
	return Config{
		MaxLen:  DefaultMaxLen,
		Overlap: DefaultOverlap,
	}
}

func (c Config) Validate() error {
	if c.MaxLen <= 0 {
		return fmt.Errorf("max length must be positive, got %d", c.MaxLen)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.MaxLen {
		return errors.New("overlap must be smaller than max length")
	}

	return nil
}

func newNode(content, source, section string, kind Kind) Node {
	return Node{
		Content: content,
		Source:  source,
		Section: section,
		Size:    utf8.RuneCountInString(content),
		Kind:    kind,
	}
}

// Number assigns sequence positions and content-derived IDs. The same input
// always yields the same IDs, so re-indexing overwrites instead of duplicating.
func Number(nodes []Node) {
	for i := range nodes {
		nodes[i].Order = i
		key := nodes[i].Source + "\x00" + strconv.Itoa(i) + "\x00" + nodes[i].Content
		nodes[i].ID = uuid.NewSHA1(nodeNamespace, []byte(key)).String()
	}
}
