package chunker

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Chunker partitions Markdown text into candidate nodes along structural
// boundaries. Every heading opens a section that runs to the next heading;
// sections longer than the limit are packed block by block.
type Chunker struct {
	cfg Config
	md  goldmark.Markdown
}

// block is a top-level Markdown block (or a top-level list item) identified
// by the byte offset of the line it starts on.
type block struct {
	start   int
	end     int
	heading string
	atomic  bool
}

type section struct {
	heading string
	blocks  []block
}

func New(cfg Config) *Chunker {
	return &Chunker{
		cfg: cfg,
		md:  goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Chunk splits doc into candidate nodes. The candidates are consecutive slices
// of doc.Text with boundary whitespace trimmed, so joining them reproduces the
// text up to that whitespace. A candidate may still exceed maxLen when a
// single block does.
func (c *Chunker) Chunk(doc Document, maxLen int) []Node {
	src := []byte(doc.Text)
	var nodes []Node

	for _, sec := range c.sections(src) {
		first, last := sec.blocks[0], sec.blocks[len(sec.blocks)-1]
		content := trimmed(src, first.start, last.end)
		if content == "" {
			continue
		}

		if runeLen(content) <= maxLen {
			nodes = append(nodes, newNode(content, doc.Source, sec.heading, KindStructural))
			continue
		}

		nodes = append(nodes, c.pack(src, sec, maxLen, doc.Source)...)
	}

	return nodes
}

// pack greedily merges consecutive blocks of an over-length section while the
// merged text fits in maxLen.
func (c *Chunker) pack(src []byte, sec section, maxLen int, source string) []Node {
	var nodes []Node
	start, end := -1, -1

	flush := func() {
		if start < 0 {
			return
		}
		if content := trimmed(src, start, end); content != "" {
			nodes = append(nodes, newNode(content, source, sec.heading, KindStructural))
		}
		start, end = -1, -1
	}

	for _, b := range sec.blocks {
		content := trimmed(src, b.start, b.end)
		if content == "" {
			if start >= 0 {
				end = b.end
			}
			continue
		}

		if runeLen(content) > maxLen {
			flush()
			kind := KindStructural
			if b.atomic {
				kind = KindAtomic
			}
			nodes = append(nodes, newNode(content, source, sec.heading, kind))
			continue
		}

		if start >= 0 && runeLen(trimmed(src, start, b.end)) <= maxLen {
			end = b.end
			continue
		}

		flush()
		start, end = b.start, b.end
	}
	flush()

	return nodes
}

func (c *Chunker) sections(src []byte) []section {
	blocks := c.blocks(src)
	if len(blocks) == 0 {
		if len(bytes.TrimSpace(src)) == 0 {
			return nil
		}
		return []section{{blocks: []block{{start: 0, end: len(src)}}}}
	}

	// the first block absorbs any leading whitespace so nothing is dropped
	blocks[0].start = 0

	var sections []section
	for i, b := range blocks {
		if i+1 < len(blocks) {
			b.end = blocks[i+1].start
		} else {
			b.end = len(src)
		}

		if len(sections) == 0 || b.heading != "" {
			sections = append(sections, section{heading: b.heading})
		}

		last := &sections[len(sections)-1]
		last.blocks = append(last.blocks, b)
	}

	return sections
}

func (c *Chunker) blocks(src []byte) []block {
	root := c.md.Parser().Parse(text.NewReader(src))

	var blocks []block
	add := func(b block) {
		// blocks without a locatable start stay attached to their predecessor
		if len(blocks) > 0 && b.start <= blocks[len(blocks)-1].start {
			return
		}
		blocks = append(blocks, b)
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		start, ok := blockStart(n, src)
		if !ok {
			continue
		}

		switch node := n.(type) {
		case *ast.Heading:
			heading := headingText(node, src)
			if heading == "" {
				heading = strings.TrimSpace(string(src[start:lineEnd(src, start)]))
			}
			add(block{start: start, heading: heading})
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if s, ok := blockStart(item, src); ok {
					add(block{start: s})
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			add(block{start: start, atomic: c.cfg.AtomicCode})
		case *east.Table:
			add(block{start: start, atomic: c.cfg.AtomicTables})
		default:
			add(block{start: start})
		}
	}

	return blocks
}

// blockStart finds the start of the first source line that belongs to n.
func blockStart(n ast.Node, src []byte) (int, bool) {
	if fc, ok := n.(*ast.FencedCodeBlock); ok {
		if fc.Info != nil {
			return lineStart(src, fc.Info.Segment.Start), true
		}
		if fc.Lines().Len() > 0 {
			// the opening fence is the line above the first content line
			first := lineStart(src, fc.Lines().At(0).Start)
			if first == 0 {
				return 0, true
			}
			return lineStart(src, first-1), true
		}
		return 0, false
	}

	start := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		pos := -1
		if c.Type() == ast.TypeBlock {
			if lines := c.Lines(); lines != nil && lines.Len() > 0 {
				pos = lines.At(0).Start
			}
		} else if t, ok := c.(*ast.Text); ok {
			pos = t.Segment.Start
		}

		if pos >= 0 && (start < 0 || pos < start) {
			start = pos
		}
		return ast.WalkContinue, nil
	})

	if start < 0 {
		return 0, false
	}
	return lineStart(src, start), true
}

func headingText(h *ast.Heading, src []byte) string {
	lines := h.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, string(seg.Value(src)))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func lineStart(src []byte, pos int) int {
	pos = min(pos, len(src))
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

func lineEnd(src []byte, pos int) int {
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(src)
}

func trimmed(src []byte, start, end int) string {
	return strings.TrimSpace(string(src[start:end]))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
