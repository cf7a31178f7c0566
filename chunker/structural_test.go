package chunker

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func paragraph(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func Test_Chunk_ShortDocument(t *testing.T) {
	c := New(DefaultConfig())
	doc := Document{Text: "# Title\n\nShort paragraph.", Source: "a.md"}

	nodes := c.Chunk(doc, DefaultMaxLen)

	require.Len(t, nodes, 1)
	assert.Equal(t, "# Title\n\nShort paragraph.", nodes[0].Content)
	assert.Equal(t, "Title", nodes[0].Section)
	assert.Equal(t, "a.md", nodes[0].Source)
	assert.Equal(t, KindStructural, nodes[0].Kind)
	assert.Equal(t, 25, nodes[0].Size)
}

func Test_Chunk_Empty(t *testing.T) {
	c := New(DefaultConfig())
	assert.Empty(t, c.Chunk(Document{Text: ""}, DefaultMaxLen))
	assert.Empty(t, c.Chunk(Document{Text: " \n\n\t\n"}, DefaultMaxLen))
}

func Test_Chunk_SectionPerHeading(t *testing.T) {
	c := New(DefaultConfig())
	text := "Preamble text.\n\n# One\n\nFirst body.\n\n## Two\n\nSecond body.\n\n- item a\n- item b\n"

	nodes := c.Chunk(Document{Text: text, Source: "s.md"}, DefaultMaxLen)

	require.Len(t, nodes, 3)
	assert.Equal(t, "Preamble text.", nodes[0].Content)
	assert.Equal(t, "", nodes[0].Section)
	assert.Equal(t, "# One\n\nFirst body.", nodes[1].Content)
	assert.Equal(t, "One", nodes[1].Section)
	assert.Equal(t, "## Two\n\nSecond body.\n\n- item a\n- item b", nodes[2].Content)
	assert.Equal(t, "Two", nodes[2].Section)
}

func Test_Chunk_SetextHeading(t *testing.T) {
	c := New(DefaultConfig())
	text := "Intro\n\nTitle\n=====\n\nBody."

	nodes := c.Chunk(Document{Text: text}, DefaultMaxLen)

	require.Len(t, nodes, 2)
	assert.Equal(t, "Title\n=====\n\nBody.", nodes[1].Content)
	assert.Equal(t, "Title", nodes[1].Section)
}

func Test_Chunk_PacksLongSection(t *testing.T) {
	c := New(DefaultConfig())
	p1 := paragraph("alpha", 16)
	p2 := paragraph("beta", 20)
	p3 := paragraph("gamma", 16)
	text := "# H\n\n" + p1 + "\n\n" + p2 + "\n\n" + p3 + "\n"

	nodes := c.Chunk(Document{Text: text}, DefaultMaxLen)

	require.Len(t, nodes, 2)
	assert.Equal(t, "# H\n\n"+p1+"\n\n"+p2, nodes[0].Content)
	assert.Equal(t, p3, nodes[1].Content)
	for _, n := range nodes {
		assert.LessOrEqual(t, n.Size, DefaultMaxLen)
		assert.Equal(t, "H", n.Section)
		assert.Equal(t, KindStructural, n.Kind)
	}
}

func Test_Chunk_OversizedBlockIsCandidate(t *testing.T) {
	c := New(DefaultConfig())
	long := strings.Repeat("x", 600)

	nodes := c.Chunk(Document{Text: long}, DefaultMaxLen)

	require.Len(t, nodes, 1)
	assert.Equal(t, long, nodes[0].Content)
	assert.Equal(t, 600, nodes[0].Size)
	assert.Equal(t, KindStructural, nodes[0].Kind)
}

func Test_Chunk_PreservesText(t *testing.T) {
	c := New(Config{MaxLen: 64, Overlap: 8})
	text := strings.Join([]string{
		"Leading words before any heading.",
		"# Chapter",
		paragraph("lorem", 20),
		"```go\nfunc main() {}\n```",
		"## Nested",
		"- one\n- two\n  - two and a half\n- three",
		"> quoted " + paragraph("text", 15),
		"| a | b |\n| --- | --- |\n| 1 | 2 |",
		"Tail.",
	}, "\n\n")

	nodes := c.Chunk(Document{Text: text}, 64)

	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(n.Content)
	}
	assert.Equal(t, stripSpace(text), stripSpace(sb.String()))
}

func Test_Chunk_AtomicCode(t *testing.T) {
	code := "```go\n" + strings.Repeat("x := compute(1)\n", 30) + "```"
	text := "# Code\n\nSee below.\n\n" + code + "\n\nAfter."

	t.Run("atomic", func(t *testing.T) {
		c := New(Config{MaxLen: DefaultMaxLen, Overlap: DefaultOverlap, AtomicCode: true})
		nodes := c.Chunk(Document{Text: text}, DefaultMaxLen)

		require.Len(t, nodes, 3)
		assert.Equal(t, code, nodes[1].Content)
		assert.Equal(t, KindAtomic, nodes[1].Kind)
		assert.Greater(t, nodes[1].Size, DefaultMaxLen)
	})

	t.Run("not_atomic", func(t *testing.T) {
		c := New(DefaultConfig())
		nodes := c.Chunk(Document{Text: text}, DefaultMaxLen)

		require.Len(t, nodes, 3)
		assert.Equal(t, code, nodes[1].Content)
		assert.Equal(t, KindStructural, nodes[1].Kind)
	})
}

func Test_Chunk_AtomicTable(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("| name | value |\n| --- | --- |\n")
	for range 20 {
		sb.WriteString("| some name | some value |\n")
	}
	table := strings.TrimSpace(sb.String())
	text := "# Data\n\n" + table

	c := New(Config{MaxLen: DefaultMaxLen, Overlap: DefaultOverlap, AtomicTables: true})
	nodes := c.Chunk(Document{Text: text}, DefaultMaxLen)

	require.Len(t, nodes, 2)
	assert.Equal(t, "# Data", nodes[0].Content)
	assert.Equal(t, table, nodes[1].Content)
	assert.Equal(t, KindAtomic, nodes[1].Kind)
}
