package readers

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of document formats the registry can dispatch to.
type Format int

const (
	Unsupported Format = iota
	PDF
	DOCX
	Markdown
	ODT
	HTML
)

// Formats lists every supported format.
var Formats = []Format{PDF, DOCX, Markdown, ODT, HTML}

func (f Format) String() string {
	switch f {
	case PDF:
		return "pdf"
	case DOCX:
		return "docx"
	case Markdown:
		return "markdown"
	case ODT:
		return "odt"
	case HTML:
		return "html"
	default:
		return "unsupported"
	}
}

// Detect maps the lowercase file extension to a Format.
func Detect(path string) Format {
	switch Ext(path) {
	case ".pdf":
		return PDF
	case ".docx":
		return DOCX
	case ".md", ".markdown", ".txt":
		return Markdown
	case ".odt":
		return ODT
	case ".html", ".htm":
		return HTML
	default:
		return Unsupported
	}
}

// Ext returns the lowercase extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
