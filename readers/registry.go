package readers

import (
	"fmt"
)

// FileReader converts a single file into normalized text.
type FileReader interface {
	Format() Format
	ReadText(path string) (string, error)
}

// Options configures the readers installed by NewRegistry.
type Options struct {
	// MediaDir receives media embedded in DOCX files. Empty disables extraction.
	MediaDir string
	// MarkdownTables renders DOCX tables as Markdown tables instead of tab-separated rows.
	MarkdownTables bool
}

// Registry dispatches files to readers by extension.
type Registry struct {
	readers map[Format]FileReader
}

// NewRegistry returns a registry with a reader installed for every supported format.
func NewRegistry(opts Options) *Registry {
	r := &Registry{readers: make(map[Format]FileReader, len(Formats))}
	r.readers[PDF] = &PdfFileReader{}
	r.readers[DOCX] = &DocxFileReader{MediaDir: opts.MediaDir, MarkdownTables: opts.MarkdownTables}
	r.readers[Markdown] = &TxtFileReader{}
	r.readers[ODT] = &OdtFileReader{}
	r.readers[HTML] = &HtmlFileReader{}
	return r
}

// Register replaces the reader for the formats the given readers handle.
func (r *Registry) Register(readers ...FileReader) error {
	for _, fr := range readers {
		if fr.Format() == Unsupported {
			return fmt.Errorf("cannot register reader for %s files", fr.Format())
		}
		r.readers[fr.Format()] = fr
	}

	return nil
}

// Resolve returns the reader for path or an *UnsupportedFormatError.
func (r *Registry) Resolve(path string) (FileReader, error) {
	format := Detect(path)
	reader, ok := r.readers[format]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: Ext(path)}
	}

	return reader, nil
}
