package readers

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// maxGridSpan is the widest table Word can produce.
const maxGridSpan = 63

const (
	docxDocument = "word/document.xml"
	docxRels     = "word/_rels/document.xml.rels"
	docxStyles   = "word/styles.xml"
	docxMedia    = "word/media/"
)

var builtinHeadings = map[string]int{
	"heading1": 1, "heading2": 2, "heading3": 3,
	"heading4": 4, "heading5": 5, "heading6": 6,
	"heading7": 6, "heading8": 6, "heading9": 6,
	"title": 1,
}

// DocxFileReader converts Word documents to Markdown. Embedded media is
// written to MediaDir when it is set.
type DocxFileReader struct {
	MediaDir       string
	MarkdownTables bool
}

type docxPackage struct {
	files    map[string]*zip.File
	rels     map[string]string
	headings map[string]int
	// mediaDir receives this document's media; empty when extraction is off
	mediaDir string
}

type docxBlock struct {
	text string
	list bool
}

func (r *DocxFileReader) Format() Format {
	return DOCX
}

func (r *DocxFileReader) ReadText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return "", ioError("opening docx file", path, err)
		}
		return "", conversionError(DOCX, path, err)
	}
	defer zr.Close()

	pkg := &docxPackage{
		files:    make(map[string]*zip.File, len(zr.File)),
		mediaDir: r.documentMediaDir(path),
	}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}

	if _, ok := pkg.files[docxDocument]; !ok {
		return "", conversionError(DOCX, path, fmt.Errorf("missing %s", docxDocument))
	}

	if err := pkg.parseRelationships(); err != nil {
		return "", conversionError(DOCX, path, err)
	}
	if err := pkg.parseStyles(); err != nil {
		return "", conversionError(DOCX, path, err)
	}

	if pkg.mediaDir != "" {
		if err := saveMedia(pkg.mediaDir, zr.File); err != nil {
			return "", err
		}
	}

	blocks, err := r.parseBody(pkg)
	if err != nil {
		return "", conversionError(DOCX, path, err)
	}

	return joinBlocks(blocks), nil
}

func (p *docxPackage) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return data, nil
}

func (p *docxPackage) parseRelationships() error {
	p.rels = make(map[string]string)

	data, err := p.read(docxRels)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return fmt.Errorf("unmarshaling relationships: %w", err)
	}

	for _, rel := range rels.Relationships {
		p.rels[rel.ID] = rel.Target
	}

	return nil
}

func (p *docxPackage) parseStyles() error {
	p.headings = make(map[string]int)
	for id, level := range builtinHeadings {
		p.headings[id] = level
	}

	data, err := p.read(docxStyles)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var styles stylesXML
	if err := xml.Unmarshal(data, &styles); err != nil {
		return fmt.Errorf("unmarshaling styles: %w", err)
	}

	for _, s := range styles.Styles {
		id := strings.ToLower(s.StyleID)
		switch {
		case s.PPr.OutlineLvl != nil:
			if lvl, err := strconv.Atoi(s.PPr.OutlineLvl.Val); err == nil && lvl >= 0 && lvl < 9 {
				p.headings[id] = min(lvl+1, 6)
			}
		case strings.HasPrefix(strings.ToLower(s.Name.Val), "heading "):
			if lvl, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(s.Name.Val), "heading ")); err == nil && lvl > 0 {
				p.headings[id] = min(lvl, 6)
			}
		}
	}

	return nil
}

// parseBody walks the document body in order so tables stay between the
// paragraphs that surround them.
func (r *DocxFileReader) parseBody(pkg *docxPackage) ([]docxBlock, error) {
	f := pkg.files[docxDocument]
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", docxDocument, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	inBody := false
	var blocks []docxBlock

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", docxDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = t.Name.Local == "body"
				continue
			}

			switch t.Name.Local {
			case "p":
				var p paragraphXML
				if err := dec.DecodeElement(&p, &t); err != nil {
					return nil, fmt.Errorf("parsing paragraph: %w", err)
				}
				if b, ok := r.renderParagraph(pkg, &p); ok {
					blocks = append(blocks, b)
				}
			case "tbl":
				var tbl tableXML
				if err := dec.DecodeElement(&tbl, &t); err != nil {
					return nil, fmt.Errorf("parsing table: %w", err)
				}
				text, err := r.renderTable(&tbl)
				if err != nil {
					return nil, err
				}
				if text != "" {
					blocks = append(blocks, docxBlock{text: text})
				}
			case "sdt", "sdtContent":
				// content controls wrap ordinary paragraphs and tables
			default:
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parsing %s: %w", docxDocument, err)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "body" {
				inBody = false
			}
		}
	}

	return blocks, nil
}

func (r *DocxFileReader) renderParagraph(pkg *docxPackage, p *paragraphXML) (docxBlock, bool) {
	text := strings.TrimSpace(p.text())

	var images []string
	for _, run := range p.Runs {
		for _, img := range run.Images {
			target, ok := pkg.rels[img.RelID]
			if !ok {
				continue
			}
			images = append(images, fmt.Sprintf("![%s](%s)", img.Alt, pkg.mediaRef(target)))
		}
	}
	if len(images) > 0 {
		text = strings.TrimSpace(text + " " + strings.Join(images, " "))
	}

	if text == "" {
		return docxBlock{}, false
	}

	if level := headingLevelOf(pkg, &p.Props); level > 0 {
		return docxBlock{text: strings.Repeat("#", level) + " " + text}, true
	}

	if p.Props.NumPr != nil {
		depth, _ := strconv.Atoi(p.Props.NumPr.Ilvl.Val)
		return docxBlock{text: strings.Repeat("  ", depth) + "- " + text, list: true}, true
	}

	return docxBlock{text: text}, true
}

func headingLevelOf(pkg *docxPackage, props *paragraphPropsXML) int {
	if props.OutlineLvl != nil {
		if lvl, err := strconv.Atoi(props.OutlineLvl.Val); err == nil && lvl >= 0 && lvl < 9 {
			return min(lvl+1, 6)
		}
	}

	return pkg.headings[strings.ToLower(props.Style.Val)]
}

func (r *DocxFileReader) renderTable(tbl *tableXML) (string, error) {
	var rows [][]string
	cols := 0
	for _, tr := range tbl.Rows {
		var row []string
		for i := range tr.Cells {
			cell := &tr.Cells[i]
			span, ok := cell.span()
			if !ok {
				return "", fmt.Errorf("invalid table cell span %q", cell.Props.GridSpan.Val)
			}

			text := cell.text()
			if cell.mergedContinuation() {
				text = ""
			}
			row = append(row, text)
			for j := 1; j < span; j++ {
				row = append(row, "")
			}
		}
		if len(row) > maxGridSpan {
			return "", fmt.Errorf("table row has %d columns, more than %d", len(row), maxGridSpan)
		}
		cols = max(cols, len(row))
		rows = append(rows, row)
	}

	if len(rows) == 0 || cols == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, row := range rows {
		for len(row) < cols {
			row = append(row, "")
		}

		if !r.MarkdownTables {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(strings.Join(row, "\t"))
			continue
		}

		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(strings.ReplaceAll(cell, "|", `\|`))
			sb.WriteString(" |")
		}
		sb.WriteByte('\n')

		if i == 0 {
			sb.WriteString("|")
			for range cols {
				sb.WriteString(" --- |")
			}
			sb.WriteByte('\n')
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

// documentMediaDir gives every document its own folder under MediaDir, named
// after the file, since Word reuses media names such as image1.png.
func (r *DocxFileReader) documentMediaDir(docPath string) string {
	if r.MediaDir == "" {
		return ""
	}

	base := filepath.Base(docPath)
	return filepath.Join(r.MediaDir, strings.TrimSuffix(base, filepath.Ext(base)))
}

func (p *docxPackage) mediaRef(target string) string {
	name := path.Base(target)
	if p.mediaDir == "" {
		return "media/" + name
	}
	return filepath.ToSlash(filepath.Join(p.mediaDir, name))
}

func saveMedia(dir string, files []*zip.File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError("creating media dir", dir, err)
	}

	for _, f := range files {
		if !strings.HasPrefix(f.Name, docxMedia) || f.FileInfo().IsDir() {
			continue
		}

		// path.Base keeps writes inside dir whatever the archive name holds
		name := path.Base(f.Name)
		if name == "." || name == ".." || name == "/" {
			continue
		}

		dst := filepath.Join(dir, name)
		if err := writeMedia(f, dst); err != nil {
			return ioError("writing media", dst, err)
		}
	}

	return nil
}

func writeMedia(f *zip.File, dst string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, rc)
	return err
}

func joinBlocks(blocks []docxBlock) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			if b.list && blocks[i-1].list {
				sb.WriteByte('\n')
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(b.text)
	}
	return sb.String()
}
