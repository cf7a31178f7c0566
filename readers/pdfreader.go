package readers

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

const (
	// heading thresholds relative to the body font size
	h1Ratio = 1.6
	h2Ratio = 1.3
	h3Ratio = 1.15

	maxHeadingLen = 200
)

// PdfFileReader extracts Markdown-flavoured text from PDF files. Headings are
// inferred from font sizes and paragraphs from vertical gaps between rows.
type PdfFileReader struct{}

type pdfLine struct {
	page int
	y    float64
	size float64
	text string
}

func (r *PdfFileReader) Format() Format {
	return PDF
}

func (r *PdfFileReader) ReadText(path string) (text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ioError("opening pdf file", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", ioError("reading pdf file", path, err)
	}

	doc, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", conversionError(PDF, path, err)
	}

	// the pdf package panics on some malformed content streams
	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = conversionError(PDF, path, fmt.Errorf("malformed document: %v", p))
		}
	}()

	var lines []pdfLine
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}

		lines = append(lines, pageLines(i, page)...)
	}

	text = strings.TrimSpace(renderMarkdown(lines))
	if text == "" {
		return "", conversionError(PDF, path, errors.New("no extractable text"))
	}

	return text, nil
}

func pageLines(num int, page pdf.Page) []pdfLine {
	rows, err := page.GetTextByRow()
	if err != nil {
		plain, err := page.GetPlainText(nil)
		if err != nil {
			return nil
		}

		var lines []pdfLine
		for _, l := range strings.Split(plain, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, pdfLine{page: num, text: l})
			}
		}
		return lines
	}

	sizes := fontSizes(page)
	lines := make([]pdfLine, 0, len(rows))
	for _, row := range rows {
		size := rowFontSize(sizes, row.Position)
		text := joinRow(row.Content, size)
		if text == "" {
			continue
		}

		lines = append(lines, pdfLine{
			page: num,
			y:    float64(row.Position),
			size: size,
			text: text,
		})
	}

	return lines
}

// fontSizes maps a truncated baseline to the largest glyph size drawn on it.
func fontSizes(page pdf.Page) (sizes map[int64]float64) {
	sizes = make(map[int64]float64)
	defer func() {
		if recover() != nil {
			sizes = map[int64]float64{}
		}
	}()

	for _, t := range page.Content().Text {
		key := int64(t.Y)
		if t.FontSize > sizes[key] {
			sizes[key] = t.FontSize
		}
	}

	return sizes
}

func rowFontSize(sizes map[int64]float64, pos int64) float64 {
	var size float64
	for d := int64(-1); d <= 1; d++ {
		size = math.Max(size, sizes[pos+d])
	}
	return size
}

func joinRow(row pdf.TextHorizontal, size float64) string {
	if size <= 0 {
		size = 10
	}

	var sb strings.Builder
	var prevEnd float64
	for i, t := range row {
		if t.S == "" {
			continue
		}

		if i > 0 && t.X-prevEnd > 0.2*size {
			if !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(t.S, " ") {
				sb.WriteByte(' ')
			}
		}

		sb.WriteString(t.S)
		// rows carry no glyph widths; estimate half an em per character
		prevEnd = t.X + float64(len([]rune(t.S)))*size*0.5
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

func renderMarkdown(lines []pdfLine) string {
	body := bodyFontSize(lines)
	pitch := linePitch(lines, body)

	var sb strings.Builder
	for i, l := range lines {
		level := headingLevel(l, body)
		if i > 0 {
			prev := lines[i-1]
			breakPara := level > 0 ||
				headingLevel(prev, body) > 0 ||
				prev.page != l.page ||
				prev.y-l.y > 1.5*pitch
			if breakPara {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString("\n")
			}
		}

		if level > 0 {
			sb.WriteString(strings.Repeat("#", level))
			sb.WriteByte(' ')
		}
		sb.WriteString(l.text)
	}

	return norm.NFKC.String(sb.String())
}

// bodyFontSize is the most common font size weighted by text length.
func bodyFontSize(lines []pdfLine) float64 {
	weights := make(map[float64]int)
	for _, l := range lines {
		if l.size > 0 {
			weights[math.Round(l.size*10)/10] += len(l.text)
		}
	}

	var body float64
	best := 0
	for size, w := range weights {
		if w > best || (w == best && size < body) {
			body, best = size, w
		}
	}

	return body
}

// linePitch is the median vertical distance between consecutive rows of a page.
func linePitch(lines []pdfLine, body float64) float64 {
	var gaps []float64
	for i := 1; i < len(lines); i++ {
		if lines[i].page != lines[i-1].page {
			continue
		}
		if gap := lines[i-1].y - lines[i].y; gap > 0 {
			gaps = append(gaps, gap)
		}
	}

	if len(gaps) == 0 {
		if body > 0 {
			return body * 1.2
		}
		return 12
	}

	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

func headingLevel(l pdfLine, body float64) int {
	if body <= 0 || l.size <= 0 || len(l.text) > maxHeadingLen {
		return 0
	}

	ratio := l.size / body
	switch {
	case ratio >= h1Ratio:
		return 1
	case ratio >= h2Ratio:
		return 2
	case ratio >= h3Ratio:
		return 3
	default:
		return 0
	}
}
