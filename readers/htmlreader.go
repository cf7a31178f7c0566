package readers

import (
	"errors"
	"os"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are removed before conversion; they carry no document text.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer",
	"iframe", "video", "audio",
	"svg", "canvas",
	"form", "button", "input", "select", "textarea",
}

// HtmlFileReader converts the main content of an HTML file to Markdown.
type HtmlFileReader struct{}

func (r *HtmlFileReader) Format() Format {
	return HTML
}

func (r *HtmlFileReader) ReadText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ioError("opening html file", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", conversionError(HTML, path, err)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var content *goquery.Selection
	for _, tag := range []string{"main", "article", "body"} {
		sel := doc.Find(tag)
		if sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		return "", conversionError(HTML, path, errors.New("no content container found"))
	}

	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return "", conversionError(HTML, path, err)
	}

	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", conversionError(HTML, path, err)
	}

	return strings.TrimSpace(md), nil
}
