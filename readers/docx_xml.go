package readers

import (
	"encoding/xml"
	"strings"
)

// paragraphXML is a <w:p>. Runs keep document order across hyperlinks and
// tracked insertions, which plain struct decoding would lose.
type paragraphXML struct {
	Props paragraphPropsXML
	Runs  []runXML
}

type paragraphPropsXML struct {
	Style      valXML    `xml:"pStyle"`
	NumPr      *numPrXML `xml:"numPr"`
	OutlineLvl *valXML   `xml:"outlineLvl"`
}

type numPrXML struct {
	Ilvl  valXML `xml:"ilvl"`
	NumID valXML `xml:"numId"`
}

type valXML struct {
	Val string `xml:"val,attr"`
}

func (p *paragraphXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				if err := d.DecodeElement(&p.Props, &t); err != nil {
					return err
				}
			case "r":
				var r runXML
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				p.Runs = append(p.Runs, r)
			case "hyperlink", "ins", "smartTag", "fldSimple":
				var c runContainerXML
				if err := d.DecodeElement(&c, &t); err != nil {
					return err
				}
				p.Runs = append(p.Runs, c.Runs...)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p *paragraphXML) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

type runContainerXML struct {
	Runs []runXML `xml:"r"`
}

// runXML is a <w:r> flattened to its text; drawings are kept as relationship ids.
type runXML struct {
	Text   string
	Images []imageRef
}

type imageRef struct {
	RelID string
	Alt   string
}

type drawingXML struct {
	Inline *drawingObjectXML `xml:"inline"`
	Anchor *drawingObjectXML `xml:"anchor"`
}

type drawingObjectXML struct {
	DocPr struct {
		Name  string `xml:"name,attr"`
		Descr string `xml:"descr,attr"`
	} `xml:"docPr"`
	Blip *struct {
		Embed string `xml:"embed,attr"`
	} `xml:"graphic>graphicData>pic>blipFill>blip"`
}

func (r *runXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var s string
				if err := d.DecodeElement(&s, &t); err != nil {
					return err
				}
				sb.WriteString(s)
			case "tab":
				sb.WriteByte('\t')
				if err := d.Skip(); err != nil {
					return err
				}
			case "br", "cr":
				sb.WriteByte('\n')
				if err := d.Skip(); err != nil {
					return err
				}
			case "drawing":
				var dr drawingXML
				if err := d.DecodeElement(&dr, &t); err != nil {
					return err
				}
				for _, obj := range []*drawingObjectXML{dr.Inline, dr.Anchor} {
					if obj == nil || obj.Blip == nil {
						continue
					}
					alt := obj.DocPr.Descr
					if alt == "" {
						alt = obj.DocPr.Name
					}
					r.Images = append(r.Images, imageRef{RelID: obj.Blip.Embed, Alt: alt})
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			r.Text = sb.String()
			return nil
		}
	}
}

type tableXML struct {
	Rows []tableRowXML `xml:"tr"`
}

type tableRowXML struct {
	Cells []tableCellXML `xml:"tc"`
}

type tableCellXML struct {
	Props struct {
		GridSpan *valXML `xml:"gridSpan"`
		VMerge   *valXML `xml:"vMerge"`
	} `xml:"tcPr"`
	Paragraphs []paragraphXML `xml:"p"`
}

// span is the number of grid columns the cell covers. Spans wider than any
// Word table report false.
func (c *tableCellXML) span() (int, bool) {
	if c.Props.GridSpan == nil {
		return 1, true
	}

	n := 0
	for _, ch := range c.Props.GridSpan.Val {
		if ch < '0' || ch > '9' {
			return 1, true
		}
		n = n*10 + int(ch-'0')
		if n > maxGridSpan {
			return 0, false
		}
	}
	return max(n, 1), true
}

// mergedContinuation reports a cell that continues a vertical merge from above.
func (c *tableCellXML) mergedContinuation() bool {
	return c.Props.VMerge != nil && c.Props.VMerge.Val != "restart"
}

func (c *tableCellXML) text() string {
	parts := make([]string, 0, len(c.Paragraphs))
	for i := range c.Paragraphs {
		if t := strings.TrimSpace(c.Paragraphs[i].text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type stylesXML struct {
	Styles []struct {
		StyleID string `xml:"styleId,attr"`
		Name    valXML `xml:"name"`
		PPr     struct {
			OutlineLvl *valXML `xml:"outlineLvl"`
		} `xml:"pPr"`
	} `xml:"style"`
}
