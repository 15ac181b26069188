// Package pdftest builds small AcroForm documents in memory for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Page size used by every generated page (A4 portrait)
const (
	PageWidth  = 595.0
	PageHeight = 842.0
)

// FieldType selects the kind of form field to generate
type FieldType int

const (
	Text FieldType = iota
	Checkbox
	Radio
	Choice
	Pushbutton
	Signature
)

// Label is a line of Helvetica text drawn on a page
type Label struct {
	Page int // 1-based, defaults to 1
	X, Y float64
	Size float64 // defaults to 10
	Text string
}

// Field describes one terminal form field. Checkbox and radio fields get one
// widget per entry in States, laid out 30pt apart to the right of X.
type Field struct {
	Name    string
	Type    FieldType
	Page    int // 1-based, defaults to 1
	X, Y    float64
	W, H    float64 // default 150x20 for text, 12x12 for buttons
	States  []string
	Options []string
	Tooltip string
	Value   string
	// Parent places the field under a non-terminal field with this partial name
	Parent string
}

// Doc describes a generated document
type Doc struct {
	Pages      int // defaults to 1
	Labels     []Label
	Fields     []Field
	NoAcroForm bool
}

// writer accumulates numbered objects and serializes them with a classic
// cross-reference table whose offsets are exact.
type writer struct {
	bodies [][]byte
}

func (w *writer) reserve() int {
	w.bodies = append(w.bodies, nil)
	return len(w.bodies)
}

func (w *writer) set(nr int, body string) {
	w.bodies[nr-1] = []byte(body)
}

func (w *writer) add(body string) int {
	nr := w.reserve()
	w.set(nr, body)
	return nr
}

func (w *writer) addStream(dict string, data []byte) int {
	nr := w.reserve()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	w.bodies[nr-1] = buf.Bytes()
	return nr
}

func (w *writer) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(w.bodies))
	for i, body := range w.bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(w.bodies)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /ID [<%s> <%s>] >>\n", len(w.bodies)+1, root, fileID, fileID)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

const fileID = "6d2f8a0c41e95b7d3a1f0c2e9b8d7a65"

// Build serializes doc into a PDF
func Build(doc Doc) []byte {
	pageCount := doc.Pages
	if pageCount < 1 {
		pageCount = 1
	}
	for _, l := range doc.Labels {
		if l.Page > pageCount {
			pageCount = l.Page
		}
	}
	for _, f := range doc.Fields {
		if f.Page > pageCount {
			pageCount = f.Page
		}
	}

	w := &writer{}
	catalog := w.reserve()
	pages := w.reserve()
	font := w.add(helveticaFont())

	pageNrs := make([]int, pageCount)
	for i := range pageNrs {
		pageNrs[i] = w.reserve()
	}

	onAP := w.addStream("/Type /XObject /Subtype /Form /BBox [0 0 12 12]", []byte("q 0 g BT /ZaDb 10 Tf 1 2 Td (4) Tj ET Q"))
	offAP := w.addStream("/Type /XObject /Subtype /Form /BBox [0 0 12 12]", []byte("q 0.75 g 0 0 12 12 re f Q"))

	annots := make([][]int, pageCount)
	var topLevel []int
	parents := make(map[string]*parentField)
	var parentOrder []string

	for _, f := range doc.Fields {
		page := f.Page
		if page < 1 {
			page = 1
		}
		pageNr := pageNrs[page-1]

		var parentRef int
		if f.Parent != "" {
			p, ok := parents[f.Parent]
			if !ok {
				p = &parentField{nr: w.reserve()}
				parents[f.Parent] = p
				parentOrder = append(parentOrder, f.Parent)
				topLevel = append(topLevel, p.nr)
			}
			parentRef = p.nr
		}

		var fieldNr int
		switch f.Type {
		case Checkbox, Radio:
			fieldNr = w.reserve()
			var kids []int
			for i, state := range f.States {
				x := f.X + float64(i)*30
				wNr := w.add(fmt.Sprintf(
					"<< /Type /Annot /Subtype /Widget /Parent %d 0 R /P %d 0 R /Rect [%s] /F 4 /MK << /CA (4) >> /AP << /N << /%s %d 0 R /Off %d 0 R >> /D << /%s %d 0 R /Off %d 0 R >> >> /AS /Off >>",
					fieldNr, pageNr, rect(x, f.Y, dim(f.W, 12), dim(f.H, 12)), state, onAP, offAP, state, offAP, offAP))
				kids = append(kids, wNr)
				annots[page-1] = append(annots[page-1], wNr)
			}
			ff := 0
			if f.Type == Radio {
				ff = 1<<15 | 1<<14
			}
			w.set(fieldNr, fmt.Sprintf("<< /FT /Btn /T %s /Ff %d /V /Off /Kids [%s]%s%s >>",
				literal(f.Name), ff, refs(kids), parentEntry(parentRef), tooltipEntry(f.Tooltip)))
		default:
			var extra string
			switch f.Type {
			case Choice:
				var opts []string
				for _, o := range f.Options {
					opts = append(opts, literal(o))
				}
				extra = fmt.Sprintf("/FT /Ch /Ff %d /Opt [%s]", 1<<17, strings.Join(opts, " "))
			case Pushbutton:
				extra = fmt.Sprintf("/FT /Btn /Ff %d", 1<<16)
			case Signature:
				extra = "/FT /Sig"
			default:
				extra = "/FT /Tx"
			}
			if f.Value != "" {
				extra += " /V " + literal(f.Value)
			}
			fieldNr = w.add(fmt.Sprintf(
				"<< /Type /Annot /Subtype /Widget %s /T %s /P %d 0 R /Rect [%s] /F 4 /DA (/Helv 0 Tf 0 g)%s%s >>",
				extra, literal(f.Name), pageNr, rect(f.X, f.Y, dim(f.W, 150), dim(f.H, 20)), parentEntry(parentRef), tooltipEntry(f.Tooltip)))
			annots[page-1] = append(annots[page-1], fieldNr)
		}

		if parentRef != 0 {
			p := parents[f.Parent]
			p.kids = append(p.kids, fieldNr)
		} else {
			topLevel = append(topLevel, fieldNr)
		}
	}

	for _, name := range parentOrder {
		p := parents[name]
		w.set(p.nr, fmt.Sprintf("<< /T %s /Kids [%s] >>", literal(name), refs(p.kids)))
	}

	for i, nr := range pageNrs {
		var content strings.Builder
		for _, l := range doc.Labels {
			page := l.Page
			if page < 1 {
				page = 1
			}
			if page != i+1 {
				continue
			}
			size := l.Size
			if size == 0 {
				size = 10
			}
			fmt.Fprintf(&content, "BT /Helv %s Tf 1 0 0 1 %s %s Tm %s Tj ET\n", num(size), num(l.X), num(l.Y), literal(l.Text))
		}
		contentNr := w.addStream("", []byte(content.String()))

		annotsEntry := ""
		if len(annots[i]) > 0 {
			annotsEntry = fmt.Sprintf(" /Annots [%s]", refs(annots[i]))
		}
		w.set(nr, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /Helv %d 0 R >> >> /Contents %d 0 R%s >>",
			pages, num(PageWidth), num(PageHeight), font, contentNr, annotsEntry))
	}

	w.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", refs(pageNrs), pageCount))

	if doc.NoAcroForm {
		w.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	} else {
		zadb := w.add("<< /Type /Font /Subtype /Type1 /BaseFont /ZapfDingbats >>")
		acroForm := w.add(fmt.Sprintf("<< /Fields [%s] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv %d 0 R /ZaDb %d 0 R >> >> >>",
			refs(topLevel), font, zadb))
		w.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pages, acroForm))
	}

	return w.bytes(catalog)
}

type parentField struct {
	nr   int
	kids []int
}

// helveticaFont declares a flat 500-unit advance for every printable glyph
// so text extraction reports non-zero glyph widths.
func helveticaFont() string {
	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = "500"
	}
	return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		strings.Join(widths, " "))
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

func parentEntry(nr int) string {
	if nr == 0 {
		return ""
	}
	return fmt.Sprintf(" /Parent %d 0 R", nr)
}

func tooltipEntry(tu string) string {
	if tu == "" {
		return ""
	}
	return " /TU " + literal(tu)
}

func refs(nrs []int) string {
	parts := make([]string, len(nrs))
	for i, nr := range nrs {
		parts[i] = fmt.Sprintf("%d 0 R", nr)
	}
	return strings.Join(parts, " ")
}

func rect(x, y, w, h float64) string {
	return fmt.Sprintf("%s %s %s %s", num(x), num(y), num(x+w), num(y+h))
}

func dim(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func num(f float64) string {
	s := strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
