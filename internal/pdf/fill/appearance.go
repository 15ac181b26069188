package fill

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

const (
	appearanceFont  = "Helv"
	defaultFontSize = 12.0
	minFontSize     = 4.0
	padding         = 2.0
	// average Helvetica advance, in text space units per point of font size
	avgGlyphWidth = 0.52
	lineSpacing   = 1.15
	flagMultiline = 1 << 12
)

// Encoders carry transform state, so each call builds its own
func winAnsi() *encoding.Encoder {
	return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
}

func utf16BE() *encoding.Encoder {
	return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
}

// textString encodes s as a PDF text string: a literal when s is printable
// ASCII, UTF-16BE with byte order mark otherwise.
func textString(s string) types.Object {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		return types.StringLiteral(escapeLiteral([]byte(s)))
	}

	encoded, err := utf16BE().Bytes([]byte(s))
	if err != nil {
		return types.StringLiteral(escapeLiteral([]byte(s)))
	}
	return types.HexLiteral(fmt.Sprintf("%X", encoded))
}

// escapeLiteral escapes b for use between parentheses. Bytes outside
// printable ASCII are written as octal escapes.
func escapeLiteral(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '(' || c == ')' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&sb, "\\%03o", c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// defaultAppearance is the parsed subset of a /DA string we honor
type defaultAppearance struct {
	fontSize float64
	color    string
}

// parseDA reads the font size and the fill color operator of a /DA string
func parseDA(da string) defaultAppearance {
	result := defaultAppearance{color: "0 g"}
	parts := strings.Fields(da)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "Tf":
			if i >= 1 {
				if size, err := strconv.ParseFloat(parts[i-1], 64); err == nil {
					result.fontSize = size
				}
			}
		case "g":
			if i >= 1 {
				result.color = strings.Join(parts[i-1:i+1], " ")
			}
		case "rg":
			if i >= 3 {
				result.color = strings.Join(parts[i-3:i+1], " ")
			}
		case "k":
			if i >= 4 {
				result.color = strings.Join(parts[i-4:i+1], " ")
			}
		}
	}
	return result
}

// fieldDA resolves the /DA for a field, falling back to the AcroForm's
func fieldDA(ctx *model.Context, form *acroform.Form, field *acroform.Field) defaultAppearance {
	if obj, found := acroform.Inherited(ctx, field.Dict, "DA"); found {
		if s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
			return parseDA(s)
		}
	}
	if form != nil {
		if obj, found := form.Dict.Find("DA"); found {
			if s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
				return parseDA(s)
			}
		}
	}
	return parseDA("")
}

// fitFontSize picks the DA size, or for auto-sized fields (size 0) the
// largest size up to 12pt that fits the longest line in the box.
func fitFontSize(requested float64, lines []string, w, h float64) float64 {
	if requested > 0 {
		return requested
	}

	size := defaultFontSize
	if byHeight := (h - 2*padding) / (lineSpacing * float64(len(lines))); byHeight < size {
		size = byHeight
	}

	longest := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > longest {
			longest = n
		}
	}
	if longest > 0 {
		if byWidth := (w - 2*padding) / (avgGlyphWidth * float64(longest)); byWidth < size {
			size = byWidth
		}
	}

	if size < minFontSize {
		size = minFontSize
	}
	return size
}

// textAppearance renders value as a marked-content text appearance stream
// body for a w by h widget.
func textAppearance(value string, da defaultAppearance, multiline bool, w, h float64) []byte {
	var lines []string
	if multiline {
		lines = strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	} else {
		lines = []string{strings.NewReplacer("\r", " ", "\n", " ").Replace(value)}
	}

	size := fitFontSize(da.fontSize, lines, w, h)

	var buf bytes.Buffer
	buf.WriteString("/Tx BMC\nq\n")
	fmt.Fprintf(&buf, "1 1 %s %s re W n\n", formatNumber(w-2), formatNumber(h-2))
	buf.WriteString("BT\n")
	fmt.Fprintf(&buf, "/%s %s Tf\n", appearanceFont, formatNumber(size))
	buf.WriteString(da.color)
	buf.WriteString("\n")

	var y float64
	if multiline {
		y = h - padding - size
	} else {
		// baseline centered vertically, allowing for descenders
		y = (h-size)/2 + size*0.22
	}
	fmt.Fprintf(&buf, "%s %s Td\n", formatNumber(padding), formatNumber(y))

	for i, line := range lines {
		if i > 0 {
			fmt.Fprintf(&buf, "0 %s Td\n", formatNumber(-size*lineSpacing))
		}
		encoded, err := winAnsi().Bytes([]byte(line))
		if err != nil {
			encoded = []byte(line)
		}
		fmt.Fprintf(&buf, "(%s) Tj\n", escapeLiteral(encoded))
	}

	buf.WriteString("ET\nQ\nEMC")
	return buf.Bytes()
}

// helveticaRef returns the font used by generated appearances: the
// AcroForm's /DR /Font /Helv when present, otherwise a new WinAnsi Helvetica.
func (s *session) helveticaRef() types.Object {
	if s.fontRef != nil {
		return s.fontRef
	}

	if s.form != nil {
		if drObj, found := s.form.Dict.Find("DR"); found {
			if dr, err := s.ctx.DereferenceDict(drObj); err == nil && dr != nil {
				if fontsObj, found := dr.Find("Font"); found {
					if fonts, err := s.ctx.DereferenceDict(fontsObj); err == nil && fonts != nil {
						if helv, found := fonts.Find(appearanceFont); found {
							s.fontRef = helv
							return helv
						}
					}
				}
			}
		}
	}

	ref := s.u.add(types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	s.fontRef = ref
	return ref
}

// setTextAppearance gives every widget of field a fresh normal appearance
// showing value.
func (s *session) setTextAppearance(field *acroform.Field, value string) {
	da := fieldDA(s.ctx, s.form, field)
	multiline := field.Flags&flagMultiline != 0

	for _, w := range field.Widgets {
		width, height := w.Rect.Width(), w.Rect.Height()
		if width <= 0 || height <= 0 {
			continue
		}

		apRef := s.u.addStream(types.Dict{
			"Type":    types.Name("XObject"),
			"Subtype": types.Name("Form"),
			"BBox":    types.Array{types.Integer(0), types.Integer(0), types.Float(width), types.Float(height)},
			"Resources": types.Dict{
				"Font": types.Dict{appearanceFont: s.helveticaRef()},
			},
		}, textAppearance(value, da, multiline, width, height))

		w.Dict["AP"] = types.Dict{"N": apRef}
		s.touchWidget(w)
	}
}

// formatNumber renders f for a content stream operand: no exponent, at most
// four decimals, no trailing zeros.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
