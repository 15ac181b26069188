package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
)

// Excerpt sizes, in runes, of the document text sent to the model
const (
	contextExcerptRunes    = 1500
	suggestionExcerptRunes = 8000
)

const (
	OriginEuropean = "French/European"
	OriginUnknown  = "Unknown"
)

var europeanFormPattern = regexp.MustCompile(`(?i)déclaration|formulaire|compte|étranger|impôts|cerfa`)

const contextSystemPrompt = `Identify the type of this document. Answer with the type as one short phrase,
in the language of the document.
Examples: "Déclaration de compte bancaire étranger", "Formulaire CERFA", "Employment contract".
If unsure, answer "UNKNOWN".`

// FormOrigin guesses where a form comes from, from vocabulary in its text
func FormOrigin(text string) string {
	if europeanFormPattern.MatchString(text) {
		return OriginEuropean
	}
	return OriginUnknown
}

// excerpt returns the first n runes of s
func excerpt(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func kindTag(kind extraction.FieldKind) string {
	switch kind {
	case extraction.KindCheckbox:
		return "[CHECKBOX]"
	case extraction.KindRadio:
		return "[RADIO]"
	case extraction.KindSelect:
		return "[SELECT]"
	default:
		return "[TEXT]"
	}
}

// contextUserPrompt is the user message of a context detection request
func contextUserPrompt(text string) string {
	return "Document type?\n\n" + excerpt(text, contextExcerptRunes)
}

// suggestionSystemPrompt builds the instruction prompt of a suggestion
// request. The output depends only on its arguments.
func suggestionSystemPrompt(docContext string, fields []extraction.FieldDescriptor, text string, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are an expert at filling administrative forms.\n\n")
	fmt.Fprintf(&b, "FORM ORIGIN: %s\n", FormOrigin(text))
	fmt.Fprintf(&b, "USER CONTEXT: %q\n", docContext)
	fmt.Fprintf(&b, "CURRENT DATE: %s (%s)\n\n", now.Format("2006-01-02"), now.Format("02/01/2006"))

	b.WriteString(`YOUR TASK:
1. Identify the organization or service the context is about.
2. Use your knowledge to find the legal entity matching the form's origin
   (for French/European forms, the European subsidiary), its official name,
   headquarters address and country.
3. Fill the fields below that this knowledge or the user context answers.

AVAILABLE FIELDS:
`)
	if len(fields) == 0 {
		b.WriteString("(none)\n")
	}
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s %s: %q\n", f.Name, kindTag(f.Kind), f.Label())
	}

	b.WriteString(`
RULES:
- Never fill personal identifiers (name, address, email, tax ID, account
  numbers, amounts, signatures) unless the user context supplies them.
- Dates default to the current date when nothing else applies.
- Checkboxes default to false when nothing else applies; answer true or false.
- Use null for any field you cannot fill.

RESPOND IN JSON ONLY:
{"fields": [{"name": "FIELD_NAME", "value": "VALUE", "confidence": 0.9}]}`)

	return b.String()
}

// suggestionUserPrompt is the user message of a suggestion request
func suggestionUserPrompt(text string) string {
	return "Here is the text of the form. Analyze it and fill the appropriate fields:\n\n" +
		excerpt(text, suggestionExcerptRunes)
}
