package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
)

// Policy names accepted by PolicyByName
const (
	PolicyAll         = "all"
	PolicyMeaningful  = "meaningful"
	PolicyInstitution = "institution"
)

const minLabelLength = 5

// FieldPolicy decides which fields the model is offered to fill
type FieldPolicy interface {
	Allow(field extraction.FieldDescriptor) bool
}

// PolicyFunc adapts a function to FieldPolicy
type PolicyFunc func(field extraction.FieldDescriptor) bool

// Allow calls f
func (f PolicyFunc) Allow(field extraction.FieldDescriptor) bool {
	return f(field)
}

// AllowAll offers every field
var AllowAll FieldPolicy = PolicyFunc(func(extraction.FieldDescriptor) bool { return true })

// MeaningfulLabelPolicy offers fields whose label is readable: present, free
// of control characters and at least five runes long.
type MeaningfulLabelPolicy struct{}

// Allow implements FieldPolicy
func (MeaningfulLabelPolicy) Allow(field extraction.FieldDescriptor) bool {
	label := field.Label()
	if label == "" {
		return false
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return false
		}
	}
	return utf8.RuneCountInString(label) >= minLabelLength
}

// DefaultInstitutionKeywords match labels of fields describing a financial
// institution or account holder organization on French administrative forms.
var DefaultInstitutionKeywords = []string{
	"organisme",
	"établissement",
	"psan",
	"gestionnaire",
	"désignation",
	"raison sociale",
	"url",
	"actifs numériques",
	"compte bancaire",
	"caractéristiques",
}

// InstitutionPolicy offers meaningful fields whose label mentions one of
// Keywords, keeping personal data fields away from the model.
type InstitutionPolicy struct {
	Keywords []string
}

// Allow implements FieldPolicy
func (p InstitutionPolicy) Allow(field extraction.FieldDescriptor) bool {
	if !(MeaningfulLabelPolicy{}).Allow(field) {
		return false
	}
	keywords := p.Keywords
	if keywords == nil {
		keywords = DefaultInstitutionKeywords
	}
	label := strings.ToLower(field.Label())
	for _, kw := range keywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

// PolicyByName returns the policy configured under name
func PolicyByName(name string) (FieldPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyAll:
		return AllowAll, nil
	case PolicyMeaningful, "":
		return MeaningfulLabelPolicy{}, nil
	case PolicyInstitution:
		return InstitutionPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown field policy %q (must be %s, %s or %s)", name, PolicyAll, PolicyMeaningful, PolicyInstitution)
	}
}

// filterFields returns the fields policy allows, in order
func filterFields(policy FieldPolicy, fields []extraction.FieldDescriptor) []extraction.FieldDescriptor {
	out := make([]extraction.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if policy.Allow(f) {
			out = append(out, f)
		}
	}
	return out
}
