package extraction

import (
	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

// FieldKind is the closed set of field kinds the filler dispatches on
type FieldKind = acroform.Kind

const (
	KindText     = acroform.KindText
	KindCheckbox = acroform.KindCheckbox
	KindRadio    = acroform.KindRadio
	KindSelect   = acroform.KindSelect
)

// Rect is a field rectangle in PDF point space
type Rect = acroform.Rect

// FieldDescriptor describes one fillable field discovered in a document.
// Names are unique within one extraction; the first widget seen wins.
type FieldDescriptor struct {
	Name          string    `json:"name"`
	Kind          FieldKind `json:"-"`
	KindName      string    `json:"type"`
	InferredLabel *string   `json:"inferred_label,omitempty"`
	Page          int       `json:"page"`
	Rect          Rect      `json:"rect"`
}

// Label returns the inferred label or ""
func (d FieldDescriptor) Label() string {
	if d.InferredLabel == nil {
		return ""
	}
	return *d.InferredLabel
}

// TextRun is a positioned run of text on a page, origin bottom-left
type TextRun struct {
	Content string
	X       float64
	Y       float64
}

// Result is the outcome of a full extraction pass
type Result struct {
	Text      string            `json:"text"`
	Fields    []FieldDescriptor `json:"fields"`
	PageCount int               `json:"page_count"`
}
