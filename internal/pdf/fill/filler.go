// Package fill writes form values, flattened appearances and a signature
// image into a PDF as an incremental update.
package fill

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"

	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
)

// Options control an export
type Options struct {
	// Flatten draws every widget's appearance into its page and removes the form
	Flatten bool
}

// FieldWarning records a value that could not be applied
type FieldWarning struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Err returns the warning as a typed FIELD_APPLY_WARNING error
func (w FieldWarning) Err() error {
	return apperrors.New(apperrors.ErrorTypeFieldApply, apperrors.ErrFieldApplyWarning.Message).
		WithField(w.Field).
		WithReason(w.Reason)
}

// Report summarizes what an export did with the value map
type Report struct {
	Applied  []string       `json:"applied"`
	Skipped  []string       `json:"skipped"`
	Warnings []FieldWarning `json:"warnings,omitempty"`
}

// Filler exports filled documents
type Filler struct {
	logger *logrus.Logger
}

// NewFiller creates a filler. A nil logger uses the logrus standard logger.
func NewFiller(logger *logrus.Logger) *Filler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Filler{logger: logger}
}

// session is the state of one export
type session struct {
	ctx     *model.Context
	form    *acroform.Form
	u       *update
	logger  *logrus.Logger
	fontRef types.Object
	pages   map[int]*pageEdit
	report  *Report

	needAppearances bool
}

// Export applies values to src and returns the new document bytes.
//
// Values are applied in sorted name order. Names with no matching field are
// recorded in Report.Skipped; values a field cannot take are recorded as
// warnings. Neither fails the export. Flattening happens after values and
// before the signature is drawn.
func (f *Filler) Export(ctx context.Context, src []byte, values map[string]string, sig *SignaturePlacement, opts Options) ([]byte, *Report, error) {
	pdfCtx, err := extraction.ReadContext(src)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to parse document", err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, nil, apperrors.New(apperrors.ErrorTypeExportFailed, "encrypted documents cannot be filled")
	}

	form, err := acroform.Index(pdfCtx)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to read form", err)
	}

	s := &session{
		ctx:    pdfCtx,
		form:   form,
		u:      newUpdate(pdfCtx, src),
		logger: f.logger,
		pages:  make(map[int]*pageEdit),
		report: &Report{Applied: []string{}, Skipped: []string{}},
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		s.apply(name, values[name])
	}

	if s.needAppearances && form != nil {
		form.Dict["NeedAppearances"] = types.Boolean(true)
		s.touchForm()
	}

	if opts.Flatten && form != nil {
		s.flatten()
	}

	if sig != nil {
		if err := s.drawSignature(*sig); err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to embed signature", err)
		}
	}

	if err := s.commitPages(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to update pages", err)
	}

	out, err := s.u.bytes()
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrorTypeExportFailed, "failed to write document", err)
	}

	f.logger.WithFields(logrus.Fields{
		"applied":  len(s.report.Applied),
		"skipped":  len(s.report.Skipped),
		"warnings": len(s.report.Warnings),
		"flatten":  opts.Flatten,
		"bytes":    len(out),
	}).Debug("Export complete")

	return out, s.report, nil
}

// apply dispatches one value on the field's kind
func (s *session) apply(name, value string) {
	field, ok := s.form.Lookup(name)
	if !ok {
		s.report.Skipped = append(s.report.Skipped, name)
		return
	}

	var err error
	switch field.Kind {
	case acroform.KindText:
		err = s.setText(field, value)
	case acroform.KindCheckbox:
		err = s.setCheckbox(field, value)
	case acroform.KindRadio:
		err = s.setRadio(field, value)
	case acroform.KindSelect:
		err = s.setChoice(field, value)
	default:
		err = fmt.Errorf("unsupported field kind %s", field.Kind)
	}

	if err != nil {
		s.warn(name, err.Error())
		return
	}
	s.report.Applied = append(s.report.Applied, name)
}

func (s *session) warn(name, reason string) {
	w := FieldWarning{Field: name, Reason: reason}
	s.logger.WithError(w.Err()).WithField("field", name).Warn("Could not set field")
	s.report.Warnings = append(s.report.Warnings, w)
}

func (s *session) setText(field *acroform.Field, value string) error {
	if obj, found := acroform.Inherited(s.ctx, field.Dict, "MaxLen"); found {
		if maxLen, err := s.ctx.DereferenceInteger(obj); err == nil && maxLen != nil {
			if n := len([]rune(value)); int(*maxLen) > 0 && n > int(*maxLen) {
				return fmt.Errorf("value has %d characters, field allows %d", n, int(*maxLen))
			}
		}
	}

	field.Dict["V"] = textString(value)
	s.touchField(field)
	s.setTextAppearance(field, value)
	s.needAppearances = true
	return nil
}

// touchField records the terminal field dictionary as changed
func (s *session) touchField(field *acroform.Field) {
	if field.Ref != nil {
		s.u.touch(field.Ref, field.Dict)
		return
	}
	// merged field and widget, direct in /Annots
	for _, w := range field.Widgets {
		if w.Dict != nil && sameDict(w.Dict, field.Dict) {
			s.touchWidget(w)
			return
		}
	}
}

// touchWidget records a widget as changed. A direct widget lives inside its
// page's /Annots, so the array's holder is written instead.
func (s *session) touchWidget(w *acroform.Widget) {
	if w.Ref != nil {
		s.u.touch(w.Ref, w.Dict)
		return
	}
	s.page(w.Page).annotsDirty = true
}

// touchForm records the AcroForm dictionary as changed
func (s *session) touchForm() {
	if s.form.Ref != nil {
		s.u.touch(s.form.Ref, s.form.Dict)
		return
	}
	s.touchCatalog()
}

func (s *session) touchCatalog() {
	catalog, err := s.ctx.Catalog()
	if err != nil || s.ctx.Root == nil {
		return
	}
	s.u.touch(s.ctx.Root, catalog)
}

// sameDict reports whether a and b are the same map, not equal contents
func sameDict(a, b types.Dict) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
