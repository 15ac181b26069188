package extraction

import (
	"bytes"
	"context"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

// Extractor reads a document's text layer and form fields
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor creates an extractor. A nil logger uses the logrus standard logger.
func NewExtractor(logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{logger: logger}
}

// ReadContext parses data with pdfcpu in relaxed mode
func ReadContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// Extract returns the document's flattened text and its labelled fields.
//
// A structural parse failure yields ErrExtractionFailed. An encrypted
// document, or one whose text layer is empty, yields ErrNoExtractableText
// together with a Result carrying whatever fields could be read.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	pdfCtx, err := ReadContext(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeExtractionFailed, "failed to parse document", err)
	}

	result := &Result{PageCount: pdfCtx.PageCount, Fields: []FieldDescriptor{}}

	if pdfCtx.Encrypt != nil {
		e.logger.Warn("Document is encrypted, text layer not read")
		fields, _ := e.describeFields(pdfCtx, nil)
		result.Fields = fields
		return result, apperrors.New(apperrors.ErrorTypeNoExtractableText, "document is encrypted")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, err := readText(data)
	if err != nil {
		e.logger.WithError(err).Warn("Text layer could not be read")
	}

	texts := make([]string, 0, len(pages))
	for i, p := range pages {
		if p.err != nil {
			e.logger.WithError(p.err).WithField("page", i+1).Warn("Page text extraction failed")
		}
		if t := strings.TrimSpace(p.plain); t != "" {
			texts = append(texts, t)
		}
	}
	result.Text = strings.Join(texts, "\n")

	fields, err := e.describeFields(pdfCtx, pages)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeExtractionFailed, "failed to read form fields", err)
	}
	result.Fields = fields

	e.logger.WithFields(logrus.Fields{
		"pages":  result.PageCount,
		"fields": len(result.Fields),
		"chars":  len(result.Text),
	}).Debug("Extraction complete")

	if result.Text == "" {
		return result, apperrors.New(apperrors.ErrorTypeNoExtractableText, "document has no text layer")
	}
	return result, nil
}

// describeFields builds one descriptor per field, labelled from the runs of
// the page holding the field's first widget.
func (e *Extractor) describeFields(pdfCtx *model.Context, pages []pageText) ([]FieldDescriptor, error) {
	form, err := acroform.Index(pdfCtx)
	if err != nil {
		return []FieldDescriptor{}, err
	}
	if form == nil {
		e.logger.Debug("No AcroForm dictionary found in document")
		return []FieldDescriptor{}, nil
	}

	descriptors := make([]FieldDescriptor, 0, len(form.Fields))
	for _, field := range form.Fields {
		first := field.Widgets[0]

		var runs []TextRun
		if first.Page-1 < len(pages) {
			runs = pages[first.Page-1].runs
		}

		d := FieldDescriptor{
			Name:     field.Name,
			Kind:     field.Kind,
			KindName: field.Kind.String(),
			Page:     first.Page,
			Rect:     first.Rect,
		}
		if label, ok := NearestLabel(runs, first.Rect.LLX, first.Rect.LLY); ok {
			d.InferredLabel = &label
		} else if tu := strings.TrimSpace(field.Tooltip); tu != "" {
			d.InferredLabel = &tu
		}

		e.logger.WithFields(logrus.Fields{
			"field": d.Name,
			"kind":  d.KindName,
			"page":  d.Page,
		}).Debug("Extracted field")

		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// ExtractFieldNames returns the sorted fully-qualified names of every
// terminal field in the document's AcroForm.
func ExtractFieldNames(data []byte) ([]string, error) {
	pdfCtx, err := ReadContext(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeExtractionFailed, "failed to parse document", err)
	}
	return acroform.FieldNames(pdfCtx)
}
