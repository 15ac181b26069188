package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/pdf/pdftest"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantFields []FieldDescriptor
	}{
		{
			name: "simple_form",
			data: pdftest.SimpleForm(),
			wantFields: []FieldDescriptor{
				{Name: "name", Kind: KindText, KindName: "text", InferredLabel: strPtr("Nom complet"), Page: 1},
				{Name: "age", Kind: KindText, KindName: "text", InferredLabel: strPtr("Age du demandeur"), Page: 1},
			},
		},
		{
			name: "mixed_form",
			data: pdftest.MixedForm(),
			wantFields: []FieldDescriptor{
				{Name: "lastname", Kind: KindText, KindName: "text", InferredLabel: strPtr("Nom de famille"), Page: 1},
				{Name: "terms", Kind: KindCheckbox, KindName: "checkbox", InferredLabel: strPtr("Accepte les conditions"), Page: 1},
				{Name: "title", Kind: KindRadio, KindName: "radio", InferredLabel: strPtr("Civilite"), Page: 1},
				{Name: "country", Kind: KindSelect, KindName: "select", InferredLabel: strPtr("Pays de residence"), Page: 1},
				{Name: "date", Kind: KindText, KindName: "text", InferredLabel: strPtr("Date de signature"), Page: 2},
			},
		},
		{
			name: "multi_widget_checkbox_collapses_by_name",
			data: pdftest.AccountTypeForm(),
			wantFields: []FieldDescriptor{
				{Name: "account_type", Kind: KindCheckbox, KindName: "checkbox", InferredLabel: strPtr("Type de compte"), Page: 1},
			},
		},
	}

	extractor := NewExtractor(quietLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractor.Extract(context.Background(), tt.data)
			require.NoError(t, err)
			require.Len(t, result.Fields, len(tt.wantFields))

			for i, want := range tt.wantFields {
				got := result.Fields[i]
				assert.Equal(t, want.Name, got.Name)
				assert.Equal(t, want.Kind, got.Kind)
				assert.Equal(t, want.KindName, got.KindName)
				assert.Equal(t, want.Page, got.Page)
				require.NotNil(t, got.InferredLabel, "field %s should have a label", got.Name)
				assert.Equal(t, *want.InferredLabel, *got.InferredLabel)
			}
			assert.NotEmpty(t, result.Text)
		})
	}
}

func TestExtractor_NoAcroForm(t *testing.T) {
	extractor := NewExtractor(quietLogger())

	result, err := extractor.Extract(context.Background(), pdftest.NoFormDocument())
	require.NoError(t, err)
	assert.Empty(t, result.Fields)
	assert.NotNil(t, result.Fields)
	assert.Contains(t, result.Text, "Rapport")
	assert.Equal(t, 1, result.PageCount)
}

func TestExtractor_NoText(t *testing.T) {
	data := pdftest.Build(pdftest.Doc{
		Fields: []pdftest.Field{{Name: "lonely", Type: pdftest.Text, X: 100, Y: 100, Tooltip: "Champ isole"}},
	})

	result, err := NewExtractor(quietLogger()).Extract(context.Background(), data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoExtractableText))
	require.NotNil(t, result)
	require.Len(t, result.Fields, 1)
	require.NotNil(t, result.Fields[0].InferredLabel)
	assert.Equal(t, "Champ isole", *result.Fields[0].InferredLabel)
}

func TestExtractor_Garbage(t *testing.T) {
	_, err := NewExtractor(quietLogger()).Extract(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExtractionFailed))
}

func TestExtractor_QualifiedNames(t *testing.T) {
	data := pdftest.Build(pdftest.Doc{
		Labels: []pdftest.Label{{X: 50, Y: 700, Text: "Rue et numero"}},
		Fields: []pdftest.Field{
			{Name: "street", Parent: "address", Type: pdftest.Text, X: 200, Y: 695},
			{Name: "city", Parent: "address", Type: pdftest.Text, X: 200, Y: 600},
		},
	})

	result, err := NewExtractor(quietLogger()).Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, result.Fields, 2)
	assert.Equal(t, "address.street", result.Fields[0].Name)
	assert.Equal(t, "address.city", result.Fields[1].Name)
	assert.Nil(t, result.Fields[1].InferredLabel)

	names, err := ExtractFieldNames(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"address.city", "address.street"}, names)
}

func TestExtractFieldNames(t *testing.T) {
	names, err := ExtractFieldNames(pdftest.MixedForm())
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "date", "lastname", "sig", "submit", "terms", "title"}, names)

	names, err = ExtractFieldNames(pdftest.NoFormDocument())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func strPtr(s string) *string { return &s }
