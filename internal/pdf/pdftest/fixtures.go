package pdftest

// SimpleForm is a one-page form with two labelled text fields, "name" and "age"
func SimpleForm() []byte {
	return Build(Doc{
		Labels: []Label{
			{X: 50, Y: 700, Text: "Nom complet"},
			{X: 50, Y: 650, Text: "Age du demandeur"},
		},
		Fields: []Field{
			{Name: "name", Type: Text, X: 200, Y: 695},
			{Name: "age", Type: Text, X: 200, Y: 645},
		},
	})
}

// AccountTypeForm has one checkbox field "account_type" with widgets whose
// on-states are a, b and c.
func AccountTypeForm() []byte {
	return Build(Doc{
		Labels: []Label{
			{X: 50, Y: 600, Text: "Type de compte"},
		},
		Fields: []Field{
			{Name: "account_type", Type: Checkbox, X: 200, Y: 598, States: []string{"a", "b", "c"}},
		},
	})
}

// MixedForm carries every supported field kind plus a pushbutton and a
// signature field, over two pages.
func MixedForm() []byte {
	return Build(Doc{
		Pages: 2,
		Labels: []Label{
			{X: 50, Y: 760, Text: "Nom de famille"},
			{X: 50, Y: 720, Text: "Accepte les conditions"},
			{X: 50, Y: 680, Text: "Civilite"},
			{X: 50, Y: 640, Text: "Pays de residence"},
			{Page: 2, X: 50, Y: 500, Text: "Date de signature"},
		},
		Fields: []Field{
			{Name: "lastname", Type: Text, X: 200, Y: 755},
			{Name: "terms", Type: Checkbox, X: 200, Y: 718, States: []string{"Yes"}},
			{Name: "title", Type: Radio, X: 200, Y: 678, States: []string{"M", "Mme"}},
			{Name: "country", Type: Choice, X: 200, Y: 635, Options: []string{"FR", "BE", "CH"}},
			{Name: "submit", Type: Pushbutton, X: 400, Y: 100},
			{Name: "sig", Type: Signature, X: 400, Y: 50},
			{Name: "date", Type: Text, Page: 2, X: 200, Y: 495},
		},
	})
}

// NoFormDocument is a one-page document with text and no AcroForm
func NoFormDocument() []byte {
	return Build(Doc{
		Labels:     []Label{{X: 72, Y: 720, Text: "Rapport annuel sans formulaire"}},
		NoAcroForm: true,
	})
}
