package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	PDFAnalyzeDocumentDescription = `Suggest a value for every meaningful field of a PDF form.

**When to use:** You have a fillable PDF and want a first draft of its answers before exporting.

**How it works:** The document's text and fields are extracted, each field gets a label from the nearest text on the page, the document type is taken from your description (or detected when you give none), and a language model proposes values.

**Examples:**
• "Fill cerfa_12345.pdf, it is a bank account opening form for Coinbase Europe"
• "Analyze forms/registration.pdf" (the document type is detected)

**Result:** {context, fields: [{fieldName, suggestedValue, confidence}]}. A null suggestedValue means "leave empty". Personal identifiers are never invented.

**Errors:** INVALID_CONTEXT (description rejected, with reason), EXTRACTION_FAILED (unreadable or no text layer), CREDIT_EXHAUSTED (quota, rate or billing limit), MISSING_CREDENTIAL (no API key configured), ANALYSIS_FAILED (model reply unusable, safe to retry).`

	PDFExtractFieldsDescription = `List the fillable fields of a PDF form with their inferred labels.

**When to use:** Inspect a form before analysis, or find the exact field names to pass to pdf_export_document.

**Result:** One entry per field: name, type (text, checkbox, radio, select), page, rectangle and the inferred label when one was found. Also reports whether the document has a text layer.

**Best practices:** No language model is called, so this tool works without an API key.`

	PDFExportDocumentDescription = `Write a filled copy of a PDF form.

**When to use:** After reviewing or editing the suggestions from pdf_analyze_document.

**Behavior:**
• Text fields get the value and a regenerated appearance
• Checkboxes accept true/false/on/off or one of their export values
• Radio groups and lists only accept one of their options; other values are reported as warnings
• Unknown field names are skipped
• flatten (default from server config) bakes the values into the page and removes the form
• A signature image (PNG or JPEG data URL) is placed with coordinates measured from the top-left of a container that represents the page

**Examples:**
• values {"lastname": "Durand", "optin": "true"}, output "filled/cerfa.pdf"
• Signature drawn in a 600x800 preview at (50, 700) sized 100x40 on page 0`

	PDFValidateContextDescription = `Check a document description before using it for analysis.

**When to use:** Validate user input destined for the context parameter of pdf_analyze_document.

**Rules:** 5 to 500 characters, and no attempt to change the assistant's instructions or to request unrelated content (code, stories, role play). Rejected descriptions never reach the language model.`

	PDFListDocumentsDescription = `Find PDF forms in the configured directory.

**When to use:** Locate a form by part of its file name.

**Examples:**
• query "cerfa" finds cerfa_12345.pdf
• query "bank form" matches bank-account_form.pdf word by word

**Best practices:** Hidden directories are skipped; paths in results can be passed to the other tools.`

	PDFServerInfoDescription = `Get server configuration, available tools, and the documents in the configured directory.

**When to use:** Starting work with the server, or checking whether an API key and model are configured.

**Result:** Server name and version, model, whether a credential is present, the field policy, the default flatten setting, up to 100 documents and a usage guide.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_analyze_document": PDFAnalyzeDocumentDescription,
	"pdf_extract_fields":   PDFExtractFieldsDescription,
	"pdf_export_document":  PDFExportDocumentDescription,
	"pdf_validate_context": PDFValidateContextDescription,
	"pdf_list_documents":   PDFListDocumentsDescription,
	"pdf_server_info":      PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the sorted names of all described tools
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
