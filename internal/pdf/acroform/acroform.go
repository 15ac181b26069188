// Package acroform indexes the interactive form of a parsed PDF: terminal
// fields, their widget annotations and the page each widget sits on.
package acroform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Kind is the semantic type of a form field, fixed once at indexing time
type Kind int

const (
	KindText Kind = iota
	KindCheckbox
	KindRadio
	KindSelect
)

// String returns the label used in prompts and JSON output
func (k Kind) String() string {
	switch k {
	case KindCheckbox:
		return "checkbox"
	case KindRadio:
		return "radio"
	case KindSelect:
		return "select"
	default:
		return "text"
	}
}

// Field flag bits (PDF 32000-1, 12.7.4)
const (
	flagReadOnly   = 1 << 0
	flagRequired   = 1 << 1
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
	flagCombo      = 1 << 17
	flagEdit       = 1 << 18
)

// maxParentDepth bounds /Parent chain walks on malformed documents
const maxParentDepth = 32

// Rect is a normalized rectangle in PDF user space
type Rect struct {
	LLX float64 `json:"llx"`
	LLY float64 `json:"lly"`
	URX float64 `json:"urx"`
	URY float64 `json:"ury"`
}

// Width returns the horizontal extent
func (r Rect) Width() float64 { return r.URX - r.LLX }

// Height returns the vertical extent
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Widget is one widget annotation of a field
type Widget struct {
	Ref        *types.IndirectRef
	Dict       types.Dict
	Page       int
	PageRef    *types.IndirectRef
	AnnotIndex int
	Rect       Rect
}

// OnState returns the widget's "on" appearance state name, or "" when the
// widget has no named on-state.
func (w *Widget) OnState(ctx *model.Context) string {
	return onState(ctx, w.Dict)
}

// Field is a terminal form field (the dictionary holding /V)
type Field struct {
	Name    string
	Kind    Kind
	Ref     *types.IndirectRef
	Dict    types.Dict
	Flags   int
	Tooltip string
	Widgets []*Widget
}

// Editable reports whether a choice field accepts free text
func (f *Field) Editable() bool {
	return f.Flags&flagCombo != 0 && f.Flags&flagEdit != 0
}

// ReadOnly reports the read-only flag
func (f *Field) ReadOnly() bool {
	return f.Flags&flagReadOnly != 0
}

// Required reports the required flag
func (f *Field) Required() bool {
	return f.Flags&flagRequired != 0
}

// Form is the field index of one document
type Form struct {
	// Ref is nil when the AcroForm dictionary is direct in the catalog
	Ref    *types.IndirectRef
	Dict   types.Dict
	Fields []*Field

	byName map[string]*Field
}

// Lookup returns the field with the given fully-qualified name
func (f *Form) Lookup(name string) (*Field, bool) {
	if f == nil {
		return nil, false
	}
	field, ok := f.byName[name]
	return field, ok
}

// Names returns the field names in discovery order
func (f *Form) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		names = append(names, field.Name)
	}
	return names
}

// Index walks every page's /Annots in document order and groups widget
// annotations by fully-qualified field name. Discovery order is page
// ascending, then annotation order; the first widget seen fixes the field's
// position in Fields. A document without an AcroForm yields a nil Form and
// no error.
func Index(ctx *model.Context) (*Form, error) {
	catalog, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := catalog.Find("AcroForm")
	if !found {
		return nil, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	form := &Form{
		Ref:    indirectRef(acroFormObj),
		Dict:   acroFormDict,
		byName: make(map[string]*Field),
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, pageRef, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}

		for i, annotObj := range annots {
			annotDict, err := ctx.DereferenceDict(annotObj)
			if err != nil || annotDict == nil {
				continue
			}
			if subtype := nameEntry(ctx, annotDict, "Subtype"); subtype != "Widget" {
				continue
			}

			terminalRef, terminalDict := terminalField(ctx, annotObj, annotDict)
			name := FullName(ctx, terminalDict)
			if name == "" {
				continue
			}

			widget := &Widget{
				Ref:        indirectRef(annotObj),
				Dict:       annotDict,
				Page:       pageNr,
				PageRef:    pageRef,
				AnnotIndex: i,
				Rect:       rectEntry(ctx, annotDict),
			}

			if field, seen := form.byName[name]; seen {
				field.Widgets = append(field.Widgets, widget)
				continue
			}

			kind, ok := KindOf(ctx, terminalDict)
			if !ok {
				continue
			}

			field := &Field{
				Name:    name,
				Kind:    kind,
				Ref:     terminalRef,
				Dict:    terminalDict,
				Flags:   flags(ctx, terminalDict),
				Tooltip: tooltip(ctx, annotDict, terminalDict),
				Widgets: []*Widget{widget},
			}
			form.Fields = append(form.Fields, field)
			form.byName[name] = field
		}
	}

	return form, nil
}

// FieldNames walks the AcroForm /Fields tree and returns every terminal
// field's fully-qualified name, sorted. Fields without widgets on any page
// are included.
func FieldNames(ctx *model.Context) ([]string, error) {
	catalog, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := catalog.Find("AcroForm")
	if !found {
		return []string{}, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return []string{}, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return []string{}, nil
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	seen := make(map[string]bool)
	var walk func(obj types.Object, prefix string, depth int)
	walk = func(obj types.Object, prefix string, depth int) {
		if depth > maxParentDepth {
			return
		}
		d, err := ctx.DereferenceDict(obj)
		if err != nil || d == nil {
			return
		}

		name := prefix
		if part := stringEntry(ctx, d, "T"); part != "" {
			if name != "" {
				name += "."
			}
			name += part
		}

		var childFields []types.Object
		if kidsObj, found := d.Find("Kids"); found {
			if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
				for _, kid := range kids {
					kidDict, err := ctx.DereferenceDict(kid)
					if err != nil || kidDict == nil {
						continue
					}
					if _, hasT := kidDict.Find("T"); hasT {
						childFields = append(childFields, kid)
					}
				}
			}
		}

		if len(childFields) == 0 {
			if name != "" {
				seen[name] = true
			}
			return
		}
		for _, kid := range childFields {
			walk(kid, name, depth+1)
		}
	}

	for _, f := range fields {
		walk(f, "", 0)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FullName joins the /T parts of d and its ancestors with "."
func FullName(ctx *model.Context, d types.Dict) string {
	var parts []string
	cur := d
	for depth := 0; cur != nil && depth <= maxParentDepth; depth++ {
		if part := stringEntry(ctx, cur, "T"); part != "" {
			parts = append(parts, part)
		}
		parentObj, found := cur.Find("Parent")
		if !found {
			break
		}
		parent, err := ctx.DereferenceDict(parentObj)
		if err != nil {
			break
		}
		cur = parent
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// KindOf decides the field kind from the inheritable /FT and /Ff entries.
// Pushbuttons, signature fields and unknown types report ok=false.
func KindOf(ctx *model.Context, d types.Dict) (Kind, bool) {
	ftObj, found := Inherited(ctx, d, "FT")
	if !found {
		return KindText, false
	}
	ft, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return KindText, false
	}

	switch ft {
	case "Btn":
		ff := flags(ctx, d)
		if ff&flagPushbutton != 0 {
			return KindText, false
		}
		if ff&flagRadio != 0 {
			return KindRadio, true
		}
		return KindCheckbox, true
	case "Ch":
		return KindSelect, true
	case "Tx":
		return KindText, true
	default:
		return KindText, false
	}
}

// Inherited looks up key on d, then up the /Parent chain
func Inherited(ctx *model.Context, d types.Dict, key string) (types.Object, bool) {
	cur := d
	for depth := 0; cur != nil && depth <= maxParentDepth; depth++ {
		if obj, found := cur.Find(key); found {
			return obj, true
		}
		parentObj, found := cur.Find("Parent")
		if !found {
			return nil, false
		}
		parent, err := ctx.DereferenceDict(parentObj)
		if err != nil {
			return nil, false
		}
		cur = parent
	}
	return nil, false
}

// Options returns the export values of a choice field's /Opt array
func Options(ctx *model.Context, d types.Dict) []string {
	optObj, found := Inherited(ctx, d, "Opt")
	if !found {
		return nil
	}
	optArray, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		// Entries are either a text string or [export display]
		if str, err := ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := ctx.DereferenceArray(opt); err == nil && len(arr) >= 1 {
			if export, err := ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil); err == nil {
				options = append(options, export)
			}
		}
	}
	return options
}

// AppearanceStates returns the sorted state names of d's /AP /N dictionary
func AppearanceStates(ctx *model.Context, d types.Dict) []string {
	apObj, found := d.Find("AP")
	if !found {
		return nil
	}
	ap, err := ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return nil
	}
	nObj, found := ap.Find("N")
	if !found {
		return nil
	}
	// /N is a stream for text widgets and a state dictionary for buttons
	obj, err := ctx.Dereference(nObj)
	if err != nil {
		return nil
	}
	states, ok := obj.(types.Dict)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(states))
	for k := range states {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func onState(ctx *model.Context, d types.Dict) string {
	for _, state := range AppearanceStates(ctx, d) {
		if state != "Off" {
			return state
		}
	}
	return ""
}

// terminalField returns the dictionary holding the field's /V. A widget
// carrying its own /T is merged with its field; otherwise /Parent is the field.
func terminalField(ctx *model.Context, widgetObj types.Object, widget types.Dict) (*types.IndirectRef, types.Dict) {
	if _, hasT := widget.Find("T"); hasT {
		return indirectRef(widgetObj), widget
	}
	parentObj, found := widget.Find("Parent")
	if !found {
		return indirectRef(widgetObj), widget
	}
	parent, err := ctx.DereferenceDict(parentObj)
	if err != nil || parent == nil {
		return indirectRef(widgetObj), widget
	}
	return indirectRef(parentObj), parent
}

func tooltip(ctx *model.Context, widget, field types.Dict) string {
	if tu := stringEntry(ctx, widget, "TU"); tu != "" {
		return tu
	}
	return stringEntry(ctx, field, "TU")
}

func flags(ctx *model.Context, d types.Dict) int {
	ffObj, found := Inherited(ctx, d, "Ff")
	if !found {
		return 0
	}
	ff, err := ctx.DereferenceInteger(ffObj)
	if err != nil || ff == nil {
		return 0
	}
	return int(*ff)
}

func rectEntry(ctx *model.Context, d types.Dict) Rect {
	rectObj, found := d.Find("Rect")
	if !found {
		return Rect{}
	}
	arr, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(arr) != 4 {
		return Rect{}
	}

	coords := make([]float64, 4)
	for i, c := range arr {
		if f, err := ctx.DereferenceNumber(c); err == nil {
			coords[i] = f
		}
	}

	r := Rect{LLX: coords[0], LLY: coords[1], URX: coords[2], URY: coords[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}

func stringEntry(ctx *model.Context, d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func nameEntry(ctx *model.Context, d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	n, err := ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

// indirectRef returns obj as an indirect reference, or nil for direct objects
func indirectRef(obj types.Object) *types.IndirectRef {
	switch ref := obj.(type) {
	case types.IndirectRef:
		return &ref
	case *types.IndirectRef:
		return ref
	}
	return nil
}
