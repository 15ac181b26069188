package fill

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

// Annotation flags (PDF 32000-1, 12.5.3)
const (
	annotHidden = 1 << 1
	annotNoView = 1 << 5
)

// flatten draws the normal appearance of every widget on every page into
// the page content, removes the widgets from /Annots and drops the
// AcroForm from the catalog.
func (s *session) flatten() {
	for pageNr := 1; pageNr <= s.ctx.PageCount; pageNr++ {
		pageDict, _, _, err := s.ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}
		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := s.ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}

		for _, annotObj := range annots {
			widget, err := s.ctx.DereferenceDict(annotObj)
			if err != nil || widget == nil {
				continue
			}
			if subtype, found := widget.Find("Subtype"); !found || !isName(subtype, "Widget") {
				continue
			}

			p := s.page(pageNr)
			if !s.hidden(widget) {
				s.drawWidget(p, widget)
			}

			if ref := refOf(annotObj); ref != nil {
				p.removed[ref.ObjectNumber.Value()] = true
			} else {
				p.removedDirect = append(p.removedDirect, widget)
			}
		}
	}

	catalog, err := s.ctx.Catalog()
	if err != nil {
		return
	}
	delete(catalog, "AcroForm")
	s.touchCatalog()
}

func (s *session) hidden(widget types.Dict) bool {
	obj, found := widget.Find("F")
	if !found {
		return false
	}
	f, err := s.ctx.DereferenceInteger(obj)
	if err != nil || f == nil {
		return false
	}
	return int(*f)&(annotHidden|annotNoView) != 0
}

// drawWidget places the widget's normal appearance at its rectangle
func (s *session) drawWidget(p *pageEdit, widget types.Dict) {
	name := acroform.FullName(s.ctx, widget)

	ref, bbox, matrix, err := s.normalAppearance(widget)
	if err != nil {
		s.logger.WithField("field", name).WithError(err).Debug("Widget has no drawable appearance")
		return
	}

	rect := widgetRect(s, widget)
	if rect.Width() <= 0 || rect.Height() <= 0 {
		return
	}

	// appearance box after the form's own /Matrix
	tb := transformBox(bbox, matrix)
	if tb.Width() <= 0 || tb.Height() <= 0 {
		s.warn(name, "appearance bounding box is empty")
		return
	}

	sx := rect.Width() / tb.Width()
	sy := rect.Height() / tb.Height()
	tx := rect.LLX - tb.LLX*sx
	ty := rect.LLY - tb.LLY*sy

	xobj := s.addXObject(p, "Fm", ref)
	fmt.Fprintf(&p.content, "q %s 0 0 %s %s %s cm /%s Do Q\n",
		formatNumber(sx), formatNumber(sy), formatNumber(tx), formatNumber(ty), xobj)
}

// normalAppearance resolves /AP /N, picking the /AS state for buttons
func (s *session) normalAppearance(widget types.Dict) (types.IndirectRef, acroform.Rect, [6]float64, error) {
	var none types.IndirectRef
	identity := [6]float64{1, 0, 0, 1, 0, 0}

	apObj, found := widget.Find("AP")
	if !found {
		return none, acroform.Rect{}, identity, fmt.Errorf("no appearance dictionary")
	}
	ap, err := s.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return none, acroform.Rect{}, identity, fmt.Errorf("unreadable appearance dictionary")
	}
	nObj, found := ap.Find("N")
	if !found {
		return none, acroform.Rect{}, identity, fmt.Errorf("no normal appearance")
	}

	// /N is either the stream itself or a dictionary of button states
	ref := refOf(nObj)
	target := nObj
	if ref != nil {
		target = s.lookup(*ref)
	}
	if states, isDict := target.(types.Dict); isDict {
		state := offState
		if asObj, found := widget.Find("AS"); found {
			if as, err := s.ctx.DereferenceName(asObj, model.V10, nil); err == nil {
				state = string(as)
			}
		}
		stateObj, found := states.Find(state)
		if !found {
			return none, acroform.Rect{}, identity, fmt.Errorf("no appearance for state %q", state)
		}
		ref = refOf(stateObj)
	}
	if ref == nil {
		return none, acroform.Rect{}, identity, fmt.Errorf("normal appearance is not a stream")
	}

	dict, ok := s.streamDict(*ref)
	if !ok {
		return none, acroform.Rect{}, identity, fmt.Errorf("appearance %d is not a stream", ref.ObjectNumber.Value())
	}
	if subtype, found := dict.Find("Subtype"); !found || !isName(subtype, "Form") {
		return none, acroform.Rect{}, identity, fmt.Errorf("appearance stream is not a form XObject")
	}

	bbox, ok := s.numbers(dict, "BBox", 4)
	if !ok {
		return none, acroform.Rect{}, identity, fmt.Errorf("appearance stream has no /BBox")
	}
	matrix := identity
	if m, ok := s.numbers(dict, "Matrix", 6); ok {
		copy(matrix[:], m)
	}

	box := acroform.Rect{
		LLX: math.Min(bbox[0], bbox[2]), LLY: math.Min(bbox[1], bbox[3]),
		URX: math.Max(bbox[0], bbox[2]), URY: math.Max(bbox[1], bbox[3]),
	}
	return *ref, box, matrix, nil
}

// lookup dereferences ref. Objects created by this export are in the
// table too.
func (s *session) lookup(ref types.IndirectRef) types.Object {
	obj, err := s.ctx.Dereference(ref)
	if err != nil {
		return nil
	}
	return obj
}

// streamDict returns the dictionary of the stream behind ref
func (s *session) streamDict(ref types.IndirectRef) (types.Dict, bool) {
	obj, err := s.ctx.Dereference(ref)
	if err != nil {
		return nil, false
	}
	switch sd := obj.(type) {
	case types.StreamDict:
		return sd.Dict, true
	case *types.StreamDict:
		return sd.Dict, true
	}
	return nil, false
}

func (s *session) numbers(d types.Dict, key string, n int) ([]float64, bool) {
	obj, found := d.Find(key)
	if !found {
		return nil, false
	}
	arr, err := s.ctx.DereferenceArray(obj)
	if err != nil || len(arr) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, v := range arr {
		f, err := s.ctx.DereferenceNumber(v)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func widgetRect(s *session, widget types.Dict) acroform.Rect {
	c, ok := s.numbers(widget, "Rect", 4)
	if !ok {
		return acroform.Rect{}
	}
	return acroform.Rect{
		LLX: math.Min(c[0], c[2]), LLY: math.Min(c[1], c[3]),
		URX: math.Max(c[0], c[2]), URY: math.Max(c[1], c[3]),
	}
}

// transformBox maps the corners of b through m and returns their bounds
func transformBox(b acroform.Rect, m [6]float64) acroform.Rect {
	corners := [4][2]float64{{b.LLX, b.LLY}, {b.URX, b.LLY}, {b.LLX, b.URY}, {b.URX, b.URY}}
	out := acroform.Rect{LLX: math.Inf(1), LLY: math.Inf(1), URX: math.Inf(-1), URY: math.Inf(-1)}
	for _, c := range corners {
		x := m[0]*c[0] + m[2]*c[1] + m[4]
		y := m[1]*c[0] + m[3]*c[1] + m[5]
		out.LLX = math.Min(out.LLX, x)
		out.LLY = math.Min(out.LLY, y)
		out.URX = math.Max(out.URX, x)
		out.URY = math.Max(out.URY, y)
	}
	return out
}

func isName(obj types.Object, want string) bool {
	switch n := obj.(type) {
	case types.Name:
		return string(n) == want
	case *types.Name:
		return n != nil && string(*n) == want
	}
	return false
}
