package fill

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/pdf-autofill/internal/pdf/acroform"
)

// pageEdit accumulates the changes made to one page during an export
type pageEdit struct {
	nr   int
	dict types.Dict
	ref  *types.IndirectRef

	xobjects      types.Dict // new /XObject entries by resource name
	content       bytes.Buffer
	removed       map[int]bool // object numbers dropped from /Annots
	removedDirect []types.Dict
	annotsDirty   bool
}

// page returns the edit record for page nr, creating it on first use
func (s *session) page(nr int) *pageEdit {
	if p, ok := s.pages[nr]; ok {
		return p
	}
	p := &pageEdit{nr: nr, xobjects: types.Dict{}, removed: make(map[int]bool)}
	if dict, ref, _, err := s.ctx.PageDict(nr, false); err == nil {
		p.dict, p.ref = dict, ref
	}
	s.pages[nr] = p
	return p
}

// addXObject registers obj under a resource name unused on the page
func (s *session) addXObject(p *pageEdit, prefix string, obj types.Object) string {
	existing := s.pageXObjects(p)
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := existing[name]; taken {
			continue
		}
		if _, taken := p.xobjects[name]; taken {
			continue
		}
		p.xobjects[name] = obj
		return name
	}
}

// pageResources returns the page's effective resource dictionary
func (s *session) pageResources(p *pageEdit) types.Dict {
	if p.dict == nil {
		return nil
	}
	obj, found := acroform.Inherited(s.ctx, p.dict, "Resources")
	if !found {
		return nil
	}
	res, err := s.ctx.DereferenceDict(obj)
	if err != nil {
		return nil
	}
	return res
}

func (s *session) pageXObjects(p *pageEdit) types.Dict {
	res := s.pageResources(p)
	if res == nil {
		return nil
	}
	obj, found := res.Find("XObject")
	if !found {
		return nil
	}
	xobjs, err := s.ctx.DereferenceDict(obj)
	if err != nil {
		return nil
	}
	return xobjs
}

// mediaBox returns the page's inherited /MediaBox, defaulting to US Letter
func (s *session) mediaBox(p *pageEdit) acroform.Rect {
	box := acroform.Rect{URX: 612, URY: 792}
	if p.dict == nil {
		return box
	}
	obj, found := acroform.Inherited(s.ctx, p.dict, "MediaBox")
	if !found {
		return box
	}
	arr, err := s.ctx.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return box
	}
	var c [4]float64
	for i, v := range arr {
		f, err := s.ctx.DereferenceNumber(v)
		if err != nil {
			return box
		}
		c[i] = f
	}
	return acroform.Rect{LLX: c[0], LLY: c[1], URX: c[2], URY: c[3]}
}

// commitPages writes every edited page: new resources, content wrapped in
// q/Q followed by the drawn overlay, and the filtered /Annots. Pages are
// processed in ascending order.
func (s *session) commitPages() error {
	nrs := make([]int, 0, len(s.pages))
	for nr := range s.pages {
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)

	for _, nr := range nrs {
		p := s.pages[nr]
		if p.dict == nil || p.ref == nil {
			return fmt.Errorf("page %d not found", nr)
		}

		changed := false

		if len(p.xobjects) > 0 {
			res := types.Dict{}
			for k, v := range s.pageResources(p) {
				res[k] = v
			}
			xobjs := types.Dict{}
			for k, v := range s.pageXObjects(p) {
				xobjs[k] = v
			}
			for k, v := range p.xobjects {
				xobjs[k] = v
			}
			res["XObject"] = xobjs
			p.dict["Resources"] = res
			changed = true
		}

		if p.content.Len() > 0 {
			contents := types.Array{s.u.addStream(types.Dict{}, []byte("q\n"))}
			if obj, found := p.dict.Find("Contents"); found {
				if arr, err := s.ctx.DereferenceArray(obj); err == nil && isArray(s, obj) {
					contents = append(contents, arr...)
				} else {
					contents = append(contents, obj)
				}
			}
			overlay := append([]byte("Q\n"), p.content.Bytes()...)
			contents = append(contents, s.u.addStream(types.Dict{}, overlay))
			p.dict["Contents"] = contents
			changed = true
		}

		if len(p.removed) > 0 || len(p.removedDirect) > 0 || p.annotsDirty {
			if err := s.rewriteAnnots(p); err != nil {
				return err
			}
			changed = true
		}

		if changed {
			s.u.touch(p.ref, p.dict)
		}
	}
	return nil
}

// rewriteAnnots replaces the page's /Annots with a direct array that omits
// removed annotations. Direct annotation dictionaries are carried inline.
func (s *session) rewriteAnnots(p *pageEdit) error {
	obj, found := p.dict.Find("Annots")
	if !found {
		return nil
	}
	annots, err := s.ctx.DereferenceArray(obj)
	if err != nil {
		return fmt.Errorf("page %d annotations: %w", p.nr, err)
	}

	kept := types.Array{}
	for _, a := range annots {
		if ref := refOf(a); ref != nil && p.removed[ref.ObjectNumber.Value()] {
			continue
		}
		if d, ok := a.(types.Dict); ok && p.isRemovedDirect(d) {
			continue
		}
		kept = append(kept, a)
	}

	if len(kept) == 0 {
		delete(p.dict, "Annots")
		return nil
	}
	p.dict["Annots"] = kept
	return nil
}

func (p *pageEdit) isRemovedDirect(d types.Dict) bool {
	for _, r := range p.removedDirect {
		if sameDict(r, d) {
			return true
		}
	}
	return false
}

func isArray(s *session, obj types.Object) bool {
	o, err := s.ctx.Dereference(obj)
	if err != nil {
		return false
	}
	_, ok := o.(types.Array)
	return ok
}

func refOf(obj types.Object) *types.IndirectRef {
	switch ref := obj.(type) {
	case types.IndirectRef:
		return &ref
	case *types.IndirectRef:
		return ref
	}
	return nil
}
