package fill

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// update collects changed and new objects in the document's xref table and
// appends them to the source bytes as an incremental update written by
// pdfcpu. Output depends only on the source and the recorded objects, so
// identical inputs give identical bytes.
type update struct {
	ctx *model.Context
	src []byte
	nrs map[int]bool
	err error
}

func newUpdate(ctx *model.Context, src []byte) *update {
	return &update{ctx: ctx, src: src, nrs: make(map[int]bool)}
}

// touch records that the object behind ref now has content obj
func (u *update) touch(ref *types.IndirectRef, obj types.Object) {
	if ref == nil {
		return
	}
	nr := ref.ObjectNumber.Value()
	entry, ok := u.ctx.FindTableEntryLight(nr)
	if !ok {
		u.fail(fmt.Errorf("object %d is not in the cross-reference table", nr))
		return
	}
	entry.Object = obj
	u.nrs[nr] = true
}

// add allocates a new object number for obj
func (u *update) add(obj types.Object) types.IndirectRef {
	ref, err := u.ctx.IndRefForNewObject(obj)
	if err != nil {
		u.fail(err)
		return types.IndirectRef{}
	}
	u.track(*ref)
	return *ref
}

// addStream adds a Flate compressed stream with dict and content data
func (u *update) addStream(dict types.Dict, data []byte) types.IndirectRef {
	dict["Filter"] = types.Name(filter.Flate)
	sd := types.StreamDict{
		Dict:           dict,
		Content:        data,
		FilterPipeline: []types.PDFFilter{{Name: filter.Flate}},
	}
	if err := sd.Encode(); err != nil {
		u.fail(fmt.Errorf("flate encode: %w", err))
		return types.IndirectRef{}
	}
	return u.add(sd)
}

// track records an object that was inserted into the table elsewhere
func (u *update) track(ref types.IndirectRef) {
	u.nrs[ref.ObjectNumber.Value()] = true
}

func (u *update) fail(err error) {
	if u.err == nil {
		u.err = err
	}
}

func (u *update) empty() bool {
	return len(u.nrs) == 0
}

// bytes returns the source followed by the update section
func (u *update) bytes() ([]byte, error) {
	if u.err != nil {
		return nil, u.err
	}
	if u.empty() {
		out := make([]byte, len(u.src))
		copy(out, u.src)
		return out, nil
	}
	if u.ctx.Write.OffsetPrevXRef == nil {
		return nil, fmt.Errorf("source has no cross-reference section")
	}

	var buf bytes.Buffer
	buf.Grow(len(u.src) + 4096)
	buf.Write(u.src)
	if n := len(u.src); n > 0 && u.src[n-1] != '\n' && u.src[n-1] != '\r' {
		buf.WriteByte('\n')
	}

	w := u.ctx.Write
	w.Increment = true
	w.Offset = int64(buf.Len())
	w.ObjNrs = w.ObjNrs[:0]
	for _, nr := range u.order() {
		w.IncrementWithObjNr(nr)
	}
	u.ctx.WriteObjectStream = false
	u.ctx.WriteXRefStream = u.ctx.Read.UsingXRefStreams

	if err := api.WriteIncrement(u.ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// order lists the recorded objects so that every object a stream refers to
// is written before the stream. pdfcpu writes a stream's references along
// with it, in map order; writing them first keeps the layout stable. Existing
// objects that are referenced but unchanged keep their original offset.
func (u *update) order() []int {
	nrs := make([]int, 0, len(u.nrs))
	for nr := range u.nrs {
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)

	var out []int
	seen := make(map[int]bool)
	var visit func(nr int)
	visit = func(nr int) {
		if seen[nr] {
			return
		}
		seen[nr] = true
		if entry, ok := u.ctx.FindTableEntryLight(nr); ok {
			if sd, isStream := entry.Object.(types.StreamDict); isStream {
				for _, ref := range refsIn(sd.Dict) {
					if u.nrs[ref] || u.isNew(ref) {
						visit(ref)
						continue
					}
					u.keepOffset(ref)
				}
			}
		}
		out = append(out, nr)
	}
	for _, nr := range nrs {
		visit(nr)
	}
	return out
}

// isNew reports whether nr was inserted after the source was read, for
// instance a soft mask pdfcpu created along with an image.
func (u *update) isNew(nr int) bool {
	entry, ok := u.ctx.FindTableEntryLight(nr)
	return ok && !entry.Free && !entry.Compressed && entry.Offset == nil
}

// keepOffset marks an unchanged object as already written at its original
// position so pdfcpu lists it instead of copying it into the update.
func (u *update) keepOffset(nr int) {
	w := u.ctx.Write
	if w.HasWriteOffset(nr) {
		return
	}
	entry, ok := u.ctx.FindTableEntryLight(nr)
	if !ok || entry.Free {
		return
	}
	switch {
	case entry.Compressed:
		// listed by object stream, the offset is unused
		w.Table[nr] = 0
	case entry.Offset != nil:
		w.Table[nr] = *entry.Offset
	}
}

// refsIn returns the object numbers referenced from obj's direct parts, in
// key order.
func refsIn(obj types.Object) []int {
	var out []int
	switch o := obj.(type) {
	case types.IndirectRef:
		out = append(out, o.ObjectNumber.Value())
	case *types.IndirectRef:
		out = append(out, o.ObjectNumber.Value())
	case types.Dict:
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, refsIn(o[k])...)
		}
	case types.Array:
		for _, item := range o {
			out = append(out, refsIn(item)...)
		}
	}
	return out
}
