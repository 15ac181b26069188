package fill

import (
	"bytes"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
	"github.com/a3tai/pdf-autofill/internal/pdf/pdftest"
)

func readTestContext(t *testing.T, src []byte) *model.Context {
	t.Helper()
	ctx, err := extraction.ReadContext(src)
	require.NoError(t, err)
	return ctx
}

// xrefStreamForm rewrites SimpleForm with a cross-reference stream and
// object streams.
func xrefStreamForm(t *testing.T) []byte {
	t.Helper()
	ctx := readTestContext(t, pdftest.SimpleForm())
	ctx.WriteXRefStream = true
	ctx.WriteObjectStream = true

	var buf bytes.Buffer
	require.NoError(t, api.WriteContext(ctx, &buf))
	return buf.Bytes()
}

func TestUpdate_EmptyReturnsCopy(t *testing.T) {
	src := pdftest.SimpleForm()
	u := newUpdate(readTestContext(t, src), src)

	out, err := u.bytes()
	require.NoError(t, err)
	assert.Equal(t, src, out)

	out[0] = 'X'
	assert.Equal(t, byte('%'), src[0], "result must not alias the source")
}

func TestUpdate_AppendsIncrement(t *testing.T) {
	tests := []struct {
		name       string
		src        func(t *testing.T) []byte
		xrefStream bool
	}{
		{"xref table", func(*testing.T) []byte { return pdftest.SimpleForm() }, false},
		{"xref stream", xrefStreamForm, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.src(t)
			ctx := readTestContext(t, src)
			require.Equal(t, tt.xrefStream, ctx.Read.UsingXRefStreams)

			u := newUpdate(ctx, src)
			marker := u.add(types.Dict{"Type": types.Name("Marker")})
			catalog, err := ctx.Catalog()
			require.NoError(t, err)
			catalog["Marker"] = marker
			u.touch(ctx.Root, catalog)

			out, err := u.bytes()
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(out, src), "update must append to the source")

			section := out[len(src):]
			assert.Contains(t, string(section), "/Prev")
			assert.True(t, bytes.HasSuffix(bytes.TrimRight(out, "\r\n"), []byte("%%EOF")))
			if tt.xrefStream {
				assert.Contains(t, string(section), "/XRef")
				assert.NotContains(t, string(section), "\nxref")
			} else {
				assert.Contains(t, string(section), "\nxref")
			}

			reread := readTestContext(t, out)
			got, err := reread.Catalog()
			require.NoError(t, err)
			d, err := reread.DereferenceDict(got["Marker"])
			require.NoError(t, err)
			require.NotNil(t, d.Type())
			assert.Equal(t, "Marker", *d.Type())
		})
	}
}

func TestUpdate_StreamReferencesComeFirst(t *testing.T) {
	src := pdftest.SimpleForm()
	ctx := readTestContext(t, src)
	u := newUpdate(ctx, src)

	// an object pdfcpu inserted on its own, reachable only from the stream
	mask, err := ctx.IndRefForNewObject(types.Dict{"Type": types.Name("Mask")})
	require.NoError(t, err)

	font := u.add(types.Dict{"Type": types.Name("Font")})
	stream := u.addStream(types.Dict{
		"Resources": types.Dict{"Font": types.Dict{"F0": font, "F1": *ctx.Root}},
		"SMask":     *mask,
	}, []byte("BT ET"))

	order := u.order()
	pos := make(map[int]int)
	for i, nr := range order {
		pos[nr] = i
	}

	require.Contains(t, pos, mask.ObjectNumber.Value())
	assert.Less(t, pos[font.ObjectNumber.Value()], pos[stream.ObjectNumber.Value()])
	assert.Less(t, pos[mask.ObjectNumber.Value()], pos[stream.ObjectNumber.Value()])

	// the unchanged catalog is listed at its original offset, not copied
	root := ctx.Root.ObjectNumber.Value()
	assert.NotContains(t, pos, root)
	entry, ok := ctx.FindTableEntryLight(root)
	require.True(t, ok)
	assert.Equal(t, *entry.Offset, ctx.Write.Table[root])
}

func TestUpdate_UnknownObjectFails(t *testing.T) {
	src := pdftest.SimpleForm()
	u := newUpdate(readTestContext(t, src), src)

	u.touch(types.NewIndirectRef(9999, 0), types.Dict{})

	_, err := u.bytes()
	require.Error(t, err)
}

func TestRefsIn(t *testing.T) {
	d := types.Dict{
		"B": types.Array{*types.NewIndirectRef(3, 0), types.Integer(1)},
		"A": types.Dict{"X": types.NewIndirectRef(7, 0)},
		"C": types.Name("Plain"),
	}
	assert.Equal(t, []int{7, 3}, refsIn(d))
}
