package fill

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image samples per PDF point in the embedded signature
const (
	samplesPerPoint = 2.0
	maxSamples      = 2000
)

// SignaturePlacement positions a signature image drawn in a top-left-origin
// container that represents the page.
type SignaturePlacement struct {
	ImageBytes      []byte
	X               float64
	Y               float64
	Width           float64
	Height          float64
	ContainerWidth  float64
	ContainerHeight float64
	PageIndex       int
}

// Rect is a rectangle in PDF user space, origin bottom-left
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PlacementRect converts a container-space placement into PDF space for a
// page of pageW by pageH points.
func PlacementRect(p SignaturePlacement, pageW, pageH float64) Rect {
	scaleX := pageW / p.ContainerWidth
	scaleY := pageH / p.ContainerHeight

	pdfW := p.Width * scaleX
	pdfH := p.Height * scaleY
	return Rect{
		X:      p.X * scaleX,
		Y:      pageH - p.Y*scaleY - pdfH,
		Width:  pdfW,
		Height: pdfH,
	}
}

// ClampPage returns the zero-based page index a placement lands on
func ClampPage(pageIndex, pageCount int) int {
	if pageIndex > pageCount-1 {
		pageIndex = pageCount - 1
	}
	if pageIndex < 0 {
		pageIndex = 0
	}
	return pageIndex
}

// DecodeSignatureDataURL returns the image bytes of a base64 data URL
// ("data:image/png;base64,....") or of bare base64.
func DecodeSignatureDataURL(s string) ([]byte, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		if !strings.Contains(payload[:comma], ";base64") {
			return nil, fmt.Errorf("data URL is not base64 encoded")
		}
		payload = payload[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}

// drawSignature embeds the placement's image once and draws it on its page
func (s *session) drawSignature(sig SignaturePlacement) error {
	if sig.ContainerWidth <= 0 || sig.ContainerHeight <= 0 {
		return fmt.Errorf("container size must be positive")
	}
	if sig.Width <= 0 || sig.Height <= 0 {
		return fmt.Errorf("signature size must be positive")
	}
	if s.ctx.PageCount < 1 {
		return fmt.Errorf("document has no pages")
	}

	p := s.page(ClampPage(sig.PageIndex, s.ctx.PageCount) + 1)
	box := s.mediaBox(p)
	rect := PlacementRect(sig, box.Width(), box.Height())
	rect.X += box.LLX
	rect.Y += box.LLY

	src, _, err := image.Decode(bytes.NewReader(sig.ImageBytes))
	if err != nil {
		return fmt.Errorf("failed to decode signature image: %w", err)
	}

	imgRef, err := s.embedImage(src, rect)
	if err != nil {
		return err
	}

	name := s.addXObject(p, "Sig", imgRef)
	fmt.Fprintf(&p.content, "q %s 0 0 %s %s %s cm /%s Do Q\n",
		formatNumber(rect.Width), formatNumber(rect.Height), formatNumber(rect.X), formatNumber(rect.Y), name)

	s.logger.WithFields(logrus.Fields{
		"page": p.nr,
		"x":    rect.X,
		"y":    rect.Y,
		"w":    rect.Width,
		"h":    rect.Height,
	}).Debug("Signature placed")
	return nil
}

// embedImage resamples src to the rectangle's aspect ratio and adds it as
// an image XObject. pdfcpu gives it an alpha soft mask when src is not opaque.
func (s *session) embedImage(src image.Image, rect Rect) (types.IndirectRef, error) {
	w := samples(rect.Width)
	h := samples(rect.Height)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return types.IndirectRef{}, fmt.Errorf("encode resampled image: %w", err)
	}

	ref, _, _, err := model.CreateImageResource(s.ctx.XRefTable, &buf)
	if err != nil {
		return types.IndirectRef{}, fmt.Errorf("create image resource: %w", err)
	}
	s.u.track(*ref)
	return *ref, nil
}

func samples(points float64) int {
	n := int(math.Ceil(points * samplesPerPoint))
	if n < 1 {
		n = 1
	}
	if n > maxSamples {
		n = maxSamples
	}
	return n
}
