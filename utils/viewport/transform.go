// Package viewport maps normalized page coordinates onto the pixel geometry of a
// zoomed and scrolled page rendering, and maps pointer positions back.
//
// Every function is pure: the caller hands in the current PdfViewport each time
// and must recompute it after any zoom, scroll, resize or re-render.
package viewport

import (
	"math"

	"github.com/Aashish23092/invoice-annotation/dto"
)

// MinPixelSize keeps degenerate boxes visible and clickable.
const MinPixelSize = 1.0

// New derives a viewport from a page's original size and the current render scale.
func New(originalWidth, originalHeight, scale, offsetX, offsetY float64) dto.PdfViewport {
	return dto.PdfViewport{
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
		RenderedWidth:  originalWidth * scale,
		RenderedHeight: originalHeight * scale,
		OffsetX:        offsetX,
		OffsetY:        offsetY,
	}
}

// Ready reports whether the page has been rendered and overlays can be placed.
func Ready(vp dto.PdfViewport) bool {
	return vp.RenderedWidth > 0 && vp.RenderedHeight > 0
}

// ToPixels converts a normalized box into container-relative pixels.
func ToPixels(box dto.NormalizedBox, vp dto.PdfViewport) dto.PixelBox {
	return dto.PixelBox{
		Left:   box.X*vp.RenderedWidth + vp.OffsetX,
		Top:    box.Y*vp.RenderedHeight + vp.OffsetY,
		Width:  math.Max(MinPixelSize, box.Width*vp.RenderedWidth),
		Height: math.Max(MinPixelSize, box.Height*vp.RenderedHeight),
	}
}

// FromPixels is the inverse of ToPixels. Boxes that ToPixels floored to one
// pixel come back one pixel in size.
func FromPixels(px dto.PixelBox, vp dto.PdfViewport) dto.NormalizedBox {
	if !Ready(vp) {
		return dto.NormalizedBox{}
	}
	return dto.NormalizedBox{
		X:      (px.Left - vp.OffsetX) / vp.RenderedWidth,
		Y:      (px.Top - vp.OffsetY) / vp.RenderedHeight,
		Width:  px.Width / vp.RenderedWidth,
		Height: px.Height / vp.RenderedHeight,
	}
}

// PointToPixels converts a normalized point into container-relative pixels.
func PointToPixels(p dto.Point, vp dto.PdfViewport) dto.Point {
	return dto.Point{
		X: p.X*vp.RenderedWidth + vp.OffsetX,
		Y: p.Y*vp.RenderedHeight + vp.OffsetY,
	}
}

// ToNormalized converts a pointer position in client coordinates into a
// normalized page point. Clicks outside the page are pulled to the nearest
// edge. It returns false only when the viewport is not ready.
func ToNormalized(clientX, clientY float64, containerOrigin dto.Point, vp dto.PdfViewport) (dto.Point, bool) {
	if !Ready(vp) {
		return dto.Point{}, false
	}
	x := (clientX - containerOrigin.X - vp.OffsetX) / vp.RenderedWidth
	y := (clientY - containerOrigin.Y - vp.OffsetY) / vp.RenderedHeight
	return dto.Point{X: clamp01(x), Y: clamp01(y)}, true
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

// Overlays computes drawable geometry for every annotation. Annotations that
// only carry a point get a minimum-size box centred on it. Nothing is returned
// when the viewport is not ready.
func Overlays(annotations []dto.Annotation, vp dto.PdfViewport) []dto.Overlay {
	if !Ready(vp) {
		return nil
	}

	overlays := make([]dto.Overlay, 0, len(annotations))
	for _, ann := range annotations {
		anchor := PointToPixels(dto.Point{X: ann.X, Y: ann.Y}, vp)

		var box dto.PixelBox
		if ann.BoundingBox != nil {
			box = ToPixels(*ann.BoundingBox, vp)
		} else {
			box = dto.PixelBox{
				Left:   anchor.X - MinPixelSize/2,
				Top:    anchor.Y - MinPixelSize/2,
				Width:  MinPixelSize,
				Height: MinPixelSize,
			}
		}

		overlays = append(overlays, dto.Overlay{
			AnnotationID: ann.ID,
			Type:         ann.Type,
			Color:        ann.Color,
			Value:        ann.Value,
			Box:          box,
			Anchor:       anchor,
		})
	}
	return overlays
}
