package document

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const pointsPerMM = 72 / 25.4

// Rect is a placement rectangle in PDF points, measured from the top-left
// corner of the page.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Geometry describes the page every image is placed on.
type Geometry struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
}

// NewGeometry returns the geometry for a named paper size (A4, Letter, ...)
// with margins given in millimetres.
func NewGeometry(pageSize string, marginMM float64) (Geometry, error) {
	var dim *types.Dim
	for name, d := range types.PaperSize {
		if strings.EqualFold(name, pageSize) {
			dim = d
			break
		}
	}
	if dim == nil {
		return Geometry{}, fmt.Errorf("unknown page size %q", pageSize)
	}
	g := Geometry{
		PageWidth:  dim.Width,
		PageHeight: dim.Height,
		Margin:     marginMM * pointsPerMM,
	}
	if g.ContentWidth() <= 0 {
		return Geometry{}, fmt.Errorf("margin %.1fmm leaves no room on %s", marginMM, pageSize)
	}
	return g, nil
}

// DefaultGeometry is A4 portrait with 10mm margins.
func DefaultGeometry() Geometry {
	g, err := NewGeometry("A4", 10)
	if err != nil {
		panic(err)
	}
	return g
}

// ContentWidth is the fixed width every image is drawn at.
func (g Geometry) ContentWidth() float64 {
	return g.PageWidth - 2*g.Margin
}

// Place returns the rectangle for an image of width×height pixels: the
// content width, with the height following the image's aspect ratio.
func (g Geometry) Place(width, height int) Rect {
	w := g.ContentWidth()
	return Rect{
		X:      g.Margin,
		Y:      g.Margin,
		Width:  w,
		Height: w * float64(height) / float64(width),
	}
}
