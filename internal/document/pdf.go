package document

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ContentType is the MIME type of assembled documents.
const ContentType = "application/pdf"

// PageImage is one encoded image and where it goes on its page.
type PageImage struct {
	Data   []byte // JPEG
	Width  int    // pixels
	Height int
	Rect   Rect
}

// Writer lays out one image per page, in order, and returns the document bytes.
type Writer interface {
	Write(pages []PageImage, g Geometry) ([]byte, error)
}

// PDFWriter writes documents with pdfcpu. JPEG payloads are embedded as-is,
// so the document size follows the encode quality.
type PDFWriter struct {
	conf *model.Configuration
}

// NewPDFWriter returns a PDFWriter using pdfcpu's default configuration.
func NewPDFWriter() *PDFWriter {
	return &PDFWriter{conf: model.NewDefaultConfiguration()}
}

// Write implements Writer. Each page is imported separately because the
// absolute scale that turns pixels into the placement width differs per image.
func (w *PDFWriter) Write(pages []PageImage, g Geometry) ([]byte, error) {
	var doc []byte
	for i, p := range pages {
		var rs io.ReadSeeker
		if doc != nil {
			rs = bytes.NewReader(doc)
		}
		var out bytes.Buffer
		imgs := []io.Reader{bytes.NewReader(p.Data)}
		if err := api.ImportImages(rs, &out, imgs, importFor(p, g), w.conf); err != nil {
			return nil, fmt.Errorf("write page %d: %w", i+1, err)
		}
		doc = out.Bytes()
	}
	return doc, nil
}

// importFor anchors the image at the top-left margin and scales it so its
// width matches the placement rectangle.
func importFor(p PageImage, g Geometry) *pdfcpu.Import {
	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: g.PageWidth, Height: g.PageHeight}
	imp.UserDim = true
	imp.Pos = types.TopLeft
	imp.Dx = p.Rect.X
	imp.Dy = -p.Rect.Y
	imp.ScaleAbs = true
	imp.Scale = p.Rect.Width / float64(p.Width)
	return imp
}

// PageCount returns the number of pages in a PDF document.
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
}
