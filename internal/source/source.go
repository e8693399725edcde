// Package source turns raw user-supplied bytes into decoded, immutable
// images. Only PNG and JPEG content is accepted.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedFormat is returned for content that is not PNG or JPEG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format identifies the encoding of the original upload.
type Format string

const (
	FormatPNG  Format = "image/png"
	FormatJPEG Format = "image/jpeg"
)

// SourceImage is a decoded raster image. It is never mutated after Decode.
type SourceImage struct {
	Name         string
	Format       Format
	OriginalSize int64
	Width        int
	Height       int

	img image.Image
}

// Image returns the decoded pixels. Callers must treat the result as read-only.
func (s *SourceImage) Image() image.Image {
	return s.img
}

// New wraps an already decoded image. Used by callers that render or
// generate pixels themselves.
func New(name string, img image.Image) *SourceImage {
	b := img.Bounds()
	return &SourceImage{
		Name:   name,
		Format: FormatPNG,
		Width:  b.Dx(),
		Height: b.Dy(),
		img:    img,
	}
}

// Detect reports the format of data, or ErrUnsupportedFormat.
func Detect(data []byte) (Format, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is(string(FormatPNG)):
		return FormatPNG, nil
	case mtype.Is(string(FormatJPEG)):
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}
}

// Decode validates and decodes data. EXIF orientation is applied to JPEG
// input so the pixels match what a viewer would display.
func Decode(name string, data []byte) (*SourceImage, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	if format == FormatJPEG {
		img = applyOrientation(img, readOrientation(data))
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode %s: empty image", name)
	}

	return &SourceImage{
		Name:         name,
		Format:       format,
		OriginalSize: int64(len(data)),
		Width:        b.Dx(),
		Height:       b.Dy(),
		img:          img,
	}, nil
}

// LoadFile reads and decodes the file at path, naming it after its base name.
func LoadFile(path string) (*SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(filepath.Base(path), data)
}
