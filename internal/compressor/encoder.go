package compressor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// JPEGEncoder encodes images as baseline JPEG.
type JPEGEncoder struct{}

// Encode implements Encoder.
func (JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LinearResampler resizes with a bilinear filter.
type LinearResampler struct{}

// Resample implements Resampler.
func (LinearResampler) Resample(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return imaging.Resize(img, width, height, imaging.Linear), nil
}
