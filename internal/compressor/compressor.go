package compressor

import (
	"context"
	"errors"
	"image"
	"time"

	"photo-shrinker-go/internal/source"
)

// ErrEncodeFailure is returned when resampling or encoding fails mid-loop.
var ErrEncodeFailure = errors.New("encode failure")

// ErrUnsupportedFormat is re-exported so callers can classify batch failures
// without importing the source package.
var ErrUnsupportedFormat = source.ErrUnsupportedFormat

// EncodedImage is the result of one encode pass. Size is always len(Data).
type EncodedImage struct {
	Name         string
	Data         []byte
	Size         int64
	Quality      int     // percent
	Scale        float64 // relative to the source
	Width        int
	Height       int
	Iterations   int // encode passes performed to reach this result
	WithinBudget bool
}

// ContentType is the MIME type of every encoded image.
const ContentType = "image/jpeg"

// Encoder turns pixels into bytes at a quality percentage.
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// Resampler resizes an image to exact pixel dimensions.
type Resampler interface {
	Resample(img image.Image, width, height int) (image.Image, error)
}

// Compressor fits one image into a byte budget.
type Compressor interface {
	Compress(ctx context.Context, src *source.SourceImage, targetBytes int64) (*EncodedImage, error)
}

// Input is one raw upload submitted for batch compression.
type Input struct {
	Name string
	Data []byte
}

// ItemResult describes the outcome for a single input. Exactly one of Image
// and Err is set.
type ItemResult struct {
	Index        int
	Name         string
	OriginalSize int64
	Image        *EncodedImage
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Success reports whether the item produced an image.
func (r ItemResult) Success() bool {
	return r.Err == nil && r.Image != nil
}

// Listener receives per-item outcomes in submission order.
type Listener interface {
	ImageCompressed(res ItemResult)
	ImageFailed(res ItemResult)
}
