// Package document assembles an ordered sequence of images into a single
// PDF that fits a byte budget by lowering one JPEG quality shared by all pages.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"photo-shrinker-go/internal/compressor"
	"photo-shrinker-go/internal/config"
	"photo-shrinker-go/internal/logger"
	"photo-shrinker-go/internal/source"
)

var (
	// ErrEmptyInput is returned when there are no images to assemble.
	ErrEmptyInput = errors.New("no images to assemble")
	// ErrPageEncodeFailure is wrapped by every PageEncodeError.
	ErrPageEncodeFailure = errors.New("page encode failure")
)

// PageEncodeError reports the page whose image could not be re-encoded.
type PageEncodeError struct {
	Page int // 1-based
	Name string
	Err  error
}

func (e *PageEncodeError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Page, e.Name, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *PageEncodeError) Unwrap() []error {
	return []error{ErrPageEncodeFailure, e.Err}
}

// DocumentPage is one image placed on its own page.
type DocumentPage struct {
	Number     int // 1-based
	Name       string
	Width      int
	Height     int
	Rect       Rect
	ImageBytes int64
}

// AssembledDocument is a complete document built at one shared quality.
type AssembledDocument struct {
	Name         string
	Data         []byte
	Size         int64
	Quality      int // percent, identical on every page
	Pages        []DocumentPage
	Builds       int // full builds performed, including the final one
	WithinBudget bool
}

// Policy controls the shared quality search.
type Policy struct {
	InitialQuality int
	QualityStep    int
	QualityFloor   int
}

// DefaultPolicy starts at 95% and steps by 5% down to 10%.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultConfig().Document)
}

// PolicyFromConfig builds a Policy from the document config section.
func PolicyFromConfig(cfg config.DocumentConfig) Policy {
	return Policy{
		InitialQuality: cfg.InitialQuality,
		QualityStep:    cfg.QualityStep,
		QualityFloor:   cfg.QualityFloor,
	}
}

// Assembler builds budgeted documents.
type Assembler struct {
	policy   Policy
	geometry Geometry
	encoder  compressor.Encoder
	writer   Writer
	name     string
	log      *logrus.Logger
}

// Options configures an Assembler. Zero values select the defaults.
type Options struct {
	Policy   Policy
	Geometry Geometry
	Encoder  compressor.Encoder
	Writer   Writer
	Name     string
	Logger   *logrus.Logger
}

// NewAssembler returns an Assembler.
func NewAssembler(opts Options) *Assembler {
	a := &Assembler{
		policy:   opts.Policy,
		geometry: opts.Geometry,
		encoder:  opts.Encoder,
		writer:   opts.Writer,
		name:     opts.Name,
		log:      logger.OrDiscard(opts.Logger),
	}
	if a.policy == (Policy{}) {
		a.policy = DefaultPolicy()
	}
	if a.geometry == (Geometry{}) {
		a.geometry = DefaultGeometry()
	}
	if a.encoder == nil {
		a.encoder = compressor.JPEGEncoder{}
	}
	if a.writer == nil {
		a.writer = NewPDFWriter()
	}
	if a.name == "" {
		a.name = config.DocumentFileName
	}
	return a
}

// Assemble places every image on its own page, in the given order, and
// lowers the shared quality until the document fits targetBytes or the
// floor is reached. The returned document always comes from one extra full
// build at the last quality tried. Budgets <= 0 select the default budget.
func (a *Assembler) Assemble(ctx context.Context, images []*source.SourceImage, targetBytes int64) (*AssembledDocument, error) {
	if len(images) == 0 {
		return nil, ErrEmptyInput
	}
	if targetBytes <= 0 {
		targetBytes = config.DocumentBudgetBytes(0)
	}

	entry := logger.WithOperation(a.log, "assemble").WithFields(logrus.Fields{
		"pages":  len(images),
		"target": targetBytes,
	})

	quality := a.policy.InitialQuality
	doc, err := a.build(ctx, images, quality)
	if err != nil {
		return nil, err
	}
	builds := 1

	for doc.Size > targetBytes && quality > a.policy.QualityFloor {
		quality = max(quality-a.policy.QualityStep, a.policy.QualityFloor)
		doc, err = a.build(ctx, images, quality)
		if err != nil {
			return nil, err
		}
		builds++
		entry.WithFields(logrus.Fields{"quality": quality, "size": doc.Size}).Debug("document build")
	}

	final, err := a.build(ctx, images, quality)
	if err != nil {
		return nil, err
	}
	builds++

	final.Builds = builds
	final.WithinBudget = final.Size <= targetBytes

	entry.WithFields(logrus.Fields{
		"quality": final.Quality,
		"size":    final.Size,
		"builds":  builds,
	}).Info("document assembled")

	return final, nil
}

// build re-encodes every original image at quality and writes a new document.
func (a *Assembler) build(ctx context.Context, images []*source.SourceImage, quality int) (*AssembledDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages := make([]PageImage, len(images))
	meta := make([]DocumentPage, len(images))
	for i, img := range images {
		if img == nil || img.Image() == nil {
			return nil, &PageEncodeError{Page: i + 1, Err: errors.New("missing image")}
		}
		data, err := a.encoder.Encode(img.Image(), quality)
		if err != nil {
			return nil, &PageEncodeError{Page: i + 1, Name: img.Name, Err: err}
		}
		rect := a.geometry.Place(img.Width, img.Height)
		pages[i] = PageImage{Data: data, Width: img.Width, Height: img.Height, Rect: rect}
		meta[i] = DocumentPage{
			Number:     i + 1,
			Name:       img.Name,
			Width:      img.Width,
			Height:     img.Height,
			Rect:       rect,
			ImageBytes: int64(len(data)),
		}
	}

	data, err := a.writer.Write(pages, a.geometry)
	if err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	return &AssembledDocument{
		Name:    a.name,
		Data:    data,
		Size:    int64(len(data)),
		Quality: quality,
		Pages:   meta,
	}, nil
}
