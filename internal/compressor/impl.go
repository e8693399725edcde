package compressor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"photo-shrinker-go/internal/config"
	"photo-shrinker-go/internal/logger"
	"photo-shrinker-go/internal/source"
)

// BudgetCompressor is the default implementation of the Compressor interface.
// It lowers JPEG quality step by step and, once quality falls below the
// policy threshold, shrinks the resolution on the same steps.
type BudgetCompressor struct {
	policy    Policy
	encoder   Encoder
	resampler Resampler
	log       *logrus.Logger
}

// Option customizes a BudgetCompressor.
type Option func(*BudgetCompressor)

// WithEncoder replaces the JPEG encoder.
func WithEncoder(e Encoder) Option {
	return func(c *BudgetCompressor) { c.encoder = e }
}

// WithResampler replaces the bilinear resampler.
func WithResampler(r Resampler) Option {
	return func(c *BudgetCompressor) { c.resampler = r }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *BudgetCompressor) { c.log = log }
}

// NewBudgetCompressor creates a compressor for the given policy.
func NewBudgetCompressor(policy Policy, opts ...Option) *BudgetCompressor {
	c := &BudgetCompressor{
		policy:    policy,
		encoder:   JPEGEncoder{},
		resampler: LinearResampler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDiscard(c.log)
	return c
}

// NewDefaultCompressor creates a compressor with the default policy.
func NewDefaultCompressor(opts ...Option) *BudgetCompressor {
	return NewBudgetCompressor(DefaultPolicy(), opts...)
}

// Policy returns the search policy in use.
func (c *BudgetCompressor) Policy() Policy {
	return c.policy
}

// Compress re-encodes src until it fits targetBytes or the quality floor is
// reached. Budgets below the minimum are replaced with the default budget.
// The loop always resamples from src, never from a previous attempt.
func (c *BudgetCompressor) Compress(ctx context.Context, src *source.SourceImage, targetBytes int64) (*EncodedImage, error) {
	if src == nil || src.Image() == nil {
		return nil, fmt.Errorf("%w: no image", ErrEncodeFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	targetBytes = normalizeTarget(targetBytes)

	entry := logger.WithImageOperation(c.log, src.Name, "compress")

	attempt := c.policy.Start(src.Width, src.Height)
	result, err := c.encodeAttempt(src, attempt)
	if err != nil {
		return nil, err
	}
	iterations := 1

	for result.Size > targetBytes {
		next, ok := c.policy.Next(attempt)
		if !ok {
			break
		}
		attempt = next
		result, err = c.encodeAttempt(src, attempt)
		if err != nil {
			return nil, err
		}
		iterations++
		entry.WithFields(logrus.Fields{
			"quality": attempt.Quality,
			"scale":   attempt.Scale,
			"size":    result.Size,
		}).Debug("encode pass")
	}

	result.Iterations = iterations
	result.WithinBudget = result.Size <= targetBytes

	entry.WithFields(logrus.Fields{
		"quality":    result.Quality,
		"scale":      result.Scale,
		"size":       result.Size,
		"target":     targetBytes,
		"iterations": iterations,
	}).Debug("compression finished")

	return result, nil
}

func (c *BudgetCompressor) encodeAttempt(src *source.SourceImage, a Attempt) (*EncodedImage, error) {
	w, h := a.Dimensions(src.Width, src.Height)

	img, err := c.resampler.Resample(src.Image(), w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: resample to %dx%d: %w", ErrEncodeFailure, src.Name, w, h, err)
	}

	data, err := c.encoder.Encode(img, a.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: quality %d: %w", ErrEncodeFailure, src.Name, a.Quality, err)
	}

	return &EncodedImage{
		Name:    src.Name,
		Data:    data,
		Size:    int64(len(data)),
		Quality: a.Quality,
		Scale:   a.Scale,
		Width:   w,
		Height:  h,
	}, nil
}

func normalizeTarget(targetBytes int64) int64 {
	if targetBytes < config.MinImageTargetKB*config.KB {
		return config.DefaultImageTargetKB * config.KB
	}
	return targetBytes
}
