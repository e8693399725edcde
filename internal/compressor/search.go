package compressor

import (
	"math"

	"photo-shrinker-go/internal/config"
)

// Attempt is the search state of one encode pass. Quality is a percentage
// so the floor is reached exactly.
type Attempt struct {
	Quality int
	Scale   float64
}

// Policy holds the constants that drive the quality/scale search.
type Policy struct {
	MaxDimension   int
	InitialQuality int
	QualityStep    int
	QualityFloor   int
	// ScaleThreshold is the quality below which every step also shrinks the scale.
	ScaleThreshold int
	ScaleStep      float64
}

// DefaultPolicy returns the standard search: start at 90%, step 5% down to
// 5%, and shrink by 5% of the original size on every step below 30%.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultConfig().Compression)
}

// PolicyFromConfig builds a Policy from the compression config section.
func PolicyFromConfig(cfg config.CompressionConfig) Policy {
	return Policy{
		MaxDimension:   cfg.MaxDimension,
		InitialQuality: cfg.InitialQuality,
		QualityStep:    cfg.QualityStep,
		QualityFloor:   cfg.QualityFloor,
		ScaleThreshold: cfg.ScaleThreshold,
		ScaleStep:      cfg.ScaleStep,
	}
}

// Start returns the first attempt for an image of the given size. The scale
// caps the longest side at MaxDimension and never upsizes.
func (p Policy) Start(width, height int) Attempt {
	scale := 1.0
	if p.MaxDimension > 0 && width > 0 && height > 0 {
		scale = math.Min(scale, float64(p.MaxDimension)/float64(width))
		scale = math.Min(scale, float64(p.MaxDimension)/float64(height))
	}
	return Attempt{Quality: p.InitialQuality, Scale: scale}
}

// Next returns the attempt that follows a, or false once the quality floor
// has been reached. Quality and scale never increase.
func (p Policy) Next(a Attempt) (Attempt, bool) {
	if a.Quality <= p.QualityFloor {
		return a, false
	}

	next := a
	next.Quality = a.Quality - p.QualityStep
	if next.Quality < p.QualityFloor {
		next.Quality = p.QualityFloor
	}

	if next.Quality < p.ScaleThreshold {
		// Keep the scale positive; stop shrinking once another step would
		// take it below one step.
		if s := roundScale(a.Scale - p.ScaleStep); s >= p.ScaleStep {
			next.Scale = s
		}
	}

	return next, true
}

// Dimensions returns the pixel size of an image of width×height at scale,
// never smaller than 1×1.
func (a Attempt) Dimensions(width, height int) (int, int) {
	w := int(float64(width)*a.Scale + 1e-9)
	h := int(float64(height)*a.Scale + 1e-9)
	return max(w, 1), max(h, 1)
}

func roundScale(s float64) float64 {
	return math.Round(s*1e6) / 1e6
}
