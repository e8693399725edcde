package compressor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"photo-shrinker-go/internal/logger"
	"photo-shrinker-go/internal/metrics"
	"photo-shrinker-go/internal/source"
	"photo-shrinker-go/internal/statistics"
)

// BatchOptions configures a BatchProcessor. Every field is optional.
type BatchOptions struct {
	Workers  int
	Logger   *logrus.Logger
	Stats    *statistics.Statistics
	Metrics  *metrics.Metrics
	Listener Listener
}

// BatchProcessor runs decode, compress and publish for many uploads. Items
// are independent: a failure is recorded on its own ItemResult and never
// stops the others.
type BatchProcessor struct {
	compressor Compressor
	workers    int
	log        *logrus.Logger
	stats      *statistics.Statistics
	metrics    *metrics.Metrics
	listener   Listener
}

// NewBatchProcessor returns a BatchProcessor around c.
func NewBatchProcessor(c Compressor, opts BatchOptions) *BatchProcessor {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &BatchProcessor{
		compressor: c,
		workers:    workers,
		log:        logger.OrDiscard(opts.Logger),
		stats:      opts.Stats,
		metrics:    opts.Metrics,
		listener:   opts.Listener,
	}
}

// Process compresses every input against targetBytes. The returned slice
// has one entry per input, in input order. The listener sees results in the
// same order, each as soon as all earlier items have finished.
func (b *BatchProcessor) Process(ctx context.Context, inputs []Input, targetBytes int64) []ItemResult {
	if len(inputs) == 0 {
		return nil
	}

	type job struct {
		index int
		input Input
	}

	numWorkers := min(b.workers, len(inputs))
	jobs := make(chan job, len(inputs))
	results := make(chan ItemResult, len(inputs))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- b.processOne(ctx, j.index, j.input, targetBytes)
			}
		}()
	}

	for i, in := range inputs {
		jobs <- job{index: i, input: in}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]ItemResult, len(inputs))
	done := make([]bool, len(inputs))
	next := 0
	for r := range results {
		out[r.Index] = r
		done[r.Index] = true
		for next < len(out) && done[next] {
			b.publish(out[next])
			next++
		}
	}

	if b.stats != nil {
		b.stats.Finalize()
	}
	return out
}

func (b *BatchProcessor) processOne(ctx context.Context, index int, in Input, targetBytes int64) ItemResult {
	res := ItemResult{
		Index:        index,
		Name:         in.Name,
		OriginalSize: int64(len(in.Data)),
		StartedAt:    time.Now(),
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		res.FinishedAt = time.Now()
		return res
	}

	src, err := source.Decode(in.Name, in.Data)
	if err != nil {
		if !errors.Is(err, source.ErrUnsupportedFormat) {
			err = fmt.Errorf("%w: %w", ErrEncodeFailure, err)
		}
		res.Err = err
		res.FinishedAt = time.Now()
		return res
	}

	img, err := b.compressor.Compress(ctx, src, targetBytes)
	res.FinishedAt = time.Now()
	if err != nil {
		res.Err = err
		return res
	}
	res.Image = img
	return res
}

// publish updates statistics and notifies the listener for one finished item.
func (b *BatchProcessor) publish(res ItemResult) {
	entry := logger.WithImage(b.log, res.Name)

	if b.stats != nil {
		b.stats.IncrementImagesFound()
		b.stats.AddBytesIn(res.OriginalSize)
	}

	if !res.Success() {
		kind := "failed"
		if errors.Is(res.Err, source.ErrUnsupportedFormat) {
			kind = "rejected"
		}
		entry.WithError(res.Err).Warn("image could not be processed")
		if b.stats != nil {
			if kind == "rejected" {
				b.stats.IncrementImagesRejected()
			} else {
				b.stats.IncrementImagesFailed()
			}
			b.stats.AddError(res.Name, "compress", res.Err.Error())
		}
		b.metrics.ImageFailed(kind)
		if b.listener != nil {
			b.listener.ImageFailed(res)
		}
		return
	}

	img := res.Image
	kind := "compressed"
	if !img.WithinBudget {
		kind = "over_budget"
	}
	entry.WithFields(logrus.Fields{
		"original": res.OriginalSize,
		"size":     img.Size,
		"quality":  img.Quality,
		"scale":    img.Scale,
		"passes":   img.Iterations,
	}).Info("image compressed")

	if b.stats != nil {
		b.stats.IncrementImagesCompressed()
		if !img.WithinBudget {
			b.stats.IncrementImagesOverBudget()
		}
		b.stats.AddEncodePasses(img.Iterations)
		b.stats.AddBytesOut(img.Size)
		b.stats.IncrementFileType(fileType(res.Name))
	}
	b.metrics.ObserveImage(kind, img.Iterations, res.OriginalSize, img.Size, res.FinishedAt.Sub(res.StartedAt))
	if b.listener != nil {
		b.listener.ImageCompressed(res)
	}
}

func fileType(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "UNKNOWN"
	}
	return strings.ToUpper(name[i+1:])
}
