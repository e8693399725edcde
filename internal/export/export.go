// Package export delivers compressed images and documents to their final
// destination: a local directory or an S3 bucket.
package export

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"photo-shrinker-go/internal/collection"
	"photo-shrinker-go/internal/compressor"
	"photo-shrinker-go/internal/config"
	"photo-shrinker-go/internal/logger"
)

// Sink stores one named artifact and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Failure records one entry that could not be exported.
type Failure struct {
	Name string
	Err  error
}

// Report summarizes an ExportAll run.
type Report struct {
	Written []string
	Failed  []Failure
}

// ExportAll writes every entry through sink in collection order. A failing
// entry is recorded and the remaining entries are still written.
func ExportAll(ctx context.Context, sink Sink, entries []collection.Entry, log *logrus.Logger) Report {
	log = logger.OrDiscard(log)
	var rep Report
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			rep.Failed = append(rep.Failed, Failure{Name: e.Name, Err: err})
			continue
		}
		loc, err := sink.Put(ctx, e.Name, compressor.ContentType, e.Data)
		if err != nil {
			logger.WithImageOperation(log, e.Name, "export").WithError(err).Warn("export failed")
			rep.Failed = append(rep.Failed, Failure{Name: e.Name, Err: err})
			continue
		}
		logger.WithImageOperation(log, e.Name, "export").WithField("location", loc).Debug("exported")
		rep.Written = append(rep.Written, loc)
	}
	return rep
}

// NewSink builds the sink selected by the export config.
func NewSink(ctx context.Context, cfg config.ExportConfig, log *logrus.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", "dir":
		sink := NewDirSink(cfg.Directory, log)
		if cfg.StampSoftware {
			sink.Stamper = NewExiftoolStamper(DefaultSoftwareTag)
		}
		return sink, nil
	case "s3":
		return NewS3Sink(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown export sink %q", cfg.Sink)
	}
}
