package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"photo-shrinker-go/internal/logger"
)

// DirSink writes artifacts into a directory. Existing files are never
// overwritten; a numeric suffix is added instead.
type DirSink struct {
	Dir     string
	Stamper Stamper

	log *logrus.Logger
	mu  sync.Mutex
}

// NewDirSink returns a DirSink rooted at dir.
func NewDirSink(dir string, log *logrus.Logger) *DirSink {
	return &DirSink{Dir: dir, log: logger.OrDiscard(log)}
}

// Put implements Sink.
func (d *DirSink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("create target dir: %w", err)
	}

	// Keep the extension on the temp file so exiftool recognises it.
	tmpPath := filepath.Join(d.Dir, ".tmp-"+base)
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("write tmp file: %w", err)
	}

	if d.Stamper != nil && contentType == "image/jpeg" {
		if err := d.Stamper.Stamp(tmpPath); err != nil {
			logger.WithImageOperation(d.log, base, "stamp").WithError(err).Warn("software tag not written")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	outPath := uniquePath(filepath.Join(d.Dir, base))
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename: %w", err)
	}
	return outPath, nil
}

// uniquePath returns path, or path with " (n)" before the extension when
// path already exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
