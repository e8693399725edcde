package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics contains all statistics for one compression or assembly run.
type Statistics struct {
	ImagesFound      int64
	ImagesCompressed int64
	ImagesFailed     int64
	ImagesRejected   int64
	ImagesOverBudget int64
	ImagesRemoved    int64

	EncodePasses int64
	BytesIn      int64
	BytesOut     int64

	DocumentsAssembled int64
	DocumentsFailed    int64
	DocumentBuilds     int64
	DocumentPages      int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []StatError

	FileTypeStats map[string]int64

	mutex sync.RWMutex
}

// StatError represents an error that occurred during processing.
type StatError struct {
	Name      string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// IncrementImagesFound increases the count of submitted images by 1.
func (s *Statistics) IncrementImagesFound() {
	atomic.AddInt64(&s.ImagesFound, 1)
}

// IncrementImagesCompressed increases the count of compressed images by 1.
func (s *Statistics) IncrementImagesCompressed() {
	atomic.AddInt64(&s.ImagesCompressed, 1)
}

// IncrementImagesFailed increases the count of images that failed mid-loop by 1.
func (s *Statistics) IncrementImagesFailed() {
	atomic.AddInt64(&s.ImagesFailed, 1)
}

// IncrementImagesRejected increases the count of images rejected before compression by 1.
func (s *Statistics) IncrementImagesRejected() {
	atomic.AddInt64(&s.ImagesRejected, 1)
}

// IncrementImagesOverBudget counts results that stopped at the quality floor above target.
func (s *Statistics) IncrementImagesOverBudget() {
	atomic.AddInt64(&s.ImagesOverBudget, 1)
}

// IncrementImagesRemoved increases the count of results removed from the collection by 1.
func (s *Statistics) IncrementImagesRemoved() {
	atomic.AddInt64(&s.ImagesRemoved, 1)
}

// AddEncodePasses adds n encode passes.
func (s *Statistics) AddEncodePasses(n int) {
	atomic.AddInt64(&s.EncodePasses, int64(n))
}

// AddBytesIn adds the size of an original upload.
func (s *Statistics) AddBytesIn(n int64) {
	atomic.AddInt64(&s.BytesIn, n)
}

// AddBytesOut adds the size of a produced artifact.
func (s *Statistics) AddBytesOut(n int64) {
	atomic.AddInt64(&s.BytesOut, n)
}

// RecordDocument records a successfully assembled document.
func (s *Statistics) RecordDocument(pages, builds int, size int64) {
	atomic.AddInt64(&s.DocumentsAssembled, 1)
	atomic.AddInt64(&s.DocumentPages, int64(pages))
	atomic.AddInt64(&s.DocumentBuilds, int64(builds))
	s.AddBytesOut(size)
}

// IncrementDocumentsFailed increases the count of failed assemblies by 1.
func (s *Statistics) IncrementDocumentsFailed() {
	atomic.AddInt64(&s.DocumentsFailed, 1)
}

// IncrementFileType increases the count for a specific file type by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[fileType]++
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(name, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		Name:      name,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize records the end time and duration.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SavedPercent returns how much smaller the output is than the input, in percent.
func (s *Statistics) SavedPercent() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in == 0 {
		return 0
	}
	return float64(in-out) * 100 / float64(in)
}

// Snapshot returns the counters as a JSON friendly map.
func (s *Statistics) Snapshot() map[string]interface{} {
	s.mutex.RLock()
	errorCount := len(s.Errors)
	s.mutex.RUnlock()

	return map[string]interface{}{
		"images": map[string]interface{}{
			"found":       atomic.LoadInt64(&s.ImagesFound),
			"compressed":  atomic.LoadInt64(&s.ImagesCompressed),
			"failed":      atomic.LoadInt64(&s.ImagesFailed),
			"rejected":    atomic.LoadInt64(&s.ImagesRejected),
			"over_budget": atomic.LoadInt64(&s.ImagesOverBudget),
			"removed":     atomic.LoadInt64(&s.ImagesRemoved),
		},
		"documents": map[string]interface{}{
			"assembled": atomic.LoadInt64(&s.DocumentsAssembled),
			"failed":    atomic.LoadInt64(&s.DocumentsFailed),
			"builds":    atomic.LoadInt64(&s.DocumentBuilds),
			"pages":     atomic.LoadInt64(&s.DocumentPages),
		},
		"encode_passes": atomic.LoadInt64(&s.EncodePasses),
		"bytes_in":      atomic.LoadInt64(&s.BytesIn),
		"bytes_out":     atomic.LoadInt64(&s.BytesOut),
		"errors":        errorCount,
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	s.mutex.RUnlock()

	return fmt.Sprintf(`Photo Shrinker Statistics Summary:

Images:
		Submitted: %d
		Compressed: %d
		Failed: %d
		Rejected: %d
		Over Budget: %d
		Removed: %d

Documents:
		Assembled: %d
		Failed: %d
		Builds: %d
		Pages: %d

Performance:
		Duration: %v
		Encode Passes: %d
		Bytes In: %s
		Bytes Out: %s
		Saved: %.1f%%`,
		atomic.LoadInt64(&s.ImagesFound),
		atomic.LoadInt64(&s.ImagesCompressed),
		atomic.LoadInt64(&s.ImagesFailed),
		atomic.LoadInt64(&s.ImagesRejected),
		atomic.LoadInt64(&s.ImagesOverBudget),
		atomic.LoadInt64(&s.ImagesRemoved),
		atomic.LoadInt64(&s.DocumentsAssembled),
		atomic.LoadInt64(&s.DocumentsFailed),
		atomic.LoadInt64(&s.DocumentBuilds),
		atomic.LoadInt64(&s.DocumentPages),
		duration,
		atomic.LoadInt64(&s.EncodePasses),
		FormatBytes(atomic.LoadInt64(&s.BytesIn)),
		FormatBytes(atomic.LoadInt64(&s.BytesOut)),
		s.SavedPercent())
}

// GetFileTypeBreakdown returns a formatted breakdown of file types processed.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	types := make([]string, 0, len(s.FileTypeStats))
	for t := range s.FileTypeStats {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("File Type Breakdown:\n")
	for _, t := range types {
		fmt.Fprintf(&b, "  %s: %d\n", t, s.FileTypeStats[t])
	}
	return b.String()
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.Name,
			err.Error)
	}
	return b.String()
}

// GetErrorCount returns the number of recorded errors.
func (s *Statistics) GetErrorCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.Errors)
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
