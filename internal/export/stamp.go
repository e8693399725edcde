package export

import (
	"fmt"
	"sync"

	"github.com/barasher/go-exiftool"
)

// DefaultSoftwareTag marks files written by this tool.
const DefaultSoftwareTag = "PhotoShrinker Compressed"

// Stamper writes identifying metadata into an exported file.
type Stamper interface {
	Stamp(path string) error
}

// ExiftoolStamper sets the EXIF Software tag using the exiftool binary.
// The exiftool process is started on first use and reused afterwards.
type ExiftoolStamper struct {
	Software string

	once sync.Once
	et   *exiftool.Exiftool
	err  error
	mu   sync.Mutex
}

// NewExiftoolStamper returns a stamper that writes software into the Software tag.
func NewExiftoolStamper(software string) *ExiftoolStamper {
	return &ExiftoolStamper{Software: software}
}

// Stamp implements Stamper.
func (s *ExiftoolStamper) Stamp(path string) error {
	s.once.Do(func() {
		s.et, s.err = exiftool.NewExiftool()
	})
	if s.err != nil {
		return fmt.Errorf("exiftool unavailable: %w", s.err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.et.ExtractMetadata(path)
	if len(files) == 0 {
		return fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return files[0].Err
	}
	files[0].SetString("Software", s.Software)
	s.et.WriteMetadata(files)
	return files[0].Err
}

// Close stops the exiftool process if one was started.
func (s *ExiftoolStamper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.et != nil {
		return s.et.Close()
	}
	return nil
}
