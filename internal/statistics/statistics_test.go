package statistics

import (
	"strings"
	"sync"
	"testing"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementImagesFound()
			s.IncrementImagesCompressed()
			s.AddEncodePasses(3)
			s.AddError("x.jpg", "compress", "boom")
		}()
	}
	wg.Wait()

	if s.ImagesFound != 50 || s.ImagesCompressed != 50 || s.EncodePasses != 150 {
		t.Fatalf("unexpected counters: %+v", s.Snapshot())
	}
	if s.GetErrorCount() != 50 {
		t.Fatalf("errors = %d", s.GetErrorCount())
	}
}

func TestSummaryAndSavedPercent(t *testing.T) {
	s := NewStatistics()
	s.AddBytesIn(4096)
	s.AddBytesOut(1024)
	s.RecordDocument(5, 3, 0)
	s.Finalize()

	if got := s.SavedPercent(); got != 75 {
		t.Fatalf("SavedPercent = %v", got)
	}
	summary := s.GetSummary()
	for _, want := range []string{"Bytes In: 4.0 KiB", "Pages: 5", "Builds: 3", "Saved: 75.0%"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestErrorSummaryTruncates(t *testing.T) {
	s := NewStatistics()
	if !strings.Contains(s.GetErrorSummary(), "No errors") {
		t.Fatalf("expected empty summary")
	}
	for i := 0; i < 12; i++ {
		s.AddError("a.png", "decode", "bad")
	}
	if !strings.Contains(s.GetErrorSummary(), "and 2 more errors") {
		t.Fatalf("summary not truncated:\n%s", s.GetErrorSummary())
	}
}

func TestFileTypeBreakdownSorted(t *testing.T) {
	s := NewStatistics()
	s.IncrementFileType("PNG")
	s.IncrementFileType("JPEG")
	s.IncrementFileType("PNG")
	got := s.GetFileTypeBreakdown()
	if strings.Index(got, "JPEG: 1") > strings.Index(got, "PNG: 2") {
		t.Fatalf("breakdown not sorted:\n%s", got)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(512); got != "512 B" {
		t.Fatalf("FormatBytes(512) = %q", got)
	}
	if got := FormatBytes(200 * 1024); got != "200 KiB" {
		t.Fatalf("FormatBytes(200KiB) = %q", got)
	}
}
