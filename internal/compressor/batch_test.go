package compressor

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"photo-shrinker-go/internal/metrics"
	"photo-shrinker-go/internal/statistics"
)

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) ImageCompressed(res ItemResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "ok:"+res.Name)
}

func (l *recordingListener) ImageFailed(res ItemResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "fail:"+res.Name)
}

func jpegBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, c), imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessIsolatesFailures(t *testing.T) {
	good := jpegBytes(t, 64, 48, color.NRGBA{R: 10, G: 200, B: 30, A: 255})
	broken := good[:len(good)/2]

	listener := &recordingListener{}
	stats := statistics.NewStatistics()
	bp := NewBatchProcessor(NewDefaultCompressor(), BatchOptions{
		Workers:  3,
		Stats:    stats,
		Metrics:  metrics.New(),
		Listener: listener,
	})

	results := bp.Process(context.Background(), []Input{
		{Name: "first.jpg", Data: good},
		{Name: "middle.jpg", Data: broken},
		{Name: "last.jpg", Data: good},
	}, 200*1024)

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if !results[0].Success() || !results[2].Success() {
		t.Fatalf("siblings of the broken image failed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Success() || !errors.Is(results[1].Err, ErrEncodeFailure) {
		t.Fatalf("middle result = %+v, want ErrEncodeFailure", results[1].Err)
	}

	want := []string{"ok:first.jpg", "fail:middle.jpg", "ok:last.jpg"}
	if len(listener.events) != len(want) {
		t.Fatalf("events = %v", listener.events)
	}
	for i := range want {
		if listener.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", listener.events, want)
		}
	}

	if stats.ImagesCompressed != 2 || stats.ImagesFailed != 1 || stats.ImagesFound != 3 {
		t.Fatalf("stats = %+v", stats.Snapshot())
	}
}

func TestProcessRejectsUnsupportedFormat(t *testing.T) {
	var gif bytes.Buffer
	if err := imaging.Encode(&gif, imaging.New(4, 4, color.White), imaging.GIF); err != nil {
		t.Fatal(err)
	}
	stats := statistics.NewStatistics()
	bp := NewBatchProcessor(NewDefaultCompressor(), BatchOptions{Stats: stats})

	results := bp.Process(context.Background(), []Input{{Name: "anim.gif", Data: gif.Bytes()}}, 0)
	if !errors.Is(results[0].Err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", results[0].Err)
	}
	if stats.ImagesRejected != 1 || stats.ImagesFailed != 0 {
		t.Fatalf("stats = %+v", stats.Snapshot())
	}
}

func TestProcessKeepsSubmissionOrder(t *testing.T) {
	var inputs []Input
	for i := 0; i < 12; i++ {
		// Larger images first so later items tend to finish earlier.
		size := 200 - i*10
		inputs = append(inputs, Input{
			Name: string(rune('a'+i)) + ".jpg",
			Data: jpegBytes(t, size, size, color.NRGBA{B: uint8(i * 20), A: 255}),
		})
	}

	listener := &recordingListener{}
	bp := NewBatchProcessor(NewDefaultCompressor(), BatchOptions{Workers: 6, Listener: listener})
	results := bp.Process(context.Background(), inputs, 0)

	for i, r := range results {
		if r.Index != i || r.Name != inputs[i].Name {
			t.Fatalf("result %d = %s (index %d)", i, r.Name, r.Index)
		}
		if listener.events[i] != "ok:"+inputs[i].Name {
			t.Fatalf("listener order = %v", listener.events)
		}
	}
}

func TestProcessEmpty(t *testing.T) {
	bp := NewBatchProcessor(NewDefaultCompressor(), BatchOptions{})
	if got := bp.Process(context.Background(), nil, 0); got != nil {
		t.Fatalf("got %v", got)
	}
}

func TestProcessCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bp := NewBatchProcessor(NewDefaultCompressor(), BatchOptions{})
	results := bp.Process(ctx, []Input{{Name: "a.jpg", Data: jpegBytes(t, 8, 8, color.White)}}, 0)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("err = %v", results[0].Err)
	}
}
