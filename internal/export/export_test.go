package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"photo-shrinker-go/internal/collection"
	"photo-shrinker-go/internal/config"
)

type recordingStamper struct {
	paths []string
	err   error
}

func (s *recordingStamper) Stamp(path string) error {
	s.paths = append(s.paths, path)
	return s.err
}

func TestDirSinkWritesFile(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, nil)

	loc, err := sink.Put(context.Background(), "photo.jpg", "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if loc != filepath.Join(dir, "photo.jpg") {
		t.Fatalf("location = %q", loc)
	}
	got, err := os.ReadFile(loc)
	if err != nil || string(got) != "jpeg" {
		t.Fatalf("content = %q, err = %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp-photo.jpg")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestDirSinkDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, nil)
	ctx := context.Background()

	first, _ := sink.Put(ctx, "a.jpg", "image/jpeg", []byte("1"))
	second, err := sink.Put(ctx, "a.jpg", "image/jpeg", []byte("2"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if first == second || second != filepath.Join(dir, "a (1).jpg") {
		t.Fatalf("first=%q second=%q", first, second)
	}
}

func TestDirSinkStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, nil)

	loc, err := sink.Put(context.Background(), "../../etc/x.jpg", "image/jpeg", []byte("x"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if filepath.Dir(loc) != dir {
		t.Fatalf("escaped target dir: %q", loc)
	}
	if _, err := sink.Put(context.Background(), "", "image/jpeg", nil); err == nil {
		t.Fatalf("empty name accepted")
	}
}

func TestDirSinkStampsOnlyJPEG(t *testing.T) {
	dir := t.TempDir()
	st := &recordingStamper{err: errors.New("no exiftool")}
	sink := NewDirSink(dir, nil)
	sink.Stamper = st

	if _, err := sink.Put(context.Background(), "a.jpg", "image/jpeg", []byte("x")); err != nil {
		t.Fatalf("stamp failure must not fail the write: %v", err)
	}
	if _, err := sink.Put(context.Background(), "document.pdf", "application/pdf", []byte("%PDF")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if len(st.paths) != 1 || filepath.Base(st.paths[0]) != ".tmp-a.jpg" {
		t.Fatalf("stamped = %v", st.paths)
	}
}

type mapSink struct {
	files map[string][]byte
	fail  string
}

func (m *mapSink) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if name == m.fail {
		return "", errors.New("disk full")
	}
	m.files[name] = data
	return "mem://" + name, nil
}

func TestExportAllContinuesPastFailures(t *testing.T) {
	sink := &mapSink{files: map[string][]byte{}, fail: "b.jpg"}
	entries := []collection.Entry{
		{Name: "a.jpg", Data: []byte("a")},
		{Name: "b.jpg", Data: []byte("b")},
		{Name: "c.jpg", Data: []byte("c")},
	}

	rep := ExportAll(context.Background(), sink, entries, nil)
	if len(rep.Written) != 2 || rep.Written[0] != "mem://a.jpg" || rep.Written[1] != "mem://c.jpg" {
		t.Fatalf("written = %v", rep.Written)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].Name != "b.jpg" {
		t.Fatalf("failed = %+v", rep.Failed)
	}
}

func TestExportAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &mapSink{files: map[string][]byte{}}

	rep := ExportAll(ctx, sink, []collection.Entry{{Name: "a.jpg"}}, nil)
	if len(rep.Written) != 0 || len(rep.Failed) != 1 || !errors.Is(rep.Failed[0].Err, context.Canceled) {
		t.Fatalf("report = %+v", rep)
	}
}

type fakeUploader struct {
	input *s3.PutObjectInput
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = in
	return &manager.UploadOutput{}, nil
}

func TestS3SinkKey(t *testing.T) {
	up := &fakeUploader{}
	sink := NewS3SinkWithUploader(up, "bucket", "shrunk")

	loc, err := sink.Put(context.Background(), "dir/a.jpg", "image/jpeg", []byte("x"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if loc != "s3://bucket/shrunk/a.jpg" {
		t.Fatalf("location = %q", loc)
	}
	if aws.ToString(up.input.Key) != "shrunk/a.jpg" || aws.ToString(up.input.ContentType) != "image/jpeg" {
		t.Fatalf("input key=%q type=%q", aws.ToString(up.input.Key), aws.ToString(up.input.ContentType))
	}
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(context.Background(), config.ExportConfig{Sink: "dir", Directory: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewSink(dir) error = %v", err)
	}
	if _, ok := s.(*DirSink); !ok {
		t.Fatalf("sink = %T", s)
	}
	if _, err := NewSink(context.Background(), config.ExportConfig{Sink: "ftp"}, nil); err == nil {
		t.Fatalf("unknown sink accepted")
	}
	if _, err := NewSink(context.Background(), config.ExportConfig{Sink: "s3"}, nil); err == nil {
		t.Fatalf("s3 sink without bucket accepted")
	}
}
