package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestImageBudgetBytes(t *testing.T) {
	cases := []struct {
		kb   int
		want int64
	}{
		{0, 200 * KB},
		{-5, 200 * KB},
		{49, 200 * KB},
		{50, 50 * KB},
		{300, 300 * KB},
	}
	for _, c := range cases {
		if got := ImageBudgetBytes(c.kb); got != c.want {
			t.Errorf("ImageBudgetBytes(%d) = %d, want %d", c.kb, got, c.want)
		}
	}
}

func TestDocumentBudgetBytes(t *testing.T) {
	if got := DocumentBudgetBytes(0); got != 500*KB {
		t.Fatalf("DocumentBudgetBytes(0) = %d", got)
	}
	if got := DocumentBudgetBytes(10); got != 10*KB {
		t.Fatalf("DocumentBudgetBytes(10) = %d", got)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Compression.InitialQuality != 90 || cfg.Document.InitialQuality != 95 {
		t.Fatalf("unexpected initial qualities: %+v %+v", cfg.Compression, cfg.Document)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compression.QualityFloor = 95
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected floor above initial quality to fail")
	}

	cfg = DefaultConfig()
	cfg.Export.Sink = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected s3 sink without bucket to fail")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid log level to fail")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("compression:\n  target_kb: 120\ndocument:\n  target_kb: 900\nexport:\n  directory: out\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Compression.TargetKB != 120 || cfg.Document.TargetKB != 900 {
		t.Fatalf("budgets not loaded: %+v %+v", cfg.Compression, cfg.Document)
	}
	if cfg.Export.Directory != "out" || cfg.Export.Sink != "dir" {
		t.Fatalf("export not normalized: %+v", cfg.Export)
	}
	if cfg.Compression.MaxDimension != 4000 {
		t.Fatalf("defaults lost: %+v", cfg.Compression)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PHOTO_SHRINKER_DOCUMENT_TARGET_KB", "750")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Document.TargetKB != 750 {
		t.Fatalf("env override ignored: %d", cfg.Document.TargetKB)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
}
