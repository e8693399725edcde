package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// KB is the unit used by every user-facing budget.
	KB = 1024

	// DefaultImageTargetKB replaces per-image budgets that are unset or too small.
	DefaultImageTargetKB = 200
	// MinImageTargetKB is the smallest per-image budget accepted as given.
	MinImageTargetKB = 50
	// DefaultDocumentTargetKB replaces unset document budgets.
	DefaultDocumentTargetKB = 500

	// DocumentFileName is the fixed name of the assembled document.
	DocumentFileName = "document.pdf"
)

// Config represents the main configuration structure
type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Document    DocumentConfig    `mapstructure:"document"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Export      ExportConfig      `mapstructure:"export"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig contains the per-image budget search settings.
// Quality values are percentages (1-100).
type CompressionConfig struct {
	TargetKB       int     `mapstructure:"target_kb"`
	MaxDimension   int     `mapstructure:"max_dimension"`
	InitialQuality int     `mapstructure:"initial_quality"`
	QualityStep    int     `mapstructure:"quality_step"`
	QualityFloor   int     `mapstructure:"quality_floor"`
	ScaleThreshold int     `mapstructure:"scale_threshold"`
	ScaleStep      float64 `mapstructure:"scale_step"`
}

// DocumentConfig contains the document assembly settings.
type DocumentConfig struct {
	TargetKB       int     `mapstructure:"target_kb"`
	InitialQuality int     `mapstructure:"initial_quality"`
	QualityStep    int     `mapstructure:"quality_step"`
	QualityFloor   int     `mapstructure:"quality_floor"`
	PageSize       string  `mapstructure:"page_size"`
	MarginMM       float64 `mapstructure:"margin_mm"`
	OutputName     string  `mapstructure:"output_name"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
	MaxUploadMB   int `mapstructure:"max_upload_mb"`
}

// ExportConfig selects where compressed images and documents are written.
type ExportConfig struct {
	Sink          string   `mapstructure:"sink"` // dir, s3
	Directory     string   `mapstructure:"directory"`
	StampSoftware bool     `mapstructure:"stamp_software"`
	S3            S3Config `mapstructure:"s3"`
}

// S3Config contains the S3 export settings.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Compression: CompressionConfig{
			TargetKB:       DefaultImageTargetKB,
			MaxDimension:   4000,
			InitialQuality: 90,
			QualityStep:    5,
			QualityFloor:   5,
			ScaleThreshold: 30,
			ScaleStep:      0.05,
		},
		Document: DocumentConfig{
			TargetKB:       DefaultDocumentTargetKB,
			InitialQuality: 95,
			QualityStep:    5,
			QualityFloor:   10,
			PageSize:       "A4",
			MarginMM:       10,
			OutputName:     DocumentFileName,
		},
		Performance: PerformanceConfig{
			WorkerThreads: 4,
			MaxUploadMB:   64,
		},
		Export: ExportConfig{
			Sink:      "dir",
			Directory: "compressed",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "photo-shrinker.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.photo-shrinker")
		v.AddConfigPath("/etc/photo-shrinker")
	}

	v.SetEnvPrefix("PHOTO_SHRINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnv registers the keys AutomaticEnv cannot discover on its own
// because Unmarshal only sees keys viper already knows about.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"compression.target_kb",
		"document.target_kb",
		"performance.worker_threads",
		"export.sink",
		"export.directory",
		"export.stamp_software",
		"export.s3.bucket",
		"export.s3.prefix",
		"export.s3.region",
		"server.port",
		"logging.level",
		"logging.file_path",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Compression.MaxDimension <= 0 {
		c.Compression.MaxDimension = def.Compression.MaxDimension
	}
	if err := validateQuality("compression", c.Compression.InitialQuality, c.Compression.QualityStep, c.Compression.QualityFloor); err != nil {
		return err
	}
	if c.Compression.ScaleStep <= 0 || c.Compression.ScaleStep >= 1 {
		return fmt.Errorf("invalid compression.scale_step: %v (must be in (0,1))", c.Compression.ScaleStep)
	}

	if err := validateQuality("document", c.Document.InitialQuality, c.Document.QualityStep, c.Document.QualityFloor); err != nil {
		return err
	}
	if c.Document.PageSize == "" {
		c.Document.PageSize = def.Document.PageSize
	}
	if c.Document.MarginMM < 0 {
		return fmt.Errorf("invalid document.margin_mm: %v", c.Document.MarginMM)
	}
	if c.Document.OutputName == "" {
		c.Document.OutputName = DocumentFileName
	}

	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = def.Performance.WorkerThreads
	}
	if c.Performance.MaxUploadMB <= 0 {
		c.Performance.MaxUploadMB = def.Performance.MaxUploadMB
	}

	switch strings.ToLower(c.Export.Sink) {
	case "", "dir":
		c.Export.Sink = "dir"
		if c.Export.Directory == "" {
			c.Export.Directory = def.Export.Directory
		}
	case "s3":
		c.Export.Sink = "s3"
		if c.Export.S3.Bucket == "" {
			return fmt.Errorf("export.s3.bucket is required when export.sink is s3")
		}
	default:
		return fmt.Errorf("invalid export.sink: %s (valid: dir, s3)", c.Export.Sink)
	}

	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

func validateQuality(section string, initial, step, floor int) error {
	if initial < 1 || initial > 100 {
		return fmt.Errorf("invalid %s.initial_quality: %d (must be 1-100)", section, initial)
	}
	if step <= 0 {
		return fmt.Errorf("invalid %s.quality_step: %d (must be positive)", section, step)
	}
	if floor < 1 || floor > initial {
		return fmt.Errorf("invalid %s.quality_floor: %d (must be 1-%d)", section, floor, initial)
	}
	return nil
}

// ImageBudgetBytes converts a per-image budget in KB to bytes, substituting
// the default when the value is unset or below the minimum.
func ImageBudgetBytes(targetKB int) int64 {
	if targetKB < MinImageTargetKB {
		targetKB = DefaultImageTargetKB
	}
	return int64(targetKB) * KB
}

// DocumentBudgetBytes converts a document budget in KB to bytes, substituting
// the default when the value is unset.
func DocumentBudgetBytes(targetKB int) int64 {
	if targetKB <= 0 {
		targetKB = DefaultDocumentTargetKB
	}
	return int64(targetKB) * KB
}
