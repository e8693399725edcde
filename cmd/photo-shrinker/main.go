package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"photo-shrinker-go/internal/collection"
	"photo-shrinker-go/internal/compressor"
	"photo-shrinker-go/internal/config"
	"photo-shrinker-go/internal/document"
	"photo-shrinker-go/internal/export"
	"photo-shrinker-go/internal/logger"
	"photo-shrinker-go/internal/metrics"
	"photo-shrinker-go/internal/source"
	"photo-shrinker-go/internal/statistics"
	"photo-shrinker-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	targetKB  int
	outDir    string
	verbose   bool
	quiet     bool
	version   = "dev"
	buildTime = "unknown"
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "photo-shrinker",
	Short: "Shrink photos and build PDFs under a size budget",
	Long: `PhotoShrinker recompresses JPEG and PNG images so that each one fits a
size budget, and assembles ordered images into a single PDF that fits a
budget of its own.

Features:
- Per-image quality and resolution search against a KB budget
- Multi-page A4 PDF assembly with a shared quality level
- Export to a local directory or an S3 bucket
- Web interface with live progress over WebSocket
- Prometheus metrics and run statistics`,
	SilenceUsage: true,
}

// compressCmd compresses image files against the per-image budget.
var compressCmd = &cobra.Command{
	Use:   "compress <files...>",
	Short: "Compress images to fit a size budget",
	Long: `Compress every given image so that it does not exceed the target size.
Images that cannot be read or are not PNG/JPEG are reported and skipped;
the remaining images are still processed. Results are written through the
configured export sink (by default the "compressed" directory).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args)
	},
}

// documentCmd assembles image files into a single PDF.
var documentCmd = &cobra.Command{
	Use:   "document <files...>",
	Short: "Assemble images into one PDF under a size budget",
	Long: `Place each image on its own A4 page, in argument order, and lower the
shared image quality until the PDF fits the target size or the quality
floor is reached.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocument(cmd, args)
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts the HTTP API used by the web interface:
- Upload images for compression and review the results
- Remove images and export the rest
- Assemble ordered uploads into a PDF
- Follow progress over WebSocket (/ws) and scrape /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("photo-shrinker %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	compressCmd.Flags().IntVar(&targetKB, "target-kb", config.DefaultImageTargetKB, "size budget per image in KB (below 50 uses 200)")
	compressCmd.Flags().StringVar(&outDir, "out", "", "output directory (overrides the export sink)")

	documentCmd.Flags().IntVar(&targetKB, "target-kb", config.DefaultDocumentTargetKB, "size budget for the document in KB")
	documentCmd.Flags().StringVar(&outDir, "out", "", "output directory (overrides the export sink)")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config, 8080)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// runCompress compresses every argument and exports the results.
func runCompress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(c *config.Config) { c.Compression.TargetKB = targetKB })
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	ctx := cmd.Context()

	inputs := make([]compressor.Input, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.WithImageOperation(log, path, "read").WithError(err).Error("Failed to read file")
			stats.IncrementImagesFailed()
			stats.AddError(path, "read", err.Error())
			continue
		}
		inputs = append(inputs, compressor.Input{Name: filepath.Base(path), Data: data})
	}

	images := collection.New()
	batch := compressor.NewBatchProcessor(
		compressor.NewBudgetCompressor(compressor.PolicyFromConfig(cfg.Compression), compressor.WithLogger(log)),
		compressor.BatchOptions{
			Workers:  cfg.Performance.WorkerThreads,
			Logger:   log,
			Stats:    stats,
			Metrics:  metrics.New(),
			Listener: &collection.Listener{Collection: images},
		},
	)
	results := batch.Process(ctx, inputs, config.ImageBudgetBytes(cfg.Compression.TargetKB))

	sink, err := export.NewSink(ctx, cfg.Export, log)
	if err != nil {
		return fmt.Errorf("failed to create export sink: %w", err)
	}
	rep := export.ExportAll(ctx, sink, images.List(), log)

	if !quiet {
		for _, res := range results {
			if !res.Success() {
				fmt.Printf("✗ %s: %v\n", res.Name, res.Err)
				continue
			}
			img := res.Image
			mark := "✓"
			if !img.WithinBudget {
				mark = "!"
			}
			fmt.Printf("%s %s: %s -> %s (quality %d%%, scale %.2f, %d passes)\n",
				mark, res.Name,
				statistics.FormatBytes(res.OriginalSize), statistics.FormatBytes(img.Size),
				img.Quality, img.Scale, img.Iterations)
		}
		for _, loc := range rep.Written {
			fmt.Printf("  wrote %s\n", loc)
		}
		fmt.Println("\n" + stats.GetSummary())
		if stats.GetErrorCount() > 0 {
			fmt.Println("\n" + stats.GetErrorSummary())
		}
	}

	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d images could not be exported", len(rep.Failed))
	}
	return nil
}

// runDocument assembles the arguments into one PDF and exports it.
func runDocument(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(c *config.Config) { c.Document.TargetKB = targetKB })
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	ctx := cmd.Context()

	images := make([]*source.SourceImage, 0, len(args))
	for _, path := range args {
		img, err := source.LoadFile(path)
		if err != nil {
			return fmt.Errorf("cannot use %s: %w", path, err)
		}
		images = append(images, img)
	}

	geometry, err := document.NewGeometry(cfg.Document.PageSize, cfg.Document.MarginMM)
	if err != nil {
		return err
	}
	assembler := document.NewAssembler(document.Options{
		Policy:   document.PolicyFromConfig(cfg.Document),
		Geometry: geometry,
		Name:     cfg.Document.OutputName,
		Logger:   log,
	})

	doc, err := assembler.Assemble(ctx, images, config.DocumentBudgetBytes(cfg.Document.TargetKB))
	if err != nil {
		return fmt.Errorf("document assembly failed: %w", err)
	}
	stats.RecordDocument(len(doc.Pages), doc.Builds, doc.Size)

	sink, err := export.NewSink(ctx, cfg.Export, log)
	if err != nil {
		return fmt.Errorf("failed to create export sink: %w", err)
	}
	loc, err := sink.Put(ctx, doc.Name, document.ContentType, doc.Data)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	if !quiet {
		fmt.Printf("%s: %d pages, %s at quality %d%% after %d builds\n",
			loc, len(doc.Pages), statistics.FormatBytes(doc.Size), doc.Quality, doc.Builds)
		if !doc.WithinBudget {
			fmt.Printf("warning: document exceeds %s at the quality floor\n",
				statistics.FormatBytes(config.DocumentBudgetBytes(cfg.Document.TargetKB)))
		}
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("PhotoShrinker server started on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// loadConfig loads configuration and applies CLI overrides. The target
// override only runs when --target-kb was given explicitly.
func loadConfig(cmd *cobra.Command, applyTarget func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if applyTarget != nil && cmd.Flags().Changed("target-kb") {
		applyTarget(cfg)
	}

	if outDir != "" {
		cfg.Export.Sink = "dir"
		cfg.Export.Directory = outDir
	}

	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	opts := logger.FromConfig(cfg.Logging, !quiet)

	if verbose {
		opts.Level = "debug"
	}
	if quiet {
		opts.Level = "error"
	}

	log, err := logger.New(opts)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
