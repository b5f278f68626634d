package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	_ "image/jpeg" // register JPEG decoding for source images

	"github.com/MeKo-Tech/edgecanvas/internal/edge"
	"github.com/MeKo-Tech/edgecanvas/internal/engine"
	"github.com/MeKo-Tech/edgecanvas/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var extractCmd = &cobra.Command{
	Use:   "extract <input>",
	Short: "Extract edge-maps from images",
	Long: `Extract edge-maps from a single image or from every image in a
directory. Directory mode runs extractions in parallel.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Int("low", engine.DefaultLowThreshold, "Low hysteresis threshold (0-255)")
	extractCmd.Flags().Int("high", engine.DefaultHighThreshold, "High hysteresis threshold (0-255)")
	extractCmd.Flags().Bool("auto", false, "Derive thresholds per image from the gradient distribution")
	extractCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers for directory mode (default: number of CPUs)")
	extractCmd.Flags().Bool("progress", true, "Show progress bar in directory mode")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"extract.low", "low"},
		{"extract.high", "high"},
		{"extract.auto", "auto"},
		{"extract.workers", "workers"},
		{"extract.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, extractCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	input := args[0]
	low := viper.GetInt("extract.low")
	high := viper.GetInt("extract.high")
	auto := viper.GetBool("extract.auto")
	workers := viper.GetInt("extract.workers")
	showProgress := viper.GetBool("extract.progress")
	outputDir := viper.GetString("output-dir")

	runner := &fileExtractor{
		extractor: edge.NewCanny(logger),
		low:       low,
		high:      high,
		auto:      auto,
	}

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}

	if !info.IsDir() {
		out := edgeMapPath(outputDir, input)
		if err := runner.ExtractFile(context.Background(), input, out); err != nil {
			return fmt.Errorf("failed to extract %s: %w", input, err)
		}
		logger.Info("edge-map extracted", "input", input, "output", out)
		return nil
	}

	return runBatchExtract(runner, input, outputDir, workers, showProgress)
}

func runBatchExtract(runner worker.Runner, inputDir, outputDir string, workers int, showProgress bool) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read input directory: %w", err)
	}

	tasks := make([]worker.Task, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		in := filepath.Join(inputDir, entry.Name())
		tasks = append(tasks, worker.Task{
			InputPath:  in,
			OutputPath: edgeMapPath(outputDir, in),
		})
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no images found in %s", inputDir)
	}

	logger.Info("Starting batch extraction",
		"input_dir", inputDir,
		"output_dir", outputDir,
		"images", len(tasks),
		"workers", workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received interrupt signal, cancelling...")
		cancel()
	}()

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Runner:     runner,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Extraction failed", "input", r.Task.InputPath, "error", r.Err)
		}
	}

	logger.Info(progress.Summary())

	if failedCount > 0 {
		return fmt.Errorf("%d images failed to extract", failedCount)
	}
	return nil
}

// fileExtractor adapts the edge extractor to file paths for batch runs.
type fileExtractor struct {
	extractor edge.Extractor
	low, high int
	auto      bool
}

func (f *fileExtractor) ExtractFile(ctx context.Context, inputPath, outputPath string) error {
	src, err := loadImage(inputPath)
	if err != nil {
		return err
	}

	low, high := f.low, f.high
	if f.auto {
		low, high = edge.AutoThresholds(src)
	}

	edges, err := f.extractor.Extract(ctx, src, low, high)
	if err != nil {
		return err
	}
	return savePNG(outputPath, edges)
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close() // nolint:errcheck

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return file.Close()
}

func edgeMapPath(outputDir, inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, name+"_edges.png")
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
