package cmd

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/MeKo-Tech/edgecanvas/internal/edge"
	"github.com/MeKo-Tech/edgecanvas/internal/engine"
	"github.com/MeKo-Tech/edgecanvas/internal/testimage"
	"github.com/MeKo-Tech/edgecanvas/internal/tool"
	"github.com/MeKo-Tech/edgecanvas/internal/view"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the editing pipeline on a synthetic image",
	Long: `Generate a synthetic test image, extract its edge-map, draw a brush
stroke on it, and write the source, the edge-map, and the composited display
frame as PNGs. Useful for eyeballing the pipeline without real inputs.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int("width", 512, "Image width in pixels")
	demoCmd.Flags().Int("height", 512, "Image height in pixels")
	demoCmd.Flags().String("scene", "shapes", "Test scene: shapes or perlin")
	demoCmd.Flags().Float64("scale", 64, "Noise feature size for the perlin scene")
	demoCmd.Flags().Int64("seed", 1337, "Deterministic seed for the perlin scene")
	demoCmd.Flags().Int("low", engine.DefaultLowThreshold, "Low hysteresis threshold (0-255)")
	demoCmd.Flags().Int("high", engine.DefaultHighThreshold, "High hysteresis threshold (0-255)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"demo.width", "width"},
		{"demo.height", "height"},
		{"demo.scene", "scene"},
		{"demo.scale", "scale"},
		{"demo.seed", "seed"},
		{"demo.low", "low"},
		{"demo.high", "high"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, demoCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	width := viper.GetInt("demo.width")
	height := viper.GetInt("demo.height")
	scene := viper.GetString("demo.scene")
	scale := viper.GetFloat64("demo.scale")
	seed := viper.GetInt64("demo.seed")
	low := viper.GetInt("demo.low")
	high := viper.GetInt("demo.high")
	outputDir := viper.GetString("output-dir")

	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}

	var src *image.NRGBA
	switch scene {
	case "shapes":
		src = testimage.Shapes(width, height)
	case "perlin":
		src = testimage.PerlinField(width, height, scale, seed)
	default:
		return fmt.Errorf("unknown scene %q: must be 'shapes' or 'perlin'", scene)
	}

	editor := engine.New(engine.Config{
		Extractor: edge.NewCanny(logger),
		Logger:    logger,
	})
	if err := editor.LoadBase(src); err != nil {
		return err
	}
	editor.SetThresholds(low, high)

	logger.Info("Extracting edge-map", "scene", scene, "size", fmt.Sprintf("%dx%d", width, height), "low", low, "high", high)
	if err := editor.Extract(context.Background()); err != nil {
		return err
	}

	// Draw a diagonal brush stroke across the overlay so the frame shows
	// the editing path, not just the raw extraction.
	editor.SetTool(tool.Brush)
	rect := view.DisplayRect{W: float64(width), H: float64(height)}
	if err := editor.PointerDown(float64(width)*0.2, float64(height)*0.8, rect); err != nil {
		return err
	}
	editor.PointerMove(float64(width)*0.5, float64(height)*0.5, rect)
	editor.PointerUp(float64(width)*0.8, float64(height)*0.2, rect)

	frame, err := editor.Frame()
	if err != nil {
		return err
	}

	outputs := map[string]func(string) error{
		"source.png": func(p string) error { return savePNG(p, src) },
		"edges.png":  func(p string) error { return savePNG(p, editor.Overlay().Image()) },
		"frame.png":  func(p string) error { return savePNG(p, frame) },
	}
	for name, save := range outputs {
		path := filepath.Join(outputDir, name)
		if err := save(path); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		logger.Info("wrote", "path", path)
	}
	return nil
}
