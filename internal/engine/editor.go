// Package engine owns the composition editing state: the three raster
// surfaces, the interaction tools, the selection engine, and the busy-gated
// Extract and Apply actions that talk to the external adapters.
//
// An Editor is not safe for concurrent use. Hosts must serialize access
// (a UI event loop, or a per-session lock); the busy flags exist so that a
// pending Extract/Apply call never blocks tool edits, not for thread safety.
package engine

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/compositor"
	"github.com/MeKo-Tech/edgecanvas/internal/edge"
	"github.com/MeKo-Tech/edgecanvas/internal/generate"
	"github.com/MeKo-Tech/edgecanvas/internal/selection"
	"github.com/MeKo-Tech/edgecanvas/internal/tool"
	"github.com/MeKo-Tech/edgecanvas/internal/view"
)

// Precondition errors: surfaced to the user, never fatal, always retryable.
var (
	ErrBusy        = errors.New("engine: action already in progress")
	ErrNoBaseImage = errors.New("engine: no base image loaded")
	ErrNoEdgeMap   = errors.New("engine: no edge map extracted yet")
)

// Default threshold slider positions for edge extraction.
const (
	DefaultLowThreshold  = 100
	DefaultHighThreshold = 200
)

// edgeColor is the color extracted edge pixels take on the overlay.
var edgeColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Config wires an Editor to its adapters and host callbacks.
type Config struct {
	Extractor edge.Extractor
	Generator generate.Client
	Logger    *slog.Logger

	// OnApply receives the generated image URL once per successful Apply.
	OnApply func(url string)
	// OnOverlayChanged receives the overlay as a PNG data URL whenever a
	// stroke or overlay-mutating selection operation completes.
	OnOverlayChanged func(dataURL string)
}

// ApplyOptions parameterize one generation call.
type ApplyOptions struct {
	Prompt      string
	APIKey      string
	AspectRatio string
	Model       string
}

// Editor is the composition editing engine.
type Editor struct {
	cfg Config

	base  *canvas.Surface
	sel   *selection.Engine
	tools *tool.Controller
	view  view.State

	overlayVisible bool
	lowThreshold   int
	highThreshold  int

	extracting bool
	generating bool
}

// New creates an Editor with no base image loaded.
func New(cfg Config) *Editor {
	e := &Editor{
		cfg:            cfg,
		view:           view.NewState(),
		overlayVisible: true,
		lowThreshold:   DefaultLowThreshold,
		highThreshold:  DefaultHighThreshold,
	}
	e.sel = selection.NewEngine(nil, cfg.Logger)
	e.tools = tool.NewController(tool.Config{
		Selection: e.sel,
		BrushSize: tool.DefaultBrushSize,
		Logger:    cfg.Logger,
		OnOverlayChanged: func(*canvas.Surface) {
			e.publishOverlay()
		},
	})
	return e
}

// LoadBase installs a new source image and resets all edge and selection
// state for a fresh editing iteration.
func (e *Editor) LoadBase(img image.Image) error {
	base := canvas.FromImage(img)
	if base == nil {
		return ErrNoBaseImage
	}
	e.base = base
	e.sel.SetOverlay(nil)
	return nil
}

// ReplaceBase swaps in a generated result as the new base image. Edge and
// selection state are deliberately left as-is so the user can decide whether
// to re-extract.
func (e *Editor) ReplaceBase(img image.Image) error {
	base := canvas.FromImage(img)
	if base == nil {
		return ErrNoBaseImage
	}
	e.base = base
	return nil
}

// Base returns the current base image surface, or nil before LoadBase.
func (e *Editor) Base() *canvas.Surface { return e.base }

// Overlay returns the edge overlay, or nil before the first extraction.
func (e *Editor) Overlay() *canvas.Surface { return e.sel.Overlay() }

// Selection exposes the selection engine for hosts that render previews.
func (e *Editor) Selection() *selection.Engine { return e.sel }

// Thresholds returns the current (low, high) extraction slider values.
func (e *Editor) Thresholds() (int, int) { return e.lowThreshold, e.highThreshold }

// SetThresholds clamps each slider to [0, 255] and stores it. Ordering is
// not enforced; the values are handed to the extractor as given.
func (e *Editor) SetThresholds(low, high int) {
	e.lowThreshold = clamp255(low)
	e.highThreshold = clamp255(high)
}

// OverlayVisible reports whether the overlay layer is composited.
func (e *Editor) OverlayVisible() bool { return e.overlayVisible }

// SetOverlayVisible toggles overlay compositing without touching pixels.
func (e *Editor) SetOverlayVisible(visible bool) { e.overlayVisible = visible }

// Zoom returns the display zoom factor.
func (e *Editor) Zoom() float64 { return e.view.Zoom }

// SetZoom clamps and stores the display zoom factor.
func (e *Editor) SetZoom(zoom float64) { e.view.SetZoom(zoom) }

// Tool returns the active tool.
func (e *Editor) Tool() tool.Tool { return e.tools.Tool() }

// SetTool switches tools, committing any pending selection first.
func (e *Editor) SetTool(t tool.Tool) { e.tools.SetTool(t) }

// BrushSize returns the shared brush/eraser radius.
func (e *Editor) BrushSize() int { return e.tools.BrushSize() }

// SetBrushSize clamps and stores the brush/eraser radius.
func (e *Editor) SetBrushSize(size int) { e.tools.SetBrushSize(size) }

// Busy reports the per-action busy flags.
func (e *Editor) Busy() (extracting, generating bool) {
	return e.extracting, e.generating
}

// PointerDown maps a display-space pointer press into native pixels and
// routes it to the active tool. Pointer editing requires an extracted
// overlay to draw on.
func (e *Editor) PointerDown(px, py float64, rect view.DisplayRect) error {
	overlay := e.sel.Overlay()
	if overlay == nil {
		return ErrNoEdgeMap
	}
	x, y := view.ToNative(px, py, rect, overlay.Width(), overlay.Height())
	e.tools.PointerDown(x, y)
	return nil
}

// PointerMove continues the active gesture. Events before extraction are
// ignored.
func (e *Editor) PointerMove(px, py float64, rect view.DisplayRect) {
	overlay := e.sel.Overlay()
	if overlay == nil {
		return
	}
	x, y := view.ToNative(px, py, rect, overlay.Width(), overlay.Height())
	e.tools.PointerMove(x, y)
}

// PointerUp finishes the active gesture.
func (e *Editor) PointerUp(px, py float64, rect view.DisplayRect) {
	overlay := e.sel.Overlay()
	if overlay == nil {
		return
	}
	x, y := view.ToNative(px, py, rect, overlay.Width(), overlay.Height())
	e.tools.PointerUp(x, y)
}

// RotateSelection rotates the floating layer 90 degrees.
func (e *Editor) RotateSelection() error { return e.sel.Rotate90() }

// FlipSelection mirrors the floating layer left-right.
func (e *Editor) FlipSelection() error { return e.sel.FlipHorizontal() }

// ScaleSelection resamples the floating layer by the given factor.
func (e *Editor) ScaleSelection(factor float64) error { return e.sel.Scale(factor) }

// CommitSelection merges the floating layer back into the overlay.
func (e *Editor) CommitSelection() {
	if e.sel.CommitToBase() {
		e.publishOverlay()
	}
}

// DiscardSelection drops the selection without merging.
func (e *Editor) DiscardSelection() { e.sel.Discard() }

// Frame renders the current display frame.
func (e *Editor) Frame() (*image.NRGBA, error) {
	in := compositor.Input{
		Base:           e.base,
		Overlay:        e.sel.Overlay(),
		OverlayVisible: e.overlayVisible,
		Zoom:           e.view.Zoom,
	}
	if rect, ok := e.sel.Selection(); ok {
		r := rect
		in.SelectionRect = &r
		in.Floating = e.sel.Floating()
	}
	return compositor.Render(in)
}

// RestoreOverlay replaces the overlay with a host-provided snapshot
// (undo/redo support). Dimensions must match the base image.
func (e *Editor) RestoreOverlay(overlay *canvas.Surface) error {
	if e.base == nil {
		return ErrNoBaseImage
	}
	if overlay == nil {
		return fmt.Errorf("engine: nil overlay snapshot")
	}
	if overlay.Width() != e.base.Width() || overlay.Height() != e.base.Height() {
		return fmt.Errorf("engine: snapshot size %dx%d does not match base %dx%d",
			overlay.Width(), overlay.Height(), e.base.Width(), e.base.Height())
	}
	e.sel.SetOverlay(overlay)
	return nil
}

func (e *Editor) publishOverlay() {
	if e.cfg.OnOverlayChanged == nil {
		return
	}
	overlay := e.sel.Overlay()
	if overlay == nil {
		return
	}
	dataURL, err := overlay.DataURL()
	if err != nil {
		e.log().Error("failed to export overlay snapshot", "error", err)
		return
	}
	e.cfg.OnOverlayChanged(dataURL)
}

func (e *Editor) log() *slog.Logger {
	if e.cfg.Logger != nil {
		return e.cfg.Logger
	}
	return slog.Default()
}

func clamp255(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
