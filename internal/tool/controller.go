// Package tool routes pointer events to the active interaction mode:
// freehand brush, eraser, or rectangular move/select.
package tool

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/selection"
)

// Tool identifies the active interaction mode.
type Tool int

const (
	// Brush draws additive highlight strokes onto the edge overlay.
	Brush Tool = iota
	// Eraser removes overlay pixels along the stroke.
	Eraser
	// Move performs marquee selection and floating-layer drags.
	Move
)

// String returns the tool name used by configuration and the session API.
func (t Tool) String() string {
	switch t {
	case Brush:
		return "brush"
	case Eraser:
		return "eraser"
	case Move:
		return "move"
	default:
		return fmt.Sprintf("tool(%d)", int(t))
	}
}

// Parse converts a tool name back into a Tool.
func Parse(s string) (Tool, error) {
	switch s {
	case "brush":
		return Brush, nil
	case "eraser":
		return Eraser, nil
	case "move":
		return Move, nil
	default:
		return Brush, fmt.Errorf("unknown tool %q", s)
	}
}

// Brush size limits, in native pixel radius. Shared by brush and eraser.
const (
	MinBrushSize     = 1
	MaxBrushSize     = 20
	DefaultBrushSize = 4
)

// Config configures a Controller.
type Config struct {
	Selection *selection.Engine
	BrushSize int
	// OnOverlayChanged is invoked with the overlay whenever a stroke or
	// selection transform completes, so the host can snapshot it.
	OnOverlayChanged func(*canvas.Surface)
	Logger           *slog.Logger
}

// Controller is the interaction state machine. All pointer coordinates are
// native image pixels; display mapping happens before events reach it.
type Controller struct {
	sel              *selection.Engine
	onOverlayChanged func(*canvas.Surface)
	logger           *slog.Logger

	tool      Tool
	brushSize int

	// stroke state (brush/eraser)
	stroking     bool
	lastX, lastY int

	// marquee state (move)
	marqueeing           bool
	marqueeX0, marqueeY0 int
	marqueeX1, marqueeY1 int

	// drag state (move)
	dragging             bool
	dragLastX, dragLastY int
}

// NewController creates a controller in the brush state.
func NewController(cfg Config) *Controller {
	size := cfg.BrushSize
	if size < MinBrushSize || size > MaxBrushSize {
		size = DefaultBrushSize
	}
	return &Controller{
		sel:              cfg.Selection,
		onOverlayChanged: cfg.OnOverlayChanged,
		logger:           cfg.Logger,
		tool:             Brush,
		brushSize:        size,
	}
}

// Tool returns the active tool.
func (c *Controller) Tool() Tool { return c.tool }

// BrushSize returns the shared brush/eraser radius.
func (c *Controller) BrushSize() int { return c.brushSize }

// SetBrushSize clamps and stores the brush/eraser radius.
func (c *Controller) SetBrushSize(size int) {
	if size < MinBrushSize {
		size = MinBrushSize
	}
	if size > MaxBrushSize {
		size = MaxBrushSize
	}
	c.brushSize = size
}

// SetTool switches the active tool. A pending selection is committed back
// into the overlay before the switch, so no floating edits are lost.
func (c *Controller) SetTool(t Tool) {
	if t == c.tool {
		return
	}

	if c.sel.CommitToBase() {
		c.publishOverlay()
	}

	c.stroking = false
	c.marqueeing = false
	c.dragging = false
	c.tool = t
	c.log().Debug("tool switched", "tool", t.String())
}

// PointerDown begins a stroke, a floating-layer drag, or a marquee,
// depending on the active tool.
func (c *Controller) PointerDown(x, y int) {
	switch c.tool {
	case Brush, Eraser:
		c.stroking = true
		c.lastX, c.lastY = x, y
		c.overlay().StampDisc(float64(x), float64(y), float64(c.brushSize), c.mode())

	case Move:
		if rect, ok := c.sel.Selection(); ok && rect.Contains(x, y) {
			c.dragging = true
			c.dragLastX, c.dragLastY = x, y
			return
		}
		// Press outside the selection starts a fresh marquee; the old
		// selection is dropped without merging.
		c.sel.Discard()
		c.marqueeing = true
		c.marqueeX0, c.marqueeY0 = x, y
		c.marqueeX1, c.marqueeY1 = x, y
	}
}

// PointerMove extends the current stroke, drag, or marquee.
func (c *Controller) PointerMove(x, y int) {
	switch c.tool {
	case Brush, Eraser:
		if !c.stroking {
			return
		}
		c.overlay().StrokeLine(
			float64(c.lastX), float64(c.lastY),
			float64(x), float64(y),
			float64(c.brushSize), c.mode(),
		)
		c.lastX, c.lastY = x, y

	case Move:
		if c.dragging {
			c.sel.MoveBy(x-c.dragLastX, y-c.dragLastY)
			c.dragLastX, c.dragLastY = x, y
			return
		}
		if c.marqueeing {
			c.marqueeX1, c.marqueeY1 = x, y
		}
	}
}

// PointerUp finishes the current gesture: strokes publish an overlay
// snapshot, marquees promote into a selection when large enough, and drags
// leave the selection where it was released.
func (c *Controller) PointerUp(x, y int) {
	switch c.tool {
	case Brush, Eraser:
		if !c.stroking {
			return
		}
		c.stroking = false
		c.publishOverlay()

	case Move:
		if c.dragging {
			c.dragging = false
			return
		}
		if c.marqueeing {
			c.marqueeing = false
			c.marqueeX1, c.marqueeY1 = x, y
			rect := selection.Normalize(c.marqueeX0, c.marqueeY0, c.marqueeX1, c.marqueeY1)
			if c.sel.CommitMarquee(rect) {
				// The marquee region was cleared out of the overlay.
				c.publishOverlay()
			}
		}
	}
}

func (c *Controller) overlay() *canvas.Surface {
	return c.sel.Overlay()
}

func (c *Controller) mode() canvas.CompositeMode {
	if c.tool == Eraser {
		return canvas.ModeErase
	}
	return canvas.ModeHighlight
}

func (c *Controller) publishOverlay() {
	if c.onOverlayChanged != nil {
		c.onOverlayChanged(c.overlay())
	}
}

func (c *Controller) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
