package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/generate"
)

// The Extract and Apply actions are split into Begin/Finish pairs so hosts
// can run the blocking adapter call off their event loop while the editor
// stays responsive for tool operations. The convenience wrappers run the
// call inline for CLI and test use.

// BeginExtract validates preconditions, sets the extracting busy flag, and
// returns the inputs for the extraction call. Re-entrant calls while an
// extraction is pending fail with ErrBusy.
func (e *Editor) BeginExtract() (src image.Image, low, high int, err error) {
	if e.extracting {
		return nil, 0, 0, ErrBusy
	}
	if e.base == nil {
		return nil, 0, 0, ErrNoBaseImage
	}
	e.extracting = true
	return e.base.Image(), e.lowThreshold, e.highThreshold, nil
}

// FinishExtract clears the busy flag and, on success, installs the new edge
// overlay. On failure the previous overlay and selection are left untouched.
func (e *Editor) FinishExtract(edges *image.Gray, extractErr error) error {
	e.extracting = false
	if extractErr != nil {
		return fmt.Errorf("edge extraction failed: %w", extractErr)
	}
	if edges == nil {
		return fmt.Errorf("edge extraction returned no image")
	}
	if e.base != nil {
		b := edges.Bounds()
		if b.Dx() != e.base.Width() || b.Dy() != e.base.Height() {
			return fmt.Errorf("edge map size %dx%d does not match base %dx%d",
				b.Dx(), b.Dy(), e.base.Width(), e.base.Height())
		}
	}

	e.sel.SetOverlay(overlayFromEdgeMap(edges))
	e.publishOverlay()
	return nil
}

// Extract runs the full extraction action inline.
func (e *Editor) Extract(ctx context.Context) error {
	src, low, high, err := e.BeginExtract()
	if err != nil {
		return err
	}
	edges, extractErr := e.cfg.Extractor.Extract(ctx, src, low, high)
	return e.FinishExtract(edges, extractErr)
}

// ComposedEdgeMap returns the edge-map to send to generation: the overlay
// with any pending floating layer drawn in at its current position. The
// editor state is not mutated, so the selection stays editable afterwards.
func (e *Editor) ComposedEdgeMap() (*canvas.Surface, error) {
	overlay := e.sel.Overlay()
	if overlay == nil {
		return nil, ErrNoEdgeMap
	}

	composed := overlay.Clone()
	if rect, ok := e.sel.Selection(); ok {
		composed.DrawOver(e.sel.Floating(), image.Point{X: rect.X, Y: rect.Y})
	}
	return composed, nil
}

// BeginApply validates preconditions, sets the generating busy flag, and
// returns the generation request carrying the composed edge-map as the
// single structural reference.
func (e *Editor) BeginApply(opts ApplyOptions) (generate.Request, error) {
	if e.generating {
		return generate.Request{}, ErrBusy
	}
	if opts.Prompt == "" {
		return generate.Request{}, fmt.Errorf("engine: prompt must not be empty")
	}

	composed, err := e.ComposedEdgeMap()
	if err != nil {
		return generate.Request{}, err
	}
	pngData, err := composed.EncodePNG()
	if err != nil {
		return generate.Request{}, fmt.Errorf("engine: failed to encode edge map: %w", err)
	}

	e.generating = true
	return generate.Request{
		Prompt:          opts.Prompt,
		APIKey:          opts.APIKey,
		ReferenceImages: [][]byte{pngData},
		AspectRatio:     opts.AspectRatio,
		Model:           opts.Model,
		Count:           1,
	}, nil
}

// FinishApply clears the busy flag and, on success, hands the generated
// image URL to the host via OnApply. The base image is only replaced once
// the host fetches the URL and calls ReplaceBase; edge and selection state
// are left as-is either way.
func (e *Editor) FinishApply(resp *generate.Response, genErr error) (string, error) {
	e.generating = false
	if genErr != nil {
		return "", fmt.Errorf("image generation failed: %w", genErr)
	}
	if resp == nil || len(resp.URLs) == 0 {
		return "", fmt.Errorf("image generation returned no result")
	}

	url := resp.URLs[0]
	if e.cfg.OnApply != nil {
		e.cfg.OnApply(url)
	}
	return url, nil
}

// Apply runs the full generation action inline.
func (e *Editor) Apply(ctx context.Context, opts ApplyOptions) (string, error) {
	req, err := e.BeginApply(opts)
	if err != nil {
		return "", err
	}
	resp, genErr := e.cfg.Generator.Generate(ctx, req)
	return e.FinishApply(resp, genErr)
}

// overlayFromEdgeMap converts a binary edge-map into an overlay surface:
// edge pixels become opaque, background stays transparent.
func overlayFromEdgeMap(edges *image.Gray) *canvas.Surface {
	bounds := edges.Bounds()
	overlay := canvas.New(bounds.Dx(), bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if edges.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y >= 128 {
				overlay.Image().SetNRGBA(x, y, edgeColor)
			}
		}
	}
	return overlay
}
