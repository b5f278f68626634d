package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/generate"
	"github.com/MeKo-Tech/edgecanvas/internal/selection"
	"github.com/MeKo-Tech/edgecanvas/internal/view"
	"github.com/stretchr/testify/require"
)

// fakeExtractor marks row 1 of the source as edges.
type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, src image.Image, _, _ int) (*image.Gray, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for x := 0; x < b.Dx(); x++ {
		g.SetGray(x, 1, color.Gray{Y: 255})
	}
	return g, nil
}

type fakeGenerator struct {
	err     error
	urls    []string
	lastReq generate.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req generate.Request) (*generate.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &generate.Response{URLs: f.urls}, nil
}

func newTestEditor(t *testing.T, cfg Config) *Editor {
	t.Helper()
	e := New(cfg)
	base := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, e.LoadBase(base))
	return e
}

func fullRect() view.DisplayRect {
	return view.DisplayRect{W: 8, H: 8}
}

func TestLoadBaseRequiresImage(t *testing.T) {
	e := New(Config{})
	require.ErrorIs(t, e.LoadBase(nil), ErrNoBaseImage)
}

func TestExtractInstallsOverlay(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}})

	require.NoError(t, e.Extract(context.Background()))

	overlay := e.Overlay()
	require.NotNil(t, overlay)
	require.Equal(t, 8, overlay.Width())
	require.Equal(t, 8, overlay.Height())

	require.Equal(t, edgeColor, overlay.At(3, 1), "edge pixels become opaque")
	require.Equal(t, uint8(0), overlay.At(3, 5).A, "background stays transparent")
}

func TestExtractBusyGate(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}})

	_, _, _, err := e.BeginExtract()
	require.NoError(t, err)

	_, _, _, err = e.BeginExtract()
	require.ErrorIs(t, err, ErrBusy)

	// A failed finish clears the busy flag and leaves no overlay behind.
	require.Error(t, e.FinishExtract(nil, errors.New("boom")))
	require.Nil(t, e.Overlay())

	_, _, _, err = e.BeginExtract()
	require.NoError(t, err)
}

func TestExtractWithoutBase(t *testing.T) {
	e := New(Config{Extractor: &fakeExtractor{}})
	require.ErrorIs(t, e.Extract(context.Background()), ErrNoBaseImage)
}

func TestFinishExtractRejectsSizeMismatch(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}})

	_, _, _, err := e.BeginExtract()
	require.NoError(t, err)

	wrong := image.NewGray(image.Rect(0, 0, 4, 4))
	require.Error(t, e.FinishExtract(wrong, nil))
	require.Nil(t, e.Overlay())

	extracting, _ := e.Busy()
	require.False(t, extracting)
}

func TestSetThresholdsClampsWithoutReordering(t *testing.T) {
	e := newTestEditor(t, Config{})

	e.SetThresholds(-5, 300)
	low, high := e.Thresholds()
	require.Equal(t, 0, low)
	require.Equal(t, 255, high)

	// An inverted pair is stored as given.
	e.SetThresholds(200, 100)
	low, high = e.Thresholds()
	require.Equal(t, 200, low)
	require.Equal(t, 100, high)
}

func TestPointerRequiresOverlay(t *testing.T) {
	e := newTestEditor(t, Config{})

	require.ErrorIs(t, e.PointerDown(1, 1, fullRect()), ErrNoEdgeMap)
	// Move and up before extraction are silently ignored.
	e.PointerMove(2, 2, fullRect())
	e.PointerUp(2, 2, fullRect())
}

func TestStrokePublishesOverlaySnapshots(t *testing.T) {
	var snapshots []string
	e := newTestEditor(t, Config{
		Extractor: &fakeExtractor{},
		OnOverlayChanged: func(dataURL string) {
			snapshots = append(snapshots, dataURL)
		},
	})

	require.NoError(t, e.Extract(context.Background()))
	require.Len(t, snapshots, 1, "extraction publishes the fresh overlay")

	require.NoError(t, e.PointerDown(4, 4, fullRect()))
	e.PointerUp(4, 4, fullRect())
	require.Len(t, snapshots, 2, "finished strokes publish a snapshot")

	restored, err := canvas.DecodeDataURL(snapshots[1])
	require.NoError(t, err)
	require.Equal(t, 8, restored.Width())
	require.Equal(t, canvas.HighlightColor, restored.At(4, 4))
}

func TestApplySendsComposedEdgeMap(t *testing.T) {
	gen := &fakeGenerator{urls: []string{"https://img.example/result.png"}}
	var applied string
	e := newTestEditor(t, Config{
		Extractor: &fakeExtractor{},
		Generator: gen,
		OnApply:   func(url string) { applied = url },
	})
	require.NoError(t, e.Extract(context.Background()))

	url, err := e.Apply(context.Background(), ApplyOptions{Prompt: "a brick house", APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, "https://img.example/result.png", url)
	require.Equal(t, url, applied)

	require.Equal(t, "a brick house", gen.lastReq.Prompt)
	require.Equal(t, "k", gen.lastReq.APIKey)
	require.Equal(t, 1, gen.lastReq.Count)
	require.Len(t, gen.lastReq.ReferenceImages, 1)

	// The reference image is the PNG-encoded overlay.
	ref, err := canvas.DecodePNG(gen.lastReq.ReferenceImages[0])
	require.NoError(t, err)
	require.Equal(t, 8, ref.Width())
	require.Equal(t, edgeColor, ref.At(3, 1))
}

func TestApplyFailureLeavesEditorUsable(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}, Generator: gen})
	require.NoError(t, e.Extract(context.Background()))
	baseBefore := e.Base().Clone()

	_, err := e.Apply(context.Background(), ApplyOptions{Prompt: "p"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBusy)

	require.True(t, e.Base().Equal(baseBefore), "a failed apply must not touch the base image")

	// The busy flag is cleared; the next attempt reaches the generator again.
	_, err = e.Apply(context.Background(), ApplyOptions{Prompt: "p"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBusy)
}

func TestApplyPreconditions(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}, Generator: &fakeGenerator{}})

	_, err := e.BeginApply(ApplyOptions{Prompt: "p"})
	require.ErrorIs(t, err, ErrNoEdgeMap)

	require.NoError(t, e.Extract(context.Background()))
	_, err = e.BeginApply(ApplyOptions{})
	require.Error(t, err, "empty prompt must be rejected")
}

func TestApplyBusyGate(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}, Generator: &fakeGenerator{urls: []string{"u"}}})
	require.NoError(t, e.Extract(context.Background()))

	_, err := e.BeginApply(ApplyOptions{Prompt: "p"})
	require.NoError(t, err)

	_, err = e.BeginApply(ApplyOptions{Prompt: "p"})
	require.ErrorIs(t, err, ErrBusy)

	_, err = e.FinishApply(&generate.Response{URLs: []string{"u"}}, nil)
	require.NoError(t, err)

	_, err = e.BeginApply(ApplyOptions{Prompt: "p"})
	require.NoError(t, err)
}

func TestComposedEdgeMapIncludesFloatingLayer(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}})
	require.NoError(t, e.Extract(context.Background()))

	// Detach the edge row and move it down.
	require.True(t, e.Selection().CommitMarquee(selection.Rect{X: 0, Y: 0, W: 8, H: 4}))
	e.Selection().MoveBy(0, 4)

	composed, err := e.ComposedEdgeMap()
	require.NoError(t, err)
	require.Equal(t, edgeColor, composed.At(3, 5), "floating edge drawn at its moved position")
	require.Equal(t, uint8(0), composed.At(3, 1).A, "original position stays cleared")

	// Composing is a preview; the selection stays live and the overlay untouched.
	require.True(t, e.Selection().Active())
	require.Equal(t, uint8(0), e.Overlay().At(3, 5).A)
}

func TestCommitSelectionPublishes(t *testing.T) {
	var snapshots int
	e := newTestEditor(t, Config{
		Extractor:        &fakeExtractor{},
		OnOverlayChanged: func(string) { snapshots++ },
	})
	require.NoError(t, e.Extract(context.Background()))
	require.True(t, e.Selection().CommitMarquee(selection.Rect{X: 0, Y: 0, W: 8, H: 4}))
	snapshots = 0

	e.CommitSelection()
	require.Equal(t, 1, snapshots)
	require.False(t, e.Selection().Active())

	// Committing again with nothing selected publishes nothing.
	e.CommitSelection()
	require.Equal(t, 1, snapshots)
}

func TestReplaceBaseKeepsEditingState(t *testing.T) {
	e := newTestEditor(t, Config{Extractor: &fakeExtractor{}})
	require.NoError(t, e.Extract(context.Background()))

	next := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, e.ReplaceBase(next))
	require.NotNil(t, e.Overlay(), "replace keeps the overlay for the next iteration")
}

func TestRestoreOverlay(t *testing.T) {
	e := newTestEditor(t, Config{})

	require.Error(t, e.RestoreOverlay(nil))
	require.Error(t, e.RestoreOverlay(canvas.New(4, 4)), "size mismatch")

	snap := canvas.New(8, 8)
	snap.Image().SetNRGBA(2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	require.NoError(t, e.RestoreOverlay(snap))
	require.Equal(t, uint8(255), e.Overlay().At(2, 2).A)
}
