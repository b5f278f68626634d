package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/engine"
	"github.com/MeKo-Tech/edgecanvas/internal/selection"
	"github.com/MeKo-Tech/edgecanvas/internal/tool"
	"github.com/MeKo-Tech/edgecanvas/internal/view"
)

// maxUploadBytes caps the base image upload size.
const maxUploadBytes = 32 << 20

// Status reports the current state of the session server.
type Status struct {
	Sessions         int   `json:"sessions"`
	TotalExtractions int64 `json:"total_extractions"`
	TotalGenerations int64 `json:"total_generations"`
	TotalFailed      int64 `json:"total_failed"`
}

type createSessionResponse struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type extractRequest struct {
	Low  *int `json:"low"`
	High *int `json:"high"`
}

type extractResponse struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

type applyRequest struct {
	Prompt      string `json:"prompt"`
	APIKey      string `json:"api_key"`
	AspectRatio string `json:"aspect_ratio"`
	Model       string `json:"model"`
}

type applyResponse struct {
	URL string `json:"url"`
}

type pointerRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Rect  struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		W float64 `json:"w"`
		H float64 `json:"h"`
	} `json:"rect"`
}

type toolRequest struct {
	Tool      string `json:"tool"`
	BrushSize int    `json:"brush_size"`
}

type viewRequest struct {
	Zoom           *float64 `json:"zoom"`
	OverlayVisible *bool    `json:"overlay_visible"`
}

type selectionRequest struct {
	Op     string  `json:"op"`
	Factor float64 `json:"factor"`
}

type historyResponse struct {
	Sequences []int `json:"sequences"`
}

type restoreRequest struct {
	Seq int `json:"seq"`
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (s *Sessions) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		writeJSON(w, http.StatusOK, Status{
			Sessions:         s.Count(),
			TotalExtractions: s.totalExtractions.Load(),
			TotalGenerations: s.totalGenerations.Load(),
			TotalFailed:      s.totalFailed.Load(),
		})
	})
}

// Handler returns the HTTP handler for the session API. It expects to be
// mounted at /sessions.
func (s *Sessions) Handler() http.Handler {
	return http.HandlerFunc(s.serveAPI)
}

func (s *Sessions) serveAPI(w http.ResponseWriter, r *http.Request) {
	// Allow browser-based editors to talk to the API directly.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.URL.Path == "/sessions" || r.URL.Path == "/sessions/" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCreate(w, r)
		return
	}

	id, action, ok := parseSessionPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess, ok := s.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		s.Close(id)
		w.WriteHeader(http.StatusNoContent)
	case action == "extract" && r.Method == http.MethodPost:
		s.handleExtract(w, r, sess)
	case action == "apply" && r.Method == http.MethodPost:
		s.handleApply(w, r, sess)
	case action == "pointer" && r.Method == http.MethodPost:
		s.handlePointer(w, r, sess)
	case action == "tool" && r.Method == http.MethodPost:
		s.handleTool(w, r, sess)
	case action == "view" && r.Method == http.MethodPost:
		s.handleView(w, r, sess)
	case action == "selection" && r.Method == http.MethodPost:
		s.handleSelection(w, r, sess)
	case action == "frame" && r.Method == http.MethodGet:
		s.handleFrame(w, r, sess)
	case action == "overlay" && r.Method == http.MethodGet:
		s.handleOverlay(w, r, sess)
	case action == "history" && r.Method == http.MethodGet:
		s.handleHistory(w, r, sess)
	case action == "restore" && r.Method == http.MethodPost:
		s.handleRestore(w, r, sess)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreate opens a session from a PNG base image in the request body.
func (s *Sessions) handleCreate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read image: %v", err), http.StatusBadRequest)
		return
	}

	base, err := canvas.DecodePNG(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid base image: %v", err), http.StatusBadRequest)
		return
	}

	sess, err := s.Create(base)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create session: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:     sess.ID,
		Width:  base.Width(),
		Height: base.Height(),
	})
}

// handleExtract runs edge extraction. The blocking extractor call runs
// outside the session lock so tool editing stays responsive; a result
// arriving after the session closed is dropped.
func (s *Sessions) handleExtract(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	if req.Low != nil || req.High != nil {
		low, high := sess.editor.Thresholds()
		if req.Low != nil {
			low = *req.Low
		}
		if req.High != nil {
			high = *req.High
		}
		sess.editor.SetThresholds(low, high)
	}
	src, low, high, err := sess.editor.BeginExtract()
	sess.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	edges, extractErr := s.cfg.Extractor.Extract(r.Context(), src, low, high)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		http.Error(w, "session closed", http.StatusGone)
		return
	}
	err = sess.editor.FinishExtract(edges, extractErr)
	sess.mu.Unlock()

	if err != nil {
		s.totalFailed.Add(1)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.totalExtractions.Add(1)
	writeJSON(w, http.StatusOK, extractResponse{Low: low, High: high})
}

// handleApply sends the composed edge-map to the generation service. Like
// extract, the blocking call runs outside the session lock.
func (s *Sessions) handleApply(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := engine.ApplyOptions{
		Prompt:      req.Prompt,
		APIKey:      req.APIKey,
		AspectRatio: req.AspectRatio,
		Model:       req.Model,
	}
	if opts.APIKey == "" {
		opts.APIKey = s.cfg.APIKey
	}
	if opts.Model == "" {
		opts.Model = s.cfg.Model
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = s.cfg.AspectRatio
	}

	sess.mu.Lock()
	genReq, err := sess.editor.BeginApply(opts)
	sess.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp, genErr := s.cfg.Generator.Generate(r.Context(), genReq)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		http.Error(w, "session closed", http.StatusGone)
		return
	}
	url, err := sess.editor.FinishApply(resp, genErr)
	sess.mu.Unlock()

	if err != nil {
		s.totalFailed.Add(1)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.totalGenerations.Add(1)

	// The generated result becomes the base image for the next iteration.
	// A fetch failure is non-fatal: the URL is still returned and the
	// session keeps its previous base.
	img, fetchErr := fetchImage(r.Context(), url)
	if fetchErr != nil {
		s.log().Warn("failed to fetch generated image", "session", sess.ID, "url", url, "error", fetchErr)
	} else {
		sess.mu.Lock()
		if !sess.closed {
			if err := sess.editor.ReplaceBase(img.Image()); err != nil {
				s.log().Warn("failed to install generated image", "session", sess.ID, "error", err)
			}
		}
		sess.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, applyResponse{URL: url})
}

func fetchImage(ctx context.Context, url string) (*canvas.Surface, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return canvas.DecodePNG(data)
}

func (s *Sessions) handlePointer(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req pointerRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rect := view.DisplayRect{X: req.Rect.X, Y: req.Rect.Y, W: req.Rect.W, H: req.Rect.H}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch req.Phase {
	case "down":
		if err := sess.editor.PointerDown(req.X, req.Y, rect); err != nil {
			writeEngineError(w, err)
			return
		}
	case "move":
		sess.editor.PointerMove(req.X, req.Y, rect)
	case "up":
		sess.editor.PointerUp(req.X, req.Y, rect)
	default:
		http.Error(w, fmt.Sprintf("unknown pointer phase: %q", req.Phase), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Sessions) handleTool(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req toolRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if req.Tool != "" {
		t, err := tool.Parse(req.Tool)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sess.editor.SetTool(t)
	}
	if req.BrushSize != 0 {
		sess.editor.SetBrushSize(req.BrushSize)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Sessions) handleView(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if req.Zoom != nil {
		sess.editor.SetZoom(*req.Zoom)
	}
	if req.OverlayVisible != nil {
		sess.editor.SetOverlayVisible(*req.OverlayVisible)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Sessions) handleSelection(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var err error
	switch req.Op {
	case "rotate90":
		err = sess.editor.RotateSelection()
	case "flip_h":
		err = sess.editor.FlipSelection()
	case "scale":
		err = sess.editor.ScaleSelection(req.Factor)
	case "commit":
		sess.editor.CommitSelection()
	case "discard":
		sess.editor.DiscardSelection()
	default:
		http.Error(w, fmt.Sprintf("unknown selection op: %q", req.Op), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFrame renders and returns the current display frame as PNG.
func (s *Sessions) handleFrame(w http.ResponseWriter, _ *http.Request, sess *Session) {
	sess.mu.Lock()
	frame, err := sess.editor.Frame()
	sess.mu.Unlock()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to render frame: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, frame); err != nil {
		s.log().Error("failed to encode frame", "session", sess.ID, "error", err)
	}
}

// handleOverlay returns the raw edge overlay as PNG.
func (s *Sessions) handleOverlay(w http.ResponseWriter, _ *http.Request, sess *Session) {
	sess.mu.Lock()
	overlay := sess.editor.Overlay()
	var data []byte
	var err error
	if overlay != nil {
		data, err = overlay.EncodePNG()
	}
	sess.mu.Unlock()

	if overlay == nil {
		http.Error(w, "no edge map extracted yet", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode overlay: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Sessions) handleHistory(w http.ResponseWriter, _ *http.Request, sess *Session) {
	if s.cfg.History == nil {
		http.Error(w, "history is not enabled", http.StatusNotImplemented)
		return
	}
	seqs, err := s.cfg.History.Sequences(sess.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list snapshots: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Sequences: seqs})
}

func (s *Sessions) handleRestore(w http.ResponseWriter, r *http.Request, sess *Session) {
	if s.cfg.History == nil {
		http.Error(w, "history is not enabled", http.StatusNotImplemented)
		return
	}
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.cfg.History.Get(sess.ID, req.Seq)
	if err != nil {
		http.Error(w, fmt.Sprintf("snapshot %d not found", req.Seq), http.StatusNotFound)
		return
	}
	overlay, err := canvas.DecodePNG(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("corrupt snapshot: %v", err), http.StatusInternalServerError)
		return
	}

	sess.mu.Lock()
	err = sess.editor.RestoreOverlay(overlay)
	sess.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps the engine's precondition errors onto HTTP status
// codes. They describe editor state the client can fix, not server faults.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrBusy),
		errors.Is(err, engine.ErrNoBaseImage),
		errors.Is(err, engine.ErrNoEdgeMap),
		errors.Is(err, selection.ErrNoSelection):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already committed; an encode failure here means the
	// client went away, so there is nothing useful left to send.
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseSessionPath(requestPath string) (id, action string, ok bool) {
	rest, found := strings.CutPrefix(requestPath, "/sessions/")
	if !found || rest == "" {
		return "", "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", false
	}
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, true
}
