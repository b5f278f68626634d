// Package server hosts composition editing sessions over HTTP. Each session
// owns one engine.Editor behind a per-session lock, emulating the single
// event loop the engine expects; the blocking extract/generate calls run
// outside the lock so tool editing stays responsive while they are pending.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/edge"
	"github.com/MeKo-Tech/edgecanvas/internal/engine"
	"github.com/MeKo-Tech/edgecanvas/internal/generate"
	"github.com/MeKo-Tech/edgecanvas/internal/history"
)

// Config configures the session server.
type Config struct {
	Extractor edge.Extractor
	Generator generate.Client
	// History is optional; when set, overlay snapshots are persisted per
	// session for undo/restore.
	History *history.Store
	// APIKey is forwarded to the generation service.
	APIKey string
	// Model and AspectRatio are the generation defaults when a request
	// does not override them.
	Model       string
	AspectRatio string
	Logger      *slog.Logger
}

// Session binds one editor to one client. All editor access goes through mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	editor  *engine.Editor
	lastURL string
	closed  bool
}

// Sessions manages the live editing sessions.
type Sessions struct {
	cfg    Config
	logger *slog.Logger

	sessions sync.Map // id -> *Session

	totalExtractions atomic.Int64
	totalGenerations atomic.Int64
	totalFailed      atomic.Int64
}

// NewSessions creates a session manager.
func NewSessions(cfg Config) *Sessions {
	return &Sessions{cfg: cfg, logger: cfg.Logger}
}

// Create opens a new session around the given base image surface.
func (s *Sessions) Create(base *canvas.Surface) (*Session, error) {
	if base == nil {
		return nil, fmt.Errorf("server: base image is required")
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: id, CreatedAt: time.Now()}

	sess.editor = engine.New(engine.Config{
		Extractor: s.cfg.Extractor,
		Generator: s.cfg.Generator,
		Logger:    s.logger,
		OnApply: func(url string) {
			sess.lastURL = url
		},
		OnOverlayChanged: func(dataURL string) {
			s.persistSnapshot(id, dataURL)
		},
	})
	if err := sess.editor.LoadBase(base.Image()); err != nil {
		return nil, err
	}

	s.sessions.Store(id, sess)
	s.log().Info("session created", "session", id, "width", base.Width(), "height", base.Height())
	return sess, nil
}

// Get looks up a live session.
func (s *Sessions) Get(id string) (*Session, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Close tears a session down. In-flight extract/apply results arriving
// afterwards are dropped by the liveness check in the handlers.
func (s *Sessions) Close(id string) bool {
	v, ok := s.sessions.LoadAndDelete(id)
	if !ok {
		return false
	}
	sess := v.(*Session)

	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()

	if s.cfg.History != nil {
		if err := s.cfg.History.DeleteSession(id); err != nil {
			s.log().Warn("failed to delete session history", "session", id, "error", err)
		}
	}
	s.log().Info("session closed", "session", id)
	return true
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Sessions) persistSnapshot(sessionID, dataURL string) {
	if s.cfg.History == nil {
		return
	}
	surface, err := canvas.DecodeDataURL(dataURL)
	if err != nil {
		s.log().Warn("failed to decode overlay snapshot", "session", sessionID, "error", err)
		return
	}
	pngData, err := surface.EncodePNG()
	if err != nil {
		s.log().Warn("failed to encode overlay snapshot", "session", sessionID, "error", err)
		return
	}

	seq, err := s.cfg.History.Append(sessionID, pngData)
	if err != nil {
		s.log().Warn("failed to persist overlay snapshot", "session", sessionID, "error", err)
		return
	}
	s.log().Debug("overlay snapshot persisted", "session", sessionID, "seq", seq)
}

func (s *Sessions) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func newSessionID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("server: failed to generate session id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
