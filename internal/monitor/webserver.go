// Package monitor provides a debugging-only HTTP surface over the labeling
// engine: the latest frame's outcome as JSON, an interactive overlay of the
// labeled dots, and a PNG rendering suitable for reports. None of the
// endpoints carry auth; bind them to localhost.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/attica-surgical/fidlabel/internal/fiducial"
	"github.com/attica-surgical/fidlabel/internal/monitoring"
)

// WebServer exposes the monitoring endpoints. The replay or acquisition
// loop publishes each frame's outcome with Publish; handlers read the most
// recent snapshot.
type WebServer struct {
	address string
	labeler *fiducial.Labeler
	server  *http.Server

	mu         sync.RWMutex
	frameIndex int
	lastFrame  fiducial.Frame
	lastResult fiducial.Outcome
	hasFrame   bool
}

// NewWebServer creates a monitor bound to the given address.
func NewWebServer(address string, labeler *fiducial.Labeler) *WebServer {
	ws := &WebServer{
		address: address,
		labeler: labeler,
	}
	ws.server = &http.Server{
		Addr:    address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

func (ws *WebServer) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", ws.handleHealth)
	mux.HandleFunc("/api/outcome", ws.handleOutcome)
	mux.HandleFunc("/api/templates", ws.handleTemplates)
	mux.HandleFunc("/debug/overlay", ws.handleOverlay)
	mux.HandleFunc("/debug/overlay.png", ws.handleOverlayPNG)
	return mux
}

// Publish records the latest processed frame and its outcome for the
// handlers to serve.
func (ws *WebServer) Publish(frameIndex int, frame fiducial.Frame, outcome fiducial.Outcome) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.frameIndex = frameIndex
	ws.lastFrame = frame
	ws.lastResult = outcome
	ws.hasFrame = true
}

// snapshot returns the latest published frame state.
func (ws *WebServer) snapshot() (int, fiducial.Frame, fiducial.Outcome, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.frameIndex, ws.lastFrame, ws.lastResult, ws.hasFrame
}

// Start begins serving in a goroutine and shuts down when ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("monitor: listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor: server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.server.Shutdown(shutdownCtx)
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("monitor: encode response: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]string{"status": "ok"})
}

// handleOutcome serves the latest frame's labeling outcome.
func (ws *WebServer) handleOutcome(w http.ResponseWriter, r *http.Request) {
	frameIndex, _, outcome, ok := ws.snapshot()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no frame processed yet")
		return
	}
	ws.writeJSON(w, map[string]interface{}{
		"frame_index":       frameIndex,
		"dots_found":        outcome.DotsFound,
		"template_id":       outcome.TemplateID,
		"pattern_intensity": outcome.PatternIntensity,
		"results":           outcome.Results,
	})
}

// handleTemplates serves the configured templates for inspection.
func (ws *WebServer) handleTemplates(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, ws.labeler.Templates())
}
