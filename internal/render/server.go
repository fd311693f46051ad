package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pagehaul/pagehaul/internal/config"
	"github.com/pagehaul/pagehaul/internal/observability"
	"github.com/pagehaul/pagehaul/internal/types"
)

// requestSizeLimit caps the render request body. Requests are a URL plus
// a few headers; anything bigger is malformed.
const requestSizeLimit = 1 << 20

// Renderer is the narrow interface the HTTP surface needs, so handlers
// are testable without a browser.
type Renderer interface {
	Render(ctx context.Context, req *types.RenderRequest) *types.RenderEnvelope
}

// Server exposes the render wire contract over HTTP:
//
//	POST /render  — {url, wait_after_load, headers} in,
//	                {content, pageStatusCode, pageError} out
//	GET  /healthz — liveness
//	GET  <path>   — Prometheus text metrics, when enabled
//
// Render failures are data: the response is HTTP 200 with the failure in
// pageError. Only a malformed request itself produces a non-200.
type Server struct {
	mux      *http.ServeMux
	renderer Renderer
	logger   *slog.Logger
}

// NewServer wires the routes.
func NewServer(renderer Renderer, metrics *observability.Metrics, metricsCfg config.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		renderer: renderer,
		logger:   logger.With("component", "render_server"),
	}

	s.mux.HandleFunc("/render", s.handleRender)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if metrics != nil && metricsCfg.Enabled {
		s.mux.Handle(metricsCfg.Path, metrics)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.RenderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, requestSizeLimit))
	if err := dec.Decode(&req); err != nil {
		s.logger.Warn("bad render request", "error", err)
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	if err := config.ValidateURL(req.URL); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	env := s.renderer.Render(r.Context(), &req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("encode render response", "url", req.URL, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
