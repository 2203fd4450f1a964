package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wearlab/motion-relay-service/internal/config"
	"github.com/wearlab/motion-relay-service/internal/hub"
	"github.com/wearlab/motion-relay-service/internal/ingest"
	"github.com/wearlab/motion-relay-service/internal/metrics"
	"github.com/wearlab/motion-relay-service/internal/packet"
	"github.com/wearlab/motion-relay-service/internal/store"
)

// HTTPServer exposes the device-facing and observer-facing endpoints:
// packet collection, time sync, the WebSocket push channel, and the
// monitoring surface.
type HTTPServer struct {
	server  *http.Server
	mux     *http.ServeMux
	logger  *slog.Logger
	config  *config.Config
	ingest  *ingest.Service
	hub     *hub.Hub
	store   store.Store
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the HTTP server with all routes registered.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, svc *ingest.Service,
	h *hub.Hub, st store.Store, m *metrics.Metrics) *HTTPServer {

	s := &HTTPServer{
		logger:    logger,
		config:    cfg,
		ingest:    svc,
		hub:       h,
		store:     st,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.mux = mux

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Device-facing endpoints
	mux.HandleFunc("/time", s.withMetrics("/time", s.handleTime))
	mux.HandleFunc("/collect", s.withMetrics("/collect", s.handleCollect))

	// Observer push channel. The upgrade hijacks the connection, so the
	// metrics wrapper must not touch the response afterwards; /ws is
	// counted separately inside the handler.
	mux.HandleFunc("/ws", s.handleWS)

	// Monitoring endpoints
	mux.HandleFunc("/packets", s.withMetrics("/packets", s.handlePackets))
	mux.HandleFunc("/health", s.withMetrics("/health", s.handleHealth))
	mux.HandleFunc("/stats", s.withMetrics("/stats", s.handleStats))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the route mux for reuse in tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)
		s.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			s.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("Starting HTTP server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server...")

	return s.server.Shutdown(ctx)
}

// handleTime implements the /time endpoint: one-shot time sync for
// devices, epoch microseconds.
func (s *HTTPServer) handleTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{
		"epoch_us": time.Now().UnixMicro(),
	})
}

// handleCollect implements the /collect endpoint: one packet in, stored
// and broadcast.
func (s *HTTPServer) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, err := packet.DecodeJSON(r.Body)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := s.ingest.Ingest(r.Context(), p); err != nil {
		var verr *packet.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		s.logger.Error("ingest failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to store packet")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handlePackets implements the /packets endpoint: recent stored packets,
// filterable by user_id, session_id, and label.
func (s *HTTPServer) handlePackets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := r.URL.Query()
	filter := store.Filter{
		UserID:    params.Get("user_id"),
		SessionID: params.Get("session_id"),
		Label:     params.Get("label"),
	}
	if limitParam := params.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	packets, err := s.store.Recent(r.Context(), filter)
	if err != nil {
		s.logger.Error("packet query failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "failed to query packets")
		return
	}
	if packets == nil {
		packets = []store.StoredPacket{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(packets),
		"packets": packets,
	})
}

// handleHealth implements the /health endpoint
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "motion-relay-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"hub": map[string]interface{}{
				"status":      "running",
				"subscribers": s.hub.Count(),
			},
			"storage": map[string]interface{}{
				"status": "running",
				"driver": s.config.Storage.Driver,
			},
		},
	}

	s.writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, cached := s.hub.Latest()

	stats := map[string]interface{}{
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
		"hub": map[string]interface{}{
			"subscribers":   s.hub.Count(),
			"latest_cached": cached,
		},
	}

	s.writeJSON(w, http.StatusOK, stats)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: status})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
