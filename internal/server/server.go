package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/connection"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/internal/monitor"
	"github.com/zero-given/token-monitor/internal/push"
	"github.com/zero-given/token-monitor/internal/storage"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// Server exposes the stored token data over HTTP and hosts the push channel.
type Server struct {
	config     *config.ServerConfig
	appConfig  *config.AppConfig
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	store   storage.Storage
	monitor *monitor.PairMonitor
	conn    connection.Manager
	hub     *push.Hub
	prom    *metrics.PrometheusMetrics
}

// NewServer creates the HTTP server
func NewServer(cfg *config.ServerConfig, appCfg *config.AppConfig,
	store storage.Storage, mon *monitor.PairMonitor, conn connection.Manager,
	hub *push.Hub, prom *metrics.PrometheusMetrics) *Server {
	s := &Server{
		config:    cfg,
		appConfig: appCfg,
		logger:    utils.GetLogger(),
		store:     store,
		monitor:   mon,
		conn:      conn,
		hub:       hub,
		prom:      prom,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.metricsMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// OPTIONS is routed so browser preflights reach the CORS middleware
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	}
	api.HandleFunc("/stats", s.handleStats).Methods("GET", "OPTIONS")
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET", "OPTIONS")
	api.HandleFunc("/tokens/{address}", s.handleGetToken).Methods("GET", "OPTIONS")
	api.HandleFunc("/removed", s.handleListRemoved).Methods("GET", "OPTIONS")
	api.HandleFunc("/monitor/status", s.handleMonitorStatus).Methods("GET", "OPTIONS")

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
}

// Start begins serving. A startup failure within the grace window is
// returned directly instead of being lost in a goroutine.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return utils.NewAppError(utils.ErrCodeInternal, "HTTP server failed to start", err.Error())
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server stopping")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// handleHealth reports component health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storageHealth := s.store.GetHealth()

	healthy := storageHealth.Connected
	chainConnected := false
	if s.conn != nil {
		chainConnected = s.conn.IsConnected()
	}

	monitorRunning := false
	if s.monitor != nil {
		monitorRunning = s.monitor.IsRunning()
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	} else if !chainConnected || !monitorRunning {
		state = "degraded"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"version":   s.appConfig.Version,
		"components": map[string]interface{}{
			"storage": storageHealth,
			"chain": map[string]interface{}{
				"connected": chainConnected,
			},
			"monitor": map[string]interface{}{
				"running": monitorRunning,
			},
		},
	})
}

// handleStats aggregates storage, monitor and connection statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStorageStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	payload := map[string]interface{}{
		"storage":   stats,
		"timestamp": time.Now().UTC(),
	}
	if s.monitor != nil {
		payload["monitor"] = s.monitor.GetStats()
	}
	if s.conn != nil {
		payload["connection"] = s.conn.Stats()
	}
	if s.hub != nil {
		payload["push_clients"] = s.hub.ClientCount()
	}

	if s.prom != nil {
		s.prom.UpdateTokenCounts(stats.ActiveTokens, stats.RemovedTokens)
	}

	s.writeJSON(w, http.StatusOK, payload)
}

// handleListTokens lists live token snapshots
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	filter := models.SnapshotFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
		Limit:  parseIntParam(r, "limit", 100),
		Offset: parseIntParam(r, "offset", 0),
	}
	if v := r.URL.Query().Get("honeypot"); v != "" {
		b := v == "true" || v == "1"
		filter.IsHoneypot = &b
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	tokens, err := s.store.GetSnapshots(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := s.store.GetSnapshotCount(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if tokens == nil {
		tokens = []*models.TokenSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// handleGetToken returns one live snapshot
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(mux.Vars(r)["address"])

	snap, err := s.store.GetSnapshot(r.Context(), address)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap == nil {
		s.writeError(w, http.StatusNotFound,
			utils.NewAppError(utils.ErrCodeNotFound, "Token not found", address))
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

// handleListRemoved lists evicted tokens
func (s *Server) handleListRemoved(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 100)
	offset := parseIntParam(r, "offset", 0)
	if limit > 1000 {
		limit = 1000
	}

	removed, err := s.store.GetRemovedTokens(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := s.store.GetRemovedTokenCount(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if removed == nil {
		removed = []*models.RemovedToken{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleMonitorStatus reports the monitor loop state
func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeError(w, http.StatusServiceUnavailable,
			utils.NewAppError(utils.ErrCodeInternal, "Monitor not configured"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.GetStats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.WithError(err).WithField("status", status).Warn("Request failed")

	payload := map[string]interface{}{
		"error": err.Error(),
	}
	if appErr, ok := err.(*utils.AppError); ok {
		payload["code"] = appErr.Code
		payload["error"] = appErr.Message
		if appErr.Details != "" {
			payload["details"] = appErr.Details
		}
	}
	s.writeJSON(w, status, payload)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// muxCurrentRouteTemplate returns the matched route template, if any
func muxCurrentRouteTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}
