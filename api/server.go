package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tradepulse/riskcore/pkg/dispatch"
	"github.com/tradepulse/riskcore/pkg/models"
	"github.com/tradepulse/riskcore/pkg/monitor"
)

// Server exposes the published risk state read-only, plus the two write
// actions a dashboard needs: dismissing an alert and dispatching a
// position command.
type Server struct {
	monitor    *monitor.Monitor
	dispatcher *dispatch.Dispatcher
	registry   *prometheus.Registry
	logger     *logrus.Logger
	port       string
}

func NewServer(mon *monitor.Monitor, dispatcher *dispatch.Dispatcher, registry *prometheus.Registry, logger *logrus.Logger, port string) *Server {
	return &Server{
		monitor:    mon,
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger,
		port:       port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/risk/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/alerts/dismiss", s.handleDismiss)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/positions/command", s.handleCommand)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	handler := corsMiddleware(mux)

	s.logger.Infof("Starting API server on port %s", s.port)
	return http.ListenAndServe(":"+s.port, handler)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.monitor.Snapshot()
	if snap == nil {
		http.Error(w, "No risk snapshot published yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.monitor.Alerts())
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dismissed, ok := s.monitor.DismissAlert(req.ID)
	if !ok {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, dismissed)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.monitor.Positions())
}

type commandRequest struct {
	PositionID string `json:"positionId"`
	Action     string `json:"action"` // close_all, close_at_target, reverse
	TargetPct  int    `json:"targetPct"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result *models.CommandResult
	var err error
	switch models.CommandType(req.Action) {
	case models.CommandCloseAll:
		result, err = s.dispatcher.CloseAll(r.Context(), req.PositionID)
	case models.CommandCloseAtTarget:
		result, err = s.dispatcher.CloseAtProfitTarget(r.Context(), req.PositionID, req.TargetPct)
	case models.CommandReverse:
		result, err = s.dispatcher.Reverse(r.Context(), req.PositionID)
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	if err != nil {
		var verr *dispatch.ValidationError
		var stale *dispatch.StalePositionError
		switch {
		case errors.As(err, &verr):
			http.Error(w, verr.Error(), http.StatusBadRequest)
		case errors.As(err, &stale):
			http.Error(w, stale.Error(), http.StatusConflict)
		default:
			s.logger.WithError(err).Error("Command dispatch failed")
			http.Error(w, "Command dispatch failed", http.StatusBadGateway)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
