package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/internal/circuitbreaker"
	"github.com/mselser95/polymarket-engine/internal/execution"
	"github.com/mselser95/polymarket-engine/internal/risk"
	"github.com/mselser95/polymarket-engine/internal/strategy"
	"github.com/mselser95/polymarket-engine/pkg/healthprobe"
)

// Server exposes metrics, probes and the ops API: risk state, positions,
// engine counters, and the emergency stop switch.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds server wiring.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Risk          *risk.Manager
	Engine        *strategy.Engine
	Execution     *execution.Manager      // optional
	Breaker       *circuitbreaker.Breaker // optional
}

// New creates the ops HTTP server.
func New(cfg *Config) *Server {
	s := &Server{logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	r.Get("/api/positions", s.handlePositions(cfg.Risk))
	r.Get("/api/risk", s.handleRisk(cfg.Risk, cfg.Breaker))
	r.Get("/api/engine", s.handleEngine(cfg.Engine, cfg.Execution))
	r.Post("/api/emergency-stop", s.handleEmergencyStop(cfg.Risk))
	r.Post("/api/resume", s.handleResume(cfg.Risk))

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) handlePositions(riskMgr *risk.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, riskMgr.Snapshot().Positions)
	}
}

func (s *Server) handleRisk(riskMgr *risk.Manager, breaker *circuitbreaker.Breaker) http.HandlerFunc {
	type riskView struct {
		risk.Snapshot
		Breaker *circuitbreaker.Status `json:"circuit_breaker,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		view := riskView{Snapshot: riskMgr.Snapshot()}
		if breaker != nil {
			status := breaker.Status()
			view.Breaker = &status
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleEngine(engine *strategy.Engine, exec *execution.Manager) http.HandlerFunc {
	type engineView struct {
		LastTick time.Time             `json:"last_tick"`
		Ticks    int64                 `json:"ticks"`
		Signals  int64                 `json:"signals"`
		Paper    *execution.PaperStats `json:"paper,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ticks, signals := engine.Stats()
		view := engineView{
			LastTick: engine.LastTick(),
			Ticks:    ticks,
			Signals:  signals,
		}
		if exec != nil {
			if stats, ok := exec.PaperStats(); ok {
				view.Paper = &stats
			}
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleEmergencyStop(riskMgr *risk.Manager) http.HandlerFunc {
	type stopRequest struct {
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req stopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
			req.Reason = "manual stop via ops API"
		}

		s.logger.Warn("emergency-stop-requested", zap.String("reason", req.Reason))
		riskMgr.EmergencyStop(r.Context(), req.Reason)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "stopped",
			"reason": req.Reason,
		})
	}
}

func (s *Server) handleResume(riskMgr *risk.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		riskMgr.Resume()
		s.logger.Info("trading-resumed-via-api")
		writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Start serves until Shutdown. Blocking.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
