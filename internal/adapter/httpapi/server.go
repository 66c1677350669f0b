// Package httpapi exposes the forecast engine over HTTP along with health,
// readiness, and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
	"github.com/couchcryptid/precip-forecast/internal/forecast"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Forecaster produces forecasts; the engine satisfies it.
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) (*forecast.Response, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// forecastRequest is the wire form of a forecast query.
type forecastRequest struct {
	Latitude     float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Elevation    *float64 `json:"elevation,omitempty"`
	HorizonHours int      `json:"horizon_hours" validate:"required,gte=1,lte=4392"`
	Window       string   `json:"window" validate:"omitempty,oneof=day week month"`
	Format       string   `json:"format" validate:"omitempty,oneof=json csv"`
}

// Server exposes the forecast API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	forecaster Forecaster
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, forecaster Forecaster, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecaster: forecaster,
		validate:   validator.New(),
		logger:     logger,
	}

	mux.HandleFunc("POST /v1/forecast", s.handleForecast)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	window := domain.Window(req.Window)
	if window == "" {
		window = domain.WindowDay
	}

	resp, err := s.forecaster.Forecast(r.Context(), forecast.Request{
		Location: domain.Location{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Elevation: req.Elevation,
		},
		Horizon: time.Duration(req.HorizonHours) * time.Hour,
		Window:  window,
	})
	if err != nil {
		s.writeForecastError(w, err)
		return
	}

	if req.Format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := forecast.WriteCSV(w, resp); err != nil {
			s.logger.Error("write csv response failed", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeForecastError maps domain failures onto HTTP statuses: data problems
// are the client's location, not a server fault.
func (s *Server) writeForecastError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNoForecastAvailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "forecast timed out")
	default:
		s.logger.Error("forecast failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
