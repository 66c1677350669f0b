package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/adapter/httpapi"
	"github.com/couchcryptid/precip-forecast/internal/domain"
	"github.com/couchcryptid/precip-forecast/internal/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForecaster struct {
	resp *forecast.Response
	err  error
	last forecast.Request
}

func (s *stubForecaster) Forecast(_ context.Context, req forecast.Request) (*forecast.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubReadiness struct{ err error }

func (s *stubReadiness) CheckReadiness(_ context.Context) error { return s.err }

func sampleResponse() *forecast.Response {
	at := time.Date(2025, time.June, 1, 1, 0, 0, 0, time.UTC)
	return &forecast.Response{
		RequestID: "req-1",
		Window:    domain.WindowDay,
		Points: []domain.BlendedForecastPoint{{
			Time:                     at,
			PrecipitationProbability: 0.4,
			PrecipitationAmountMM:    0.2,
			ConfidenceLowMM:          0.1,
			ConfidenceHighMM:         0.3,
		}},
		Confidence: domain.ConfidenceModerate,
	}
}

func newServer(f *stubForecaster, readyErr error) *httpapi.Server {
	return httpapi.NewServer(":0", f, &stubReadiness{err: readyErr}, slog.Default())
}

func postForecast(t *testing.T, srv *httpapi.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/forecast", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestForecast_HappyPath(t *testing.T) {
	f := &stubForecaster{resp: sampleResponse()}
	srv := newServer(f, nil)

	rec := postForecast(t, srv, `{"latitude":47.61,"longitude":-122.33,"horizon_hours":48,"window":"day"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp forecast.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.RequestID)

	assert.Equal(t, 48*time.Hour, f.last.Horizon)
	assert.Equal(t, domain.WindowDay, f.last.Window)
	assert.InDelta(t, 47.61, f.last.Location.Latitude, 1e-9)
}

func TestForecast_DefaultsToDayWindow(t *testing.T) {
	f := &stubForecaster{resp: sampleResponse()}
	srv := newServer(f, nil)

	rec := postForecast(t, srv, `{"latitude":1,"longitude":1,"horizon_hours":24}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.WindowDay, f.last.Window)
}

func TestForecast_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"latitude out of range", `{"latitude":95,"longitude":0,"horizon_hours":24}`},
		{"longitude out of range", `{"latitude":0,"longitude":181,"horizon_hours":24}`},
		{"missing horizon", `{"latitude":0,"longitude":0}`},
		{"horizon too long", `{"latitude":0,"longitude":0,"horizon_hours":99999}`},
		{"unknown window", `{"latitude":0,"longitude":0,"horizon_hours":24,"window":"year"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(&stubForecaster{resp: sampleResponse()}, nil)
			rec := postForecast(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestForecast_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient data", domain.ErrInsufficientData, http.StatusUnprocessableEntity},
		{"no forecast", domain.ErrNoForecastAvailable, http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(&stubForecaster{err: tt.err}, nil)
			rec := postForecast(t, srv, `{"latitude":0,"longitude":0,"horizon_hours":24}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestForecast_CSVFormat(t *testing.T) {
	srv := newServer(&stubForecaster{resp: sampleResponse()}, nil)

	rec := postForecast(t, srv, `{"latitude":0,"longitude":0,"horizon_hours":24,"format":"csv"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "time,probability,amount_mm,confidence_low_mm,confidence_high_mm", lines[0])
	assert.Contains(t, lines[1], "2025-06-01T01:00:00Z")
}

func TestHealthz(t *testing.T) {
	srv := newServer(&stubForecaster{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	srv := newServer(&stubForecaster{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_NotReady(t *testing.T) {
	srv := newServer(&stubForecaster{}, errors.New("no observations ingested yet"))
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}
