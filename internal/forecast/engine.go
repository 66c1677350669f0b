// Package forecast orchestrates a forecast request end to end: load the
// location's observation series, resolve cached climate normals, fan out to
// the method estimators per target hour, blend, aggregate, and classify.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/aggregate"
	"github.com/couchcryptid/precip-forecast/internal/blend"
	"github.com/couchcryptid/precip-forecast/internal/climatology"
	"github.com/couchcryptid/precip-forecast/internal/domain"
	"github.com/couchcryptid/precip-forecast/internal/estimator"
	"github.com/couchcryptid/precip-forecast/internal/normalcache"
	"github.com/couchcryptid/precip-forecast/internal/observability"
	"github.com/google/uuid"
)

// SeriesProvider supplies the observation series backing a grid cell.
type SeriesProvider interface {
	Series(key string) (domain.ObservationSeries, bool)
}

// Request asks for a forecast at one location over a horizon from now.
type Request struct {
	Location domain.Location
	Horizon  time.Duration
	Window   domain.Window
}

// Gap marks a target hour no method could estimate. Gaps are reported, never
// filled with fabricated zeros.
type Gap struct {
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
}

// Response is the complete forecast product for one request.
type Response struct {
	RequestID string          `json:"request_id"`
	Location  domain.Location `json:"location"`
	IssuedAt  time.Time       `json:"issued_at"`
	Window    domain.Window   `json:"window"`

	Points    []domain.BlendedForecastPoint `json:"points"`
	Gaps      []Gap                         `json:"gaps,omitempty"`
	Summaries []domain.AggregatedSummary    `json:"summaries"`

	Confidence      domain.ConfidenceLevel `json:"confidence"`
	ConfidenceScore float64                `json:"confidence_score"`
}

// Engine wires the stages together. Construct once; safe for concurrent use.
type Engine struct {
	provider   SeriesProvider
	cache      *normalcache.Cache
	computer   *climatology.Computer
	estimators []estimator.Estimator
	blender    *blend.Blender
	aggregator *aggregate.Aggregator
	logger     *slog.Logger
	metrics    *observability.Metrics

	// methodTimeout bounds each estimator call so one slow method cannot
	// stall the whole point.
	methodTimeout time.Duration

	highCutoff     float64
	moderateCutoff float64
}

// Options tunes engine behavior beyond the required collaborators.
type Options struct {
	MethodTimeout            time.Duration
	ConfidenceHighCutoff     float64
	ConfidenceModerateCutoff float64
}

func DefaultOptions() Options {
	return Options{
		MethodTimeout:            2 * time.Second,
		ConfidenceHighCutoff:     0.8,
		ConfidenceModerateCutoff: 0.6,
	}
}

func NewEngine(
	provider SeriesProvider,
	cache *normalcache.Cache,
	computer *climatology.Computer,
	estimators []estimator.Estimator,
	blender *blend.Blender,
	aggregator *aggregate.Aggregator,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Engine {
	return &Engine{
		provider:       provider,
		cache:          cache,
		computer:       computer,
		estimators:     estimators,
		blender:        blender,
		aggregator:     aggregator,
		logger:         logger,
		metrics:        metrics,
		methodTimeout:  opts.MethodTimeout,
		highCutoff:     opts.ConfidenceHighCutoff,
		moderateCutoff: opts.ConfidenceModerateCutoff,
	}
}

// Forecast produces the blended, aggregated forecast for one request.
// Individual target hours may fail and become gaps; the request as a whole
// fails only when no hour could be forecast at all.
func (e *Engine) Forecast(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.metrics.RequestsTotal.Inc()
	defer func() {
		e.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}()

	if req.Horizon <= 0 {
		return nil, fmt.Errorf("forecast: non-positive horizon %s", req.Horizon)
	}
	if req.Horizon > blend.MaxHorizon {
		req.Horizon = blend.MaxHorizon
	}

	requestID := uuid.NewString()
	issued := domain.Now()
	key := req.Location.GridKey()
	logger := e.logger.With("request_id", requestID, "grid_key", key)

	series, ok := e.provider.Series(key)
	if !ok || len(series) == 0 {
		return nil, fmt.Errorf("forecast %s: no observations for cell: %w", key, domain.ErrInsufficientData)
	}

	normals, err := e.normalsFor(ctx, key, series)
	if err != nil {
		// Estimators other than climatology can still run without normals.
		if !errors.Is(err, domain.ErrInsufficientData) {
			return nil, fmt.Errorf("forecast %s: normals: %w", key, err)
		}
		logger.Warn("no climate normals for cell, continuing without", "error", err)
		normals = normalcache.Normals{}
	}

	in := estimator.Inputs{Series: series, Normals: normals, Issued: issued}

	points, gaps := e.forecastPoints(ctx, logger, req, issued, in)
	if len(points) == 0 {
		return nil, fmt.Errorf("forecast %s: all %d target hours failed: %w", key, len(gaps), domain.ErrNoForecastAvailable)
	}

	summaries, err := e.aggregator.Aggregate(points, req.Window)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", key, err)
	}
	e.labelSummaries(summaries, normals)

	score := e.confidenceScore(points, gaps, req.Horizon)

	logger.Info("forecast produced",
		"points", len(points),
		"gaps", len(gaps),
		"summaries", len(summaries),
		"confidence_score", score,
	)

	return &Response{
		RequestID:       requestID,
		Location:        req.Location,
		IssuedAt:        issued,
		Window:          req.Window,
		Points:          points,
		Gaps:            gaps,
		Summaries:       summaries,
		Confidence:      e.confidenceLabel(score),
		ConfidenceScore: score,
	}, nil
}

// RefreshNormals recomputes the cached normals for one grid cell from its
// current series. Used by the periodic refresh job so long-lived cells track
// newly ingested history.
func (e *Engine) RefreshNormals(ctx context.Context, key string) error {
	series, ok := e.provider.Series(key)
	if !ok || len(series) == 0 {
		return nil
	}
	e.cache.Invalidate(key)
	_, err := e.normalsFor(ctx, key, series)
	return err
}

// normalsFor resolves the cached normals for a grid cell, computing both the
// month-of-year and day-of-year buckets on a miss.
func (e *Engine) normalsFor(ctx context.Context, key string, series domain.ObservationSeries) (normalcache.Normals, error) {
	computed := false
	normals, err := e.cache.Get(ctx, key, func(ctx context.Context) (normalcache.Normals, error) {
		computed = true
		start := time.Now()
		defer func() {
			e.metrics.NormalsComputeDuration.Observe(time.Since(start).Seconds())
		}()

		merged := make(normalcache.Normals)
		monthErr := mergeNormals(merged, e.computer, series, domain.MonthOfYear)
		doyErr := mergeNormals(merged, e.computer, series, domain.DayOfYear)
		if len(merged) == 0 {
			// Prefer the month error; it names the coarser bucket that
			// failed even with twelve-way pooling.
			if monthErr != nil {
				return nil, monthErr
			}
			return nil, doyErr
		}
		return merged, nil
	})

	if computed {
		e.metrics.NormalsCacheLookups.WithLabelValues("miss").Inc()
	} else {
		e.metrics.NormalsCacheLookups.WithLabelValues("hit").Inc()
	}
	return normals, err
}

func mergeNormals(dst normalcache.Normals, c *climatology.Computer, series domain.ObservationSeries, kind domain.PeriodKind) error {
	normals, err := c.Normals(series, kind)
	if err != nil {
		return err
	}
	for p, n := range normals {
		dst[p] = n
	}
	return nil
}

// forecastPoints walks the hourly targets, blending whatever subset of
// methods produced an estimate at each.
func (e *Engine) forecastPoints(ctx context.Context, logger *slog.Logger, req Request, issued time.Time, in estimator.Inputs) ([]domain.BlendedForecastPoint, []Gap) {
	var points []domain.BlendedForecastPoint
	var gaps []Gap

	first := issued.Truncate(time.Hour).Add(time.Hour)
	last := issued.Add(req.Horizon)
	for target := first; !target.After(last); target = target.Add(time.Hour) {
		if ctx.Err() != nil {
			break
		}

		estimates := e.estimatesFor(ctx, logger, target, req.Location, in)
		point, err := e.blender.Blend(target, issued, estimates, wetDayFractionFor(in.Normals, target))
		if err != nil {
			e.metrics.PointGaps.Inc()
			gaps = append(gaps, Gap{Time: target, Reason: gapReason(err)})
			continue
		}
		e.metrics.PointsForecast.Inc()
		e.metrics.BlendsByBucket.WithLabelValues(blend.BucketName(target.Sub(issued))).Inc()
		points = append(points, point)
	}
	return points, gaps
}

// estimatesFor runs every estimator for one target hour, keeping whichever
// succeed. Each call gets its own timeout so a hung model server degrades to
// a missing method rather than a stalled request.
func (e *Engine) estimatesFor(ctx context.Context, logger *slog.Logger, target time.Time, loc domain.Location, in estimator.Inputs) []domain.MethodEstimate {
	estimates := make([]domain.MethodEstimate, 0, len(e.estimators))
	for _, est := range e.estimators {
		methodCtx, cancel := context.WithTimeout(ctx, e.methodTimeout)
		estimate, err := est.Estimate(methodCtx, target, loc, in)
		cancel()
		if err != nil {
			e.metrics.MethodUnavailable.WithLabelValues(string(est.Method())).Inc()
			logger.Debug("method unavailable",
				"method", est.Method(),
				"target", target,
				"error", err,
			)
			continue
		}
		estimates = append(estimates, estimate)
	}
	return estimates
}

// wetDayFractionFor looks up the climatological wet-day fraction for the
// target's finest available period, or -1 when no normal covers it.
func wetDayFractionFor(normals normalcache.Normals, target time.Time) float64 {
	if n, ok := normals[domain.DayOfYearPeriod(target)]; ok {
		return n.WetDayFraction
	}
	if n, ok := normals[domain.MonthPeriod(target)]; ok {
		return n.WetDayFraction
	}
	return -1
}

// labelSummaries attaches tercile labels where a matching normal exists.
// Daily summaries classify against the day-of-year bucket (falling back to
// the month), monthly summaries against the month bucket. Weekly summaries
// stay unclassified: no calendar-week normal exists.
func (e *Engine) labelSummaries(summaries []domain.AggregatedSummary, normals normalcache.Normals) {
	for i := range summaries {
		var normal *domain.ClimateNormal
		switch summaries[i].Window {
		case domain.WindowDay:
			if n, ok := normals[domain.DayOfYearPeriod(summaries[i].Start)]; ok {
				// Daily totals compare against a daily-total distribution,
				// so the doy bucket applies directly.
				normal = &n
			}
		case domain.WindowMonth:
			if n, ok := normals[domain.MonthPeriod(summaries[i].Start)]; ok {
				normal = &n
			}
		}
		label, err := climatology.ClassifySummary(summaries[i], normal)
		if err != nil {
			continue
		}
		summaries[i].Tercile = &label
	}
}

// confidenceScore combines coverage (how many target hours produced a
// point), the sharpness of the produced intervals, and a horizon decay.
func (e *Engine) confidenceScore(points []domain.BlendedForecastPoint, gaps []Gap, horizon time.Duration) float64 {
	coverage := float64(len(points)) / float64(len(points)+len(gaps))

	var sharpness float64
	for _, p := range points {
		denom := math.Max(p.PrecipitationAmountMM, 0.1)
		rel := (p.ConfidenceHighMM - p.ConfidenceLowMM) / denom
		sharpness += 1 / (1 + rel)
	}
	sharpness /= float64(len(points))

	decay := math.Exp(-horizon.Hours() / (24 * 180))
	score := coverage * (0.5 + 0.5*sharpness) * decay
	return math.Max(0, math.Min(1, score))
}

func (e *Engine) confidenceLabel(score float64) domain.ConfidenceLevel {
	switch {
	case score >= e.highCutoff:
		return domain.ConfidenceHigh
	case score >= e.moderateCutoff:
		return domain.ConfidenceModerate
	default:
		return domain.ConfidenceLow
	}
}

func gapReason(err error) string {
	if errors.Is(err, domain.ErrNoForecastAvailable) {
		return "no method available"
	}
	return err.Error()
}
