package domain

import (
	"fmt"
	"math"
	"time"
)

// Location is a point on Earth for which forecasts are produced.
// Constructed at the boundary from validated request input; immutable afterwards.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"` // meters, when known
	Name      string   `json:"name,omitempty"`      // resolved place name, when known
}

// gridCellDegrees is the cell size used to key the climate-normal cache.
// Locations within the same quarter-degree cell share normals.
const gridCellDegrees = 0.25

// GridKey returns a cache key that collapses nearby locations onto a
// quarter-degree grid cell.
func (l Location) GridKey() string {
	lat := math.Floor(l.Latitude/gridCellDegrees) * gridCellDegrees
	lon := math.Floor(l.Longitude/gridCellDegrees) * gridCellDegrees
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// ObservationSample is one historical weather observation. Produced by the
// upstream acquisition layer; the engine only reads these.
type ObservationSample struct {
	Time            time.Time `json:"time"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
	HumidityPct     *float64  `json:"humidity_pct,omitempty"`
	WindSpeedKMH    *float64  `json:"wind_speed_kmh,omitempty"`
}

// ObservationSeries is a time-ordered sequence of samples for one location.
type ObservationSeries []ObservationSample

// Span returns the time covered by the series, zero values when empty.
func (s ObservationSeries) Span() (time.Time, time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	return s[0].Time, s[len(s)-1].Time
}

// Years returns the number of distinct calendar years present in the series.
func (s ObservationSeries) Years() int {
	seen := make(map[int]struct{})
	for _, sample := range s {
		seen[sample.Time.Year()] = struct{}{}
	}
	return len(seen)
}

// Since returns the samples at or after the cutoff, preserving order.
func (s ObservationSeries) Since(cutoff time.Time) ObservationSeries {
	for i, sample := range s {
		if !sample.Time.Before(cutoff) {
			return s[i:]
		}
	}
	return nil
}

// PeriodKind selects the calendar bucketing used for climate normals.
type PeriodKind uint8

const (
	// MonthOfYear buckets samples into 12 calendar months.
	MonthOfYear PeriodKind = iota + 1
	// DayOfYear buckets samples by day of year with a smoothing window.
	DayOfYear
)

// Period identifies one calendar bucket: a month (1-12) or a day of year (1-366).
type Period struct {
	Kind  PeriodKind
	Index int
}

// MonthPeriod returns the month-of-year period for t.
func MonthPeriod(t time.Time) Period {
	return Period{Kind: MonthOfYear, Index: int(t.Month())}
}

// DayOfYearPeriod returns the day-of-year period for t.
func DayOfYearPeriod(t time.Time) Period {
	return Period{Kind: DayOfYear, Index: t.YearDay()}
}

func (p Period) String() string {
	switch p.Kind {
	case MonthOfYear:
		return fmt.Sprintf("month-%02d", p.Index)
	case DayOfYear:
		return fmt.Sprintf("doy-%03d", p.Index)
	default:
		return fmt.Sprintf("period-%d-%d", p.Kind, p.Index)
	}
}

// ClimateNormal is the long-run statistical baseline for one location and
// calendar period. Derived from a fixed reference window of historical years;
// immutable and cacheable once computed.
type ClimateNormal struct {
	Period          Period   `json:"-"`
	MeanMM          float64  `json:"mean_mm"`
	StdDevMM        float64  `json:"std_dev_mm"`
	LowerTercileMM  float64  `json:"lower_tercile_mm"` // 33rd percentile
	UpperTercileMM  float64  `json:"upper_tercile_mm"` // 67th percentile
	WetDayFraction  float64  `json:"wet_day_fraction"` // share of samples above the measurable-rain threshold
	TemperatureMean *float64 `json:"temperature_mean_c,omitempty"`
	SampleCount     int      `json:"sample_count"`
}

// Method identifies a forecasting strategy.
type Method string

const (
	MethodPersistence Method = "persistence"
	MethodAnalog      Method = "analog"
	MethodClimatology Method = "climatology"
	MethodRegressor   Method = "trained_regressor"
)

// MethodEstimate is one strategy's point-plus-spread estimate for a single
// target time. Ephemeral; produced fresh per query.
type MethodEstimate struct {
	Method           Method    `json:"method"`
	Target           time.Time `json:"target"`
	PointMM          float64   `json:"point_mm"`
	ConfidenceLowMM  float64   `json:"confidence_low_mm"`
	ConfidenceHighMM float64   `json:"confidence_high_mm"`
}

// Clamp enforces the numeric invariants: point >= 0 and
// 0 <= confidence_low <= point <= confidence_high.
func (e MethodEstimate) Clamp() MethodEstimate {
	e.PointMM = math.Max(0, e.PointMM)
	e.ConfidenceLowMM = math.Max(0, math.Min(e.ConfidenceLowMM, e.PointMM))
	e.ConfidenceHighMM = math.Max(e.ConfidenceHighMM, e.PointMM)
	return e
}

// BlendedForecastPoint is one hourly forecast value combined from the
// available method estimates.
type BlendedForecastPoint struct {
	Time                     time.Time          `json:"time"`
	PrecipitationProbability float64            `json:"precipitation_probability"` // [0,1]
	PrecipitationAmountMM    float64            `json:"precipitation_amount_mm"`
	ConfidenceLowMM          float64            `json:"confidence_low_mm"`
	ConfidenceHighMM         float64            `json:"confidence_high_mm"`
	Weights                  map[Method]float64 `json:"weights"` // sums to 1 over contributing methods
}

// ConfidenceLevel is the discrete confidence label attached to summaries.
type ConfidenceLevel string

const (
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceLow      ConfidenceLevel = "low"
)

// Window selects the aggregation granularity.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// PeakRisk is the contained sub-period with the highest expected amount.
type PeakRisk struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AmountMM float64   `json:"amount_mm"`
}

// AggregatedSummary rolls blended points (or finer summaries) into one
// daily, weekly, or monthly figure. The window is half-open: [Start, End).
type AggregatedSummary struct {
	Window          Window          `json:"window"`
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	TotalMM         float64         `json:"total_mm"`
	AvgProbability  float64         `json:"avg_probability"`
	Peak            PeakRisk        `json:"peak"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	PointCount      int             `json:"point_count"`

	// Tercile is nil when classification was skipped (no normal available).
	Tercile *TercileLabel `json:"tercile,omitempty"`
}

// TercileLabel classifies a value against the climate normal's terciles.
type TercileLabel string

const (
	AboveNormal TercileLabel = "above_normal"
	NearNormal  TercileLabel = "near_normal"
	BelowNormal TercileLabel = "below_normal"
)
