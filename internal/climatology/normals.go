package climatology

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Params controls how climate normals are derived. Thread an explicit value
// through rather than mutating package state so computations stay reentrant.
type Params struct {
	// ReferenceYears is the size of the rolling historical window. Wider
	// windows smooth the normals but respond slower to recent climate shifts.
	ReferenceYears int

	// MinSamplesPerPeriod is the sample count below which a bucket refuses
	// to emit a normal.
	MinSamplesPerPeriod int

	// DayWindow widens day-of-year buckets to ±DayWindow days.
	DayWindow int

	// WetDayThresholdMM is the measurable-rain cutoff for wet-day counting.
	WetDayThresholdMM float64
}

// DefaultParams mirrors the WMO 30-year normal convention.
func DefaultParams() Params {
	return Params{
		ReferenceYears:      30,
		MinSamplesPerPeriod: 20,
		DayWindow:           15,
		WetDayThresholdMM:   0.1,
	}
}

// Computer derives per-period climate normals from an observation series.
// All methods are pure functions of their inputs; recomputation on a
// refreshed series is the caller's responsibility.
type Computer struct {
	params Params
}

func New(params Params) *Computer {
	return &Computer{params: params}
}

// dayValue is one civil day's accumulated precipitation and mean temperature.
type dayValue struct {
	date     time.Time // midnight UTC
	precipMM float64
	tempMean *float64
}

// Normals computes every bucket of the given kind that meets the minimum
// sample count. Returns ErrInsufficientData when no bucket qualifies.
func (c *Computer) Normals(series domain.ObservationSeries, kind domain.PeriodKind) (map[domain.Period]domain.ClimateNormal, error) {
	days := c.dailyValues(series)

	var periods []domain.Period
	switch kind {
	case domain.MonthOfYear:
		for m := 1; m <= 12; m++ {
			periods = append(periods, domain.Period{Kind: domain.MonthOfYear, Index: m})
		}
	case domain.DayOfYear:
		for d := 1; d <= 366; d++ {
			periods = append(periods, domain.Period{Kind: domain.DayOfYear, Index: d})
		}
	}

	normals := make(map[domain.Period]domain.ClimateNormal)
	for _, p := range periods {
		n, err := c.normalFromDays(days, p)
		if err != nil {
			continue
		}
		normals[p] = n
	}
	if len(normals) == 0 {
		return nil, &domain.InsufficientDataError{
			Period:  domain.Period{Kind: kind},
			Samples: len(days),
			Minimum: c.params.MinSamplesPerPeriod,
		}
	}
	return normals, nil
}

// NormalFor computes the normal for a single calendar bucket, failing with
// an InsufficientDataError naming the bucket when it falls short.
func (c *Computer) NormalFor(series domain.ObservationSeries, period domain.Period) (domain.ClimateNormal, error) {
	return c.normalFromDays(c.dailyValues(series), period)
}

// NormalForTime resolves the finest bucket available for t: the day-of-year
// bucket when it has enough samples, otherwise the month-of-year bucket.
func (c *Computer) NormalForTime(series domain.ObservationSeries, t time.Time) (domain.ClimateNormal, error) {
	days := c.dailyValues(series)
	if n, err := c.normalFromDays(days, domain.DayOfYearPeriod(t)); err == nil {
		return n, nil
	}
	return c.normalFromDays(days, domain.MonthPeriod(t))
}

func (c *Computer) normalFromDays(days []dayValue, period domain.Period) (domain.ClimateNormal, error) {
	var values []float64
	var temps []float64

	switch period.Kind {
	case domain.MonthOfYear:
		// One value per contributing year: that year's monthly total.
		// Tercile boundaries are then directly comparable to monthly
		// aggregate totals.
		totals := make(map[int]float64)
		tempSums := make(map[int]float64)
		tempCounts := make(map[int]int)
		for _, d := range days {
			if int(d.date.Month()) != period.Index {
				continue
			}
			y := d.date.Year()
			totals[y] += d.precipMM
			if d.tempMean != nil {
				tempSums[y] += *d.tempMean
				tempCounts[y]++
			}
		}
		for y, total := range totals {
			values = append(values, total)
			if tempCounts[y] > 0 {
				temps = append(temps, tempSums[y]/float64(tempCounts[y]))
			}
		}

	case domain.DayOfYear:
		// Daily totals within ±DayWindow days of year, wrapping across the
		// year boundary.
		for _, d := range days {
			if yearDayDistance(d.date.YearDay(), period.Index) > c.params.DayWindow {
				continue
			}
			values = append(values, d.precipMM)
			if d.tempMean != nil {
				temps = append(temps, *d.tempMean)
			}
		}
	}

	if len(values) < c.params.MinSamplesPerPeriod {
		return domain.ClimateNormal{}, &domain.InsufficientDataError{
			Period:  period,
			Samples: len(values),
			Minimum: c.params.MinSamplesPerPeriod,
		}
	}

	sort.Float64s(values)
	mean := meanOf(values)
	normal := domain.ClimateNormal{
		Period:         period,
		MeanMM:         mean,
		StdDevMM:       stdDevOf(values, mean),
		LowerTercileMM: percentile(values, 1.0/3.0),
		UpperTercileMM: percentile(values, 2.0/3.0),
		WetDayFraction: fractionAbove(values, c.params.WetDayThresholdMM),
		SampleCount:    len(values),
	}
	if len(temps) > 0 {
		tm := meanOf(temps)
		normal.TemperatureMean = &tm
	}
	return normal, nil
}

// dailyValues collapses the series to per-day totals within the reference
// window, ordered by date. Sub-daily samples accumulate into their civil day.
func (c *Computer) dailyValues(series domain.ObservationSeries) []dayValue {
	if len(series) == 0 {
		return nil
	}
	_, latest := series.Span()
	cutoff := latest.AddDate(-c.params.ReferenceYears, 0, 0)
	series = series.Since(cutoff)

	type acc struct {
		precipMM float64
		tempSum  float64
		tempN    int
	}
	byDay := make(map[time.Time]*acc)
	for _, s := range series {
		day := s.Time.UTC().Truncate(24 * time.Hour)
		a := byDay[day]
		if a == nil {
			a = &acc{}
			byDay[day] = a
		}
		a.precipMM += s.PrecipitationMM
		if s.TemperatureC != nil {
			a.tempSum += *s.TemperatureC
			a.tempN++
		}
	}

	days := make([]dayValue, 0, len(byDay))
	for day, a := range byDay {
		d := dayValue{date: day, precipMM: a.precipMM}
		if a.tempN > 0 {
			tm := a.tempSum / float64(a.tempN)
			d.tempMean = &tm
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

// yearDayDistance returns the circular distance between two days of year,
// so late December and early January count as neighbors.
func yearDayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := 365 - d; wrapped < d {
		return wrapped
	}
	return d
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDevOf(values []float64, mean float64) float64 {
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// percentile interpolates linearly between closest ranks of a sorted slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func fractionAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var n int
	for _, v := range values {
		if v > threshold {
			n++
		}
	}
	return float64(n) / float64(len(values))
}
