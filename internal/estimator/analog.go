package estimator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Analog forecasts by locating the K historical days most similar to the
// target: close in the calendar and preceded by a similar short-term
// precipitation trend. The matched days' empirical distribution becomes the
// estimate.
type Analog struct {
	// K is the number of analogs averaged into the estimate.
	K int

	// MinYears is the historical depth below which the method is unavailable.
	MinYears int

	// CalendarWindow restricts candidates to ±CalendarWindow days of year.
	CalendarWindow int

	// TrendDays is the length of the recent-trend signature compared
	// against each candidate's preceding days.
	TrendDays int
}

// NewAnalog applies the conventional defaults: 5 analogs, 3-year minimum
// depth, ±45 day calendar window, 3-day trend signature.
func NewAnalog(k int) *Analog {
	if k <= 0 {
		k = 5
	}
	return &Analog{
		K:              k,
		MinYears:       3,
		CalendarWindow: 45,
		TrendDays:      3,
	}
}

func (a *Analog) Method() domain.Method { return domain.MethodAnalog }

// candidate pairs a historical day with its similarity score.
type candidate struct {
	day     dailyTotal
	score   float64
	calDist int
}

func (a *Analog) Estimate(ctx context.Context, target time.Time, _ domain.Location, in Inputs) (domain.MethodEstimate, error) {
	if err := ctx.Err(); err != nil {
		return domain.MethodEstimate{}, fmt.Errorf("analog: %w", domain.ErrUnavailable)
	}
	if in.Series.Years() < a.MinYears {
		return domain.MethodEstimate{}, fmt.Errorf("analog needs %d+ years of history: %w", a.MinYears, domain.ErrUnavailable)
	}

	days := dailyTotals(in.Series)
	if len(days) <= a.TrendDays {
		return domain.MethodEstimate{}, fmt.Errorf("analog has too few days: %w", domain.ErrUnavailable)
	}

	recentTrend := a.trendBefore(days, in.Issued)
	targetDOY := target.YearDay()

	var candidates []candidate
	for i := a.TrendDays; i < len(days); i++ {
		d := days[i]
		// Only genuinely historical days: a day inside the recent lookback
		// would match itself.
		if !d.date.Before(in.Issued.AddDate(0, 0, -a.TrendDays)) {
			continue
		}
		dist := yearDayDistance(d.date.YearDay(), targetDOY)
		if dist > a.CalendarWindow {
			continue
		}

		histTrend := a.trendBefore(days[:i], d.date.Add(time.Hour))
		trendSim := 1.0 / (1.0 + math.Abs(histTrend-recentTrend))
		calSim := 1.0 - float64(dist)/float64(a.CalendarWindow)
		candidates = append(candidates, candidate{
			day:     d,
			score:   0.5*trendSim + 0.5*calSim,
			calDist: dist,
		})
	}
	if len(candidates) == 0 {
		return domain.MethodEstimate{}, fmt.Errorf("analog found no matching periods: %w", domain.ErrUnavailable)
	}

	// Best score first; equally similar analogs break ties toward the
	// nearest calendar date, then the most recent year.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].calDist != candidates[j].calDist {
			return candidates[i].calDist < candidates[j].calDist
		}
		return candidates[i].day.date.After(candidates[j].day.date)
	})
	if len(candidates) > a.K {
		candidates = candidates[:a.K]
	}

	values := make([]float64, len(candidates))
	for i, c := range candidates {
		values[i] = c.day.mm
	}
	mean, std := meanStd(values)

	point := mean / 24
	spread := std / 24
	return domain.MethodEstimate{
		Method:           domain.MethodAnalog,
		Target:           target,
		PointMM:          point,
		ConfidenceLowMM:  point - spread,
		ConfidenceHighMM: point + spread,
	}.Clamp(), nil
}

// trendBefore is the mean daily precipitation over the TrendDays days
// immediately preceding the cutoff.
func (a *Analog) trendBefore(days []dailyTotal, cutoff time.Time) float64 {
	var sum float64
	var n int
	for i := len(days) - 1; i >= 0 && n < a.TrendDays; i-- {
		if !days[i].date.Before(cutoff) {
			continue
		}
		sum += days[i].mm
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
