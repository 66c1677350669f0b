// Package aggregate rolls hourly blended forecast points into daily, weekly,
// and monthly summaries. Totals stay additive: daily summaries sum hourly
// amounts, and weekly/monthly summaries sum daily totals rather than
// re-deriving from scratch.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Params pins the confidence-label policy: per-point relative interval
// widths are classified, and a summary takes the most common label among its
// contained points.
type Params struct {
	// HighMaxRelWidth is the relative width at or below which a point is
	// high confidence.
	HighMaxRelWidth float64

	// ModerateMaxRelWidth is the bound for moderate; anything wider is low.
	ModerateMaxRelWidth float64

	// Epsilon floors the denominator so near-zero points don't blow up the
	// relative width.
	Epsilon float64
}

func DefaultParams() Params {
	return Params{
		HighMaxRelWidth:     0.75,
		ModerateMaxRelWidth: 1.5,
		Epsilon:             0.1,
	}
}

// Aggregator groups points into calendar windows and summarizes them.
type Aggregator struct {
	params Params
}

func New(params Params) *Aggregator {
	return &Aggregator{params: params}
}

// Aggregate summarizes the given points at the requested granularity,
// returning one summary per calendar window touched, in time order.
// Zero points fails with ErrEmptyWindow rather than a zero-filled summary.
func (a *Aggregator) Aggregate(points []domain.BlendedForecastPoint, win domain.Window) ([]domain.AggregatedSummary, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("aggregate %s: %w", win, domain.ErrEmptyWindow)
	}

	dailies := a.daily(points)
	switch win {
	case domain.WindowDay:
		return dailies, nil
	case domain.WindowWeek:
		return a.rollup(dailies, domain.WindowWeek), nil
	case domain.WindowMonth:
		return a.rollup(dailies, domain.WindowMonth), nil
	default:
		return nil, fmt.Errorf("aggregate: unknown window %q", win)
	}
}

// daily buckets hourly points into UTC civil days.
func (a *Aggregator) daily(points []domain.BlendedForecastPoint) []domain.AggregatedSummary {
	byDay := make(map[time.Time][]domain.BlendedForecastPoint)
	for _, p := range points {
		day := p.Time.UTC().Truncate(24 * time.Hour)
		byDay[day] = append(byDay[day], p)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]domain.AggregatedSummary, 0, len(days))
	for _, day := range days {
		contained := byDay[day]
		sort.Slice(contained, func(i, j int) bool { return contained[i].Time.Before(contained[j].Time) })

		var total, probSum float64
		peak := domain.PeakRisk{Start: contained[0].Time, End: contained[0].Time.Add(time.Hour), AmountMM: contained[0].PrecipitationAmountMM}
		labels := make([]domain.ConfidenceLevel, 0, len(contained))
		for _, p := range contained {
			total += p.PrecipitationAmountMM
			probSum += p.PrecipitationProbability
			if p.PrecipitationAmountMM > peak.AmountMM {
				peak = domain.PeakRisk{Start: p.Time, End: p.Time.Add(time.Hour), AmountMM: p.PrecipitationAmountMM}
			}
			labels = append(labels, a.pointConfidence(p))
		}

		out = append(out, domain.AggregatedSummary{
			Window:          domain.WindowDay,
			Start:           day,
			End:             day.Add(24 * time.Hour),
			TotalMM:         total,
			AvgProbability:  probSum / float64(len(contained)),
			Peak:            peak,
			ConfidenceLevel: modeConfidence(labels),
			PointCount:      len(contained),
		})
	}
	return out
}

// rollup groups daily summaries into weeks (Monday-based) or calendar months.
func (a *Aggregator) rollup(dailies []domain.AggregatedSummary, win domain.Window) []domain.AggregatedSummary {
	byWindow := make(map[time.Time][]domain.AggregatedSummary)
	for _, d := range dailies {
		var start time.Time
		switch win {
		case domain.WindowWeek:
			start = weekStart(d.Start)
		case domain.WindowMonth:
			start = time.Date(d.Start.Year(), d.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		byWindow[start] = append(byWindow[start], d)
	}

	starts := make([]time.Time, 0, len(byWindow))
	for s := range byWindow {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]domain.AggregatedSummary, 0, len(starts))
	for _, start := range starts {
		contained := byWindow[start]
		sort.Slice(contained, func(i, j int) bool { return contained[i].Start.Before(contained[j].Start) })

		var end time.Time
		switch win {
		case domain.WindowWeek:
			end = start.AddDate(0, 0, 7)
		case domain.WindowMonth:
			end = start.AddDate(0, 1, 0)
		}

		// Peak for a coarse window is the contained day with the highest
		// total, ties broken by earliest day.
		var total, probSum float64
		peak := domain.PeakRisk{Start: contained[0].Start, End: contained[0].End, AmountMM: contained[0].TotalMM}
		labels := make([]domain.ConfidenceLevel, 0, len(contained))
		var pointCount int
		for _, d := range contained {
			total += d.TotalMM
			probSum += d.AvgProbability
			pointCount += d.PointCount
			if d.TotalMM > peak.AmountMM {
				peak = domain.PeakRisk{Start: d.Start, End: d.End, AmountMM: d.TotalMM}
			}
			labels = append(labels, d.ConfidenceLevel)
		}

		out = append(out, domain.AggregatedSummary{
			Window:          win,
			Start:           start,
			End:             end,
			TotalMM:         total,
			AvgProbability:  probSum / float64(len(contained)),
			Peak:            peak,
			ConfidenceLevel: modeConfidence(labels),
			PointCount:      pointCount,
		})
	}
	return out
}

// weekStart truncates to the Monday beginning t's week.
func weekStart(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// pointConfidence classifies one point by the width of its interval relative
// to its amount.
func (a *Aggregator) pointConfidence(p domain.BlendedForecastPoint) domain.ConfidenceLevel {
	denom := p.PrecipitationAmountMM
	if denom < a.params.Epsilon {
		denom = a.params.Epsilon
	}
	rel := (p.ConfidenceHighMM - p.ConfidenceLowMM) / denom
	switch {
	case rel <= a.params.HighMaxRelWidth:
		return domain.ConfidenceHigh
	case rel <= a.params.ModerateMaxRelWidth:
		return domain.ConfidenceModerate
	default:
		return domain.ConfidenceLow
	}
}

// modeConfidence picks the most common label, breaking ties toward the more
// conservative one: low beats moderate beats high.
func modeConfidence(labels []domain.ConfidenceLevel) domain.ConfidenceLevel {
	counts := make(map[domain.ConfidenceLevel]int, 3)
	for _, l := range labels {
		counts[l]++
	}
	best := domain.ConfidenceLow
	bestCount := counts[domain.ConfidenceLow]
	for _, l := range []domain.ConfidenceLevel{domain.ConfidenceModerate, domain.ConfidenceHigh} {
		if counts[l] > bestCount {
			best = l
			bestCount = counts[l]
		}
	}
	return best
}
