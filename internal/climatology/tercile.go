package climatology

import "github.com/couchcryptid/precip-forecast/internal/domain"

// ClassifyTotal labels a projected precipitation total against a period's
// tercile boundaries. A nil normal fails with ErrNoNormalAvailable; callers
// must treat the absence of a label as "unclassified", not near_normal.
func ClassifyTotal(totalMM float64, normal *domain.ClimateNormal) (domain.TercileLabel, error) {
	if normal == nil {
		return "", domain.ErrNoNormalAvailable
	}
	switch {
	case totalMM <= normal.LowerTercileMM:
		return domain.BelowNormal, nil
	case totalMM >= normal.UpperTercileMM:
		return domain.AboveNormal, nil
	default:
		return domain.NearNormal, nil
	}
}

// ClassifySummary labels an aggregated summary by its total expected
// precipitation. The normal must cover the summary's calendar period; the
// caller resolves that pairing.
func ClassifySummary(s domain.AggregatedSummary, normal *domain.ClimateNormal) (domain.TercileLabel, error) {
	return ClassifyTotal(s.TotalMM, normal)
}
