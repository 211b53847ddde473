package scoring

import "time"

// Weight applied to warning observations when computing the raw percent.
// A warning counts as partially compliant so a pillar drifting toward a
// violation shows score decay before any hard breach.
const DefaultWarningWeight = 0.5

// Rollup reduces a windowed tally into a PillarScore.
//
// raw = (inRange + warningWeight*warning) / total * 100.
//
// The graduated penalty scales with the fraction of the window that was
// degraded and with the worst observed condition:
//
//	penalized = raw * (1 - sevWeight(worst) * degradedFrac^2)
//
// so penalized <= raw always, more or worse breaches never raise the
// score, and a fully clean window leaves penalized == raw.
func Rollup(pillar PillarKind, locationID string, from, to time.Time, tally Tally, warningWeight float64) (PillarScore, error) {
	if !pillar.Valid() {
		return PillarScore{}, ErrUnknownPillar
	}
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return PillarScore{}, ErrEmptyWindow
	}
	if warningWeight <= 0 || warningWeight >= 1 {
		warningWeight = DefaultWarningWeight
	}

	score := PillarScore{
		Pillar:         pillar,
		LocationID:     locationID,
		WindowStart:    from.UTC(),
		WindowEnd:      to.UTC(),
		InRangeCount:   tally.InRange,
		WarningCount:   tally.Warning,
		ViolationCount: tally.Violation,
		TotalCount:     tally.Total(),
	}
	if score.TotalCount == 0 {
		return score, nil
	}

	total := float64(score.TotalCount)
	raw := (float64(tally.InRange) + warningWeight*float64(tally.Warning)) / total * 100

	degradedFrac := float64(tally.Warning+tally.Violation) / total
	penalized := raw * (1 - worstSeverityWeight(tally)*degradedFrac*degradedFrac)
	if penalized < 0 {
		penalized = 0
	}

	score.RawPercent = raw
	score.PenalizedPercent = penalized
	return score, nil
}

func worstSeverityWeight(tally Tally) float64 {
	switch {
	case tally.Violation > 0:
		return 1.0
	case tally.Warning > 0:
		return 0.35
	default:
		return 0
	}
}
