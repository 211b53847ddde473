package scoring

import "time"

// Industry verticals with dedicated weight tables. Unrecognized
// verticals fall back to the baseline set; overall scoring is
// informational, not an alerting path, so it fails soft.
const (
	VerticalRestaurant   = "restaurant"
	VerticalGhostKitchen = "ghost_kitchen"
	VerticalCatering     = "catering"
	VerticalGrocery      = "grocery"
	VerticalBaseline     = "baseline"
)

// WeightTable maps each pillar to its share of the overall score.
// Each table sums to 1.0.
type WeightTable map[PillarKind]float64

var industryWeights = map[string]WeightTable{
	VerticalRestaurant: {
		PillarTemperature:   0.40,
		PillarDocumentation: 0.25,
		PillarEquipment:     0.20,
		PillarTraining:      0.15,
	},
	VerticalGhostKitchen: {
		PillarTemperature:   0.45,
		PillarDocumentation: 0.20,
		PillarEquipment:     0.25,
		PillarTraining:      0.10,
	},
	VerticalCatering: {
		PillarTemperature:   0.35,
		PillarDocumentation: 0.30,
		PillarEquipment:     0.15,
		PillarTraining:      0.20,
	},
	VerticalGrocery: {
		PillarTemperature:   0.45,
		PillarDocumentation: 0.20,
		PillarEquipment:     0.20,
		PillarTraining:      0.15,
	},
	VerticalBaseline: {
		PillarTemperature:   0.40,
		PillarDocumentation: 0.20,
		PillarEquipment:     0.20,
		PillarTraining:      0.20,
	},
}

// WeightsForVertical returns the weight table for a vertical, falling
// back to the baseline table when the vertical is unrecognized.
func WeightsForVertical(vertical string) WeightTable {
	if table, ok := industryWeights[vertical]; ok {
		return table
	}
	return industryWeights[VerticalBaseline]
}

// Combine folds pillar scores into one weighted overall score. Pillars
// with zero observations are excluded and the remaining weights are
// re-normalized to 1.0 before multiplying, so a silent pillar is never
// scored as 0% or passed off as 100%. When every pillar is empty the
// window has no data and Combine returns ErrNoScorablePillars.
func Combine(locationID, vertical string, from, to time.Time, scores []PillarScore, now time.Time) (*OverallScore, error) {
	weights := WeightsForVertical(vertical)

	overall := &OverallScore{
		LocationID:   locationID,
		Vertical:     vertical,
		WindowStart:  from.UTC(),
		WindowEnd:    to.UTC(),
		Pillars:      scores,
		CalculatedAt: now.UTC(),
	}

	present := make(map[PillarKind]PillarScore, len(scores))
	for _, score := range scores {
		if !score.Pillar.Valid() {
			return nil, ErrUnknownPillar
		}
		if score.TotalCount > 0 {
			present[score.Pillar] = score
		}
	}

	var weightSum float64
	for pillar := range present {
		weightSum += weights[pillar]
	}
	if len(present) == 0 || weightSum == 0 {
		for _, pillar := range Pillars() {
			overall.MissingPillars = append(overall.MissingPillars, pillar)
		}
		return nil, ErrNoScorablePillars
	}

	var sum float64
	for pillar, score := range present {
		sum += score.PenalizedPercent * (weights[pillar] / weightSum)
	}
	overall.Percent = sum

	for _, pillar := range Pillars() {
		if _, ok := present[pillar]; !ok {
			overall.MissingPillars = append(overall.MissingPillars, pillar)
		}
	}
	return overall, nil
}
