package esg

import (
	"fmt"
	"math"
)

// Pillar weight caps. They must sum to 100.
const (
	maxEnvironmental = 40.0
	maxSocial        = 30.0
	maxGovernance    = 30.0
)

// Sub-metric weights inside each pillar.
const (
	weightClimate   = 15.0 // awarded as max(0, 15 - footprint/100)
	weightRenewable = 15.0
	weightWaste     = 10.0
	weightSocial    = 10.0 // each of the three social sub-metrics
	weightGov       = 10.0 // each of the three governance sub-metrics
)

// Metrics is the input vector for a composite score computation.
// All fields except Footprint are percentages in [0, 100]. Footprint is the
// cumulative emission figure in grams; larger values erode the climate
// sub-score at a rate of one point per 100 g.
type Metrics struct {
	Footprint      float64 `json:"footprint"`
	Renewable      float64 `json:"renewable"`
	WasteReduction float64 `json:"waste_reduction"`
	Satisfaction   float64 `json:"satisfaction"`
	Diversity      float64 `json:"diversity"`
	Community      float64 `json:"community"`
	Independence   float64 `json:"independence"`
	Transparency   float64 `json:"transparency"`
	Ethics         float64 `json:"ethics"`
}

// Score is the derived composite rating. It is recomputed fresh on every call
// and never mutated in place.
type Score struct {
	// Overall is the 0–100 composite, rounded to the nearest integer.
	Overall float64 `json:"overall"`

	// Pillar totals on their own weight scales (environmental ≤40,
	// social ≤30, governance ≤30).
	Environmental float64 `json:"environmental"`
	Social        float64 `json:"social"`
	Governance    float64 `json:"governance"`

	// Normalised pillar values rescaled to 0–100 for display. Defined as 0
	// when the raw pillar total is 0.
	EnvironmentalPct float64 `json:"environmental_pct"`
	SocialPct        float64 `json:"social_pct"`
	GovernancePct    float64 `json:"governance_pct"`

	// Breakdown holds each contributing sub-metric's awarded points.
	Breakdown map[string]float64 `json:"breakdown"`
}

// Compute calculates the composite score from the given metrics vector.
//
// Formula:
//
//	environmental = max(0, 15 - footprint/100) + renewable/100*15 + waste/100*10
//	social        = (satisfaction + diversity + community) * 10/100
//	governance    = (independence + transparency + ethics) * 10/100
//	overall       = round(environmental + social + governance)
//
// Non-finite or negative inputs are rejected — they are contract errors at
// the caller's boundary, not conditions to paper over.
func Compute(m Metrics) (*Score, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	climate := weightClimate - m.Footprint/100
	if climate < 0 {
		climate = 0
	}
	renewable := m.Renewable / 100 * weightRenewable
	waste := m.WasteReduction / 100 * weightWaste
	environmental := climate + renewable + waste

	satisfaction := m.Satisfaction * weightSocial / 100
	diversity := m.Diversity * weightSocial / 100
	community := m.Community * weightSocial / 100
	social := satisfaction + diversity + community

	independence := m.Independence * weightGov / 100
	transparency := m.Transparency * weightGov / 100
	ethics := m.Ethics * weightGov / 100
	governance := independence + transparency + ethics

	return &Score{
		Overall:          math.Round(environmental + social + governance),
		Environmental:    environmental,
		Social:           social,
		Governance:       governance,
		EnvironmentalPct: normalise(environmental, maxEnvironmental),
		SocialPct:        normalise(social, maxSocial),
		GovernancePct:    normalise(governance, maxGovernance),
		Breakdown: map[string]float64{
			"climate":      climate,
			"renewable":    renewable,
			"waste":        waste,
			"satisfaction": satisfaction,
			"diversity":    diversity,
			"community":    community,
			"independence": independence,
			"transparency": transparency,
			"ethics":       ethics,
		},
	}, nil
}

func (m Metrics) validate() error {
	fields := map[string]float64{
		"footprint":       m.Footprint,
		"renewable":       m.Renewable,
		"waste_reduction": m.WasteReduction,
		"satisfaction":    m.Satisfaction,
		"diversity":       m.Diversity,
		"community":       m.Community,
		"independence":    m.Independence,
		"transparency":    m.Transparency,
		"ethics":          m.Ethics,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("esg: metric %s is not finite", name)
		}
		if v < 0 {
			return fmt.Errorf("esg: metric %s is negative (%.2f)", name, v)
		}
	}
	return nil
}

// normalise rescales a raw pillar total to 0–100 of its weight cap.
// A zero total maps to 0 rather than dividing.
func normalise(total, cap float64) float64 {
	if total == 0 {
		return 0
	}
	return total / cap * 100
}
