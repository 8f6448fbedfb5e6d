package esg

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Fixed constants for the financial impact derivation.
var (
	maxPremium       = decimal.NewFromFloat(0.15) // full-score revenue premium
	carbonPricePerT  = decimal.NewFromInt(50)     // USD per ton of CO₂e
	savingsShare     = decimal.NewFromFloat(0.30) // abatable share of carbon cost
	baseReturn       = decimal.NewFromFloat(0.08)
	returnUplift     = decimal.NewFromFloat(0.03)
	baseCostOfCap    = decimal.NewFromFloat(0.10)
	costOfCapRelief  = decimal.NewFromFloat(0.02)
	baseMultiple     = decimal.NewFromInt(10)
	multipleUplift   = decimal.NewFromInt(2)
	hundred          = decimal.NewFromInt(100)
	one              = decimal.NewFromInt(1)
)

// Impact is the derived financial vector for one composite score. All fields
// are pure functions of the inputs to Financial — no internal state.
type Impact struct {
	// Premium is the revenue uplift fraction (e.g. 0.1095 for 10.95%).
	Premium decimal.Decimal `json:"premium"`

	// AdjustedRevenue is revenue × (1 + Premium).
	AdjustedRevenue decimal.Decimal `json:"adjusted_revenue"`

	// CarbonCost prices the emissions at the fixed per-ton rate.
	CarbonCost decimal.Decimal `json:"carbon_cost"`

	// PotentialSavings is the abatable share of CarbonCost.
	PotentialSavings decimal.Decimal `json:"potential_savings"`

	// AdjustedReturn and CostOfCapital are rate fractions.
	AdjustedReturn decimal.Decimal `json:"adjusted_return"`
	CostOfCapital  decimal.Decimal `json:"cost_of_capital"`

	// ValuationMultiple and EnterpriseValue derive the headline valuation.
	ValuationMultiple decimal.Decimal `json:"valuation_multiple"`
	EnterpriseValue   decimal.Decimal `json:"enterprise_value"`
}

// Financial derives the impact vector from a composite overall score (0–100),
// an annual revenue baseline, and cumulative emissions in tons.
//
//	premium            = overall/100 × 0.15
//	adjusted_revenue   = revenue × (1 + premium)
//	carbon_cost        = tons × 50
//	potential_savings  = carbon_cost × 0.30
//	adjusted_return    = 0.08 + overall/100 × 0.03
//	cost_of_capital    = 0.10 − overall/100 × 0.02
//	valuation_multiple = 10 + overall/100 × 2
//	enterprise_value   = adjusted_revenue × valuation_multiple
//
// Inputs outside the valid numeric domain are rejected.
func Financial(overall, revenue, emissionsTons float64) (*Impact, error) {
	switch {
	case !isFinite(overall) || overall < 0 || overall > 100:
		return nil, fmt.Errorf("esg: overall score %.2f outside [0, 100]", overall)
	case !isFinite(revenue) || revenue < 0:
		return nil, fmt.Errorf("esg: revenue %.2f invalid", revenue)
	case !isFinite(emissionsTons) || emissionsTons < 0:
		return nil, fmt.Errorf("esg: emissions %.2f tons invalid", emissionsTons)
	}

	frac := decimal.NewFromFloat(overall).Div(hundred)
	rev := decimal.NewFromFloat(revenue)
	tons := decimal.NewFromFloat(emissionsTons)

	premium := frac.Mul(maxPremium)
	adjRevenue := rev.Mul(one.Add(premium))
	carbonCost := tons.Mul(carbonPricePerT)
	multiple := baseMultiple.Add(frac.Mul(multipleUplift))

	return &Impact{
		Premium:           premium,
		AdjustedRevenue:   adjRevenue,
		CarbonCost:        carbonCost,
		PotentialSavings:  carbonCost.Mul(savingsShare),
		AdjustedReturn:    baseReturn.Add(frac.Mul(returnUplift)),
		CostOfCapital:     baseCostOfCap.Sub(frac.Mul(costOfCapRelief)),
		ValuationMultiple: multiple,
		EnterpriseValue:   adjRevenue.Mul(multiple),
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
