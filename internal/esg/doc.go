// Package esg derives the composite sustainability rating and its financial
// impact vector.
//
// score.go provides the pure Compute(Metrics) function mapping a metrics
// vector to a 0–100 composite: environmental pillar capped at 40 points,
// social and governance pillars at 30 each. Identical inputs always produce
// identical output.
//
// financial.go provides Financial(overall, revenue, tons), the derived money
// bundle (revenue premium, carbon cost, valuation multiple, enterprise value).
// Money math uses shopspring/decimal so the documented constants reproduce
// exactly.
//
// Both entry points reject non-finite or negative inputs with an error.
package esg
