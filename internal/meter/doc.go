// Package meter wraps the host resource measurement capability behind the
// Begin/End window contract consumed by sampling sessions.
//
// Two backends, selected by meter.mode:
//   - cpu  — /proc/stat utilisation delta scaled by the configured TDP
//   - prom — cumulative joules counter scraped from a Prometheus exposition
//     endpoint (RAPL / node-exporter style)
//
// Both convert the measured energy to CO₂e grams using the carbon intensity
// the meter was constructed with. Begin/End errors are recoverable per-cycle;
// a failed cycle yields no Sample and the caller carries on.
//
// A Meter instance belongs to exactly one session and is not safe for
// concurrent use.
package meter
