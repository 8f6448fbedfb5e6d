// Package security maintains the shared security event log and the rolling
// health metrics derived from it.
//
// Log is a fixed-capacity ring: appends never block, the oldest entry is
// evicted once capacity is exceeded. Multiple sessions and request-handling
// paths log into one Log instance, constructed once at process start and
// passed to collaborators — there is no package-level global.
//
// Derived state is always recomputed from the most recent window of events:
//   - ThreatLevel — high+critical count mapped through a strict threshold
//     ladder (0 → low, 1–2 → medium, 3–5 → high, >5 → critical)
//   - HealthScore — 100 minus per-severity penalties, clamped to [0, 100]
//
// Classify tags injection-like request fragments. The tag is advisory; it
// feeds the health score but never blocks a request.
package security
