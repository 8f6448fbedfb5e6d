// Package session implements the per-connection sampling scheduler and its
// accumulator.
//
// One Session exists per observer connection. Its cooperative loop alternates
// measure and idle phases: open a measurement window, settle, close it, fold
// the sample into the cumulative emission total, push a measurement payload.
// Every ScoreEvery successful cycles the composite score and financial impact
// are recomputed from the accumulated state and pushed as a combined update.
//
// Lifecycle: idle → running → stopped. Start is idempotent while running and
// refused after stop; Stop (or a transport disconnect) sets a flag that the
// loop observes at the next cycle boundary — the in-flight measurement always
// completes. Sampling failures are pushed as error payloads and skipped;
// only stop or disconnect ends the loop.
package session
