// Package observability registers the process-wide Prometheus instruments
// exposed on /metrics: session lifecycle counters, sample throughput and
// error counts, accumulated emission grams, and security event counts by
// severity.
package observability
