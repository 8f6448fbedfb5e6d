package meter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// promMeter reads a cumulative energy counter (joules, RAPL/node-exporter
// style) from a Prometheus exposition endpoint at Begin and End and derives
// average watts from the delta.
type promMeter struct {
	endpoint  string
	metric    string
	intensity float64
	client    *http.Client

	started bool
	t0      time.Time
	joules0 float64
}

func (m *promMeter) Begin(ctx context.Context) error {
	j, err := m.readJoules(ctx)
	if err != nil {
		return err
	}
	m.joules0 = j
	m.t0 = time.Now()
	m.started = true
	return nil
}

func (m *promMeter) End(ctx context.Context) (*Sample, error) {
	if !m.started {
		return nil, ErrNotStarted
	}
	m.started = false

	j, err := m.readJoules(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	elapsed := now.Sub(m.t0).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001
	}

	delta := j - m.joules0
	if delta < 0 {
		delta = 0 // counter reset between readings
	}
	watts := delta / elapsed

	return &Sample{
		Timestamp: now,
		Watts:     watts,
		Elapsed:   elapsed,
		Grams:     gramsFor(watts, elapsed, m.intensity),
	}, nil
}

// readJoules scrapes the exposition endpoint and totals the configured energy
// counter across all of its labelled series (RAPL exporters expose one series
// per package/zone).
func (m *promMeter) readJoules(ctx context.Context) (float64, error) {
	mfs, err := m.scrapeFamilies(ctx)
	if err != nil {
		return 0, err
	}
	mf, ok := mfs[m.metric]
	if !ok {
		return 0, fmt.Errorf("meter: metric %q not present at %s", m.metric, m.endpoint)
	}
	return familyTotal(mf), nil
}

// scrapeFamilies GETs the endpoint and decodes the Prometheus text exposition.
// A partial decode that still yielded families is accepted.
func (m *promMeter) scrapeFamilies(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("meter: build scrape request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meter: scrape %s: %w", m.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meter: scrape %s: status %d", m.endpoint, resp.StatusCode)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("meter: decode exposition: %w", err)
	}
	return mfs, nil
}

// familyTotal sums every sample in the family, whatever its type. Energy
// counters are normally counters, but some exporters publish them untyped.
func familyTotal(mf *dto.MetricFamily) float64 {
	var total float64
	for _, s := range mf.GetMetric() {
		switch {
		case s.Counter != nil:
			total += s.Counter.GetValue()
		case s.Gauge != nil:
			total += s.Gauge.GetValue()
		case s.Untyped != nil:
			total += s.Untyped.GetValue()
		}
	}
	return total
}
