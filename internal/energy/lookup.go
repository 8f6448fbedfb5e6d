package energy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/greenpulse/greenpulse/internal/config"
)

// Info describes the energy mix of the region the host runs in.
// CarbonIntensity is in grams CO₂e per kWh; share fields are percentages.
type Info struct {
	Country         string  `json:"country"`
	CarbonIntensity float64 `json:"carbon_intensity"`
	CoalShare       float64 `json:"coal_share"`
	GasShare        float64 `json:"gas_share"`
	RenewableShare  float64 `json:"renewable_share"`
}

// Fallback returns the fixed world-average mix used when the lookup endpoint
// is unconfigured or unreachable. Sessions started on the fallback keep it
// for their whole lifetime — the lookup is never retried mid-session.
func Fallback() Info {
	return Info{
		Country:         "world",
		CarbonIntensity: 475,
		CoalShare:       36,
		GasShare:        23,
		RenewableShare:  29,
	}
}

// Client fetches regional energy-mix data from a JSON endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient builds a Client from the energy config. The returned client is
// reused across lookups; each request is bounded by the configured timeout.
func NewClient(cfg config.EnergyConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultEnergyTimeout
	}
	return &Client{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Lookup fetches the current energy mix. Callers should substitute Fallback()
// on error rather than failing session start.
func (c *Client) Lookup(ctx context.Context) (Info, error) {
	if c.endpoint == "" {
		return Info{}, fmt.Errorf("energy: no lookup endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Info{}, fmt.Errorf("energy: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("energy: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("energy: unexpected status %d", resp.StatusCode)
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Info{}, fmt.Errorf("energy: decode response: %w", err)
	}
	if info.CarbonIntensity <= 0 {
		return Info{}, fmt.Errorf("energy: response carries no carbon intensity")
	}
	return info, nil
}

// LookupOrFallback performs one lookup bounded by timeout and returns the
// fallback mix when it fails. It never returns an error — lookup failure is
// recovered, not surfaced, so session start is never blocked.
func (c *Client) LookupOrFallback(ctx context.Context, timeout time.Duration) Info {
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := c.Lookup(lookupCtx)
	if err != nil {
		return Fallback()
	}
	return info
}
