package meter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/greenpulse/greenpulse/internal/config"
)

const defaultScrapeTimeout = 10 * time.Second

// joulesPerKWh converts a watt-seconds figure to kilowatt-hours.
const joulesPerKWh = 3.6e6

// Sample is the raw output of one completed measurement window. It is
// immutable once returned; the consuming session owns it exclusively.
type Sample struct {
	// Timestamp is when the window closed.
	Timestamp time.Time

	// Watts is the average instantaneous power draw over the window.
	Watts float64

	// Elapsed is the window length in seconds.
	Elapsed float64

	// Grams is the CO₂e emission attributed to the window, derived from the
	// energy consumed and the regional carbon intensity.
	Grams float64
}

// Meter is the measurement capability wrapped by each session. Begin opens a
// measurement window; End closes it and returns the Sample. Both may fail;
// a failure is recoverable per-cycle and must not be treated as fatal.
type Meter interface {
	Begin(ctx context.Context) error
	End(ctx context.Context) (*Sample, error)
}

// ErrNotStarted is returned by End when no measurement window is open.
var ErrNotStarted = errors.New("meter: measurement not started")

// New returns the Meter selected by the config, bound to the given carbon
// intensity (grams CO₂e per kWh). The prom meter builds its HTTP client once
// and reuses it across cycles.
func New(cfg config.MeterConfig, carbonIntensity float64) (Meter, error) {
	if carbonIntensity <= 0 {
		return nil, fmt.Errorf("meter: carbon intensity must be positive, got %.2f", carbonIntensity)
	}
	switch cfg.Mode {
	case "cpu":
		return &cpuMeter{
			tdpWatts:  cfg.TDPWatts,
			intensity: carbonIntensity,
			statPath:  procStatPath,
		}, nil
	case "prom":
		return &promMeter{
			endpoint:  cfg.Endpoint,
			metric:    cfg.EnergyMetric,
			intensity: carbonIntensity,
			client:    &http.Client{Timeout: defaultScrapeTimeout},
		}, nil
	default:
		return nil, fmt.Errorf("meter: unsupported mode %q", cfg.Mode)
	}
}

// gramsFor converts average watts over elapsed seconds to emission grams at
// the given intensity: grams = kWh × intensity, kWh = W·s / 3.6e6.
func gramsFor(watts, elapsedSeconds, intensity float64) float64 {
	return watts * elapsedSeconds / joulesPerKWh * intensity
}
