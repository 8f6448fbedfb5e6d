package meter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const procStatPath = "/proc/stat"

// cpuStat holds the aggregate jiffy counters from the "cpu" line of
// /proc/stat. Counters are monotonic since boot.
type cpuStat struct {
	busy  uint64
	total uint64
}

// cpuMeter estimates power draw from host CPU utilisation: the busy share of
// the measurement window scaled by the configured package TDP.
type cpuMeter struct {
	tdpWatts  float64
	intensity float64
	statPath  string

	started bool
	t0      time.Time
	prev    cpuStat
}

func (m *cpuMeter) Begin(ctx context.Context) error {
	st, err := readCPUStat(m.statPath)
	if err != nil {
		return err
	}
	m.prev = st
	m.t0 = time.Now()
	m.started = true
	return nil
}

func (m *cpuMeter) End(ctx context.Context) (*Sample, error) {
	if !m.started {
		return nil, ErrNotStarted
	}
	m.started = false

	st, err := readCPUStat(m.statPath)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	elapsed := now.Sub(m.t0).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001 // guard against clock adjustment
	}

	util := utilisation(m.prev, st)
	watts := util * m.tdpWatts

	return &Sample{
		Timestamp: now,
		Watts:     watts,
		Elapsed:   elapsed,
		Grams:     gramsFor(watts, elapsed, m.intensity),
	}, nil
}

// utilisation returns the busy fraction [0, 1] between two counter readings.
// Returns 0 when the counters did not advance or went backwards.
func utilisation(prev, cur cpuStat) float64 {
	if cur.total <= prev.total || cur.busy < prev.busy {
		return 0
	}
	return float64(cur.busy-prev.busy) / float64(cur.total-prev.total)
}

// readCPUStat reads the aggregate "cpu" line from path.
func readCPUStat(path string) (cpuStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return cpuStat{}, fmt.Errorf("meter: open %s: %w", path, err)
	}
	defer f.Close()
	return parseCPUStat(f)
}

// parseCPUStat extracts the aggregate counters from a /proc/stat stream.
// Field order: user nice system idle iowait irq softirq steal [guest...].
// Idle and iowait count as idle time; guest fields are already included in
// user/nice and are ignored.
func parseCPUStat(r io.Reader) (cpuStat, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		if len(fields) < 4 {
			return cpuStat{}, fmt.Errorf("meter: malformed cpu line %q", line)
		}

		var st cpuStat
		for i, f := range fields {
			if i >= 8 {
				break
			}
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return cpuStat{}, fmt.Errorf("meter: parse cpu field %d: %w", i, err)
			}
			st.total += v
			if i != 3 && i != 4 { // idle, iowait
				st.busy += v
			}
		}
		return st, nil
	}
	if err := sc.Err(); err != nil {
		return cpuStat{}, fmt.Errorf("meter: read cpu stat: %w", err)
	}
	return cpuStat{}, fmt.Errorf("meter: no cpu line found")
}
