package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenpulse/greenpulse/internal/config"
	"github.com/greenpulse/greenpulse/internal/energy"
	"github.com/greenpulse/greenpulse/internal/esg"
	"github.com/greenpulse/greenpulse/internal/meter"
	"github.com/greenpulse/greenpulse/internal/observability"
	"github.com/greenpulse/greenpulse/internal/security"
)

// Lifecycle states. A session starts idle, runs at most once, and stopped is
// terminal — nothing resurrects a stopped session.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateStopped = "stopped"
)

// Outbound payload event names.
const (
	EventMeasurement   = "measurement"
	EventScoreUpdate   = "scoreUpdate"
	EventError         = "error"
	EventSecurityStats = "securityStats"
)

// Sink receives outbound payloads for one observer. Implementations must not
// block; a slow observer is the transport layer's problem, not the loop's.
type Sink interface {
	Send(event string, data any)
}

// Measurement is the payload pushed after every successful sampling cycle.
type Measurement struct {
	Timestamp       time.Time `json:"timestamp"`
	Watts           float64   `json:"watts"`
	Elapsed         float64   `json:"elapsed_seconds"`
	Grams           float64   `json:"grams"`
	CumulativeGrams float64   `json:"cumulative_grams"`
	SampleCount     int64     `json:"sample_count"`
}

// ScoreUpdate is the combined composite-score payload pushed every ScoreEvery
// successful cycles. It is always derived from the session's accumulated
// state at push time, never a stale snapshot.
type ScoreUpdate struct {
	Score           *esg.Score  `json:"score"`
	Financial       *esg.Impact `json:"financial"`
	Energy          energy.Info `json:"energy"`
	CumulativeGrams float64     `json:"cumulative_grams"`
	SampleCount     int64       `json:"sample_count"`
}

// ErrorPayload carries a recoverable per-cycle failure to the observer.
type ErrorPayload struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Status is the read-only snapshot exposed on the REST surface.
type Status struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	CumulativeGrams float64   `json:"cumulative_grams"`
	SampleCount     int64     `json:"sample_count"`
	Country         string    `json:"country"`
	ConnectedAt     time.Time `json:"connected_at"`
}

// Session owns one observer connection's private sampling loop and
// accumulated state. Sessions share nothing with each other; the security
// log is the only cross-session collaborator.
type Session struct {
	id          string
	meter       meter.Meter
	sink        Sink
	seclog      *security.Log
	metrics     *observability.Metrics
	energy      energy.Info
	cfg         config.SessionConfig
	esgBase     config.ESGConfig
	connectedAt time.Time

	mu              sync.Mutex
	state           string
	cumulativeGrams float64
	sampleCount     int64

	stopOnce sync.Once
	doneOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates an idle session for one observer connection.
func New(m meter.Meter, sink Sink, seclog *security.Log, metrics *observability.Metrics,
	info energy.Info, cfg config.SessionConfig, esgBase config.ESGConfig) *Session {
	return &Session{
		id:          uuid.NewString(),
		meter:       m,
		sink:        sink,
		seclog:      seclog,
		metrics:     metrics,
		energy:      info,
		cfg:         cfg,
		esgBase:     esgBase,
		connectedAt: time.Now(),
		state:       StateIdle,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches the terminal stopped state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns a point-in-time snapshot for the REST surface.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:              s.id,
		State:           s.state,
		CumulativeGrams: s.cumulativeGrams,
		SampleCount:     s.sampleCount,
		Country:         s.energy.Country,
		ConnectedAt:     s.connectedAt,
	}
}

// Start fires the sampling loop. It reports whether the loop was started:
// false both for a second start while running (idempotent no-op) and for any
// start after stop — stopped is terminal.
func (s *Session) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.metrics.SessionsStarted.Inc()
	slog.Info("session: sampling started", "session", s.id, "country", s.energy.Country)
	go s.run(ctx)
	return true
}

// Stop requests a cooperative shutdown. The in-flight measurement cycle is
// allowed to finish; the loop observes the signal at the next cycle boundary
// and exits. Stop is safe to call multiple times and from any state.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		// Never started — jump straight to terminal.
		s.state = StateStopped
		s.mu.Unlock()
		s.doneOnce.Do(func() { close(s.done) })
		return
	}
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
}

// run is the cooperative sampling loop: measure, accumulate, push, pause,
// check the stop signal, repeat. The only suspension points are the settle
// delay inside a cycle and the inter-cycle pause.
func (s *Session) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		s.doneOnce.Do(func() { close(s.done) })
		slog.Info("session: sampling stopped", "session", s.id)
	}()

	successes := 0
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if s.cycle(ctx) {
			successes++
			if successes%s.cfg.ScoreEvery == 0 {
				s.pushScore()
			}
		}

		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.Pause):
		}
	}
}

// cycle runs one full measurement window and reports whether it succeeded.
// A failed cycle pushes an error payload and leaves the accumulated state
// untouched — the sample is skipped, never retried.
func (s *Session) cycle(ctx context.Context) bool {
	start := time.Now()

	if err := s.meter.Begin(ctx); err != nil {
		s.fail("could not start measurement", err)
		return false
	}

	// Settle so usage deltas accumulate. The open measurement window always
	// runs to completion; cancellation is observed only at cycle boundaries.
	time.Sleep(s.cfg.Settle)

	sample, err := s.meter.End(ctx)
	if err != nil {
		s.fail("measurement failed", err)
		return false
	}

	s.metrics.SampleDuration.Observe(time.Since(start).Seconds())
	s.accumulate(sample)

	s.mu.Lock()
	cumulative, count := s.cumulativeGrams, s.sampleCount
	s.mu.Unlock()

	s.sink.Send(EventMeasurement, Measurement{
		Timestamp:       sample.Timestamp,
		Watts:           sample.Watts,
		Elapsed:         sample.Elapsed,
		Grams:           sample.Grams,
		CumulativeGrams: cumulative,
		SampleCount:     count,
	})
	return true
}

// accumulate folds one successful sample into the session's cumulative
// emission total and sample counter. Emission quantities are non-negative,
// so the total is monotonic.
func (s *Session) accumulate(sample *meter.Sample) {
	s.mu.Lock()
	s.cumulativeGrams += sample.Grams
	s.sampleCount++
	s.mu.Unlock()

	s.metrics.SamplesTotal.Inc()
	s.metrics.EmissionGrams.Add(sample.Grams)
}

func (s *Session) fail(msg string, err error) {
	s.metrics.SampleErrors.Inc()
	slog.Warn("session: cycle failed", "session", s.id, "err", err)
	s.sink.Send(EventError, ErrorPayload{Message: msg, Detail: err.Error()})
}

// pushScore recomputes the composite score and financial impact from the
// session's latest accumulated state and pushes the combined update plus the
// current security stats.
func (s *Session) pushScore() {
	s.mu.Lock()
	grams, count := s.cumulativeGrams, s.sampleCount
	s.mu.Unlock()

	score, err := esg.Compute(esg.Metrics{
		Footprint:      grams,
		Renewable:      s.energy.RenewableShare,
		WasteReduction: s.esgBase.WasteReduction,
		Satisfaction:   s.esgBase.Satisfaction,
		Diversity:      s.esgBase.Diversity,
		Community:      s.esgBase.Community,
		Independence:   s.esgBase.Independence,
		Transparency:   s.esgBase.Transparency,
		Ethics:         s.esgBase.Ethics,
	})
	if err != nil {
		slog.Error("session: score computation rejected inputs", "session", s.id, "err", err)
		return
	}

	impact, err := esg.Financial(score.Overall, s.cfg.RevenueBaseline, grams/1e6)
	if err != nil {
		slog.Error("session: financial derivation rejected inputs", "session", s.id, "err", err)
		return
	}

	s.sink.Send(EventScoreUpdate, ScoreUpdate{
		Score:           score,
		Financial:       impact,
		Energy:          s.energy,
		CumulativeGrams: grams,
		SampleCount:     count,
	})
	s.sink.Send(EventSecurityStats, s.seclog.Stats())
}
