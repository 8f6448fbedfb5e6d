package security

import (
	"sync"
	"time"
)

// Severity classifies a single event.
type Severity string

// Event severities, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level is the rolling qualitative threat classification derived from the
// recent event window.
type Level string

// Threat levels, lowest to highest.
const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Threat ladder thresholds: count of high+critical events in the window.
const (
	thresholdCritical = 5 // more than this → critical
	thresholdHigh     = 2 // more than this → high
	thresholdMedium   = 0 // more than this → medium
)

// Health score penalties per event in the window.
const (
	penaltyHigh       = 5
	penaltyCritical   = 10
	penaltySuspicious = 3
)

// Event is one entry in the security log. Events are append-only and never
// mutated after being logged.
type Event struct {
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	Severity   Severity  `json:"severity"`
	Details    string    `json:"details,omitempty"`
	Suspicious bool      `json:"suspicious,omitempty"`
}

// Stats is the aggregate counter snapshot returned by the pull surface.
type Stats struct {
	TotalEvents uint64           `json:"total_events"`
	Retained    int              `json:"retained"`
	BySeverity  map[Severity]int `json:"by_severity"`
	Suspicious  int              `json:"suspicious"`
	ThreatLevel Level            `json:"threat_level"`
	HealthScore int              `json:"health_score"`
}

// Log is a capacity-bounded, time-ordered security event log shared across
// all sessions and request paths. Appends never block; once the log is full
// the oldest entry is silently evicted.
//
// All exported methods are safe for concurrent use.
type Log struct {
	capacity int
	window   int
	onEvent  func(Event) // optional hook, e.g. for process metrics; may be nil

	mu     sync.Mutex
	events []Event
	seq    uint64
	now    func() time.Time // injectable for deterministic tests
}

// NewLog creates a Log retaining at most capacity events and deriving threat
// level and health score from the most recent window entries. onEvent, when
// non-nil, is called after every append (outside the lock).
func NewLog(capacity, window int, onEvent func(Event)) *Log {
	return &Log{
		capacity: capacity,
		window:   window,
		onEvent:  onEvent,
		events:   make([]Event, 0, capacity),
		now:      time.Now,
	}
}

// LogEvent appends an event with the next sequence id and returns it.
func (l *Log) LogEvent(typ string, sev Severity, details string) Event {
	return l.append(typ, sev, details, false)
}

// LogSuspicious appends an event carrying the advisory suspicious flag, used
// by the request classifier. The flag is a heuristic tag, never a blocking
// decision.
func (l *Log) LogSuspicious(typ string, sev Severity, details string) Event {
	return l.append(typ, sev, details, true)
}

func (l *Log) append(typ string, sev Severity, details string, suspicious bool) Event {
	l.mu.Lock()
	l.seq++
	ev := Event{
		Seq:        l.seq,
		Timestamp:  l.now(),
		Type:       typ,
		Severity:   sev,
		Details:    details,
		Suspicious: suspicious,
	}
	if len(l.events) >= l.capacity {
		l.events = l.events[1:]
	}
	l.events = append(l.events, ev)
	hook := l.onEvent
	l.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	return ev
}

// ThreatLevel derives the rolling threat classification from the count of
// high and critical events in the recent window. The ladder is evaluated
// top-down from the highest band, so the level is monotonic in that count.
func (l *Log) ThreatLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return threatFromCount(l.severeInWindow())
}

// HealthScore starts at 100 and subtracts fixed penalties per high, critical,
// and flagged-suspicious event in the recent window, clamped to [0, 100].
func (l *Log) HealthScore() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	score := 100
	for _, ev := range l.recentWindow() {
		switch ev.Severity {
		case SeverityHigh:
			score -= penaltyHigh
		case SeverityCritical:
			score -= penaltyCritical
		}
		if ev.Suspicious {
			score -= penaltySuspicious
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// Recent returns up to limit of the most recent events in original append
// order. A non-positive limit returns an empty slice.
func (l *Log) Recent(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		return []Event{}
	}
	start := len(l.events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Stats returns the aggregate counter snapshot for the status surface.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	by := map[Severity]int{
		SeverityLow:      0,
		SeverityMedium:   0,
		SeverityHigh:     0,
		SeverityCritical: 0,
	}
	suspicious := 0
	for _, ev := range l.events {
		by[ev.Severity]++
		if ev.Suspicious {
			suspicious++
		}
	}

	score := 100
	for _, ev := range l.recentWindow() {
		switch ev.Severity {
		case SeverityHigh:
			score -= penaltyHigh
		case SeverityCritical:
			score -= penaltyCritical
		}
		if ev.Suspicious {
			score -= penaltySuspicious
		}
	}
	if score < 0 {
		score = 0
	}

	return Stats{
		TotalEvents: l.seq,
		Retained:    len(l.events),
		BySeverity:  by,
		Suspicious:  suspicious,
		ThreatLevel: threatFromCount(l.severeInWindow()),
		HealthScore: score,
	}
}

// severeInWindow counts high and critical events in the recent window.
// Callers must hold l.mu.
func (l *Log) severeInWindow() int {
	n := 0
	for _, ev := range l.recentWindow() {
		if ev.Severity == SeverityHigh || ev.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// recentWindow returns the last window events. Callers must hold l.mu.
func (l *Log) recentWindow() []Event {
	start := len(l.events) - l.window
	if start < 0 {
		start = 0
	}
	return l.events[start:]
}

// threatFromCount maps a severe-event count to a threat level via a strict
// threshold ladder evaluated from the highest band down.
func threatFromCount(severe int) Level {
	switch {
	case severe > thresholdCritical:
		return LevelCritical
	case severe > thresholdHigh:
		return LevelHigh
	case severe > thresholdMedium:
		return LevelMedium
	default:
		return LevelLow
	}
}
