package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/greenpulse/greenpulse/internal/config"
	"github.com/greenpulse/greenpulse/internal/energy"
	"github.com/greenpulse/greenpulse/internal/meter"
	"github.com/greenpulse/greenpulse/internal/observability"
	"github.com/greenpulse/greenpulse/internal/security"
	"github.com/greenpulse/greenpulse/internal/session"
	"github.com/greenpulse/greenpulse/internal/ws"
)

const readWait = 3 * time.Second

// fixedMeter reports the same emission value every cycle.
type fixedMeter struct {
	mu    sync.Mutex
	grams float64
	fail  bool
}

func (m *fixedMeter) Begin(ctx context.Context) error { return nil }

func (m *fixedMeter) End(ctx context.Context) (*meter.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("sampler offline")
	}
	return &meter.Sample{Timestamp: time.Now(), Watts: 10, Elapsed: 0.001, Grams: m.grams}, nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Session.Settle = 2 * time.Millisecond
	cfg.Session.Pause = 2 * time.Millisecond
	cfg.Session.ScoreEvery = 2
	cfg.Energy.Timeout = 100 * time.Millisecond
	return cfg
}

// startHub spins up a hub behind an httptest server with a no-endpoint
// energy client, so every connection gets the fallback mix.
func startHub(t *testing.T, mk ws.MeterFactory) (*ws.Hub, *httptest.Server, *security.Log) {
	t.Helper()
	cfg := testConfig()
	seclog := security.NewLog(cfg.Security.Capacity, cfg.Security.Window, nil)
	metrics := observability.New(prometheus.NewRegistry())
	lookup := energy.NewClient(cfg.Energy)

	hub := ws.New(cfg, seclog, metrics, lookup, mk)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv, seclog
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// envelope mirrors the wire format with the payload left raw.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(readWait))
	var e envelope
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return e
}

// readUntil skips envelopes until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) envelope {
	t.Helper()
	deadline := time.Now().Add(readWait)
	for time.Now().Before(deadline) {
		e := readEnvelope(t, conn)
		if e.Event == event {
			return e
		}
	}
	t.Fatalf("no %q envelope before deadline", event)
	return envelope{}
}

func sendAction(t *testing.T, conn *websocket.Conn, action string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"action": action}); err != nil {
		t.Fatalf("send %q: %v", action, err)
	}
}

func waitCount(t *testing.T, hub *ws.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(readWait)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub count never reached %d (now %d)", want, hub.Count())
}

func TestConnect_InitialSecurityStats(t *testing.T) {
	hub, srv, seclog := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})
	seclog.LogEvent("intrusion", security.SeverityHigh, "")

	conn := dial(t, srv)
	waitCount(t, hub, 1)

	e := readEnvelope(t, conn)
	if e.Event != session.EventSecurityStats {
		t.Fatalf("first envelope = %q, want securityStats", e.Event)
	}
	var stats security.Stats
	if err := json.Unmarshal(e.Data, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	// One high event before connect: 95, plus the connect event itself is low.
	if stats.HealthScore != 95 {
		t.Errorf("health_score = %d, want 95", stats.HealthScore)
	}
}

func TestStart_StreamsMeasurementsAndScores(t *testing.T) {
	_, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 2}, nil
	})
	conn := dial(t, srv)
	sendAction(t, conn, "start")

	e := readUntil(t, conn, session.EventMeasurement)
	var m session.Measurement
	if err := json.Unmarshal(e.Data, &m); err != nil {
		t.Fatalf("unmarshal measurement: %v", err)
	}
	if m.Grams != 2 || m.SampleCount != 1 {
		t.Errorf("first measurement = grams %v count %d, want 2/1", m.Grams, m.SampleCount)
	}

	e = readUntil(t, conn, session.EventScoreUpdate)
	var upd session.ScoreUpdate
	if err := json.Unmarshal(e.Data, &upd); err != nil {
		t.Fatalf("unmarshal scoreUpdate: %v", err)
	}
	if upd.SampleCount != 2 || upd.CumulativeGrams != 4 {
		t.Errorf("scoreUpdate = count %d grams %v, want 2/4", upd.SampleCount, upd.CumulativeGrams)
	}
	if upd.Score == nil || upd.Score.Overall <= 0 {
		t.Errorf("scoreUpdate score = %+v, want positive overall", upd.Score)
	}
	// With no lookup endpoint the session runs on the fallback mix.
	if upd.Energy != energy.Fallback() {
		t.Errorf("scoreUpdate energy = %+v, want fallback mix", upd.Energy)
	}

	// Stats follow every score push.
	readUntil(t, conn, session.EventSecurityStats)
}

func TestStop_HaltsStream(t *testing.T) {
	hub, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})
	conn := dial(t, srv)
	sendAction(t, conn, "start")
	readUntil(t, conn, session.EventMeasurement)
	sendAction(t, conn, "stop")

	waitSession := func() session.Status {
		deadline := time.Now().Add(readWait)
		for time.Now().Before(deadline) {
			if list := hub.Sessions(); len(list) == 1 && list[0].State == session.StateStopped {
				return list[0]
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("session never reached stopped state")
		return session.Status{}
	}
	st := waitSession()
	if st.SampleCount == 0 {
		t.Error("stopped session lost its accumulated totals")
	}

	// Restarting a stopped session is refused; the stream stays quiet.
	sendAction(t, conn, "start")
	time.Sleep(50 * time.Millisecond)
	if list := hub.Sessions(); list[0].SampleCount != st.SampleCount {
		t.Errorf("sample count advanced after stop: %d -> %d", st.SampleCount, list[0].SampleCount)
	}
}

func TestInvalidMessage_ErrorEnvelope(t *testing.T) {
	_, srv, seclog := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})
	conn := dial(t, srv)
	readEnvelope(t, conn) // initial securityStats

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := readUntil(t, conn, session.EventError)
	var p session.ErrorPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if p.Message == "" {
		t.Error("error payload missing message")
	}

	deadline := time.Now().Add(readWait)
	for time.Now().Before(deadline) {
		if seclog.Stats().BySeverity[security.SeverityMedium] >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("invalid message was never logged")
}

func TestUnknownAction_ErrorEnvelope(t *testing.T) {
	_, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})
	conn := dial(t, srv)
	readEnvelope(t, conn)

	sendAction(t, conn, "selfdestruct")
	readUntil(t, conn, session.EventError)
}

func TestDisconnect_StopsSessionAndUnregisters(t *testing.T) {
	hub, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})
	conn := dial(t, srv)
	sendAction(t, conn, "start")
	readUntil(t, conn, session.EventMeasurement)
	waitCount(t, hub, 1)

	conn.Close()
	waitCount(t, hub, 0)
}

func TestMeterFailure_ClosesConnection(t *testing.T) {
	hub, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return nil, errors.New("no such device")
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		// The upgrade itself may fail once the server hangs up.
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readWait))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the server to close the connection")
	}
	waitCount(t, hub, 0)
}

func TestAbruptDisconnect_MidCycle(t *testing.T) {
	// Closing the socket while a measurement window is open must not take the
	// process down: the loop finishes its cycle and pushes to the sink before
	// the hub tears the client down. A send on a closed channel here would
	// panic and fail the whole test binary.
	hub, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	for i := 0; i < 50; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial #%d: %v", i, err)
		}
		if err := conn.WriteJSON(map[string]string{"action": "start"}); err != nil {
			t.Fatalf("start #%d: %v", i, err)
		}
		// Vary the delay so the close lands at different points of the cycle.
		time.Sleep(time.Duration(i%4) * time.Millisecond)
		conn.Close()
	}

	waitCount(t, hub, 0)
}

func TestConcurrentObservers_Isolated(t *testing.T) {
	_, srv, _ := startHub(t, func(float64) (meter.Meter, error) {
		return &fixedMeter{grams: 1}, nil
	})

	a := dial(t, srv)
	b := dial(t, srv)

	sendAction(t, a, "start")
	// b never starts: it must see no measurements, only its stats push.
	readUntil(t, a, session.EventMeasurement)

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	for {
		var e envelope
		if err := b.ReadJSON(&e); err != nil {
			break // deadline: no stray traffic
		}
		if e.Event == session.EventMeasurement {
			t.Fatal("idle observer received another session's measurement")
		}
	}
}
