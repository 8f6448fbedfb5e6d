package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/greenpulse/greenpulse/internal/esg"
	"github.com/greenpulse/greenpulse/internal/security"
	"github.com/greenpulse/greenpulse/internal/session"
)

// defaultEventLimit caps GET /api/v1/security/events when no limit is given.
const defaultEventLimit = 50

// SessionSource exposes the connected sessions to the status surface.
// Implemented by the WebSocket hub.
type SessionSource interface {
	Sessions() []session.Status
	Count() int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads from the security log and the session source and returns JSON.
type Handler struct {
	seclog   *security.Log
	sessions SessionSource
	mux      *http.ServeMux
}

// New creates a Handler wired to the given collaborators and registers all
// routes. Every request path is run through the advisory classifier before
// routing.
func New(seclog *security.Log, sessions SessionSource) http.Handler {
	h := &Handler{seclog: seclog, sessions: sessions, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/security/events", h.events)
	h.mux.HandleFunc("/api/v1/security/stats", h.stats)
	h.mux.HandleFunc("/api/v1/sessions", h.listSessions)
	h.mux.HandleFunc("/api/v1/esg/score", h.score)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Advisory only: tag injection-looking requests, never block them.
	if target := r.URL.RequestURI(); security.Classify(target) {
		h.seclog.LogSuspicious("suspicious_request", security.SeverityMedium, target)
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — event-health score and session counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := h.seclog.Stats()
	jsonResp(w, http.StatusOK, HealthResponse{
		HealthScore:    stats.HealthScore,
		ThreatLevel:    stats.ThreatLevel,
		ActiveSessions: h.sessions.Count(),
		TotalEvents:    stats.TotalEvents,
	})
}

// events returns GET /api/v1/security/events — recent events, newest last,
// bounded by the limit query parameter.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	evs := h.seclog.Recent(limit)
	jsonResp(w, http.StatusOK, EventsResponse{Events: evs, Count: len(evs)})
}

// stats returns GET /api/v1/security/stats — aggregate counters and the
// derived threat level and health score.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.seclog.Stats())
}

// listSessions returns GET /api/v1/sessions — all connected sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessions := h.sessions.Sessions()
	jsonResp(w, http.StatusOK, SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

// score handles POST /api/v1/esg/score — computes a composite score from a
// caller-supplied metrics vector, plus the financial impact when revenue and
// emissions are provided.
func (h *Handler) score(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	score, err := esg.Compute(req.Metrics)
	if err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := ScoreResponse{Score: score}
	if req.Revenue != nil && req.EmissionsTons != nil {
		impact, err := esg.Financial(score.Overall, *req.Revenue, *req.EmissionsTons)
		if err != nil {
			jsonErr(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		resp.Financial = impact
	}

	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
