package api

import (
	"github.com/greenpulse/greenpulse/internal/esg"
	"github.com/greenpulse/greenpulse/internal/security"
	"github.com/greenpulse/greenpulse/internal/session"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	HealthScore    int            `json:"health_score"`
	ThreatLevel    security.Level `json:"threat_level"`
	ActiveSessions int            `json:"active_sessions"`
	TotalEvents    uint64         `json:"total_events"`
}

// EventsResponse is the payload for GET /api/v1/security/events.
type EventsResponse struct {
	Events []security.Event `json:"events"`
	Count  int              `json:"count"`
}

// SessionsResponse is the payload for GET /api/v1/sessions.
type SessionsResponse struct {
	Sessions []session.Status `json:"sessions"`
	Count    int              `json:"count"`
}

// ScoreRequest is the body for POST /api/v1/esg/score. Revenue and
// EmissionsTons are optional; when both are present the response includes
// the financial impact vector.
type ScoreRequest struct {
	Metrics       esg.Metrics `json:"metrics"`
	Revenue       *float64    `json:"revenue,omitempty"`
	EmissionsTons *float64    `json:"emissions_tons,omitempty"`
}

// ScoreResponse is the payload for POST /api/v1/esg/score.
type ScoreResponse struct {
	Score     *esg.Score  `json:"score"`
	Financial *esg.Impact `json:"financial,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
