// Package api implements the HTTP REST status surface.
//
// New(seclog, sessions) returns an http.Handler that serves:
//
//	GET  /api/v1/health           — health score, threat level, session count
//	GET  /api/v1/security/events  — recent events (?limit=N, default 50)
//	GET  /api/v1/security/stats   — aggregate counters + derived state
//	GET  /api/v1/sessions         — connected session snapshots
//	POST /api/v1/esg/score        — score a caller-supplied metrics vector;
//	                                422 on out-of-domain inputs
//
// All endpoints respond with Content-Type: application/json and 405 for
// unsupported methods. Every request path runs through the advisory
// suspicious-request classifier before routing. No external HTTP framework
// is used.
//
// APIKeyMiddleware wraps the handler when server.auth.mode is "apikey".
package api
