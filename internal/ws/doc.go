// Package ws implements the observer WebSocket transport.
//
// Each connection to /ws/stream gets its own sampling session. Inbound
// control messages are {"action": "start"} and {"action": "stop"}; a
// disconnect has the same effect as stop. Outbound messages are JSON
// envelopes:
//
//	{ "event": "measurement" | "scoreUpdate" | "error" | "securityStats",
//	  "data":  { ... } }
//
// An initial securityStats envelope is sent on connect. Payloads to a slow
// observer are dropped when its buffer fills — there is no replay.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level.
package ws
