// Package config loads the greenpulse server configuration from a yaml file.
//
// Sections:
//   - server   — HTTP port and REST API key auth (key resolved from env)
//   - session  — sampling loop timing and composite recompute cadence
//   - meter    — measurement backend: cpu (/proc/stat) or prom (exposition scrape)
//   - energy   — regional energy-mix lookup endpoint
//   - security — event log capacity and threat window
//   - esg      — baseline social/governance metric values
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) hot-reloads on file writes; a failed reload keeps
// the previous config.
package config
