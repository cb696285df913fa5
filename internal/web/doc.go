// Package web serves the monitor over HTTP.
//
// Endpoints:
//   - GET /healthz classifies the instance (healthy, degraded, unhealthy)
//   - GET /api/status returns the monitor snapshot
//   - GET /api/series returns the latency window and its aggregates
//   - POST /api/mode switches the active mode
//   - GET /api/stream upgrades to a websocket fed by the hub
//
// The hub observes accepted samples off the monitor and fans them out
// without blocking the sampling path; clients that stop reading their
// queue are dropped.
package web
