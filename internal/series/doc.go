// Package series implements the sample window behind the latency chart.
//
// The window:
//   - Keeps the most recent samples in arrival order, capped at a fixed
//     capacity (default 30), dropping the oldest first
//   - Invokes a redraw callback with an authoritative snapshot after
//     every push and reset
//   - Exposes window aggregates (min/max/avg/p95) for status surfaces
package series
