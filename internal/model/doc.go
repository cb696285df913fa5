// Package model defines shared data types for the block-latency monitor.
//
// Conventions:
//   - Heights: uint64 block heights as reported by the chain
//   - Latency: float64 seconds, signed (negative = local clock behind producer)
//   - Wire timestamps: decimal-string nanoseconds since Unix epoch
package model
