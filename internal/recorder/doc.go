// Package recorder archives accepted latency samples to PostgreSQL.
//
// The recorder:
//   - Receives samples through a bounded non-blocking queue
//   - Accumulates rows and writes them in batches
//   - Flushes on batch size or a timer, whichever comes first
//   - Uses append-only inserts keyed on (network, mode, height)
//
// It sits off the sampling path: a slow or absent database never stalls
// the height walk, it only drops archive rows.
package recorder
