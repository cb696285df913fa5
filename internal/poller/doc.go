// Package poller implements the block height walk behind a session.
//
// Each Run:
//   - Resolves the starting height from the last-block endpoint
//   - Walks the next 300 heights in strictly increasing order
//   - Retries failed requests per a configurable policy (default: fixed 500ms, forever)
//   - Skips heights whose response carries no usable header
//   - Emits one signed latency sample per resolved height
//   - Aborts with ErrStale the moment its epoch is superseded
package poller
