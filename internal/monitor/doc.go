// Package monitor implements the mode controller.
//
// The Monitor:
//   - Owns the active mode and the monotonically increasing epoch
//   - Spawns one poller session per epoch and cancels the previous one
//   - Clears the series on every mode selection, including re-selection
//   - Gates every series mutation on the sample's epoch being current
//   - Fans accepted samples out to registered taps
//
// Stale work is fenced twice: a superseded session loses its context,
// and any result it still manages to deliver fails the epoch check
// before it can touch the series.
package monitor
