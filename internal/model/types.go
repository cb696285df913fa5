package model

import (
	"fmt"
	"strconv"
	"time"
)

// MaxBlockHeight is the sanity bound for heights accepted from the API,
// matching the upstream server's own limit. Headers above it are treated
// as malformed.
const MaxBlockHeight uint64 = 1_000_000_000_000_000

// -----------------------------------------------------------------------------
// Modes
// -----------------------------------------------------------------------------

// Mode selects which view of the chain the monitor follows.
type Mode string

const (
	// ModeFinal follows finalized blocks (permanently committed).
	ModeFinal Mode = "final"

	// ModeOptimistic follows optimistic blocks (provisional, not yet finalized).
	ModeOptimistic Mode = "optimistic"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFinal:
		return ModeFinal, nil
	case ModeOptimistic:
		return ModeOptimistic, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeFinal, ModeOptimistic)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFinal || m == ModeOptimistic
}

// BlockPath returns the per-height path segment for this mode:
// "block" for final reads, "block_opt" for optimistic reads.
func (m Mode) BlockPath() string {
	if m == ModeOptimistic {
		return "block_opt"
	}
	return "block"
}

func (m Mode) String() string { return string(m) }

// -----------------------------------------------------------------------------
// Networks
// -----------------------------------------------------------------------------

// Network identifies which chain deployment to monitor.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}

// BaseURL returns the default API root for the network.
func (n Network) BaseURL() string {
	return "https://" + string(n) + ".neardata.xyz"
}

func (n Network) String() string { return string(n) }

// -----------------------------------------------------------------------------
// Wire Types
// -----------------------------------------------------------------------------

// BlockHeader is the header object returned by the headers endpoints.
// Only the fields the monitor reads are decoded; the upstream object
// carries many more.
type BlockHeader struct {
	Height           uint64 `json:"height"`            // Block height
	TimestampNanosec string `json:"timestamp_nanosec"` // Production time (decimal string, ns since Unix epoch)
}

// Timestamp parses the nanosecond production timestamp.
func (h *BlockHeader) Timestamp() (time.Time, error) {
	ns, err := strconv.ParseInt(h.TimestampNanosec, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp_nanosec %q: %w", h.TimestampNanosec, err)
	}
	return time.Unix(0, ns).UTC(), nil
}

// Usable reports whether the header is structurally complete: present,
// a non-empty timestamp, and a height within the sanity bound. The
// timestamp itself may still fail to parse.
func (h *BlockHeader) Usable() bool {
	if h == nil || h.TimestampNanosec == "" {
		return false
	}
	return h.Height > 0 && h.Height <= MaxBlockHeight
}

// -----------------------------------------------------------------------------
// Samples
// -----------------------------------------------------------------------------

// Sample is one latency observation: how far behind production the monitor
// saw a block.
type Sample struct {
	Height     uint64    `json:"height"`      // Block height the observation is for
	Latency    float64   `json:"latency"`     // Delay in seconds; negative when the local clock lags the producer
	ObservedAt time.Time `json:"observed_at"` // Local wall-clock time of the observation
}

// NewSample computes the latency sample for a block produced at
// producedAt and observed at observedAt. Clock skew can make the
// latency negative; it is kept as measured.
func NewSample(height uint64, producedAt, observedAt time.Time) Sample {
	return Sample{
		Height:     height,
		Latency:    observedAt.Sub(producedAt).Seconds(),
		ObservedAt: observedAt,
	}
}
