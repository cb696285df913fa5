package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"blocklag/internal/model"
	"blocklag/internal/poller"
	"blocklag/internal/series"
)

// Errors returned by lifecycle methods.
var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
)

// SampleTap observes accepted samples after they land in the series.
// Taps run on the delivery path, so implementations must be fast,
// non-blocking, and must not call back into the Monitor or the Ring.
type SampleTap interface {
	ObserveSample(mode model.Mode, s model.Sample)
}

// ResetTap is implemented by taps that also observe window resets.
// Resets and samples are observed in the same order the series applies
// them.
type ResetTap interface {
	ObserveReset(mode model.Mode)
}

// Config holds monitor configuration.
type Config struct {
	Mode   model.Mode    // Initial mode (default: final)
	Poller poller.Config // Session walk and retry settings
	Taps   []SampleTap   // Optional sample observers
}

// Monitor owns the active mode, the epoch counter, and the session
// lifecycle. All poller output funnels through it so that only the
// current epoch can reach the series.
type Monitor struct {
	cfg    Config
	ring   *series.Ring
	poller *poller.Poller
	logger *slog.Logger
	taps   []SampleTap

	// epoch is read lock-free by sessions via IsCurrent.
	epoch atomic.Uint64

	mu            sync.Mutex
	running       bool
	ctx           context.Context
	cancel        context.CancelFunc
	sessionCancel context.CancelFunc
	mode          model.Mode
	state         State
	sessionID     string
	startHeight   uint64
	startedAt     time.Time
	emitted       int
	skipped       int
	lastSample    *model.Sample
	lastErr       error

	lastSessionState State
	lastSessionEpoch uint64

	// seriesMu makes the epoch check and the series mutation one
	// atomic step. Select acquires mu then seriesMu; delivery takes
	// them one at a time in the same order.
	seriesMu sync.Mutex

	wg sync.WaitGroup
}

// New creates a monitor that feeds ring from sessions against client.
func New(cfg Config, client poller.BlockAPI, ring *series.Ring, logger *slog.Logger) *Monitor {
	if cfg.Mode == "" {
		cfg.Mode = model.ModeFinal
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:    cfg,
		ring:   ring,
		logger: logger,
		taps:   cfg.Taps,
		mode:   cfg.Mode,
		state:  StateIdle,
	}
	m.poller = poller.New(cfg.Poller, client, m, m, logger)
	return m
}

// Start binds the monitor to ctx and begins the first session for the
// configured mode.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	mode := m.cfg.Mode
	m.mu.Unlock()

	m.logger.Info("monitor started", "mode", mode)
	return m.Select(mode)
}

// Select makes mode the active mode: it advances the epoch, cancels the
// running session, clears the series, and starts a fresh session bound
// to the new epoch. Re-selecting the active mode performs the same full
// reset.
func (m *Monitor) Select(mode model.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("select: unknown mode %q", mode)
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}

	// The bump is what makes the previous session observably stale, so
	// it comes before everything else.
	epoch := m.epoch.Add(1)

	if m.sessionCancel != nil {
		m.sessionCancel()
	}
	sessCtx, cancel := context.WithCancel(m.ctx)
	m.sessionCancel = cancel

	m.mode = mode
	m.state = StateResolving
	m.sessionID = uuid.NewString()
	m.startHeight = 0
	m.startedAt = time.Now()
	m.emitted = 0
	m.skipped = 0
	m.lastSample = nil
	m.lastErr = nil
	sessionID := m.sessionID

	m.seriesMu.Lock()
	m.ring.Reset()
	for _, tap := range m.taps {
		if rt, ok := tap.(ResetTap); ok {
			rt.ObserveReset(mode)
		}
	}
	m.seriesMu.Unlock()

	m.wg.Add(1)
	go m.runSession(sessCtx, mode, epoch, sessionID)

	m.mu.Unlock()

	m.logger.Info("mode selected",
		"mode", mode,
		"epoch", epoch,
		"session_id", sessionID,
	)
	return nil
}

// Stop cancels the running session and waits for it to unwind, bounded
// by ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.state = StateIdle
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a copy of the monitor's current state.
func (m *Monitor) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:            m.state,
		Mode:             m.mode,
		Epoch:            m.epoch.Load(),
		SessionID:        m.sessionID,
		StartHeight:      m.startHeight,
		StartedAt:        m.startedAt,
		Emitted:          m.emitted,
		Skipped:          m.skipped,
		LastSessionState: m.lastSessionState,
		LastSessionEpoch: m.lastSessionEpoch,
	}
	if m.lastSample != nil {
		s := *m.lastSample
		snap.LastSample = &s
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	return snap
}

// IsCurrent reports whether epoch is the live epoch.
func (m *Monitor) IsCurrent(epoch uint64) bool {
	return epoch == m.epoch.Load()
}

// HandleResolved records the walk origin and moves the session from
// resolving to streaming.
func (m *Monitor) HandleResolved(epoch uint64, startHeight uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch.Load() {
		return
	}
	m.startHeight = startHeight
	if m.state == StateResolving {
		m.state = StateStreaming
	}
}

// HandleSample accepts a sample for epoch. Samples from stale epochs
// are dropped without touching the series.
func (m *Monitor) HandleSample(epoch uint64, s model.Sample) {
	m.mu.Lock()
	if epoch != m.epoch.Load() {
		m.mu.Unlock()
		return
	}
	m.emitted++
	sample := s
	m.lastSample = &sample
	mode := m.mode
	m.mu.Unlock()

	// Re-check under seriesMu: the reset that accompanies an epoch
	// bump also runs under it, so a push can never land after the
	// reset that invalidated it.
	m.seriesMu.Lock()
	if epoch == m.epoch.Load() {
		m.ring.Push(s)
		for _, tap := range m.taps {
			tap.ObserveSample(mode, s)
		}
	}
	m.seriesMu.Unlock()
}

// HandleSkip counts a height that produced no sample.
func (m *Monitor) HandleSkip(epoch uint64, height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch.Load() {
		return
	}
	m.skipped++
}

// runSession drives one poller session and records its terminal state.
func (m *Monitor) runSession(ctx context.Context, mode model.Mode, epoch uint64, sessionID string) {
	defer m.wg.Done()

	err := m.poller.Run(ctx, mode, epoch)

	terminal := StateCompleted
	switch {
	case err == nil:
	case errors.Is(err, poller.ErrStale),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		terminal = StateStale
	default:
		terminal = StateFailed
	}

	m.mu.Lock()
	m.lastSessionState = terminal
	m.lastSessionEpoch = epoch
	if m.running && epoch == m.epoch.Load() {
		switch terminal {
		case StateCompleted:
			m.state = StateCompleted
		case StateFailed:
			m.state = StateFailed
			m.lastErr = err
		}
	}
	m.mu.Unlock()

	if terminal == StateFailed {
		m.logger.Error("session failed",
			"mode", mode,
			"epoch", epoch,
			"session_id", sessionID,
			"err", err,
		)
		return
	}
	m.logger.Info("session ended",
		"mode", mode,
		"epoch", epoch,
		"session_id", sessionID,
		"state", terminal,
	)
}
