package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blocklag/internal/model"
)

// ErrStale is returned when the session's epoch is superseded mid-run.
// It marks an ordinary handover to a newer session, not a failure.
var ErrStale = errors.New("poller: epoch superseded")

// BlockAPI is the read surface of the blocks API the poller needs.
type BlockAPI interface {
	// GetLastBlockHeader returns the newest header for the mode.
	GetLastBlockHeader(ctx context.Context, mode model.Mode) (*model.BlockHeader, error)

	// GetBlockHeader returns the header at height, or (nil, nil) when
	// the chain skipped that height.
	GetBlockHeader(ctx context.Context, mode model.Mode, height uint64) (*model.BlockHeader, error)
}

// EpochGuard reports whether an epoch is still the live one. The poller
// consults it at every checkpoint so a superseded session stops doing
// work as soon as possible.
type EpochGuard interface {
	IsCurrent(epoch uint64) bool
}

// SampleHandler receives the output of a session.
type SampleHandler interface {
	// HandleResolved reports the starting height once it is known.
	HandleResolved(epoch uint64, startHeight uint64)

	// HandleSample delivers one accepted sample.
	HandleSample(epoch uint64, s model.Sample)

	// HandleSkip reports a height that had no usable header.
	HandleSkip(epoch uint64, height uint64)
}

// HandlerFuncs adapts plain functions to SampleHandler. Nil fields are
// ignored.
type HandlerFuncs struct {
	Resolved func(epoch uint64, startHeight uint64)
	Sample   func(epoch uint64, s model.Sample)
	Skip     func(epoch uint64, height uint64)
}

func (h HandlerFuncs) HandleResolved(epoch uint64, startHeight uint64) {
	if h.Resolved != nil {
		h.Resolved(epoch, startHeight)
	}
}

func (h HandlerFuncs) HandleSample(epoch uint64, s model.Sample) {
	if h.Sample != nil {
		h.Sample(epoch, s)
	}
}

func (h HandlerFuncs) HandleSkip(epoch uint64, height uint64) {
	if h.Skip != nil {
		h.Skip(epoch, height)
	}
}

// RetryPolicy controls how failed requests are retried within a session.
type RetryPolicy struct {
	Delay       time.Duration // Wait before the next attempt (default: 500ms)
	Backoff     float64       // Delay multiplier per attempt; 1.0 keeps it fixed
	MaxAttempts int           // Attempts before giving up; 0 retries forever
}

// Config holds poller session configuration.
type Config struct {
	MaxBlocks int         // Heights visited per session (default: 300)
	Retry     RetryPolicy // Applied to every request in the session
}

// DefaultConfig returns the stock session settings: a 300-height walk
// with a fixed 500ms retry delay and no attempt cap.
func DefaultConfig() Config {
	return Config{
		MaxBlocks: 300,
		Retry: RetryPolicy{
			Delay:       500 * time.Millisecond,
			Backoff:     1.0,
			MaxAttempts: 0,
		},
	}
}

// Poller walks consecutive block heights for one (mode, epoch) session
// and emits a latency sample per height that resolves to a usable
// header. It holds no state across sessions; the caller owns lifecycle.
type Poller struct {
	cfg     Config
	client  BlockAPI
	guard   EpochGuard
	handler SampleHandler
	logger  *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// New creates a poller bound to a client, an epoch guard, and a sample
// handler.
func New(cfg Config, client BlockAPI, guard EpochGuard, handler SampleHandler, logger *slog.Logger) *Poller {
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = DefaultConfig().MaxBlocks
	}
	if cfg.Retry.Delay <= 0 {
		cfg.Retry.Delay = DefaultConfig().Retry.Delay
	}
	if cfg.Retry.Backoff < 1.0 {
		cfg.Retry.Backoff = 1.0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		guard:   guard,
		handler: handler,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes one session: resolve the starting height for mode, then
// walk the next MaxBlocks heights in strictly increasing order. It
// blocks until the walk completes (nil), the epoch is superseded
// (ErrStale), ctx ends (ctx.Err()), or a capped retry policy gives up.
func (p *Poller) Run(ctx context.Context, mode model.Mode, epoch uint64) error {
	start := time.Now()

	h0, err := p.resolveStart(ctx, mode, epoch)
	if err != nil {
		return err
	}
	p.handler.HandleResolved(epoch, h0)

	p.logger.Info("height walk starting",
		"mode", mode,
		"epoch", epoch,
		"start_height", h0,
		"blocks", p.cfg.MaxBlocks,
	)

	var emitted, skipped int
	for i := 1; i <= p.cfg.MaxBlocks; i++ {
		height := h0 + uint64(i)

		header, err := p.fetchHeader(ctx, mode, epoch, height)
		if err != nil {
			return err
		}

		sample, ok := p.sampleFrom(header)
		if !ok {
			skipped++
			p.logger.Debug("height skipped", "mode", mode, "epoch", epoch, "height", height)
			p.handler.HandleSkip(epoch, height)
			continue
		}

		if !p.guard.IsCurrent(epoch) {
			return ErrStale
		}
		p.handler.HandleSample(epoch, sample)
		emitted++
	}

	p.logger.Info("height walk complete",
		"mode", mode,
		"epoch", epoch,
		"emitted", emitted,
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return nil
}

// resolveStart fetches the newest height for the mode. The walk begins
// one above it.
func (p *Poller) resolveStart(ctx context.Context, mode model.Mode, epoch uint64) (uint64, error) {
	var h0 uint64
	err := p.withRetry(ctx, epoch, "last_block", func(ctx context.Context) error {
		header, err := p.client.GetLastBlockHeader(ctx, mode)
		if err != nil {
			return err
		}
		h0 = header.Height
		return nil
	})
	if err != nil {
		return 0, err
	}
	return h0, nil
}

// fetchHeader fetches one height's header. A nil header with nil error
// means the chain skipped the height.
func (p *Poller) fetchHeader(ctx context.Context, mode model.Mode, epoch uint64, height uint64) (*model.BlockHeader, error) {
	var header *model.BlockHeader
	err := p.withRetry(ctx, epoch, "block", func(ctx context.Context) error {
		h, err := p.client.GetBlockHeader(ctx, mode, height)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// sampleFrom converts a fetched header into a sample. ok is false when
// the height produced no usable header: a null response, a missing or
// malformed timestamp, or a height outside the sanity bound.
func (p *Poller) sampleFrom(header *model.BlockHeader) (model.Sample, bool) {
	if !header.Usable() {
		return model.Sample{}, false
	}
	ts, err := header.Timestamp()
	if err != nil {
		return model.Sample{}, false
	}
	return model.NewSample(header.Height, ts, p.now()), true
}

// withRetry runs fn until it succeeds, the policy's attempt cap is hit,
// the epoch goes stale, or ctx ends. Epoch currency is rechecked before
// every attempt and again before every wait.
func (p *Poller) withRetry(ctx context.Context, epoch uint64, op string, fn func(context.Context) error) error {
	delay := p.cfg.Retry.Delay

	for attempt := 1; ; attempt++ {
		if !p.guard.IsCurrent(epoch) {
			return ErrStale
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p.cfg.Retry.MaxAttempts > 0 && attempt >= p.cfg.Retry.MaxAttempts {
			return fmt.Errorf("%s: retry attempts exhausted: %w", op, err)
		}

		p.logger.Debug("request failed, will retry",
			"op", op,
			"epoch", epoch,
			"attempt", attempt,
			"delay", delay,
			"err", err,
		)

		if !p.guard.IsCurrent(epoch) {
			return ErrStale
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if p.cfg.Retry.Backoff > 1.0 {
			delay = time.Duration(float64(delay) * p.cfg.Retry.Backoff)
		}
	}
}
