package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blocklag/internal/model"
)

// Config holds recorder batching settings.
type Config struct {
	Network       model.Network // Stamped onto every row
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits in the batch
	BufferSize    int           // Queue capacity between delivery and the consumer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Network:       model.NetworkMainnet,
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		BufferSize:    4096,
	}
}

// Metrics counts recorder activity.
type Metrics struct {
	Enqueued  int64
	Dropped   int64
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// sampleRow is the flattened database row for one latency sample.
type sampleRow struct {
	Network    string
	Mode       string
	Height     int64
	Latency    float64
	ObservedAt int64 // Unix microseconds
}

// Recorder archives accepted samples into PostgreSQL. Delivery is
// decoupled from writing by a bounded queue: when the queue is full the
// sample is dropped and counted, never blocking the sampling path.
type Recorder struct {
	cfg    Config
	db     *pgxpool.Pool
	logger *slog.Logger

	entries chan sampleRow

	batch       []sampleRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a recorder writing to db.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		entries: make(chan sampleRow, cfg.BufferSize),
		batch:   make([]sampleRow, 0, cfg.BatchSize),
	}
}

// Start ensures the samples table exists and begins consuming.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if r.db != nil {
		if err := r.ensureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"network", r.cfg.Network,
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the queue, flushes the final batch, and shuts down.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
		return ctx.Err()
	}

	r.drainQueue()
	r.flush(ctx)

	r.logger.Info("recorder stopped")
	return nil
}

// ObserveSample enqueues one sample row. It never blocks; a full queue
// drops the sample and bumps the counter.
func (r *Recorder) ObserveSample(mode model.Mode, s model.Sample) {
	row := r.transform(mode, s)

	select {
	case r.entries <- row:
		r.batchMu.Lock()
		r.metrics.Enqueued++
		r.batchMu.Unlock()
	default:
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
		r.logger.Debug("sample queue full, dropping", "height", s.Height)
	}
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// consumeLoop moves rows from the queue into the batch.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case row := <-r.entries:
			r.handleRow(row)
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// handleRow adds a row to the batch, flushing when it fills.
func (r *Recorder) handleRow(row sampleRow) {
	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

// drainQueue moves whatever is still enqueued into the batch.
func (r *Recorder) drainQueue() {
	for {
		select {
		case row := <-r.entries:
			r.batchMu.Lock()
			r.batch = append(r.batch, row)
			r.batchMu.Unlock()
		default:
			return
		}
	}
}

// transform converts a sample to its database row.
func (r *Recorder) transform(mode model.Mode, s model.Sample) sampleRow {
	return sampleRow{
		Network:    r.cfg.Network.String(),
		Mode:       mode.String(),
		Height:     int64(s.Height),
		Latency:    s.Latency,
		ObservedAt: s.ObservedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]sampleRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "err", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed samples",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []sampleRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO block_latency_samples (network, mode, height, latency, observed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (network, mode, height) DO NOTHING
		`, row.Network, row.Mode, row.Height, row.Latency, row.ObservedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// ensureSchema creates the samples table when it is missing.
func (r *Recorder) ensureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS block_latency_samples (
			network     TEXT NOT NULL,
			mode        TEXT NOT NULL,
			height      BIGINT NOT NULL,
			latency     DOUBLE PRECISION NOT NULL,
			observed_at BIGINT NOT NULL,
			PRIMARY KEY (network, mode, height)
		)
	`)
	return err
}
