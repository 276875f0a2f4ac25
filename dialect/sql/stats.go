package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/daogen"
)

// QueryStats holds statement statistics.
type QueryStats struct {
	// TotalPrepares is the number of statements prepared.
	TotalPrepares atomic.Int64
	// TotalTxs is the number of transactions started.
	TotalTxs atomic.Int64
	// TotalDuration is the time spent preparing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowPrepares is the count of prepares exceeding the slow threshold.
	SlowPrepares atomic.Int64
	// Errors is the count of failed prepares and begins.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalPrepares: s.TotalPrepares.Load(),
		TotalTxs:      s.TotalTxs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowPrepares:  s.SlowPrepares.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalPrepares.Store(0)
	s.TotalTxs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowPrepares.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
type StatsSnapshot struct {
	TotalPrepares int64
	TotalTxs      int64
	TotalDuration time.Duration
	SlowPrepares  int64
	Errors        int64
}

// AvgPrepareDuration returns the average prepare duration.
func (s StatsSnapshot) AvgPrepareDuration() time.Duration {
	if s.TotalPrepares == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.TotalPrepares)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"prepares=%d txs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalPrepares, s.TotalTxs, s.TotalDuration, s.AvgPrepareDuration(),
		s.SlowPrepares, s.Errors,
	)
}

// SlowQueryHook is called when preparing a statement took longer than the
// slow threshold.
type SlowQueryHook func(ctx context.Context, query string, duration time.Duration)

// StatsDriver wraps a daogen.DB with statement statistics.
type StatsDriver struct {
	db            daogen.DB
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to l, or slog.Default when l is nil.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, duration time.Duration) {
		l.WarnContext(ctx, "slow statement detected", "duration", duration, "query", query)
	})
}

// NewStatsDriver wraps db with statistics collection.
func NewStatsDriver(db daogen.DB, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		db:            db,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// PrepareContext implements daogen.DB and records statistics.
func (d *StatsDriver) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	start := time.Now()
	stmt, err := d.db.PrepareContext(ctx, query)
	d.record(ctx, query, start, err)
	return stmt, err
}

// BeginTx starts a transaction when the wrapped DB can. Statements of the
// transaction are prepared on the *sql.Tx and are not counted.
func (d *StatsDriver) BeginTx(ctx context.Context, opts *TxOptions) (*sql.Tx, error) {
	b, ok := d.db.(daogen.TxBeginner)
	if !ok {
		d.stats.Errors.Add(1)
		return nil, fmt.Errorf("dialect/sql: %T cannot begin transactions", d.db)
	}
	d.stats.TotalTxs.Add(1)
	tx, err := b.BeginTx(ctx, opts)
	if err != nil {
		d.stats.Errors.Add(1)
	}
	return tx, err
}

func (d *StatsDriver) record(ctx context.Context, query string, start time.Time, err error) {
	duration := time.Since(start)
	d.stats.TotalPrepares.Add(1)
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowPrepares.Add(1)
		if hook != nil {
			hook(ctx, query, duration)
		}
	}
}

// DebugDriver logs every statement prepared on the wrapped DB.
type DebugDriver struct {
	db  daogen.DB
	log *slog.Logger
}

// Debug wraps db with statement logging at debug level.
func Debug(db daogen.DB, l *slog.Logger) *DebugDriver {
	if l == nil {
		l = slog.Default()
	}
	return &DebugDriver{db: db, log: l}
}

// PrepareContext implements daogen.DB.
func (d *DebugDriver) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	d.log.DebugContext(ctx, "prepare", "query", query)
	stmt, err := d.db.PrepareContext(ctx, query)
	if err != nil {
		d.log.DebugContext(ctx, "prepare failed", "query", query, "error", err)
	}
	return stmt, err
}

// BeginTx starts a transaction when the wrapped DB can.
func (d *DebugDriver) BeginTx(ctx context.Context, opts *TxOptions) (*sql.Tx, error) {
	b, ok := d.db.(daogen.TxBeginner)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: %T cannot begin transactions", d.db)
	}
	d.log.DebugContext(ctx, "begin transaction")
	return b.BeginTx(ctx, opts)
}

// OpenWithStats opens a database with statistics collection enabled.
func OpenWithStats(driver, source string, opts ...StatsOption) (*StatsDriver, *QueryStats, error) {
	drv, err := Open(driver, source)
	if err != nil {
		return nil, nil, err
	}
	s := NewStatsDriver(drv, opts...)
	return s, s.QueryStats(), nil
}

var (
	_ daogen.TxBeginner = (*StatsDriver)(nil)
	_ daogen.TxBeginner = (*DebugDriver)(nil)
)
