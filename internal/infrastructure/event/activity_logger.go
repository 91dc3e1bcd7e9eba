package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"go.uber.org/zap"
)

// ActivityLoggerConfig holds configuration for the async activity logger
type ActivityLoggerConfig struct {
	BufferSize    int
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

// DefaultActivityLoggerConfig returns default configuration
func DefaultActivityLoggerConfig() ActivityLoggerConfig {
	return ActivityLoggerConfig{
		BufferSize:    256,
		Workers:       2,
		BatchSize:     50,
		FlushInterval: 500 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
	}
}

// AsyncActivityLogger implements bulk.ActivityLogger on top of a buffered channel.
// Log never blocks: when the buffer is full or the logger is stopped the entry is dropped.
type AsyncActivityLogger struct {
	repo   bulk.ActivityRepository
	config ActivityLoggerConfig
	logger *zap.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan bulk.ActivityEntry
	wg      sync.WaitGroup
	started atomic.Bool

	dropped atomic.Int64
	written atomic.Int64
}

// NewAsyncActivityLogger creates a new logger; entries queue until Start is called.
func NewAsyncActivityLogger(repo bulk.ActivityRepository, config ActivityLoggerConfig, logger *zap.Logger) *AsyncActivityLogger {
	defaults := DefaultActivityLoggerConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaults.FlushInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncActivityLogger{
		repo:    repo,
		config:  config,
		logger:  logger,
		entries: make(chan bulk.ActivityEntry, config.BufferSize),
	}
}

// Log enqueues entry without blocking.
func (l *AsyncActivityLogger) Log(ctx context.Context, entry bulk.ActivityEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.drop(entry, "activity logger stopped")
		return
	}
	select {
	case l.entries <- entry:
	default:
		l.drop(entry, "activity buffer full")
	}
}

func (l *AsyncActivityLogger) drop(entry bulk.ActivityEntry, reason string) {
	l.dropped.Add(1)
	l.logger.Warn("activity entry dropped",
		zap.String("reason", reason),
		zap.String("action", string(entry.Action)),
		zap.String("entity", entry.Entity),
		zap.String("org_id", entry.OrgID.String()),
	)
}

// Start launches the writer goroutines. Calling Start twice is a no-op.
func (l *AsyncActivityLogger) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return nil
	}
	for range l.config.Workers {
		l.wg.Add(1)
		go l.writeLoop(context.WithoutCancel(ctx))
	}
	l.logger.Info("activity logger started",
		zap.Int("workers", l.config.Workers),
		zap.Int("buffer_size", l.config.BufferSize),
	)
	return nil
}

// Stop closes the buffer and waits until queued entries are written or ctx expires.
func (l *AsyncActivityLogger) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.entries)
	l.mu.Unlock()

	if !l.started.Load() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("activity logger stopped",
			zap.Int64("written", l.written.Load()),
			zap.Int64("dropped", l.dropped.Load()),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of entries discarded so far.
func (l *AsyncActivityLogger) Dropped() int64 { return l.dropped.Load() }

// Written returns the number of entries persisted so far.
func (l *AsyncActivityLogger) Written() int64 { return l.written.Load() }

func (l *AsyncActivityLogger) writeLoop(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]bulk.ActivityEntry, 0, l.config.BatchSize)
	for {
		select {
		case entry, ok := <-l.entries:
			if !ok {
				l.flush(ctx, batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= l.config.BatchSize {
				l.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes one batch; failures and panics are logged and the batch is discarded.
func (l *AsyncActivityLogger) flush(ctx context.Context, batch []bulk.ActivityEntry) {
	if len(batch) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.dropped.Add(int64(len(batch)))
			l.logger.Error("activity writer panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, l.config.WriteTimeout)
	defer cancel()

	if err := l.repo.Append(ctx, batch...); err != nil {
		l.dropped.Add(int64(len(batch)))
		l.logger.Error("failed to persist activity entries",
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
		return
	}
	l.written.Add(int64(len(batch)))
}

// Ensure AsyncActivityLogger implements ActivityLogger
var _ bulk.ActivityLogger = (*AsyncActivityLogger)(nil)
