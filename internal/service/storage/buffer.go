package storage

import (
	"context"
	"sync"
	"time"

	"vehicledetect/internal/config"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
)

// BatchInserter is the slice of the history repository the buffer needs.
type BatchInserter interface {
	InsertBatch(detections []model.Detection) error
}

// HistoryBuffer keeps detection records in memory and writes them to the
// history store in one transaction, either when HistoryBufferLimit records are
// pending or every HistoryFlushInterval. Writes happen on the Run goroutine.
type HistoryBuffer struct {
	repo     BatchInserter
	limit    int
	interval time.Duration
	pending  []model.Detection
	full     chan struct{}
	mu       sync.Mutex
	logger   *logger.Logger
}

// NewHistoryBuffer creates a HistoryBuffer writing into repo.
func NewHistoryBuffer(cfg *config.Config, logger *logger.Logger, repo BatchInserter) *HistoryBuffer {
	limit := cfg.HistoryBufferLimit
	if limit < 1 {
		limit = 1
	}
	return &HistoryBuffer{
		repo:     repo,
		limit:    limit,
		interval: cfg.HistoryFlushInterval,
		pending:  make([]model.Detection, 0, limit),
		full:     make(chan struct{}, 1),
		logger:   logger,
	}
}

// Run flushes when the buffer fills up and on a ticker until ctx is done,
// then flushes what is left.
func (b *HistoryBuffer) Run(ctx context.Context) {
	var tick <-chan time.Time
	if b.interval > 0 {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			b.Flush()
			return
		case <-b.full:
			b.Flush()
		case <-tick:
			b.Flush()
		}
	}
}

// Add appends a record and never blocks on the database. Once the buffer is
// full the Run loop is woken to write it.
func (b *HistoryBuffer) Add(det model.Detection) {
	b.mu.Lock()
	b.pending = append(b.pending, det)
	full := len(b.pending) >= b.limit
	b.mu.Unlock()

	if full {
		select {
		case b.full <- struct{}{}:
		default:
		}
	}
}

// Pending returns how many records wait for the next flush.
func (b *HistoryBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush writes pending records and returns how many were saved. A failed
// write drops the batch; history is best effort.
func (b *HistoryBuffer) Flush() int {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return 0
	}
	batch := b.pending
	b.pending = make([]model.Detection, 0, b.limit)
	b.mu.Unlock()

	if err := b.repo.InsertBatch(batch); err != nil {
		b.logger.Error("Error saving %d detection(s) to database: %v", len(batch), err)
		return 0
	}

	b.logger.Info("Flushed %d detection(s) to history", len(batch))
	return len(batch)
}
