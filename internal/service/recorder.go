package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hasanulhasan/url-shortify-backend/internal/models"
)

const (
	defaultRecorderBuffer       = 1024
	defaultRecorderWorkers      = 4
	defaultRecorderWriteTimeout = 5 * time.Second
)

// ClickStore is the subset of the link repository the recorder needs.
type ClickStore interface {
	RecordClick(ctx context.Context, shortCode string, event models.ClickEvent) error
}

type clickWrite struct {
	shortCode string
	event     models.ClickEvent
}

// ClickRecorder decouples click persistence from the redirect path. Record
// enqueues without blocking and drops the event when the buffer is full;
// worker goroutines write each event with a background context so an accepted
// write runs to completion even when the originating request is cancelled.
// Close stops intake and drains the queue, which lets the process flush
// pending clicks on shutdown.
type ClickRecorder struct {
	store        ClickStore
	logger       *slog.Logger
	writeTimeout time.Duration
	queue        chan clickWrite
	wg           sync.WaitGroup
	mu           sync.RWMutex
	closed       bool
}

// RecorderConfig holds the tunables of the click recorder.
type RecorderConfig struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// NewClickRecorder starts the worker goroutines and returns the recorder.
// The caller owns its lifecycle and must call Close after the HTTP server
// has stopped accepting requests.
func NewClickRecorder(store ClickStore, logger *slog.Logger, cfg RecorderConfig) *ClickRecorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultRecorderBuffer
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultRecorderWorkers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultRecorderWriteTimeout
	}

	r := &ClickRecorder{
		store:        store,
		logger:       logger,
		writeTimeout: cfg.WriteTimeout,
		queue:        make(chan clickWrite, cfg.BufferSize),
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}

	return r
}

// Record enqueues a click event for eventual persistence. It never blocks:
// when the buffer is full the event is dropped and logged, keeping the
// redirect latency independent of analytics write throughput.
func (r *ClickRecorder) Record(shortCode string, event models.ClickEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("click event dropped: recorder closed",
			slog.String("short_code", shortCode),
		)
		return
	}

	select {
	case r.queue <- clickWrite{shortCode: shortCode, event: event}:
	default:
		r.logger.Warn("click event dropped: queue full",
			slog.String("short_code", shortCode),
		)
	}
}

func (r *ClickRecorder) worker() {
	defer r.wg.Done()

	for w := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := r.store.RecordClick(ctx, w.shortCode, w.event)
		cancel()

		if err != nil {
			// Best-effort telemetry: the event is lost, the visitor was
			// already redirected.
			r.logger.Error("failed to record click",
				slog.String("short_code", w.shortCode),
				slog.Any("err", err),
			)
		}
	}
}

// Close stops accepting new events and blocks until every queued event has
// been attempted. Safe to call more than once.
func (r *ClickRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.queue)
	r.wg.Wait()
}
