package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RecorderConfig configures the async recorder.
type RecorderConfig struct {
	// Enabled enables audit recording.
	Enabled bool

	// Buffer is the size of the async write channel.
	// Default: 1024
	Buffer int

	// WriteTimeout bounds a single storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		Buffer:       1024,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit records asynchronously. Record never blocks: when
// the buffer is full the record is dropped and counted, keeping storage
// stalls out of the evaluation path.
type Recorder struct {
	store   Store
	config  *RecorderConfig
	logger  *slog.Logger
	metrics *Metrics

	recordCh  chan *Record
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Int64
}

// NewRecorder creates a recorder draining into store. Metrics may be nil.
func NewRecorder(store Store, config *RecorderConfig, logger *slog.Logger, metrics *Metrics) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.Buffer <= 0 {
		config.Buffer = 1024
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default().With("component", "audit")
	}

	r := &Recorder{
		store:    store,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		recordCh: make(chan *Record, config.Buffer),
		done:     make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder started",
		"buffer", config.Buffer,
		"write_timeout", config.WriteTimeout,
		"enabled", config.Enabled)

	return r
}

// Record enqueues one record for writing and returns immediately.
func (r *Recorder) Record(record *Record) {
	if !r.config.Enabled || record == nil {
		return
	}

	select {
	case r.recordCh <- record:
	default:
		r.dropped.Add(1)
		r.metrics.RecordWrite("dropped")
		r.logger.Warn("audit buffer full, dropping record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"dropped_total", r.dropped.Load())
	}
}

// Dropped returns how many records were dropped since the recorder
// started.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains the buffer, waits for pending writes and stops the worker.
// Safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		r.logger.Info("audit recorder stopped", "dropped_total", r.dropped.Load())
	})
	return nil
}

// worker drains the record channel and writes to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordCh:
			r.write(record)

		case <-r.done:
			// Drain whatever is buffered before exiting.
			for {
				select {
				case record := <-r.recordCh:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.store.Store(ctx, record); err != nil {
		r.metrics.RecordWrite("error")
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"error", err)
		return
	}
	r.metrics.RecordWrite("written")

	if elapsed := time.Since(start); elapsed > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", record.ID,
			"duration_ms", elapsed.Milliseconds())
	}
}
