package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/metrics"

	"go.uber.org/zap"
)

// Writer hands audit events to a sink through a bounded queue and a small
// worker pool, so Log never waits on the sink itself.
type Writer struct {
	sink       Sink
	queue      chan Event
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	config     WriterConfig
	metrics    metrics.Collector
	logger     *logging.Logger
	sinkName   string

	// Statistics (accessed atomically)
	droppedEvents int64
	totalEvents   int64
	failedEvents  int64

	metricsTicker *time.Ticker
	metricsStop   chan struct{}
	closeOnce     sync.Once
}

// WriterConfig configures the audit writer.
type WriterConfig struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is how long Log waits for queue space before dropping
	// the event (default: 10ms)
	MaxWaitTime time.Duration

	// WriteTimeout bounds a single sink write (default: 5s)
	WriteTimeout time.Duration
}

// WriterStats provides statistics about audit writer operations.
type WriterStats struct {
	QueueDepth    int
	DroppedEvents int64
	TotalEvents   int64
	FailedEvents  int64
}

// NewWriter creates a writer and starts its workers. It must be closed
// with Close, which drains the queue.
func NewWriter(sink Sink, config WriterConfig, collector metrics.Collector, logger *logging.Logger) *Writer {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Writer{
		sink:          sink,
		queue:         make(chan Event, config.QueueSize),
		workers:       config.Workers,
		ctx:           ctx,
		cancelFunc:    cancel,
		config:        config,
		metrics:       collector,
		logger:        logger.Named("audit"),
		sinkName:      sink.Name(),
		metricsTicker: time.NewTicker(5 * time.Second),
		metricsStop:   make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
	go w.reportMetrics()

	return w
}

// Log enqueues an event. If the queue is full it waits up to MaxWaitTime
// and then drops the event with ErrQueueFull.
func (w *Writer) Log(ctx context.Context, event Event) error {
	select {
	case <-w.ctx.Done():
		return ErrWriterClosed
	default:
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	timer := time.NewTimer(w.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case w.queue <- event:
		atomic.AddInt64(&w.totalEvents, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&w.droppedEvents, 1)
		w.metrics.RecordAuditDropped(w.sinkName)
		w.logger.Warn("audit event dropped", zap.String("event", event.Type))
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrWriterClosed
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	for {
		select {
		case event := <-w.queue:
			w.write(event)
		case <-w.ctx.Done():
			for {
				select {
				case event := <-w.queue:
					w.write(event)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.sink.Write(ctx, event)
	w.metrics.RecordAuditWrite(w.sinkName, err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&w.failedEvents, 1)
		w.logger.Error("audit sink write failed",
			zap.String("sink", w.sinkName),
			zap.String("event", event.Type),
			zap.Error(err),
		)
	}
}

// Flush waits until the queue is empty or timeout elapses.
func (w *Writer) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if len(w.queue) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Close stops accepting events, drains the queue and waits for workers.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.metricsStop)
		w.metricsTicker.Stop()
		w.cancelFunc()
		w.wg.Wait()
	})
	return nil
}

func (w *Writer) reportMetrics() {
	for {
		select {
		case <-w.metricsTicker.C:
			w.metrics.RecordAuditQueueDepth(w.sinkName, len(w.queue))
		case <-w.metricsStop:
			return
		}
	}
}

// Stats returns current statistics about the writer.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		QueueDepth:    len(w.queue),
		DroppedEvents: atomic.LoadInt64(&w.droppedEvents),
		TotalEvents:   atomic.LoadInt64(&w.totalEvents),
		FailedEvents:  atomic.LoadInt64(&w.failedEvents),
	}
}
