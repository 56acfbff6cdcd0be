package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/metrics/memory"

	"go.uber.org/zap/zapcore"
)

// fakeSink records events and can block or fail on demand.
type fakeSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *fakeSink) Write(ctx context.Context, event Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestNewWriter_Defaults(t *testing.T) {
	w := NewWriter(&fakeSink{}, WriterConfig{}, nil, nil)
	defer w.Close()

	if cap(w.queue) != 1000 {
		t.Errorf("Expected default queue size 1000, got %d", cap(w.queue))
	}
	if w.workers != 2 {
		t.Errorf("Expected default workers 2, got %d", w.workers)
	}
	if w.config.MaxWaitTime != 10*time.Millisecond {
		t.Errorf("Expected default MaxWaitTime 10ms, got %v", w.config.MaxWaitTime)
	}
}

func TestWriter_Log(t *testing.T) {
	sink := &fakeSink{}
	collector := memory.NewMemoryCollector()
	w := NewWriter(sink, WriterConfig{QueueSize: 10, Workers: 1}, collector, nil)

	err := w.Log(context.Background(), Event{Type: "treasury.create", Message: "Transaction #1 created", ActorID: 7})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	w.Close()

	if sink.count() != 1 {
		t.Fatalf("Expected 1 event written, got %d", sink.count())
	}
	if sink.events[0].CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be stamped")
	}
	if got := collector.Snapshot().AuditWrites["fake"]; got != 1 {
		t.Errorf("Expected 1 recorded write, got %d", got)
	}
	if stats := w.Stats(); stats.TotalEvents != 1 || stats.FailedEvents != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestWriter_ConcurrentLog(t *testing.T) {
	sink := &fakeSink{}
	w := NewWriter(sink, WriterConfig{QueueSize: 100, Workers: 4}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := w.Log(context.Background(), Event{Type: fmt.Sprintf("event.%d", i)}); err != nil {
				t.Errorf("Log %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	w.Close()

	if sink.count() != 50 {
		t.Errorf("Expected 50 events, got %d", sink.count())
	}
}

func TestWriter_Backpressure(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	collector := memory.NewMemoryCollector()
	w := NewWriter(sink, WriterConfig{QueueSize: 2, Workers: 1, MaxWaitTime: 5 * time.Millisecond}, collector, nil)
	defer func() {
		close(sink.block)
		w.Close()
	}()

	// One event is held by the blocked worker, two fill the queue.
	w.Log(context.Background(), Event{Type: "a"})
	deadline := time.Now().Add(time.Second)
	for len(w.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	w.Log(context.Background(), Event{Type: "b"})
	w.Log(context.Background(), Event{Type: "c"})

	if err := w.Log(context.Background(), Event{Type: "d"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}
	if got := w.Stats().DroppedEvents; got != 1 {
		t.Errorf("Expected 1 dropped event, got %d", got)
	}
	if got := collector.Snapshot().AuditDropped["fake"]; got != 1 {
		t.Errorf("Expected 1 recorded drop, got %d", got)
	}
}

func TestWriter_SinkFailureIsLoggedNotReturned(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	logger, logs := logging.NewObservedLogger(zapcore.ErrorLevel)
	w := NewWriter(sink, WriterConfig{Workers: 1}, nil, logger)

	if err := w.Log(context.Background(), Event{Type: "manual.create"}); err != nil {
		t.Fatalf("Expected Log to succeed despite a failing sink, got %v", err)
	}
	w.Close()

	if got := w.Stats().FailedEvents; got != 1 {
		t.Errorf("Expected 1 failed event, got %d", got)
	}
	if logs.FilterMessage("audit sink write failed").Len() != 1 {
		t.Errorf("Expected the failure to be logged, got %v", logs.All())
	}
}

func TestWriter_Closed(t *testing.T) {
	w := NewWriter(&fakeSink{}, WriterConfig{}, nil, nil)
	w.Close()
	w.Close()

	if err := w.Log(context.Background(), Event{Type: "late"}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected ErrWriterClosed, got %v", err)
	}
}

func TestWriter_Flush(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	w := NewWriter(sink, WriterConfig{QueueSize: 10, Workers: 1}, nil, nil)
	defer w.Close()

	for i := 0; i < 3; i++ {
		w.Log(context.Background(), Event{Type: "x"})
	}
	if err := w.Flush(20 * time.Millisecond); !errors.Is(err, ErrFlushTimeout) {
		t.Errorf("Expected ErrFlushTimeout while the sink is blocked, got %v", err)
	}

	close(sink.block)
	if err := w.Flush(time.Second); err != nil {
		t.Errorf("Expected Flush to drain, got %v", err)
	}
}

func TestLogSink(t *testing.T) {
	logger, logs := logging.NewObservedLogger(zapcore.InfoLevel)
	sink := NewLogSink(logger)

	err := sink.Write(context.Background(), Event{Type: "poll.close", Message: "Poll #3 closed", ActorID: 2})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	entries := logs.FilterMessage("Poll #3 closed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["event"] != "poll.close" {
		t.Errorf("Unexpected fields %v", entries[0].ContextMap())
	}
	if sink.Name() != "log" {
		t.Errorf("Expected name log, got %s", sink.Name())
	}
}
