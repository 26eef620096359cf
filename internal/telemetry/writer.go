package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

// DefaultQueueSize is used when NewWriter is given a non-positive size.
const DefaultQueueSize = 256

// Logger defines the logging interface used by the Writer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer persists events from a bounded queue with a single goroutine.
type Writer struct {
	store   Store
	mirrors []Mirror
	logger  Logger

	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex // Guards closed against concurrent Enqueue
	closed bool

	written      atomic.Uint64
	failed       atomic.Uint64
	mirrorFailed atomic.Uint64
}

// NewWriter starts the writer goroutine. Call Close to drain and stop it.
func NewWriter(store Store, queueSize int, mirrors ...Mirror) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &Writer{
		store:   store,
		mirrors: mirrors,
		logger:  noopLogger{},
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// SetLogger sets the logger. Call before the first Enqueue.
func (w *Writer) SetLogger(logger Logger) {
	w.logger = logger
}

// Enqueue queues ev for persistence, blocking while the queue is full.
//
// Returns ctx.Err() if ctx ends first and ErrWriterClosed after Close.
func (w *Writer) Enqueue(ctx context.Context, ev Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
}

// Stats returns counters and the current queue depth.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written:      w.written.Load(),
		Failed:       w.failed.Load(),
		MirrorFailed: w.mirrorFailed.Load(),
		Queued:       len(w.queue),
	}
}

func (w *Writer) run() {
	defer close(w.done)

	// Queued events are written even while shutting down.
	ctx := context.Background()
	for ev := range w.queue {
		w.write(ctx, ev)
	}
}

func (w *Writer) write(ctx context.Context, ev Event) {
	id, err := w.store.Record(ctx, ev)
	if err != nil {
		w.failed.Add(1)
		w.logger.Error("dropping telemetry event",
			"session_id", ev.SessionID,
			"entity_id", ev.EntityID,
			"kind", database.KindOf(err).String(),
			"error", err,
		)
		return
	}
	ev.ID = id
	w.written.Add(1)

	for _, m := range w.mirrors {
		if err := m.Mirror(ctx, ev); err != nil {
			w.mirrorFailed.Add(1)
			w.logger.Warn("telemetry mirror failed",
				"mirror", m.Name(),
				"entity_id", ev.EntityID,
				"error", err,
			)
		}
	}
}
