package bus

import (
	"context"
	"log/slog"

	"github.com/albapepper/matchday/internal/domain"
)

// DefaultQueueSize is the buffer used by cmd/api for outbound publishers.
const DefaultQueueSize = 1024

type queued struct {
	ctx context.Context
	evt domain.Event
}

// Queue hands events to a slower publisher (outbox insert, JetStream) on a
// single goroutine, in publish order, so callers return as soon as the event
// is buffered. When the buffer is full Publish delivers inline instead of
// dropping.
type Queue struct {
	next   Publisher
	ch     chan queued
	done   chan struct{}
	logger *slog.Logger
}

// NewQueue buffers up to size events for next.
func NewQueue(next Publisher, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{next: next, ch: make(chan queued, size), done: make(chan struct{}), logger: logger}
}

func (q *Queue) Publish(ctx context.Context, evt domain.Event) {
	select {
	case q.ch <- queued{ctx: ctx, evt: evt}:
	default:
		q.logger.Warn("Event queue full, publishing inline", "event_id", evt.ID, "kind", evt.Kind)
		q.next.Publish(ctx, evt)
	}
}

// Run publishes queued events until ctx is done, then flushes whatever is
// still buffered and returns.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case item := <-q.ch:
			q.next.Publish(item.ctx, item.evt)
		case <-ctx.Done():
			for {
				select {
				case item := <-q.ch:
					q.next.Publish(item.ctx, item.evt)
				default:
					q.logger.Info("Event queue stopped")
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (q *Queue) Wait() {
	<-q.done
}
