// Package bus carries lifecycle events from the components that commit them
// to the components that react: notification dispatch, the live feed, the
// scoreboard cache and the JetStream event stream.
//
// Publishing is fire-and-forget. A subscriber that fails logs and moves on;
// it never reaches back into the transaction that produced the event.
package bus

import (
	"context"

	"github.com/albapepper/matchday/internal/domain"
)

// Publisher receives committed lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt domain.Event)
}

// Func adapts a function to a Publisher.
type Func func(ctx context.Context, evt domain.Event)

func (f Func) Publish(ctx context.Context, evt domain.Event) { f(ctx, evt) }

// Fanout publishes to every member in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt domain.Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, evt)
		}
	}
}

// Discard drops every event.
var Discard Publisher = Func(func(context.Context, domain.Event) {})

// Recorder keeps published events in memory. Safe for concurrent use.
type Recorder struct {
	ch chan domain.Event
}

// NewRecorder returns a recorder buffering up to n events.
func NewRecorder(n int) *Recorder {
	return &Recorder{ch: make(chan domain.Event, n)}
}

func (r *Recorder) Publish(_ context.Context, evt domain.Event) {
	select {
	case r.ch <- evt:
	default:
	}
}

// Drain returns every event recorded so far.
func (r *Recorder) Drain() []domain.Event {
	var out []domain.Event
	for {
		select {
		case evt := <-r.ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}
