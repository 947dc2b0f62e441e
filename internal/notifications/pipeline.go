package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
)

// Dispatcher fans a lifecycle event out to its recipients' outboxes.
type Dispatcher struct {
	store    storage.Store
	renderer *Renderer
	location *time.Location
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewDispatcher wires a Dispatcher. loc is the club timezone used for quiet
// hours; nil means UTC.
func NewDispatcher(store storage.Store, renderer *Renderer, loc *time.Location, clock clockwork.Clock, logger *slog.Logger) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{store: store, renderer: renderer, location: loc, clock: clock, logger: logger}
}

// Dispatch resolves recipients for evt, dedupes them and persists one
// notification per recipient with a single batched insert. It returns the
// number of rows written.
func (d *Dispatcher) Dispatch(ctx context.Context, evt domain.Event) (int, error) {
	uids, err := Recipients(ctx, d.store, evt)
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		d.logger.Debug("No recipients", "kind", evt.Kind, "subject_id", evt.SubjectID())
		return 0, nil
	}

	batch := d.Build(evt, uids)
	inserted, err := d.store.InsertNotifications(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert notifications: %w", err)
	}
	d.logger.Info("Notifications scheduled",
		"kind", evt.Kind, "subject_id", evt.SubjectID(), "recipients", len(uids), "inserted", inserted)
	return inserted, nil
}

// Build renders the outbox rows of evt for the given recipients.
func (d *Dispatcher) Build(evt domain.Event, uids []string) []domain.Notification {
	now := d.clock.Now().UTC()
	subject, body := d.renderer.Render(evt)
	origin, priority := classify(evt)
	url := d.renderer.ActionURL(evt)
	when := ScheduleDelivery(now, priority, d.location)

	batch := make([]domain.Notification, 0, len(uids))
	for _, uid := range uids {
		batch = append(batch, domain.Notification{
			EventID:      evt.ID,
			Kind:         evt.Kind,
			SubjectID:    evt.SubjectID(),
			RecipientUID: uid,
			Subject:      subject,
			Body:         body,
			Type:         string(evt.Kind),
			Origin:       origin,
			Priority:     priority,
			ActionURL:    url,
			Status:       domain.NotificationScheduled,
			ScheduledFor: when,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return batch
}

// Publish lets the dispatcher subscribe to the lifecycle bus. Only finished
// matches are handled here; tournament events arrive through the scheduler.
func (d *Dispatcher) Publish(ctx context.Context, evt domain.Event) {
	if evt.Kind != domain.KindMatchTransitioned || evt.To != domain.MatchFinished {
		return
	}
	if _, err := d.Dispatch(ctx, evt); err != nil {
		d.logger.Warn("Failed to schedule match notifications",
			"match_id", evt.SubjectID(), "error", err)
	}
}
