package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/albapepper/matchday/internal/bus"
)

// LogDeliverer writes deliveries to the log. Used when no message broker is
// configured, so the outbox still drains in development.
type LogDeliverer struct {
	logger *slog.Logger
}

// NewLogDeliverer returns a deliverer that logs every message.
func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(_ context.Context, n Delivery) error {
	if n.UID == "" {
		return fmt.Errorf("delivery without recipient")
	}
	d.logger.Info("Notification delivered (log only)",
		"uid", n.UID, "type", n.Type, "origin", n.Origin,
		"priority", n.Priority, "subject", n.Subject, "action_url", n.ActionURL)
	return nil
}

// subjectToken makes a UID safe to use as one NATS subject token.
var subjectToken = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// StreamDeliverer hands deliveries to the push gateway over JetStream, one
// subject per recipient. The outbox row ID is the broker dedup key, so a
// retried batch never delivers twice inside the duplicate window.
type StreamDeliverer struct {
	stream *bus.JetStream
}

// NewStreamDeliverer returns a deliverer publishing on stream.
func NewStreamDeliverer(stream *bus.JetStream) *StreamDeliverer {
	return &StreamDeliverer{stream: stream}
}

func (d *StreamDeliverer) Deliver(ctx context.Context, n Delivery) error {
	if n.UID == "" {
		return fmt.Errorf("delivery without recipient")
	}
	msgID := "notification-" + strconv.FormatInt(n.ID, 10)
	return d.stream.Send(ctx, "notifications."+subjectToken.Replace(n.UID), msgID, map[string]string{
		"Notification-Type": n.Type,
		"Priority":          string(n.Priority),
	}, n)
}
