// Package notifications turns lifecycle events into per-user notifications
// and delivers them.
//
// Pipeline: resolve recipients → dedupe → render → persist in one batch.
// A background dispatch worker hands due rows to a Deliverer.
//
// Delivery is fire-and-warn: failures are logged and the row is marked
// failed, but nothing here ever rolls back or blocks a lifecycle transition.
package notifications

import (
	"context"
	"time"

	"github.com/albapepper/matchday/internal/domain"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultDispatchInterval = 30 * time.Second
	defaultDispatchBatch    = 100
	quietStartHour          = 22 // 10 PM local
	quietEndHour            = 9  // 9 AM local
)

// Origins group notifications by the part of the platform that raised them.
const (
	OriginTournaments = "torneos"
	OriginMatches     = "partidos"
)

// --------------------------------------------------------------------------
// Delivery contract
// --------------------------------------------------------------------------

// Delivery is one message handed to the delivery collaborator.
type Delivery struct {
	ID        int64           `json:"id"`
	UID       string          `json:"uid"`
	Subject   string          `json:"subject"`
	Body      string          `json:"body"`
	Type      string          `json:"type"`
	Origin    string          `json:"origin"`
	Priority  domain.Priority `json:"priority"`
	ActionURL string          `json:"action_url,omitempty"`
}

// Deliverer sends a notification to one user.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// DeliveryFrom maps an outbox row to a Delivery.
func DeliveryFrom(n domain.Notification) Delivery {
	return Delivery{
		ID:        n.ID,
		UID:       n.RecipientUID,
		Subject:   n.Subject,
		Body:      n.Body,
		Type:      n.Type,
		Origin:    n.Origin,
		Priority:  n.Priority,
		ActionURL: n.ActionURL,
	}
}
