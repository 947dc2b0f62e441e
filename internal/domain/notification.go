package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationScheduled NotificationStatus = "scheduled"
	NotificationSending   NotificationStatus = "sending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ClaimLease is how long a claimed row may stay in sending before another
// dispatch pass may claim it again. Rows left behind by a crashed worker are
// delivered late rather than never.
const ClaimLease = 5 * time.Minute

// Notification is an outbox row: one recipient of one event instance.
type Notification struct {
	ID           int64
	EventID      uuid.UUID
	Kind         EventKind
	SubjectID    int64
	RecipientUID string
	Subject      string
	Body         string
	Type         string
	Origin       string
	Priority     Priority
	ActionURL    string
	Status       NotificationStatus
	ScheduledFor time.Time
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claimable reports whether a dispatch pass at now may claim n: a due
// scheduled row, or a sending row whose claim lease has run out.
func (n Notification) Claimable(now time.Time) bool {
	switch n.Status {
	case NotificationScheduled:
		return !n.ScheduledFor.After(now)
	case NotificationSending:
		return !n.UpdatedAt.After(now.Add(-ClaimLease))
	}
	return false
}
