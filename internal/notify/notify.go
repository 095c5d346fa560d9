package notify

import (
	"context"
	"fmt"
	"time"
)

// Event is the payload published on the queue when the ledger changes.
type Event struct {
	Kind      string `json:"kind"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Event kinds published by the API and consumed by the worker.
const (
	KindRequestSubmitted = "request_submitted"
	KindRequestApproved  = "request_approved"
	KindRequestRejected  = "request_rejected"
)

// Notification is a message for a user, or for all admins when UserID is nil.
type Notification struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	// ListForUser returns the user's notifications, newest first.
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	// ListForAdmins returns the admin broadcast feed, newest first.
	ListForAdmins(ctx context.Context, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// FromEvent maps a ledger event to the notification it should produce.
// Submissions notify the admin feed; decisions notify the requesting user.
func FromEvent(evt Event) (Notification, bool) {
	switch evt.Kind {
	case KindRequestSubmitted:
		return Notification{
			Kind:      evt.Kind,
			Message:   fmt.Sprintf("New sign-in request for %s awaiting review", evt.Date),
			RequestID: evt.RequestID,
		}, true
	case KindRequestApproved:
		uid := evt.UserID
		return Notification{
			UserID:    &uid,
			Kind:      evt.Kind,
			Message:   fmt.Sprintf("Your attendance for %s was approved", evt.Date),
			RequestID: evt.RequestID,
		}, true
	case KindRequestRejected:
		uid := evt.UserID
		return Notification{
			UserID:    &uid,
			Kind:      evt.Kind,
			Message:   fmt.Sprintf("Your attendance request for %s was rejected, you may submit a new one", evt.Date),
			RequestID: evt.RequestID,
		}, true
	}
	return Notification{}, false
}
