package attendance

import (
	"context"
	"time"
)

// ListFilter narrows record listings. Zero values mean "no filter".
type ListFilter struct {
	UserID string
	Status Status
	From   string // inclusive civil date
	To     string // inclusive civil date
	Limit  int
	Offset int
}

// Repository is the storage boundary for the ledger. Two implementations
// exist: Postgres for production and an in-memory map for tests and dev.
type Repository interface {
	GetRecord(ctx context.Context, userID, date string) (*Record, error)
	GetRecordByID(ctx context.Context, id string) (*Record, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	// SetRecordSignIn fills the sign-in time only when none is set yet.
	SetRecordSignIn(ctx context.Context, id string, at time.Time) (bool, error)
	// SetRecordSignOut fills the sign-out time only when none is set yet,
	// so a duplicate submit loses deterministically.
	SetRecordSignOut(ctx context.Context, id string, at time.Time) (bool, error)
	UpdateRecordTimes(ctx context.Context, id string, signIn, signOut *time.Time, status Status) error
	ListRecords(ctx context.Context, f ListFilter) ([]Record, error)
	// SignInDates returns the civil dates in [from, to] on which the user
	// has a record with a non-null sign-in.
	SignInDates(ctx context.Context, userID, from, to string) (map[string]struct{}, error)
	CountSignedIn(ctx context.Context, date string) (int, error)

	GetRequest(ctx context.Context, id string) (*Request, error)
	// OpenRequest returns the user's pending request for the date, if any.
	OpenRequest(ctx context.Context, userID, date string) (*Request, error)
	InsertRequest(ctx context.Context, req Request) (Request, error)
	SetRequestSignOut(ctx context.Context, id string, at time.Time) (bool, error)
	// ApproveRequest atomically marks a pending request approved and
	// upserts the matching record keyed on (user_id, date). The bool is
	// false when the request was no longer pending.
	ApproveRequest(ctx context.Context, id string) (*Record, bool, error)
	RejectRequest(ctx context.Context, id string) (bool, error)
	ListRequests(ctx context.Context, status RequestStatus, limit, offset int) ([]Request, error)
}
