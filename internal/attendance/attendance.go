package attendance

import "time"

// Status classifies a user's participation for one civil day.
type Status string

const (
	StatusPresent Status = "present"
	StatusPartial Status = "partial"
	StatusAbsent  Status = "absent"
)

// RequestStatus is the lifecycle state of a pending sign-in request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Record is one user's attendance for one civil day.
type Record struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Date      string     `json:"date"`
	SignIn    *time.Time `json:"sign_in_time"`
	SignOut   *time.Time `json:"sign_out_time"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Request is a sign-in/out submission awaiting an admin decision.
// At most one pending request exists per user per day.
type Request struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Date      string        `json:"date"`
	SignIn    time.Time     `json:"sign_in_time"`
	SignOut   *time.Time    `json:"sign_out_time"`
	Status    RequestStatus `json:"status"`
	DecidedAt *time.Time    `json:"decided_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// DeriveStatus computes a record's status from its two timestamps.
// The stored status column is a cache of this function, rewritten on
// every timestamp write.
func DeriveStatus(signIn, signOut *time.Time) Status {
	switch {
	case signIn != nil && signOut != nil:
		return StatusPresent
	case signIn != nil:
		return StatusPartial
	default:
		return StatusAbsent
	}
}

// DateOf returns the civil date of t in loc as YYYY-MM-DD.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// IsWeekday reports whether t falls on Monday through Friday in loc.
func IsWeekday(t time.Time, loc *time.Location) bool {
	wd := t.In(loc).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}
