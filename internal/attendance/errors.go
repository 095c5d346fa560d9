package attendance

import "errors"

// Ledger errors. These are precondition failures surfaced to the user;
// none of them leaves a partial write behind.
var (
	ErrNotWeekday       = errors.New("attendance can only be recorded on weekdays")
	ErrAlreadySignedIn  = errors.New("you have already signed in today")
	ErrRequestPending   = errors.New("a sign-in request for today is already awaiting review")
	ErrNotSignedIn      = errors.New("you have not signed in today")
	ErrAlreadySignedOut = errors.New("you have already signed out today")
	ErrInvalidInterval  = errors.New("sign-out must be after sign-in on the same day")

	ErrRecordNotFound  = errors.New("attendance record not found")
	ErrRequestNotFound = errors.New("sign-in request not found")
	ErrRequestClosed   = errors.New("sign-in request has already been decided")
)
