package attendance

import (
	"context"
	"time"
)

// Mode selects which workflow is the system of record. A deployment runs
// one mode; the two are never mixed.
type Mode string

const (
	// ModeDirect writes sign-ins and sign-outs straight to the ledger.
	ModeDirect Mode = "direct"
	// ModeApproval routes sign-ins and sign-outs through an admin-reviewed
	// pending queue; only approval materializes a ledger record.
	ModeApproval Mode = "approval"
)

// SignInResult carries whichever artifact the active mode produced.
type SignInResult struct {
	Record  *Record  `json:"record,omitempty"`
	Request *Request `json:"request,omitempty"`
}

// Service enforces the sign-in/out rules and, in approval mode, mediates
// between intern submissions and admin decisions.
type Service struct {
	repo   Repository
	mode   Mode
	loc    *time.Location
	window int
}

// NewService creates the ledger engine. All civil-day computation uses loc.
func NewService(repo Repository, mode Mode, loc *time.Location, missedWindow int) *Service {
	if mode != ModeDirect {
		mode = ModeApproval
	}
	if loc == nil {
		loc = time.UTC
	}
	if missedWindow <= 0 {
		missedWindow = 30
	}
	return &Service{repo: repo, mode: mode, loc: loc, window: missedWindow}
}

// Mode returns the active workflow mode.
func (s *Service) Mode() Mode { return s.mode }

// Location returns the civil timezone used for day boundaries and display.
func (s *Service) Location() *time.Location { return s.loc }

// SignIn records (direct mode) or requests (approval mode) a sign-in for
// the user at now. Fails without writing when now is not a weekday or a
// sign-in already exists or is pending for the day.
func (s *Service) SignIn(ctx context.Context, userID string, now time.Time) (SignInResult, error) {
	if !IsWeekday(now, s.loc) {
		return SignInResult{}, ErrNotWeekday
	}
	date := DateOf(now, s.loc)

	rec, err := s.repo.GetRecord(ctx, userID, date)
	if err != nil {
		return SignInResult{}, err
	}
	if rec != nil && rec.SignIn != nil {
		return SignInResult{}, ErrAlreadySignedIn
	}

	if s.mode == ModeApproval {
		open, err := s.repo.OpenRequest(ctx, userID, date)
		if err != nil {
			return SignInResult{}, err
		}
		if open != nil {
			return SignInResult{}, ErrRequestPending
		}
		req, err := s.repo.InsertRequest(ctx, Request{
			UserID: userID,
			Date:   date,
			SignIn: now,
			Status: RequestPending,
		})
		if err != nil {
			return SignInResult{}, err
		}
		return SignInResult{Request: &req}, nil
	}

	// Direct mode. An admin-created shell record without a sign-in may
	// already exist for the day; fill it conditionally rather than insert.
	if rec != nil {
		applied, err := s.repo.SetRecordSignIn(ctx, rec.ID, now)
		if err != nil {
			return SignInResult{}, err
		}
		if !applied {
			return SignInResult{}, ErrAlreadySignedIn
		}
		updated, err := s.repo.GetRecordByID(ctx, rec.ID)
		if err != nil {
			return SignInResult{}, err
		}
		return SignInResult{Record: updated}, nil
	}

	created, err := s.repo.InsertRecord(ctx, Record{
		UserID: userID,
		Date:   date,
		SignIn: &now,
		Status: StatusPartial,
	})
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Record: &created}, nil
}

// SignOut completes the day. Direct mode sets the sign-out time on today's
// record with a conditional update, so a concurrent duplicate submit fails
// instead of double-applying. Approval mode attaches the sign-out time to
// the open pending request.
func (s *Service) SignOut(ctx context.Context, userID string, now time.Time) (SignInResult, error) {
	if !IsWeekday(now, s.loc) {
		return SignInResult{}, ErrNotWeekday
	}
	date := DateOf(now, s.loc)

	if s.mode == ModeApproval {
		req, err := s.repo.OpenRequest(ctx, userID, date)
		if err != nil {
			return SignInResult{}, err
		}
		if req == nil {
			return SignInResult{}, ErrNotSignedIn
		}
		if req.SignOut != nil {
			return SignInResult{}, ErrAlreadySignedOut
		}
		applied, err := s.repo.SetRequestSignOut(ctx, req.ID, now)
		if err != nil {
			return SignInResult{}, err
		}
		if !applied {
			return SignInResult{}, ErrAlreadySignedOut
		}
		updated, err := s.repo.GetRequest(ctx, req.ID)
		if err != nil {
			return SignInResult{}, err
		}
		return SignInResult{Request: updated}, nil
	}

	rec, err := s.repo.GetRecord(ctx, userID, date)
	if err != nil {
		return SignInResult{}, err
	}
	if rec == nil || rec.SignIn == nil {
		return SignInResult{}, ErrNotSignedIn
	}
	if rec.SignOut != nil {
		return SignInResult{}, ErrAlreadySignedOut
	}
	applied, err := s.repo.SetRecordSignOut(ctx, rec.ID, now)
	if err != nil {
		return SignInResult{}, err
	}
	if !applied {
		return SignInResult{}, ErrAlreadySignedOut
	}
	updated, err := s.repo.GetRecordByID(ctx, rec.ID)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Record: updated}, nil
}

// Approve moves a pending request to approved and materializes the ledger
// record for its (user, day). Approving an already-approved request is a
// no-op that returns the existing record.
func (s *Service) Approve(ctx context.Context, requestID string) (*Record, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	switch req.Status {
	case RequestApproved:
		return s.repo.GetRecord(ctx, req.UserID, req.Date)
	case RequestRejected:
		return nil, ErrRequestClosed
	}

	rec, applied, err := s.repo.ApproveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race with another admin. Re-read to decide idempotently.
		latest, err := s.repo.GetRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Status == RequestApproved {
			return s.repo.GetRecord(ctx, latest.UserID, latest.Date)
		}
		return nil, ErrRequestClosed
	}
	return rec, nil
}

// Request returns a request by identifier or ErrRequestNotFound.
func (s *Service) Request(ctx context.Context, id string) (*Request, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// Reject closes a pending request without touching the ledger. The user
// may submit a fresh request for the same day afterwards.
func (s *Service) Reject(ctx context.Context, requestID string) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	switch req.Status {
	case RequestRejected:
		return nil
	case RequestApproved:
		return ErrRequestClosed
	}
	applied, err := s.repo.RejectRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if !applied {
		latest, err := s.repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Status == RequestRejected {
			return nil
		}
		return ErrRequestClosed
	}
	return nil
}

// MissedDays walks backward from the day before asOf, weekdays only,
// scanning the configured window of weekdays, and returns the dates with
// no recorded sign-in, most recent first. asOf's own day is never counted.
func (s *Service) MissedDays(ctx context.Context, userID string, asOf time.Time) ([]string, error) {
	day := asOf.In(s.loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)

	dates := make([]string, 0, s.window)
	for scanned := 0; scanned < s.window; {
		day = day.AddDate(0, 0, -1)
		if !IsWeekday(day, s.loc) {
			continue
		}
		dates = append(dates, day.Format("2006-01-02"))
		scanned++
	}
	if len(dates) == 0 {
		return nil, nil
	}

	// dates is ordered newest to oldest; the range is [last, first].
	signedIn, err := s.repo.SignInDates(ctx, userID, dates[len(dates)-1], dates[0])
	if err != nil {
		return nil, err
	}
	missed := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := signedIn[d]; !ok {
			missed = append(missed, d)
		}
	}
	return missed, nil
}

// TodayRecord returns the user's record for now's civil day, or nil.
func (s *Service) TodayRecord(ctx context.Context, userID string, now time.Time) (*Record, error) {
	return s.repo.GetRecord(ctx, userID, DateOf(now, s.loc))
}

// TodayRequest returns the user's open pending request for now's civil
// day, or nil. Always nil in direct mode.
func (s *Service) TodayRequest(ctx context.Context, userID string, now time.Time) (*Request, error) {
	if s.mode != ModeApproval {
		return nil, nil
	}
	return s.repo.OpenRequest(ctx, userID, DateOf(now, s.loc))
}

// ListForUser returns the user's records, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return s.repo.ListRecords(ctx, ListFilter{UserID: userID, Limit: limit, Offset: offset})
}

// ListAll returns records across users, newest first, with optional filters.
func (s *Service) ListAll(ctx context.Context, f ListFilter) ([]Record, error) {
	return s.repo.ListRecords(ctx, f)
}

// ListPending returns requests awaiting review, newest first.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]Request, error) {
	return s.repo.ListRequests(ctx, RequestPending, limit, offset)
}

// CountSignedIn reports how many users have a sign-in on the given civil day.
func (s *Service) CountSignedIn(ctx context.Context, now time.Time) (int, error) {
	return s.repo.CountSignedIn(ctx, DateOf(now, s.loc))
}

// UpdateRecord is the admin edit path. Both timestamps are replaced and
// the status re-derived; a sign-out before the sign-in or on a different
// civil day is refused.
func (s *Service) UpdateRecord(ctx context.Context, recordID string, signIn, signOut *time.Time) (*Record, error) {
	rec, err := s.repo.GetRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	if signOut != nil {
		if signIn == nil {
			return nil, ErrInvalidInterval
		}
		if !signOut.After(*signIn) || DateOf(*signIn, s.loc) != DateOf(*signOut, s.loc) {
			return nil, ErrInvalidInterval
		}
	}
	status := DeriveStatus(signIn, signOut)
	if err := s.repo.UpdateRecordTimes(ctx, recordID, signIn, signOut, status); err != nil {
		return nil, err
	}
	return s.repo.GetRecordByID(ctx, recordID)
}
