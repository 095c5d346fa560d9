package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository(), ModeDirect, lagos(t), 30)
}

func newApprovalService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository(), ModeApproval, lagos(t), 30)
}

func at(t *testing.T, date string, hour, min int) time.Time {
	t.Helper()
	loc := lagos(t)
	d, err := time.ParseInLocation("2006-01-02", date, loc)
	require.NoError(t, err)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, loc)
}

func TestDirectSignInAndOut(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "u1", at(t, "2026-08-24", 8, 30))
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, StatusPartial, res.Record.Status)
	assert.Equal(t, "2026-08-24", res.Record.Date)
	require.NotNil(t, res.Record.SignIn)
	assert.Nil(t, res.Record.SignOut)

	res, err = svc.SignOut(ctx, "u1", at(t, "2026-08-24", 17, 5))
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, StatusPresent, res.Record.Status)
	assert.Equal(t, "08:30 AM", FormatClock(res.Record.SignIn, svc.Location()))
	assert.Equal(t, "05:05 PM", FormatClock(res.Record.SignOut, svc.Location()))
}

func TestDirectSignInTwiceFailsWithoutMutation(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	first, err := svc.SignIn(ctx, "u1", at(t, "2026-08-24", 8, 30))
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "u1", at(t, "2026-08-24", 9, 0))
	assert.ErrorIs(t, err, ErrAlreadySignedIn)

	rec, err := svc.TodayRecord(ctx, "u1", at(t, "2026-08-24", 9, 0))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first.Record.SignIn.Unix(), rec.SignIn.Unix())
}

func TestSignOutBeforeSignInFails(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	_, err := svc.SignOut(ctx, "u1", at(t, "2026-08-24", 17, 0))
	assert.ErrorIs(t, err, ErrNotSignedIn)

	rec, err := svc.TodayRecord(ctx, "u1", at(t, "2026-08-24", 17, 0))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDoubleSignOutFails(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "u1", at(t, "2026-08-24", 8, 30))
	require.NoError(t, err)
	first, err := svc.SignOut(ctx, "u1", at(t, "2026-08-24", 17, 0))
	require.NoError(t, err)

	_, err = svc.SignOut(ctx, "u1", at(t, "2026-08-24", 17, 30))
	assert.ErrorIs(t, err, ErrAlreadySignedOut)

	rec, err := svc.TodayRecord(ctx, "u1", at(t, "2026-08-24", 17, 30))
	require.NoError(t, err)
	assert.Equal(t, first.Record.SignOut.Unix(), rec.SignOut.Unix())
}

func TestWeekendSignInFails(t *testing.T) {
	svc := newDirectService(t)

	_, err := svc.SignIn(context.Background(), "u1", at(t, "2026-08-22", 10, 0))
	assert.ErrorIs(t, err, ErrNotWeekday)

	_, err = svc.SignOut(context.Background(), "u1", at(t, "2026-08-23", 10, 0))
	assert.ErrorIs(t, err, ErrNotWeekday)
}

func TestApprovalFlow(t *testing.T) {
	svc := newApprovalService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "u1", at(t, "2026-08-27", 8, 45))
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	assert.Equal(t, RequestPending, res.Request.Status)
	assert.Nil(t, res.Record)

	// The ledger holds nothing until an admin decides.
	rec, err := svc.TodayRecord(ctx, "u1", at(t, "2026-08-27", 9, 0))
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Duplicate submissions are refused while one is open.
	_, err = svc.SignIn(ctx, "u1", at(t, "2026-08-27", 9, 0))
	assert.ErrorIs(t, err, ErrRequestPending)

	out, err := svc.SignOut(ctx, "u1", at(t, "2026-08-27", 17, 0))
	require.NoError(t, err)
	require.NotNil(t, out.Request)
	require.NotNil(t, out.Request.SignOut)
	assert.Equal(t, RequestPending, out.Request.Status)

	approved, err := svc.Approve(ctx, res.Request.ID)
	require.NoError(t, err)
	require.NotNil(t, approved)
	assert.Equal(t, StatusPresent, approved.Status)
	assert.Equal(t, "2026-08-27", approved.Date)
}

func TestApproveIsIdempotent(t *testing.T) {
	svc := newApprovalService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "u1", at(t, "2026-08-27", 8, 45))
	require.NoError(t, err)

	first, err := svc.Approve(ctx, res.Request.ID)
	require.NoError(t, err)
	second, err := svc.Approve(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	recs, err := svc.ListForUser(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRejectLeavesNoRecordAndAllowsResubmit(t *testing.T) {
	svc := newApprovalService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "u1", at(t, "2026-08-27", 8, 45))
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, res.Request.ID))

	rec, err := svc.TodayRecord(ctx, "u1", at(t, "2026-08-27", 9, 0))
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Approving after rejection is refused.
	_, err = svc.Approve(ctx, res.Request.ID)
	assert.ErrorIs(t, err, ErrRequestClosed)

	// The user may submit a fresh request the same day.
	again, err := svc.SignIn(ctx, "u1", at(t, "2026-08-27", 10, 0))
	require.NoError(t, err)
	assert.Equal(t, RequestPending, again.Request.Status)
}

func TestApproveUnknownRequest(t *testing.T) {
	svc := newApprovalService(t)
	_, err := svc.Approve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.ErrorIs(t, svc.Reject(context.Background(), "nope"), ErrRequestNotFound)
}

func TestMissedDays(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	// Tuesday has a sign-in without a sign-out; that is partial, not missed.
	_, err := svc.SignIn(ctx, "u1", at(t, "2026-08-25", 9, 0))
	require.NoError(t, err)

	missed, err := svc.MissedDays(ctx, "u1", at(t, "2026-08-26", 8, 0))
	require.NoError(t, err)

	assert.NotContains(t, missed, "2026-08-25", "partial day is not missed")
	assert.NotContains(t, missed, "2026-08-26", "asOf's own day is never missed")
	assert.Contains(t, missed, "2026-08-24", "Monday without a record")
	assert.Contains(t, missed, "2026-08-17", "Monday of the prior week")
	assert.NotContains(t, missed, "2026-08-22")
	assert.NotContains(t, missed, "2026-08-23")

	// 30 weekdays scanned, one had a sign-in.
	assert.Len(t, missed, 29)
	for _, d := range missed {
		day, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		wd := day.Weekday()
		assert.True(t, wd >= time.Monday && wd <= time.Friday, "weekend date %s in missed list", d)
	}

	// Most recent first.
	assert.Equal(t, "2026-08-24", missed[0])
}

func TestUpdateRecordValidation(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "u1", at(t, "2026-08-24", 8, 30))
	require.NoError(t, err)
	id := res.Record.ID

	in := at(t, "2026-08-24", 9, 0)

	// Sign-out before sign-in.
	bad := at(t, "2026-08-24", 8, 0)
	_, err = svc.UpdateRecord(ctx, id, &in, &bad)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	// Sign-out on a different civil day.
	nextDay := at(t, "2026-08-25", 17, 0)
	_, err = svc.UpdateRecord(ctx, id, &in, &nextDay)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	// Sign-out without a sign-in.
	out := at(t, "2026-08-24", 17, 0)
	_, err = svc.UpdateRecord(ctx, id, nil, &out)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	// Valid edit re-derives the status.
	rec, err := svc.UpdateRecord(ctx, id, &in, &out)
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)

	rec, err = svc.UpdateRecord(ctx, id, &in, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, rec.Status)

	_, err = svc.UpdateRecord(ctx, "missing", &in, &out)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestListForUserNewestFirst(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()

	for _, d := range []string{"2026-08-24", "2026-08-26", "2026-08-25"} {
		_, err := svc.SignIn(ctx, "u1", at(t, d, 9, 0))
		require.NoError(t, err)
	}
	_, err := svc.SignIn(ctx, "u2", at(t, "2026-08-24", 9, 0))
	require.NoError(t, err)

	recs, err := svc.ListForUser(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "2026-08-26", recs[0].Date)
	assert.Equal(t, "2026-08-25", recs[1].Date)
	assert.Equal(t, "2026-08-24", recs[2].Date)
}

func TestCountSignedIn(t *testing.T) {
	svc := newDirectService(t)
	ctx := context.Background()
	now := at(t, "2026-08-24", 9, 0)

	_, err := svc.SignIn(ctx, "u1", now)
	require.NoError(t, err)
	_, err = svc.SignIn(ctx, "u2", now)
	require.NoError(t, err)

	n, err := svc.CountSignedIn(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
