package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"internlog/internal/attendance"
	"internlog/internal/notify"
	"internlog/internal/profile"
	"internlog/internal/queue"
)

type testEnv struct {
	router *gin.Engine
	q      *queue.InMemory
}

func newTestEnv(t *testing.T, mode attendance.Mode) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)
	// Monday morning in Lagos.
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, loc)

	att := attendance.NewService(attendance.NewMemoryRepository(), mode, loc, 30)
	profiles := profile.NewService(profile.NewMemoryRepository())
	q := queue.NewInMemory(16)

	h := New(att, profiles, notify.NewMemoryRepository(), q, AuthConfig{
		Issuer:     "internlog-test",
		SigningKey: "test-signing-key",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	h.now = func() time.Time { return now }

	r := gin.New()
	h.Routes(r)
	return &testEnv{router: r, q: q}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func (e *testEnv) signupAndLogin(t *testing.T, name, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"name": name, "email": email, "password": "password-123", "intern_id": "INT-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": email, "password": "password-123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["access_token"].(string)
}

func (e *testEnv) setupAdmin(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/admin-setup", "", gin.H{
		"name": "Admin", "email": "admin@example.com", "password": "admin-password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "admin@example.com", "password": "admin-password"})
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["access_token"].(string)
}

func TestDirectSignInAndOutOverHTTP(t *testing.T) {
	env := newTestEnv(t, attendance.ModeDirect)
	token := env.signupAndLogin(t, "Jane", "jane@example.com")

	w := env.do(t, http.MethodPost, "/v1/attendance/sign-in", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "partial", rec["status"])
	assert.Equal(t, "09:00 AM", rec["sign_in_display"])

	// Duplicate sign-in fails with a readable reason.
	w = env.do(t, http.MethodPost, "/v1/attendance/sign-in", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/attendance/sign-out", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec = decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "present", rec["status"])

	w = env.do(t, http.MethodGet, "/v1/attendance/today", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	today := decode(t, w)
	assert.Equal(t, "2026-08-24", today["date"])
	assert.NotNil(t, today["record"])
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, attendance.ModeApproval)
	adminToken := env.setupAdmin(t)
	internToken := env.signupAndLogin(t, "Jane", "jane@example.com")

	// Submitting a sign-in yields a pending request, not a ledger record.
	w := env.do(t, http.MethodPost, "/v1/attendance/sign-in", internToken, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	req := decode(t, w)["request"].(map[string]any)
	assert.Equal(t, "pending", req["status"])
	reqID := req["id"].(string)

	// The submission event reaches the worker queue.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := env.q.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		assert.Equal(t, notify.KindRequestSubmitted, msg.Type)
	case <-ctx.Done():
		t.Fatal("no event published for submitted request")
	}

	w = env.do(t, http.MethodGet, "/v1/admin/requests", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	requests := decode(t, w)["requests"].([]any)
	require.Len(t, requests, 1)

	w = env.do(t, http.MethodPost, "/v1/admin/requests/"+reqID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "partial", rec["status"], "sign-in only, no sign-out yet")

	// Approving twice does not duplicate the record.
	w = env.do(t, http.MethodPost, "/v1/admin/requests/"+reqID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/v1/admin/records", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]any)
	assert.Len(t, records, 1)
}

func TestRejectOverHTTP(t *testing.T) {
	env := newTestEnv(t, attendance.ModeApproval)
	adminToken := env.setupAdmin(t)
	internToken := env.signupAndLogin(t, "Jane", "jane@example.com")

	w := env.do(t, http.MethodPost, "/v1/attendance/sign-in", internToken, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	reqID := decode(t, w)["request"].(map[string]any)["id"].(string)

	w = env.do(t, http.MethodPost, "/v1/admin/requests/"+reqID+"/reject", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// No ledger record was created.
	w = env.do(t, http.MethodGet, "/v1/admin/records", adminToken, nil)
	assert.Len(t, decode(t, w)["records"].([]any), 0)

	// The intern may resubmit the same day.
	w = env.do(t, http.MethodPost, "/v1/attendance/sign-in", internToken, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRoleGate(t *testing.T) {
	env := newTestEnv(t, attendance.ModeDirect)
	internToken := env.signupAndLogin(t, "Jane", "jane@example.com")

	w := env.do(t, http.MethodGet, "/v1/admin/records", internToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/v1/attendance/records", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/v1/attendance/records", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatsAndExport(t *testing.T) {
	env := newTestEnv(t, attendance.ModeDirect)
	adminToken := env.setupAdmin(t)
	janeToken := env.signupAndLogin(t, "Doe, Jane", "jane@example.com")
	_ = env.signupAndLogin(t, "Bob", "bob@example.com")

	w := env.do(t, http.MethodPost, "/v1/attendance/sign-in", janeToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/v1/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(2), stats["total_interns"])
	assert.Equal(t, float64(1), stats["present_today"])
	assert.Equal(t, float64(1), stats["absent_today"])

	w = env.do(t, http.MethodGet, "/v1/admin/records/export", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	body := w.Body.String()
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name,InternID,Date,SignInTime,SignOutTime,Status", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], `"Doe, Jane"`, "names with commas are quoted")
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t, attendance.ModeDirect)
	w := env.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"name": "Jane", "email": "jane@example.com", "password": "password-123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "jane@example.com", "password": "password-123"})
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode(t, w)["refresh_token"].(string)

	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The old refresh token is revoked after rotation.
	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMissedDaysOverHTTP(t *testing.T) {
	env := newTestEnv(t, attendance.ModeDirect)
	token := env.signupAndLogin(t, "Jane", "jane@example.com")

	w := env.do(t, http.MethodGet, "/v1/attendance/missed", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	missed := decode(t, w)["missed_days"].([]any)
	// 30 weekdays scanned before Monday 2026-08-24, none attended.
	assert.Len(t, missed, 30)
	assert.Equal(t, "2026-08-21", missed[0], "most recent weekday first")
}
