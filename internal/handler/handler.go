package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"internlog/internal/attendance"
	"internlog/internal/auth"
	"internlog/internal/metrics"
	"internlog/internal/notify"
	"internlog/internal/profile"
	"internlog/internal/queue"
)

// AuthConfig carries the token-issuing parameters.
type AuthConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler wires HTTP routes to the ledger and profile services.
type Handler struct {
	att      *attendance.Service
	profiles *profile.Service
	notes    notify.Repository
	q        queue.Queue
	authCfg  AuthConfig

	// now is swapped in tests to pin the clock to a known weekday.
	now func() time.Time
}

// New creates a handler.
func New(att *attendance.Service, profiles *profile.Service, notes notify.Repository, q queue.Queue, authCfg AuthConfig) *Handler {
	return &Handler{
		att:      att,
		profiles: profiles,
		notes:    notes,
		q:        q,
		authCfg:  authCfg,
		now:      time.Now,
	}
}

// Routes registers all application routes on the engine.
func (h *Handler) Routes(r *gin.Engine) {
	r.POST("/v1/auth/signup", h.Signup)
	r.POST("/v1/auth/admin-setup", h.AdminSetup)
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	user := r.Group("/v1", auth.RequireUser(h.authCfg.SigningKey, h.authCfg.Issuer))
	user.POST("/auth/logout", h.Logout)
	user.GET("/me", h.Me)
	user.POST("/attendance/sign-in", h.SignIn)
	user.POST("/attendance/sign-out", h.SignOut)
	user.GET("/attendance/today", h.Today)
	user.GET("/attendance/records", h.MyRecords)
	user.GET("/attendance/missed", h.MissedDays)
	user.GET("/notifications", h.Notifications)
	user.POST("/notifications/:id/read", h.MarkNotificationRead)

	admin := user.Group("/admin", auth.RequireRole(string(profile.RoleAdmin), string(profile.RoleHR)))
	admin.GET("/records", h.AdminRecords)
	admin.GET("/records/export", h.ExportCSV)
	admin.GET("/requests", h.PendingRequests)
	admin.GET("/stats", h.Stats)

	// Decisions and edits are admin-only; hr keeps read access above.
	decide := user.Group("/admin", auth.RequireRole(string(profile.RoleAdmin)))
	decide.POST("/requests/:id/approve", h.Approve)
	decide.POST("/requests/:id/reject", h.Reject)
	decide.PUT("/records/:id", h.UpdateRecord)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrRecordNotFound),
		errors.Is(err, attendance.ErrRequestNotFound),
		errors.Is(err, profile.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrRequestClosed):
		return http.StatusConflict
	case errors.Is(err, profile.ErrInvalidCredentials),
		errors.Is(err, profile.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, attendance.ErrNotWeekday),
		errors.Is(err, attendance.ErrAlreadySignedIn),
		errors.Is(err, attendance.ErrRequestPending),
		errors.Is(err, attendance.ErrNotSignedIn),
		errors.Is(err, attendance.ErrAlreadySignedOut),
		errors.Is(err, attendance.ErrInvalidInterval),
		errors.Is(err, profile.ErrEmailTaken),
		errors.Is(err, profile.ErrAdminExists):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// recordView adds wall-clock display strings to a record.
type recordView struct {
	attendance.Record
	SignInDisplay  string `json:"sign_in_display"`
	SignOutDisplay string `json:"sign_out_display"`
}

func (h *Handler) view(rec attendance.Record) recordView {
	loc := h.att.Location()
	return recordView{
		Record:         rec,
		SignInDisplay:  attendance.FormatClock(rec.SignIn, loc),
		SignOutDisplay: attendance.FormatClock(rec.SignOut, loc),
	}
}

func (h *Handler) views(recs []attendance.Record) []recordView {
	out := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.view(rec))
	}
	return out
}

// publish hands a ledger event to the worker queue. Delivery failures are
// logged and never fail the originating request.
func (h *Handler) publish(c *gin.Context, evt notify.Event) {
	if h.q == nil {
		return
	}
	body, _ := json.Marshal(evt)
	if err := h.q.Publish(c.Request.Context(), queue.Message{Type: evt.Kind, Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// ---------- Auth ----------

type signupRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	InternID    string `json:"intern_id"`
	PhoneNumber string `json:"phone_number"`
}

// Signup registers an intern account. The profile row is written in the
// same call, so it is readable immediately.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.profiles.SignUp(c.Request.Context(), profile.SignUpInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		InternID:    req.InternID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": p})
}

// AdminSetup registers the first admin account; refused once one exists.
func (h *Handler) AdminSetup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.profiles.SetupAdmin(c.Request.Context(), profile.SignUpInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": p})
}

func (h *Handler) issueTokens(c *gin.Context, p profile.Profile) {
	tokens, err := auth.Issue(p.ID, string(p.Role), h.authCfg.Issuer, h.authCfg.SigningKey, h.authCfg.AccessTTL, h.authCfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := h.profiles.StoreRefreshToken(c.Request.Context(), p.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		log.Printf("store refresh token failed: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"profile":       p,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a token pair with the profile.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.profiles.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issueTokens(c, p)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token into a new pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := auth.Parse(req.RefreshToken, h.authCfg.SigningKey, h.authCfg.Issuer); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	p, err := h.profiles.RotateRefreshToken(c.Request.Context(), req.RefreshToken, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issueTokens(c, p)
}

// Logout revokes the presented refresh token.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.profiles.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	p, err := h.profiles.GetByID(c.Request.Context(), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// ---------- Attendance ----------

// SignIn records or requests today's sign-in for the caller.
func (h *Handler) SignIn(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	res, err := h.att.SignIn(c.Request.Context(), claims.Subject, h.now())
	metrics.SignIns.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Request != nil {
		h.publish(c, notify.Event{
			Kind:      notify.KindRequestSubmitted,
			UserID:    claims.Subject,
			RequestID: res.Request.ID,
			Date:      res.Request.Date,
		})
		c.JSON(http.StatusAccepted, gin.H{"request": res.Request})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": h.view(*res.Record)})
}

// SignOut completes today's attendance for the caller.
func (h *Handler) SignOut(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	res, err := h.att.SignOut(c.Request.Context(), claims.Subject, h.now())
	metrics.SignOuts.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Request != nil {
		c.JSON(http.StatusAccepted, gin.H{"request": res.Request})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": h.view(*res.Record)})
}

// Today returns the caller's record and open request for the current day.
func (h *Handler) Today(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	now := h.now()
	rec, err := h.att.TodayRecord(c.Request.Context(), claims.Subject, now)
	if err != nil {
		h.fail(c, err)
		return
	}
	req, err := h.att.TodayRequest(c.Request.Context(), claims.Subject, now)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"date": attendance.DateOf(now, h.att.Location()), "record": nil, "pending_request": req}
	if rec != nil {
		resp["record"] = h.view(*rec)
	}
	c.JSON(http.StatusOK, resp)
}

func pagination(c *gin.Context) (int, int) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	return limit, offset
}

// MyRecords returns the caller's records, newest first.
func (h *Handler) MyRecords(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	limit, offset := pagination(c)
	recs, err := h.att.ListForUser(c.Request.Context(), claims.Subject, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": h.views(recs)})
}

// MissedDays returns the caller's missed weekdays in the scan window.
func (h *Handler) MissedDays(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	missed, err := h.att.MissedDays(c.Request.Context(), claims.Subject, h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	if missed == nil {
		missed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"missed_days": missed})
}

// Notifications returns the caller's feed; admins and hr see the broadcast
// queue of submitted requests.
func (h *Handler) Notifications(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	limit, _ := pagination(c)
	var (
		items []notify.Notification
		err   error
	)
	if claims.Role == string(profile.RoleAdmin) || claims.Role == string(profile.RoleHR) {
		items, err = h.notes.ListForAdmins(c.Request.Context(), limit)
	} else {
		items, err = h.notes.ListForUser(c.Request.Context(), claims.Subject, limit)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkNotificationRead flags a notification as seen.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.notes.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// ---------- Admin ----------

func listFilter(c *gin.Context) attendance.ListFilter {
	limit, offset := pagination(c)
	return attendance.ListFilter{
		UserID: c.Query("user_id"),
		Status: attendance.Status(c.Query("status")),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Limit:  limit,
		Offset: offset,
	}
}

// AdminRecords lists records across users with optional filters.
func (h *Handler) AdminRecords(c *gin.Context) {
	recs, err := h.att.ListAll(c.Request.Context(), listFilter(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": h.views(recs)})
}

// PendingRequests lists requests awaiting review.
func (h *Handler) PendingRequests(c *gin.Context) {
	limit, offset := pagination(c)
	reqs, err := h.att.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	if reqs == nil {
		reqs = []attendance.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// Approve materializes a pending request into the ledger.
func (h *Handler) Approve(c *gin.Context) {
	rec, err := h.att.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Approvals.Inc()
	if rec != nil {
		h.publish(c, notify.Event{
			Kind:      notify.KindRequestApproved,
			UserID:    rec.UserID,
			RequestID: c.Param("id"),
			Date:      rec.Date,
		})
		c.JSON(http.StatusOK, gin.H{"record": h.view(*rec)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": nil})
}

// Reject closes a pending request without a ledger write.
func (h *Handler) Reject(c *gin.Context) {
	reqID := c.Param("id")
	req, err := h.att.Request(c.Request.Context(), reqID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.att.Reject(c.Request.Context(), reqID); err != nil {
		h.fail(c, err)
		return
	}
	metrics.Rejections.Inc()
	h.publish(c, notify.Event{
		Kind:      notify.KindRequestRejected,
		UserID:    req.UserID,
		RequestID: reqID,
		Date:      req.Date,
	})
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

type updateRecordRequest struct {
	SignInTime  *time.Time `json:"sign_in_time"`
	SignOutTime *time.Time `json:"sign_out_time"`
}

// UpdateRecord is the admin edit path; status is re-derived from the times.
func (h *Handler) UpdateRecord(c *gin.Context) {
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.att.UpdateRecord(c.Request.Context(), c.Param("id"), req.SignInTime, req.SignOutTime)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": h.view(*rec)})
}

// Stats returns the admin dashboard counters.
func (h *Handler) Stats(c *gin.Context) {
	total, err := h.profiles.CountInterns(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	present, err := h.att.CountSignedIn(c.Request.Context(), h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	absent := total - present
	if absent < 0 {
		absent = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"total_interns": total,
		"present_today": present,
		"absent_today":  absent,
	})
}

// ExportCSV streams the filtered attendance report.
func (h *Handler) ExportCSV(c *gin.Context) {
	f := listFilter(c)
	if c.Query("limit") == "" {
		f.Limit = 10000
	}
	recs, err := h.att.ListAll(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	people, err := h.profiles.List(c.Request.Context(), "")
	if err != nil {
		h.fail(c, err)
		return
	}
	byID := make(map[string]profile.Profile, len(people))
	for _, p := range people {
		byID[p.ID] = p
	}

	loc := h.att.Location()
	rows := make([]attendance.ExportRow, 0, len(recs))
	for _, rec := range recs {
		name, internID := "Unknown", "Unknown"
		if p, ok := byID[rec.UserID]; ok {
			name = p.Name
			if p.InternID != nil {
				internID = *p.InternID
			}
		}
		rows = append(rows, attendance.ExportRow{
			Name:        name,
			InternID:    internID,
			Date:        rec.Date,
			SignInTime:  attendance.FormatClock(rec.SignIn, loc),
			SignOutTime: attendance.FormatClock(rec.SignOut, loc),
			Status:      string(rec.Status),
		})
	}

	filename := fmt.Sprintf("attendance-report-%s.csv", attendance.DateOf(h.now(), loc))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	if err := attendance.WriteCSV(c.Writer, rows); err != nil {
		log.Printf("csv export failed: %v", err)
	}
}
