// Package httpapi holds the HTTP handlers. Keep these thin: parse/validate
// input, call internal services, return JSON.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"collections-platform/internal/audit"
	"collections-platform/internal/auth"
	"collections-platform/internal/calls"
	"collections-platform/internal/campaigns"
	"collections-platform/internal/debtors"
	"collections-platform/internal/promises"
	"collections-platform/internal/reporting"
	"collections-platform/internal/sms"
	"collections-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Auth      *auth.Manager
	Debtors   *debtors.Service
	Calls     *calls.Service
	SMS       *sms.Service
	Promises  *promises.Service
	Campaigns *campaigns.Service
	Reports   *reporting.Service
	Audit     *audit.Service
}

// statusFor maps service errors onto HTTP statuses. Unknown errors stay 500
// so internals never leak through the API surface.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, debtors.ErrNotFound),
		errors.Is(err, calls.ErrNotFound),
		errors.Is(err, promises.ErrNotFound),
		errors.Is(err, sms.ErrNotFound),
		errors.Is(err, campaigns.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, debtors.ErrInvalidArgument),
		errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, promises.ErrInvalidArgument),
		errors.Is(err, sms.ErrInvalidArgument),
		errors.Is(err, campaigns.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, calls.ErrDebtorOptedOut),
		errors.Is(err, sms.ErrDebtorOptedOut):
		return http.StatusConflict, "debtor has opted out"
	case errors.Is(err, campaigns.ErrNotStartable),
		errors.Is(err, campaigns.ErrNoRecipients):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func abortWith(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func identity(c *gin.Context) (clientID, userID string, ok bool) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil || clientID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return "", "", false
	}
	userID, _ = auth.UserID(c.Request.Context())
	return clientID, userID, true
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: credential validation is delegated to the identity provider fronting
// this API; this endpoint only mints tokens for already-verified principals.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ClientID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, client_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.ClientID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, claims.ClientID, claims.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Debtors ---

func (h Handlers) CreateDebtor(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	var req debtors.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := h.Debtors.Create(c.Request.Context(), clientID, req)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h Handlers) GetDebtor(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	d, err := h.Debtors.Get(c.Request.Context(), clientID, c.Param("debtor_id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) ListDebtors(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	f := debtors.ListFilter{
		Stage:  debtors.DelinquencyStage(c.Query("stage")),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("opted_out"); v != "" {
		b := v == "true"
		f.OptedOut = &b
	}
	items, total, err := h.Debtors.List(c.Request.Context(), clientID, f)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h Handlers) UpdateDebtor(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	var req debtors.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := h.Debtors.Update(c.Request.Context(), clientID, c.Param("debtor_id"), req)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) OptOutDebtor(c *gin.Context) {
	clientID, userID, ok := identity(c)
	if !ok {
		return
	}
	d, err := h.Debtors.OptOut(c.Request.Context(), clientID, c.Param("debtor_id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), clientID, audit.EventDebtorOptedOut, userID, d.ID, "")
	c.JSON(http.StatusOK, d)
}

// --- Calls ---

func (h Handlers) TriggerCall(c *gin.Context) {
	clientID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req calls.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.TriggerCall(c.Request.Context(), clientID, req)
	if err != nil {
		abortWith(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), clientID, audit.EventCallTriggered, userID, call.ID, "debtor "+req.DebtorID)
	c.JSON(http.StatusAccepted, call)
}

func (h Handlers) GetCall(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), clientID, c.Param("call_id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) ListCalls(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	items, total, err := h.Calls.List(c.Request.Context(), clientID, calls.ListFilter{
		Status:     calls.CallStatus(c.Query("status")),
		Outcome:    calls.CallOutcome(c.Query("outcome")),
		DebtorID:   c.Query("debtor_id"),
		CampaignID: c.Query("campaign_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// --- SMS ---

func (h Handlers) SendSMS(c *gin.Context) {
	clientID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req sms.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := h.SMS.SendTemplated(c.Request.Context(), clientID, req)
	if err != nil {
		abortWith(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), clientID, audit.EventSMSSent, userID, m.ID, req.Template)
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) ListSMS(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	items, total, err := h.SMS.List(c.Request.Context(), clientID, sms.ListFilter{
		DebtorID: c.Query("debtor_id"),
		Status:   sms.MessageStatus(c.Query("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h Handlers) ListSMSTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": sms.TemplateNames()})
}

// SMSStatusWebhook receives delivery-status callbacks from the telephony
// provider. Public route; validate provider signatures in production.
func (h Handlers) SMSStatusWebhook(c *gin.Context) {
	providerSID := c.PostForm("MessageSid")
	token := c.PostForm("MessageStatus")
	if providerSID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "MessageSid required"})
		return
	}
	m, err := h.SMS.ApplyProviderStatus(c.Request.Context(), providerSID, token)
	if err != nil {
		abortWith(c, err)
		return
	}
	logger.FromGin(c).Info("sms status callback", "provider_sid", providerSID, "status", m.Status)
	c.Status(http.StatusNoContent)
}

// --- Promises ---

func (h Handlers) ListPromises(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	items, total, err := h.Promises.List(c.Request.Context(), clientID, promises.ListFilter{
		Status:   promises.PromiseStatus(c.Query("status")),
		DebtorID: c.Query("debtor_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

type promiseStatusRequest struct {
	Status promises.PromiseStatus `json:"status"`
}

func (h Handlers) UpdatePromiseStatus(c *gin.Context) {
	clientID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req promiseStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := h.Promises.UpdateStatus(c.Request.Context(), clientID, c.Param("promise_id"), req.Status)
	if err != nil {
		abortWith(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), clientID, audit.EventPromiseStatusChange, userID, p.ID, string(req.Status))
	c.JSON(http.StatusOK, p)
}

// SweepOverduePromises flips pending promises whose date has passed to
// overdue. Run on demand or by an external scheduler hitting this endpoint.
func (h Handlers) SweepOverduePromises(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	n, err := h.Promises.SweepOverdue(c.Request.Context(), clientID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_overdue": n})
}

// --- Campaigns ---

func (h Handlers) CreateCampaign(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	var req campaigns.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	camp, err := h.Campaigns.Create(c.Request.Context(), clientID, req)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, camp)
}

func (h Handlers) StartCampaign(c *gin.Context) {
	clientID, userID, ok := identity(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Start(c.Request.Context(), clientID, c.Param("campaign_id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), clientID, audit.EventCampaignStarted, userID, camp.ID, camp.Name)
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) GetCampaign(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Get(c.Request.Context(), clientID, c.Param("campaign_id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	items, err := h.Campaigns.List(c.Request.Context(), clientID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type campaignStatusRequest struct {
	Status campaigns.CampaignStatus `json:"status"`
}

func (h Handlers) SetCampaignStatus(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	var req campaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	camp, err := h.Campaigns.SetStatus(c.Request.Context(), clientID, c.Param("campaign_id"), req.Status)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

// --- Reporting ---

func (h Handlers) Dashboard(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	d, err := h.Reports.Dashboard(c.Request.Context(), clientID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) RecentActivity(c *gin.Context) {
	clientID, _, ok := identity(c)
	if !ok {
		return
	}
	limit, _ := pageParams(c)
	events, err := h.Audit.Recent(c.Request.Context(), clientID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}
