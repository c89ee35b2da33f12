package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/credstore"
	"github.com/nexora-labs/instgate/internal/middleware"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/service"
	"github.com/shopspring/decimal"
)

// InstitutionalHandler is the HTTP surface of the gateway: onboarding,
// credential issuance, trading, and analytics.
type InstitutionalHandler struct {
	onboarding *service.OnboardingService
	trading    *service.TradingService
	analytics  *service.AnalyticsService
	creds      *credstore.Store
}

func NewInstitutionalHandler(onboarding *service.OnboardingService, trading *service.TradingService, analytics *service.AnalyticsService, creds *credstore.Store) *InstitutionalHandler {
	return &InstitutionalHandler{
		onboarding: onboarding,
		trading:    trading,
		analytics:  analytics,
		creds:      creds,
	}
}

// Onboard provisions a new institutional client end to end and returns the
// one-time credential material alongside the assigned tier.
func (h *InstitutionalHandler) Onboard(c *gin.Context) {
	var req model.OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	res, err := h.onboarding.Onboard(c.Request.Context(), req)
	if err != nil {
		c.Error(wrapOnboarding(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"client_id":       res.ClientID,
		"tier":            res.Tier,
		"account_manager": res.AccountManager,
		"credential": model.CredentialResponse{
			CredentialID: res.Credential.CredentialID,
			PublicKey:    res.Credential.PublicKey,
			Secret:       res.Credential.Secret,
		},
	})
}

// IssueCredential mints an additional key pair for an existing client. The
// secret in the response is the only plaintext copy that will ever exist.
func (h *InstitutionalHandler) IssueCredential(c *gin.Context) {
	var req model.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	client, err := h.onboarding.GetClient(c.Request.Context(), req.ClientID)
	if err != nil {
		c.Error(err)
		return
	}

	issued, err := h.creds.Issue(c.Request.Context(), client.ID, req.Permissions,
		client.Tier.Spec().RequestsPerMinute, req.IPAllowlist)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, model.CredentialResponse{
		CredentialID: issued.CredentialID,
		PublicKey:    issued.PublicKey,
		Secret:       issued.Secret,
	})
}

// RevokeCredential deactivates a key pair immediately.
func (h *InstitutionalHandler) RevokeCredential(c *gin.Context) {
	client, ok := middleware.ClientFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrInvalidCredential, "unauthenticated request", nil))
		return
	}

	credID := c.Param("credentialId")
	target, err := h.creds.Get(c.Request.Context(), credID)
	if err != nil {
		c.Error(err)
		return
	}
	if target.ClientID != client.ID {
		c.Error(apperrors.New(apperrors.ErrInsufficientPermission, "credential belongs to another client", nil))
		return
	}

	if err := h.creds.Revoke(c.Request.Context(), credID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credential_id": credID, "status": model.CredentialRevoked})
}

// PlaceOrder submits one order through the executor.
func (h *InstitutionalHandler) PlaceOrder(c *gin.Context) {
	client, cred, ok := h.identity(c)
	if !ok {
		return
	}

	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	orderID, feeRate, err := h.trading.PlaceOrder(c.Request.Context(), client, cred, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"fee_rate": feeRate,
	})
}

// BulkOrders submits a batch. Partial success is the normal outcome: callers
// must inspect per-order results, not just the HTTP status.
func (h *InstitutionalHandler) BulkOrders(c *gin.Context) {
	client, cred, ok := h.identity(c)
	if !ok {
		return
	}

	var req model.BulkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.trading.SubmitBatch(c.Request.Context(), client, cred, req.Orders)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetClient returns the caller's own client record.
func (h *InstitutionalHandler) GetClient(c *gin.Context) {
	client, _, ok := h.identity(c)
	if !ok {
		return
	}
	if id := c.Param("clientId"); id != client.ID {
		c.Error(apperrors.New(apperrors.ErrInsufficientPermission, "cannot read another client's record", nil))
		return
	}
	c.JSON(http.StatusOK, client)
}

// GetAnalytics returns the caller's analytics view.
func (h *InstitutionalHandler) GetAnalytics(c *gin.Context) {
	client, _, ok := h.identity(c)
	if !ok {
		return
	}
	if id := c.Param("clientId"); id != client.ID {
		c.Error(apperrors.New(apperrors.ErrInsufficientPermission, "cannot read another client's analytics", nil))
		return
	}

	view, err := h.analytics.GetClientAnalytics(c.Request.Context(), client.ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateVolume is the admin entry point for the trailing-volume refresh job.
func (h *InstitutionalHandler) UpdateVolume(c *gin.Context) {
	var req struct {
		TrailingVolume decimal.Decimal `json:"trailing_volume" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if req.TrailingVolume.IsNegative() {
		c.Error(apperrors.NewInvalidRequest("trailing_volume must not be negative"))
		return
	}

	client, err := h.onboarding.UpdateTrailingVolume(c.Request.Context(), c.Param("clientId"), req.TrailingVolume)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// Offboard removes a client and everything it owns. Admin only.
func (h *InstitutionalHandler) Offboard(c *gin.Context) {
	clientID := c.Param("clientId")
	if err := h.onboarding.Offboard(c.Request.Context(), clientID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_id": clientID, "status": "offboarded"})
}

func (h *InstitutionalHandler) identity(c *gin.Context) (*model.InstitutionalClient, *model.APICredential, bool) {
	client, ok := middleware.ClientFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrInvalidCredential, "unauthenticated request", nil))
		return nil, nil, false
	}
	cred, ok := middleware.CredentialFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrInvalidCredential, "unauthenticated request", nil))
		return nil, nil, false
	}
	return client, cred, true
}

// wrapOnboarding maps stage failures onto the onboarding error type while
// letting request-validation errors through unchanged.
func wrapOnboarding(err error) error {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.New(apperrors.ErrOnboardingFailed, err.Error(), err)
}
