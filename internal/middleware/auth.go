package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/credstore"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/service"
)

const (
	HeaderAPIKey    = "X-NX-APIKEY"
	HeaderAPISecret = "X-NX-SECRET"

	ContextClientKey     = "client"
	ContextCredentialKey = "credential"
)

// AuthMiddleware verifies the key pair on every request, resolves the owning
// client, and stores both in the gin context for downstream handlers.
func AuthMiddleware(creds *credstore.Store, clients service.ClientRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		publicKey := c.GetHeader(HeaderAPIKey)
		secret := c.GetHeader(HeaderAPISecret)
		if publicKey == "" || secret == "" {
			reject(c, apperrors.New(apperrors.ErrInvalidCredential, "missing API key or secret", nil))
			return
		}

		cred, err := creds.Verify(c.Request.Context(), publicKey, secret)
		if err != nil {
			reject(c, apperrors.Wrap(err))
			return
		}

		if len(cred.IPAllowlist) > 0 && !containsIP(cred.IPAllowlist, c.ClientIP()) {
			reject(c, apperrors.New(apperrors.ErrInsufficientPermission, "source IP not in allowlist", nil))
			return
		}

		client, err := clients.GetByID(c.Request.Context(), cred.ClientID)
		if err != nil {
			reject(c, apperrors.New(apperrors.ErrInvalidCredential, "credential owner not found", err))
			return
		}
		if client.Status != model.ClientActive {
			reject(c, apperrors.New(apperrors.ErrInsufficientPermission, "client account is not active", nil))
			return
		}

		c.Set(ContextClientKey, client)
		c.Set(ContextCredentialKey, cred)
		c.Next()
	}
}

// ClientFrom returns the authenticated client placed by AuthMiddleware.
func ClientFrom(c *gin.Context) (*model.InstitutionalClient, bool) {
	v, ok := c.Get(ContextClientKey)
	if !ok {
		return nil, false
	}
	client, ok := v.(*model.InstitutionalClient)
	return client, ok
}

// CredentialFrom returns the verified credential placed by AuthMiddleware.
func CredentialFrom(c *gin.Context) (*model.APICredential, bool) {
	v, ok := c.Get(ContextCredentialKey)
	if !ok {
		return nil, false
	}
	cred, ok := v.(*model.APICredential)
	return cred, ok
}

func containsIP(allowlist []string, ip string) bool {
	for _, allowed := range allowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}

func reject(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}
