package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OnboardRequest is the incoming JSON body for institutional onboarding.
type OnboardRequest struct {
	CompanyName    string          `json:"company_name" binding:"required"`
	RequestedBy    string          `json:"requested_by" binding:"required"`
	DeclaredVolume decimal.Decimal `json:"declared_volume"`
	MinDeposit     decimal.Decimal `json:"min_deposit"`
}

type OnboardResponse struct {
	ClientID       string `json:"client_id"`
	AccountManager string `json:"account_manager"`
	Tier           Tier   `json:"tier"`
}

// CredentialRequest asks for a new API key pair for an existing client.
type CredentialRequest struct {
	ClientID    string       `json:"client_id" binding:"required"`
	Permissions []Permission `json:"permissions" binding:"required"`
	IPAllowlist []string     `json:"ip_allowlist,omitempty"`
}

// CredentialResponse is the only place the plaintext secret ever appears.
type CredentialResponse struct {
	CredentialID string `json:"credential_id"`
	PublicKey    string `json:"public_key"`
	Secret       string `json:"secret"`
}

// OrderRequest is a single order submission.
type OrderRequest struct {
	Symbol string          `json:"symbol" binding:"required"`
	Market string          `json:"market,omitempty"` // spot (default), margin, futures
	Side   string          `json:"side" binding:"required,oneof=BUY SELL"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Price  decimal.Decimal `json:"price,omitempty"`
}

// OrderResult is the per-order outcome of a bulk batch. Index matches the
// position of the order in the submitted batch.
type OrderResult struct {
	Index   int    `json:"index"`
	OrderID string `json:"order_id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkOrderRequest is a multi-order submission.
type BulkOrderRequest struct {
	Orders []OrderRequest `json:"orders" binding:"required"`
}

type BulkOrderResponse struct {
	BatchID   string        `json:"batch_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Results   []OrderResult `json:"results"`
}

// ClientAnalytics is the response of the analytics endpoint.
type ClientAnalytics struct {
	ClientID       string          `json:"client_id"`
	Tier           Tier            `json:"tier"`
	AUM            decimal.Decimal `json:"aum"`
	Performance30D decimal.Decimal `json:"performance_30d"`
	RiskScore      decimal.Decimal `json:"risk_score"`
	TrailingVolume decimal.Decimal `json:"trailing_volume"`
	OrderCount30D  int64           `json:"order_count_30d"`
	FeesSaved      decimal.Decimal `json:"fees_saved"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
