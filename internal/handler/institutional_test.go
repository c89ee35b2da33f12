package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nexora-labs/instgate/internal/config"
	"github.com/nexora-labs/instgate/internal/credstore"
	"github.com/nexora-labs/instgate/internal/middleware"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/ratelimit"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/nexora-labs/instgate/internal/service"
	"github.com/shopspring/decimal"
)

const testAdminKey = "test-admin-key"

// stubExecutor is hit concurrently by bulk chunk goroutines, so the call
// counter sits behind a mutex.
type stubExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *stubExecutor) Execute(ctx context.Context, clientID string, order model.OrderRequest, feeRate decimal.Decimal) (string, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()

	if order.Symbol == "FAIL/USD" {
		return "", fmt.Errorf("executor rejected order")
	}
	return fmt.Sprintf("ord-%d", n), nil
}

func (e *stubExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type gatewayFixture struct {
	router   *gin.Engine
	creds    *credstore.Store
	credRepo *repository.MemoryCredentialRepo
	onb      *service.OnboardingService
	exec     *stubExecutor
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Auth.AdminKey = testAdminKey
	cfg.Metrics.Enabled = false

	clients := repository.NewMemoryClientRepo()
	channels := repository.NewMemorySupportChannelRepo()
	volumes := repository.NewMemoryVolumeStore()
	credRepo := repository.NewMemoryCredentialRepo()
	creds := credstore.New(credRepo)
	fees := service.NewFeeEngine(repository.NewMemoryFeeTierRepo())
	exec := &stubExecutor{}

	onb := service.NewOnboardingService(clients, channels, creds, fees)
	trading := service.NewTradingService(exec, fees, volumes, 10)
	analytics := service.NewAnalyticsService(clients, volumes, fees, nil)

	limiter := ratelimit.New(0)
	t.Cleanup(limiter.Stop)

	h := NewInstitutionalHandler(onb, trading, analytics, creds)
	return &gatewayFixture{
		router:   NewRouter(cfg, h, creds, clients, limiter),
		creds:    creds,
		credRepo: credRepo,
		onb:      onb,
		exec:     exec,
	}
}

func (f *gatewayFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{middleware.HeaderAdminKey: testAdminKey}
}

// onboardClient provisions a client over the wire and returns its ID plus
// credential headers for subsequent requests.
func (f *gatewayFixture) onboardClient(t *testing.T, volume int64) (string, map[string]string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/institutional/onboard", model.OnboardRequest{
		CompanyName:    "Test Capital",
		RequestedBy:    "ops",
		DeclaredVolume: decimal.NewFromInt(volume),
	}, adminHeaders())
	if rec.Code != http.StatusCreated {
		t.Fatalf("onboard returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ClientID   string                   `json:"client_id"`
		Credential model.CredentialResponse `json:"credential"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid onboard response: %v", err)
	}
	return resp.ClientID, map[string]string{
		middleware.HeaderAPIKey:    resp.Credential.PublicKey,
		middleware.HeaderAPISecret: resp.Credential.Secret,
	}
}

func TestOnboardRequiresAdminKey(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.do(t, http.MethodPost, "/institutional/onboard", model.OnboardRequest{
		CompanyName: "No Key Capital",
		RequestedBy: "ops",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", rec.Code)
	}
}

func TestOnboardReturnsSecretExactlyOnce(t *testing.T) {
	f := newGatewayFixture(t)

	clientID, headers := f.onboardClient(t, 0)
	if clientID == "" {
		t.Fatalf("missing client_id")
	}
	if key := headers[middleware.HeaderAPIKey]; len(key) < 4 || key[:3] != "NX_" {
		t.Fatalf("public key %q lacks NX_ prefix", key)
	}

	// the record endpoint must never expose secret material again
	rec := f.do(t, http.MethodGet, "/institutional/"+clientID, nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("get client returned %d: %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
		t.Fatalf("client record leaks secret material: %s", rec.Body.String())
	}
}

func TestTradeRejectsBadCredentials(t *testing.T) {
	f := newGatewayFixture(t)
	f.onboardClient(t, 0)

	rec := f.do(t, http.MethodPost, "/institutional/trade", model.OrderRequest{
		Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1),
	}, map[string]string{
		middleware.HeaderAPIKey:    "NX_deadbeef",
		middleware.HeaderAPISecret: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if errResp.Code != "INVALID_CREDENTIAL" {
		t.Fatalf("expected INVALID_CREDENTIAL, got %q", errResp.Code)
	}
	if f.exec.callCount() != 0 {
		t.Fatalf("rejected request must not reach the executor")
	}
}

func TestTradeHappyPath(t *testing.T) {
	f := newGatewayFixture(t)
	_, headers := f.onboardClient(t, 0)

	rec := f.do(t, http.MethodPost, "/institutional/trade", model.OrderRequest{
		Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(2), Price: decimal.NewFromInt(100),
	}, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("trade returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OrderID string          `json:"order_id"`
		FeeRate decimal.Decimal `json:"fee_rate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid trade response: %v", err)
	}
	if resp.OrderID == "" {
		t.Fatalf("missing order_id")
	}
	if !resp.FeeRate.Equal(model.TierBronze.Spec().SpotFee) {
		t.Fatalf("bronze spot fee expected, got %s", resp.FeeRate)
	}
}

func TestRateLimitReturns429WithResetAt(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, _ := f.onboardClient(t, 0)

	// issue a tiny budget so the test can exhaust it
	issued, err := f.creds.Issue(context.Background(), clientID,
		[]model.Permission{model.PermTrading}, 2, nil)
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	headers := map[string]string{
		middleware.HeaderAPIKey:    issued.PublicKey,
		middleware.HeaderAPISecret: issued.Secret,
	}
	order := model.OrderRequest{Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1)}

	for i := 0; i < 2; i++ {
		if rec := f.do(t, http.MethodPost, "/institutional/trade", order, headers); rec.Code != http.StatusOK {
			t.Fatalf("request %d returned %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodPost, "/institutional/trade", order, headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}

	var errResp struct {
		Code    string `json:"code"`
		ResetAt int64  `json:"reset_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if errResp.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED, got %q", errResp.Code)
	}
	if errResp.ResetAt == 0 {
		t.Fatalf("rate limit error must carry reset_at")
	}
}

func TestBulkOrdersPartialSuccess(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, _ := f.onboardClient(t, 0)

	issued, err := f.creds.Issue(context.Background(), clientID,
		[]model.Permission{model.PermTrading, model.PermBulkTrading}, 60, nil)
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	headers := map[string]string{
		middleware.HeaderAPIKey:    issued.PublicKey,
		middleware.HeaderAPISecret: issued.Secret,
	}

	rec := f.do(t, http.MethodPost, "/institutional/trade/bulk", model.BulkOrderRequest{
		Orders: []model.OrderRequest{
			{Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1)},
			{Symbol: "FAIL/USD", Side: "SELL", Amount: decimal.NewFromInt(1)},
			{Symbol: "ETH/USD", Side: "BUY", Amount: decimal.NewFromInt(1)},
		},
	}, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp model.BulkOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid bulk response: %v", err)
	}
	if resp.Total != 3 || resp.Succeeded != 2 || resp.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
	if resp.Results[1].Success || resp.Results[1].Error == "" {
		t.Fatalf("order 2 should have failed with a reason: %+v", resp.Results[1])
	}
}

func TestBulkOrdersConcurrentDispatchCountsEveryCall(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, _ := f.onboardClient(t, 0)

	issued, err := f.creds.Issue(context.Background(), clientID,
		[]model.Permission{model.PermTrading, model.PermBulkTrading}, 60, nil)
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	headers := map[string]string{
		middleware.HeaderAPIKey:    issued.PublicKey,
		middleware.HeaderAPISecret: issued.Secret,
	}

	// several full chunks of parallel executor calls
	orders := make([]model.OrderRequest, 25)
	for i := range orders {
		orders[i] = model.OrderRequest{Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1)}
	}

	rec := f.do(t, http.MethodPost, "/institutional/trade/bulk", model.BulkOrderRequest{Orders: orders}, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp model.BulkOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid bulk response: %v", err)
	}
	if resp.Succeeded != 25 {
		t.Fatalf("expected 25 successes, got %d", resp.Succeeded)
	}
	if got := f.exec.callCount(); got != 25 {
		t.Fatalf("expected 25 executor calls, got %d", got)
	}
}

func TestBulkOrdersRequirePermission(t *testing.T) {
	f := newGatewayFixture(t)
	_, headers := f.onboardClient(t, 0) // onboarding credential is TRADING only

	rec := f.do(t, http.MethodPost, "/institutional/trade/bulk", model.BulkOrderRequest{
		Orders: []model.OrderRequest{{Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1)}},
	}, headers)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClientsCannotReadEachOther(t *testing.T) {
	f := newGatewayFixture(t)
	_, headersA := f.onboardClient(t, 0)
	clientB, _ := f.onboardClient(t, 0)

	rec := f.do(t, http.MethodGet, "/institutional/"+clientB, nil, headersA)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 reading another client, got %d", rec.Code)
	}
}

func TestAnalyticsReflectsTradedVolume(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, headers := f.onboardClient(t, 0)

	order := model.OrderRequest{Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(2), Price: decimal.NewFromInt(500)}
	if rec := f.do(t, http.MethodPost, "/institutional/trade", order, headers); rec.Code != http.StatusOK {
		t.Fatalf("trade returned %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/institutional/"+clientID+"/analytics", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics returned %d: %s", rec.Code, rec.Body.String())
	}

	var view model.ClientAnalytics
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid analytics response: %v", err)
	}
	if view.OrderCount30D != 1 {
		t.Fatalf("expected 1 order in trailing window, got %d", view.OrderCount30D)
	}
	if !view.TrailingVolume.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected notional 1000, got %s", view.TrailingVolume)
	}
}

func TestRevokedCredentialIsRejected(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, headers := f.onboardClient(t, 0)

	if err := f.creds.Revoke(context.Background(), firstCredentialID(t, f, clientID)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/institutional/trade", model.OrderRequest{
		Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1),
	}, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked credential, got %d", rec.Code)
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if errResp.Code != "REVOKED_CREDENTIAL" {
		t.Fatalf("expected REVOKED_CREDENTIAL, got %q", errResp.Code)
	}
}

func TestAdminVolumeUpdatePromotesTier(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, _ := f.onboardClient(t, 0)

	rec := f.do(t, http.MethodPost, "/institutional/"+clientID+"/volume",
		map[string]string{"trailing_volume": "12000000"}, adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("volume update returned %d: %s", rec.Code, rec.Body.String())
	}

	var client model.InstitutionalClient
	if err := json.Unmarshal(rec.Body.Bytes(), &client); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if client.Tier != model.TierEnterprise {
		t.Fatalf("expected enterprise after 12M volume, got %s", client.Tier)
	}
}

func TestOffboardKillsAccess(t *testing.T) {
	f := newGatewayFixture(t)
	clientID, headers := f.onboardClient(t, 0)

	rec := f.do(t, http.MethodDelete, "/institutional/"+clientID, nil, adminHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("offboard returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/institutional/trade", model.OrderRequest{
		Symbol: "BTC/USD", Side: "BUY", Amount: decimal.NewFromInt(1),
	}, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after offboarding, got %d", rec.Code)
	}
}

func firstCredentialID(t *testing.T, f *gatewayFixture, clientID string) string {
	t.Helper()
	creds, err := f.credRepo.ListByClient(context.Background(), clientID)
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(creds) != 1 {
		t.Fatalf("expected exactly one credential, got %d", len(creds))
	}
	return creds[0].ID
}
