// Package executor wraps the trade executor collaborator. The gateway never
// looks inside execution: it hands over an order plus the quoted fee rate and
// gets back an order ID or a typed failure.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexora-labs/instgate/internal/config"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Executor is the call contract the gateway assumes from the trade executor.
type Executor interface {
	Execute(ctx context.Context, clientID string, order model.OrderRequest, feeRate decimal.Decimal) (orderID string, err error)
}

// HTTPExecutor submits orders to the executor's REST endpoint. Calls are
// paced by a shared limiter and guarded by a circuit breaker so a dying
// executor fails fast instead of tying up batch workers.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewHTTPExecutor(cfg *config.Config) *HTTPExecutor {
	timeout := time.Duration(cfg.Executor.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	qps := rate.Limit(cfg.Executor.QPS)
	if qps <= 0 {
		qps = rate.Inf
	}
	burst := cfg.Executor.Burst
	if burst <= 0 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "trade-executor",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPExecutor{
		baseURL: cfg.Executor.BaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(qps, burst),
		breaker: breaker,
	}
}

type executeRequest struct {
	ClientID string          `json:"client_id"`
	Symbol   string          `json:"symbol"`
	Market   string          `json:"market"`
	Side     string          `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price,omitempty"`
	FeeRate  decimal.Decimal `json:"fee_rate"`
}

type executeResponse struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error,omitempty"`
}

func (e *HTTPExecutor) Execute(ctx context.Context, clientID string, order model.OrderRequest, feeRate decimal.Decimal) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", apperrors.New(apperrors.ErrExecutionFailed, "order dispatch cancelled", err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.submit(ctx, clientID, order, feeRate)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		metrics.ExecutorBreakerOpen.Inc()
		return "", apperrors.New(apperrors.ErrUpstream, "trade executor unavailable", err)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (e *HTTPExecutor) submit(ctx context.Context, clientID string, order model.OrderRequest, feeRate decimal.Decimal) (string, error) {
	body, err := json.Marshal(executeRequest{
		ClientID: clientID,
		Symbol:   order.Symbol,
		Market:   order.Market,
		Side:     order.Side,
		Amount:   order.Amount,
		Price:    order.Price,
		FeeRate:  feeRate,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", apperrors.New(apperrors.ErrExecutionFailed, "executor call failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.New(apperrors.ErrExecutionFailed, "executor response unreadable", err)
	}

	var out executeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperrors.New(apperrors.ErrExecutionFailed, "executor response malformed", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("executor returned status %d", resp.StatusCode)
		}
		return "", apperrors.New(apperrors.ErrExecutionFailed, msg, nil)
	}
	if out.OrderID == "" {
		return "", apperrors.New(apperrors.ErrExecutionFailed, "executor returned no order id", nil)
	}
	return out.OrderID, nil
}
