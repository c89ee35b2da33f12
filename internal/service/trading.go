package service

import (
	"context"
	"fmt"

	"github.com/nexora-labs/instgate/internal/executor"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/pkg/logger"
	"github.com/nexora-labs/instgate/internal/pkg/metrics"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/shopspring/decimal"
)

// TradingService fronts the trade executor for single and bulk submissions.
// It never retries: authentication, permission, and execution failures all
// surface to the caller with a typed reason.
type TradingService struct {
	exec      executor.Executor
	fees      *FeeEngine
	volumes   repository.VolumeStore
	chunkSize int
}

func NewTradingService(exec executor.Executor, fees *FeeEngine, volumes repository.VolumeStore, chunkSize int) *TradingService {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &TradingService{
		exec:      exec,
		fees:      fees,
		volumes:   volumes,
		chunkSize: chunkSize,
	}
}

// PlaceOrder dispatches one order and returns the executor's order ID along
// with the fee rate it was quoted at.
func (s *TradingService) PlaceOrder(ctx context.Context, client *model.InstitutionalClient, cred *model.APICredential, req model.OrderRequest) (string, decimal.Decimal, error) {
	market, err := s.validateOrder(cred, req)
	if err != nil {
		return "", decimal.Zero, err
	}

	feeRate, err := s.fees.Quote(ctx, client, market)
	if err != nil {
		return "", decimal.Zero, err
	}

	orderID, err := s.exec.Execute(ctx, client.ID, req, feeRate)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("failed", string(market)).Inc()
		return "", decimal.Zero, err
	}

	metrics.OrdersTotal.WithLabelValues("success", string(market)).Inc()
	s.recordVolume(ctx, client.ID, req)
	return orderID, feeRate, nil
}

// validateOrder checks the order shape and that the credential covers the
// requested market. Returns the resolved market.
func (s *TradingService) validateOrder(cred *model.APICredential, req model.OrderRequest) (model.Market, error) {
	if req.Symbol == "" {
		return "", apperrors.NewInvalidRequest("symbol is required")
	}
	if req.Side != "BUY" && req.Side != "SELL" {
		return "", apperrors.NewInvalidRequest(fmt.Sprintf("side must be BUY or SELL, got %q", req.Side))
	}
	if !req.Amount.IsPositive() {
		return "", apperrors.NewInvalidRequest("amount must be positive")
	}

	market := model.MarketSpot
	if req.Market != "" {
		parsed, err := model.ParseMarket(req.Market)
		if err != nil {
			return "", apperrors.NewInvalidRequest(err.Error())
		}
		market = parsed
	}

	required := model.PermTrading
	if market == model.MarketMargin {
		required = model.PermMarginTrading
	}
	if !cred.Permissions.Contains(required) {
		return "", apperrors.New(apperrors.ErrInsufficientPermission,
			fmt.Sprintf("credential lacks %s permission", required), nil)
	}
	return market, nil
}

func (s *TradingService) recordVolume(ctx context.Context, clientID string, req model.OrderRequest) {
	notional := req.Amount
	if req.Price.IsPositive() {
		notional = req.Amount.Mul(req.Price)
	}
	if err := s.volumes.Add(ctx, clientID, 1, notional); err != nil {
		logger.Warn("failed to record order volume", "client_id", clientID, "error", err)
	}
}
