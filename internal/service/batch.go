package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/nexora-labs/instgate/internal/pkg/metrics"
)

// SubmitBatch validates and chunks a multi-order submission. Orders inside a
// chunk are dispatched concurrently; chunks run one after another, which caps
// peak concurrency against the executor at the chunk size. Each order
// succeeds or fails on its own: this is a best-effort partial-success batch,
// never an atomic transaction.
func (s *TradingService) SubmitBatch(ctx context.Context, client *model.InstitutionalClient, cred *model.APICredential, orders []model.OrderRequest) (*model.BulkOrderResponse, error) {
	if !cred.Permissions.Contains(model.PermBulkTrading) {
		return nil, apperrors.New(apperrors.ErrInsufficientPermission,
			"credential lacks BULK_TRADING permission", nil)
	}
	if len(orders) == 0 {
		return nil, apperrors.NewInvalidRequest("batch contains no orders")
	}
	maxOrders := client.Tier.Spec().MaxBulkOrders
	if len(orders) > maxOrders {
		return nil, apperrors.New(apperrors.ErrBulkSizeExceeded,
			fmt.Sprintf("batch of %d exceeds the %s tier limit of %d", len(orders), client.Tier, maxOrders), nil)
	}

	metrics.BulkBatchSize.Observe(float64(len(orders)))

	results := make([]model.OrderResult, len(orders))
	cancelled := false

	for start := 0; start < len(orders); start += s.chunkSize {
		// A caller abort stops un-started chunks; orders already dispatched
		// keep their results.
		if ctx.Err() != nil {
			cancelled = true
			for i := start; i < len(orders); i++ {
				results[i] = model.OrderResult{
					Index: i,
					Error: "batch cancelled before dispatch",
				}
			}
			break
		}

		end := start + s.chunkSize
		if end > len(orders) {
			end = len(orders)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = s.dispatchOne(ctx, client, cred, idx, orders[idx])
			}(i)
		}
		wg.Wait()
	}

	resp := &model.BulkOrderResponse{
		BatchID: uuid.NewString(),
		Total:   len(orders),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	if cancelled {
		return resp, ctx.Err()
	}
	return resp, nil
}

// dispatchOne runs the full single-order path for one batch entry and folds
// any failure into the per-order result instead of propagating it.
func (s *TradingService) dispatchOne(ctx context.Context, client *model.InstitutionalClient, cred *model.APICredential, idx int, req model.OrderRequest) model.OrderResult {
	market, err := s.validateOrder(cred, req)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("rejected", req.Market).Inc()
		return model.OrderResult{Index: idx, Error: err.Error()}
	}

	feeRate, err := s.fees.Quote(ctx, client, market)
	if err != nil {
		return model.OrderResult{Index: idx, Error: err.Error()}
	}

	orderID, err := s.exec.Execute(ctx, client.ID, req, feeRate)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("failed", string(market)).Inc()
		return model.OrderResult{Index: idx, Error: err.Error()}
	}

	metrics.OrdersTotal.WithLabelValues("success", string(market)).Inc()
	s.recordVolume(ctx, client.ID, req)
	return model.OrderResult{Index: idx, OrderID: orderID, Success: true}
}
