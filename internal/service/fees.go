package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

type FeeTierRepo interface {
	Upsert(ctx context.Context, ft *model.FeeTier) error
	GetByID(ctx context.Context, id string) (*model.FeeTier, error)
	DeleteByClient(ctx context.Context, clientID string) error
}

// Withdrawal fee schedule shared by every base tier, per currency.
var baseWithdrawalFees = model.FeeMap{
	"BTC":  decimal.RequireFromString("0.0005"),
	"ETH":  decimal.RequireFromString("0.005"),
	"SOL":  decimal.RequireFromString("0.01"),
	"USDT": decimal.NewFromInt(10),
	"USDC": decimal.NewFromInt(10),
}

var discountSteps = []struct {
	minVolume decimal.Decimal
	discount  decimal.Decimal
}{
	{decimal.NewFromInt(50_000_000), decimal.RequireFromString("0.5")},
	{decimal.NewFromInt(20_000_000), decimal.RequireFromString("0.4")},
	{decimal.NewFromInt(10_000_000), decimal.RequireFromString("0.3")},
	{decimal.NewFromInt(5_000_000), decimal.RequireFromString("0.2")},
	{decimal.NewFromInt(1_000_000), decimal.RequireFromString("0.1")},
}

// VolumeDiscount returns the discount fraction earned by the trailing 30-day
// volume. Step function, highest matching step wins.
func VolumeDiscount(volume decimal.Decimal) decimal.Decimal {
	for _, step := range discountSteps {
		if volume.GreaterThanOrEqual(step.minVolume) {
			return step.discount
		}
	}
	return decimal.Zero
}

// CustomTierID derives the fee tier ID for a client deterministically, so
// recomputation overwrites the same record instead of minting a new one.
func CustomTierID(clientID string) string {
	return "custom_" + clientID
}

// FeeEngine resolves per-trade fee rates from base tier schedules and
// volume-discount curves.
type FeeEngine struct {
	tiers FeeTierRepo
}

func NewFeeEngine(tiers FeeTierRepo) *FeeEngine {
	return &FeeEngine{tiers: tiers}
}

// ComputeCustomTier produces and persists the client-scoped fee schedule.
// Only platinum and enterprise clients carry one; everyone else quotes off
// the shared base tiers.
func (e *FeeEngine) ComputeCustomTier(ctx context.Context, client *model.InstitutionalClient) (*model.FeeTier, error) {
	if client.Tier.Rank() < model.TierPlatinum.Rank() {
		return nil, apperrors.NewInvalidRequest(
			fmt.Sprintf("custom fee tiers are reserved for platinum and above, client is %s", client.Tier))
	}

	discount := VolumeDiscount(client.TrailingVolume)
	tradeMult := decimal.NewFromInt(1).Sub(discount)
	// withdrawal fees earn half the trading discount
	withdrawMult := decimal.NewFromInt(1).Sub(discount.Mul(decimal.RequireFromString("0.5")))

	spec := client.Tier.Spec()
	withdrawals := make(model.FeeMap, len(baseWithdrawalFees))
	for currency, fee := range baseWithdrawalFees {
		withdrawals[currency] = fee.Mul(withdrawMult)
	}

	ft := &model.FeeTier{
		ID:             CustomTierID(client.ID),
		ClientID:       client.ID,
		BaseTier:       client.Tier,
		SpotFee:        spec.SpotFee.Mul(tradeMult),
		MarginFee:      spec.MarginFee.Mul(tradeMult),
		FuturesFee:     spec.FuturesFee.Mul(tradeMult),
		WithdrawalFees: withdrawals,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := e.tiers.Upsert(ctx, ft); err != nil {
		return nil, err
	}
	return ft, nil
}

// Quote returns the fee rate the client pays on the given market. A persisted
// custom tier takes precedence; otherwise the base tier rate is discounted by
// the trailing volume recorded on the client. Rates only move when the
// trailing-volume job updates the client, never mid-quote.
func (e *FeeEngine) Quote(ctx context.Context, client *model.InstitutionalClient, market model.Market) (decimal.Decimal, error) {
	if client.CustomFeeTier != "" {
		ft, err := e.tiers.GetByID(ctx, client.CustomFeeTier)
		if err == nil && ft != nil {
			return ft.Rate(market), nil
		}
		// fall back to base rates if the custom record went missing
	}

	spec := client.Tier.Spec()
	base := spec.SpotFee
	switch market {
	case model.MarketMargin:
		base = spec.MarginFee
	case model.MarketFutures:
		base = spec.FuturesFee
	}
	mult := decimal.NewFromInt(1).Sub(VolumeDiscount(client.TrailingVolume))
	return base.Mul(mult), nil
}

// WithdrawalFee quotes the withdrawal fee for a currency, with the half-rate
// volume discount applied.
func (e *FeeEngine) WithdrawalFee(ctx context.Context, client *model.InstitutionalClient, currency string) (decimal.Decimal, error) {
	if client.CustomFeeTier != "" {
		ft, err := e.tiers.GetByID(ctx, client.CustomFeeTier)
		if err == nil && ft != nil {
			if fee, ok := ft.WithdrawalFees[currency]; ok {
				return fee, nil
			}
		}
	}

	base, ok := baseWithdrawalFees[currency]
	if !ok {
		return decimal.Zero, apperrors.NewInvalidRequest(fmt.Sprintf("unsupported withdrawal currency %q", currency))
	}
	discount := VolumeDiscount(client.TrailingVolume)
	mult := decimal.NewFromInt(1).Sub(discount.Mul(decimal.RequireFromString("0.5")))
	return base.Mul(mult), nil
}

// FeesSaved estimates cumulative fee savings over the trailing window against
// a non-discounted bronze baseline.
func (e *FeeEngine) FeesSaved(ctx context.Context, client *model.InstitutionalClient, volume decimal.Decimal) (decimal.Decimal, error) {
	effective, err := e.Quote(ctx, client, model.MarketSpot)
	if err != nil {
		return decimal.Zero, err
	}
	baseline := model.TierBronze.Spec().SpotFee
	saved := baseline.Sub(effective).Mul(volume)
	if saved.IsNegative() {
		return decimal.Zero, nil
	}
	return saved, nil
}
