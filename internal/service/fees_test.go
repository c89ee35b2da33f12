package service

import (
	"context"
	"testing"

	"github.com/nexora-labs/instgate/internal/model"
	"github.com/nexora-labs/instgate/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeDiscountSteps(t *testing.T) {
	cases := []struct {
		volume int64
		want   string
	}{
		{0, "0"},
		{999_999, "0"},
		{1_000_000, "0.1"},
		{4_999_999, "0.1"},
		{5_000_000, "0.2"},
		{10_000_000, "0.3"},
		{20_000_000, "0.4"},
		{50_000_000, "0.5"},
		{500_000_000, "0.5"},
	}
	for _, tc := range cases {
		got := VolumeDiscount(decimal.NewFromInt(tc.volume))
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"volume %d: want %s, got %s", tc.volume, tc.want, got)
	}
}

func TestBaseFeesMonotoneAcrossTiers(t *testing.T) {
	tiers := model.AllTiers()
	for i := 1; i < len(tiers); i++ {
		lower := tiers[i-1].Spec()
		higher := tiers[i].Spec()
		assert.True(t, higher.SpotFee.LessThanOrEqual(lower.SpotFee), "spot fee must not increase with rank")
		assert.True(t, higher.MarginFee.LessThanOrEqual(lower.MarginFee), "margin fee must not increase with rank")
		assert.True(t, higher.FuturesFee.LessThanOrEqual(lower.FuturesFee), "futures fee must not increase with rank")
	}
}

func TestQuoteDiscountMonotonicity(t *testing.T) {
	engine := NewFeeEngine(repository.NewMemoryFeeTierRepo())
	ctx := context.Background()

	volumes := []int64{0, 1_000_000, 5_000_000, 10_000_000, 20_000_000, 50_000_000}
	prev := decimal.NewFromInt(1)
	for _, v := range volumes {
		client := &model.InstitutionalClient{
			ID:             "c1",
			Tier:           model.TierGold,
			TrailingVolume: decimal.NewFromInt(v),
		}
		rate, err := engine.Quote(ctx, client, model.MarketSpot)
		require.NoError(t, err)
		assert.True(t, rate.LessThanOrEqual(prev),
			"rate at volume %d (%s) must not exceed rate at lower volume (%s)", v, rate, prev)
		prev = rate
	}
}

func TestQuoteAppliesDiscountToBaseTier(t *testing.T) {
	engine := NewFeeEngine(repository.NewMemoryFeeTierRepo())
	client := &model.InstitutionalClient{
		ID:             "c1",
		Tier:           model.TierGold,
		TrailingVolume: decimal.NewFromInt(6_000_000), // 20% off
	}

	rate, err := engine.Quote(context.Background(), client, model.MarketSpot)
	require.NoError(t, err)

	want := model.TierGold.Spec().SpotFee.Mul(decimal.RequireFromString("0.8"))
	assert.True(t, rate.Equal(want), "want %s, got %s", want, rate)
}

func TestComputeCustomTierRejectsLowTiers(t *testing.T) {
	engine := NewFeeEngine(repository.NewMemoryFeeTierRepo())

	for _, tier := range []model.Tier{model.TierBronze, model.TierSilver, model.TierGold} {
		client := &model.InstitutionalClient{ID: "c1", Tier: tier}
		_, err := engine.ComputeCustomTier(context.Background(), client)
		assert.Error(t, err, "tier %s must not receive a custom fee tier", tier)
	}
}

func TestComputeCustomTierIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryFeeTierRepo()
	engine := NewFeeEngine(repo)
	ctx := context.Background()

	client := &model.InstitutionalClient{
		ID:             "ent-1",
		Tier:           model.TierEnterprise,
		TrailingVolume: decimal.NewFromInt(25_000_000),
	}

	first, err := engine.ComputeCustomTier(ctx, client)
	require.NoError(t, err)
	second, err := engine.ComputeCustomTier(ctx, client)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, CustomTierID("ent-1"), first.ID)

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "ent-1", stored.ClientID)
}

func TestCustomTierRatesAndWithdrawalDiscount(t *testing.T) {
	engine := NewFeeEngine(repository.NewMemoryFeeTierRepo())
	ctx := context.Background()

	client := &model.InstitutionalClient{
		ID:             "plat-1",
		Tier:           model.TierPlatinum,
		TrailingVolume: decimal.NewFromInt(20_000_000), // 40% trading, 20% withdrawal
	}

	ft, err := engine.ComputeCustomTier(ctx, client)
	require.NoError(t, err)

	spec := model.TierPlatinum.Spec()
	assert.True(t, ft.SpotFee.Equal(spec.SpotFee.Mul(decimal.RequireFromString("0.6"))))
	assert.True(t, ft.MarginFee.Equal(spec.MarginFee.Mul(decimal.RequireFromString("0.6"))))

	wantBTC := decimal.RequireFromString("0.0005").Mul(decimal.RequireFromString("0.8"))
	assert.True(t, ft.WithdrawalFees["BTC"].Equal(wantBTC),
		"withdrawal fee gets half the discount: want %s, got %s", wantBTC, ft.WithdrawalFees["BTC"])
}

func TestQuotePrefersCustomTier(t *testing.T) {
	repo := repository.NewMemoryFeeTierRepo()
	engine := NewFeeEngine(repo)
	ctx := context.Background()

	client := &model.InstitutionalClient{
		ID:             "ent-1",
		Tier:           model.TierEnterprise,
		TrailingVolume: decimal.NewFromInt(60_000_000),
	}
	ft, err := engine.ComputeCustomTier(ctx, client)
	require.NoError(t, err)
	client.CustomFeeTier = ft.ID

	rate, err := engine.Quote(ctx, client, model.MarketFutures)
	require.NoError(t, err)
	assert.True(t, rate.Equal(ft.FuturesFee))
}

func TestFeesSavedAgainstBaseline(t *testing.T) {
	engine := NewFeeEngine(repository.NewMemoryFeeTierRepo())
	ctx := context.Background()

	volume := decimal.NewFromInt(6_000_000)
	client := &model.InstitutionalClient{
		ID:             "plat-1",
		Tier:           model.TierPlatinum,
		TrailingVolume: volume,
	}

	saved, err := engine.FeesSaved(ctx, client, volume)
	require.NoError(t, err)

	effective := model.TierPlatinum.Spec().SpotFee.Mul(decimal.RequireFromString("0.8"))
	want := model.TierBronze.Spec().SpotFee.Sub(effective).Mul(volume)
	assert.True(t, saved.Equal(want), "want %s, got %s", want, saved)
	assert.True(t, saved.IsPositive())
}
