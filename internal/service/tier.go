package service

import (
	"github.com/nexora-labs/instgate/internal/model"
	"github.com/shopspring/decimal"
)

// ClassifyTier maps deposit size and trailing 30-day volume to a service
// tier. Thresholds are checked top-down; either criterion qualifies. Pure and
// side-effect free, so reclassification is safe to run at any time.
func ClassifyTier(deposit, volume decimal.Decimal) model.Tier {
	candidates := []model.Tier{
		model.TierEnterprise,
		model.TierPlatinum,
		model.TierGold,
		model.TierSilver,
	}
	for _, tier := range candidates {
		spec := tier.Spec()
		if volume.GreaterThanOrEqual(spec.MinVolume) || deposit.GreaterThanOrEqual(spec.MinDeposit) {
			return tier
		}
	}
	return model.TierBronze
}
