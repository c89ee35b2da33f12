package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is the closed set of institutional service tiers. The zero value is
// TierBronze so an unclassified client always lands on the most restrictive
// policy.
type Tier int

const (
	TierBronze Tier = iota
	TierSilver
	TierGold
	TierPlatinum
	TierEnterprise
)

var tierNames = [...]string{"bronze", "silver", "gold", "platinum", "enterprise"}

func (t Tier) String() string {
	if t < TierBronze || t > TierEnterprise {
		return "unknown"
	}
	return tierNames[t]
}

// Rank orders tiers ascending; enterprise has the highest rank.
func (t Tier) Rank() int { return int(t) }

func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return TierBronze, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value / Scan store tiers as their string name in the database.
func (t Tier) Value() (driver.Value, error) { return t.String(), nil }

func (t *Tier) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTier(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		return t.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Tier", src)
	}
}

// SupportLevel is the support package attached to a tier.
type SupportLevel string

const (
	SupportBasic      SupportLevel = "basic"
	SupportStandard   SupportLevel = "standard"
	SupportEnhanced   SupportLevel = "enhanced"
	SupportPriority   SupportLevel = "priority"
	SupportWhiteGlove SupportLevel = "white_glove"
)

// TierSpec carries every policy constant attached to a tier as data, so
// nothing downstream switches on tier names.
type TierSpec struct {
	MinVolume         decimal.Decimal // trailing 30d volume threshold
	MinDeposit        decimal.Decimal
	RequestsPerMinute int
	MaxBulkOrders     int
	SpotFee           decimal.Decimal
	MarginFee         decimal.Decimal
	FuturesFee        decimal.Decimal
	SupportLevel      SupportLevel
	SLAHours          int
	ManagerPool       []string
}

var tierSpecs = map[Tier]TierSpec{
	TierBronze: {
		MinVolume:         decimal.Zero,
		MinDeposit:        decimal.Zero,
		RequestsPerMinute: 60,
		MaxBulkOrders:     1000,
		SpotFee:           decimal.RequireFromString("0.0010"),
		MarginFee:         decimal.RequireFromString("0.0015"),
		FuturesFee:        decimal.RequireFromString("0.00075"),
		SupportLevel:      SupportBasic,
		SLAHours:          24,
		ManagerPool:       []string{"am-james.kerr", "am-lucia.romano"},
	},
	TierSilver: {
		MinVolume:         decimal.NewFromInt(100_000),
		MinDeposit:        decimal.NewFromInt(100_000),
		RequestsPerMinute: 120,
		MaxBulkOrders:     1000,
		SpotFee:           decimal.RequireFromString("0.0008"),
		MarginFee:         decimal.RequireFromString("0.0012"),
		FuturesFee:        decimal.RequireFromString("0.0006"),
		SupportLevel:      SupportStandard,
		SLAHours:          12,
		ManagerPool:       []string{"am-james.kerr", "am-lucia.romano", "am-derek.yuen"},
	},
	TierGold: {
		MinVolume:         decimal.NewFromInt(500_000),
		MinDeposit:        decimal.NewFromInt(250_000),
		RequestsPerMinute: 300,
		MaxBulkOrders:     1000,
		SpotFee:           decimal.RequireFromString("0.0006"),
		MarginFee:         decimal.RequireFromString("0.0010"),
		FuturesFee:        decimal.RequireFromString("0.0005"),
		SupportLevel:      SupportEnhanced,
		SLAHours:          6,
		ManagerPool:       []string{"am-derek.yuen", "am-priya.nair"},
	},
	TierPlatinum: {
		MinVolume:         decimal.NewFromInt(2_000_000),
		MinDeposit:        decimal.NewFromInt(500_000),
		RequestsPerMinute: 600,
		MaxBulkOrders:     1000,
		SpotFee:           decimal.RequireFromString("0.0004"),
		MarginFee:         decimal.RequireFromString("0.0008"),
		FuturesFee:        decimal.RequireFromString("0.0004"),
		SupportLevel:      SupportPriority,
		SLAHours:          2,
		ManagerPool:       []string{"am-priya.nair", "am-sofia.lindqvist"},
	},
	TierEnterprise: {
		MinVolume:         decimal.NewFromInt(10_000_000),
		MinDeposit:        decimal.NewFromInt(1_000_000),
		RequestsPerMinute: 1200,
		MaxBulkOrders:     5000,
		SpotFee:           decimal.RequireFromString("0.0002"),
		MarginFee:         decimal.RequireFromString("0.0005"),
		FuturesFee:        decimal.RequireFromString("0.00025"),
		SupportLevel:      SupportWhiteGlove,
		SLAHours:          1,
		ManagerPool:       []string{"am-sofia.lindqvist", "am-marcus.oduya", "am-helen.zhou"},
	},
}

// Spec returns the policy constants for the tier. Unknown values fall back to
// the bronze spec.
func (t Tier) Spec() TierSpec {
	if spec, ok := tierSpecs[t]; ok {
		return spec
	}
	return tierSpecs[TierBronze]
}

// AllTiers lists tiers in ascending rank order.
func AllTiers() []Tier {
	return []Tier{TierBronze, TierSilver, TierGold, TierPlatinum, TierEnterprise}
}
