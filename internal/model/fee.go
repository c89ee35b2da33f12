package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Market string

const (
	MarketSpot    Market = "spot"
	MarketMargin  Market = "margin"
	MarketFutures Market = "futures"
)

func ParseMarket(s string) (Market, error) {
	switch Market(s) {
	case MarketSpot, MarketMargin, MarketFutures:
		return Market(s), nil
	}
	return "", fmt.Errorf("unknown market %q", s)
}

// FeeTier is either a shared base tier schedule or a client-scoped custom
// schedule produced by the fee engine for platinum and enterprise clients.
type FeeTier struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	ClientID       string          `gorm:"index" json:"client_id,omitempty"` // empty for base tiers
	BaseTier       Tier            `gorm:"type:text" json:"base_tier"`
	SpotFee        decimal.Decimal `gorm:"type:decimal(12,8)" json:"spot_fee"`
	MarginFee      decimal.Decimal `gorm:"type:decimal(12,8)" json:"margin_fee"`
	FuturesFee     decimal.Decimal `gorm:"type:decimal(12,8)" json:"futures_fee"`
	WithdrawalFees FeeMap          `gorm:"type:jsonb" json:"withdrawal_fees"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Rate returns the trading fee rate for the given market.
func (ft *FeeTier) Rate(market Market) decimal.Decimal {
	switch market {
	case MarketMargin:
		return ft.MarginFee
	case MarketFutures:
		return ft.FuturesFee
	default:
		return ft.SpotFee
	}
}

// FeeMap stores a currency -> withdrawal fee mapping as a JSON column.
type FeeMap map[string]decimal.Decimal

func (m FeeMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *FeeMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into FeeMap", src)
	}
}
