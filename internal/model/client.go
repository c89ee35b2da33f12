package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ClientStatus string

const (
	ClientActive    ClientStatus = "active"
	ClientSuspended ClientStatus = "suspended"
	// ClientIncomplete marks a client whose onboarding failed partway; the
	// failed stage is reported in the onboarding error, never hidden.
	ClientIncomplete ClientStatus = "incomplete"
)

// InstitutionalClient is an onboarded trading institution.
type InstitutionalClient struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	CompanyName    string          `json:"company_name"`
	Tier           Tier            `gorm:"type:text" json:"tier"`
	TrailingVolume decimal.Decimal `gorm:"type:decimal(24,8)" json:"trailing_volume"`
	MinDeposit     decimal.Decimal `gorm:"type:decimal(24,8)" json:"min_deposit"`
	AccountManager string          `json:"account_manager"`
	CustomFeeTier  string          `json:"custom_fee_tier,omitempty"` // FeeTier ID, set for platinum+ clients
	Status         ClientStatus    `gorm:"type:text" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SupportChannel is the support arrangement provisioned for a client during
// onboarding and refreshed on tier change.
type SupportChannel struct {
	ClientID     string       `gorm:"primaryKey" json:"client_id"`
	Level        SupportLevel `gorm:"type:text" json:"level"`
	SLAHours     int          `json:"sla_hours"`
	Agents       StringList   `gorm:"type:jsonb" json:"agents"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// StringList stores a slice of strings as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}
