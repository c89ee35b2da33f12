package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Permission string

const (
	PermTrading       Permission = "TRADING"
	PermBulkTrading   Permission = "BULK_TRADING"
	PermMarginTrading Permission = "MARGIN_TRADING"
	PermWithdrawals   Permission = "WITHDRAWALS"
	PermReadOnly      Permission = "READ_ONLY"
)

func (p Permission) Valid() bool {
	switch p {
	case PermTrading, PermBulkTrading, PermMarginTrading, PermWithdrawals, PermReadOnly:
		return true
	}
	return false
}

type PermissionList []Permission

func (l PermissionList) Contains(p Permission) bool {
	for _, have := range l {
		if have == p {
			return true
		}
	}
	return false
}

func (l PermissionList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *PermissionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into PermissionList", src)
	}
}

type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialRevoked CredentialStatus = "revoked"
)

// APICredential is a key pair issued to one institutional client. The secret
// exists only as a salted hash; the plaintext leaves the process exactly once,
// in the issuance response.
type APICredential struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	ClientID    string           `gorm:"index" json:"client_id"`
	PublicKey   string           `gorm:"uniqueIndex" json:"public_key"`
	SecretHash  []byte           `json:"-"`
	SecretSalt  []byte           `json:"-"`
	Permissions PermissionList   `gorm:"type:jsonb" json:"permissions"`
	RateLimit   int              `json:"rate_limit"` // requests per minute
	IPAllowlist StringList       `gorm:"type:jsonb" json:"ip_allowlist,omitempty"`
	Status      CredentialStatus `gorm:"type:text" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
