package dto

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CreateProfileRequest represents a request to open an authoritative balance.
type CreateProfileRequest struct {
	UserID         string          `json:"user_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// Normalize trims the user id.
func (r *CreateProfileRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}
