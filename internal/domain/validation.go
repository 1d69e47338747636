package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall     = errors.New("amount below minimum allowed")
	ErrAmountPrecision    = errors.New("amount has more than 2 fractional digits")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrInvalidOfflineID   = errors.New("invalid offline id")
	ErrDescriptionTooLong = errors.New("description exceeds limit")
)

// Validation constants
const (
	AmountScale          = 2
	MaxAmount            = "1000000000000" // 1 trillion
	MinAmount            = "0.01"
	MaxUserIDLength      = 128
	MaxOfflineIDLength   = 64
	MaxSignatureLength   = 128
	MaxDescriptionLength = 500
)

var (
	minAmount = decimal.RequireFromString(MinAmount)
	maxAmount = decimal.RequireFromString(MaxAmount)
)

// ValidateAmount validates a transaction amount: positive, bounded, two decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Round(AmountScale)) {
		return fmt.Errorf("%w: %s", ErrAmountPrecision, amount)
	}

	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinAmount)
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)

	if userID == "" {
		return fmt.Errorf("%w: user id cannot be empty", ErrInvalidUserID)
	}

	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: user id exceeds %d characters", ErrInvalidUserID, MaxUserIDLength)
	}

	return nil
}

// ValidateRecipientID checks an optional counterparty. It follows the user id
// rules and may not name the owner.
func ValidateRecipientID(recipientID *string, ownerID string) error {
	if recipientID == nil {
		return nil
	}

	recipient := strings.TrimSpace(*recipientID)
	if recipient == "" {
		return fmt.Errorf("%w: recipient cannot be blank", ErrInvalidRecipient)
	}

	if len(recipient) > MaxUserIDLength {
		return fmt.Errorf("%w: recipient exceeds %d characters", ErrInvalidRecipient, MaxUserIDLength)
	}

	if recipient == strings.TrimSpace(ownerID) {
		return fmt.Errorf("%w: recipient cannot be the owner", ErrInvalidRecipient)
	}

	return nil
}

// ValidateOfflineID validates a client-generated idempotency key.
func ValidateOfflineID(offlineID string) error {
	if strings.TrimSpace(offlineID) == "" {
		return fmt.Errorf("%w: offline id cannot be empty", ErrInvalidOfflineID)
	}

	if len(offlineID) > MaxOfflineIDLength {
		return fmt.Errorf("%w: offline id exceeds %d characters", ErrInvalidOfflineID, MaxOfflineIDLength)
	}

	return nil
}

// ValidateDescription limits free-form text. Empty is allowed.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: %d characters max", ErrDescriptionTooLong, MaxDescriptionLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
