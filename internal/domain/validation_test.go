package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	valid := decimal.RequireFromString("100.25")
	if err := ValidateAmount(valid); err != nil {
		t.Fatalf("expected valid amount, got %v", err)
	}

	trailingZero := decimal.RequireFromString("100.250")
	if err := ValidateAmount(trailingZero); err != nil {
		t.Fatalf("trailing zeros should not count as precision, got %v", err)
	}

	if err := ValidateAmount(decimal.RequireFromString("0.001")); !errors.Is(err, ErrAmountPrecision) {
		t.Fatalf("expected ErrAmountPrecision, got %v", err)
	}

	tooLarge := decimal.RequireFromString(MaxAmount).Add(decimal.NewFromInt(1))
	if err := ValidateAmount(tooLarge); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	if err := ValidateUserID("user-1"); err != nil {
		t.Fatalf("expected valid user id, got %v", err)
	}

	if err := ValidateUserID("   "); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}

	if err := ValidateUserID(strings.Repeat("u", MaxUserIDLength+1)); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID for long id, got %v", err)
	}
}

func TestValidateRecipientID(t *testing.T) {
	t.Parallel()

	if err := ValidateRecipientID(nil, "user-1"); err != nil {
		t.Fatalf("absent recipient should be valid, got %v", err)
	}

	bob := "bob"
	if err := ValidateRecipientID(&bob, "alice"); err != nil {
		t.Fatalf("expected valid recipient, got %v", err)
	}

	maxLen := strings.Repeat("r", MaxUserIDLength)
	if err := ValidateRecipientID(&maxLen, "alice"); err != nil {
		t.Fatalf("recipient at the column limit should be valid, got %v", err)
	}

	for _, bad := range []string{"", "  ", "alice", strings.Repeat("r", MaxUserIDLength+1)} {
		if err := ValidateRecipientID(&bad, "alice"); !errors.Is(err, ErrInvalidRecipient) {
			t.Fatalf("expected ErrInvalidRecipient for %q, got %v", bad, err)
		}
	}
}

func TestValidateOfflineID(t *testing.T) {
	t.Parallel()

	if err := ValidateOfflineID(""); !errors.Is(err, ErrInvalidOfflineID) {
		t.Fatalf("expected ErrInvalidOfflineID, got %v", err)
	}

	if err := ValidateOfflineID(strings.Repeat("o", MaxOfflineIDLength+1)); !errors.Is(err, ErrInvalidOfflineID) {
		t.Fatalf("expected ErrInvalidOfflineID for long id, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset, _ := ValidatePagination(0, -5)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	limit, _, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Fatalf("expected clamp to 1000, got %d", limit)
	}
}
