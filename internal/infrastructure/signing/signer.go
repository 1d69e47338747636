// Package signing stamps transactions with a tamper-evident fingerprint.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

// HMACSigner signs with HMAC-SHA256 keyed by a secret shared between
// device and reconciliation service.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a new HMACSigner.
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

// Sign returns the hex fingerprint of the canonical transaction fields.
func (s *HMACSigner) Sign(userID, offlineID string, amount decimal.Decimal, ts time.Time) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(userID, offlineID, amount, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the fingerprint and compares in constant time.
func (s *HMACSigner) Verify(userID, offlineID string, amount decimal.Decimal, ts time.Time, signature string) bool {
	if signature == "" {
		return false
	}

	expected := s.Sign(userID, offlineID, amount, ts)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// SignTransaction fills t.Signature.
func (s *HMACSigner) SignTransaction(t *domain.Transaction) {
	t.Signature = s.Sign(t.UserID, t.OfflineID, t.Amount, t.ClientTimestamp)
}

// VerifyEntry checks a batch entry submitted on behalf of userID.
func (s *HMACSigner) VerifyEntry(userID string, e domain.BatchEntry) bool {
	return s.Verify(userID, e.OfflineID, e.Amount, e.ClientTimestamp, e.Signature)
}

// Timestamps are reduced to milliseconds so the fingerprint survives storage
// engines with coarser time precision.
func canonical(userID, offlineID string, amount decimal.Decimal, ts time.Time) string {
	return strings.Join([]string{
		userID,
		offlineID,
		amount.StringFixed(domain.AmountScale),
		strconv.FormatInt(ts.UnixMilli(), 10),
	}, "|")
}
