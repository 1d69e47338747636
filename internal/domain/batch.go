package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// BatchSchemaVersion is the only batch wire version this build speaks.
const BatchSchemaVersion = 1

// Batch schema errors
var (
	ErrMalformedBatch          = errors.New("malformed batch")
	ErrUnsupportedBatchVersion = errors.New("unsupported batch schema version")
)

// RejectReason explains why the authoritative store refused an entry.
type RejectReason string

const (
	RejectMissingSignature    RejectReason = "missing signature"
	RejectInvalidSignature    RejectReason = "invalid signature"
	RejectInsufficientBalance RejectReason = "insufficient balance"
	RejectDuplicateOfflineID  RejectReason = "duplicate offline_id"
	RejectInvalidEntry        RejectReason = "invalid entry"
)

// BatchEntry is one transaction as it travels from device to server.
type BatchEntry struct {
	ClientTimestamp time.Time       `json:"client_timestamp"`
	RecipientID     *string         `json:"recipient_id,omitempty"`
	OfflineID       string          `json:"offline_id"`
	Description     string          `json:"description"`
	Signature       string          `json:"signature"`
	Kind            Kind            `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
}

// BatchRequest is an ordered group of entries submitted for reconciliation.
// Entry order is significant and must be preserved.
type BatchRequest struct {
	BatchID string       `json:"batch_id"`
	UserID  string       `json:"user_id"`
	Entries []BatchEntry `json:"entries"`
	Version int          `json:"version"`
}

// Rejection pairs a refused entry with its reason.
type Rejection struct {
	OfflineID string       `json:"offline_id"`
	Reason    RejectReason `json:"reason"`
}

// BatchResult is the per-entry outcome of a reconciled batch.
type BatchResult struct {
	BatchID    string          `json:"batch_id"`
	Processed  []string        `json:"processed_ids"`
	Rejected   []Rejection     `json:"failed_ids"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Version    int             `json:"version"`
}

// NewBatchResult creates an empty result for batchID.
func NewBatchResult(batchID string) *BatchResult {
	return &BatchResult{
		Version:   BatchSchemaVersion,
		BatchID:   batchID,
		Processed: make([]string, 0),
		Rejected:  make([]Rejection, 0),
	}
}

// NewBatchRequest builds a request from local transactions, preserving order.
func NewBatchRequest(batchID, userID string, txs []*Transaction) *BatchRequest {
	entries := make([]BatchEntry, len(txs))
	for i, t := range txs {
		entries[i] = BatchEntryFromTransaction(t)
	}

	return &BatchRequest{
		Version: BatchSchemaVersion,
		BatchID: batchID,
		UserID:  userID,
		Entries: entries,
	}
}

// BatchEntryFromTransaction converts a local transaction to its wire form.
func BatchEntryFromTransaction(t *Transaction) BatchEntry {
	return BatchEntry{
		OfflineID:       t.OfflineID,
		Kind:            t.Kind,
		Amount:          t.Amount,
		Description:     t.Description,
		RecipientID:     t.RecipientID,
		ClientTimestamp: t.ClientTimestamp,
		Signature:       t.Signature,
	}
}

// Validate checks the envelope. Per-entry business rules are applied during
// reconciliation, not here.
func (b *BatchRequest) Validate() error {
	if b.Version != BatchSchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedBatchVersion, b.Version, BatchSchemaVersion)
	}

	if b.BatchID == "" {
		return fmt.Errorf("%w: batch_id is required", ErrMalformedBatch)
	}

	if err := ValidateUserID(b.UserID); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	for i, e := range b.Entries {
		if err := ValidateOfflineID(e.OfflineID); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrMalformedBatch, i, err)
		}
	}

	return nil
}

// Validate checks the result envelope.
func (r *BatchResult) Validate() error {
	if r.Version != BatchSchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedBatchVersion, r.Version, BatchSchemaVersion)
	}

	if r.BatchID == "" {
		return fmt.Errorf("%w: batch_id is required", ErrMalformedBatch)
	}

	return nil
}

// DecodeBatchRequest strictly decodes and validates a batch request.
func DecodeBatchRequest(r io.Reader) (*BatchRequest, error) {
	var req BatchRequest
	if err := decodeStrict(r, &req); err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &req, nil
}

// DecodeBatchResult strictly decodes and validates a batch result.
func DecodeBatchResult(r io.Reader) (*BatchResult, error) {
	var res BatchResult
	if err := decodeStrict(r, &res); err != nil {
		return nil, err
	}

	if err := res.Validate(); err != nil {
		return nil, err
	}

	return &res, nil
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	return nil
}
