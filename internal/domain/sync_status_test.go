package domain

import (
	"errors"
	"testing"
)

func TestSyncStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from SyncStatus
		to   SyncStatus
		want bool
	}{
		{SyncStatusPending, SyncStatusSyncing, true},
		{SyncStatusPending, SyncStatusSynced, false},
		{SyncStatusSyncing, SyncStatusSynced, true},
		{SyncStatusSyncing, SyncStatusFailed, true},
		{SyncStatusSyncing, SyncStatusPending, true},
		{SyncStatusFailed, SyncStatusSyncing, true},
		{SyncStatusFailed, SyncStatusConflict, true},
		{SyncStatusSynced, SyncStatusPending, false},
		{SyncStatusSynced, SyncStatusSyncing, false},
		{SyncStatusConflict, SyncStatusPending, true},
		{SyncStatusConflict, SyncStatusSyncing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncStatus_Classification(t *testing.T) {
	if !SyncStatusSynced.IsTerminal() || !SyncStatusConflict.IsTerminal() {
		t.Error("synced and conflict must be terminal")
	}

	if SyncStatusFailed.IsTerminal() {
		t.Error("failed must not be terminal")
	}

	for _, s := range OutstandingStatuses() {
		if !s.IsOutstanding() {
			t.Errorf("%s should be outstanding", s)
		}
	}

	if !SyncStatusPending.CountsTowardShadow() || !SyncStatusSyncing.CountsTowardShadow() {
		t.Error("pending and syncing entries must count toward the shadow balance")
	}
	for _, s := range []SyncStatus{SyncStatusFailed, SyncStatusConflict, SyncStatusSynced} {
		if s.CountsTowardShadow() {
			t.Errorf("%s must not count toward the shadow balance", s)
		}
	}

	if SyncStatus("bogus").IsValid() {
		t.Error("unknown status reported as valid")
	}
}

func TestTransaction_Transition(t *testing.T) {
	tx := &Transaction{SyncStatus: SyncStatusSynced}

	err := tx.Transition(SyncStatusPending)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	if tx.SyncStatus != SyncStatusSynced {
		t.Fatalf("status changed on illegal transition: %s", tx.SyncStatus)
	}

	tx.SyncStatus = SyncStatusPending
	if err := tx.Transition(SyncStatusSyncing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx.SyncStatus != SyncStatusSyncing {
		t.Fatalf("expected syncing, got %s", tx.SyncStatus)
	}
}
