package domain

import "fmt"

// SyncStatus is the replication state of a locally recorded transaction.
type SyncStatus string

const (
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusFailed   SyncStatus = "failed"
	SyncStatusConflict SyncStatus = "conflict"
)

// syncTransitions enumerates every legal status change. Anything absent is illegal.
var syncTransitions = map[SyncStatus]map[SyncStatus]bool{
	SyncStatusPending: {
		SyncStatusSyncing:  true,
		SyncStatusConflict: true,
	},
	SyncStatusSyncing: {
		SyncStatusPending:  true,
		SyncStatusSynced:   true,
		SyncStatusFailed:   true,
		SyncStatusConflict: true,
	},
	SyncStatusFailed: {
		SyncStatusPending:  true,
		SyncStatusSyncing:  true,
		SyncStatusConflict: true,
	},
	// manual resolution only
	SyncStatusConflict: {
		SyncStatusPending: true,
	},
	SyncStatusSynced: {},
}

// IsValid reports whether s is a known status.
func (s SyncStatus) IsValid() bool {
	_, ok := syncTransitions[s]
	return ok
}

// IsTerminal reports whether no automatic transition leaves s.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSynced || s == SyncStatusConflict
}

// IsOutstanding reports whether an entry in s is still headed for the server.
func (s SyncStatus) IsOutstanding() bool {
	return s == SyncStatusPending || s == SyncStatusSyncing || s == SyncStatusFailed
}

// CountsTowardShadow reports whether an entry in s is added on top of the
// cached balance. A failed entry has already been judged by the server and
// only counts again once a new cycle picks it up.
func (s SyncStatus) CountsTowardShadow() bool {
	return s == SyncStatusPending || s == SyncStatusSyncing
}

// CanTransitionTo checks the transition table.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	return syncTransitions[s][next]
}

// OutstandingStatuses lists the statuses picked up by a sync cycle.
func OutstandingStatuses() []SyncStatus {
	return []SyncStatus{SyncStatusPending, SyncStatusSyncing, SyncStatusFailed}
}

func illegalTransition(from, to SyncStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
