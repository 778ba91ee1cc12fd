package model

import "time"

// RunStatus is the progress of one load unit within a cycle.
type RunStatus string

const (
	RunExecuting  RunStatus = "executing"
	RunIngested   RunStatus = "ingested"
	RunReconciled RunStatus = "reconciled"
	RunFailed     RunStatus = "failed"
)

// Terminal reports whether no further transition follows s.
func (s RunStatus) Terminal() bool {
	return s == RunReconciled || s == RunFailed
}

// LoadRun is one ledger row: a record set loaded as part of a cycle.
type LoadRun struct {
	RunID      string
	RecordSet  RecordSet
	FileKey    string
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}
