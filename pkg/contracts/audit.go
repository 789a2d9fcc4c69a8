package contracts

import "time"

// AuditSchemaVersion is stamped on every persisted audit event. Readers
// accept any record whose version shares the same major (semver).
const AuditSchemaVersion = "1.0.0"

// AuditEvent is one immutable record of an attempted or completed side
// effect. Once written it is never edited or reordered; the only removals
// are FIFO eviction at capacity and an explicit user-initiated purge.
//
// PreviousHash and EntryHash chain events together over their canonical
// JSON form, making the trail tamper-evident: mutating any stored event
// breaks chain verification.
type AuditEvent struct {
	ID                 string         `json:"id"`
	SchemaVersion      string         `json:"schema_version"`
	Timestamp          time.Time      `json:"timestamp"`
	DraftID            string         `json:"draft_id"`
	SideEffectKind     SideEffectKind `json:"side_effect_kind"`
	Outcome            EffectOutcome  `json:"outcome"`
	Detail             string         `json:"detail,omitempty"`
	ApprovalTimestamp  time.Time      `json:"approval_timestamp"`
	ExecutionTimestamp time.Time      `json:"execution_timestamp"`
	PreviousHash       string         `json:"previous_hash"`
	EntryHash          string         `json:"entry_hash"`
}
