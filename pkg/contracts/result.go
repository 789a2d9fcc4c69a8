package contracts

// ExecutionStatus is the terminal status of one execution attempt.
type ExecutionStatus string

const (
	StatusSuccess        ExecutionStatus = "success"
	StatusPartialSuccess ExecutionStatus = "partial_success"
	StatusFailed         ExecutionStatus = "failed"
	StatusCancelled      ExecutionStatus = "cancelled"
)

// EffectOutcome is the per-side-effect result recorded in both the
// ExecutionResult and the audit trail.
type EffectOutcome string

const (
	OutcomeSuccess EffectOutcome = "success"
	OutcomeFailed  EffectOutcome = "failed"
	OutcomeBlocked EffectOutcome = "blocked" // rejected before dispatch (two-key, permission)
)

// ExecutedSideEffect pairs a dispatched (or blocked) side effect with its
// outcome. Error carries the adapter or gate reason for non-success.
type ExecutedSideEffect struct {
	EffectID string         `json:"effect_id"`
	Kind     SideEffectKind `json:"kind"`
	Outcome  EffectOutcome  `json:"outcome"`
	Error    string         `json:"error,omitempty"`
}

// ExecutionResult is the terminal, immutable product of one execute call.
// Message is always specific: a blocked or partially-failed execution
// carries the first failing reason, never a generic string.
type ExecutionResult struct {
	Status              ExecutionStatus      `json:"status"`
	ExecutedSideEffects []ExecutedSideEffect `json:"executed_side_effects"`
	Message             string               `json:"message"`
	AuditTrail          []AuditEvent         `json:"audit_trail"`
}

// Succeeded reports whether every attempted side effect succeeded.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}
