package contracts

import "time"

// Draft is an immutable proposed action bundle produced by the generation
// pipeline. The authorization core consumes a Draft for exactly one
// approval->execution cycle and never mutates or retains it.
type Draft struct {
	ID         string    `json:"id"`
	ContentRef string    `json:"content_ref"`
	Confidence float64   `json:"confidence"` // 0.0 - 1.0
	Synthetic  bool      `json:"synthetic"`  // produced from generated (non-user) input
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovalState carries the user confirmations for a single execution
// attempt. It is transient: created fresh per attempt, never persisted,
// and never reused across two attempts. All fields default to false and
// there is deliberately no constructor that sets any of them to true.
type ApprovalState struct {
	ApprovalGranted           bool
	SecondConfirmationGranted bool
	DidConfirmLowConfidence   bool
}
