// Package donation decides whether a completed workflow may be offered
// back to the OS as a learned suggestion. The gate is purely advisory:
// nothing in it feeds back into authorization, and no failure in the
// donation path may alter an execution's reported outcome.
package donation

import (
	"context"
	"log/slog"
)

// ConfidenceThreshold is the minimum draft confidence for a donation.
// Fixed constant; not configurable.
const ConfidenceThreshold = 0.65

// CanDonate is the donation predicate. All four conditions are required:
// the user approved the draft, the execution fully succeeded, confidence
// meets the threshold, and the draft was not synthetic.
func CanDonate(wasApproved, wasSuccessful bool, confidence float64, wasSynthetic bool) bool {
	return wasApproved &&
		wasSuccessful &&
		confidence >= ConfidenceThreshold &&
		!wasSynthetic
}

// Donor hands a completed workflow to the OS suggestion system.
type Donor interface {
	Donate(ctx context.Context, draftID string) error
}

// Offer runs the gate and, when it passes, calls the donor with full
// isolation: errors and panics are logged and swallowed so the caller's
// ExecutionResult is never affected. Returns whether a donation was
// attempted, for observability only.
func Offer(ctx context.Context, donor Donor, log *slog.Logger, draftID string, wasApproved, wasSuccessful bool, confidence float64, wasSynthetic bool) (attempted bool) {
	if !CanDonate(wasApproved, wasSuccessful, confidence, wasSynthetic) {
		return false
	}
	if donor == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("donation panicked", "draft_id", draftID, "panic", r)
		}
	}()
	if err := donor.Donate(ctx, draftID); err != nil {
		log.Warn("donation failed", "draft_id", draftID, "error", err)
	}
	return true
}
