package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Unclefole/operatorkit/pkg/approval"
	"github.com/Unclefole/operatorkit/pkg/contracts"
	"github.com/Unclefole/operatorkit/pkg/sideeffect"
)

// dispatchOne runs a single side effect through the per-effect gates and
// its adapter. Once an adapter call starts it runs to completion or
// failure; there is no mid-call cancellation. Failures are contained to
// this effect so the rest of the batch is still attempted.
func (e *Engine) dispatchOne(ctx context.Context, effect contracts.SideEffect, approvalState contracts.ApprovalState) contracts.ExecutedSideEffect {
	outcome := contracts.ExecutedSideEffect{
		EffectID: effect.ID,
		Kind:     effect.Kind,
	}

	// Two-key gate: a write without its own second confirmation is
	// blocked before dispatch, independent of the approval gate.
	if err := approval.CheckSecondKey(effect, approvalState.SecondConfirmationGranted); err != nil {
		outcome.Outcome = contracts.OutcomeBlocked
		outcome.Error = err.Error()
		e.log.Warn("side effect blocked", "kind", effect.Kind, "reason", err.Error())
		return outcome
	}

	// Permission is re-read live immediately before the adapter call.
	// A grant present at validation time may be gone now; stale state
	// must lose to the fresh read.
	class, err := sideeffect.Classify(effect.Kind)
	if err != nil {
		outcome.Outcome = contracts.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	if class.Permission != contracts.ScopeNone && !e.deps.Permissions.CurrentState().Granted(class.Permission) {
		outcome.Outcome = contracts.OutcomeFailed
		outcome.Error = fmt.Sprintf("permission %q revoked before dispatch of %s", class.Permission, effect.Kind)
		e.log.Warn("permission revoked mid-flight", "kind", effect.Kind, "scope", class.Permission)
		return outcome
	}

	if err := e.callAdapter(ctx, effect); err != nil {
		outcome.Outcome = contracts.OutcomeFailed
		outcome.Error = err.Error()
		e.log.Error("adapter dispatch failed", "kind", effect.Kind, "error", err)
		return outcome
	}

	outcome.Outcome = contracts.OutcomeSuccess
	return outcome
}

// callAdapter routes the effect to its adapter. The switch is exhaustive
// over the declared kinds: a new kind cannot be dispatched without a case
// here, a catalog entry, and a payload schema.
func (e *Engine) callAdapter(ctx context.Context, effect contracts.SideEffect) error {
	switch effect.Kind {
	case contracts.KindSendEmail, contracts.KindPresentEmailDraft:
		// Both mail kinds only ever present a composer; the core never
		// sends mail itself.
		if e.deps.Mail == nil {
			return adapterMissing(effect.Kind, "mail")
		}
		payload := effect.Payload.(contracts.EmailPayload)
		if err := e.deps.Mail.PresentComposer(ctx, payload); err != nil {
			return wrapAdapterErr(effect.Kind, "present_composer", err)
		}
		return nil

	case contracts.KindCreateReminder:
		if e.deps.Reminders == nil {
			return adapterMissing(effect.Kind, "reminders")
		}
		payload := effect.Payload.(contracts.ReminderPayload)
		if _, err := e.deps.Reminders.CreateReminder(ctx, payload); err != nil {
			return wrapAdapterErr(effect.Kind, "create_reminder", err)
		}
		return nil

	case contracts.KindPreviewReminder:
		// Previews stage content for the UI layer; no external state is
		// touched, so there is nothing to dispatch.
		return nil

	case contracts.KindCreateCalendarEvent:
		if e.deps.Calendar == nil {
			return adapterMissing(effect.Kind, "calendar")
		}
		payload := effect.Payload.(contracts.CalendarEventPayload)
		if _, err := e.deps.Calendar.CreateEvent(ctx, payload); err != nil {
			return wrapAdapterErr(effect.Kind, "create_event", err)
		}
		return nil

	case contracts.KindUpdateCalendarEvent:
		if e.deps.Calendar == nil {
			return adapterMissing(effect.Kind, "calendar")
		}
		payload := effect.Payload.(contracts.CalendarEventPayload)
		// The identifier must come from a user-selected event; payload
		// validation already rejected updates without one.
		if err := e.deps.Calendar.UpdateEvent(ctx, payload.EventID, payload); err != nil {
			return wrapAdapterErr(effect.Kind, "update_event", err)
		}
		return nil

	case contracts.KindPreviewCalendarEvent:
		return nil

	case contracts.KindSaveToMemory:
		if e.deps.Memory == nil {
			return adapterMissing(effect.Kind, "memory")
		}
		payload := effect.Payload.(contracts.MemoryPayload)
		if err := e.deps.Memory.SaveMemory(ctx, payload); err != nil {
			return wrapAdapterErr(effect.Kind, "save_memory", err)
		}
		return nil

	default:
		return fmt.Errorf("no dispatch handler for side effect kind %q", effect.Kind)
	}
}

func adapterMissing(kind contracts.SideEffectKind, name string) error {
	return &contracts.AdapterError{
		Kind: kind,
		Op:   "dispatch",
		Err:  fmt.Errorf("%s adapter not configured", name),
	}
}

func wrapAdapterErr(kind contracts.SideEffectKind, op string, err error) error {
	var aerr *contracts.AdapterError
	if errors.As(err, &aerr) {
		return err
	}
	return &contracts.AdapterError{Kind: kind, Op: op, Err: err}
}
