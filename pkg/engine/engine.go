// Package engine owns execution: it is the single component allowed to
// dispatch side effects to the outside world, and the single owner of the
// "is an execution in flight" state.
//
// The engine trusts nothing it is handed. It re-runs the approval gate
// immediately before dispatch, re-reads live permission state before
// every permission-gated adapter call, and applies the two-key check to
// each write individually. Exactly one execution may be in flight at a
// time; a second caller gets an immediate failed result and no adapter
// is touched.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Unclefole/operatorkit/pkg/adapters"
	"github.com/Unclefole/operatorkit/pkg/approval"
	"github.com/Unclefole/operatorkit/pkg/audit"
	"github.com/Unclefole/operatorkit/pkg/contracts"
	"github.com/Unclefole/operatorkit/pkg/donation"
	"github.com/Unclefole/operatorkit/pkg/observability"
	"github.com/Unclefole/operatorkit/pkg/sideeffect"
)

// Phase is the engine's lifecycle state, exposed for introspection only;
// the concurrency guard is the executing flag, not the phase.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseValidating  Phase = "validating"
	PhaseDispatching Phase = "dispatching"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Deps are the collaborators the engine dispatches through. Permissions
// and Trail are mandatory; adapters may be nil when the deployment does
// not support the corresponding effect kinds (dispatch then fails that
// effect with a specific reason instead of panicking).
type Deps struct {
	Permissions adapters.PermissionSource
	Calendar    adapters.CalendarAdapter
	Reminders   adapters.ReminderAdapter
	Mail        adapters.MailAdapter
	Memory      adapters.MemoryWriter
	History     adapters.HistorySink
	Trail       *audit.Trail
	Donor       donation.Donor
	Telemetry   *observability.Provider
	Logger      *slog.Logger
}

// Engine is the single-flight execution state machine. Construct one per
// process (or per test) with New; there is deliberately no package-level
// instance, so tests can build isolated engines.
type Engine struct {
	deps Deps
	log  *slog.Logger

	// strictInvariants makes invariant violations panic instead of
	// failing closed. Only tests and CI enable it.
	strictInvariants bool

	executing atomic.Bool
	phase     atomic.Value // Phase
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrictInvariants makes the engine panic on caller-side invariant
// violations (approval missing at the engine boundary). Production
// builds never set this: they fail closed and log instead.
func WithStrictInvariants() Option {
	return func(e *Engine) { e.strictInvariants = true }
}

// New builds an engine. Permissions and Trail must be non-nil.
func New(deps Deps, opts ...Option) (*Engine, error) {
	if deps.Permissions == nil {
		return nil, fmt.Errorf("engine: permission source is required")
	}
	if deps.Trail == nil {
		return nil, fmt.Errorf("engine: audit trail is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := &Engine{deps: deps, log: deps.Logger.With("component", "engine")}
	e.phase.Store(PhaseIdle)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Phase returns the engine's current lifecycle phase.
func (e *Engine) Phase() Phase {
	return e.phase.Load().(Phase)
}

// IsExecuting reports whether an execution is in flight.
func (e *Engine) IsExecuting() bool {
	return e.executing.Load()
}

func failedResult(message string) contracts.ExecutionResult {
	return contracts.ExecutionResult{
		Status:  contracts.StatusFailed,
		Message: message,
	}
}

// Execute runs one approved draft. approvalState is consumed by this one
// attempt and must not be reused.
//
// Guard order is fixed: the in-flight check comes first and returns
// before any validation or adapter work; then the approval gate re-runs
// against a live permission snapshot; then each side effect is dispatched
// in declaration order with the two-key check and a fresh permission
// read applied per effect. Every attempted effect lands in the audit
// trail, in the same order it was declared.
func (e *Engine) Execute(
	ctx context.Context,
	draft *contracts.Draft,
	effects []contracts.SideEffect,
	approvalState contracts.ApprovalState,
) contracts.ExecutionResult {
	// Highest-priority guard: single flight. Checked and taken before
	// any validation so a concurrent caller cannot even reach the gate.
	if !e.executing.CompareAndSwap(false, true) {
		return failedResult(contracts.ErrExecutionInProgress.Error())
	}
	defer func() {
		e.executing.Store(false)
	}()

	ctx, finish := e.deps.Telemetry.TrackExecution(ctx, draftID(draft), len(effects))
	result := e.run(ctx, draft, effects, approvalState)

	switch result.Status {
	case contracts.StatusSuccess:
		e.phase.Store(PhaseCompleted)
		finish(nil)
	default:
		e.phase.Store(PhaseFailed)
		finish(fmt.Errorf("execution %s: %s", result.Status, result.Message))
	}
	return result
}

func (e *Engine) run(
	ctx context.Context,
	draft *contracts.Draft,
	effects []contracts.SideEffect,
	approvalState contracts.ApprovalState,
) contracts.ExecutionResult {
	e.phase.Store(PhaseValidating)

	// A caller that reaches the engine without approval was supposed to
	// be blocked upstream; that is a programming defect, not user error.
	if draft != nil && !approvalState.ApprovalGranted {
		violation := &contracts.InvariantViolation{
			Invariant: "approval-before-engine",
			Detail:    fmt.Sprintf("engine invoked without approval for draft %s", draft.ID),
		}
		if e.strictInvariants {
			panic(violation)
		}
		e.log.Error("invariant violation, failing closed",
			"invariant", violation.Invariant, "draft_id", draft.ID)
	}

	// Payload shapes are checked before any gate so malformed effects
	// can never be dispatched, whatever the approval state says.
	for _, effect := range effects {
		if err := sideeffect.ValidatePayload(effect); err != nil {
			return failedResult(err.Error())
		}
	}

	// Defense in depth: re-run the approval gate with a permission
	// snapshot taken now, not one captured by the caller earlier.
	decision := approval.CanExecute(
		draft,
		approvalState.ApprovalGranted,
		effects,
		e.deps.Permissions.CurrentState(),
		approvalState.DidConfirmLowConfidence,
	)
	if !decision.CanProceed {
		return failedResult(decision.Reason)
	}

	e.phase.Store(PhaseDispatching)
	approvalTime := time.Now().UTC()

	outcomes := make([]contracts.ExecutedSideEffect, 0, len(effects))
	for _, effect := range effects {
		outcomes = append(outcomes, e.dispatchOne(ctx, effect, approvalState))
	}

	result := contracts.ExecutionResult{
		ExecutedSideEffects: outcomes,
		AuditTrail:          make([]contracts.AuditEvent, 0, len(outcomes)),
	}
	result.Status, result.Message = summarize(outcomes)

	// Audit events append in declaration order, one per outcome. An
	// audit failure downgrades the result: success that cannot be
	// recorded is not reported as success.
	for _, outcome := range outcomes {
		event, err := e.deps.Trail.RecordEvent(audit.Record{
			DraftID:            draftID(draft),
			SideEffectKind:     outcome.Kind,
			Outcome:            outcome.Outcome,
			Detail:             outcome.Error,
			ApprovalTimestamp:  approvalTime,
			ExecutionTimestamp: time.Now().UTC(),
		})
		if err != nil {
			e.log.Error("audit append failed", "kind", outcome.Kind, "error", err)
			result.Status = contracts.StatusFailed
			result.Message = fmt.Sprintf("audit trail write failed: %v", err)
			return result
		}
		result.AuditTrail = append(result.AuditTrail, event)
	}

	e.saveHistory(ctx, result)

	if result.Status == contracts.StatusSuccess && draft != nil {
		donation.Offer(ctx, e.deps.Donor, e.log, draft.ID,
			approvalState.ApprovalGranted, true, draft.Confidence, draft.Synthetic)
	}

	return result
}

// saveHistory is fire-and-forget: the history sink guarantees its own
// durability, and its failure never changes the execution result.
func (e *Engine) saveHistory(ctx context.Context, result contracts.ExecutionResult) {
	if e.deps.History == nil {
		return
	}
	if err := e.deps.History.Save(ctx, result); err != nil {
		e.log.Warn("history save failed", "status", result.Status, "error", err)
	}
}

// summarize derives the terminal status from per-effect outcomes. A
// blocked or failed batch always carries the first specific reason;
// silent failure is forbidden.
func summarize(outcomes []contracts.ExecutedSideEffect) (contracts.ExecutionStatus, string) {
	if len(outcomes) == 0 {
		return contracts.StatusSuccess, "nothing to execute"
	}
	succeeded := 0
	firstReason := ""
	for _, o := range outcomes {
		if o.Outcome == contracts.OutcomeSuccess {
			succeeded++
		} else if firstReason == "" {
			firstReason = fmt.Sprintf("%s: %s", o.Kind, o.Error)
		}
	}
	switch {
	case succeeded == len(outcomes):
		return contracts.StatusSuccess, "all side effects executed"
	case succeeded > 0:
		return contracts.StatusPartialSuccess,
			fmt.Sprintf("%d of %d side effects executed; first failure: %s", succeeded, len(outcomes), firstReason)
	default:
		return contracts.StatusFailed, firstReason
	}
}

func draftID(draft *contracts.Draft) string {
	if draft == nil {
		return ""
	}
	return draft.ID
}
