package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unclefole/operatorkit/pkg/adapters"
	"github.com/Unclefole/operatorkit/pkg/audit"
	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// countingReminders counts CreateReminder calls and can fail or block on
// demand, which the concurrency tests use to hold an execution in flight.
type countingReminders struct {
	calls   atomic.Int64
	failErr error
	block   chan struct{} // when non-nil, CreateReminder waits for a close
	started chan struct{} // closed once the adapter has been entered
}

func (r *countingReminders) CreateReminder(ctx context.Context, payload contracts.ReminderPayload) (string, error) {
	r.calls.Add(1)
	if r.started != nil {
		close(r.started)
		r.started = nil
	}
	if r.block != nil {
		<-r.block
	}
	if r.failErr != nil {
		return "", r.failErr
	}
	return "rem-1", nil
}

type countingMemory struct {
	calls atomic.Int64
}

func (m *countingMemory) SaveMemory(ctx context.Context, payload contracts.MemoryPayload) error {
	m.calls.Add(1)
	return nil
}

type recordingDonor struct {
	mu     sync.Mutex
	drafts []string
}

func (d *recordingDonor) Donate(ctx context.Context, draftID string) error {
	d.mu.Lock()
	d.drafts = append(d.drafts, draftID)
	d.mu.Unlock()
	return nil
}

func (d *recordingDonor) donated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.drafts...)
}

type recordingHistory struct {
	mu      sync.Mutex
	results []contracts.ExecutionResult
	failErr error
}

func (h *recordingHistory) Save(ctx context.Context, result contracts.ExecutionResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failErr != nil {
		return h.failErr
	}
	h.results = append(h.results, result)
	return nil
}

// failingSink makes every audit append fail so the downgrade path can be
// exercised.
type failingSink struct{}

func (failingSink) Append(contracts.AuditEvent) error    { return errors.New("disk full") }
func (failingSink) Trim(int) error                        { return nil }
func (failingSink) PurgeAll() error                       { return nil }
func (failingSink) Load() ([]contracts.AuditEvent, error) { return nil, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTrail(t *testing.T) *audit.Trail {
	t.Helper()
	trail, err := audit.NewTrail(nil, 0, testLogger())
	require.NoError(t, err)
	return trail
}

type fixture struct {
	engine    *Engine
	perms     *adapters.StaticPermissions
	reminders *countingReminders
	memory    *countingMemory
	donor     *recordingDonor
	history   *recordingHistory
	trail     *audit.Trail
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		perms: adapters.NewStaticPermissions(contracts.PermissionState{
			Calendar: true, Reminders: true, Mail: true, Memory: true,
		}),
		reminders: &countingReminders{},
		memory:    &countingMemory{},
		donor:     &recordingDonor{},
		history:   &recordingHistory{},
		trail:     newTrail(t),
	}
	eng, err := New(Deps{
		Permissions: f.perms,
		Reminders:   f.reminders,
		Memory:      f.memory,
		History:     f.history,
		Trail:       f.trail,
		Donor:       f.donor,
		Logger:      testLogger(),
	}, opts...)
	require.NoError(t, err)
	f.engine = eng
	return f
}

func reminderDraft(confidence float64) *contracts.Draft {
	return &contracts.Draft{
		ID:         "draft-1",
		ContentRef: "ref-1",
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}
}

func reminderEffects() []contracts.SideEffect {
	return []contracts.SideEffect{{
		ID:      "eff-1",
		Kind:    contracts.KindCreateReminder,
		Payload: contracts.ReminderPayload{Title: "Water plants"},
	}}
}

func fullApproval() contracts.ApprovalState {
	return contracts.ApprovalState{
		ApprovalGranted:           true,
		SecondConfirmationGranted: true,
	}
}

func TestNew_RequiresPermissionsAndTrail(t *testing.T) {
	_, err := New(Deps{Trail: newTrail(t)})
	assert.Error(t, err)
	_, err = New(Deps{Permissions: adapters.NewStaticPermissions(contracts.PermissionState{})})
	assert.Error(t, err)
}

func TestExecute_HappyPath(t *testing.T) {
	f := newFixture(t)
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())

	assert.Equal(t, contracts.StatusSuccess, result.Status)
	require.Len(t, result.ExecutedSideEffects, 1)
	assert.Equal(t, contracts.OutcomeSuccess, result.ExecutedSideEffects[0].Outcome)
	assert.EqualValues(t, 1, f.reminders.calls.Load())

	// One audit event per effect, both in the result and in the trail.
	require.Len(t, result.AuditTrail, 1)
	assert.Equal(t, 1, f.trail.Len())
	assert.NoError(t, f.trail.VerifyChain())

	// 0.9 >= the donation threshold, approved, successful, not synthetic.
	assert.Equal(t, []string{"draft-1"}, f.donor.donated())

	assert.Equal(t, PhaseCompleted, f.engine.Phase())
	assert.False(t, f.engine.IsExecuting())
}

func TestExecute_WithoutApprovalTouchesNoAdapter(t *testing.T) {
	f := newFixture(t)
	state := contracts.ApprovalState{SecondConfirmationGranted: true}
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), state)

	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "approval")
	assert.Zero(t, f.reminders.calls.Load())
	assert.Empty(t, f.donor.donated())
}

func TestExecute_StrictInvariantsPanicsOnMissingApproval(t *testing.T) {
	f := newFixture(t, WithStrictInvariants())
	assert.Panics(t, func() {
		f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), contracts.ApprovalState{})
	})
}

func TestExecute_WriteWithoutSecondKeyIsBlocked(t *testing.T) {
	f := newFixture(t)
	state := contracts.ApprovalState{ApprovalGranted: true}
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), state)

	assert.Equal(t, contracts.StatusFailed, result.Status)
	require.Len(t, result.ExecutedSideEffects, 1)
	assert.Equal(t, contracts.OutcomeBlocked, result.ExecutedSideEffects[0].Outcome)
	assert.Zero(t, f.reminders.calls.Load())
}

func TestExecute_SecondKeyBlocksWritesIndividually(t *testing.T) {
	f := newFixture(t)
	effects := []contracts.SideEffect{
		{ID: "e-1", Kind: contracts.KindPreviewReminder,
			Payload: contracts.ReminderPayload{Title: "Preview me"}},
		{ID: "e-2", Kind: contracts.KindCreateReminder,
			Payload: contracts.ReminderPayload{Title: "Write me"}},
	}
	state := contracts.ApprovalState{ApprovalGranted: true}
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), effects, state)

	assert.Equal(t, contracts.StatusPartialSuccess, result.Status)
	require.Len(t, result.ExecutedSideEffects, 2)
	assert.Equal(t, contracts.OutcomeSuccess, result.ExecutedSideEffects[0].Outcome)
	assert.Equal(t, contracts.OutcomeBlocked, result.ExecutedSideEffects[1].Outcome)
	assert.Zero(t, f.reminders.calls.Load())
}

func TestExecute_LowConfidenceNeedsAcknowledgement(t *testing.T) {
	f := newFixture(t)
	result := f.engine.Execute(context.Background(), reminderDraft(0.3), reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Zero(t, f.reminders.calls.Load())

	state := fullApproval()
	state.DidConfirmLowConfidence = true
	result = f.engine.Execute(context.Background(), reminderDraft(0.3), reminderEffects(), state)
	assert.Equal(t, contracts.StatusSuccess, result.Status)
	// Confidence 0.3 is below the donation threshold even though the
	// execution succeeded.
	assert.Empty(t, f.donor.donated())
}

func TestExecute_MissingPermissionFailsBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.perms.Set(contracts.PermissionState{Reminders: false})
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())

	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "reminders")
	assert.Zero(t, f.reminders.calls.Load())
}

// revokingPermissions grants everything on the first CurrentState read and
// nothing afterwards, modeling a grant revoked between validation and
// dispatch.
type revokingPermissions struct {
	reads atomic.Int64
}

func (p *revokingPermissions) CurrentState() contracts.PermissionState {
	if p.reads.Add(1) == 1 {
		return contracts.PermissionState{Calendar: true, Reminders: true, Mail: true, Memory: true}
	}
	return contracts.PermissionState{}
}

func TestExecute_RevocationBetweenValidationAndDispatch(t *testing.T) {
	perms := &revokingPermissions{}
	reminders := &countingReminders{}
	eng, err := New(Deps{
		Permissions: perms,
		Reminders:   reminders,
		Trail:       newTrail(t),
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	result := eng.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())

	// The gate saw the grant; the fresh read before dispatch did not.
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "revoked")
	require.Len(t, result.ExecutedSideEffects, 1)
	assert.Equal(t, contracts.OutcomeFailed, result.ExecutedSideEffects[0].Outcome)
	assert.Zero(t, reminders.calls.Load())
	assert.GreaterOrEqual(t, perms.reads.Load(), int64(2))
}

func TestExecute_MalformedPayloadRejectedBeforeGates(t *testing.T) {
	f := newFixture(t)
	effects := []contracts.SideEffect{{
		ID:      "eff-1",
		Kind:    contracts.KindCreateReminder,
		Payload: contracts.ReminderPayload{}, // no title
	}}
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), effects, fullApproval())
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Zero(t, f.reminders.calls.Load())
	assert.Zero(t, f.trail.Len())
}

func TestExecute_PartialFailureAttemptsEveryEffect(t *testing.T) {
	f := newFixture(t)
	f.reminders.failErr = errors.New("store unavailable")
	effects := []contracts.SideEffect{
		{ID: "e-1", Kind: contracts.KindCreateReminder,
			Payload: contracts.ReminderPayload{Title: "Will fail"}},
		{ID: "e-2", Kind: contracts.KindSaveToMemory,
			Payload: contracts.MemoryPayload{Key: "k", Content: "Will succeed"}},
	}
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), effects, fullApproval())

	assert.Equal(t, contracts.StatusPartialSuccess, result.Status)
	require.Len(t, result.ExecutedSideEffects, 2)
	assert.Equal(t, contracts.OutcomeFailed, result.ExecutedSideEffects[0].Outcome)
	assert.Equal(t, contracts.OutcomeSuccess, result.ExecutedSideEffects[1].Outcome)
	assert.EqualValues(t, 1, f.reminders.calls.Load())
	assert.EqualValues(t, 1, f.memory.calls.Load())

	// Partial success never donates.
	assert.Empty(t, f.donor.donated())
	// Both attempts are audited, in declaration order.
	events := f.trail.Events()
	require.Len(t, events, 2)
	assert.Equal(t, contracts.KindCreateReminder, events[0].SideEffectKind)
	assert.Equal(t, contracts.KindSaveToMemory, events[1].SideEffectKind)
}

func TestExecute_MissingAdapterFailsThatEffect(t *testing.T) {
	perms := adapters.NewStaticPermissions(contracts.PermissionState{Calendar: true})
	eng, err := New(Deps{
		Permissions: perms,
		Trail:       newTrail(t),
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	effects := []contracts.SideEffect{{
		ID:   "e-1",
		Kind: contracts.KindCreateCalendarEvent,
		Payload: contracts.CalendarEventPayload{
			Title:    "Standup",
			StartsAt: time.Now().UTC(),
			EndsAt:   time.Now().UTC().Add(time.Hour),
		},
	}}
	result := eng.Execute(context.Background(), reminderDraft(0.9), effects, fullApproval())
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "adapter not configured")
}

func TestExecute_SingleFlight(t *testing.T) {
	f := newFixture(t)
	f.reminders.block = make(chan struct{})
	f.reminders.started = make(chan struct{})
	started := f.reminders.started

	firstDone := make(chan contracts.ExecutionResult, 1)
	go func() {
		firstDone <- f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())
	}()

	// Wait until the first execution is inside the adapter, then race a
	// second one against it.
	<-started
	assert.True(t, f.engine.IsExecuting())
	second := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusFailed, second.Status)
	assert.Equal(t, contracts.ErrExecutionInProgress.Error(), second.Message)

	close(f.reminders.block)
	first := <-firstDone
	assert.Equal(t, contracts.StatusSuccess, first.Status)

	// Exactly one execution reached the adapter.
	assert.EqualValues(t, 1, f.reminders.calls.Load())
	assert.False(t, f.engine.IsExecuting())
}

func TestExecute_GuardReleasedAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.reminders.failErr = errors.New("transient")
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusFailed, result.Status)

	f.reminders.failErr = nil
	result = f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusSuccess, result.Status)
}

func TestExecute_AuditFailureDowngradesResult(t *testing.T) {
	trail, err := audit.NewTrail(failingSink{}, 0, testLogger())
	require.NoError(t, err)

	reminders := &countingReminders{}
	donor := &recordingDonor{}
	eng, err := New(Deps{
		Permissions: adapters.NewStaticPermissions(contracts.PermissionState{Reminders: true}),
		Reminders:   reminders,
		Trail:       trail,
		Donor:       donor,
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	result := eng.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "audit trail write failed")
	// The adapter did run; only the report is downgraded.
	assert.EqualValues(t, 1, reminders.calls.Load())
	// A downgraded result never donates.
	assert.Empty(t, donor.donated())
}

func TestExecute_SyntheticDraftNeverDonates(t *testing.T) {
	f := newFixture(t)
	draft := reminderDraft(0.9)
	draft.Synthetic = true
	result := f.engine.Execute(context.Background(), draft, reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusSuccess, result.Status)
	assert.Empty(t, f.donor.donated())
}

func TestExecute_HistoryFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(t)
	f.history.failErr = errors.New("history db locked")
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusSuccess, result.Status)
}

func TestExecute_EmptyBatchSucceeds(t *testing.T) {
	f := newFixture(t)
	result := f.engine.Execute(context.Background(), reminderDraft(0.9), nil, fullApproval())
	assert.Equal(t, contracts.StatusSuccess, result.Status)
	assert.Empty(t, result.ExecutedSideEffects)
}

func TestExecute_NilDraftFailsClosed(t *testing.T) {
	f := newFixture(t)
	result := f.engine.Execute(context.Background(), nil, reminderEffects(), fullApproval())
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Zero(t, f.reminders.calls.Load())
}

func TestSummarize(t *testing.T) {
	ok := contracts.ExecutedSideEffect{Kind: contracts.KindCreateReminder, Outcome: contracts.OutcomeSuccess}
	bad := contracts.ExecutedSideEffect{Kind: contracts.KindSendEmail, Outcome: contracts.OutcomeFailed, Error: "smtp down"}

	status, _ := summarize(nil)
	assert.Equal(t, contracts.StatusSuccess, status)

	status, _ = summarize([]contracts.ExecutedSideEffect{ok, ok})
	assert.Equal(t, contracts.StatusSuccess, status)

	status, msg := summarize([]contracts.ExecutedSideEffect{ok, bad})
	assert.Equal(t, contracts.StatusPartialSuccess, status)
	assert.Contains(t, msg, "smtp down")

	status, msg = summarize([]contracts.ExecutedSideEffect{bad})
	assert.Equal(t, contracts.StatusFailed, status)
	assert.Contains(t, msg, fmt.Sprintf("%s:", contracts.KindSendEmail))
}
