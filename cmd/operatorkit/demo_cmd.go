package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Unclefole/operatorkit/pkg/adapters"
	"github.com/Unclefole/operatorkit/pkg/approval"
	"github.com/Unclefole/operatorkit/pkg/assistant"
	"github.com/Unclefole/operatorkit/pkg/audit"
	"github.com/Unclefole/operatorkit/pkg/config"
	"github.com/Unclefole/operatorkit/pkg/contracts"
	"github.com/Unclefole/operatorkit/pkg/engine"
	"github.com/Unclefole/operatorkit/pkg/observability"
	"github.com/Unclefole/operatorkit/pkg/store"
)

// logDonor logs accepted donations; the demo has no OS suggestion system
// to hand them to.
type logDonor struct{ log *slog.Logger }

func (d *logDonor) Donate(ctx context.Context, draftID string) error {
	_ = ctx
	d.log.Info("workflow donated", "draft_id", draftID)
	return nil
}

// runDemo routes an intent through the assistant boundary, then runs one
// reminder draft through the full approval -> two-key -> execution path.
func runDemo(cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	title := fs.String("title", "Pick up the dry cleaning", "reminder title")
	confidence := fs.Float64("confidence", 0.8, "draft confidence (0.0-1.0)")
	approve := fs.Bool("approve", false, "grant the first approval")
	confirmWrites := fs.Bool("confirm-writes", false, "grant the write confirmation (second key)")
	confirmLow := fs.Bool("confirm-low-confidence", false, "acknowledge a low-confidence draft")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()

	telemetry, err := observability.New(ctx, &observability.Config{
		ServiceName:  "operatorkit",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TelemetryEnabled,
		Insecure:     true,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
	})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer telemetry.Shutdown(ctx)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	sink, err := store.NewSQLiteAuditSink(db)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	trail, err := audit.NewTrail(sink, cfg.AuditMaxEvents, logger)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	history, err := store.NewSQLiteHistoryStore(db)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	perms := adapters.NewStaticPermissions(contracts.PermissionState{
		Calendar: true, Reminders: true, Mail: true, Memory: true,
	})

	deps := engine.Deps{
		Permissions: perms,
		Calendar:    adapters.NewLogCalendar(logger),
		Reminders:   adapters.NewLogReminders(logger),
		Mail:        adapters.NewLogMail(logger),
		Memory:      adapters.NewLogMemory(logger),
		History:     history,
		Trail:       trail,
		Donor:       &logDonor{log: logger},
		Telemetry:   telemetry,
		Logger:      logger,
	}
	var opts []engine.Option
	if cfg.StrictInvariants {
		opts = append(opts, engine.WithStrictInvariants())
	}
	eng, err := engine.New(deps, opts...)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	// The assistant boundary only stages text; the draft below stands in
	// for the out-of-scope generation pipeline consuming that prefill.
	router := assistant.NewRouter(logger, cfg.IntentsPerMinute, cfg.IntentBurst)
	staged, err := router.RouteIntent("remind me: "+*title, assistant.SourceShortcut)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	logger.Info("assistant staged intent", "prefill", staged.Prefill)

	draft := &contracts.Draft{
		ID:         uuid.New().String(),
		ContentRef: staged.Prefill,
		Confidence: *confidence,
		CreatedAt:  time.Now().UTC(),
	}
	effects := []contracts.SideEffect{{
		ID:      uuid.New().String(),
		Kind:    contracts.KindCreateReminder,
		Payload: contracts.ReminderPayload{Title: *title},
	}}

	approvalState := contracts.ApprovalState{
		ApprovalGranted:           *approve,
		SecondConfirmationGranted: *confirmWrites,
		DidConfirmLowConfidence:   *confirmLow,
	}

	// Caller-side gate check; the engine re-runs the same gate before
	// dispatch against a fresh permission snapshot.
	decision := approval.CanExecute(draft, approvalState.ApprovalGranted, effects,
		perms.CurrentState(), approvalState.DidConfirmLowConfidence)
	if !decision.CanProceed {
		logger.Warn("approval gate blocked execution", "reason", decision.Reason)
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(contracts.ExecutionResult{
			Status:  contracts.StatusFailed,
			Message: decision.Reason,
		}); err != nil {
			fmt.Fprintln(stderr, "error:", err)
		}
		return 1
	}
	logger.Info("approval gate passed")

	result := eng.Execute(ctx, draft, effects, approvalState)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if result.Status != contracts.StatusSuccess {
		return 1
	}
	return 0
}
