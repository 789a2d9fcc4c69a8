// Package adapters declares the collaborator interfaces the execution
// engine dispatches through. Concrete OS-level implementations (EventKit,
// mail composer, biometrics) live outside this repository; the package
// ships log-only reference adapters used by the CLI demo and the tests.
package adapters

import (
	"context"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// CalendarAdapter writes to the user's calendar store. UpdateEvent takes
// an identifier that must come from a user-selected event; the core never
// synthesizes one.
type CalendarAdapter interface {
	CreateEvent(ctx context.Context, payload contracts.CalendarEventPayload) (identifier string, err error)
	UpdateEvent(ctx context.Context, identifier string, payload contracts.CalendarEventPayload) error
}

// ReminderAdapter writes to the user's reminder store.
type ReminderAdapter interface {
	CreateReminder(ctx context.Context, payload contracts.ReminderPayload) (identifier string, err error)
}

// MailAdapter presents a mail composer pre-filled with the payload. The
// core never sends mail itself; sending stays a user action inside the
// presented composer.
type MailAdapter interface {
	PresentComposer(ctx context.Context, payload contracts.EmailPayload) error
}

// PermissionSource reads the live OS-level grant state. Implementations
// must answer from the OS on every call, not from a cache: the engine
// re-reads immediately before each permission-gated dispatch precisely
// because grants can be revoked between approval and execution.
type PermissionSource interface {
	CurrentState() contracts.PermissionState
}

// HistorySink durably records completed executions for the assistant's
// memory. The engine treats Save as fire-and-forget; the sink itself must
// guarantee the write is durable before returning.
type HistorySink interface {
	Save(ctx context.Context, result contracts.ExecutionResult) error
}

// MemoryWriter persists saveToMemory payloads.
type MemoryWriter interface {
	SaveMemory(ctx context.Context, payload contracts.MemoryPayload) error
}
