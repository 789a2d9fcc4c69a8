package contracts

import "time"

// SideEffectKind enumerates every executable action kind the core knows.
// The side-effect catalog (pkg/sideeffect) is keyed by this enumeration;
// adding a kind here without a catalog entry fails VerifyCatalog at startup.
type SideEffectKind string

const (
	KindSendEmail            SideEffectKind = "sendEmail"
	KindPresentEmailDraft    SideEffectKind = "presentEmailDraft"
	KindCreateReminder       SideEffectKind = "createReminder"
	KindPreviewReminder      SideEffectKind = "previewReminder"
	KindCreateCalendarEvent  SideEffectKind = "createCalendarEvent"
	KindUpdateCalendarEvent  SideEffectKind = "updateCalendarEvent"
	KindPreviewCalendarEvent SideEffectKind = "previewCalendarEvent"
	KindSaveToMemory         SideEffectKind = "saveToMemory"
)

// AllSideEffectKinds lists every kind, in a stable order. Used by the
// catalog exhaustiveness check and by the doctor command.
func AllSideEffectKinds() []SideEffectKind {
	return []SideEffectKind{
		KindSendEmail,
		KindPresentEmailDraft,
		KindCreateReminder,
		KindPreviewReminder,
		KindCreateCalendarEvent,
		KindUpdateCalendarEvent,
		KindPreviewCalendarEvent,
		KindSaveToMemory,
	}
}

// SideEffect is one concrete external action carried by a draft.
// Payload holds the kind-specific payload struct below; the dispatch site
// in the engine switches exhaustively on Kind.
type SideEffect struct {
	ID      string         `json:"id"`
	Kind    SideEffectKind `json:"kind"`
	Payload Payload        `json:"payload"`
}

// Payload is the marker interface for kind-specific payloads. The concrete
// type must agree with the SideEffect's Kind; pkg/sideeffect.ValidatePayload
// checks the pairing and the payload shape.
type Payload interface {
	sideEffectPayload()
}

// EmailPayload backs sendEmail and presentEmailDraft.
type EmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ReminderPayload backs createReminder and previewReminder.
type ReminderPayload struct {
	Title   string     `json:"title"`
	Notes   string     `json:"notes,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// CalendarEventPayload backs the calendar kinds. EventID is required for
// updates and must originate from a user-selected event; the core never
// synthesizes one.
type CalendarEventPayload struct {
	EventID  string    `json:"event_id,omitempty"`
	Title    string    `json:"title"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// MemoryPayload backs saveToMemory.
type MemoryPayload struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

func (EmailPayload) sideEffectPayload()         {}
func (ReminderPayload) sideEffectPayload()      {}
func (CalendarEventPayload) sideEffectPayload() {}
func (MemoryPayload) sideEffectPayload()        {}
