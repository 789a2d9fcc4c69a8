package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// LogCalendar is a reference CalendarAdapter that records events in memory
// and logs every call. Used by the CLI demo and integration tests.
type LogCalendar struct {
	log *slog.Logger

	mu     sync.Mutex
	events map[string]contracts.CalendarEventPayload
}

func NewLogCalendar(log *slog.Logger) *LogCalendar {
	return &LogCalendar{
		log:    log,
		events: make(map[string]contracts.CalendarEventPayload),
	}
}

func (c *LogCalendar) CreateEvent(ctx context.Context, payload contracts.CalendarEventPayload) (string, error) {
	_ = ctx
	id := uuid.New().String()
	c.mu.Lock()
	c.events[id] = payload
	c.mu.Unlock()
	c.log.Info("calendar event created", "event_id", id, "title", payload.Title)
	return id, nil
}

func (c *LogCalendar) UpdateEvent(ctx context.Context, identifier string, payload contracts.CalendarEventPayload) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[identifier]; !ok {
		return &contracts.AdapterError{
			Kind: contracts.KindUpdateCalendarEvent,
			Op:   "update_event",
			Err:  fmt.Errorf("unknown event identifier %q", identifier),
		}
	}
	c.events[identifier] = payload
	c.log.Info("calendar event updated", "event_id", identifier, "title", payload.Title)
	return nil
}

// LogReminders is a reference ReminderAdapter.
type LogReminders struct {
	log *slog.Logger
}

func NewLogReminders(log *slog.Logger) *LogReminders {
	return &LogReminders{log: log}
}

func (r *LogReminders) CreateReminder(ctx context.Context, payload contracts.ReminderPayload) (string, error) {
	_ = ctx
	id := uuid.New().String()
	r.log.Info("reminder created", "reminder_id", id, "title", payload.Title)
	return id, nil
}

// LogMail is a reference MailAdapter; it logs the composer request rather
// than presenting UI.
type LogMail struct {
	log *slog.Logger
}

func NewLogMail(log *slog.Logger) *LogMail {
	return &LogMail{log: log}
}

func (m *LogMail) PresentComposer(ctx context.Context, payload contracts.EmailPayload) error {
	_ = ctx
	m.log.Info("mail composer presented", "to", payload.To, "subject", payload.Subject)
	return nil
}

// StaticPermissions is a PermissionSource over a mutable snapshot, for
// the CLI demo and tests. Set and CurrentState are safe for concurrent use.
type StaticPermissions struct {
	mu    sync.RWMutex
	state contracts.PermissionState
}

func NewStaticPermissions(state contracts.PermissionState) *StaticPermissions {
	return &StaticPermissions{state: state}
}

func (p *StaticPermissions) CurrentState() contracts.PermissionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *StaticPermissions) Set(state contracts.PermissionState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// LogMemory is a reference MemoryWriter.
type LogMemory struct {
	log *slog.Logger

	mu      sync.Mutex
	entries map[string]string
}

func NewLogMemory(log *slog.Logger) *LogMemory {
	return &LogMemory{log: log, entries: make(map[string]string)}
}

func (m *LogMemory) SaveMemory(ctx context.Context, payload contracts.MemoryPayload) error {
	_ = ctx
	m.mu.Lock()
	m.entries[payload.Key] = payload.Content
	m.mu.Unlock()
	m.log.Info("memory saved", "key", payload.Key)
	return nil
}
