package contracts

// Scope identifies an OS-level permission grant the core can require
// before dispatching a side effect.
type Scope string

const (
	ScopeNone      Scope = ""
	ScopeCalendar  Scope = "calendar"
	ScopeReminders Scope = "reminders"
	ScopeMail      Scope = "mail"
	ScopeMemory    Scope = "memory"
)

// PermissionState is a point-in-time snapshot of OS-level grants. It is
// read live at validation time and again immediately before each
// permission-gated dispatch; it must never be cached across the
// approval->execution gap, because grants can be revoked in between.
type PermissionState struct {
	Calendar  bool `json:"calendar"`
	Reminders bool `json:"reminders"`
	Mail      bool `json:"mail"`
	Memory    bool `json:"memory"`
}

// Granted reports whether the snapshot shows the scope as granted.
// ScopeNone is always granted.
func (p PermissionState) Granted(scope Scope) bool {
	switch scope {
	case ScopeNone:
		return true
	case ScopeCalendar:
		return p.Calendar
	case ScopeReminders:
		return p.Reminders
	case ScopeMail:
		return p.Mail
	case ScopeMemory:
		return p.Memory
	default:
		// Unknown scopes fail closed.
		return false
	}
}
