// Package sideeffect holds the static side-effect catalog: the exhaustive
// classification of every action kind into its required permission scope
// and write/read class, plus JSON Schema validation of payload shapes.
//
// The catalog is the same enumeration as contracts.SideEffectKind; a kind
// without a catalog entry is unusable, and VerifyCatalog (run by the
// doctor command and the test suite) rejects any table that misses a kind
// or classifies a write without a permission scope.
package sideeffect

import (
	"fmt"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// Classification is the catalog's answer for one action kind.
type Classification struct {
	// Permission is the OS grant required before dispatch, or
	// contracts.ScopeNone for kinds that touch nothing permission-gated.
	Permission contracts.Scope

	// IsWrite marks kinds that mutate external state. Write kinds demand
	// the two-key confirmation in addition to the first approval.
	IsWrite bool
}

// catalog is the single source of truth. Every write entry carries a
// non-none scope; VerifyCatalog enforces that pairing.
var catalog = map[contracts.SideEffectKind]Classification{
	contracts.KindSendEmail:            {Permission: contracts.ScopeMail, IsWrite: true},
	contracts.KindPresentEmailDraft:    {Permission: contracts.ScopeMail, IsWrite: false},
	contracts.KindCreateReminder:       {Permission: contracts.ScopeReminders, IsWrite: true},
	contracts.KindPreviewReminder:      {Permission: contracts.ScopeNone, IsWrite: false},
	contracts.KindCreateCalendarEvent:  {Permission: contracts.ScopeCalendar, IsWrite: true},
	contracts.KindUpdateCalendarEvent:  {Permission: contracts.ScopeCalendar, IsWrite: true},
	contracts.KindPreviewCalendarEvent: {Permission: contracts.ScopeNone, IsWrite: false},
	contracts.KindSaveToMemory:         {Permission: contracts.ScopeMemory, IsWrite: true},
}

// Classify returns the classification for kind. Unknown kinds are a
// programming defect and fail closed with an error.
func Classify(kind contracts.SideEffectKind) (Classification, error) {
	c, ok := catalog[kind]
	if !ok {
		return Classification{}, fmt.Errorf("unknown side effect kind %q", kind)
	}
	return c, nil
}

// IsWrite reports whether kind mutates external state. Unknown kinds are
// treated as writes so they can only fail more checks, never fewer.
func IsWrite(kind contracts.SideEffectKind) bool {
	c, ok := catalog[kind]
	if !ok {
		return true
	}
	return c.IsWrite
}

// VerifyCatalog checks the construction invariants of the table:
// every declared kind has an entry and a compiled payload schema, there
// are no entries for undeclared kinds, and every write-classified kind
// requires a non-none permission scope.
func VerifyCatalog() error {
	declared := make(map[contracts.SideEffectKind]bool)
	for _, kind := range contracts.AllSideEffectKinds() {
		declared[kind] = true
		c, ok := catalog[kind]
		if !ok {
			return fmt.Errorf("catalog missing entry for kind %q", kind)
		}
		if c.IsWrite && c.Permission == contracts.ScopeNone {
			return fmt.Errorf("write kind %q declares no permission scope", kind)
		}
		if _, ok := payloadSchemas[kind]; !ok {
			return fmt.Errorf("catalog missing payload schema for kind %q", kind)
		}
	}
	for kind := range catalog {
		if !declared[kind] {
			return fmt.Errorf("catalog entry %q is not a declared kind", kind)
		}
	}
	return nil
}
