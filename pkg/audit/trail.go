// Package audit implements the append-only execution audit trail: a
// bounded, hash-chained ring of events that is persisted synchronously on
// every append and survives process restart.
//
// Events are never edited or reordered. The only removals are FIFO
// eviction once the ring reaches capacity and an explicit, user-initiated
// full purge.
package audit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/Unclefole/operatorkit/pkg/canonicalize"
	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// DefaultMaxEvents bounds the trail when the caller does not configure a
// capacity.
const DefaultMaxEvents = 500

var ErrChainBroken = errors.New("audit chain is broken")

// Sink persists events durably. Append must not return until the event
// would survive an immediate process kill; Trim removes the oldest n
// persisted events (FIFO eviction mirrored to disk); PurgeAll empties the
// persisted trail.
type Sink interface {
	Append(event contracts.AuditEvent) error
	Trim(n int) error
	PurgeAll() error
	Load() ([]contracts.AuditEvent, error)
}

// Trail is the in-memory ring backed by a Sink. All methods are safe for
// concurrent use; ordering within one execution follows the order
// RecordEvent is called, which the engine ties to declaration order.
type Trail struct {
	mu        sync.RWMutex
	events    []contracts.AuditEvent
	maxEvents int
	chainHead string
	sink      Sink
	log       *slog.Logger
}

// NewTrail opens a trail over sink, replaying any persisted events into
// the ring. Records from an older minor of the same schema major are
// accepted; a major mismatch fails open-loudly here rather than
// corrupting the chain later.
func NewTrail(sink Sink, maxEvents int, log *slog.Logger) (*Trail, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if log == nil {
		log = slog.Default()
	}
	t := &Trail{
		maxEvents: maxEvents,
		sink:      sink,
		log:       log,
	}
	if sink != nil {
		persisted, err := sink.Load()
		if err != nil {
			return nil, fmt.Errorf("audit: load persisted trail: %w", err)
		}
		for _, evt := range persisted {
			if err := checkSchemaVersion(evt.SchemaVersion); err != nil {
				return nil, err
			}
		}
		if len(persisted) > maxEvents {
			persisted = persisted[len(persisted)-maxEvents:]
		}
		t.events = persisted
		if n := len(persisted); n > 0 {
			t.chainHead = persisted[n-1].EntryHash
		}
	}
	return t, nil
}

func checkSchemaVersion(version string) error {
	if version == "" {
		return fmt.Errorf("audit: persisted event has no schema version")
	}
	current := semver.MustParse(contracts.AuditSchemaVersion)
	persisted, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("audit: bad persisted schema version %q: %w", version, err)
	}
	if persisted.Major() != current.Major() {
		return fmt.Errorf("audit: persisted schema %s is incompatible with %s", version, contracts.AuditSchemaVersion)
	}
	return nil
}

// Record describes one side-effect outcome to be appended.
type Record struct {
	DraftID            string
	SideEffectKind     contracts.SideEffectKind
	Outcome            contracts.EffectOutcome
	Detail             string
	ApprovalTimestamp  time.Time
	ExecutionTimestamp time.Time
}

// RecordEvent appends one event and persists it before returning. On
// overflow the oldest event is evicted first, in memory and in the sink,
// inside the same critical section so the ring and the sink agree.
func (t *Trail) RecordEvent(rec Record) (contracts.AuditEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	event := contracts.AuditEvent{
		ID:                 uuid.New().String(),
		SchemaVersion:      contracts.AuditSchemaVersion,
		Timestamp:          time.Now().UTC(),
		DraftID:            rec.DraftID,
		SideEffectKind:     rec.SideEffectKind,
		Outcome:            rec.Outcome,
		Detail:             rec.Detail,
		ApprovalTimestamp:  rec.ApprovalTimestamp,
		ExecutionTimestamp: rec.ExecutionTimestamp,
		PreviousHash:       t.chainHead,
	}
	hash, err := entryHash(event)
	if err != nil {
		return contracts.AuditEvent{}, fmt.Errorf("audit: hash event: %w", err)
	}
	event.EntryHash = hash

	if t.sink != nil {
		if err := t.sink.Append(event); err != nil {
			return contracts.AuditEvent{}, fmt.Errorf("audit: persist event: %w", err)
		}
	}

	t.events = append(t.events, event)
	t.chainHead = event.EntryHash

	if evicted := len(t.events) - t.maxEvents; evicted > 0 {
		t.events = append([]contracts.AuditEvent(nil), t.events[evicted:]...)
		if t.sink != nil {
			if err := t.sink.Trim(evicted); err != nil {
				// The ring stays authoritative; a failed trim leaves
				// stale rows behind but cannot corrupt the chain.
				t.log.Warn("audit trim failed", "evicted", evicted, "error", err)
			}
		}
	}

	return event, nil
}

// Events returns a copy of the current ring, oldest first.
func (t *Trail) Events() []contracts.AuditEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]contracts.AuditEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Len reports the number of retained events.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// VerifyChain recomputes every entry hash and link. After FIFO eviction
// the oldest retained event keeps its original PreviousHash, so the check
// anchors on the first retained entry rather than demanding a genesis.
func (t *Trail) VerifyChain() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, event := range t.events {
		if i > 0 && event.PreviousHash != t.events[i-1].EntryHash {
			return fmt.Errorf("%w: entry %d previous_hash mismatch", ErrChainBroken, i)
		}
		computed, err := entryHash(event)
		if err != nil {
			return fmt.Errorf("%w: entry %d hash recompute: %w", ErrChainBroken, i, err)
		}
		if computed != event.EntryHash {
			return fmt.Errorf("%w: entry %d content mutated (computed %s, stored %s)",
				ErrChainBroken, i, computed, event.EntryHash)
		}
	}
	return nil
}

// Purge is the explicit, user-initiated full wipe: ring and sink.
func (t *Trail) Purge() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sink != nil {
		if err := t.sink.PurgeAll(); err != nil {
			return fmt.Errorf("audit: purge persisted trail: %w", err)
		}
	}
	t.events = nil
	t.chainHead = ""
	return nil
}

// entryHash hashes the event's canonical JSON form with EntryHash zeroed.
func entryHash(event contracts.AuditEvent) (string, error) {
	event.EntryHash = ""
	return canonicalize.Hash(event)
}
