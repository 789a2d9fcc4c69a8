// Package assistant is the only entry point reachable from a voice
// assistant or OS shortcut. Its contract is "router only": an inbound
// intent may stage text as a prefill for the draft-review surface and
// request UI foreground, and nothing else.
//
// The package deliberately has no import path to the execution engine,
// the approval gate, or any adapter; the compiler enforces what a code
// review would otherwise have to catch. Tests assert the import list.
package assistant

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// State is the router's two-state machine.
type State string

const (
	StateIdle   State = "idle"
	StateRouted State = "routed"
)

// Source identifies where an inbound intent came from.
type Source string

const (
	SourceVoice    Source = "voice"
	SourceShortcut Source = "shortcut"
)

// ErrThrottled is returned when a source exceeds its intent rate. The
// intent is dropped, never queued.
var ErrThrottled = errors.New("intent rate limit exceeded")

// ErrEmptyIntent is returned for blank input.
var ErrEmptyIntent = errors.New("empty intent text")

const maxIntentLength = 2048

// Staged is the router's only output: a prefill value plus a foreground
// request. The (out-of-scope) UI layer consumes it; the execution core
// never sees it.
type Staged struct {
	Prefill        string
	Source         Source
	FocusRequested bool
}

// Router stages inbound intents. Safe for concurrent use.
type Router struct {
	log *slog.Logger

	mu        sync.Mutex
	state     State
	staged    *Staged
	limiters  map[Source]*rate.Limiter
	perSource rate.Limit
	burst     int
}

// NewRouter builds a router allowing intentsPerMinute sustained intents
// per source with the given burst.
func NewRouter(log *slog.Logger, intentsPerMinute int, burst int) *Router {
	if log == nil {
		log = slog.Default()
	}
	if intentsPerMinute <= 0 {
		intentsPerMinute = 30
	}
	if burst <= 0 {
		burst = 5
	}
	return &Router{
		log:       log.With("component", "assistant-router"),
		state:     StateIdle,
		limiters:  make(map[Source]*rate.Limiter),
		perSource: rate.Limit(float64(intentsPerMinute) / 60.0),
		burst:     burst,
	}
}

// RouteIntent stages text for the draft-review surface. It never calls
// into execution: the only observable effects are the staged prefill and
// the focus request, both read back through Staged/TakeStaged.
func (r *Router) RouteIntent(text string, source Source) (Staged, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Staged{}, ErrEmptyIntent
	}
	if len(trimmed) > maxIntentLength {
		// Cut on a rune boundary so the staged prefill stays valid UTF-8.
		cut := maxIntentLength
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		trimmed = trimmed[:cut]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(r.perSource, r.burst)
		r.limiters[source] = limiter
	}
	if !limiter.Allow() {
		r.log.Warn("intent throttled", "source", source)
		return Staged{}, fmt.Errorf("%w (source %s)", ErrThrottled, source)
	}

	staged := Staged{
		Prefill:        trimmed,
		Source:         source,
		FocusRequested: true,
	}
	r.staged = &staged
	r.state = StateRouted
	r.log.Info("intent staged", "source", source, "length", len(trimmed))
	return staged, nil
}

// State returns the router's current state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TakeStaged hands the staged intent to the UI layer and resets the
// router to idle. Returns false when nothing is staged.
func (r *Router) TakeStaged() (Staged, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staged == nil {
		return Staged{}, false
	}
	staged := *r.staged
	r.staged = nil
	r.state = StateIdle
	return staged, true
}
