package sideeffect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Unclefole/operatorkit/pkg/contracts"
)

// Raw JSON Schemas for each payload shape. Compiled once at package init;
// a schema that fails to compile is a build defect surfaced by VerifyCatalog
// and the test suite, not silently skipped.
var rawSchemas = map[contracts.SideEffectKind]string{
	contracts.KindSendEmail:            emailSchema,
	contracts.KindPresentEmailDraft:    emailSchema,
	contracts.KindCreateReminder:       reminderSchema,
	contracts.KindPreviewReminder:      reminderSchema,
	contracts.KindCreateCalendarEvent:  calendarSchema(false),
	contracts.KindUpdateCalendarEvent:  calendarSchema(true),
	contracts.KindPreviewCalendarEvent: calendarSchema(false),
	contracts.KindSaveToMemory:         memorySchema,
}

const emailSchema = `{
	"type": "object",
	"required": ["to", "subject"],
	"properties": {
		"to": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 3}},
		"subject": {"type": "string", "minLength": 1},
		"body": {"type": "string"}
	},
	"additionalProperties": false
}`

const reminderSchema = `{
	"type": "object",
	"required": ["title"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"notes": {"type": "string"},
		"due_date": {"type": "string", "format": "date-time"}
	},
	"additionalProperties": false
}`

const memorySchema = `{
	"type": "object",
	"required": ["key", "content"],
	"properties": {
		"key": {"type": "string", "minLength": 1},
		"content": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false
}`

// calendarSchema builds the event schema; updates additionally require a
// caller-supplied event_id (the core never synthesizes one).
func calendarSchema(requireEventID bool) string {
	required := `["title", "starts_at", "ends_at"]`
	if requireEventID {
		required = `["event_id", "title", "starts_at", "ends_at"]`
	}
	return `{
	"type": "object",
	"required": ` + required + `,
	"properties": {
		"event_id": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"location": {"type": "string"},
		"starts_at": {"type": "string", "format": "date-time"},
		"ends_at": {"type": "string", "format": "date-time"}
	},
	"additionalProperties": false
}`
}

var payloadSchemas = func() map[contracts.SideEffectKind]*jsonschema.Schema {
	compiled := make(map[contracts.SideEffectKind]*jsonschema.Schema, len(rawSchemas))
	for kind, raw := range rawSchemas {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://operatorkit.schemas.local/sideeffect/%s.schema.json", kind)
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			panic(fmt.Sprintf("sideeffect: schema load for %s: %v", kind, err))
		}
		s, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("sideeffect: schema compile for %s: %v", kind, err))
		}
		compiled[kind] = s
	}
	return compiled
}()

// ValidatePayload checks that the side effect's payload type matches its
// kind and that the payload satisfies the kind's JSON Schema. The engine
// runs this before any gate so malformed payloads never reach an adapter.
func ValidatePayload(effect contracts.SideEffect) error {
	if effect.Payload == nil {
		return fmt.Errorf("side effect %s has no payload", effect.Kind)
	}
	if err := checkPayloadType(effect); err != nil {
		return err
	}

	schema, ok := payloadSchemas[effect.Kind]
	if !ok {
		return fmt.Errorf("no payload schema for kind %q", effect.Kind)
	}

	raw, err := json.Marshal(effect.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", effect.Kind, err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode payload for %s: %w", effect.Kind, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload for %s rejected: %w", effect.Kind, err)
	}
	return nil
}

// checkPayloadType pairs each kind with its concrete payload struct.
// The switch is exhaustive over the declared kinds: adding a kind without
// extending it makes every effect of that kind fail validation.
func checkPayloadType(effect contracts.SideEffect) error {
	var ok bool
	switch effect.Kind {
	case contracts.KindSendEmail, contracts.KindPresentEmailDraft:
		_, ok = effect.Payload.(contracts.EmailPayload)
	case contracts.KindCreateReminder, contracts.KindPreviewReminder:
		_, ok = effect.Payload.(contracts.ReminderPayload)
	case contracts.KindCreateCalendarEvent, contracts.KindUpdateCalendarEvent, contracts.KindPreviewCalendarEvent:
		_, ok = effect.Payload.(contracts.CalendarEventPayload)
	case contracts.KindSaveToMemory:
		_, ok = effect.Payload.(contracts.MemoryPayload)
	default:
		return fmt.Errorf("unknown side effect kind %q", effect.Kind)
	}
	if !ok {
		return fmt.Errorf("payload type %T does not match kind %s", effect.Payload, effect.Kind)
	}
	return nil
}
