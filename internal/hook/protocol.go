// Package hook implements the host runtime's stdin/stdout hook protocol.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EventName identifies the host event that triggered a hook.
type EventName string

const (
	EventStop         EventName = "Stop"
	EventSubagentStop EventName = "SubagentStop"
	EventSessionStart EventName = "SessionStart"
	EventPreToolUse   EventName = "PreToolUse"
	EventPreCompact   EventName = "PreCompact"
)

// ErrEmptyInput is returned when stdin carries no document.
var ErrEmptyInput = errors.New("hook: empty input")

// Base holds the fields every event carries.
type Base struct {
	SessionID      string    `json:"session_id"`
	TranscriptPath string    `json:"transcript_path"`
	Cwd            string    `json:"cwd"`
	HookEventName  EventName `json:"hook_event_name"`
}

// Event is implemented by every decoded hook input.
type Event interface {
	Name() EventName
	Common() Base
}

// StopEvent is sent when the agent wants to end its turn.
type StopEvent struct {
	Base
	StopHookActive bool `json:"stop_hook_active"`
}

// SessionStartEvent is sent when a session starts, resumes or is cleared.
type SessionStartEvent struct {
	Base
	Source string `json:"source"`
}

// PreToolUseEvent is sent before a tool runs.
type PreToolUseEvent struct {
	Base
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
}

// FilePath returns tool_input.file_path, or "" when the tool has none.
func (e PreToolUseEvent) FilePath() string {
	var in struct {
		FilePath string `json:"file_path"`
	}
	if len(e.ToolInput) == 0 || json.Unmarshal(e.ToolInput, &in) != nil {
		return ""
	}
	return in.FilePath
}

// GenericEvent carries events this package has no dedicated type for.
type GenericEvent struct {
	Base
}

func (e StopEvent) Name() EventName         { return e.HookEventName }
func (e StopEvent) Common() Base            { return e.Base }
func (e SessionStartEvent) Name() EventName { return EventSessionStart }
func (e SessionStartEvent) Common() Base    { return e.Base }
func (e PreToolUseEvent) Name() EventName   { return EventPreToolUse }
func (e PreToolUseEvent) Common() Base      { return e.Base }
func (e GenericEvent) Name() EventName      { return e.HookEventName }
func (e GenericEvent) Common() Base         { return e.Base }

// Decode reads one JSON document from r and converts it into a typed event.
// Unknown fields are ignored.
func Decode(r io.Reader) (Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("hook: read input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyInput
	}

	var base Base
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("hook: decode input: %w", err)
	}

	switch base.HookEventName {
	case EventStop, EventSubagentStop:
		var ev StopEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("hook: decode stop: %w", err)
		}
		return ev, nil
	case EventSessionStart:
		ev := SessionStartEvent{Source: "startup"}
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("hook: decode session start: %w", err)
		}
		return ev, nil
	case EventPreToolUse:
		var ev PreToolUseEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("hook: decode pre tool use: %w", err)
		}
		return ev, nil
	default:
		return GenericEvent{Base: base}, nil
	}
}

// PermissionDecision is the verdict of a PreToolUse hook.
type PermissionDecision string

const (
	PermissionAllow PermissionDecision = "allow"
	PermissionDeny  PermissionDecision = "deny"
	PermissionAsk   PermissionDecision = "ask"
)

type responseKind int

const (
	kindNoOpinion responseKind = iota
	kindBlock
	kindContext
	kindPermission
)

// Response is one of the four output documents the host understands.
// Build it with NoOpinion, Block, Context or Permission.
type Response struct {
	kind       responseKind
	reason     string
	event      EventName
	context    string
	permission PermissionDecision
}

// NoOpinion lets the host proceed normally.
func NoOpinion() Response { return Response{kind: kindNoOpinion} }

// Block denies the action; reason is shown to the agent.
func Block(reason string) Response { return Response{kind: kindBlock, reason: reason} }

// Context injects a non-blocking note into the agent's context.
func Context(event EventName, text string) Response {
	return Response{kind: kindContext, event: event, context: text}
}

// Permission returns a PreToolUse permission verdict.
func Permission(decision PermissionDecision, reason string) Response {
	return Response{kind: kindPermission, permission: decision, reason: reason}
}

type blockDoc struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

type contextDoc struct {
	HookEventName     EventName `json:"hookEventName"`
	AdditionalContext string    `json:"additionalContext"`
}

type permissionDoc struct {
	HookEventName            EventName          `json:"hookEventName"`
	PermissionDecision       PermissionDecision `json:"permissionDecision"`
	PermissionDecisionReason string             `json:"permissionDecisionReason"`
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case kindBlock:
		return json.Marshal(blockDoc{Decision: "block", Reason: r.reason})
	case kindContext:
		return json.Marshal(map[string]contextDoc{
			"hookSpecificOutput": {HookEventName: r.event, AdditionalContext: r.context},
		})
	case kindPermission:
		return json.Marshal(map[string]permissionDoc{
			"hookSpecificOutput": {
				HookEventName:            EventPreToolUse,
				PermissionDecision:       r.permission,
				PermissionDecisionReason: r.reason,
			},
		})
	default:
		return []byte("{}"), nil
	}
}

// Write emits r as a single line on w.
func Write(w io.Writer, r Response) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("hook: encode response: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
