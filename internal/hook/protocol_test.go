package hook

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDecodeStop(t *testing.T) {
	input := `{"session_id":"abc","transcript_path":"/tmp/t.jsonl","cwd":"/repo",
		"hook_event_name":"Stop","stop_hook_active":true,"extra":{"ignored":1}}`

	ev, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	stop, ok := ev.(StopEvent)
	if !ok {
		t.Fatalf("expected StopEvent, got %T", ev)
	}
	if !stop.StopHookActive || stop.TranscriptPath != "/tmp/t.jsonl" || stop.Cwd != "/repo" {
		t.Errorf("unexpected event %+v", stop)
	}
	if ev.Name() != EventStop {
		t.Errorf("expected Stop, got %s", ev.Name())
	}
}

func TestDecodeSessionStartDefaultsSource(t *testing.T) {
	ev, err := Decode(strings.NewReader(`{"hook_event_name":"SessionStart"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ev.(SessionStartEvent).Source != "startup" {
		t.Errorf("expected default source startup, got %q", ev.(SessionStartEvent).Source)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	ev, err := Decode(strings.NewReader(`{"cwd":"/x"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := ev.(GenericEvent); !ok {
		t.Fatalf("expected GenericEvent, got %T", ev)
	}
	if ev.Common().Cwd != "/x" {
		t.Errorf("expected cwd /x, got %q", ev.Common().Cwd)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(strings.NewReader("  \n")); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Decode(strings.NewReader("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"no opinion", NoOpinion(), `{}`},
		{"block", Block("review first"), `{"decision":"block","reason":"review first"}`},
		{"context", Context(EventSessionStart, "hi"),
			`{"hookSpecificOutput":{"hookEventName":"SessionStart","additionalContext":"hi"}}`},
		{"permission", Permission(PermissionAsk, "sure?"),
			`{"hookSpecificOutput":{"hookEventName":"PreToolUse","permissionDecision":"ask","permissionDecisionReason":"sure?"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, tt.resp); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodePreToolUse(t *testing.T) {
	ev, err := Decode(strings.NewReader(`{"hook_event_name":"PreToolUse","tool_name":"Edit",
		"tool_input":{"file_path":"/repo/app.go","old_string":"a"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	pre, ok := ev.(PreToolUseEvent)
	if !ok {
		t.Fatalf("expected PreToolUseEvent, got %T", ev)
	}
	if pre.ToolName != "Edit" || pre.FilePath() != "/repo/app.go" {
		t.Errorf("unexpected event %+v", pre)
	}

	bash, _ := Decode(strings.NewReader(`{"hook_event_name":"PreToolUse","tool_name":"Bash","tool_input":"ls"}`))
	if got := bash.(PreToolUseEvent).FilePath(); got != "" {
		t.Errorf("expected no file path, got %q", got)
	}
}
