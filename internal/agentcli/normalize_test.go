package agentcli

import (
	"testing"

	"pkt.systems/chimerax/schema"
)

func TestDecodeCodexThreadStarted(t *testing.T) {
	line := []byte(`{"type":"thread.started","thread_id":"t1"}`)
	event, ok, err := decodeCodexEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventSessionStarted || event.SessionID != "t1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(event.Raw) == 0 {
		t.Fatalf("expected raw event")
	}
}

func TestDecodeCodexCommandItem(t *testing.T) {
	line := []byte(`{"type":"item.completed","item":{"id":"it1","item_type":"command_execution","command":"ls","aggregated_output":"a\nb","exit_code":0,"status":"completed"}}`)
	event, ok, err := decodeCodexEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventItemCompleted || event.Item == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	item := event.Item
	if item.Type != schema.ItemCommandExecution || item.Command != "ls" || item.Output != "a\nb" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.ExitCode == nil || *item.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", item.ExitCode)
	}
}

func TestDecodeCodexTurnCompletedUsage(t *testing.T) {
	line := []byte(`{"type":"turn.completed","usage":{"input_tokens":1200,"cached_input_tokens":400,"output_tokens":300}}`)
	event, ok, err := decodeCodexEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventTurnCompleted || event.Usage == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Usage.InputTokens != 1200 || event.Usage.CachedInputTokens != 400 || event.Usage.OutputTokens != 300 {
		t.Fatalf("unexpected usage: %+v", event.Usage)
	}
}

func TestDecodeClaudeInit(t *testing.T) {
	line := []byte(`{"type":"system","subtype":"init","session_id":"sess-1","model":"claude-sonnet-4-5"}`)
	event, ok, err := decodeClaudeEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventSessionStarted || event.SessionID != "sess-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestDecodeClaudeAssistantText(t *testing.T) {
	line := []byte(`{"type":"assistant","session_id":"sess-1","message":{"content":[{"type":"text","text":"hello there"}]}}`)
	event, ok, err := decodeClaudeEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventItemCompleted || event.Item == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Item.Type != schema.ItemAgentMessage || event.Item.Text != "hello there" {
		t.Fatalf("unexpected item: %+v", event.Item)
	}
}

func TestDecodeClaudeBashToolUse(t *testing.T) {
	line := []byte(`{"type":"assistant","session_id":"sess-1","message":{"content":[{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"go test ./..."}}]}}`)
	event, ok, err := decodeClaudeEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventItemStarted || event.Item == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Item.Type != schema.ItemCommandExecution || event.Item.Command != "go test ./..." || event.Item.ID != "toolu_1" {
		t.Fatalf("unexpected item: %+v", event.Item)
	}
}

func TestDecodeClaudeToolResult(t *testing.T) {
	line := []byte(`{"type":"user","session_id":"sess-1","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","content":[{"type":"text","text":"ok\t1.2s"}]}]}}`)
	event, ok, err := decodeClaudeEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventItemCompleted || event.Item == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Item.ID != "toolu_1" || event.Item.Output != "ok\t1.2s" {
		t.Fatalf("unexpected item: %+v", event.Item)
	}
}

func TestDecodeClaudeResultMapsUsage(t *testing.T) {
	line := []byte(`{"type":"result","subtype":"success","session_id":"sess-1","result":"done","is_error":false,"usage":{"input_tokens":10,"cache_read_input_tokens":900,"output_tokens":42}}`)
	event, ok, err := decodeClaudeEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventTurnCompleted || event.Usage == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Usage.CachedInputTokens != 900 || event.Usage.OutputTokens != 42 {
		t.Fatalf("unexpected usage: %+v", event.Usage)
	}
}

func TestDecodeClaudeResultError(t *testing.T) {
	line := []byte(`{"type":"result","subtype":"error_during_execution","session_id":"sess-1","result":"boom","is_error":true}`)
	event, ok, err := decodeClaudeEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventTurnFailed || event.Error == nil || event.Error.Message != "boom" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestDecodeClaudeSkipsDeltas(t *testing.T) {
	line := []byte(`{"type":"stream_event","event":{"type":"content_block_delta"}}`)
	_, ok, err := decodeClaudeEvent(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok {
		t.Fatalf("expected delta line to be skipped")
	}
}

func TestDecodeGeminiShellCommand(t *testing.T) {
	line := []byte(`{"type":"tool_use","session_id":"g1","id":"call-1","name":"run_shell_command","args":{"command":"ls -la"}}`)
	event, ok, err := decodeGeminiEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventItemStarted || event.Item == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Item.Type != schema.ItemCommandExecution || event.Item.Command != "ls -la" {
		t.Fatalf("unexpected item: %+v", event.Item)
	}
}

func TestDecodeGeminiSkipsMessageDeltas(t *testing.T) {
	line := []byte(`{"type":"message","content":"partial","delta":true}`)
	_, ok, err := decodeGeminiEvent(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok {
		t.Fatalf("expected delta line to be skipped")
	}
}

func TestDecodeGeminiResultUsage(t *testing.T) {
	line := []byte(`{"type":"result","session_id":"g1","status":"success","usage":{"prompt_tokens":50,"cached_tokens":10,"completion_tokens":20}}`)
	event, ok, err := decodeGeminiEvent(line)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%t err=%v", ok, err)
	}
	if event.Type != schema.EventTurnCompleted || event.Usage == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Usage.InputTokens != 50 || event.Usage.OutputTokens != 20 {
		t.Fatalf("unexpected usage: %+v", event.Usage)
	}
}
