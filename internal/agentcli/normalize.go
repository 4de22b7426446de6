package agentcli

import (
	"encoding/json"
	"strings"

	"pkt.systems/chimerax/schema"
)

func decoderFor(engine schema.EngineID) decodeFunc {
	switch engine {
	case schema.EngineCodex:
		return decodeCodexEvent
	case schema.EngineGemini:
		return decodeGeminiEvent
	default:
		return decodeClaudeEvent
	}
}

// codex exec --json wire shapes.

type codexWireEvent struct {
	Type     string             `json:"type"`
	ThreadID string             `json:"thread_id"`
	Usage    *codexWireUsage    `json:"usage"`
	Item     *codexWireItem     `json:"item"`
	Error    *schema.ErrorEvent `json:"error"`
	Message  string             `json:"message"`
}

type codexWireUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

type codexWireItem struct {
	ID               string `json:"id"`
	ItemType         string `json:"item_type"`
	Text             string `json:"text"`
	Command          string `json:"command"`
	AggregatedOutput string `json:"aggregated_output"`
	ExitCode         *int   `json:"exit_code"`
	Status           string `json:"status"`
}

func decodeCodexEvent(line []byte) (schema.ExecEvent, bool, error) {
	var wire codexWireEvent
	if err := json.Unmarshal(line, &wire); err != nil {
		return schema.ExecEvent{}, false, err
	}
	event := schema.ExecEvent{Raw: append([]byte(nil), line...)}
	switch wire.Type {
	case "thread.started":
		event.Type = schema.EventSessionStarted
		event.SessionID = schema.SessionID(wire.ThreadID)
	case "turn.started":
		event.Type = schema.EventTurnStarted
	case "turn.completed":
		event.Type = schema.EventTurnCompleted
		if wire.Usage != nil {
			event.Usage = &schema.TurnUsage{
				InputTokens:       wire.Usage.InputTokens,
				CachedInputTokens: wire.Usage.CachedInputTokens,
				OutputTokens:      wire.Usage.OutputTokens,
			}
		}
	case "turn.failed":
		event.Type = schema.EventTurnFailed
		event.Error = wire.Error
	case "item.started", "item.updated", "item.completed":
		event.Type = schema.EventType(wire.Type)
		event.Item = mapCodexItem(wire.Item)
	case "error":
		event.Type = schema.EventError
		event.Message = wire.Message
	default:
		return schema.ExecEvent{}, false, nil
	}
	return event, true, nil
}

func mapCodexItem(item *codexWireItem) *schema.ItemEvent {
	if item == nil {
		return nil
	}
	mapped := &schema.ItemEvent{
		ID:      item.ID,
		Text:    item.Text,
		Command: item.Command,
		Output:  item.AggregatedOutput,
		Status:  item.Status,
	}
	if item.ExitCode != nil {
		code := *item.ExitCode
		mapped.ExitCode = &code
	}
	switch item.ItemType {
	case "agent_message":
		mapped.Type = schema.ItemAgentMessage
	case "reasoning":
		mapped.Type = schema.ItemReasoning
	case "command_execution":
		mapped.Type = schema.ItemCommandExecution
	case "file_change":
		mapped.Type = schema.ItemFileChange
	case "mcp_tool_call", "tool_call":
		mapped.Type = schema.ItemToolCall
	case "error":
		mapped.Type = schema.ItemError
	default:
		mapped.Type = schema.ItemType(item.ItemType)
	}
	return mapped
}

// claude -p --output-format stream-json wire shapes.

type claudeWireEvent struct {
	Type      string             `json:"type"`
	Subtype   string             `json:"subtype"`
	SessionID string             `json:"session_id"`
	Message   *claudeWireMessage `json:"message"`
	Result    string             `json:"result"`
	IsError   bool               `json:"is_error"`
	Usage     *claudeWireUsage   `json:"usage"`
}

type claudeWireMessage struct {
	Content []claudeWireContent `json:"content"`
}

type claudeWireContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

type claudeWireUsage struct {
	InputTokens          int `json:"input_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens"`
	OutputTokens         int `json:"output_tokens"`
}

func decodeClaudeEvent(line []byte) (schema.ExecEvent, bool, error) {
	var wire claudeWireEvent
	if err := json.Unmarshal(line, &wire); err != nil {
		return schema.ExecEvent{}, false, err
	}
	event := schema.ExecEvent{
		SessionID: schema.SessionID(wire.SessionID),
		Raw:       append([]byte(nil), line...),
	}
	switch wire.Type {
	case "system":
		if wire.Subtype != "init" {
			return schema.ExecEvent{}, false, nil
		}
		event.Type = schema.EventSessionStarted
	case "assistant":
		item, ok := mapClaudeAssistant(wire.Message)
		if !ok {
			return schema.ExecEvent{}, false, nil
		}
		event.Item = item
		if item.Type == schema.ItemCommandExecution {
			event.Type = schema.EventItemStarted
		} else {
			event.Type = schema.EventItemCompleted
		}
	case "user":
		item, ok := mapClaudeToolResult(wire.Message)
		if !ok {
			return schema.ExecEvent{}, false, nil
		}
		event.Type = schema.EventItemCompleted
		event.Item = item
	case "result":
		if wire.IsError {
			event.Type = schema.EventTurnFailed
			event.Error = &schema.ErrorEvent{Message: wire.Result}
		} else {
			event.Type = schema.EventTurnCompleted
		}
		if wire.Usage != nil {
			event.Usage = &schema.TurnUsage{
				InputTokens:       wire.Usage.InputTokens,
				CachedInputTokens: wire.Usage.CacheReadInputTokens,
				OutputTokens:      wire.Usage.OutputTokens,
			}
		}
	default:
		// Partial deltas and other stream noise carry nothing to render.
		return schema.ExecEvent{}, false, nil
	}
	return event, true, nil
}

func mapClaudeAssistant(msg *claudeWireMessage) (*schema.ItemEvent, bool) {
	if msg == nil {
		return nil, false
	}
	var texts []string
	for _, part := range msg.Content {
		switch part.Type {
		case "text":
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		case "tool_use":
			if part.Name != "Bash" {
				return &schema.ItemEvent{ID: part.ID, Type: schema.ItemToolCall, Text: part.Name}, true
			}
			var input struct {
				Command string `json:"command"`
			}
			_ = json.Unmarshal(part.Input, &input)
			return &schema.ItemEvent{ID: part.ID, Type: schema.ItemCommandExecution, Command: input.Command, Status: "in_progress"}, true
		}
	}
	if len(texts) == 0 {
		return nil, false
	}
	return &schema.ItemEvent{Type: schema.ItemAgentMessage, Text: strings.Join(texts, "\n")}, true
}

func mapClaudeToolResult(msg *claudeWireMessage) (*schema.ItemEvent, bool) {
	if msg == nil {
		return nil, false
	}
	for _, part := range msg.Content {
		if part.Type != "tool_result" {
			continue
		}
		return &schema.ItemEvent{
			ID:     part.ToolUseID,
			Type:   schema.ItemCommandExecution,
			Output: claudeToolResultText(part.Content),
			Status: "completed",
		}, true
	}
	return nil, false
}

// claudeToolResultText handles both string and content-block payloads.
func claudeToolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var blocks []claudeWireContent
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var texts []string
	for _, block := range blocks {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// gemini --output-format stream-json wire shapes.

type geminiWireEvent struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Content   string           `json:"content"`
	Delta     bool             `json:"delta"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Args      json.RawMessage  `json:"args"`
	Output    string           `json:"output"`
	ExitCode  *int             `json:"exit_code"`
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	Usage     *geminiWireUsage `json:"usage"`
}

type geminiWireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CachedTokens     int `json:"cached_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func decodeGeminiEvent(line []byte) (schema.ExecEvent, bool, error) {
	var wire geminiWireEvent
	if err := json.Unmarshal(line, &wire); err != nil {
		return schema.ExecEvent{}, false, err
	}
	event := schema.ExecEvent{
		SessionID: schema.SessionID(wire.SessionID),
		Raw:       append([]byte(nil), line...),
	}
	switch wire.Type {
	case "init":
		event.Type = schema.EventSessionStarted
	case "message":
		if wire.Delta || wire.Content == "" {
			return schema.ExecEvent{}, false, nil
		}
		event.Type = schema.EventItemCompleted
		event.Item = &schema.ItemEvent{Type: schema.ItemAgentMessage, Text: wire.Content}
	case "tool_use":
		item := &schema.ItemEvent{ID: wire.ID, Type: schema.ItemToolCall, Text: wire.Name, Status: "in_progress"}
		if wire.Name == "run_shell_command" {
			var args struct {
				Command string `json:"command"`
			}
			_ = json.Unmarshal(wire.Args, &args)
			item.Type = schema.ItemCommandExecution
			item.Command = args.Command
		}
		event.Type = schema.EventItemStarted
		event.Item = item
	case "tool_result":
		item := &schema.ItemEvent{ID: wire.ID, Type: schema.ItemCommandExecution, Output: wire.Output, Status: "completed"}
		if wire.ExitCode != nil {
			code := *wire.ExitCode
			item.ExitCode = &code
		}
		event.Type = schema.EventItemCompleted
		event.Item = item
	case "result":
		if wire.Status == "error" {
			event.Type = schema.EventTurnFailed
			event.Error = &schema.ErrorEvent{Message: wire.Message}
		} else {
			event.Type = schema.EventTurnCompleted
		}
		if wire.Usage != nil {
			event.Usage = &schema.TurnUsage{
				InputTokens:       wire.Usage.PromptTokens,
				CachedInputTokens: wire.Usage.CachedTokens,
				OutputTokens:      wire.Usage.CompletionTokens,
			}
		}
	case "error":
		event.Type = schema.EventError
		event.Message = wire.Message
	default:
		return schema.ExecEvent{}, false, nil
	}
	return event, true, nil
}
