package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseMockArgsClaudeStyle(t *testing.T) {
	cfg, err := parseMockArgs([]string{"-p", "--output-format", "stream-json", "--verbose", "--model", "sonnet", "--resume", "session-1", "-"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.outputFormat != "stream-json" {
		t.Fatalf("expected stream-json output, got %q", cfg.outputFormat)
	}
	if cfg.model != "sonnet" {
		t.Fatalf("expected model sonnet, got %q", cfg.model)
	}
	if cfg.resumeID != "session-1" {
		t.Fatalf("expected resume id session-1, got %q", cfg.resumeID)
	}
	if cfg.prompt != "-" {
		t.Fatalf("expected stdin prompt marker, got %q", cfg.prompt)
	}

	if _, err := parseMockArgs([]string{"--bogus"}); err == nil {
		t.Fatalf("expected error for unsupported flag")
	}
}

func TestRunEngineMockSummaryStream(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	args := []string{"-p", "--output-format", "stream-json", "--scenario", "summary", "--delay-ms", "0", "hello there"}
	if err := runEngineMock(args, strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("runEngineMock: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 events, got %d: %q", len(lines), out.String())
	}
	var first struct {
		Type      string `json:"type"`
		Subtype   string `json:"subtype"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first event: %v", err)
	}
	if first.Type != "system" || first.Subtype != "init" {
		t.Fatalf("expected system init first, got %+v", first)
	}
	if !strings.HasPrefix(first.SessionID, "mock-") {
		t.Fatalf("expected mock session id, got %q", first.SessionID)
	}
	var last struct {
		Type    string `json:"type"`
		IsError bool   `json:"is_error"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("decode last event: %v", err)
	}
	if last.Type != "result" || last.IsError {
		t.Fatalf("expected clean result event, got %+v", last)
	}
}

func TestRunEngineMockFailureScenario(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	args := []string{"-p", "--output-format", "stream-json", "--scenario", "failure", "--delay-ms", "0", "boom"}
	if err := runEngineMock(args, strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("runEngineMock: %v", err)
	}
	if !strings.Contains(out.String(), `"is_error":true`) {
		t.Fatalf("expected failing result event, got %q", out.String())
	}
	if strings.Contains(out.String(), `"is_error":false`) {
		t.Fatalf("expected no success result after failure, got %q", out.String())
	}
}

func TestRunEngineMockPlainOutput(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	if err := runEngineMock([]string{"-p", "hello"}, strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("runEngineMock: %v", err)
	}
	if !strings.Contains(out.String(), "Mock response:") {
		t.Fatalf("expected plain mock response, got %q", out.String())
	}
	if strings.Contains(out.String(), `"type"`) {
		t.Fatalf("expected no json events in plain mode, got %q", out.String())
	}
}

func TestMockSessionIDDeterministic(t *testing.T) {
	if mockSessionID(42) != mockSessionID(42) {
		t.Fatalf("expected deterministic session id")
	}
	if mockSessionID(1) == mockSessionID(2) {
		t.Fatalf("expected distinct session ids for distinct seeds")
	}
}
