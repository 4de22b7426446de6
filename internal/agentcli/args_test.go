package agentcli

import (
	"reflect"
	"testing"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
)

func TestBuildClaudeArgsResume(t *testing.T) {
	cfg := Config{ExtraArgs: []string{"--dangerously-skip-permissions"}}
	req := core.RunRequest{
		Prompt:          "hello",
		Model:           schema.ModelID("claude-sonnet-4-5"),
		ResumeSessionID: "session-1",
	}
	args := buildArgs(schema.EngineClaude, cfg, req)
	want := []string{
		"-p",
		"--output-format",
		"stream-json",
		"--verbose",
		"--model",
		"claude-sonnet-4-5",
		"--resume",
		"session-1",
		"--dangerously-skip-permissions",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\nwant: %#v\ngot:  %#v", want, args)
	}
}

func TestBuildCodexArgsResumeOrdersFlagsBeforeResume(t *testing.T) {
	cfg := Config{ExtraArgs: []string{"--verbose"}}
	req := core.RunRequest{
		Prompt:          "hello",
		Model:           schema.ModelID("gpt-5.2-codex"),
		ResumeSessionID: "session-1",
	}
	args := buildArgs(schema.EngineCodex, cfg, req)
	want := []string{
		"exec",
		"--json",
		"--model",
		"gpt-5.2-codex",
		"--verbose",
		"resume",
		"session-1",
		"-",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\nwant: %#v\ngot:  %#v", want, args)
	}
}

func TestBuildGeminiArgsNewSession(t *testing.T) {
	args := buildArgs(schema.EngineGemini, Config{}, core.RunRequest{Prompt: "hello"})
	want := []string{"--output-format", "stream-json"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\nwant: %#v\ngot:  %#v", want, args)
	}
}
