package agentcli

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
)

func TestNewRunnerDefaultsBinaryToEngineName(t *testing.T) {
	runner, err := NewRunner(schema.EngineGemini, Config{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if runner.cfg.BinaryPath != "gemini" {
		t.Fatalf("unexpected binary path %q", runner.cfg.BinaryPath)
	}
}

func TestNewRunnerRejectsUnknownEngine(t *testing.T) {
	if _, err := NewRunner("copilot", Config{}); !errors.Is(err, schema.ErrInvalidEngine) {
		t.Fatalf("expected ErrInvalidEngine, got %v", err)
	}
}

func TestRunRejectsEmptyPrompt(t *testing.T) {
	runner, err := NewRunner(schema.EngineClaude, Config{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if _, err := runner.Run(context.Background(), core.RunRequest{}); !errors.Is(err, schema.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestRunClassifiesMissingBinary(t *testing.T) {
	runner, err := NewRunner(schema.EngineCodex, Config{BinaryPath: "definitely-not-a-real-binary-4721"})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	_, err = runner.Run(context.Background(), core.RunRequest{Prompt: "hello"})
	var runnerErr *core.RunnerError
	if !errors.As(err, &runnerErr) {
		t.Fatalf("expected runner error, got %v", err)
	}
	if runnerErr.Kind != core.RunnerErrorNotInstalled {
		t.Fatalf("expected not_installed, got %s", runnerErr.Kind)
	}
}

func TestRunHandleDoneClosesAfterExit(t *testing.T) {
	runner, err := NewRunner(schema.EngineClaude, Config{BinaryPath: "true"})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	handle, err := runner.Run(context.Background(), core.RunRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer handle.Close()
	done, ok := handle.(interface{ Done() <-chan struct{} })
	if !ok {
		t.Fatalf("run handle does not report completion")
	}
	select {
	case <-done.Done():
		t.Fatalf("done closed before process exit")
	default:
	}
	if _, err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	select {
	case <-done.Done():
	case <-time.After(1 * time.Second):
		t.Fatalf("expected done after process exit")
	}
}

func TestNewProviderCoversAllEngines(t *testing.T) {
	provider, err := NewProvider(nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	for _, engine := range schema.AvailableEngines() {
		resp, err := provider.RunnerFor(context.Background(), core.RunnerRequest{Engine: engine})
		if err != nil {
			t.Fatalf("RunnerFor(%s): %v", engine, err)
		}
		if resp.Runner == nil {
			t.Fatalf("expected runner for %s", engine)
		}
	}
}
