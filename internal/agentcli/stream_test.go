package agentcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
)

func TestCombinedStreamEmitsStderr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	stream := newCombinedStream(ctx, schema.EngineCodex, decodeCodexEvent, stdoutR, stderrR)

	go func() {
		_, _ = fmt.Fprintln(stdoutW, `{"type":"thread.started","thread_id":"thread-1"}`)
		_ = stdoutW.Close()
	}()
	go func() {
		_, _ = fmt.Fprintln(stderrW, "stderr boom")
		_ = stderrW.Close()
	}()

	var sawSession bool
	var sawStderr bool
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Next: %v", err)
		}
		switch event.Type {
		case schema.EventSessionStarted:
			if event.SessionID == "thread-1" {
				sawSession = true
			}
		case schema.EventError:
			if event.Message == "stderr boom" {
				sawStderr = true
			}
		}
	}
	if !sawSession || !sawStderr {
		t.Fatalf("expected session and stderr events (session=%t stderr=%t)", sawSession, sawStderr)
	}
}

func TestCombinedStreamEmitsInvalidJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	stream := newCombinedStream(ctx, schema.EngineClaude, decodeClaudeEvent, stdoutR, stderrR)

	go func() {
		_, _ = fmt.Fprintln(stdoutW, "not json")
		_, _ = fmt.Fprintln(stdoutW, `{"type":"system","subtype":"init","session_id":"sess-2"}`)
		_ = stdoutW.Close()
	}()
	go func() {
		_ = stderrW.Close()
	}()

	var sawInvalid bool
	var sawSession bool
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Next: %v", err)
		}
		switch event.Type {
		case schema.EventError:
			if event.Message == "not json" {
				sawInvalid = true
			}
		case schema.EventSessionStarted:
			if event.SessionID == "sess-2" {
				sawSession = true
			}
		}
	}

	if !sawInvalid || !sawSession {
		t.Fatalf("expected invalid json and session events (invalid=%t session=%t)", sawInvalid, sawSession)
	}
}

func TestCombinedStreamClassifiesAuthFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	stream := newCombinedStream(ctx, schema.EngineClaude, decodeClaudeEvent, stdoutR, stderrR)

	go func() {
		_ = stdoutW.Close()
	}()
	go func() {
		_, _ = fmt.Fprintln(stderrW, "Invalid API key. Please run /login")
		_ = stderrW.Close()
	}()

	var streamErr error
	for {
		_, err := stream.Next(ctx)
		if err != nil {
			streamErr = err
			break
		}
	}
	var runnerErr *core.RunnerError
	if !errors.As(streamErr, &runnerErr) {
		t.Fatalf("expected runner error, got %v", streamErr)
	}
	if runnerErr.Kind != core.RunnerErrorUnauthorized {
		t.Fatalf("expected unauthorized, got %s", runnerErr.Kind)
	}
}
