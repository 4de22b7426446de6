package core

import (
	"context"

	"pkt.systems/chimerax/schema"
)

// Runner starts an engine CLI process and exposes its JSONL event stream.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunHandle, error)
}

// RunRequest describes an engine exec invocation.
type RunRequest struct {
	Engine          schema.EngineID
	WorkingDir      string
	Prompt          string
	Model           schema.ModelID
	ResumeSessionID schema.SessionID
}

// RunHandle exposes the event stream and process lifecycle controls.
type RunHandle interface {
	Events() EventStream
	Signal(ctx context.Context, sig ProcessSignal) error
	Wait(ctx context.Context) (RunResult, error)
	Close() error
}

// EventStream yields normalized events from an engine CLI.
type EventStream interface {
	Next(ctx context.Context) (schema.ExecEvent, error)
	Close() error
}

// RunResult describes the process outcome.
type RunResult struct {
	ExitCode int
}

// ProcessSignal indicates which signal to send to the process.
type ProcessSignal string

const (
	// ProcessSignalHUP requests a hangup signal.
	ProcessSignalHUP ProcessSignal = "HUP"
	// ProcessSignalTERM requests a termination signal.
	ProcessSignalTERM ProcessSignal = "TERM"
	// ProcessSignalKILL requests an immediate kill signal.
	ProcessSignalKILL ProcessSignal = "KILL"
)
