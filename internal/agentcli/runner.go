package agentcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// Config controls how an engine CLI is invoked.
type Config struct {
	BinaryPath string
	ExtraArgs  []string
	Env        []string
}

// Runner implements core.Runner for one engine CLI. The prompt is written
// to stdin and the JSONL stream on stdout is normalized into exec events.
type Runner struct {
	engine schema.EngineID
	cfg    Config
	decode decodeFunc
}

// NewRunner constructs a runner for the given engine.
func NewRunner(engine schema.EngineID, cfg Config) (*Runner, error) {
	normalized, err := schema.NormalizeEngineID(string(engine))
	if err != nil {
		return nil, err
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = string(normalized)
	}
	return &Runner{engine: normalized, cfg: cfg, decode: decoderFor(normalized)}, nil
}

// Engine returns the engine this runner targets.
func (r *Runner) Engine() schema.EngineID {
	return r.engine
}

// Run starts an engine exec process.
func (r *Runner) Run(ctx context.Context, req core.RunRequest) (core.RunHandle, error) {
	if req.Prompt == "" {
		return nil, schema.ErrEmptyPrompt
	}
	args := buildArgs(r.engine, r.cfg, req)
	log := pslog.Ctx(ctx)
	if log != nil {
		log.Info(
			"engine exec start",
			"engine", r.engine,
			"workdir", req.WorkingDir,
			"args_len", len(args),
			"args", args,
			"model", req.Model,
			"resume", req.ResumeSessionID != "",
			"prompt_len", len(req.Prompt),
			"env_extra", len(r.cfg.Env),
		)
	}

	cmd := exec.CommandContext(ctx, r.cfg.BinaryPath, args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	} else {
		cmd.Env = append(cmd.Env, os.Environ()...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		if log != nil {
			log.Error("engine exec stdout failed", "engine", r.engine, "err", err)
		}
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		if log != nil {
			log.Error("engine exec stderr failed", "engine", r.engine, "err", err)
		}
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		if log != nil {
			log.Error("engine exec stdin failed", "engine", r.engine, "err", err)
		}
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		if log != nil {
			log.Error("engine exec start failed", "engine", r.engine, "err", err)
		}
		return nil, classifyStartError(r.engine, err)
	}
	if log != nil && cmd.Process != nil {
		log.Info("engine exec started", "engine", r.engine, "pid", cmd.Process.Pid)
	}

	go func() {
		_, _ = io.WriteString(stdin, req.Prompt)
		_ = stdin.Close()
	}()

	stream := newCombinedStream(ctx, r.engine, r.decode, stdout, stderr)
	handle := &runHandle{
		engine:  r.engine,
		cmd:     cmd,
		stream:  stream,
		log:     log,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	return handle, nil
}

func classifyStartError(engine schema.EngineID, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return core.NewRunnerError(core.RunnerErrorNotInstalled, string(engine), err)
	case errors.Is(err, os.ErrPermission):
		return core.NewRunnerError(core.RunnerErrorPermissionDenied, string(engine), err)
	default:
		return core.NewRunnerError(core.RunnerErrorExec, string(engine), err)
	}
}

type runHandle struct {
	engine   schema.EngineID
	cmd      *exec.Cmd
	stream   *combinedStream
	log      pslog.Logger
	started  time.Time
	done     chan struct{}
	doneOnce sync.Once
}

func (r *runHandle) Events() core.EventStream {
	return r.stream
}

// Done reports process exit so the stop sequence can skip the KILL
// escalation when the process is already gone.
func (r *runHandle) Done() <-chan struct{} {
	return r.done
}

func (r *runHandle) Signal(ctx context.Context, sig core.ProcessSignal) error {
	_ = ctx
	if r.cmd == nil || r.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	switch sig {
	case core.ProcessSignalHUP:
		return r.cmd.Process.Signal(syscall.SIGHUP)
	case core.ProcessSignalTERM:
		return r.cmd.Process.Signal(syscall.SIGTERM)
	case core.ProcessSignalKILL:
		return r.cmd.Process.Signal(syscall.SIGKILL)
	default:
		return fmt.Errorf("unsupported signal: %s", sig)
	}
}

func (r *runHandle) Wait(ctx context.Context) (core.RunResult, error) {
	_ = ctx
	if r.cmd == nil {
		return core.RunResult{}, fmt.Errorf("process not started")
	}
	err := r.cmd.Wait()
	r.doneOnce.Do(func() { close(r.done) })
	signal := ""
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				signal = status.Signal().String()
			}
		} else {
			if r.log != nil {
				r.log.Error("engine exec wait failed", "engine", r.engine, "err", err)
			}
			return core.RunResult{}, err
		}
	}
	if r.log != nil {
		fields := []any{
			"engine", r.engine,
			"exit_code", exitCode,
			"duration_ms", time.Since(r.started).Milliseconds(),
		}
		if signal != "" {
			fields = append(fields, "signal", signal)
		}
		if err != nil {
			fields = append(fields, "err", err)
		}
		r.log.Info("engine exec finished", fields...)
	}
	return core.RunResult{ExitCode: exitCode}, nil
}

func (r *runHandle) Close() error {
	if r.stream != nil {
		_ = r.stream.Close()
	}
	return nil
}
