package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/internal/project"
	"pkt.systems/chimerax/internal/sessionprefs"
	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

func (s *service) SendPrompt(ctx context.Context, req schema.SendPromptRequest) (schema.SendPromptResponse, error) {
	if s.runners == nil {
		return schema.SendPromptResponse{}, schema.ErrEngineUnavailable
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return schema.SendPromptResponse{}, schema.ErrEmptyPrompt
	}
	if ctx == nil {
		return schema.SendPromptResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.SendPromptResponse{}, err
	}
	baseLog := logx.WithUserTab(ctx, userID, req.TabID)
	ctx = logx.ContextWithUserTabLogger(ctx, baseLog, userID, req.TabID)
	log := baseLog

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab != nil && tab.State == schema.TabStateStreaming {
		s.mu.Unlock()
		log.Warn("service prompt rejected", "err", schema.ErrTabBusy)
		return schema.SendPromptResponse{}, schema.ErrTabBusy
	}
	s.mu.Unlock()
	if tab == nil {
		log.Warn("service prompt rejected", "err", schema.ErrTabNotFound)
		return schema.SendPromptResponse{}, schema.ErrTabNotFound
	}
	if strings.TrimSpace(tab.Project.Path) == "" {
		log.Warn("service prompt rejected", "err", schema.ErrInvalidProject)
		s.appendLine(log, userID, tab.ID, "error: no project bound; use /project first")
		return schema.SendPromptResponse{}, schema.ErrInvalidProject
	}
	sessionLog := logx.WithSession(baseLog, tab.SessionID)
	ctx = logx.ContextWithUserTabLogger(ctx, sessionLog, userID, req.TabID)
	log = logx.WithEngine(logx.WithProject(sessionLog, tab.Project), tab.Engine).With("model", tab.Model, "prompt_len", len(req.Prompt))
	log.Info("service prompt start")
	s.appendLine(log, userID, tab.ID, fmt.Sprintf("> %s", req.Prompt))

	runCtx, runCancel := detachRunContext(ctx)
	runnerResp, err := s.runners.RunnerFor(runCtx, RunnerRequest{UserID: userID, TabID: tab.ID, Engine: tab.Engine})
	if err != nil {
		log.Error("service runner lookup failed", "err", err)
		s.appendLines(log, userID, tab.ID, buildExecStartLines(time.Now(), tab, project.GitInfo{}))
		s.appendErrorLine(log, userID, tab.ID, tab.Engine, err)
		if runCancel != nil {
			runCancel()
		}
		return schema.SendPromptResponse{}, err
	}
	runner := runnerResp.Runner
	workingDir := tab.Project.Path
	if !s.cfg.DisableAuditLogging {
		auditLog := logx.WithEngine(logx.WithProject(sessionLog, tab.Project), tab.Engine).With("model", tab.Model)
		auditLog.Debug("audit command", "command_type", tab.Engine, "command", auditCommand(tab.Engine, tab.SessionID), "workdir", workingDir)
	}
	s.appendLines(log, userID, tab.ID, buildExecStartLines(time.Now(), tab, project.CollectGitInfo(runCtx, workingDir)))
	runReq := RunRequest{
		Engine:          tab.Engine,
		WorkingDir:      workingDir,
		Prompt:          req.Prompt,
		Model:           tab.Model,
		ResumeSessionID: tab.SessionID,
	}
	started := time.Now()
	handle, err := runner.Run(runCtx, runReq)
	if err != nil {
		log.Error("service runner start failed", "err", err)
		s.appendErrorLine(log, userID, tab.ID, tab.Engine, err)
		if runCancel != nil {
			runCancel()
		}
		return schema.SendPromptResponse{}, err
	}

	s.mu.Lock()
	applyStreamingLocked(tab, true)
	tab.Run = handle
	tab.RunCancel = runCancel
	snapshot := tabSnapshotLocked(state, tab)
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventStatus,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	log.Info("service runner started", "workdir", workingDir)

	go s.consumeEvents(runCtx, userID, tab.ID, handle, runCancel, started)
	return schema.SendPromptResponse{Tab: snapshot, Accepted: true}, nil
}

func auditCommand(engine schema.EngineID, sessionID schema.SessionID) string {
	switch engine {
	case schema.EngineClaude:
		if sessionID != "" {
			return fmt.Sprintf("claude -p --output-format stream-json --resume %s", sessionID)
		}
		return "claude -p --output-format stream-json"
	case schema.EngineCodex:
		if sessionID != "" {
			return fmt.Sprintf("codex exec resume %s --json", sessionID)
		}
		return "codex exec --json"
	case schema.EngineGemini:
		return "gemini --output-format stream-json"
	default:
		return string(engine)
	}
}

func (s *service) StopSession(ctx context.Context, req schema.StopSessionRequest) (schema.StopSessionResponse, error) {
	if ctx == nil {
		return schema.StopSessionResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.StopSessionResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	handle := RunHandle(nil)
	runCancel := context.CancelFunc(nil)
	var snapshot schema.TabSnapshot
	if tab != nil {
		handle = tab.Run
		runCancel = tab.RunCancel
		snapshot = tabSnapshotLocked(state, tab)
	}
	s.mu.Unlock()
	if tab == nil {
		log.Warn("service stop failed", "err", schema.ErrTabNotFound)
		return schema.StopSessionResponse{}, schema.ErrTabNotFound
	}

	if handle == nil {
		log.Info("service stop ignored", "reason", "no running process")
		s.appendLine(log, userID, req.TabID, "stop requested: no running process")
		return schema.StopSessionResponse{Tab: snapshot}, nil
	}

	log.Info("service stop requested")
	s.appendLine(log, userID, req.TabID, "stop requested: sending SIGTERM")
	go s.stopTabHandlesAnnounced(log, userID, req.TabID, handle, runCancel)

	return schema.StopSessionResponse{Tab: snapshot}, nil
}

// stopTabHandles terminates a run without narrating progress in the buffer,
// used when the tab itself is going away.
func (s *service) stopTabHandles(log pslog.Logger, userID schema.UserID, tabID schema.TabID, handle RunHandle, runCancel context.CancelFunc) {
	s.stopHandleSequence(log, userID, tabID, handle, runCancel, false)
}

// stopTabHandlesAnnounced terminates a run and mirrors the signal sequence
// into the tab buffer.
func (s *service) stopTabHandlesAnnounced(log pslog.Logger, userID schema.UserID, tabID schema.TabID, handle RunHandle, runCancel context.CancelFunc) {
	s.stopHandleSequence(log, userID, tabID, handle, runCancel, true)
}

// stopHandleSequence sends TERM, waits, and escalates to KILL if the process
// has not exited.
func (s *service) stopHandleSequence(log pslog.Logger, userID schema.UserID, tabID schema.TabID, handle RunHandle, runCancel context.CancelFunc, announce bool) {
	signalCtx := context.Background()
	if log != nil {
		signalCtx = logx.ContextWithUserTabLogger(signalCtx, log, userID, tabID)
	}
	if handle != nil {
		if err := handle.Signal(signalCtx, ProcessSignalTERM); err != nil {
			if log != nil {
				log.Warn("service stop signal failed", "signal", ProcessSignalTERM, "err", err)
			}
			if announce {
				s.appendLine(log, userID, tabID, fmt.Sprintf("signal error: %v", err))
			}
		}
	}
	stopSleep(10 * time.Second)
	shouldKill := handle != nil && !isDone(handleDone(handle))
	if shouldKill {
		if announce {
			s.appendLine(log, userID, tabID, "stop requested: sending SIGKILL")
		}
		if err := handle.Signal(signalCtx, ProcessSignalKILL); err != nil {
			if log != nil {
				log.Warn("service stop signal failed", "signal", ProcessSignalKILL, "err", err)
			}
			if announce {
				s.appendLine(log, userID, tabID, fmt.Sprintf("signal error: %v", err))
			}
		}
	}
	if log != nil {
		log.Info("stop requested: signal sequence complete")
	}
	if runCancel != nil {
		runCancel()
	}
}

func handleDone(h any) <-chan struct{} {
	if h == nil {
		return nil
	}
	if done, ok := h.(interface{ Done() <-chan struct{} }); ok {
		return done.Done()
	}
	return nil
}

func isDone(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (s *service) RenewSession(ctx context.Context, req schema.RenewSessionRequest) (schema.RenewSessionResponse, error) {
	if ctx == nil {
		return schema.RenewSessionResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.RenewSessionResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service renew failed", "err", schema.ErrTabNotFound)
		return schema.RenewSessionResponse{}, schema.ErrTabNotFound
	}
	if tab.State == schema.TabStateStreaming {
		s.mu.Unlock()
		log.Warn("service renew failed", "err", schema.ErrTabBusy)
		return schema.RenewSessionResponse{}, schema.ErrTabBusy
	}
	tab.SessionID = ""
	tab.LastUsage = nil
	snapshot := tabSnapshotLocked(state, tab)
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventUpdated,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()

	s.emitTabEvent(event)
	s.persistUser(log, userID)
	log.Info("service session renewed")
	return schema.RenewSessionResponse{Tab: snapshot}, nil
}

func (s *service) consumeEvents(ctx context.Context, userID schema.UserID, tabID schema.TabID, handle RunHandle, cancel context.CancelFunc, started time.Time) {
	log := logx.WithUserTab(ctx, userID, tabID)
	defer func() {
		if cancel != nil {
			cancel()
		}
	}()
	log.Info("service exec stream start")
	stream := handle.Events()
	workedInserted := false
	eventCount := 0
	var engine schema.EngineID
	s.mu.Lock()
	if state := s.users[userID]; state != nil {
		if tab := state.tabs[tabID]; tab != nil {
			engine = tab.Engine
		}
	}
	s.mu.Unlock()
	var seenCommandIDs map[string]bool
	lastCommand := ""
	lastCommandEvent := false
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Warn("service exec stream error", "err", err)
			s.appendErrorLine(log, userID, tabID, engine, fmt.Errorf("stream error: %w", err))
			break
		}
		eventCount++
		if !workedInserted && event.Type == schema.EventItemCompleted && event.Item != nil && event.Item.Type == schema.ItemAgentMessage {
			s.appendLine(log, userID, tabID, formatWorkedForLine(time.Since(started)))
			workedInserted = true
		}
		if event.SessionID != "" {
			if s.setSessionID(userID, tabID, event.SessionID) {
				s.persistUser(log, userID)
				log.Debug("service session captured", "session", event.SessionID)
			}
		}
		if event.Type == schema.EventTurnFailed {
			if event.Error != nil && event.Error.Message != "" {
				log.Warn("service exec turn failed", "message", event.Error.Message)
			} else {
				log.Warn("service exec turn failed")
			}
		}
		if event.Type == schema.EventError {
			if event.Message != "" {
				log.Warn("service exec error", "message", event.Message)
			} else {
				log.Warn("service exec error")
			}
		}
		if event.Type == schema.EventTurnCompleted && event.Usage != nil {
			usageCopy := *event.Usage
			s.mu.Lock()
			if state := s.users[userID]; state != nil {
				if tab := state.tabs[tabID]; tab != nil {
					tab.LastUsage = &usageCopy
				}
			}
			s.mu.Unlock()
		}
		if event.Item != nil && event.Item.Type == schema.ItemCommandExecution && event.Item.Command != "" {
			if event.Item.ID != "" {
				if seenCommandIDs == nil {
					seenCommandIDs = make(map[string]bool)
				}
				if seenCommandIDs[event.Item.ID] {
					event.Item.Command = ""
				} else {
					seenCommandIDs[event.Item.ID] = true
				}
			} else if lastCommandEvent && event.Item.Command == lastCommand && event.Type != schema.EventItemStarted {
				event.Item.Command = ""
			} else {
				lastCommand = event.Item.Command
				lastCommandEvent = true
			}
		} else {
			lastCommand = ""
			lastCommandEvent = false
		}
		lines, err := s.renderer.FormatEvent(event)
		if err != nil {
			itemType := ""
			if event.Item != nil {
				itemType = string(event.Item.Type)
			}
			log.Warn("service render failed", "type", event.Type, "item_type", itemType, "err", err)
			s.appendLine(log, userID, tabID, fmt.Sprintf("render error: %v", err))
			continue
		}
		if event.Item != nil && event.Item.Type == schema.ItemCommandExecution {
			lines = trimCommandLines(ctx, lines)
		}
		if len(lines) > 0 {
			s.appendLines(log, userID, tabID, lines)
		}
	}
	result, err := handle.Wait(ctx)
	if err != nil {
		log.Warn("service exec wait failed", "err", err)
		s.appendErrorLine(log, userID, tabID, engine, err)
	} else if result.ExitCode != 0 {
		s.appendErrorLine(log, userID, tabID, engine, fmt.Errorf("run exited with code %d", result.ExitCode))
	}
	if err := handle.Close(); err != nil {
		log.Warn("service exec close failed", "err", err)
		s.appendErrorLine(log, userID, tabID, engine, fmt.Errorf("runner close failed: %w", err))
	}

	if err == nil {
		log.Info("service exec finished", "exit_code", result.ExitCode, "events", eventCount, "duration_ms", time.Since(started).Milliseconds())
	}
	s.mu.Lock()
	state := s.users[userID]
	var event *schema.TabEvent
	if state != nil {
		tab := state.tabs[tabID]
		if tab != nil && tab.Run == handle {
			applyStreamingLocked(tab, false)
			tab.Run = nil
			tab.RunCancel = nil
			tabEvent := schema.TabEvent{
				UserID:    userID,
				Type:      schema.TabEventStatus,
				Tab:       tabSnapshotLocked(state, tab),
				ActiveTab: state.active,
			}
			event = &tabEvent
		}
	}
	s.mu.Unlock()
	if event != nil {
		s.emitTabEvent(*event)
		s.persistUser(log, userID)
	}
}

const maxCommandLinesTerse = 5

func trimCommandLines(ctx context.Context, lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	if prefs := sessionprefs.FromContext(ctx); prefs != nil && prefs.FullCommandOutput {
		return lines
	}
	if len(lines) > maxCommandLinesTerse {
		return lines[:maxCommandLinesTerse]
	}
	return lines
}

func formatWorkedForLine(duration time.Duration) string {
	return schema.WorkedForMarker + "Worked for " + formatWorkedDuration(duration)
}

func formatWorkedDuration(duration time.Duration) string {
	if duration < time.Second {
		if duration < 0 {
			duration = 0
		}
		return fmt.Sprintf("%dms", duration.Milliseconds())
	}
	if duration < time.Minute {
		seconds := int(duration.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		return fmt.Sprintf("%ds", seconds)
	}
	if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("%dm", minutes)
	}
	hours := int(duration.Hours())
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("%dh", hours)
}
