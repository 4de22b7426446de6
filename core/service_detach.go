package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/schema"
)

func (s *service) DetachTab(ctx context.Context, req schema.DetachTabRequest) (schema.DetachTabResponse, error) {
	if ctx == nil {
		return schema.DetachTabResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.DetachTabResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	if s.windows == nil {
		log.Warn("service tab detach failed", "err", "no window manager")
		return schema.DetachTabResponse{}, fmt.Errorf("%w: no window manager", schema.ErrDetachFailed)
	}

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service tab detach failed", "err", schema.ErrTabNotFound)
		return schema.DetachTabResponse{}, schema.ErrTabNotFound
	}
	if tab.State == schema.TabStateClosing {
		s.mu.Unlock()
		log.Warn("service tab detach failed", "err", schema.ErrTabBusy)
		return schema.DetachTabResponse{}, schema.ErrTabBusy
	}
	// Closing doubles as the in-flight guard: a second detach or close on
	// this tab is rejected until the window manager answers.
	prevState := tab.State
	tab.State = schema.TabStateClosing
	openReq := OpenWindowRequest{
		UserID:    userID,
		Title:     tab.Title,
		Project:   tab.Project,
		Engine:    tab.Engine,
		SessionID: tab.SessionID,
	}
	s.mu.Unlock()

	win, err := s.windows.OpenWindow(ctx, openReq)
	if err != nil {
		s.mu.Lock()
		if current := state.tabs[req.TabID]; current == tab && current.State == schema.TabStateClosing {
			current.State = prevState
		}
		s.mu.Unlock()
		log.Warn("service tab detach failed", "err", err)
		return schema.DetachTabResponse{}, fmt.Errorf("%w: %v", schema.ErrDetachFailed, err)
	}

	s.mu.Lock()
	current := state.tabs[req.TabID]
	if current == nil || current != tab {
		// The tab was closed while the window opened; the late result is
		// discarded and the fresh window disposed.
		s.mu.Unlock()
		if _, closeErr := s.windows.CloseWindow(ctx, CloseWindowRequest{UserID: userID, Label: win.Label}); closeErr != nil {
			log.Warn("service detach window discard failed", "window", win.Label, "err", closeErr)
		}
		log.Warn("service tab detach failed", "err", schema.ErrTabNotFound)
		return schema.DetachTabResponse{}, schema.ErrTabNotFound
	}
	removedIdx := orderIndex(state.order, req.TabID)
	wasActive := state.active == req.TabID
	delete(state.tabs, req.TabID)
	state.order = removeTabID(state.order, req.TabID)
	if wasActive {
		state.active = nextActiveID(state.order, removedIdx)
	}
	state.windows = append(state.windows, win)
	snapshot := tab.Snapshot(removedIdx, false)
	tabEvent := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventDetached,
		Tab:       snapshot,
		ActiveTab: state.active,
		Window:    win.Label,
	}
	windowEvent := schema.WindowEvent{
		UserID: userID,
		Type:   schema.WindowEventOpened,
		Window: win,
	}
	s.mu.Unlock()
	s.emitTabEvent(tabEvent)
	s.emitWindowEvent(windowEvent)
	s.persistUser(log, userID)
	logx.WithWindow(logx.WithSession(log, win.SessionID), win.Label).Info("service tab detached")
	return schema.DetachTabResponse{Window: win.Label}, nil
}

func (s *service) CreateWindow(ctx context.Context, req schema.CreateWindowRequest) (schema.CreateWindowResponse, error) {
	if ctx == nil {
		return schema.CreateWindowResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.CreateWindowResponse{}, err
	}
	log := logx.WithUser(ctx, userID)
	if s.windows == nil {
		log.Warn("service window create failed", "err", "no window manager")
		return schema.CreateWindowResponse{}, fmt.Errorf("%w: no window manager", schema.ErrDetachFailed)
	}

	engine := req.Engine
	if strings.TrimSpace(string(engine)) == "" {
		engine = s.cfg.DefaultEngine
	} else {
		engine, err = schema.NormalizeEngineID(string(engine))
		if err != nil {
			log.Warn("service window create failed", "err", err)
			return schema.CreateWindowResponse{}, err
		}
	}
	var projectRef schema.ProjectRef
	if strings.TrimSpace(req.ProjectPath) != "" {
		resolved, err := s.projects.ResolveProject(ctx, ResolveProjectRequest{UserID: userID, Path: req.ProjectPath})
		if err != nil {
			log.Warn("service window create failed", "err", err)
			return schema.CreateWindowResponse{}, err
		}
		projectRef = resolved.Project
	}
	title := string(req.Title)
	if strings.TrimSpace(title) == "" {
		title = projectRef.Name
	}
	if strings.TrimSpace(title) == "" {
		title = "untitled"
	}
	title = formatTabTitle(title, s.cfg.TabTitleMax, s.cfg.TabTitleSuffix)

	win, err := s.windows.OpenWindow(ctx, OpenWindowRequest{
		UserID:    userID,
		Title:     schema.TabTitle(title),
		Project:   projectRef,
		Engine:    engine,
		SessionID: req.SessionID,
	})
	if err != nil {
		log.Warn("service window create failed", "err", err)
		return schema.CreateWindowResponse{}, fmt.Errorf("%w: %v", schema.ErrDetachFailed, err)
	}

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	state.windows = append(state.windows, win)
	s.mu.Unlock()
	s.emitWindowEvent(schema.WindowEvent{
		UserID: userID,
		Type:   schema.WindowEventOpened,
		Window: win,
	})
	s.persistUser(log, userID)
	logx.WithWindow(log, win.Label).Info("service window created")
	return schema.CreateWindowResponse{Window: win.Label}, nil
}

func (s *service) CloseWindow(ctx context.Context, req schema.CloseWindowRequest) (schema.CloseWindowResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.CloseWindowResponse{}, err
	}
	log := logx.WithWindow(logx.WithUser(ctx, userID), req.Window)

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	found := -1
	for i, win := range state.windows {
		if win.Label == req.Window {
			found = i
			break
		}
	}
	if found < 0 {
		s.mu.Unlock()
		log.Warn("service window close failed", "err", schema.ErrWindowNotFound)
		return schema.CloseWindowResponse{}, schema.ErrWindowNotFound
	}
	win := state.windows[found]
	state.windows = append(state.windows[:found], state.windows[found+1:]...)
	s.mu.Unlock()

	if s.windows != nil {
		if _, err := s.windows.CloseWindow(ctx, CloseWindowRequest{UserID: userID, Label: req.Window}); err != nil {
			log.Warn("service window manager close failed", "err", err)
		}
	}
	s.emitWindowEvent(schema.WindowEvent{
		UserID: userID,
		Type:   schema.WindowEventClosed,
		Window: win,
	})
	s.persistUser(log, userID)
	log.Info("service window closed")
	return schema.CloseWindowResponse{Window: win}, nil
}
