package core

import (
	"context"
	"errors"
	"strings"

	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/schema"
)

func (s *service) CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	if ctx == nil {
		return schema.CreateTabResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.CreateTabResponse{}, err
	}
	log := logx.WithUser(ctx, userID)
	log.Info("service tab create start", "project_path", req.ProjectPath, "engine", req.Engine, "session", req.SessionID, "title", req.Title)

	engine := req.Engine
	if strings.TrimSpace(string(engine)) == "" {
		engine = s.cfg.DefaultEngine
	} else {
		engine, err = schema.NormalizeEngineID(string(engine))
		if err != nil {
			log.Warn("service tab create failed", "err", err)
			return schema.CreateTabResponse{}, err
		}
	}

	// A tab without a project or session starts empty; both can be bound
	// later through SetProject and the first prompt.
	var projectRef schema.ProjectRef
	if strings.TrimSpace(req.ProjectPath) != "" {
		resolved, err := s.projects.ResolveProject(ctx, ResolveProjectRequest{UserID: userID, Path: req.ProjectPath})
		if err != nil {
			log.Warn("service tab create failed", "err", err)
			return schema.CreateTabResponse{}, err
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

	tab := &tab{
		ID:        schema.TabID(newID()),
		Title:     schema.TabTitle(title),
		Project:   projectRef,
		Engine:    engine,
		Model:     s.cfg.DefaultModel,
		SessionID: req.SessionID,
		State:     schema.TabStateIdle,
		buffer:    newBufferWithMaxLines(s.cfg.BufferMaxLines),
		history:   newHistory(defaultHistoryMax),
	}

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	state.tabs[tab.ID] = tab
	state.order = append(state.order, tab.ID)
	state.active = tab.ID
	snapshot := tabSnapshotLocked(state, tab)
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventCreated,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistUser(log, userID)
	logx.WithProject(logx.WithEngine(log.With("tab", tab.ID, "title", tab.Title), engine), projectRef).Info("service tab created")

	return schema.CreateTabResponse{Tab: snapshot}, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	if ctx == nil {
		return schema.CloseTabResponse{}, errors.New("missing context")
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.CloseTabResponse{}, err
	}
	baseLog := logx.WithUserTab(ctx, userID, req.TabID)
	ctx = logx.ContextWithUserTabLogger(ctx, baseLog, userID, req.TabID)
	log := baseLog

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service tab close failed", "err", schema.ErrTabNotFound)
		return schema.CloseTabResponse{}, schema.ErrTabNotFound
	}
	if tab.State == schema.TabStateClosing {
		s.mu.Unlock()
		log.Warn("service tab close failed", "err", schema.ErrTabBusy)
		return schema.CloseTabResponse{}, schema.ErrTabBusy
	}
	if tab.unsaved && !req.Force {
		// First phase of a guarded close: nothing is mutated, the caller
		// must confirm and repeat with Force.
		snapshot := tabSnapshotLocked(state, tab)
		s.mu.Unlock()
		log.Info("service tab close needs confirmation")
		return schema.CloseTabResponse{NeedsConfirmation: true, Tab: snapshot}, nil
	}
	handle := tab.Run
	runCancel := tab.RunCancel
	removedIdx := orderIndex(state.order, req.TabID)
	wasActive := state.active == req.TabID
	tab.State = schema.TabStateClosing
	delete(state.tabs, req.TabID)
	state.order = removeTabID(state.order, req.TabID)
	if wasActive {
		state.active = nextActiveID(state.order, removedIdx)
	}
	snapshot := tab.Snapshot(removedIdx, false)
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventClosed,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistUser(log, userID)
	if handle != nil {
		go s.stopTabHandles(log, userID, req.TabID, handle, runCancel)
	}
	log.Info("service tab closed", "forced", req.Force)
	return schema.CloseTabResponse{Closed: true, Tab: snapshot}, nil
}

func (s *service) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.ListTabsResponse{}, err
	}
	log := logx.WithUser(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.getOrCreateUserStateLocked(userID)
	resp := schema.ListTabsResponse{
		Tabs:      tabSnapshotsLocked(state),
		ActiveTab: state.active,
		Windows:   append([]schema.WindowSnapshot(nil), state.windows...),
		Theme:     state.theme,
	}
	log.Trace("service tabs listed", "count", len(resp.Tabs), "active", resp.ActiveTab, "windows", len(resp.Windows))
	return resp, nil
}

func (s *service) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.ActivateTabResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		// Stale references arrive after concurrent closes; the active
		// pointer stays where it is.
		var current schema.TabSnapshot
		if active := state.tabs[state.active]; active != nil {
			current = tabSnapshotLocked(state, active)
		}
		s.mu.Unlock()
		log.Warn("service tab activate ignored", "reason", "unknown tab")
		return schema.ActivateTabResponse{Tab: current}, nil
	}
	if state.active == req.TabID {
		snapshot := tabSnapshotLocked(state, tab)
		s.mu.Unlock()
		log.Trace("service tab activate noop", "reason", "already active")
		return schema.ActivateTabResponse{Tab: snapshot}, nil
	}
	state.active = req.TabID
	snapshot := tabSnapshotLocked(state, tab)
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventActivated,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistUser(log, userID)
	log.Info("service tab activated")
	return schema.ActivateTabResponse{Tab: snapshot}, nil
}

func (s *service) ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.ReorderTabsResponse{}, err
	}
	log := logx.WithUser(ctx, userID).With("from", req.From, "to", req.To)

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	order, err := reorderIDs(state.order, req.From, req.To)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service tab reorder failed", "err", err)
		return schema.ReorderTabsResponse{}, err
	}
	if req.From == req.To {
		tabs := tabSnapshotsLocked(state)
		s.mu.Unlock()
		log.Debug("service tab reorder noop")
		return schema.ReorderTabsResponse{Tabs: tabs}, nil
	}
	state.order = order
	tabs := tabSnapshotsLocked(state)
	var moved schema.TabSnapshot
	if t := state.tabs[order[req.To]]; t != nil {
		moved = tabSnapshotLocked(state, t)
	}
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventReordered,
		Tab:       moved,
		ActiveTab: state.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistUser(log, userID)
	log.Info("service tabs reordered")
	return schema.ReorderTabsResponse{Tabs: tabs}, nil
}

func (s *service) UpdateStreaming(ctx context.Context, req schema.UpdateStreamingRequest) (schema.UpdateStreamingResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.UpdateStreamingResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service streaming update failed", "err", schema.ErrTabNotFound)
		return schema.UpdateStreamingResponse{}, schema.ErrTabNotFound
	}
	if req.SessionID != "" && tab.SessionID == "" {
		tab.SessionID = req.SessionID
	}
	applyStreamingLocked(tab, req.Streaming)
	snapshot := tabSnapshotLocked(state, tab)
	event := schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventStatus,
		Tab:       snapshot,
		ActiveTab: state.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistUser(log, userID)
	log.Debug("service streaming updated", "streaming", req.Streaming, "session", req.SessionID)
	return schema.UpdateStreamingResponse{Tab: snapshot}, nil
}

// applyStreamingLocked transitions a tab in and out of the streaming state.
// A streaming turn marks the conversation unsaved. When the turn ends, an
// interrupted stream without a bound session would lose the conversation;
// the unsaved guard clears only once a session exists.
func applyStreamingLocked(t *tab, streaming bool) {
	if streaming {
		if t.State != schema.TabStateClosing {
			t.State = schema.TabStateStreaming
		}
		t.unsaved = true
		return
	}
	if t.State == schema.TabStateStreaming {
		t.State = schema.TabStateIdle
	}
	if t.SessionID != "" {
		t.unsaved = false
	}
}
