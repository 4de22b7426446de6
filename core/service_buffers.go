package core

import (
	"context"

	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/schema"
)

func (s *service) GetBuffer(ctx context.Context, req schema.GetBufferRequest) (schema.GetBufferResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.GetBufferResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)

	s.mu.Lock()
	tab := s.getOrCreateUserStateLocked(userID).tabs[req.TabID]
	s.mu.Unlock()
	if tab == nil {
		log.Warn("service buffer get failed", "err", schema.ErrTabNotFound)
		return schema.GetBufferResponse{}, schema.ErrTabNotFound
	}

	view := tab.buffer.Snapshot(req.Limit)
	log.Trace("service buffer snapshot", "lines", view.TotalLines, "offset", view.ScrollOffset, "limit", req.Limit)
	return schema.GetBufferResponse{Buffer: mapBufferSnapshot(req.TabID, view)}, nil
}

func (s *service) ScrollBuffer(ctx context.Context, req schema.ScrollBufferRequest) (schema.ScrollBufferResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.ScrollBufferResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)

	s.mu.Lock()
	tab := s.getOrCreateUserStateLocked(userID).tabs[req.TabID]
	if tab != nil {
		tab.buffer.Scroll(req.Delta, req.Limit)
	}
	s.mu.Unlock()
	if tab == nil {
		log.Warn("service buffer scroll failed", "err", schema.ErrTabNotFound)
		return schema.ScrollBufferResponse{}, schema.ErrTabNotFound
	}

	view := tab.buffer.Snapshot(req.Limit)
	s.persistUser(log, userID)
	log.Debug("service buffer scrolled", "offset", view.ScrollOffset, "limit", req.Limit)
	return schema.ScrollBufferResponse{Buffer: mapBufferSnapshot(req.TabID, view)}, nil
}

func (s *service) AppendOutput(ctx context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.AppendOutputResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	if len(req.Lines) == 0 {
		return schema.AppendOutputResponse{}, nil
	}
	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	var snapshot schema.TabSnapshot
	if tab != nil {
		tab.buffer.Append(req.Lines...)
		snapshot = tabSnapshotLocked(state, tab)
	}
	s.mu.Unlock()
	if tab == nil {
		log.Warn("service output append failed", "err", schema.ErrTabNotFound)
		return schema.AppendOutputResponse{}, schema.ErrTabNotFound
	}
	s.emitOutput(userID, req.TabID, req.Lines)
	s.persistUser(log, userID)
	log.Trace("service output appended", "lines", len(req.Lines))
	return schema.AppendOutputResponse{Tab: snapshot}, nil
}

func (s *service) AppendSystemOutput(ctx context.Context, req schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.AppendSystemOutputResponse{}, err
	}
	log := logx.WithUser(ctx, userID)
	if len(req.Lines) == 0 {
		return schema.AppendSystemOutputResponse{}, nil
	}
	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	if state.system != nil {
		state.system.Append(req.Lines...)
	}
	s.mu.Unlock()
	s.emitSystemOutput(userID, req.Lines)
	s.persistUser(log, userID)
	log.Trace("service system output appended", "lines", len(req.Lines))
	return schema.AppendSystemOutputResponse{}, nil
}

func (s *service) GetSystemBuffer(ctx context.Context, req schema.GetSystemBufferRequest) (schema.GetSystemBufferResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.GetSystemBufferResponse{}, err
	}
	log := logx.WithUser(ctx, userID)
	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	system := state.system
	s.mu.Unlock()
	if system == nil {
		return schema.GetSystemBufferResponse{Buffer: schema.SystemBufferSnapshot{}}, nil
	}
	view := system.Snapshot(req.Limit)
	log.Trace("service system buffer snapshot", "lines", view.TotalLines, "offset", view.ScrollOffset, "limit", req.Limit)
	return schema.GetSystemBufferResponse{
		Buffer: schema.SystemBufferSnapshot{
			Lines:        view.Lines,
			TotalLines:   view.TotalLines,
			ScrollOffset: view.ScrollOffset,
			AtBottom:     view.AtBottom,
		},
	}, nil
}

func (s *service) GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.GetHistoryResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	if req.TabID == "" {
		return schema.GetHistoryResponse{}, schema.ErrTabNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		log.Warn("service history get failed", "err", schema.ErrTabNotFound)
		return schema.GetHistoryResponse{}, schema.ErrTabNotFound
	}
	if tab.history == nil {
		tab.history = newHistory(defaultHistoryMax)
	}
	log.Debug("service history fetched", "entries", len(tab.history.Entries()))
	return schema.GetHistoryResponse{Entries: tab.history.Entries()}, nil
}

func (s *service) AppendHistory(ctx context.Context, req schema.AppendHistoryRequest) (schema.AppendHistoryResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.AppendHistoryResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	if req.TabID == "" {
		return schema.AppendHistoryResponse{}, schema.ErrTabNotFound
	}
	var entries []string
	changed := false
	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service history append failed", "err", schema.ErrTabNotFound)
		return schema.AppendHistoryResponse{}, schema.ErrTabNotFound
	}
	if tab.history == nil {
		tab.history = newHistory(defaultHistoryMax)
	}
	if tab.history.Append(req.Entry) {
		changed = true
	}
	entries = tab.history.Entries()
	s.mu.Unlock()
	if changed {
		s.persistUser(log, userID)
	}
	log.Debug("service history appended", "changed", changed, "entries", len(entries))
	return schema.AppendHistoryResponse{Entries: entries}, nil
}

func (s *service) GetTabUsage(ctx context.Context, req schema.GetTabUsageRequest) (schema.GetTabUsageResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.GetTabUsageResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	if req.TabID == "" {
		return schema.GetTabUsageResponse{}, schema.ErrTabNotFound
	}
	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	var usage *schema.TurnUsage
	if tab != nil && tab.LastUsage != nil {
		usageCopy := *tab.LastUsage
		usage = &usageCopy
	}
	s.mu.Unlock()
	if tab == nil {
		log.Warn("service tab usage failed", "err", schema.ErrTabNotFound)
		return schema.GetTabUsageResponse{}, schema.ErrTabNotFound
	}
	log.Debug("service tab usage fetched", "has_usage", usage != nil)
	return schema.GetTabUsageResponse{Usage: usage}, nil
}
