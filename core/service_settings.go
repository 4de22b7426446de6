package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/schema"
)

func (s *service) SetEngine(ctx context.Context, req schema.SetEngineRequest) (schema.SetEngineResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.SetEngineResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	engine, err := schema.NormalizeEngineID(string(req.Engine))
	if err != nil {
		log.Warn("service engine update failed", "err", err, "engine", req.Engine)
		return schema.SetEngineResponse{}, err
	}

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service engine update failed", "err", schema.ErrTabNotFound)
		return schema.SetEngineResponse{}, schema.ErrTabNotFound
	}
	if tab.State == schema.TabStateStreaming {
		s.mu.Unlock()
		log.Warn("service engine update failed", "err", schema.ErrTabBusy)
		return schema.SetEngineResponse{}, schema.ErrTabBusy
	}
	changed := tab.Engine != engine
	tab.Engine = engine
	if changed {
		// Sessions are engine-scoped; a resume id from one CLI means
		// nothing to another.
		tab.SessionID = ""
		tab.LastUsage = nil
	}
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
	log.Info("service engine updated", "engine", engine, "session_reset", changed)
	return schema.SetEngineResponse{Tab: snapshot}, nil
}

func (s *service) SetModel(ctx context.Context, req schema.SetModelRequest) (schema.SetModelResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.SetModelResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	normalizedModel, err := schema.NormalizeModelID(string(req.Model))
	if err != nil {
		return schema.SetModelResponse{}, err
	}
	if len(s.cfg.AllowedModels) > 0 {
		allowed := false
		for _, model := range s.cfg.AllowedModels {
			if model == normalizedModel {
				allowed = true
				break
			}
		}
		if !allowed {
			log.Warn("service model update failed", "err", schema.ErrInvalidModel, "model", normalizedModel)
			return schema.SetModelResponse{}, fmt.Errorf("%w: %s", schema.ErrInvalidModel, normalizedModel)
		}
	}

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service model update failed", "err", schema.ErrTabNotFound)
		return schema.SetModelResponse{}, schema.ErrTabNotFound
	}
	tab.Model = normalizedModel
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
	log.Info("service model updated", "model", normalizedModel)
	return schema.SetModelResponse{Tab: snapshot}, nil
}

func (s *service) SetProject(ctx context.Context, req schema.SetProjectRequest) (schema.SetProjectResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.SetProjectResponse{}, err
	}
	log := logx.WithUserTab(ctx, userID, req.TabID)
	resolved, err := s.projects.ResolveProject(ctx, ResolveProjectRequest{UserID: userID, Path: req.ProjectPath})
	if err != nil {
		log.Warn("service project switch failed", "err", err, "project_path", req.ProjectPath)
		return schema.SetProjectResponse{}, err
	}
	projectRef := resolved.Project

	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	tab := state.tabs[req.TabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("service project switch failed", "err", schema.ErrTabNotFound)
		return schema.SetProjectResponse{}, schema.ErrTabNotFound
	}
	if tab.State == schema.TabStateStreaming {
		s.mu.Unlock()
		log.Warn("service project switch failed", "err", schema.ErrTabBusy)
		return schema.SetProjectResponse{}, schema.ErrTabBusy
	}
	tab.Project = projectRef
	if strings.TrimSpace(string(tab.Title)) == "" || string(tab.Title) == "untitled" {
		tab.Title = schema.TabTitle(formatTabTitle(projectRef.Name, s.cfg.TabTitleMax, s.cfg.TabTitleSuffix))
	}
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
	logx.WithProject(log, projectRef).Info("service project switched")
	return schema.SetProjectResponse{Tab: snapshot}, nil
}

func (s *service) ListProjects(ctx context.Context, req schema.ListProjectsRequest) (schema.ListProjectsResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.ListProjectsResponse{}, err
	}
	log := logx.WithUser(ctx, userID)
	listResp, err := s.projects.ListProjects(ctx, ListProjectsRequest{UserID: userID})
	if err != nil {
		log.Warn("service projects list failed", "err", err)
		return schema.ListProjectsResponse{}, err
	}
	log.Debug("service projects listed", "count", len(listResp.Projects))
	return schema.ListProjectsResponse{Projects: listResp.Projects}, nil
}

func (s *service) CreateProject(ctx context.Context, req schema.CreateProjectRequest) (schema.CreateProjectResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.CreateProjectResponse{}, err
	}
	log := logx.WithUser(ctx, userID).With("project", req.Name)
	createResp, err := s.projects.CreateProject(ctx, CreateProjectRequest{UserID: userID, Name: req.Name})
	if err != nil {
		log.Warn("service project create failed", "err", err)
		return schema.CreateProjectResponse{}, err
	}
	log.Info("service project created", "path", createResp.Project.Path)
	return schema.CreateProjectResponse{Project: createResp.Project}, nil
}

func (s *service) SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return schema.SetThemeResponse{}, err
	}
	log := logx.WithUser(ctx, userID)
	if strings.TrimSpace(string(req.Theme)) == "" {
		return schema.SetThemeResponse{}, errors.New("theme is required")
	}

	var tabSnapshot schema.TabSnapshot
	var active schema.TabID
	s.mu.Lock()
	state := s.getOrCreateUserStateLocked(userID)
	state.theme = req.Theme
	active = state.active
	if active != "" {
		if tab := state.tabs[active]; tab != nil {
			tabSnapshot = tabSnapshotLocked(state, tab)
		}
	}
	s.mu.Unlock()
	s.emitTabEvent(schema.TabEvent{
		UserID:    userID,
		Type:      schema.TabEventUpdated,
		Tab:       tabSnapshot,
		ActiveTab: active,
		Theme:     req.Theme,
	})
	s.persistUser(log, userID)
	log.Info("service theme updated", "theme", req.Theme)
	return schema.SetThemeResponse{Theme: req.Theme}, nil
}
