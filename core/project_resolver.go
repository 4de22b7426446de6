package core

import (
	"context"
	"path/filepath"

	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/internal/project"
	"pkt.systems/chimerax/schema"
)

// NewProjectResolver returns the default local resolver rooted per user.
func NewProjectResolver(root string) (ProjectResolver, error) {
	if root == "" {
		return nil, schema.ErrInvalidProject
	}
	return &localProjectResolver{root: root}, nil
}

type localProjectResolver struct {
	root string
}

func (r *localProjectResolver) ResolveProject(ctx context.Context, req ResolveProjectRequest) (ResolveProjectResponse, error) {
	log := logx.WithUser(ctx, req.UserID).With("project_ref", req.Path)
	manager, err := r.manager(ctx, req.UserID)
	if err != nil {
		log.Warn("project resolve failed", "err", err)
		return ResolveProjectResponse{}, err
	}
	ref, err := manager.Resolve(req.Path)
	if err != nil {
		log.Warn("project resolve failed", "err", err)
		return ResolveProjectResponse{}, err
	}
	log.Debug("project resolved", "path", ref.Path)
	return ResolveProjectResponse{Project: ref}, nil
}

func (r *localProjectResolver) CreateProject(ctx context.Context, req CreateProjectRequest) (CreateProjectResponse, error) {
	log := logx.WithUser(ctx, req.UserID).With("project", req.Name)
	manager, err := r.manager(ctx, req.UserID)
	if err != nil {
		log.Warn("project create failed", "err", err)
		return CreateProjectResponse{}, err
	}
	ref, err := manager.Create(req.Name)
	if err != nil {
		log.Warn("project create failed", "err", err)
		return CreateProjectResponse{}, err
	}
	log.Info("project created", "path", ref.Path)
	return CreateProjectResponse{Project: ref}, nil
}

func (r *localProjectResolver) ListProjects(ctx context.Context, req ListProjectsRequest) (ListProjectsResponse, error) {
	log := logx.WithUser(ctx, req.UserID)
	manager, err := r.manager(ctx, req.UserID)
	if err != nil {
		log.Warn("project list failed", "err", err)
		return ListProjectsResponse{}, err
	}
	projects, err := manager.List()
	if err != nil {
		log.Warn("project list failed", "err", err)
		return ListProjectsResponse{}, err
	}
	log.Debug("project list ok", "count", len(projects))
	return ListProjectsResponse{Projects: projects}, nil
}

func (r *localProjectResolver) manager(ctx context.Context, userID schema.UserID) (*project.Manager, error) {
	path := filepath.Join(r.root, string(userID))
	return project.NewManagerWithLogger(path, logx.WithUser(ctx, userID))
}
