package core

import (
	"context"

	"pkt.systems/chimerax/schema"
)

// ResolveProjectRequest asks the resolver to validate a project path.
type ResolveProjectRequest struct {
	UserID schema.UserID
	Path   string
}

// ResolveProjectResponse returns the resolved project reference.
type ResolveProjectResponse struct {
	Project schema.ProjectRef
}

// CreateProjectRequest asks the resolver to create a fresh project.
type CreateProjectRequest struct {
	UserID schema.UserID
	Name   string
}

// CreateProjectResponse returns the created project reference.
type CreateProjectResponse struct {
	Project schema.ProjectRef
}

// ListProjectsRequest asks for the projects known under the project root.
type ListProjectsRequest struct {
	UserID schema.UserID
}

// ListProjectsResponse returns the known projects.
type ListProjectsResponse struct {
	Projects []schema.ProjectRef
}

// ProjectResolver validates project paths and lists known projects.
type ProjectResolver interface {
	ResolveProject(ctx context.Context, req ResolveProjectRequest) (ResolveProjectResponse, error)
	CreateProject(ctx context.Context, req CreateProjectRequest) (CreateProjectResponse, error)
	ListProjects(ctx context.Context, req ListProjectsRequest) (ListProjectsResponse, error)
}
