package core

import (
	"context"

	"pkt.systems/chimerax/schema"
)

// Service is the transport-agnostic API for managing tabs, windows, and
// engine CLI sessions.
type Service interface {
	CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error)
	UpdateStreaming(ctx context.Context, req schema.UpdateStreamingRequest) (schema.UpdateStreamingResponse, error)
	DetachTab(ctx context.Context, req schema.DetachTabRequest) (schema.DetachTabResponse, error)
	CreateWindow(ctx context.Context, req schema.CreateWindowRequest) (schema.CreateWindowResponse, error)
	CloseWindow(ctx context.Context, req schema.CloseWindowRequest) (schema.CloseWindowResponse, error)
	SendPrompt(ctx context.Context, req schema.SendPromptRequest) (schema.SendPromptResponse, error)
	StopSession(ctx context.Context, req schema.StopSessionRequest) (schema.StopSessionResponse, error)
	RenewSession(ctx context.Context, req schema.RenewSessionRequest) (schema.RenewSessionResponse, error)
	SetEngine(ctx context.Context, req schema.SetEngineRequest) (schema.SetEngineResponse, error)
	SetModel(ctx context.Context, req schema.SetModelRequest) (schema.SetModelResponse, error)
	SetProject(ctx context.Context, req schema.SetProjectRequest) (schema.SetProjectResponse, error)
	ListProjects(ctx context.Context, req schema.ListProjectsRequest) (schema.ListProjectsResponse, error)
	CreateProject(ctx context.Context, req schema.CreateProjectRequest) (schema.CreateProjectResponse, error)
	SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error)
	GetBuffer(ctx context.Context, req schema.GetBufferRequest) (schema.GetBufferResponse, error)
	ScrollBuffer(ctx context.Context, req schema.ScrollBufferRequest) (schema.ScrollBufferResponse, error)
	AppendOutput(ctx context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error)
	AppendSystemOutput(ctx context.Context, req schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error)
	GetSystemBuffer(ctx context.Context, req schema.GetSystemBufferRequest) (schema.GetSystemBufferResponse, error)
	GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error)
	AppendHistory(ctx context.Context, req schema.AppendHistoryRequest) (schema.AppendHistoryResponse, error)
	GetTabUsage(ctx context.Context, req schema.GetTabUsageRequest) (schema.GetTabUsageResponse, error)
}
