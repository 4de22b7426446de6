package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pkt.systems/chimerax/internal/sessionprefs"
	"pkt.systems/chimerax/internal/version"
	"pkt.systems/chimerax/schema"
)

func TestHandleNewOpensExistingProject(t *testing.T) {
	user := schema.UserID("alice")

	var created []schema.CreateTabRequest
	svc := &fakeService{
		createProjectFn: func(_ context.Context, req schema.CreateProjectRequest) (schema.CreateProjectResponse, error) {
			if req.Name != "demo" {
				t.Fatalf("unexpected project name: %s", req.Name)
			}
			return schema.CreateProjectResponse{}, schema.ErrProjectExists
		},
		createTabFn: func(_ context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
			created = append(created, req)
			if req.ProjectPath != "demo" {
				t.Fatalf("expected project path demo, got %q", req.ProjectPath)
			}
			return schema.CreateTabResponse{
				Tab: schema.TabSnapshot{
					ID:      "newtab",
					Title:   "demo",
					Project: schema.ProjectRef{Name: "demo", Path: "/projects/alice/demo"},
				},
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			if req.TabID != "newtab" {
				t.Fatalf("unexpected output tab: %s", req.TabID)
			}
			joined := strings.Join(req.Lines, " ")
			if !strings.Contains(joined, "project opened") || !strings.Contains(joined, "tab opened") {
				t.Fatalf("expected project opened output, got %+v", req.Lines)
			}
			return schema.AppendOutputResponse{}, nil
		},
		appendSystemOutputFn: func(context.Context, schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error) {
			return schema.AppendSystemOutputResponse{}, nil
		},
	}

	handler := NewHandler(svc, HandlerConfig{})
	handled, err := handler.Handle(context.Background(), user, "", "/new demo")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !handled {
		t.Fatalf("expected handled command")
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 CreateTab call, got %d", len(created))
	}
}

func TestHandleNewWithoutProjectOpensEmptyTab(t *testing.T) {
	var captured []string
	svc := &fakeService{
		createTabFn: func(_ context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
			if req.ProjectPath != "" {
				t.Fatalf("expected empty project path, got %q", req.ProjectPath)
			}
			return schema.CreateTabResponse{
				Tab: schema.TabSnapshot{ID: "tab-1", Title: "untitled"},
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			captured = append(captured, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), "alice", "", "/new"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	joined := strings.Join(captured, "\n")
	if !strings.Contains(joined, "tab opened: untitled") {
		t.Fatalf("expected tab opened output, got %v", captured)
	}
	if strings.Contains(joined, "project") {
		t.Fatalf("expected no project line, got %v", captured)
	}
}

func TestHandleModelUsage(t *testing.T) {
	handler := NewHandler(&fakeService{}, HandlerConfig{
		AllowedModels: []schema.ModelID{"claude-sonnet-4-5"},
	})
	_, err := handler.Handle(context.Background(), "alice", "tab1", "/model")
	if err == nil || !strings.Contains(err.Error(), "usage: /model") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestHandleHelpAppendsOutput(t *testing.T) {
	var captured []string
	svc := &fakeService{
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			captured = append(captured, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{
		AllowedModels: []schema.ModelID{"claude-sonnet-4-5"},
	})
	_, err := handler.Handle(context.Background(), "alice", "tab1", "/help")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(captured) == 0 || captured[0] != schema.WorkedForMarker+"Commands" {
		t.Fatalf("expected commands output, got %+v", captured)
	}
	if len(captured) < 2 || !strings.HasPrefix(captured[1], schema.HelpMarker) {
		t.Fatalf("expected help marker line, got %+v", captured)
	}
}

func TestHandleHelpWithoutTabUsesSystemOutput(t *testing.T) {
	var captured []string
	svc := &fakeService{
		appendSystemOutputFn: func(_ context.Context, req schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error) {
			captured = append(captured, req.Lines...)
			return schema.AppendSystemOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	_, err := handler.Handle(context.Background(), "alice", "", "/help")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(captured) == 0 || captured[0] != schema.WorkedForMarker+"Commands" {
		t.Fatalf("expected commands output, got %+v", captured)
	}
}

func TestHandleVersionAppendsOutput(t *testing.T) {
	var captured []string
	svc := &fakeService{
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			captured = append(captured, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	_, err := handler.Handle(context.Background(), "alice", "tab1", "/version")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(captured) < 5 {
		t.Fatalf("expected version output, got %+v", captured)
	}
	expectedVersion := version.Module() + " " + version.Current()
	if captured[0] != schema.WorkedForMarker+"About" {
		t.Fatalf("expected about header, got %q", captured[0])
	}
	if captured[1] != schema.AboutVersionMarker+expectedVersion {
		t.Fatalf("expected version line, got %q", captured[1])
	}
	if !strings.HasPrefix(captured[2], schema.AboutCopyrightMarker) {
		t.Fatalf("expected copyright line, got %q", captured[2])
	}
	if !strings.HasPrefix(captured[3], schema.AboutLinkMarker) {
		t.Fatalf("expected link line, got %q", captured[3])
	}
}

func TestHandleTabsListsOrderAndActive(t *testing.T) {
	var lines []string
	svc := &fakeService{
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{
				Tabs: []schema.TabSnapshot{
					{ID: "tab1", Title: "api", Engine: schema.EngineClaude},
					{ID: "tab2", Title: "docs", Engine: schema.EngineCodex, State: schema.TabStateStreaming},
				},
				ActiveTab: "tab2",
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), "alice", "tab2", "/tabs"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(lines) != 3 || lines[0] != schema.WorkedForMarker+"Tabs" {
		t.Fatalf("expected tabs header, got %v", lines)
	}
	if !strings.Contains(lines[1], "1) api [claude]") {
		t.Fatalf("unexpected first tab line: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "(streaming)") {
		t.Fatalf("expected active streaming marker, got %q", lines[2])
	}
}

func TestHandleUnknownSlashCommandReturnsError(t *testing.T) {
	handler := NewHandler(&fakeService{}, HandlerConfig{})
	handled, err := handler.Handle(context.Background(), "alice", "tab1", "/wat")
	if !handled {
		t.Fatalf("expected handled command")
	}
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestHandleNonSlashInputNotHandled(t *testing.T) {
	handler := NewHandler(&fakeService{}, HandlerConfig{})
	handled, err := handler.Handle(context.Background(), "alice", "tab1", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled {
		t.Fatalf("expected non-slash input to be unhandled")
	}
}

func TestHandleThemeSetsTheme(t *testing.T) {
	var applied schema.ThemeName
	var lines []string
	svc := &fakeService{
		setThemeFn: func(_ context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error) {
			applied = req.Theme
			return schema.SetThemeResponse{Theme: req.Theme}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	_, err := handler.Handle(context.Background(), "alice", "tab1", "/theme gruvbox")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if applied != "gruvbox" {
		t.Fatalf("expected theme gruvbox, got %q", applied)
	}
	if len(lines) == 0 || !strings.Contains(strings.Join(lines, "\n"), "theme set to gruvbox") {
		t.Fatalf("expected theme confirmation output, got %v", lines)
	}
}

func TestHandleRenewResetsSession(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var called bool
	var lines []string
	svc := &fakeService{
		renewSessionFn: func(_ context.Context, req schema.RenewSessionRequest) (schema.RenewSessionResponse, error) {
			called = true
			if req.UserID != user || req.TabID != tabID {
				t.Fatalf("unexpected renew request: %+v", req)
			}
			return schema.RenewSessionResponse{Tab: schema.TabSnapshot{ID: tabID}}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, tabID, "/renew"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !called {
		t.Fatalf("expected RenewSession to be called")
	}
	if len(lines) == 0 || !strings.Contains(strings.Join(lines, " "), "session renewed") {
		t.Fatalf("expected session renewed output, got %v", lines)
	}
}

func TestHandleEngineSwitchesEngine(t *testing.T) {
	var applied schema.EngineID
	var lines []string
	svc := &fakeService{
		setEngineFn: func(_ context.Context, req schema.SetEngineRequest) (schema.SetEngineResponse, error) {
			applied = req.Engine
			return schema.SetEngineResponse{Tab: schema.TabSnapshot{ID: req.TabID, Engine: req.Engine}}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), "alice", "tab1", "/engine codex"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if applied != schema.EngineCodex {
		t.Fatalf("expected codex engine, got %q", applied)
	}
	if len(lines) == 0 || !strings.Contains(lines[0], "engine set to: codex") {
		t.Fatalf("expected engine output, got %v", lines)
	}
}

func TestHandleEngineRejectsUnknown(t *testing.T) {
	handler := NewHandler(&fakeService{}, HandlerConfig{})
	_, err := handler.Handle(context.Background(), "alice", "tab1", "/engine copilot")
	if err == nil || !strings.Contains(err.Error(), "available:") {
		t.Fatalf("expected available engines in error, got %v", err)
	}
}

func TestToggleFullCommandOutput(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	prefs := sessionprefs.New()
	ctx := sessionprefs.WithContext(context.Background(), prefs)
	var captured []string
	svc := &fakeService{
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			captured = append(captured, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})

	if _, err := handler.Handle(ctx, user, tabID, "/togglefullcommandoutput"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !prefs.FullCommandOutput {
		t.Fatalf("expected full command output enabled")
	}
	if len(captured) == 0 || !strings.Contains(captured[len(captured)-1], "command output: full") {
		t.Fatalf("expected toggle output line, got %v", captured)
	}

	if _, err := handler.Handle(ctx, user, tabID, "/togglefullcommandoutput"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if prefs.FullCommandOutput {
		t.Fatalf("expected full command output disabled")
	}
	if len(captured) == 0 || !strings.Contains(captured[len(captured)-1], "command output: terse") {
		t.Fatalf("expected toggle output line, got %v", captured)
	}
}

func TestHandleStatusShowsTabState(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	tab := schema.TabSnapshot{
		ID:        tabID,
		Title:     "demo",
		Project:   schema.ProjectRef{Name: "demo", Path: "/projects/alice/demo"},
		Engine:    schema.EngineClaude,
		Model:     "claude-sonnet-4-5",
		SessionID: "sess-1",
	}

	var lines []string
	svc := &fakeService{
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{
				Tabs:      []schema.TabSnapshot{tab},
				ActiveTab: tabID,
			}, nil
		},
		getTabUsageFn: func(_ context.Context, req schema.GetTabUsageRequest) (schema.GetTabUsageResponse, error) {
			if req.UserID != user || req.TabID != tabID {
				t.Fatalf("unexpected usage request: %+v", req)
			}
			return schema.GetTabUsageResponse{Usage: &schema.TurnUsage{InputTokens: 1500, OutputTokens: 500}}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}

	handler := NewHandler(svc, HandlerConfig{})
	_, err := handler.Handle(context.Background(), user, tabID, "/status")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(lines) == 0 || lines[0] != schema.WorkedForMarker+"Status" {
		t.Fatalf("expected status header, got %v", lines)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Engine:") || !strings.Contains(joined, "claude") {
		t.Fatalf("expected engine line, got %v", lines)
	}
	if !strings.Contains(joined, "Model:") || !strings.Contains(joined, "claude-sonnet-4-5") {
		t.Fatalf("expected model line, got %v", lines)
	}
	if !strings.Contains(joined, "Project:") || !strings.Contains(joined, "/projects/alice/demo") {
		t.Fatalf("expected project line, got %v", lines)
	}
	if !strings.Contains(joined, "Tokens used:") || !strings.Contains(joined, "2K") {
		t.Fatalf("expected tokens used line, got %v", lines)
	}
}

func TestHandleCloseAsksForConfirmation(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var lines []string
	var forced []bool
	svc := &fakeService{
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{
				Tabs:      []schema.TabSnapshot{{ID: tabID, Title: "demo", HasUnsavedChanges: true}},
				ActiveTab: tabID,
			}, nil
		},
		closeTabFn: func(_ context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
			forced = append(forced, req.Force)
			if !req.Force {
				return schema.CloseTabResponse{
					NeedsConfirmation: true,
					Tab:               schema.TabSnapshot{ID: tabID, Title: "demo"},
				}, nil
			}
			return schema.CloseTabResponse{
				Closed: true,
				Tab:    schema.TabSnapshot{ID: tabID, Title: "demo"},
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}

	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, tabID, "/close"); err != nil {
		t.Fatalf("Handle /close: %v", err)
	}
	if len(forced) != 1 || forced[0] {
		t.Fatalf("expected unforced first close, got %v", forced)
	}
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "/close affirm") {
		t.Fatalf("expected confirmation prompt, got %v", lines)
	}

	if _, err := handler.Handle(context.Background(), user, tabID, "/close affirm"); err != nil {
		t.Fatalf("Handle /close affirm: %v", err)
	}
	if len(forced) != 2 || !forced[1] {
		t.Fatalf("expected forced second close, got %v", forced)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "tab closed: demo") {
		t.Fatalf("expected tab closed output, got %v", lines)
	}
}

func TestHandleRemoveResolvesIndex(t *testing.T) {
	user := schema.UserID("alice")
	var closedID schema.TabID
	var systemLines []string
	svc := &fakeService{
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{
				Tabs: []schema.TabSnapshot{
					{ID: "tab1", Title: "api"},
					{ID: "tab2", Title: "docs"},
				},
			}, nil
		},
		closeTabFn: func(_ context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
			closedID = req.TabID
			return schema.CloseTabResponse{Closed: true, Tab: schema.TabSnapshot{ID: req.TabID, Title: "docs"}}, nil
		},
		appendSystemOutputFn: func(_ context.Context, req schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error) {
			systemLines = append(systemLines, req.Lines...)
			return schema.AppendSystemOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, "", "/rm 2"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if closedID != "tab2" {
		t.Fatalf("expected tab2 closed, got %s", closedID)
	}
	if !strings.Contains(strings.Join(systemLines, "\n"), "tab closed: docs") {
		t.Fatalf("expected close output, got %v", systemLines)
	}
}

func TestHandleRemoveUnknownTabFails(t *testing.T) {
	svc := &fakeService{
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{Tabs: []schema.TabSnapshot{{ID: "tab1", Title: "api"}}}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	_, err := handler.Handle(context.Background(), "alice", "", "/rm nosuch")
	if err == nil || !strings.Contains(err.Error(), "tab not found") {
		t.Fatalf("expected tab not found error, got %v", err)
	}
}

func TestHandleDetachReportsWindow(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var systemLines []string
	svc := &fakeService{
		detachTabFn: func(_ context.Context, req schema.DetachTabRequest) (schema.DetachTabResponse, error) {
			if req.UserID != user || req.TabID != tabID {
				t.Fatalf("unexpected detach request: %+v", req)
			}
			return schema.DetachTabResponse{Window: "win-1"}, nil
		},
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{}, nil
		},
		appendSystemOutputFn: func(_ context.Context, req schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error) {
			systemLines = append(systemLines, req.Lines...)
			return schema.AppendSystemOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, tabID, "/detach"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(strings.Join(systemLines, "\n"), "tab detached to window win-1") {
		t.Fatalf("expected detach output, got %v", systemLines)
	}
}

func TestHandleWindowListAndClose(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var lines []string
	var closedLabel schema.WindowLabel
	svc := &fakeService{
		listTabsFn: func(_ context.Context, _ schema.ListTabsRequest) (schema.ListTabsResponse, error) {
			return schema.ListTabsResponse{
				Windows: []schema.WindowSnapshot{
					{Label: "win-1", Title: "demo", Engine: schema.EngineClaude},
				},
			}, nil
		},
		closeWindowFn: func(_ context.Context, req schema.CloseWindowRequest) (schema.CloseWindowResponse, error) {
			closedLabel = req.Window
			return schema.CloseWindowResponse{Window: schema.WindowSnapshot{Label: req.Window}}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})

	if _, err := handler.Handle(context.Background(), user, tabID, "/window"); err != nil {
		t.Fatalf("Handle /window: %v", err)
	}
	if len(lines) == 0 || lines[0] != schema.WorkedForMarker+"Windows" {
		t.Fatalf("expected windows header, got %v", lines)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "win-1") {
		t.Fatalf("expected window label in list, got %v", lines)
	}

	lines = nil
	if _, err := handler.Handle(context.Background(), user, tabID, "/window close win-1"); err != nil {
		t.Fatalf("Handle /window close: %v", err)
	}
	if closedLabel != "win-1" {
		t.Fatalf("expected win-1 closed, got %s", closedLabel)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "window closed: win-1") {
		t.Fatalf("expected close output, got %v", lines)
	}
}

func TestHandleMoveReordersTabs(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var lines []string
	svc := &fakeService{
		reorderTabsFn: func(_ context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error) {
			if req.UserID != user || req.From != 2 || req.To != 0 {
				t.Fatalf("unexpected reorder request: %+v", req)
			}
			return schema.ReorderTabsResponse{
				Tabs: []schema.TabSnapshot{
					{ID: "tab3", Title: "gamma"},
					{ID: "tab1", Title: "alpha"},
					{ID: "tab2", Title: "beta"},
				},
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, tabID, "/move 3 1"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "tab gamma moved to position 1") {
		t.Fatalf("expected move output, got %v", lines)
	}
}

func TestHandleMoveUsage(t *testing.T) {
	handler := NewHandler(&fakeService{}, HandlerConfig{})
	for _, input := range []string{"/move", "/move 1", "/move one two"} {
		if _, err := handler.Handle(context.Background(), "alice", "tab1", input); err == nil {
			t.Fatalf("expected usage error for %q", input)
		}
	}
}

func TestHandleWindowNewOpensWindow(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var lines []string
	var created schema.CreateWindowRequest
	svc := &fakeService{
		createWindowFn: func(_ context.Context, req schema.CreateWindowRequest) (schema.CreateWindowResponse, error) {
			created = req
			return schema.CreateWindowResponse{Window: "win-7"}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, tabID, "/window new demo"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if created.UserID != user || created.ProjectPath != "demo" {
		t.Fatalf("unexpected create window request: %+v", created)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "window opened: win-7") {
		t.Fatalf("expected window output, got %v", lines)
	}

	lines = nil
	if _, err := handler.Handle(context.Background(), user, tabID, "/window new"); err != nil {
		t.Fatalf("Handle without project: %v", err)
	}
	if created.ProjectPath != "" {
		t.Fatalf("expected empty project path, got %q", created.ProjectPath)
	}
}

func TestHandleProjectRebindsTab(t *testing.T) {
	var applied string
	var lines []string
	svc := &fakeService{
		setProjectFn: func(_ context.Context, req schema.SetProjectRequest) (schema.SetProjectResponse, error) {
			applied = req.ProjectPath
			return schema.SetProjectResponse{
				Tab: schema.TabSnapshot{ID: req.TabID, Project: schema.ProjectRef{Name: "demo"}},
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), "alice", "tab1", "/project demo"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if applied != "demo" {
		t.Fatalf("expected project demo, got %q", applied)
	}
	if len(lines) == 0 || !strings.Contains(lines[0], "project set to: demo") {
		t.Fatalf("expected project output, got %v", lines)
	}
}

func TestHandleListProjectsAppendsOutput(t *testing.T) {
	user := schema.UserID("alice")
	var lines []string
	svc := &fakeService{
		listProjectsFn: func(_ context.Context, req schema.ListProjectsRequest) (schema.ListProjectsResponse, error) {
			if req.UserID != user {
				t.Fatalf("unexpected user: %s", req.UserID)
			}
			return schema.ListProjectsResponse{
				Projects: []schema.ProjectRef{{Name: "demo"}, {Name: "notes"}},
			}, nil
		},
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}
	handler := NewHandler(svc, HandlerConfig{})
	if _, err := handler.Handle(context.Background(), user, "tab1", "/projects"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(lines) == 0 || lines[0] != schema.WorkedForMarker+"Projects" {
		t.Fatalf("expected projects header, got %v", lines)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "- demo") || !strings.Contains(joined, "- notes") {
		t.Fatalf("unexpected list output: %v", lines)
	}
}

func TestHandleLoginPubKeyCommands(t *testing.T) {
	user := schema.UserID("alice")
	tabID := schema.TabID("tab1")
	var lines []string
	loginStore := &fakeLoginPubKeyStore{
		keys: []string{"ssh-ed25519 AAAAfirst", "ssh-ed25519 AAAAsecond"},
	}

	svc := &fakeService{
		appendOutputFn: func(_ context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
			lines = append(lines, req.Lines...)
			return schema.AppendOutputResponse{}, nil
		},
	}

	handler := NewHandler(svc, HandlerConfig{
		LoginPubKeyStore: loginStore,
	})

	_, err := handler.Handle(context.Background(), user, tabID, "/addloginpubkey ssh-ed25519 AAAAnew")
	if err != nil {
		t.Fatalf("add login pubkey: %v", err)
	}
	if loginStore.addedKey == "" {
		t.Fatalf("expected login pubkey to be added")
	}

	lines = nil
	_, err = handler.Handle(context.Background(), user, tabID, "/listloginpubkeys")
	if err != nil {
		t.Fatalf("list login pubkeys: %v", err)
	}
	if len(lines) == 0 || lines[0] != schema.WorkedForMarker+"Login pubkeys" {
		t.Fatalf("expected list output, got %v", lines)
	}

	lines = nil
	_, err = handler.Handle(context.Background(), user, tabID, "/rmloginpubkey 2")
	if err != nil {
		t.Fatalf("remove login pubkey: %v", err)
	}
	if loginStore.removedIndex != 2 {
		t.Fatalf("expected remove index 2, got %d", loginStore.removedIndex)
	}
}

type fakeService struct {
	createTabFn          func(context.Context, schema.CreateTabRequest) (schema.CreateTabResponse, error)
	closeTabFn           func(context.Context, schema.CloseTabRequest) (schema.CloseTabResponse, error)
	listTabsFn           func(context.Context, schema.ListTabsRequest) (schema.ListTabsResponse, error)
	reorderTabsFn        func(context.Context, schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error)
	detachTabFn          func(context.Context, schema.DetachTabRequest) (schema.DetachTabResponse, error)
	createWindowFn       func(context.Context, schema.CreateWindowRequest) (schema.CreateWindowResponse, error)
	closeWindowFn        func(context.Context, schema.CloseWindowRequest) (schema.CloseWindowResponse, error)
	setEngineFn          func(context.Context, schema.SetEngineRequest) (schema.SetEngineResponse, error)
	setModelFn           func(context.Context, schema.SetModelRequest) (schema.SetModelResponse, error)
	setProjectFn         func(context.Context, schema.SetProjectRequest) (schema.SetProjectResponse, error)
	listProjectsFn       func(context.Context, schema.ListProjectsRequest) (schema.ListProjectsResponse, error)
	createProjectFn      func(context.Context, schema.CreateProjectRequest) (schema.CreateProjectResponse, error)
	setThemeFn           func(context.Context, schema.SetThemeRequest) (schema.SetThemeResponse, error)
	appendOutputFn       func(context.Context, schema.AppendOutputRequest) (schema.AppendOutputResponse, error)
	appendSystemOutputFn func(context.Context, schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error)
	renewSessionFn       func(context.Context, schema.RenewSessionRequest) (schema.RenewSessionResponse, error)
	getTabUsageFn        func(context.Context, schema.GetTabUsageRequest) (schema.GetTabUsageResponse, error)
}

func (f *fakeService) CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	if f.createTabFn != nil {
		return f.createTabFn(ctx, req)
	}
	return schema.CreateTabResponse{}, errors.New("unexpected CreateTab")
}

func (f *fakeService) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	if f.closeTabFn != nil {
		return f.closeTabFn(ctx, req)
	}
	return schema.CloseTabResponse{}, errors.New("unexpected CloseTab")
}

func (f *fakeService) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	if f.listTabsFn != nil {
		return f.listTabsFn(ctx, req)
	}
	return schema.ListTabsResponse{}, errors.New("unexpected ListTabs")
}

func (f *fakeService) ActivateTab(context.Context, schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	return schema.ActivateTabResponse{}, errors.New("unexpected ActivateTab")
}

func (f *fakeService) ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error) {
	if f.reorderTabsFn != nil {
		return f.reorderTabsFn(ctx, req)
	}
	return schema.ReorderTabsResponse{}, errors.New("unexpected ReorderTabs")
}

func (f *fakeService) UpdateStreaming(context.Context, schema.UpdateStreamingRequest) (schema.UpdateStreamingResponse, error) {
	return schema.UpdateStreamingResponse{}, errors.New("unexpected UpdateStreaming")
}

func (f *fakeService) DetachTab(ctx context.Context, req schema.DetachTabRequest) (schema.DetachTabResponse, error) {
	if f.detachTabFn != nil {
		return f.detachTabFn(ctx, req)
	}
	return schema.DetachTabResponse{}, errors.New("unexpected DetachTab")
}

func (f *fakeService) CreateWindow(ctx context.Context, req schema.CreateWindowRequest) (schema.CreateWindowResponse, error) {
	if f.createWindowFn != nil {
		return f.createWindowFn(ctx, req)
	}
	return schema.CreateWindowResponse{}, errors.New("unexpected CreateWindow")
}

func (f *fakeService) CloseWindow(ctx context.Context, req schema.CloseWindowRequest) (schema.CloseWindowResponse, error) {
	if f.closeWindowFn != nil {
		return f.closeWindowFn(ctx, req)
	}
	return schema.CloseWindowResponse{}, errors.New("unexpected CloseWindow")
}

func (f *fakeService) SendPrompt(context.Context, schema.SendPromptRequest) (schema.SendPromptResponse, error) {
	return schema.SendPromptResponse{}, errors.New("unexpected SendPrompt")
}

func (f *fakeService) StopSession(context.Context, schema.StopSessionRequest) (schema.StopSessionResponse, error) {
	return schema.StopSessionResponse{}, errors.New("unexpected StopSession")
}

func (f *fakeService) RenewSession(ctx context.Context, req schema.RenewSessionRequest) (schema.RenewSessionResponse, error) {
	if f.renewSessionFn != nil {
		return f.renewSessionFn(ctx, req)
	}
	return schema.RenewSessionResponse{}, errors.New("unexpected RenewSession")
}

func (f *fakeService) SetEngine(ctx context.Context, req schema.SetEngineRequest) (schema.SetEngineResponse, error) {
	if f.setEngineFn != nil {
		return f.setEngineFn(ctx, req)
	}
	return schema.SetEngineResponse{}, errors.New("unexpected SetEngine")
}

func (f *fakeService) SetModel(ctx context.Context, req schema.SetModelRequest) (schema.SetModelResponse, error) {
	if f.setModelFn != nil {
		return f.setModelFn(ctx, req)
	}
	return schema.SetModelResponse{}, errors.New("unexpected SetModel")
}

func (f *fakeService) SetProject(ctx context.Context, req schema.SetProjectRequest) (schema.SetProjectResponse, error) {
	if f.setProjectFn != nil {
		return f.setProjectFn(ctx, req)
	}
	return schema.SetProjectResponse{}, errors.New("unexpected SetProject")
}

func (f *fakeService) ListProjects(ctx context.Context, req schema.ListProjectsRequest) (schema.ListProjectsResponse, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx, req)
	}
	return schema.ListProjectsResponse{}, errors.New("unexpected ListProjects")
}

func (f *fakeService) CreateProject(ctx context.Context, req schema.CreateProjectRequest) (schema.CreateProjectResponse, error) {
	if f.createProjectFn != nil {
		return f.createProjectFn(ctx, req)
	}
	return schema.CreateProjectResponse{}, errors.New("unexpected CreateProject")
}

func (f *fakeService) SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error) {
	if f.setThemeFn != nil {
		return f.setThemeFn(ctx, req)
	}
	return schema.SetThemeResponse{}, errors.New("unexpected SetTheme")
}

func (f *fakeService) GetBuffer(context.Context, schema.GetBufferRequest) (schema.GetBufferResponse, error) {
	return schema.GetBufferResponse{}, errors.New("unexpected GetBuffer")
}

func (f *fakeService) ScrollBuffer(context.Context, schema.ScrollBufferRequest) (schema.ScrollBufferResponse, error) {
	return schema.ScrollBufferResponse{}, errors.New("unexpected ScrollBuffer")
}

func (f *fakeService) AppendOutput(ctx context.Context, req schema.AppendOutputRequest) (schema.AppendOutputResponse, error) {
	if f.appendOutputFn != nil {
		return f.appendOutputFn(ctx, req)
	}
	return schema.AppendOutputResponse{}, errors.New("unexpected AppendOutput")
}

func (f *fakeService) AppendSystemOutput(ctx context.Context, req schema.AppendSystemOutputRequest) (schema.AppendSystemOutputResponse, error) {
	if f.appendSystemOutputFn != nil {
		return f.appendSystemOutputFn(ctx, req)
	}
	return schema.AppendSystemOutputResponse{}, errors.New("unexpected AppendSystemOutput")
}

func (f *fakeService) GetSystemBuffer(context.Context, schema.GetSystemBufferRequest) (schema.GetSystemBufferResponse, error) {
	return schema.GetSystemBufferResponse{}, errors.New("unexpected GetSystemBuffer")
}

func (f *fakeService) GetHistory(context.Context, schema.GetHistoryRequest) (schema.GetHistoryResponse, error) {
	return schema.GetHistoryResponse{}, errors.New("unexpected GetHistory")
}

func (f *fakeService) AppendHistory(context.Context, schema.AppendHistoryRequest) (schema.AppendHistoryResponse, error) {
	return schema.AppendHistoryResponse{}, errors.New("unexpected AppendHistory")
}

func (f *fakeService) GetTabUsage(ctx context.Context, req schema.GetTabUsageRequest) (schema.GetTabUsageResponse, error) {
	if f.getTabUsageFn != nil {
		return f.getTabUsageFn(ctx, req)
	}
	return schema.GetTabUsageResponse{}, errors.New("unexpected GetTabUsage")
}

type fakeLoginPubKeyStore struct {
	keys         []string
	addedKey     string
	removedIndex int
}

func (s *fakeLoginPubKeyStore) AddLoginPubKey(userID schema.UserID, key string) (int, error) {
	_ = userID
	s.addedKey = key
	s.keys = append(s.keys, key)
	return len(s.keys), nil
}

func (s *fakeLoginPubKeyStore) ListLoginPubKeys(userID schema.UserID) ([]string, error) {
	_ = userID
	return append([]string{}, s.keys...), nil
}

func (s *fakeLoginPubKeyStore) RemoveLoginPubKey(userID schema.UserID, index int) error {
	_ = userID
	s.removedIndex = index
	return nil
}
