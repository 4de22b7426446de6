package core

import (
	"context"
	"path/filepath"
	"testing"

	"pkt.systems/chimerax/internal/persist"
	"pkt.systems/chimerax/schema"
)

func TestStateRestoresOrderActiveAndWindows(t *testing.T) {
	projectRoot := t.TempDir()
	stateDir := t.TempDir()
	manager := newFakeWindowManager()
	svc, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
		WindowManager:   manager,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := schema.UserID("alice")
	ids := createTabs(t, svc, user, projectRoot, 3)

	if _, err := svc.ActivateTab(context.Background(), schema.ActivateTabRequest{UserID: user, TabID: ids[1]}); err != nil {
		t.Fatalf("activate tab: %v", err)
	}
	if _, err := svc.UpdateStreaming(context.Background(), schema.UpdateStreamingRequest{
		UserID:    user,
		TabID:     ids[0],
		Streaming: true,
		SessionID: "sess-a",
	}); err != nil {
		t.Fatalf("update streaming: %v", err)
	}
	detached, err := svc.DetachTab(context.Background(), schema.DetachTabRequest{UserID: user, TabID: ids[2]})
	if err != nil {
		t.Fatalf("detach tab: %v", err)
	}

	svc2, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
		WindowManager:   manager,
	})
	if err != nil {
		t.Fatalf("new service reload: %v", err)
	}
	list, err := svc2.ListTabs(context.Background(), schema.ListTabsRequest{UserID: user})
	if err != nil {
		t.Fatalf("list tabs reload: %v", err)
	}
	if len(list.Tabs) != 2 || list.Tabs[0].ID != ids[0] || list.Tabs[1].ID != ids[1] {
		t.Fatalf("unexpected tabs after reload: %+v", list.Tabs)
	}
	if list.ActiveTab != ids[1] {
		t.Fatalf("expected active tab %q after reload, got %q", ids[1], list.ActiveTab)
	}
	// Live handles never persist; restored tabs always come back idle.
	if list.Tabs[0].State != schema.TabStateIdle {
		t.Fatalf("expected idle tab after reload, got %q", list.Tabs[0].State)
	}
	if list.Tabs[0].SessionID != "sess-a" {
		t.Fatalf("expected session restored, got %q", list.Tabs[0].SessionID)
	}
	if len(list.Windows) != 1 || list.Windows[0].Label != detached.Window {
		t.Fatalf("expected window restored, got %+v", list.Windows)
	}
}

func TestStateRestoresBufferAndScroll(t *testing.T) {
	projectRoot := t.TempDir()
	stateDir := t.TempDir()
	svc, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := schema.UserID("alice")
	tabResp, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{
		UserID:      user,
		ProjectPath: filepath.Join(projectRoot, "demo"),
	})
	if err != nil {
		t.Fatalf("create tab: %v", err)
	}
	if _, err := svc.AppendSystemOutput(context.Background(), schema.AppendSystemOutputRequest{
		UserID: user,
		Lines:  []string{"welcome"},
	}); err != nil {
		t.Fatalf("append system output: %v", err)
	}
	if _, err := svc.StopSession(context.Background(), schema.StopSessionRequest{UserID: user, TabID: tabResp.Tab.ID}); err != nil {
		t.Fatalf("stop session: %v", err)
	}

	svc2, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
	})
	if err != nil {
		t.Fatalf("new service reload: %v", err)
	}
	buf, err := svc2.GetBuffer(context.Background(), schema.GetBufferRequest{UserID: user, TabID: tabResp.Tab.ID})
	if err != nil {
		t.Fatalf("get buffer reload: %v", err)
	}
	if !containsLine(buf.Buffer.Lines, "no running process") {
		t.Fatalf("expected buffer restored, got %v", buf.Buffer.Lines)
	}
	system, err := svc2.GetSystemBuffer(context.Background(), schema.GetSystemBufferRequest{UserID: user})
	if err != nil {
		t.Fatalf("get system buffer reload: %v", err)
	}
	if !containsLine(system.Buffer.Lines, "welcome") {
		t.Fatalf("expected system buffer restored, got %v", system.Buffer.Lines)
	}
}

func TestPersistedSnapshotOmitsRuntimeState(t *testing.T) {
	projectRoot := t.TempDir()
	stateDir := t.TempDir()
	svc, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := schema.UserID("alice")
	if _, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{
		UserID:      user,
		ProjectPath: filepath.Join(projectRoot, "demo"),
	}); err != nil {
		t.Fatalf("create tab: %v", err)
	}

	store, err := persist.NewStore(stateDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	snapshot, ok, err := store.Load(user)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok || len(snapshot.Tabs) == 0 {
		t.Fatalf("expected persisted tab snapshot")
	}
	if snapshot.Tabs[0].Project.Name != "demo" {
		t.Fatalf("expected project name persisted, got %q", snapshot.Tabs[0].Project.Name)
	}
	if snapshot.Active != snapshot.Tabs[0].ID {
		t.Fatalf("expected active pointer persisted, got %q", snapshot.Active)
	}
}

func TestHistoryPersistsAndDedupes(t *testing.T) {
	projectRoot := t.TempDir()
	stateDir := t.TempDir()
	svc, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := schema.UserID("alice")
	tabResp, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{
		UserID:      user,
		ProjectPath: filepath.Join(projectRoot, "demo"),
	})
	if err != nil {
		t.Fatalf("create tab: %v", err)
	}
	tabID := tabResp.Tab.ID

	for _, entry := range []string{"first", "first", "second"} {
		if _, err := svc.AppendHistory(context.Background(), schema.AppendHistoryRequest{
			UserID: user,
			TabID:  tabID,
			Entry:  entry,
		}); err != nil {
			t.Fatalf("append history %q: %v", entry, err)
		}
	}
	hist, err := svc.GetHistory(context.Background(), schema.GetHistoryRequest{UserID: user, TabID: tabID})
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(hist.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(hist.Entries))
	}

	svc2, err := NewService(schema.ServiceConfig{ProjectRoot: projectRoot, StateDir: stateDir}, ServiceDeps{
		RunnerProvider:  fakeRunnerProvider{},
		ProjectResolver: fakeProjectResolver{},
	})
	if err != nil {
		t.Fatalf("new service reload: %v", err)
	}
	hist2, err := svc2.GetHistory(context.Background(), schema.GetHistoryRequest{UserID: user, TabID: tabID})
	if err != nil {
		t.Fatalf("get history reload: %v", err)
	}
	if len(hist2.Entries) != 2 || hist2.Entries[0] != "first" || hist2.Entries[1] != "second" {
		t.Fatalf("unexpected history after reload: %v", hist2.Entries)
	}
}
