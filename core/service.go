package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"pkt.systems/chimerax/internal/format"
	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/internal/persist"
	"pkt.systems/chimerax/internal/sessionprefs"
	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg      schema.ServiceConfig
	runners  RunnerProvider
	projects ProjectResolver
	windows  WindowManager
	renderer Renderer
	sink     EventSink
	store    *persist.Store
	logger   pslog.Logger
	mu       sync.Mutex
	users    map[schema.UserID]*userState
}

var stopSleep = time.Sleep

// userState holds per-user workspace state. The active pointer is owned here;
// transports never track their own copy.
type userState struct {
	tabs    map[schema.TabID]*tab
	order   []schema.TabID
	active  schema.TabID
	windows []schema.WindowSnapshot
	system  *buffer
	theme   schema.ThemeName
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if err := os.MkdirAll(cfg.ProjectRoot, 0o755); err != nil {
		return nil, err
	}
	if deps.Renderer == nil {
		deps.Renderer = format.NewPlainRenderer()
	}
	if deps.ProjectResolver == nil {
		resolver, err := NewProjectResolver(cfg.ProjectRoot)
		if err != nil {
			return nil, err
		}
		deps.ProjectResolver = resolver
	}
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:      cfg,
		runners:  deps.RunnerProvider,
		projects: deps.ProjectResolver,
		windows:  deps.WindowManager,
		renderer: deps.Renderer,
		sink:     deps.EventSink,
		store:    store,
		logger:   logger,
		users:    make(map[schema.UserID]*userState),
	}, nil
}

func (s *service) getOrCreateUserStateLocked(userID schema.UserID) *userState {
	entry := s.users[userID]
	if entry == nil {
		entry = s.loadUserStateLocked(userID)
		s.users[userID] = entry
	}
	if entry.system == nil {
		entry.system = newBufferWithMaxLines(s.cfg.BufferMaxLines)
	}
	if entry.theme == "" {
		entry.theme = s.cfg.DefaultTheme
	}
	return entry
}

func (s *service) loadUserStateLocked(userID schema.UserID) *userState {
	empty := func() *userState {
		return &userState{
			tabs:   make(map[schema.TabID]*tab),
			system: newBufferWithMaxLines(s.cfg.BufferMaxLines),
			theme:  s.cfg.DefaultTheme,
		}
	}
	if s.store == nil {
		return empty()
	}
	log := s.logger
	if log != nil {
		log = log.With("user", userID)
	}
	snapshot, ok, err := s.store.Load(userID)
	if err != nil || !ok {
		if err != nil {
			log.Warn("service state load failed", "err", err)
		} else {
			log.Debug("service state missing")
		}
		return empty()
	}
	log.Debug("service state loaded", "tabs", len(snapshot.Tabs), "windows", len(snapshot.Windows))
	loaded := &userState{
		tabs:   make(map[schema.TabID]*tab),
		order:  make([]schema.TabID, 0, len(snapshot.Order)),
		system: newBufferFromPersistedWithMaxLines(persistedBuffer{Lines: snapshot.System.Lines, ScrollOffset: snapshot.System.ScrollOffset}, s.cfg.BufferMaxLines),
		theme:  snapshot.Theme,
	}
	for _, snap := range snapshot.Tabs {
		loaded.tabs[snap.ID] = &tab{
			ID:        snap.ID,
			Title:     snap.Title,
			Project:   snap.Project,
			Engine:    snap.Engine,
			Model:     snap.Model,
			SessionID: snap.SessionID,
			State:     schema.TabStateIdle,
			buffer:    newBufferFromPersistedWithMaxLines(persistedBuffer{Lines: snap.Buffer.Lines, ScrollOffset: snap.Buffer.ScrollOffset}, s.cfg.BufferMaxLines),
			history:   newHistoryFromPersisted(snap.History),
		}
	}
	for _, id := range snapshot.Order {
		if _, ok := loaded.tabs[id]; ok {
			loaded.order = append(loaded.order, id)
		}
	}
	if len(loaded.order) == 0 {
		for _, snap := range snapshot.Tabs {
			loaded.order = append(loaded.order, snap.ID)
		}
	}
	for _, win := range snapshot.Windows {
		loaded.windows = append(loaded.windows, schema.WindowSnapshot{
			Label:     win.Label,
			Title:     win.Title,
			Project:   win.Project,
			Engine:    win.Engine,
			SessionID: win.SessionID,
		})
	}
	if _, ok := loaded.tabs[snapshot.Active]; ok {
		loaded.active = snapshot.Active
	} else if len(loaded.order) > 0 {
		loaded.active = loaded.order[0]
	}
	if loaded.theme == "" {
		loaded.theme = s.cfg.DefaultTheme
	}
	return loaded
}

func (s *service) persistUser(log pslog.Logger, userID schema.UserID) {
	if s.store == nil {
		return
	}
	snapshot, ok := s.snapshotUser(userID)
	if !ok {
		if log != nil {
			log.Debug("service persist skipped", "reason", "missing state")
		}
		return
	}
	if err := s.store.Save(userID, snapshot); err != nil {
		if log != nil {
			log.Warn("service persist failed", "err", err)
		}
		return
	}
	if log != nil {
		log.Trace("service state persisted", "tabs", len(snapshot.Tabs))
	}
}

func (s *service) snapshotUser(userID schema.UserID) (persist.UserSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.users[userID]
	if state == nil {
		return persist.UserSnapshot{}, false
	}
	tabs := make([]persist.TabSnapshot, 0, len(state.tabs))
	for _, id := range state.order {
		tab := state.tabs[id]
		if tab == nil {
			continue
		}
		buffer := persistedBuffer{}
		if tab.buffer != nil {
			buffer = tab.buffer.Export()
		}
		history := []string(nil)
		if tab.history != nil {
			history = tab.history.Entries()
		}
		tabs = append(tabs, persist.TabSnapshot{
			ID:        tab.ID,
			Title:     tab.Title,
			Project:   tab.Project,
			Engine:    tab.Engine,
			Model:     tab.Model,
			SessionID: tab.SessionID,
			Buffer: persist.BufferSnapshot{
				Lines:        buffer.Lines,
				ScrollOffset: buffer.ScrollOffset,
			},
			History: history,
		})
	}
	order := append([]schema.TabID(nil), state.order...)
	windows := make([]persist.WindowSnapshot, 0, len(state.windows))
	for _, win := range state.windows {
		windows = append(windows, persist.WindowSnapshot{
			Label:     win.Label,
			Title:     win.Title,
			Project:   win.Project,
			Engine:    win.Engine,
			SessionID: win.SessionID,
		})
	}
	system := persistedBuffer{}
	if state.system != nil {
		system = state.system.Export()
	}
	return persist.UserSnapshot{
		Order:   order,
		Active:  state.active,
		Tabs:    tabs,
		Windows: windows,
		System: persist.BufferSnapshot{
			Lines:        system.Lines,
			ScrollOffset: system.ScrollOffset,
		},
		Theme: state.theme,
	}, true
}

// tabSnapshotLocked builds a snapshot with order and active flags filled in.
func tabSnapshotLocked(state *userState, t *tab) schema.TabSnapshot {
	return t.Snapshot(orderIndex(state.order, t.ID), state.active == t.ID)
}

func tabSnapshotsLocked(state *userState) []schema.TabSnapshot {
	tabs := make([]schema.TabSnapshot, 0, len(state.order))
	for _, id := range state.order {
		tab := state.tabs[id]
		if tab == nil {
			continue
		}
		tabs = append(tabs, tabSnapshotLocked(state, tab))
	}
	return tabs
}

func orderIndex(order []schema.TabID, id schema.TabID) int {
	for i, current := range order {
		if current == id {
			return i
		}
	}
	return -1
}

// nextActiveID applies the re-activation rule after a removal: the tab now at
// the removed tab's former position, else the new last tab, else none.
func nextActiveID(order []schema.TabID, removedIdx int) schema.TabID {
	if len(order) == 0 {
		return ""
	}
	if removedIdx >= 0 && removedIdx < len(order) {
		return order[removedIdx]
	}
	return order[len(order)-1]
}

func removeTabID(order []schema.TabID, id schema.TabID) []schema.TabID {
	for i, current := range order {
		if current == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

func (s *service) setSessionID(userID schema.UserID, tabID schema.TabID, sessionID schema.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.users[userID]
	if state == nil {
		return false
	}
	tab := state.tabs[tabID]
	if tab == nil {
		return false
	}
	if tab.SessionID == "" {
		tab.SessionID = sessionID
		return true
	}
	return false
}

func (s *service) appendLine(log pslog.Logger, userID schema.UserID, tabID schema.TabID, line string) {
	s.appendLines(log, userID, tabID, []string{line})
}

func (s *service) appendLines(log pslog.Logger, userID schema.UserID, tabID schema.TabID, lines []string) {
	s.mu.Lock()
	state := s.users[userID]
	if state == nil {
		s.mu.Unlock()
		return
	}
	tab := state.tabs[tabID]
	if tab == nil || tab.buffer == nil {
		s.mu.Unlock()
		return
	}
	tab.buffer.Append(lines...)
	s.mu.Unlock()
	s.emitOutput(userID, tabID, lines)
	s.persistUser(log, userID)
	if log != nil {
		log.Trace("service output appended", "lines", len(lines))
	}
}

func (s *service) appendSystemLines(log pslog.Logger, userID schema.UserID, lines []string) {
	if len(lines) == 0 {
		return
	}
	s.mu.Lock()
	state := s.users[userID]
	if state == nil || state.system == nil {
		s.mu.Unlock()
		return
	}
	state.system.Append(lines...)
	s.mu.Unlock()
	s.emitSystemOutput(userID, lines)
	s.persistUser(log, userID)
	if log != nil {
		log.Trace("service system output appended", "lines", len(lines))
	}
}

func (s *service) appendUserLine(log pslog.Logger, userID schema.UserID, tabID schema.TabID, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if tabID == "" {
		s.appendSystemLines(log, userID, []string{line})
		return
	}
	s.appendLines(log, userID, tabID, []string{line})
}

func (s *service) emitOutput(userID schema.UserID, tabID schema.TabID, lines []string) {
	if s.sink == nil || len(lines) == 0 {
		return
	}
	s.sink.OnOutput(schema.OutputEvent{
		UserID: userID,
		TabID:  tabID,
		Lines:  append([]string(nil), lines...),
	})
}

func (s *service) emitSystemOutput(userID schema.UserID, lines []string) {
	if s.sink == nil || len(lines) == 0 {
		return
	}
	s.sink.OnSystemOutput(schema.SystemOutputEvent{
		UserID: userID,
		Lines:  append([]string(nil), lines...),
	})
}

func (s *service) emitTabEvent(event schema.TabEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnTabEvent(event)
}

func (s *service) emitWindowEvent(event schema.WindowEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnWindowEvent(event)
}

func detachRunContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.Background()
	if ctx != nil {
		if logger := pslog.Ctx(ctx); logger != nil {
			base = logx.CopyContextFields(pslog.ContextWithLogger(base, logger), ctx)
		}
		if prefs := sessionprefs.FromContext(ctx); prefs != nil {
			copyPrefs := *prefs
			base = sessionprefs.WithContext(base, &copyPrefs)
		}
	}
	return context.WithCancel(base)
}

func normalizeUserID(userID schema.UserID) (schema.UserID, error) {
	if err := schema.ValidateUserID(userID); err != nil {
		return "", schema.ErrInvalidUser
	}
	return userID, nil
}

func formatTabTitle(title string, max int, suffix string) string {
	if max <= 0 {
		return title
	}
	if len(title) <= max {
		return title
	}
	cut := max - len(suffix)
	if cut < 1 {
		return title[:max]
	}
	return title[:cut] + suffix
}

func mapBufferSnapshot(tabID schema.TabID, view bufferView) schema.BufferSnapshot {
	return schema.BufferSnapshot{
		TabID:        tabID,
		Lines:        view.Lines,
		TotalLines:   view.TotalLines,
		ScrollOffset: view.ScrollOffset,
		AtBottom:     view.AtBottom,
	}
}

func (s *service) appendErrorLine(log pslog.Logger, userID schema.UserID, tabID schema.TabID, engine schema.EngineID, err error) {
	if err == nil {
		return
	}
	var runnerErr *RunnerError
	if errors.As(err, &runnerErr) {
		line, hints := runnerErrorLines(engine, runnerErr)
		s.appendUserLine(log, userID, tabID, line)
		for _, hint := range hints {
			s.appendUserLine(log, userID, tabID, hint)
		}
		return
	}
	s.appendUserLine(log, userID, tabID, fmt.Sprintf("error: %v", err))
}

func runnerErrorLines(engine schema.EngineID, err *RunnerError) (string, []string) {
	if err == nil {
		return "error: engine failed", nil
	}
	name := string(engine)
	if name == "" {
		name = "engine"
	}
	switch err.Kind {
	case RunnerErrorNotInstalled:
		return fmt.Sprintf("error: %s CLI not found", name), []string{
			fmt.Sprintf("hint: install the %s CLI and ensure it is on PATH", name),
		}
	case RunnerErrorUnauthorized:
		return fmt.Sprintf("error: %s authentication failed", name), []string{
			loginHint(engine),
		}
	case RunnerErrorPermissionDenied:
		return fmt.Sprintf("error: %s permission denied", name), []string{
			"hint: check file permissions in the project directory",
		}
	case RunnerErrorTimeout:
		return fmt.Sprintf("error: %s timed out", name), []string{
			"hint: retry or check network connectivity",
		}
	case RunnerErrorCanceled:
		return fmt.Sprintf("error: %s canceled", name), nil
	case RunnerErrorExec:
		return fmt.Sprintf("error: %s exec failed", name), nil
	default:
		return fmt.Sprintf("error: %v", err), nil
	}
}

func loginHint(engine schema.EngineID) string {
	switch engine {
	case schema.EngineClaude:
		return "hint: run `claude /login` to refresh credentials"
	case schema.EngineCodex:
		return "hint: run `codex login` to refresh credentials"
	case schema.EngineGemini:
		return "hint: run `gemini` and complete the auth flow"
	default:
		return "hint: re-authenticate the engine CLI"
	}
}
