package sshserver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	gliderssh "github.com/gliderlabs/ssh"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/internal/eventbus"
	"pkt.systems/chimerax/internal/sessionprefs"
	"pkt.systems/chimerax/schema"
	"pkt.systems/pslog"
)

var spinnerFrames = []rune{'|', '/', '-', '\\'}

var commandSpinnerDelay = 500 * time.Millisecond

type terminalSession struct {
	sess       gliderssh.Session
	service    core.Service
	handler    CommandHandler
	authStore  LoginAuthStore
	userID     schema.UserID
	promptIdle string
	screen     *screen
	ctx        context.Context
	events     <-chan eventbus.Event

	width  int
	height int

	tabs           []schema.TabSnapshot
	activeTab      schema.TabID
	tabWindowStart int
	buffer         schema.BufferSnapshot
	system         schema.SystemBufferSnapshot
	tabState       map[schema.TabID]schema.TabState
	queues         map[schema.TabID][]string
	themeName      schema.ThemeName

	editor         lineEditor
	notice         string
	spinnerIdx     int
	streaming      bool
	commandActive  atomic.Int32
	commandSpinner atomic.Bool
	dirty          bool
	redrawCh       chan struct{}

	history      []string
	historyIndex int
	historyDirty bool
	historyTabID schema.TabID

	chpasswd *chpasswdState
}

func newTerminalSession(sess gliderssh.Session, service core.Service, handler CommandHandler, authStore LoginAuthStore, userID schema.UserID, idlePrompt string, events <-chan eventbus.Event) *terminalSession {
	return &terminalSession{
		sess:         sess,
		service:      service,
		handler:      handler,
		authStore:    authStore,
		userID:       userID,
		promptIdle:   idlePrompt,
		screen:       newScreen(sess),
		events:       events,
		tabState:     make(map[schema.TabID]schema.TabState),
		queues:       make(map[schema.TabID][]string),
		historyIndex: -1,
		redrawCh:     make(chan struct{}, 1),
	}
}

func (t *terminalSession) log() pslog.Logger {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return pslog.Ctx(ctx).With("user", t.userID)
}

func (t *terminalSession) logTab(tabID schema.TabID) pslog.Logger {
	if tabID == "" {
		return t.log()
	}
	return t.log().With("tab", tabID)
}

func (t *terminalSession) SetSize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	t.width = width
	t.height = height
}

func (t *terminalSession) Run(ctx context.Context, winCh <-chan gliderssh.Window) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.ctx = sessionprefs.WithContext(ctx, sessionprefs.New())
	defer t.saveHistoryOnExit()
	t.screen.EnterAltScreen()
	defer t.screen.ExitAltScreen()

	t.refreshState()
	t.render()
	t.log().Info("tui session start", "width", t.width, "height", t.height)

	keys := make(chan key, 16)
	go readKeys(t.sess, keys)

	stateTicker := time.NewTicker(2 * time.Second)
	spinnerTicker := time.NewTicker(250 * time.Millisecond)
	defer stateTicker.Stop()
	defer spinnerTicker.Stop()

	events := t.events

	for {
		select {
		case <-ctx.Done():
			return nil
		case k, ok := <-keys:
			if !ok {
				return nil
			}
			if t.handleKey(k) {
				return nil
			}
		case win, ok := <-winCh:
			if ok {
				t.SetSize(win.Width, win.Height)
				t.refreshBuffer()
				t.dirty = true
				t.log().Debug("tui resize", "width", t.width, "height", t.height)
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			t.handleEvent(ev)
		case <-spinnerTicker.C:
			if t.streaming || t.commandSpinner.Load() {
				t.spinnerIdx = (t.spinnerIdx + 1) % len(spinnerFrames)
				t.dirty = true
			}
		case <-t.redrawCh:
			t.dirty = true
		case <-stateTicker.C:
			t.refreshState()
		}

		if t.dirty {
			t.render()
			t.dirty = false
		}
	}
}

func (t *terminalSession) handleEvent(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.EventOutput:
		if ev.Output.TabID == t.activeTab && t.refreshBuffer() {
			t.dirty = true
		}
	case eventbus.EventSystemOutput:
		if t.activeTab == "" && t.refreshBuffer() {
			t.dirty = true
		}
	case eventbus.EventTab, eventbus.EventWindow:
		t.refreshState()
	}
}

// Motion keys reposition the cursor without touching the buffer; mutation
// keys change it and therefore reset scroll and mark the draft dirty in the
// normal prompt mode. Both tables also serve password entry, which skips the
// scroll and draft bookkeeping.
var editorMotions = map[keyKind]func(*lineEditor){
	keyLeft:  (*lineEditor).MoveLeft,
	keyRight: (*lineEditor).MoveRight,
	keyHome:  (*lineEditor).MoveStart,
	keyCtrlA: (*lineEditor).MoveStart,
	keyEnd:   (*lineEditor).MoveEnd,
	keyCtrlE: (*lineEditor).MoveEnd,
	keyAltB:  (*lineEditor).MoveWordLeft,
	keyAltF:  (*lineEditor).MoveWordRight,
}

var editorMutations = map[keyKind]func(*lineEditor){
	keyBackspace: (*lineEditor).Backspace,
	keyDelete:    (*lineEditor).Delete,
	keyCtrlW:     (*lineEditor).DeleteWordBackward,
	keyCtrlU:     (*lineEditor).KillLineStart,
	keyCtrlK:     (*lineEditor).KillLineEnd,
}

func (t *terminalSession) handleKey(k key) bool {
	if t.chpasswd != nil {
		return t.handleChpasswdKey(k)
	}
	t.dirty = true
	if motion, ok := editorMotions[k.kind]; ok {
		motion(&t.editor)
		return false
	}
	if mutate, ok := editorMutations[k.kind]; ok {
		t.cancelScroll()
		mutate(&t.editor)
		t.historyDirty = true
		return false
	}
	switch k.kind {
	case keyCtrlD:
		if t.editor.Len() == 0 {
			t.log().Info("tui exit", "reason", "ctrl-d")
			_ = t.sess.Exit(0)
			return true
		}
		t.cancelScroll()
		t.editor.Delete()
	case keyCtrlC:
		t.editor.Clear()
		t.historyDirty = true
	case keyEnter:
		return t.handleEnter()
	case keyCtrlJ:
		t.cancelScroll()
		t.editor.InsertRune('\n')
		t.historyDirty = true
	case keyRune:
		t.cancelScroll()
		t.editor.InsertRune(k.r)
		t.historyDirty = true
	case keyTab:
		t.cycleTab(1)
	case keyShiftTab:
		t.cycleTab(-1)
	case keyUp:
		if t.editor.cursor == 0 || t.editor.cursor == t.editor.Len() {
			t.historyUp()
		} else {
			t.editor.MoveUp()
		}
	case keyDown:
		if t.editor.cursor == 0 || t.editor.cursor == t.editor.Len() {
			t.historyDown()
		} else {
			t.editor.MoveDown()
		}
	case keyPageUp:
		t.scroll(1)
	case keyPageDown:
		t.scroll(-1)
	}
	return false
}

func (t *terminalSession) handleEnter() bool {
	raw := t.editor.String()
	t.saveHistoryEntry(raw)
	line := strings.TrimSpace(raw)
	t.editor.Clear()
	t.historyIndex = -1
	t.historyDirty = false
	t.notice = ""
	if line == "" {
		return false
	}

	if !strings.Contains(raw, "\n") {
		if exitCommands[line] {
			t.log().Info("tui exit", "reason", "command", "input", line)
			_ = t.sess.Exit(0)
			return true
		}
		if firstWord(line) == "/chpasswd" {
			t.startChpasswd()
			return false
		}
		if strings.HasPrefix(line, "/") {
			t.runCommand(line)
			return false
		}
	}

	if t.activeTab == "" {
		t.log().Warn("tui prompt rejected", "reason", "no active tab")
		t.notice = "no active tab; use /new <project>"
		return false
	}

	if t.tabState[t.activeTab] == schema.TabStateStreaming {
		t.logTab(t.activeTab).Debug("tui prompt queued", "len", len(raw))
		t.queuePrompt(t.activeTab, raw)
		return false
	}

	if err := t.sendPrompt(t.activeTab, raw); err != nil {
		if errors.Is(err, schema.ErrTabBusy) {
			t.logTab(t.activeTab).Debug("tui prompt queued", "reason", "busy")
			t.queuePrompt(t.activeTab, raw)
			return false
		}
		t.appendError(t.activeTab, err)
	}
	return false
}

var exitCommands = map[string]bool{
	"/exit":   true,
	"/quit":   true,
	"/logout": true,
	"/q":      true,
}

// slowCommands may block on filesystem or window-manager work and therefore
// run off the UI goroutine.
var slowCommands = map[string]bool{
	"/status": true,
	"/new":    true,
	"/detach": true,
}

func firstWord(line string) string {
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func (t *terminalSession) runCommand(line string) {
	t.logTab(t.activeTab).Debug("tui command", "input", line)
	if slowCommands[firstWord(line)] {
		t.runCommandAsync(line)
		return
	}
	if err := t.dispatchCommand(t.activeTab, line); err != nil {
		t.logTab(t.activeTab).Warn("tui command failed", "err", err)
		t.appendError(t.activeTab, err)
	}
	t.refreshState()
}

func (t *terminalSession) runCommandAsync(line string) {
	stopSpinner := t.startCommandSpinner(commandSpinnerDelay)
	tabID := t.activeTab
	t.logTab(tabID).Debug("tui command async start", "input", line)
	go func() {
		defer stopSpinner()
		if err := t.dispatchCommand(tabID, line); err != nil {
			t.logTab(tabID).Warn("tui command async error", "err", err)
			t.appendLines(tabID, fmt.Sprintf("error: %v", err))
		}
	}()
}

func (t *terminalSession) dispatchCommand(tabID schema.TabID, line string) error {
	if t.handler == nil {
		return errors.New("commands unavailable")
	}
	handled, err := t.handler.Handle(t.ctx, t.userID, tabID, line)
	if err != nil {
		return err
	}
	if !handled {
		t.logTab(tabID).Warn("tui command unknown", "input", line)
		return errors.New("unknown command")
	}
	t.logTab(tabID).Trace("tui command handled", "input", line)
	return nil
}

func (t *terminalSession) startCommandSpinner(delay time.Duration) func() {
	t.commandActive.Add(1)
	timer := time.AfterFunc(delay, func() {
		if t.commandActive.Load() > 0 {
			t.commandSpinner.Store(true)
			t.requestRedraw()
		}
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			timer.Stop()
			if t.commandActive.Add(-1) <= 0 {
				t.commandActive.Store(0)
				t.commandSpinner.Store(false)
				t.requestRedraw()
			}
		})
	}
}

func (t *terminalSession) requestRedraw() {
	select {
	case t.redrawCh <- struct{}{}:
	default:
	}
}

type chpasswdStep int

const (
	chpasswdStepCurrent chpasswdStep = iota
	chpasswdStepNew
	chpasswdStepConfirm
	chpasswdStepTOTP
)

var chpasswdPrompts = map[chpasswdStep]string{
	chpasswdStepCurrent: "current password: ",
	chpasswdStepNew:     "new password: ",
	chpasswdStepConfirm: "confirm new password: ",
	chpasswdStepTOTP:    "totp: ",
}

type chpasswdState struct {
	step        chpasswdStep
	current     string
	totp        string
	newPassword string
}

func (c *chpasswdState) prompt() string {
	if c == nil {
		return ""
	}
	if p, ok := chpasswdPrompts[c.step]; ok {
		return p
	}
	return "> "
}

func (t *terminalSession) handleChpasswdKey(k key) bool {
	t.dirty = true
	if motion, ok := editorMotions[k.kind]; ok {
		motion(&t.editor)
		return false
	}
	if mutate, ok := editorMutations[k.kind]; ok {
		mutate(&t.editor)
		return false
	}
	// Any other navigation or control key is ignored during password entry.
	switch k.kind {
	case keyCtrlC:
		t.cancelChpasswd()
	case keyEnter:
		t.submitChpasswdField()
	case keyRune:
		t.editor.InsertRune(k.r)
	}
	return false
}

func (t *terminalSession) startChpasswd() {
	if t.authStore == nil {
		t.appendError(t.activeTab, errors.New("password change unavailable"))
		return
	}
	t.logTab(t.activeTab).Info("tui chpasswd start", "command", "/chpasswd")
	t.chpasswd = &chpasswdState{step: chpasswdStepCurrent}
	t.editor.Clear()
	t.historyDirty = true
	t.notice = ""
	t.requestRedraw()
}

func (t *terminalSession) cancelChpasswd() {
	if t.chpasswd == nil {
		return
	}
	t.logTab(t.activeTab).Info("tui chpasswd cancel", "command", "/chpasswd")
	t.chpasswd = nil
	t.editor.Clear()
	t.appendMessage(t.activeTab, "password change cancelled")
	t.requestRedraw()
}

func (t *terminalSession) resetChpasswd() {
	if t.chpasswd == nil {
		return
	}
	*t.chpasswd = chpasswdState{step: chpasswdStepCurrent}
	t.editor.Clear()
}

func (t *terminalSession) submitChpasswdField() {
	st := t.chpasswd
	if st == nil {
		return
	}
	value := t.editor.String()
	t.editor.Clear()
	switch st.step {
	case chpasswdStepCurrent:
		if strings.TrimSpace(value) == "" {
			t.appendError(t.activeTab, errors.New("current password is required"))
			return
		}
		st.current = value
		st.step = chpasswdStepNew
	case chpasswdStepNew:
		if strings.TrimSpace(value) == "" {
			t.appendError(t.activeTab, errors.New("new password is required"))
			return
		}
		st.newPassword = value
		st.step = chpasswdStepConfirm
	case chpasswdStepConfirm:
		if value != st.newPassword {
			t.appendError(t.activeTab, errors.New("passwords do not match"))
			st.newPassword = ""
			st.step = chpasswdStepNew
			return
		}
		st.step = chpasswdStepTOTP
	case chpasswdStepTOTP:
		if strings.TrimSpace(value) == "" {
			t.appendError(t.activeTab, errors.New("totp is required"))
			return
		}
		t.finishChpasswd(value)
	}
}

func (t *terminalSession) finishChpasswd(totp string) {
	if t.authStore == nil {
		t.appendError(t.activeTab, errors.New("password change unavailable"))
		t.chpasswd = nil
		return
	}
	st := t.chpasswd
	st.totp = totp
	if err := t.authStore.ChangePassword(string(t.userID), st.current, st.totp, st.newPassword); err != nil {
		t.logTab(t.activeTab).Warn("tui chpasswd failed", "err", err)
		t.appendError(t.activeTab, err)
		t.resetChpasswd()
		return
	}
	t.logTab(t.activeTab).Info("tui chpasswd ok", "command", "/chpasswd")
	t.appendMessage(t.activeTab, "password updated")
	t.chpasswd = nil
}

func (t *terminalSession) refreshState() {
	prevTabs := t.tabs
	prevActive := t.activeTab
	prevState := t.tabState
	prevStreaming := t.streaming
	prevTheme := t.themeName
	resp, err := t.service.ListTabs(t.ctx, schema.ListTabsRequest{UserID: t.userID})
	if err != nil {
		t.log().Warn("tui refresh state failed", "err", err)
		return
	}
	t.tabs = resp.Tabs
	t.activeTab = resp.ActiveTab
	t.themeName = resp.Theme
	if t.themeName == "" {
		t.themeName = schema.DefaultTheme
	}
	t.tabState = make(map[schema.TabID]schema.TabState, len(resp.Tabs))
	for _, tab := range resp.Tabs {
		t.tabState[tab.ID] = tab.State
	}
	t.streaming = t.tabState[t.activeTab] == schema.TabStateStreaming
	bufferChanged := t.refreshBuffer()
	if prevActive != t.activeTab || t.historyTabID != t.activeTab {
		t.refreshHistory()
	}
	t.drainQueues()

	changed := bufferChanged ||
		prevActive != t.activeTab ||
		prevStreaming != t.streaming ||
		prevTheme != t.themeName ||
		!slices.Equal(prevTabs, t.tabs) ||
		!maps.Equal(prevState, t.tabState)
	if changed {
		t.logTab(t.activeTab).Trace("tui state updated", "tabs", len(t.tabs), "streaming", t.streaming)
		t.dirty = true
	}
}

// drainQueues sends the oldest queued prompt on every idle tab. One prompt
// per refresh keeps the reported tab state honest between sends.
func (t *terminalSession) drainQueues() {
	for _, tab := range t.tabs {
		if tab.State != schema.TabStateIdle {
			continue
		}
		queue := t.queues[tab.ID]
		if len(queue) == 0 {
			continue
		}
		if err := t.sendPrompt(tab.ID, queue[0]); err != nil {
			if !errors.Is(err, schema.ErrTabBusy) {
				t.appendError(tab.ID, err)
			}
			continue
		}
		t.queues[tab.ID] = queue[1:]
	}
}

func (t *terminalSession) refreshHistory() {
	if t.activeTab == "" {
		t.history = nil
		t.historyIndex = -1
		t.historyDirty = false
		t.historyTabID = ""
		return
	}
	if t.activeTab == t.historyTabID {
		return
	}
	resp, err := t.service.GetHistory(t.ctx, schema.GetHistoryRequest{
		UserID: t.userID,
		TabID:  t.activeTab,
	})
	if err != nil {
		t.logTab(t.activeTab).Warn("tui history refresh failed", "err", err)
		resp.Entries = nil
	}
	t.history = resp.Entries
	t.historyIndex = -1
	t.historyDirty = false
	t.historyTabID = t.activeTab
	if err == nil {
		t.logTab(t.activeTab).Trace("tui history refreshed", "entries", len(t.history))
	}
}

func (t *terminalSession) refreshBuffer() bool {
	if t.activeTab == "" {
		return t.refreshSystemBuffer()
	}
	resp, err := t.service.GetBuffer(t.ctx, schema.GetBufferRequest{
		UserID: t.userID,
		TabID:  t.activeTab,
		Limit:  t.viewHeight(),
	})
	if err != nil {
		t.logTab(t.activeTab).Warn("tui buffer refresh failed", "err", err)
		return false
	}
	changed := !bufferEqual(t.buffer, resp.Buffer)
	t.buffer = resp.Buffer
	return changed
}

func (t *terminalSession) refreshSystemBuffer() bool {
	resp, err := t.service.GetSystemBuffer(t.ctx, schema.GetSystemBufferRequest{
		UserID: t.userID,
		Limit:  t.viewHeight(),
	})
	if err != nil {
		t.log().Warn("tui system buffer failed", "err", err)
		t.system = schema.SystemBufferSnapshot{}
		t.buffer = schema.BufferSnapshot{}
		return true
	}
	changed := !systemBufferEqual(t.system, resp.Buffer)
	t.system = resp.Buffer
	t.buffer = schema.BufferSnapshot{}
	return changed
}

func (t *terminalSession) tabIndex(id schema.TabID) int {
	return slices.IndexFunc(t.tabs, func(tab schema.TabSnapshot) bool {
		return tab.ID == id
	})
}

func (t *terminalSession) cycleTab(step int) {
	n := len(t.tabs)
	if n == 0 || step == 0 {
		return
	}
	var next schema.TabSnapshot
	idx := -1
	if t.activeTab != "" {
		idx = t.tabIndex(t.activeTab)
	}
	if idx < 0 {
		if step < 0 {
			next = t.tabs[n-1]
		} else {
			next = t.tabs[0]
		}
	} else {
		next = t.tabs[((idx+step)%n+n)%n]
	}
	if next.ID == t.activeTab {
		return
	}
	prev := t.activeTab
	_, _ = t.service.ActivateTab(t.ctx, schema.ActivateTabRequest{
		UserID: t.userID,
		TabID:  next.ID,
	})
	t.activeTab = next.ID
	t.refreshState()
	t.logTab(t.activeTab).Debug("tui tab switched", "from", prev, "to", next.ID)
}

func (t *terminalSession) scroll(direction int) {
	if t.activeTab == "" {
		return
	}
	limit := t.viewHeight()
	if limit <= 0 {
		return
	}
	delta := limit * direction
	if !t.scrollBy(delta, limit, "tui scroll failed") {
		return
	}
	t.logTab(t.activeTab).Trace("tui scroll", "delta", delta, "limit", limit)
}

func (t *terminalSession) cancelScroll() {
	if t.activeTab == "" || t.buffer.AtBottom {
		return
	}
	offset := t.buffer.ScrollOffset
	if offset == 0 {
		return
	}
	if !t.scrollBy(-offset, t.viewHeight(), "tui scroll reset failed") {
		return
	}
	t.logTab(t.activeTab).Trace("tui scroll reset")
}

func (t *terminalSession) scrollBy(delta, limit int, failMsg string) bool {
	_, err := t.service.ScrollBuffer(t.ctx, schema.ScrollBufferRequest{
		UserID: t.userID,
		TabID:  t.activeTab,
		Delta:  delta,
		Limit:  limit,
	})
	if err != nil {
		t.logTab(t.activeTab).Warn(failMsg, "err", err)
		return false
	}
	t.refreshBuffer()
	return true
}

func (t *terminalSession) historyUp() {
	if t.activeTab == "" {
		return
	}
	appended := t.saveHistoryDraft()
	if len(t.history) == 0 {
		return
	}
	idx := t.historyIndex
	switch {
	case idx == -1:
		idx = len(t.history) - 1
		if appended && len(t.history) > 1 {
			idx--
		}
	case idx > 0:
		idx--
	}
	t.recallHistory(idx)
	t.logTab(t.activeTab).Trace("tui history up", "index", t.historyIndex)
}

func (t *terminalSession) historyDown() {
	if t.activeTab == "" || len(t.history) == 0 {
		return
	}
	t.saveHistoryDraft()
	if t.historyIndex == -1 {
		return
	}
	idx := t.historyIndex
	if idx < len(t.history)-1 {
		idx++
	}
	t.recallHistory(idx)
	t.logTab(t.activeTab).Trace("tui history down", "index", t.historyIndex)
}

func (t *terminalSession) recallHistory(idx int) {
	if idx < 0 || idx >= len(t.history) {
		return
	}
	t.historyIndex = idx
	t.editor.SetString(t.history[idx])
	t.historyDirty = false
}

// saveHistoryDraft persists the current editor content before history
// navigation replaces it. Reports whether a new entry was appended.
func (t *terminalSession) saveHistoryDraft() bool {
	if t.activeTab == "" {
		return false
	}
	if t.historyIndex != -1 && !t.historyDirty {
		return false
	}
	entry := t.editor.String()
	if strings.TrimSpace(entry) == "" {
		return false
	}
	appended := len(t.history) == 0 || t.history[len(t.history)-1] != entry
	if !t.pushHistory(entry) {
		return false
	}
	t.historyDirty = false
	return appended
}

func (t *terminalSession) saveHistoryEntry(entry string) {
	if t.activeTab == "" || strings.TrimSpace(entry) == "" {
		return
	}
	t.pushHistory(entry)
}

func (t *terminalSession) pushHistory(entry string) bool {
	resp, err := t.service.AppendHistory(t.ctx, schema.AppendHistoryRequest{
		UserID: t.userID,
		TabID:  t.activeTab,
		Entry:  entry,
	})
	if err != nil {
		t.logTab(t.activeTab).Warn("tui history save failed", "err", err)
		return false
	}
	t.history = resp.Entries
	t.historyTabID = t.activeTab
	t.logTab(t.activeTab).Trace("tui history saved", "entries", len(t.history))
	return true
}

func (t *terminalSession) saveHistoryOnExit() {
	if t.chpasswd != nil || t.editor.Len() == 0 {
		return
	}
	t.saveHistoryEntry(t.editor.String())
	t.logTab(t.activeTab).Debug("tui history flushed on exit")
}

func (t *terminalSession) queuePrompt(tabID schema.TabID, prompt string) {
	t.queues[tabID] = append(t.queues[tabID], prompt)
	display := strings.ReplaceAll(prompt, "\n", "\\n")
	t.appendLines(tabID, fmt.Sprintf("queued prompt: %s", display))
	t.logTab(tabID).Debug("tui prompt queued", "queue_len", len(t.queues[tabID]))
}

func (t *terminalSession) sendPrompt(tabID schema.TabID, prompt string) error {
	t.logTab(tabID).Debug("tui prompt send", "len", len(prompt))
	_, err := t.service.SendPrompt(t.ctx, schema.SendPromptRequest{
		UserID: t.userID,
		TabID:  tabID,
		Prompt: prompt,
	})
	if err != nil {
		t.logTab(tabID).Warn("tui prompt send failed", "err", err)
	}
	return err
}

// appendLines writes to the tab buffer, or to the system buffer when no tab
// is given.
func (t *terminalSession) appendLines(tabID schema.TabID, lines ...string) {
	if tabID == "" {
		_, _ = t.service.AppendSystemOutput(t.ctx, schema.AppendSystemOutputRequest{
			UserID: t.userID,
			Lines:  lines,
		})
		return
	}
	_, _ = t.service.AppendOutput(t.ctx, schema.AppendOutputRequest{
		UserID: t.userID,
		TabID:  tabID,
		Lines:  lines,
	})
}

func (t *terminalSession) appendError(tabID schema.TabID, err error) {
	if tabID == "" {
		t.notice = fmt.Sprintf("error: %v", err)
		return
	}
	t.appendLines(tabID, fmt.Sprintf("error: %v", err))
}

func (t *terminalSession) appendMessage(tabID schema.TabID, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	t.appendLines(tabID, message)
}

func (t *terminalSession) viewHeight() int {
	if t.height <= 1 {
		return 0
	}
	width := t.width
	if width <= 0 {
		width = 80
	}
	prefix, input := t.inputDisplay()
	inputLines, _, _ := renderInputLines(prefix, input, t.editor.cursor, width)
	return max(t.height-1-max(len(inputLines), 1), 0)
}

func (t *terminalSession) render() {
	width := t.width
	height := t.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	theme := themeForName(t.themeName)
	lines := make([]string, 0, height)
	tabLine, windowStart := renderTabBar(t.tabs, t.activeTab, width, theme, t.tabWindowStart)
	t.tabWindowStart = windowStart
	lines = append(lines, tabLine)

	prefix, input := t.inputDisplay()
	inputLines, cursorRow, cursorCol := renderInputLines(stylePromptPrefix(prefix, theme), input, t.editor.cursor, width)
	outputHeight := max(height-1-len(inputLines), 0)

	viewLines, atBottom := t.viewportContent()
	lines = append(lines, renderViewport(viewLines, width, outputHeight, theme, atBottom)...)

	lines = append(lines, inputLines...)
	cursorRow = len(lines) - len(inputLines) + cursorRow
	if err := t.screen.Render(lines, cursorRow, cursorCol); err != nil {
		t.log().Warn("tui render failed", "err", err)
	}
}

func (t *terminalSession) viewportContent() ([]string, bool) {
	if t.activeTab != "" {
		return t.buffer.Lines, t.buffer.AtBottom
	}
	switch {
	case t.notice != "":
		return []string{t.notice}, t.system.AtBottom
	case len(t.system.Lines) > 0:
		return t.system.Lines, t.system.AtBottom
	default:
		return []string{"no active tab; use /new <project>"}, t.system.AtBottom
	}
}

func (t *terminalSession) inputDisplay() (string, string) {
	if t.chpasswd != nil {
		return t.chpasswd.prompt(), maskInput(t.editor.String())
	}
	return t.promptPrefix(), t.editor.String()
}

func (t *terminalSession) promptPrefix() string {
	if (t.streaming || t.commandSpinner.Load()) && len(spinnerFrames) > 0 {
		return fmt.Sprintf("%c ", spinnerFrames[t.spinnerIdx])
	}
	if t.promptIdle == "" {
		return "> "
	}
	return t.promptIdle
}

func renderViewport(viewLines []string, width, height int, theme tuiTheme, atBottom bool) []string {
	if height <= 0 {
		return nil
	}
	var rows []string
	for _, raw := range viewLines {
		rows = append(rows, renderLines(raw, width, theme)...)
		if !atBottom && len(rows) >= height {
			break
		}
	}
	// At the bottom the tail wins; while scrolled back the head wins.
	if len(rows) > height {
		if atBottom {
			rows = rows[len(rows)-height:]
		} else {
			rows = rows[:height]
		}
	}
	for len(rows) < height {
		rows = append(rows, "")
	}
	return rows
}

func stylePromptPrefix(prefix string, theme tuiTheme) string {
	if strings.HasPrefix(prefix, ">") {
		return ansiBold + ansiFgRGB(theme.PromptFG) + ">" + ansiReset + strings.TrimPrefix(prefix, ">")
	}
	if spinner := spinnerPrefix(prefix); spinner != "" {
		return ansiFgRGB(theme.SpinnerFG) + spinner + ansiReset + strings.TrimPrefix(prefix, spinner)
	}
	return prefix
}

func spinnerPrefix(prefix string) string {
	first, size := utf8.DecodeRuneInString(prefix)
	if size == 0 {
		return ""
	}
	if slices.Contains(spinnerFrames, first) {
		return string(first)
	}
	return ""
}

func maskInput(value string) string {
	return strings.Repeat("*", utf8.RuneCountInString(value))
}

// renderInputLines lays out the prompt prefix and input across terminal
// rows, indenting wrapped and continuation rows to the prefix width. Returns
// the rows plus the 1-based cursor row and column.
func renderInputLines(prefix, input string, cursor, width int) ([]string, int, int) {
	runes := []rune(input)
	cursor = min(max(cursor, 0), len(runes))
	prefixWidth := visibleWidth(prefix)
	if width <= 0 {
		width = prefixWidth + len(runes) + 1
	}
	if prefixWidth > width {
		prefix = trimANSIToWidth(prefix, width)
		prefixWidth = visibleWidth(prefix)
	}
	indent := strings.Repeat(" ", prefixWidth)
	avail := max(width-prefixWidth, 1)

	var (
		lines     []string
		row       []rune
		cursorRow = 1
		cursorCol = prefixWidth + 1
		cursorSet bool
	)
	flush := func() {
		head := prefix
		if len(lines) > 0 {
			head = indent
		}
		lines = append(lines, head+string(row))
		row = row[:0]
	}
	markCursor := func() {
		cursorRow = len(lines) + 1
		cursorCol = prefixWidth + len(row) + 1
		cursorSet = true
	}

	for i, r := range runes {
		if !cursorSet && i == cursor {
			markCursor()
		}
		if r == '\n' {
			flush()
			continue
		}
		if len(row) >= avail {
			flush()
		}
		row = append(row, r)
	}
	if !cursorSet {
		markCursor()
	}
	flush()
	return lines, cursorRow, min(max(cursorCol, 1), width)
}

func trimToWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width])
}

func truncateName(name string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	if max == 1 {
		return "$"
	}
	return string(append(runes[:max-1], '$'))
}

func bufferEqual(a, b schema.BufferSnapshot) bool {
	return a.TabID == b.TabID &&
		a.TotalLines == b.TotalLines &&
		a.ScrollOffset == b.ScrollOffset &&
		a.AtBottom == b.AtBottom &&
		slices.Equal(a.Lines, b.Lines)
}

func systemBufferEqual(a, b schema.SystemBufferSnapshot) bool {
	return a.TotalLines == b.TotalLines &&
		a.ScrollOffset == b.ScrollOffset &&
		a.AtBottom == b.AtBottom &&
		slices.Equal(a.Lines, b.Lines)
}
