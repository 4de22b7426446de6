package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/internal/logx"
	"pkt.systems/chimerax/internal/sessionprefs"
	"pkt.systems/chimerax/internal/version"
	"pkt.systems/chimerax/schema"
)

// HandlerConfig configures slash command behavior.
type HandlerConfig struct {
	AllowedModels       []schema.ModelID
	LoginPubKeyStore    LoginPubKeyStore
	DisableAuditLogging bool
}

// LoginPubKeyStore manages SSH login public keys per user.
type LoginPubKeyStore interface {
	AddLoginPubKey(userID schema.UserID, pubKey string) (int, error)
	ListLoginPubKeys(userID schema.UserID) ([]string, error)
	RemoveLoginPubKey(userID schema.UserID, index int) error
}

// Handler routes slash commands to service operations.
type Handler struct {
	service core.Service
	cfg     HandlerConfig
}

// NewHandler constructs a command handler.
func NewHandler(service core.Service, cfg HandlerConfig) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
	}
}

// Handle inspects input and executes slash commands.
func (h *Handler) Handle(ctx context.Context, userID schema.UserID, tabID schema.TabID, input string) (bool, error) {
	if ctx == nil {
		return false, errors.New("missing context")
	}
	baseLog := logx.WithUserTab(ctx, userID, tabID)
	ctx = logx.ContextWithUserTabLogger(ctx, baseLog, userID, tabID)
	log := baseLog.With("input_len", len(input))
	cmd, ok := Parse(input)
	if !ok {
		return false, nil
	}
	if !h.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "slash", "command", strings.TrimSpace(input))
	}
	log = log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command slash request")
	switch cmd.Name {
	case "":
		log.Warn("command slash rejected", "reason", "empty")
		return true, fmt.Errorf("invalid command")
	case "new":
		return true, h.handleNew(ctx, userID, tabID, cmd)
	case "projects":
		return true, h.handleListProjects(ctx, userID, tabID)
	case "project":
		return true, h.handleProject(ctx, userID, tabID, cmd)
	case "tabs":
		return true, h.handleTabs(ctx, userID, tabID)
	case "move":
		return true, h.handleMove(ctx, userID, tabID, cmd)
	case "rm":
		return true, h.handleRemove(ctx, userID, tabID, cmd)
	case "close":
		return true, h.handleClose(ctx, userID, tabID, cmd)
	case "detach":
		return true, h.handleDetach(ctx, userID, tabID, cmd)
	case "window":
		return true, h.handleWindow(ctx, userID, tabID, cmd)
	case "engine":
		return true, h.handleEngine(ctx, userID, tabID, cmd)
	case "model":
		return true, h.handleModel(ctx, userID, tabID, cmd)
	case "stop", "z":
		return true, h.handleStop(ctx, userID, tabID)
	case "renew":
		return true, h.handleRenew(ctx, userID, tabID)
	case "addloginpubkey":
		return true, h.handleAddLoginPubKey(ctx, userID, tabID, cmd)
	case "listloginpubkeys":
		return true, h.handleListLoginPubKeys(ctx, userID, tabID)
	case "rmloginpubkey":
		return true, h.handleRemoveLoginPubKey(ctx, userID, tabID, cmd)
	case "theme":
		return true, h.handleTheme(ctx, userID, tabID, cmd)
	case "togglefullcommandoutput":
		return true, h.handleToggleFullCommandOutput(ctx, userID, tabID)
	case "status":
		return true, h.handleStatus(ctx, userID, tabID)
	case "help":
		return true, h.handleHelp(ctx, userID, tabID)
	case "version":
		return true, h.handleVersion(ctx, userID, tabID)
	default:
		log.Warn("command slash rejected", "reason", "unknown")
		return true, fmt.Errorf("unknown command: /%s", cmd.Name)
	}
}

func (h *Handler) handleNew(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) > 1 {
		return fmt.Errorf("usage: /new [project]")
	}
	log := logx.WithUserTab(ctx, userID, tabID)
	projectPath := ""
	projectCreated := false
	if len(cmd.Args) == 1 {
		name := cmd.Args[0]
		log = log.With("project_arg", name)
		h.appendStatus(ctx, userID, "", fmt.Sprintf("preparing project %s", name))
		resp, err := h.service.CreateProject(ctx, schema.CreateProjectRequest{
			UserID: userID,
			Name:   name,
		})
		switch {
		case err == nil:
			projectCreated = true
			projectPath = resp.Project.Path
		case errors.Is(err, schema.ErrProjectExists):
			projectPath = name
		default:
			log.Warn("command new failed", "err", err)
			h.appendError(ctx, userID, "", err)
			return err
		}
	}
	resp, err := h.service.CreateTab(ctx, schema.CreateTabRequest{
		UserID:      userID,
		ProjectPath: projectPath,
	})
	if err != nil {
		log.Warn("command new failed", "err", err)
		h.appendError(ctx, userID, "", err)
		return err
	}
	lines := []string{}
	if resp.Tab.Project.Name != "" {
		if projectCreated {
			lines = append(lines, fmt.Sprintf("project created: %s", resp.Tab.Project.Name))
		} else {
			lines = append(lines, fmt.Sprintf("project opened: %s", resp.Tab.Project.Name))
		}
	}
	lines = append(lines, fmt.Sprintf("tab opened: %s", resp.Tab.Title))
	_, _ = h.service.AppendOutput(ctx, schema.AppendOutputRequest{
		UserID: userID,
		TabID:  resp.Tab.ID,
		Lines:  lines,
	})
	log.Info("command new completed", "tab", resp.Tab.ID, "project", resp.Tab.Project.Name, "created", projectCreated)
	return nil
}

func (h *Handler) handleListProjects(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	resp, err := h.service.ListProjects(ctx, schema.ListProjectsRequest{UserID: userID})
	if err != nil {
		log.Warn("command projects failed", "err", err)
		return err
	}
	lines := []string{schema.WorkedForMarker + "Projects"}
	if len(resp.Projects) == 0 {
		lines = append(lines, "no projects found")
	} else {
		for _, project := range resp.Projects {
			lines = append(lines, fmt.Sprintf("- %s", project.Name))
		}
	}
	h.appendLines(ctx, userID, tabID, lines)
	log.Info("command projects completed", "count", len(resp.Projects))
	return nil
}

func (h *Handler) handleProject(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /project <name>")
	}
	log := logx.WithUserTab(ctx, userID, tabID)
	if tabID == "" {
		log.Warn("command project rejected", "reason", "no active tab")
		return errors.New("no active tab")
	}
	resp, err := h.service.SetProject(ctx, schema.SetProjectRequest{
		UserID:      userID,
		TabID:       tabID,
		ProjectPath: cmd.Args[0],
	})
	if err != nil {
		log.Warn("command project failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("project set to: %s", resp.Tab.Project.Name))
	log.Info("command project completed", "project", resp.Tab.Project.Name)
	return nil
}

func (h *Handler) handleTabs(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	resp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
	if err != nil {
		log.Warn("command tabs failed", "err", err)
		return err
	}
	lines := []string{schema.WorkedForMarker + "Tabs"}
	if len(resp.Tabs) == 0 {
		lines = append(lines, "no tabs open")
	}
	for i, tab := range resp.Tabs {
		marker := " "
		if tab.ID == resp.ActiveTab {
			marker = "*"
		}
		state := ""
		if tab.State == schema.TabStateStreaming {
			state = " (streaming)"
		}
		lines = append(lines, fmt.Sprintf("%s %d) %s [%s]%s", marker, i+1, tab.Title, tab.Engine, state))
	}
	h.appendLines(ctx, userID, tabID, lines)
	log.Info("command tabs completed", "count", len(resp.Tabs))
	return nil
}

func (h *Handler) handleMove(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) != 2 {
		return fmt.Errorf("usage: /move <from> <to>")
	}
	from, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		return fmt.Errorf("usage: /move <from> <to>")
	}
	to, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return fmt.Errorf("usage: /move <from> <to>")
	}
	log := logx.WithUserTab(ctx, userID, tabID).With("from", from, "to", to)
	resp, err := h.service.ReorderTabs(ctx, schema.ReorderTabsRequest{
		UserID: userID,
		From:   from - 1,
		To:     to - 1,
	})
	if err != nil {
		log.Warn("command move failed", "err", err)
		return err
	}
	name := ""
	if to >= 1 && to <= len(resp.Tabs) {
		name = string(resp.Tabs[to-1].Title)
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("tab %s moved to position %d", name, to))
	log.Info("command move completed")
	return nil
}

func (h *Handler) handleRemove(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) < 1 || len(cmd.Args) > 2 {
		return fmt.Errorf("usage: /rm <number_or_name> [affirm]")
	}
	force := false
	if len(cmd.Args) == 2 {
		if cmd.Args[1] != "affirm" {
			return fmt.Errorf("usage: /rm <number_or_name> [affirm]")
		}
		force = true
	}
	log := logx.WithUserTab(ctx, userID, tabID)
	listResp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
	if err != nil {
		log.Warn("command rm list failed", "err", err)
		return err
	}
	targetID, targetName, err := resolveTabRef(cmd.Args[0], listResp.Tabs)
	if err != nil {
		log.Warn("command rm resolve failed", "err", err)
		return err
	}
	return h.closeTab(ctx, userID, tabID, targetID, targetName, force, fmt.Sprintf("/rm %s affirm", cmd.Args[0]))
}

func (h *Handler) handleClose(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) > 1 || (len(cmd.Args) == 1 && cmd.Args[0] != "affirm") {
		return fmt.Errorf("usage: /close [affirm]")
	}
	if tabID == "" {
		return errors.New("no active tab")
	}
	force := len(cmd.Args) == 1
	log := logx.WithUserTab(ctx, userID, tabID)
	listResp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
	if err != nil {
		log.Warn("command close list failed", "err", err)
		return err
	}
	targetName := nameForTab(tabID, listResp.Tabs)
	return h.closeTab(ctx, userID, tabID, tabID, targetName, force, "/close affirm")
}

// closeTab runs the two-phase close. A NeedsConfirmation answer mutates
// nothing; the user is told how to repeat with affirm.
func (h *Handler) closeTab(ctx context.Context, userID schema.UserID, tabID, targetID schema.TabID, targetName string, force bool, affirmHint string) error {
	log := logx.WithUserTab(ctx, userID, targetID)
	resp, err := h.service.CloseTab(ctx, schema.CloseTabRequest{
		UserID: userID,
		TabID:  targetID,
		Force:  force,
	})
	if err != nil {
		log.Warn("command close failed", "err", err)
		return err
	}
	if resp.NeedsConfirmation {
		h.appendLine(ctx, userID, tabID, fmt.Sprintf("tab %s has unsaved changes; run %s to close it", resp.Tab.Title, affirmHint))
		log.Info("command close needs confirmation")
		return nil
	}
	listResp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
	if err != nil {
		return err
	}
	if targetName != "" {
		h.appendLine(ctx, userID, listResp.ActiveTab, fmt.Sprintf("tab closed: %s", targetName))
	}
	log.Info("command close completed", "name", targetName, "forced", force)
	return nil
}

func (h *Handler) handleDetach(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) != 0 {
		return fmt.Errorf("usage: /detach")
	}
	if tabID == "" {
		return errors.New("no active tab")
	}
	log := logx.WithUserTab(ctx, userID, tabID)
	resp, err := h.service.DetachTab(ctx, schema.DetachTabRequest{
		UserID: userID,
		TabID:  tabID,
	})
	if err != nil {
		log.Warn("command detach failed", "err", err)
		return err
	}
	listResp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
	if err != nil {
		return err
	}
	h.appendLine(ctx, userID, listResp.ActiveTab, fmt.Sprintf("tab detached to window %s", resp.Window))
	logx.WithWindow(log, resp.Window).Info("command detach completed")
	return nil
}

func (h *Handler) handleWindow(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if len(cmd.Args) == 0 || (len(cmd.Args) == 1 && cmd.Args[0] == "list") {
		resp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
		if err != nil {
			log.Warn("command window list failed", "err", err)
			return err
		}
		lines := []string{schema.WorkedForMarker + "Windows"}
		if len(resp.Windows) == 0 {
			lines = append(lines, "no detached windows")
		}
		for _, win := range resp.Windows {
			lines = append(lines, fmt.Sprintf("- %s  %s [%s]", win.Label, win.Title, win.Engine))
		}
		h.appendLines(ctx, userID, tabID, lines)
		log.Info("command window listed", "count", len(resp.Windows))
		return nil
	}
	if len(cmd.Args) <= 2 && cmd.Args[0] == "new" {
		projectPath := ""
		if len(cmd.Args) == 2 {
			projectPath = cmd.Args[1]
		}
		resp, err := h.service.CreateWindow(ctx, schema.CreateWindowRequest{
			UserID:      userID,
			ProjectPath: projectPath,
		})
		if err != nil {
			log.Warn("command window new failed", "err", err)
			return err
		}
		h.appendLine(ctx, userID, tabID, fmt.Sprintf("window opened: %s", resp.Window))
		logx.WithWindow(log, resp.Window).Info("command window opened")
		return nil
	}
	if len(cmd.Args) == 2 && cmd.Args[0] == "close" {
		label := schema.WindowLabel(cmd.Args[1])
		resp, err := h.service.CloseWindow(ctx, schema.CloseWindowRequest{
			UserID: userID,
			Window: label,
		})
		if err != nil {
			logx.WithWindow(log, label).Warn("command window close failed", "err", err)
			return err
		}
		h.appendLine(ctx, userID, tabID, fmt.Sprintf("window closed: %s", resp.Window.Label))
		logx.WithWindow(log, label).Info("command window closed")
		return nil
	}
	return fmt.Errorf("usage: /window [new [project] | close <label>]")
}

func (h *Handler) handleEngine(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /engine <engine> (available: %s)", strings.Join(formatEngines(schema.AvailableEngines()), ", "))
	}
	log := logx.WithUserTab(ctx, userID, tabID)
	if tabID == "" {
		log.Warn("command engine rejected", "reason", "no active tab")
		return errors.New("no active tab")
	}
	engine, err := schema.NormalizeEngineID(cmd.Args[0])
	if err != nil {
		log.Warn("command engine failed", "err", err)
		return fmt.Errorf("%w (available: %s)", err, strings.Join(formatEngines(schema.AvailableEngines()), ", "))
	}
	resp, err := h.service.SetEngine(ctx, schema.SetEngineRequest{
		UserID: userID,
		TabID:  tabID,
		Engine: engine,
	})
	if err != nil {
		log.Warn("command engine failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("engine set to: %s", resp.Tab.Engine))
	logx.WithEngine(log, resp.Tab.Engine).Info("command engine completed")
	return nil
}

func (h *Handler) handleModel(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /model <model> (available: %s)", strings.Join(formatModels(h.cfg.AllowedModels), ", "))
	}
	log := logx.WithUserTab(ctx, userID, tabID)
	modelID, err := schema.NormalizeModelID(cmd.Args[0])
	if err != nil {
		log.Warn("command model failed", "err", err)
		return err
	}
	resp, err := h.service.SetModel(ctx, schema.SetModelRequest{
		UserID: userID,
		TabID:  tabID,
		Model:  modelID,
	})
	if err != nil {
		log.Warn("command model failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("model set to: %s", resp.Tab.Model))
	log.Info("command model completed", "model", resp.Tab.Model)
	return nil
}

func (h *Handler) handleStop(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	_, err := h.service.StopSession(ctx, schema.StopSessionRequest{
		UserID: userID,
		TabID:  tabID,
	})
	if err != nil {
		log.Warn("command stop failed", "err", err)
		return err
	}
	log.Info("command stop completed")
	return err
}

func (h *Handler) handleRenew(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if tabID == "" {
		log.Warn("command renew rejected", "reason", "no active tab")
		return errors.New("no active tab")
	}
	_, err := h.service.RenewSession(ctx, schema.RenewSessionRequest{
		UserID: userID,
		TabID:  tabID,
	})
	if err != nil {
		log.Warn("command renew failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, "session renewed (next prompt starts a new session)")
	log.Info("command renew completed")
	return nil
}

func (h *Handler) handleAddLoginPubKey(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if h.cfg.LoginPubKeyStore == nil {
		log.Warn("command addloginpubkey rejected", "reason", "login pubkey store not configured")
		return errors.New("login pubkey store not configured")
	}
	if len(cmd.Args) == 0 {
		log.Warn("command addloginpubkey rejected", "reason", "missing pubkey")
		return fmt.Errorf("usage: /addloginpubkey <pubkey>")
	}
	pubKey := strings.TrimSpace(strings.Join(cmd.Args, " "))
	if pubKey == "" {
		log.Warn("command addloginpubkey rejected", "reason", "empty pubkey")
		return fmt.Errorf("usage: /addloginpubkey <pubkey>")
	}
	id, err := h.cfg.LoginPubKeyStore.AddLoginPubKey(userID, pubKey)
	if err != nil {
		log.Warn("command addloginpubkey failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("login pubkey added (id %d)", id))
	log.Info("command addloginpubkey completed", "id", id)
	return nil
}

func (h *Handler) handleListLoginPubKeys(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if h.cfg.LoginPubKeyStore == nil {
		log.Warn("command listloginpubkeys rejected", "reason", "login pubkey store not configured")
		return errors.New("login pubkey store not configured")
	}
	keys, err := h.cfg.LoginPubKeyStore.ListLoginPubKeys(userID)
	if err != nil {
		log.Warn("command listloginpubkeys failed", "err", err)
		return err
	}
	lines := []string{schema.WorkedForMarker + "Login pubkeys"}
	if len(keys) == 0 {
		lines = append(lines, "no login pubkeys")
	} else {
		for i, key := range keys {
			lines = append(lines, fmt.Sprintf("%d) %s", i+1, strings.TrimSpace(key)))
		}
	}
	h.appendLines(ctx, userID, tabID, lines)
	log.Info("command listloginpubkeys completed", "count", len(keys))
	return nil
}

func (h *Handler) handleRemoveLoginPubKey(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if h.cfg.LoginPubKeyStore == nil {
		log.Warn("command rmloginpubkey rejected", "reason", "login pubkey store not configured")
		return errors.New("login pubkey store not configured")
	}
	if len(cmd.Args) < 1 {
		log.Warn("command rmloginpubkey rejected", "reason", "missing id")
		return fmt.Errorf("usage: /rmloginpubkey <id>")
	}
	id, err := strconv.Atoi(cmd.Args[0])
	if err != nil || id <= 0 {
		log.Warn("command rmloginpubkey rejected", "reason", "invalid id", "value", cmd.Args[0])
		return fmt.Errorf("invalid pubkey id")
	}
	if err := h.cfg.LoginPubKeyStore.RemoveLoginPubKey(userID, id); err != nil {
		log.Warn("command rmloginpubkey failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("login pubkey removed (id %d)", id))
	log.Info("command rmloginpubkey completed", "id", id)
	return nil
}

func (h *Handler) handleTheme(ctx context.Context, userID schema.UserID, tabID schema.TabID, cmd Command) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if len(cmd.Args) == 0 {
		current := "unknown"
		if resp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID}); err == nil {
			if resp.Theme != "" {
				current = string(resp.Theme)
			}
		}
		h.appendLine(ctx, userID, tabID, "theme: "+current)
		h.appendLine(ctx, userID, tabID, "available themes: "+strings.Join(formatThemes(schema.AvailableThemes()), ", "))
		log.Info("command theme listed", "current", current)
		return nil
	}
	name, ok := schema.NormalizeThemeName(cmd.Args[0])
	if !ok {
		log.Warn("command theme rejected", "theme", cmd.Args[0])
		return fmt.Errorf("unknown theme %q (available: %s)", cmd.Args[0], strings.Join(formatThemes(schema.AvailableThemes()), ", "))
	}
	if _, err := h.service.SetTheme(ctx, schema.SetThemeRequest{UserID: userID, Theme: name}); err != nil {
		log.Warn("command theme failed", "err", err)
		return err
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("theme set to %s", name))
	log.Info("command theme updated", "theme", name)
	return nil
}

func (h *Handler) handleToggleFullCommandOutput(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	prefs := sessionprefs.FromContext(ctx)
	if prefs == nil {
		log.Warn("command output toggle rejected", "reason", "session preferences unavailable")
		return errors.New("session preferences unavailable")
	}
	prefs.FullCommandOutput = !prefs.FullCommandOutput
	mode := "terse"
	if prefs.FullCommandOutput {
		mode = "full"
	}
	h.appendLine(ctx, userID, tabID, "command output: "+mode)
	log.Info("command output toggled", "mode", mode)
	return nil
}

func (h *Handler) handleStatus(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	if tabID == "" {
		log.Warn("command status rejected", "reason", "no active tab")
		return errors.New("no active tab")
	}
	tab, err := h.lookupTab(ctx, userID, tabID)
	if err != nil {
		log.Warn("command status lookup failed", "err", err)
		return err
	}
	usageResp, err := h.service.GetTabUsage(ctx, schema.GetTabUsageRequest{UserID: userID, TabID: tabID})
	if err != nil {
		log.Warn("command status usage failed", "err", err)
		return err
	}
	tokensUsed := 0
	if usageResp.Usage != nil {
		tokensUsed = usageResp.Usage.InputTokens + usageResp.Usage.OutputTokens
	}

	project := tab.Project.Path
	session := string(tab.SessionID)
	if strings.TrimSpace(session) == "" {
		session = "none"
	}

	labels := []string{"Engine", "Model", "Project", "Session", "Tokens used"}
	labelWidth := maxLabelWidth(labels)

	lines := []string{
		schema.WorkedForMarker + "Status",
		formatStatusLine("Engine", string(tab.Engine), labelWidth),
		formatStatusLine("Model", string(tab.Model), labelWidth),
		formatStatusLine("Project", project, labelWidth),
		formatStatusLine("Session", session, labelWidth),
		formatStatusLine("Tokens used", formatTokensUsed(tokensUsed), labelWidth),
	}

	_, _ = h.service.AppendOutput(ctx, schema.AppendOutputRequest{
		UserID: userID,
		TabID:  tabID,
		Lines:  lines,
	})
	log.Info("command status completed", "tokens_used", tokensUsed)
	return nil
}

func (h *Handler) handleHelp(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	h.appendLines(ctx, userID, tabID, helpLines(h.cfg.AllowedModels))
	log.Info("command help completed")
	return nil
}

func (h *Handler) handleVersion(ctx context.Context, userID schema.UserID, tabID schema.TabID) error {
	log := logx.WithUserTab(ctx, userID, tabID)
	versionLine := fmt.Sprintf("%s %s", version.Module(), version.Current())
	lines := []string{
		schema.WorkedForMarker + "About",
		schema.AboutVersionMarker + versionLine,
		schema.AboutCopyrightMarker + "Copyright (C) 2026 pkt.systems",
		schema.AboutLinkMarker + "https://pkt.systems/chimerax",
		"",
	}
	h.appendLines(ctx, userID, tabID, lines)
	log.Info("command version completed")
	return nil
}

func (h *Handler) lookupTab(ctx context.Context, userID schema.UserID, tabID schema.TabID) (schema.TabSnapshot, error) {
	resp, err := h.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID})
	if err != nil {
		return schema.TabSnapshot{}, err
	}
	for _, tab := range resp.Tabs {
		if tab.ID == tabID {
			return tab, nil
		}
	}
	return schema.TabSnapshot{}, schema.ErrTabNotFound
}

func helpLines(models []schema.ModelID) []string {
	modelList := strings.Join(formatModels(models), ", ")
	engineList := strings.Join(formatEngines(schema.AvailableEngines()), ", ")
	return []string{
		schema.WorkedForMarker + "Commands",
		schema.HelpMarker + "**/new** `[project]` - open a tab, optionally bound to a project",
		schema.HelpMarker + "**/projects** - list projects",
		schema.HelpMarker + "**/project** `<name>` - bind the current tab to a project",
		schema.HelpMarker + "**/tabs** - list tabs",
		schema.HelpMarker + "**/move** `<from> <to>` - move a tab to a new position",
		schema.HelpMarker + "**/rm** `<number_or_name> [affirm]` - close a tab (affirm discards unsaved changes)",
		schema.HelpMarker + "**/close** `[affirm]` - close current tab (affirm discards unsaved changes)",
		schema.HelpMarker + "**/detach** - move the current tab into its own window",
		schema.HelpMarker + "**/window** `[new [project] | close <label>]` - list, open, or close detached windows",
		schema.HelpMarker + "**/engine** `<engine>` - switch engine for current tab (available: " + engineList + ")",
		schema.HelpMarker + "**/model** `<model>` - set model for current tab (available: " + modelList + ")",
		schema.HelpMarker + "**/stop** or **/z** - stop the running turn",
		schema.HelpMarker + "**/renew** - start a fresh session for the current tab",
		schema.HelpMarker + "**/status** - show current tab status",
		schema.HelpMarker + "**/chpasswd** - change your password",
		schema.HelpMarker + "**/addloginpubkey** `<pubkey>` - add an SSH login public key",
		schema.HelpMarker + "**/listloginpubkeys** - list SSH login public keys",
		schema.HelpMarker + "**/rmloginpubkey** `<id>` - remove SSH login public key by id",
		schema.HelpMarker + "**/togglefullcommandoutput** - toggle full command output",
		schema.HelpMarker + "**/theme** `<name>` - set UI theme (available: " + strings.Join(formatThemes(schema.AvailableThemes()), ", ") + ")",
		schema.HelpMarker + "**/version** - show version information",
		schema.HelpMarker + "**/quit**, **/exit**, **/logout** - exit session / log out",
	}
}

func (h *Handler) appendStatus(ctx context.Context, userID schema.UserID, tabID schema.TabID, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	h.appendLine(ctx, userID, tabID, "status: "+message)
}

func (h *Handler) appendError(ctx context.Context, userID schema.UserID, tabID schema.TabID, err error) {
	if err == nil {
		return
	}
	h.appendLine(ctx, userID, tabID, fmt.Sprintf("error: %v", err))
}

func (h *Handler) appendLine(ctx context.Context, userID schema.UserID, tabID schema.TabID, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	h.appendLines(ctx, userID, tabID, []string{line})
}

// appendLines routes output to the tab buffer, or the system buffer when no
// tab is in scope.
func (h *Handler) appendLines(ctx context.Context, userID schema.UserID, tabID schema.TabID, lines []string) {
	if ctx == nil || len(lines) == 0 {
		return
	}
	if tabID == "" {
		_, _ = h.service.AppendSystemOutput(ctx, schema.AppendSystemOutputRequest{UserID: userID, Lines: lines})
		return
	}
	_, _ = h.service.AppendOutput(ctx, schema.AppendOutputRequest{UserID: userID, TabID: tabID, Lines: lines})
}

func maxLabelWidth(labels []string) int {
	max := 0
	for _, label := range labels {
		if label == "" {
			continue
		}
		width := len(label) + 1
		if width > max {
			max = width
		}
	}
	return max
}

func formatStatusLine(label, value string, labelWidth int) string {
	if labelWidth <= 0 {
		labelWidth = len(label) + 1
	}
	if strings.TrimSpace(value) == "" {
		value = "unknown"
	}
	return fmt.Sprintf("%-*s %s", labelWidth, label+":", value)
}

func formatTokensUsed(tokens int) string {
	if tokens < 0 {
		tokens = 0
	}
	return fmt.Sprintf("%dK", tokens/1000)
}

func resolveTabRef(ref string, tabs []schema.TabSnapshot) (schema.TabID, string, error) {
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx <= 0 || idx > len(tabs) {
			return "", "", fmt.Errorf("tab index out of range")
		}
		tab := tabs[idx-1]
		return tab.ID, string(tab.Title), nil
	}
	for _, tab := range tabs {
		if strings.EqualFold(string(tab.Title), ref) {
			return tab.ID, string(tab.Title), nil
		}
	}
	return "", "", fmt.Errorf("tab not found: %s", ref)
}

func nameForTab(tabID schema.TabID, tabs []schema.TabSnapshot) string {
	for _, tab := range tabs {
		if tab.ID == tabID {
			return string(tab.Title)
		}
	}
	return ""
}

func formatModels(models []schema.ModelID) []string {
	if len(models) == 0 {
		return nil
	}
	formatted := make([]string, 0, len(models))
	for _, modelID := range models {
		formatted = append(formatted, string(modelID))
	}
	return formatted
}

func formatEngines(engines []schema.EngineID) []string {
	if len(engines) == 0 {
		return nil
	}
	formatted := make([]string, 0, len(engines))
	for _, engineID := range engines {
		formatted = append(formatted, string(engineID))
	}
	return formatted
}

func formatThemes(themes []schema.ThemeName) []string {
	if len(themes) == 0 {
		return nil
	}
	formatted := make([]string, 0, len(themes))
	for _, name := range themes {
		formatted = append(formatted, string(name))
	}
	return formatted
}
