package main

import (
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/internal/agentcli"
	"pkt.systems/chimerax/internal/appconfig"
	"pkt.systems/chimerax/internal/auth"
	"pkt.systems/chimerax/internal/command"
	"pkt.systems/chimerax/internal/eventbus"
	"pkt.systems/chimerax/internal/userhome"
	"pkt.systems/chimerax/internal/windowhost"
	"pkt.systems/chimerax/schema"
	"pkt.systems/chimerax/sshserver"
	"pkt.systems/pslog"
)

//go:embed assets/LOGO.txt
var serveLogo string

func newServeCmd() *cobra.Command {
	var cfgPath string
	var disableAuditTrails bool
	var noBanner bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chimerax SSH server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner && serveLogo != "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveLogo)
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if disableAuditTrails {
				cfg.Logging.DisableAuditTrails = true
			}
			if err := ensureUserHomes(cfg, logger); err != nil {
				return err
			}

			serviceCfg := schema.ServiceConfig{
				ProjectRoot:         cfg.ProjectRoot,
				StateDir:            cfg.StateDir,
				DefaultEngine:       schema.EngineID(cfg.Service.DefaultEngine),
				DefaultModel:        schema.ModelID(cfg.Models.Default),
				AllowedModels:       toModelIDs(cfg.Models.Allowed),
				DefaultTheme:        schema.ThemeName(cfg.Service.DefaultTheme),
				TabTitleMax:         cfg.Service.TabTitleMax,
				TabTitleSuffix:      cfg.Service.TabTitleSuffix,
				BufferMaxLines:      cfg.Service.BufferMaxLines,
				MaxWindows:          cfg.Service.MaxWindows,
				DisableAuditLogging: cfg.Logging.DisableAuditTrails,
			}

			runnerProvider, err := agentcli.NewProvider(engineOverrides(cfg.Engines))
			if err != nil {
				return err
			}
			store, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
			if err != nil {
				return err
			}
			bus := eventbus.New(logger)
			windows := windowhost.New(cfg.Service.MaxWindows, logger)

			service, err := core.NewService(serviceCfg, core.ServiceDeps{
				RunnerProvider: runnerProvider,
				WindowManager:  windows,
				EventSink:      bus,
				Logger:         logger,
			})
			if err != nil {
				return err
			}
			handler := command.NewHandler(service, command.HandlerConfig{
				AllowedModels:       serviceCfg.AllowedModels,
				LoginPubKeyStore:    store,
				DisableAuditLogging: cfg.Logging.DisableAuditTrails,
			})

			server := &sshserver.Server{
				Addr:        cfg.SSH.Addr,
				HostKeyPath: cfg.SSH.HostKeyPath,
				Service:     service,
				Handler:     handler,
				IdlePrompt:  "> ",
				AuthStore:   store,
				EventBus:    bus,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger.Info("ssh server listening", "addr", cfg.SSH.Addr)
			return server.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable startup banner")
	return cmd
}

func toModelIDs(values []string) []schema.ModelID {
	if len(values) == 0 {
		return nil
	}
	out := make([]schema.ModelID, 0, len(values))
	for _, value := range values {
		out = append(out, schema.ModelID(value))
	}
	return out
}

// engineOverrides maps the engines config onto per-engine runner configs.
func engineOverrides(cfg appconfig.EnginesConfig) map[schema.EngineID]agentcli.Config {
	return map[schema.EngineID]agentcli.Config{
		schema.EngineClaude: toEngineConfig(cfg.Claude),
		schema.EngineCodex:  toEngineConfig(cfg.Codex),
		schema.EngineGemini: toEngineConfig(cfg.Gemini),
	}
}

func toEngineConfig(cfg appconfig.EngineConfig) agentcli.Config {
	return agentcli.Config{
		BinaryPath: cfg.Binary,
		ExtraArgs:  append([]string(nil), cfg.Args...),
		Env:        flattenEnv(cfg.Env),
	}
}

// flattenEnv produces a deterministic KEY=value list from the config map.
func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}

func ensureUserHomes(cfg appconfig.Config, logger pslog.Logger) error {
	store, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
	if err != nil {
		return err
	}
	users := store.LoadUsers()
	if len(users) == 0 {
		return nil
	}
	data := userhome.TemplateData{Config: cfg}
	skelDir := userhome.SkelDir(cfg.StateDir)
	for _, user := range users {
		username := strings.TrimSpace(user.Username)
		if username == "" {
			continue
		}
		if _, err := userhome.EnsureHome(cfg.StateDir, username, skelDir, data); err != nil {
			return fmt.Errorf("user home %q: %w", username, err)
		}
	}
	return nil
}
