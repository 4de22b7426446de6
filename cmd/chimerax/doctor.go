package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/internal/agentcli"
	"pkt.systems/chimerax/internal/appconfig"
	"pkt.systems/chimerax/internal/auth"
	"pkt.systems/chimerax/internal/enginestatus"
	"pkt.systems/chimerax/schema"
	"pkt.systems/chimerax/sshserver"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var engine string
	var prompt string
	var promptTimeout time.Duration
	var skipPrompt bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run chimerax diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			if err := verifyDirectories(cfg); err != nil {
				return err
			}
			logger.Info("doctor directories ok", "project_root", cfg.ProjectRoot, "state_dir", cfg.StateDir)

			if _, err := sshserver.EnsureHostKey(cfg.SSH.HostKeyPath); err != nil {
				return fmt.Errorf("doctor host key: %w", err)
			}
			logger.Info("doctor host key ok", "path", cfg.SSH.HostKeyPath)

			store, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
			if err != nil {
				return fmt.Errorf("doctor user store: %w", err)
			}
			logger.Info("doctor user store ok", "users", len(store.LoadUsers()))

			checker := enginestatus.NewChecker(nil, enginestatus.DefaultTTL)
			for _, id := range schema.AvailableEngines() {
				status, err := checker.Check(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !status.Installed {
					logger.Warn("doctor engine missing", "engine", id)
					continue
				}
				logger.Info("doctor engine ok", "engine", id, "path", status.Path, "version", status.Version)
			}

			if skipPrompt {
				logger.Info("doctor complete")
				return nil
			}
			engineID, err := schema.NormalizeEngineID(engine)
			if err != nil {
				return err
			}
			if err := runDoctorPrompt(cmd.Context(), logger, cfg, engineID, prompt, promptTimeout); err != nil {
				return err
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&engine, "engine", string(schema.DefaultEngine), "engine used for the prompt check")
	cmd.Flags().StringVar(&prompt, "prompt", "Say 'ok' and exit.", "prompt used for the engine exec check")
	cmd.Flags().DurationVar(&promptTimeout, "prompt-timeout", 90*time.Second, "timeout for the engine exec check")
	cmd.Flags().BoolVar(&skipPrompt, "skip-prompt", false, "skip the engine exec check")
	return cmd
}

func verifyDirectories(cfg appconfig.Config) error {
	for _, dir := range []string{cfg.ProjectRoot, cfg.StateDir} {
		if strings.TrimSpace(dir) == "" {
			return errors.New("doctor: project_root and state_dir are required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("doctor directory: %w", err)
		}
		probe := filepath.Join(dir, fmt.Sprintf(".doctor-%d", time.Now().UnixNano()))
		if err := os.WriteFile(probe, []byte("ok\n"), 0o600); err != nil {
			return fmt.Errorf("doctor directory not writable: %w", err)
		}
		_ = os.Remove(probe)
	}
	return nil
}

// runDoctorPrompt streams one prompt through the configured engine CLI and
// requires a clean exit.
func runDoctorPrompt(ctx context.Context, logger pslog.Logger, cfg appconfig.Config, engine schema.EngineID, prompt string, timeout time.Duration) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("doctor prompt is empty")
	}
	provider, err := agentcli.NewProvider(engineOverrides(cfg.Engines))
	if err != nil {
		return err
	}
	resp, err := provider.RunnerFor(ctx, core.RunnerRequest{
		UserID: "doctor",
		TabID:  schema.TabID(fmt.Sprintf("doctor-%d", time.Now().UnixNano())),
		Engine: engine,
	})
	if err != nil {
		return err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Info("doctor prompt start", "engine", engine, "model", cfg.Models.Default)
	handle, err := resp.Runner.Run(runCtx, core.RunRequest{
		Engine:     engine,
		WorkingDir: cfg.ProjectRoot,
		Prompt:     prompt,
		Model:      schema.ModelID(cfg.Models.Default),
	})
	if err != nil {
		return fmt.Errorf("doctor prompt start: %w", err)
	}
	defer func() { _ = handle.Close() }()

	events := handle.Events()
	done := make(chan struct{})
	var count int
	go func() {
		defer close(done)
		for {
			event, err := events.Next(runCtx)
			if err != nil {
				return
			}
			count++
			if event.Type == schema.EventTurnFailed && event.Error != nil {
				logger.Warn("doctor prompt turn failed", "message", event.Error.Message)
			}
		}
	}()
	result, err := handle.Wait(runCtx)
	<-done
	if err != nil {
		return fmt.Errorf("doctor prompt failed: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("doctor prompt failed (exit %d)", result.ExitCode)
	}
	logger.Info("doctor prompt ok", "events", count, "exit", result.ExitCode)
	return nil
}
