package main

import (
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/chimerax/internal/appconfig"
	"pkt.systems/chimerax/internal/userhome"
	"pkt.systems/pslog"
)

func newInitCmd() *cobra.Command {
	var outputPath string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			path, err := appconfig.WriteDefault(outputPath, overwrite)
			if err != nil {
				return err
			}
			logger.Info("init wrote", "path", path, "name", "config.yaml")
			cfg, err := appconfig.Load(path)
			if err != nil {
				return err
			}
			for _, dir := range []string{cfg.ProjectRoot, cfg.StateDir, userhome.SkelDir(cfg.StateDir)} {
				if dir == "" {
					continue
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				logger.Info("init ensured", "path", dir)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "config output path")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite existing config")
	return cmd
}
