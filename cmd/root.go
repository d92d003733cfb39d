// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/internal/config"
	"github.com/draven0x/wayfinder/internal/observability"
)

var cfgFile string

// NewRootCommand builds a fresh root command tree. A new instance per
// invocation keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "wayfinder",
		Short:   "Wayfinder is a navigation memory for GUI-driving agents.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				// Fall back to a console logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "wayfinder"})
				return fmt.Errorf("failed to load config: %w", err)
			}
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting wayfinder", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

// Execute runs the root command under the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}
