// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/internal/config"
	"github.com/xkilldash9x/alris-cli/internal/observability"
)

// rootOptions carries state resolved by the persistent pre-run to every
// subcommand.
type rootOptions struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// Allows tests to bypass the global logger.
var initLogger = func(cfg config.LoggerConfig) *zap.Logger {
	observability.InitializeLogger(cfg)
	return observability.GetLogger()
}

// NewRootCommand builds a fresh command tree. Interactive mode builds one per
// line so flags never leak between invocations.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "alris",
		Short: "Alris is a natural language assistant that drives a browser for you.",
		Long: `Alris turns plain requests into actions: it finds YouTube videos, fills in
web forms, drafts calendar events and emails, and browses on your behalf.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = initLogger(cfg.Logger)
			opts.logger.Debug("Configuration loaded.", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.alris/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// loadConfig layers defaults, the config file and ALRIS_* environment
// variables, in that order of precedence from lowest to highest.
func loadConfig(cfgFile string) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	config.ConfigureEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.alris")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
