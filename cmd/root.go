// Package cmd defines the CLI commands of the wikipath executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/app"
	"github.com/JakeFAU/wikipath-crawler/internal/config"
	"github.com/JakeFAU/wikipath-crawler/internal/logging"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime is what the root command prepares for its subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory. It is a variable so tests can inject
// fake services.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// flagKeys maps CLI flag names onto config keys. Only flags a command
// defines and the user sets explicitly are applied.
var flagKeys = map[string]string{
	"log-level":   "logging.level",
	"workers":     "controller.workers",
	"max-size-gb": "controller.max_size_gb",
	"max-jobs":    "controller.max_jobs",
	"start":       "controller.start_articles",
	"random":      "controller.random_articles",
	"count":       "controller.random_articles",
	"mode":        "walker.mode",
	"target":      "walker.target_title",
	"depth":       "walker.target_depth",
	"max-steps":   "walker.max_steps",
	"step-delay":  "walker.step_delay",
	"port":        "server.port",
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "wikipath",
		Short: "Maps the first-link graph of Wikipedia.",
		Long: `wikipath follows the first link of Wikipedia articles until a loop,
a dead end, a target article or an already mapped article is reached, and
stores every path it walks.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, flagBindings(cmd)...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			logger.Debug("configuration loaded", zap.Any("config", cfg.Redacted()))
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKey).(*runtime); ok && rt != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newWalkCmd())
	return cmd
}

func flagBindings(cmd *cobra.Command) []config.FlagBinding {
	var out []config.FlagBinding
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		out = append(out, config.FlagBinding{Key: key, Flag: f})
	}
	return out
}

func runtimeFrom(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
