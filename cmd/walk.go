package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/config"
	"github.com/JakeFAU/wikipath-crawler/internal/controller"
)

// newWalkCmd creates the 'walk' subcommand.
func newWalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Runs directed walks toward a target article",
		Long: fmt.Sprintf(`Walks from each --start article, then from --count random articles,
until the target title (Philosophy unless --target or --depth is given) is
reached or the walk ends otherwise. Prints up to %d sample paths, then the
success rate and average steps over all walks and the shortest and longest
successful paths.`, controller.SampleLimit),
		RunE: runWalkCommand,
	}
	f := cmd.Flags()
	f.StringSlice("start", nil, "start article titles or URLs")
	f.Int("count", 0, "random start articles to walk from (default 1 without --start)")
	f.String("target", "", "target article title")
	f.Int("depth", 0, "complete once the path holds this many articles")
	f.Int("max-steps", 0, "step budget per walk")
	f.Duration("step-delay", 0, "pause between steps of one walk")
	f.Int("workers", 0, "number of concurrent walks")
	return cmd
}

func runWalkCommand(cmd *cobra.Command, _ []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := rt.cfg
	cfg.Walker.Mode = config.ModeDirected
	if len(cfg.Controller.StartArticles) == 0 && cfg.Controller.RandomArticles == 0 {
		cfg.Controller.RandomArticles = 1
	}

	a, err := newApp(ctx, cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			rt.logger.Warn("failed to close services", zap.Error(cerr))
		}
	}()

	source, err := a.JobSource()
	if err != nil {
		return err
	}
	summary := a.Controller().Run(ctx, source)

	out := cmd.OutOrStdout()
	renderPaths(out, summary.Samples)
	renderExperiment(out, a.Walker().Policy(), summary)
	return nil
}
