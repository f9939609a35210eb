package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/api"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Maps first-link paths until the storage ceiling or an interrupt",
		Long: `Runs a pool of walkers over the configured start articles and random
articles. Every finished path is stored. The run ends when the job source is
exhausted, the storage ceiling is reached, or SIGINT/SIGTERM is received; in
every case in-flight walks finish first.`,
		RunE: runCrawlCommand,
	}
	f := cmd.Flags()
	f.Int("workers", 0, "number of concurrent walks")
	f.Float64("max-size-gb", 0, "storage ceiling in GB (0 disables)")
	f.Int("max-jobs", 0, "stop after this many jobs (0 means no limit)")
	f.StringSlice("start", nil, "start article titles or URLs")
	f.Int("random", 0, "random start articles after --start (0 with no --start runs until stopped)")
	f.String("mode", "", "walk mode: deep or directed")
	f.String("target", "", "target article title for directed mode")
	f.Int("depth", 0, "target path length for directed mode")
	f.Int("max-steps", 0, "step budget per walk")
	f.Duration("step-delay", 0, "pause between steps of one walk")
	f.Int("port", 0, "status server port (0 disables)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, rt.cfg, rt.logger)
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

	serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	serverDone := make(chan struct{})
	if port := rt.cfg.Server.Port; port > 0 {
		srv := api.NewServer(a.Controller(), a.Controller().Visited(), rt.logger)
		go func() {
			defer close(serverDone)
			if err := srv.ListenAndServe(serverCtx, fmt.Sprintf(":%d", port)); err != nil {
				rt.logger.Error("status server failed", zap.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}

	summary := a.Controller().Run(ctx, source)
	stopServer()
	<-serverDone

	renderSummary(cmd.OutOrStdout(), summary)
	rt.logger.Info("crawl command finished", zap.String("stop_reason", summary.StopReason))
	return nil
}
