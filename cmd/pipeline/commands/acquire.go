package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/strain-pipeline/internal/adapter/resty_fetcher"
	"github.com/user/strain-pipeline/internal/proxy"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/internal/vendor"
	"go.uber.org/zap"
)

var discoverVendors []string

func init() {
	discoverCmd.Flags().StringSliceVar(&discoverVendors, "vendor", nil, "Vendor tags to discover (default: all).")
	rootCmd.AddCommand(discoverCmd, fetchCmd, resetStuckCmd, resetFailedCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover [--vendor tag,...]",
	Short: "Walks vendor listings and enqueues product URLs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		serveMetrics(ctx)

		progress, err := openProgress(ctx)
		if err != nil {
			return err
		}
		defer progress.Close()
		seen, gate, closeRedis, err := openCoordination(ctx)
		if err != nil {
			return err
		}
		defer closeRedis()

		rotation := proxy.NewManager(cfg.Proxies(), nil)
		d := usecase.NewDiscoverer(
			progress,
			seen,
			resty_fetcher.NewDirectFetcher(cfg.HTTPTimeout()),
			gate,
			vendor.Default(),
			cfg.HostInterval(),
			rotation.GetUserAgent(),
			log,
		)
		sums, err := d.Run(ctx, discoverVendors)
		for _, s := range sums {
			log.Info("Discovery finished",
				zap.String("vendor", s.Vendor),
				zap.Int("pages", s.Pages),
				zap.Int("found", s.Found),
				zap.Int("inserted", s.Inserted),
				zap.Int("duplicates", s.Duplicates),
				zap.Int("rejected", s.Rejected),
			)
		}
		return err
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Acquires, validates and archives every pending URL.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		serveMetrics(ctx)

		backoff, err := cfg.Backoff()
		if err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrPrecondition, err)
		}
		progress, err := openProgress(ctx)
		if err != nil {
			return err
		}
		defer progress.Close()
		archive, err := openArchive(ctx)
		if err != nil {
			return err
		}
		_, gate, closeRedis, err := openCoordination(ctx)
		if err != nil {
			return err
		}
		defer closeRedis()
		methods, release := acquisitionMethods()
		defer release()

		f := usecase.NewFetcher(
			usecase.FetcherConfig{
				Concurrency:  cfg.MaxConcurrentRequests,
				MaxAttempts:  cfg.MaxAttempts,
				Backoff:      backoff,
				HostInterval: cfg.HostInterval(),
				StuckTimeout: cfg.StuckTimeout(),
			},
			progress,
			archive,
			methods,
			gate,
			proxy.NewManager(cfg.Proxies(), nil),
			usecase.NewContentValidator(cfg.MinHTMLSize, cfg.ValidationThreshold),
			vendor.Default(),
			log,
		)
		sum, err := f.Run(ctx)
		log.Info("Fetch finished",
			zap.Int64("claimed", sum.Claimed),
			zap.Int64("succeeded", sum.Succeeded),
			zap.Int64("failed", sum.Failed),
			zap.Int64("recovered", sum.Recovered),
		)
		return err
	},
}

var resetStuckCmd = &cobra.Command{
	Use:   "reset-stuck",
	Short: "Moves processing rows older than STUCK_TIMEOUT_MINUTES back to pending.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		progress, err := openProgress(ctx)
		if err != nil {
			return err
		}
		defer progress.Close()

		n, err := progress.ResetStuck(ctx, cfg.StuckTimeout())
		if err != nil {
			return fmt.Errorf("%w: reset stuck: %v", usecase.ErrDownstream, err)
		}
		log.Info("Reset stuck rows", zap.Int64("rows", n), zap.Duration("older_than", cfg.StuckTimeout()))
		return nil
	},
}

var resetFailedCmd = &cobra.Command{
	Use:   "reset-failed",
	Short: "Requeues failed rows that have attempts left.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		progress, err := openProgress(ctx)
		if err != nil {
			return err
		}
		defer progress.Close()

		n, err := progress.ResetFailed(ctx, cfg.MaxAttempts)
		if err != nil {
			return fmt.Errorf("%w: reset failed: %v", usecase.ErrDownstream, err)
		}
		log.Info("Requeued failed rows", zap.Int64("rows", n), zap.Int("max_attempts", cfg.MaxAttempts))
		return nil
	},
}
