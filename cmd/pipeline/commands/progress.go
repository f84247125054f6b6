package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/strain-pipeline/internal/cleaner"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/internal/vendor"
	"go.uber.org/zap"
)

var (
	enqueueForce bool
	forgetReport string
)

func init() {
	enqueueCmd.Flags().BoolVar(&enqueueForce, "force", false, "Enqueue even if the URL was discovered recently.")
	forgetCmd.Flags().StringVar(&forgetReport, "report", "", "Stage report listing deleted URLs (default: the deep_clean_names report).")
	rootCmd.AddCommand(reportCmd, statusCmd, enqueueCmd, forgetCmd)
}

func newURLManager(cmd *cobra.Command, withSeen bool) (*usecase.URLManager, func(), error) {
	ctx := cmd.Context()
	progress, err := openProgress(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !withSeen {
		return usecase.NewURLManager(progress, nil, vendor.Default(), log), progress.Close, nil
	}
	seen, _, closeRedis, err := openCoordination(ctx)
	if err != nil {
		progress.Close()
		return nil, nil, err
	}
	return usecase.NewURLManager(progress, seen, vendor.Default(), log), func() {
		closeRedis()
		progress.Close()
	}, nil
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Prints per-vendor progress counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newURLManager(cmd, false)
		if err != nil {
			return err
		}
		defer done()

		rows, err := m.Report(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s %8s %8s %8s %8s %8s %9s %9s\n",
			"vendor", "pending", "process", "success", "failed", "total", "attempts", "score")
		for _, r := range rows {
			fmt.Fprintf(out, "%-24s %8d %8d %8d %8d %8d %9.2f %9.2f\n",
				r.Vendor,
				r.Counts[entity.StatusPending],
				r.Counts[entity.StatusProcessing],
				r.Counts[entity.StatusSuccess],
				r.Counts[entity.StatusFailed],
				r.Total,
				r.AvgAttempts,
				r.AvgValidation,
			)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Prints the progress row of one URL.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newURLManager(cmd, false)
		if err != nil {
			return err
		}
		defer done()

		rec, err := m.Status(cmd.Context(), args[0])
		if errors.Is(err, usecase.ErrUnknownURL) {
			return fmt.Errorf("%w: %s is not in the progress store", usecase.ErrPrecondition, args[0])
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "url_hash:         %s\n", rec.URLHash)
		fmt.Fprintf(out, "vendor:           %s\n", rec.Vendor)
		fmt.Fprintf(out, "status:           %s\n", rec.Status)
		fmt.Fprintf(out, "attempts:         %d\n", rec.Attempts)
		if rec.LastAttempt != nil {
			fmt.Fprintf(out, "last_attempt:     %s\n", rec.LastAttempt.UTC().Format(time.RFC3339))
		}
		if rec.Status == entity.StatusSuccess {
			fmt.Fprintf(out, "scrape_method:    %s\n", rec.ScrapeMethod)
			fmt.Fprintf(out, "validation_score: %.2f\n", rec.ValidationScore)
			fmt.Fprintf(out, "archive_key:      %s\n", rec.ArchiveKey)
		}
		if rec.ErrorMessage != nil {
			fmt.Fprintf(out, "error:            %s\n", *rec.ErrorMessage)
		}
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <url>...",
	Short: "Adds product URLs to the progress store by hand.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newURLManager(cmd, true)
		if err != nil {
			return err
		}
		defer done()

		for _, u := range args {
			hash, inserted, err := m.Submit(cmd.Context(), u, enqueueForce)
			if errors.Is(err, usecase.ErrRecentlyDiscovered) {
				log.Info("Skipped recently discovered URL", zap.String("url", u))
				continue
			}
			if err != nil {
				return err
			}
			log.Info("Enqueued URL", zap.String("url", u), zap.String("url_hash", hash), zap.Bool("inserted", inserted))
		}
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget [--report path]",
	Short: "Removes URLs the cleaner proved are not products from the progress store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := forgetReport
		if path == "" {
			path = deepCleanReport()
		}
		urls, err := cleaner.ReadDeleted(path)
		if err != nil {
			return err
		}

		m, done, err := newURLManager(cmd, false)
		if err != nil {
			return err
		}
		defer done()

		n, err := m.Forget(cmd.Context(), urls)
		log.Info("Forgot non-product URLs", zap.String("report", path), zap.Int("listed", len(urls)), zap.Int("removed", n))
		return err
	},
}

func deepCleanReport() string {
	for _, s := range cleaner.Stages() {
		if s.Name == "deep_clean_names" {
			return filepath.Join(cleanDir(), s.File()+"_report.txt")
		}
	}
	return ""
}
