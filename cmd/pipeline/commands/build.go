package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/user/strain-pipeline/internal/adapter/llm"
	"github.com/user/strain-pipeline/internal/cleaner"
	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/internal/vendor"
	"github.com/user/strain-pipeline/pkg/config"
	"go.uber.org/zap"
)

// ValidatedFile is written next to the clean table by validate.
const ValidatedFile = "master_strains_validated.csv"

var (
	extractVendors    []string
	cleanFrom         string
	cleanTo           string
	validateFallbacks bool
)

func init() {
	extractCmd.Flags().StringSliceVar(&extractVendors, "vendor", nil, "Vendor tags to extract (default: all).")
	cleanCmd.Flags().StringVar(&cleanFrom, "from", "", "First stage id to run (default: 01).")
	cleanCmd.Flags().StringVar(&cleanTo, "to", "", "Last stage id to run (default: 12).")
	validateCmd.Flags().BoolVar(&validateFallbacks, "fallback-only", false, "Only send rows whose breeder came from a fallback.")
	rootCmd.AddCommand(inventoryCmd, extractCmd, unifyCmd, cleanCmd, validateCmd)
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Indexes archive sidecars into inventory.csv.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		archive, err := openArchive(ctx)
		if err != nil {
			return err
		}
		inv, rep, err := usecase.NewInventorier(archive, log).Build(ctx)
		if err != nil {
			return err
		}
		if err := inv.Save(inventoryPath()); err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
		log.Info("Inventory written",
			zap.String("path", inventoryPath()),
			zap.Int("sidecars", rep.Sidecars),
			zap.Int("entries", rep.Entries),
			zap.Int("orphan_html", len(rep.OrphanHTML)),
			zap.Int("orphan_sidecars", len(rep.OrphanSidecars)),
			zap.Int("legacy_preferred", rep.LegacyPreferred),
			zap.Int("legacy_shadowed", rep.LegacyShadowed),
		)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [--vendor tag,...]",
	Short: "Parses archived pages into one raw table per vendor.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		progress, err := openProgress(ctx)
		if err != nil {
			return err
		}
		defer progress.Close()
		archive, err := openArchive(ctx)
		if err != nil {
			return err
		}
		inv, err := loadInventory()
		if err != nil {
			return err
		}

		sums, err := usecase.NewExtractionRunner(progress, archive, vendor.Default(), rawDir(), log).Run(ctx, extractVendors, inv)
		for _, s := range sums {
			log.Info("Extraction finished",
				zap.String("vendor", s.Vendor),
				zap.Int("pages", s.Pages),
				zap.Int("records", s.Records),
				zap.Int("parse_miss", s.ParseMiss),
				zap.Int("read_errors", s.ReadErrors),
				zap.String("path", s.Path),
			)
		}
		return err
	},
}

var unifyCmd = &cobra.Command{
	Use:   "unify",
	Short: "Merges vendor tables into the master raw table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := loadInventory()
		if err != nil {
			return err
		}
		out := usecase.MasterRawPath(cfg.DataDir)
		sum, err := usecase.NewUnifier(log).Run(cmd.Context(), rawDir(), out, inv)
		if err != nil {
			return err
		}
		log.Info("Master raw table written",
			zap.String("path", out),
			zap.Int("vendors", sum.Vendors),
			zap.Int("input_rows", sum.InputRows),
			zap.Int("output_rows", sum.OutputRows),
			zap.Int("merged_captures", sum.MergedCaptures),
			zap.Int("new_ids", sum.NewIDs),
			zap.Int("reused_ids", sum.ReusedIDs),
			zap.Strings("dropped_columns", sum.DroppedColumns),
			zap.Strings("unknown_columns", sum.UnknownColumns),
		)
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [--from id] [--to id]",
	Short: "Runs the cleaning stages with checkpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		serveMetrics(ctx)

		cur, err := config.LoadCurated(cfg.CuratedFile)
		if err != nil {
			return fmt.Errorf("%w: curated lists: %v", usecase.ErrPrecondition, err)
		}
		archive, err := openArchive(ctx)
		if err != nil {
			return err
		}
		env, err := cleaner.NewEnv(cur, usecase.NewBreederResolver(archive, vendor.Default(), log), log)
		if err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrPrecondition, err)
		}

		reports, err := cleaner.NewRunner(env, cleanDir()).Run(ctx, usecase.MasterRawPath(cfg.DataDir), cleanFrom, cleanTo)
		for _, r := range reports {
			log.Info("Stage finished",
				zap.String("stage", r.Stage),
				zap.Int("input_rows", r.InputRows),
				zap.Int("output_rows", r.OutputRows),
				zap.Int("rows_deleted", r.RowsDeleted),
			)
		}
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [--fallback-only]",
	Short: "Reviews clean rows with the external model and appends its verdicts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.LLMEndpoint == "" {
			return fmt.Errorf("%w: LLM_ENDPOINT is not set", usecase.ErrPrecondition)
		}
		inPath := filepath.Join(cleanDir(), cleaner.CleanFile)
		in, err := table.Load(inPath, "clean")
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", usecase.ErrPrecondition, inPath)
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", inPath, err)
		}
		archive, err := openArchive(ctx)
		if err != nil {
			return err
		}

		model := llm.NewClient(llm.Options{
			Endpoint: cfg.LLMEndpoint,
			APIKey:   cfg.LLMAPIKey,
			Model:    cfg.LLMModel,
			Timeout:  cfg.HTTPTimeout(),
			Retries:  3,
		}, log)
		v := usecase.NewLLMValidator(usecase.ValidatorConfig{
			BatchSize:         cfg.LLMBatchSize,
			RequestsPerSecond: cfg.LLMRequestsPerSecond,
			Threshold:         cfg.LLMConfidenceThreshold,
			MaxChars:          cfg.LLMMaxChars,
		}, model, archive, log)

		var filter func(table.Row) bool
		if validateFallbacks {
			filter = usecase.FallbackOnly
		}
		out, sum, err := v.Run(ctx, in, filter)
		if err != nil {
			return err
		}
		outPath := filepath.Join(cleanDir(), ValidatedFile)
		if err := out.Save(outPath); err != nil {
			return err
		}
		log.Info("Validation written",
			zap.String("path", outPath),
			zap.Int("rows", sum.Rows),
			zap.Int("sent", sum.Sent),
			zap.Int("batches", sum.Batches),
			zap.Int("accepted", sum.Accepted),
			zap.Int("errors", sum.Errors),
		)
		return nil
	},
}
