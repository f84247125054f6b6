package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/strain-pipeline/internal/cleaner"
	"github.com/user/strain-pipeline/internal/usecase"
	"github.com/user/strain-pipeline/pkg/config"
	"github.com/user/strain-pipeline/pkg/logger"
	"go.uber.org/zap"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "pipeline collects, archives, extracts and cleans seed vendor catalogues.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrPrecondition, err)
		}
		log, err = logger.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("%w: logger: %v", usecase.ErrPrecondition, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	return exitCode(err)
}

// exitCode maps a command error to 1 for missing or invalid input and 2
// for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, usecase.ErrPrecondition),
		errors.Is(err, cleaner.ErrMissingInput),
		errors.Is(err, cleaner.ErrUnknownStage):
		return 1
	default:
		return 2
	}
}
