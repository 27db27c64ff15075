package cmds

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/inacomp/submission-judge/internal/config"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
	workererrors "github.com/inacomp/submission-judge/internal/worker_errors"
)

var tracer = otel.Tracer("github.com/inacomp/submission-judge/cmd/worker/cmds")

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "worker",
	Short:        "Evaluate submission jobs against the judge",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.GetConfig()
		if err != nil {
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}
		cfg = loaded

		logger.SetFormat(cfg.Logging.Format)
		logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))
		return nil
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
