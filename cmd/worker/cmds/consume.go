package cmds

import (
	"errors"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/inacomp/submission-judge/cmd/worker/internal/common"
	"github.com/inacomp/submission-judge/cmd/worker/internal/consumer"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
	workererrors "github.com/inacomp/submission-judge/internal/worker_errors"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Evaluate jobs from the submission queue until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "consumeCmd")
		defer span.End()

		p, err := newPipeline(ctx, true, false)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build pipeline")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		queuer, err := common.NewQueuer(cfg, p.rdb)
		if err != nil {
			err = errors.Join(err, p.close())
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build queuer")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		logger.Logger.InfoContext(ctx, "consuming jobs",
			"queue", cfg.Queue.Name,
			"backend", cfg.Queue.Backend,
			"relay", cfg.Relay.Mode,
		)

		err = withRelay(ctx, p.relay, 0, consumer.NewConsumer(
			queuer,
			p.evaluator,
			cfg.Worker.Concurrency,
			cfg.Worker.JobTimeout,
		).Run)
		err = errors.Join(err, queuer.Close(), p.close())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "consumer stopped with an error")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		logger.Logger.InfoContext(ctx, "consumer shut down")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "consumer shut down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
