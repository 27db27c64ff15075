package cmds

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/inacomp/submission-judge/cmd/worker/internal/common"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
	workererrors "github.com/inacomp/submission-judge/internal/worker_errors"
)

var enqueueJobFile string

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Validate a job file and push it onto the submission queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "enqueueCmd")
		defer span.End()

		job, raw, err := readJobFile(enqueueJobFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read job")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		rdb := common.NewRedisClient(cfg)
		defer rdb.Close()

		queuer, err := common.NewQueuer(cfg, rdb)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build queuer")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		err = queuer.Enqueue(ctx, json.RawMessage(raw))
		err = errors.Join(err, queuer.Close())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to enqueue job")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		logger.Logger.InfoContext(ctx, "enqueued job", "room", job.RoomID(), "queue", cfg.Queue.Name)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "enqueued job")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVar(&enqueueJobFile, "job", "", "Job file, json or yaml (required)")

	if err := enqueueCmd.MarkFlagRequired("job"); err != nil {
		logger.Logger.Error("error setting flag required", "flag", "job", "error", err)
		os.Exit(types.ExitErrored)
	}
}
