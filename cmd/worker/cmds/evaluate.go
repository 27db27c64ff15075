package cmds

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
	workererrors "github.com/inacomp/submission-judge/internal/worker_errors"
)

var (
	evaluateJobFile string
	evaluateNoStore bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single job file",
	Long: `
- Exits with 0 if every test case passed.
- Exits with 2 if the job was evaluated and failed.
- Exits with a 1 for all other errors.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "evaluateCmd")
		defer span.End()

		job, _, err := readJobFile(evaluateJobFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read job")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		p, err := newPipeline(ctx, !evaluateNoStore, true)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build pipeline")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		err = withRelay(ctx, p.relay, relayConnectWait, func(ctx context.Context) error {
			timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Worker.JobTimeout)
			defer cancel()
			return p.evaluator.Evaluate(timeoutCtx, job)
		})
		err = errors.Join(err, p.close())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to evaluate")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		status := finalStatus(p)
		logger.Logger.InfoContext(ctx, "evaluated job", "room", job.RoomID(), "status", status)
		if status != types.ResultStatusSuccess {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "job failed")
			return workererrors.ExitErrorWrap(types.ExitFailed, errors.New("job failed"))
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "evaluated successfully")
		return nil
	},
}

// finalStatus is the status of the last result the pipeline published.
func finalStatus(p *pipeline) types.ResultStatus {
	entries := p.recorder.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if result, ok := entries[i].Payload.(types.SubmissionResult); ok {
			return result.Status
		}
	}
	return types.ResultStatusFailed
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateJobFile, "job", "", "Job file, json or yaml (required)")
	evaluateCmd.Flags().BoolVar(&evaluateNoStore, "no-store", false, "Do not save accepted submissions")

	if err := evaluateCmd.MarkFlagRequired("job"); err != nil {
		logger.Logger.Error("error setting flag required", "flag", "job", "error", err)
		os.Exit(types.ExitErrored)
	}
}
