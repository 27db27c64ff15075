package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/cmd/worker/internal/progress"
	"github.com/inacomp/submission-judge/internal/audit"
	"github.com/inacomp/submission-judge/internal/codegen"
	"github.com/inacomp/submission-judge/internal/events"
	"github.com/inacomp/submission-judge/internal/judge"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/normalize"
	"github.com/inacomp/submission-judge/internal/store"
	"github.com/inacomp/submission-judge/internal/transcript"
	"github.com/inacomp/submission-judge/internal/types"
)

const instrumentationName = "github.com/inacomp/submission-judge/cmd/worker/internal/evaluate"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

const unknownError = "Unknown error"

type Evaluator struct {
	judge     judge.Client
	publisher events.Publisher
	store     store.Store
	archiver  *transcript.Archiver
	maxWait   time.Duration

	jobs     metric.Int64Counter
	duration metric.Float64Histogram
}

type Option func(*Evaluator)

// WithArchiver uploads a transcript of every evaluated job.
func WithArchiver(archiver *transcript.Archiver) Option {
	return func(e *Evaluator) {
		e.archiver = archiver
	}
}

// maxWait bounds the result polling of a single test case.
func NewEvaluator(
	judgeClient judge.Client,
	publisher events.Publisher,
	resultStore store.Store,
	maxWait time.Duration,
	opts ...Option,
) (*Evaluator, error) {
	jobs, err := meter.Int64Counter(
		"evaluate.jobs",
		metric.WithDescription("Jobs evaluated, by result status"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"evaluate.job.duration",
		metric.WithDescription("Wall time spent evaluating a job"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		judge:     judgeClient,
		publisher: publisher,
		store:     resultStore,
		maxWait:   maxWait,
		jobs:      jobs,
		duration:  duration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs every test case of job in order and publishes the verdict to the job's room.
// Errors are returned only when an accepted submission could not be persisted or when ctx was
// cancelled mid-job, so the job source can deliver the job again.
func (e *Evaluator) Evaluate(ctx context.Context, job *types.SubmissionJob) error {
	ctx, span := tracer.Start(ctx, "Evaluator.Evaluate", trace.WithAttributes(
		attribute.String("room.id", job.RoomID()),
		attribute.String("team.id", job.TeamID),
		attribute.String("contest.id", job.ContestID),
		attribute.String("language.id", job.LanguageID.String()),
		attribute.Int("test_cases", len(job.TestCases)),
	))
	defer span.End()

	start := time.Now()

	publisher := e.publisher
	var recorder *transcript.Recorder
	if e.archiver != nil {
		recorder = transcript.NewRecorder(publisher)
		publisher = recorder
	}
	reporter := progress.NewReporter(job.RoomID(), publisher)

	outcome, fault := e.run(ctx, job, reporter)

	var interrupted error
	if errors.Is(ctx.Err(), context.Canceled) {
		interrupted = fmt.Errorf("evaluation interrupted: %w", ctx.Err())
	}

	// Subscribers must get a verdict even when the job was cancelled
	ctx = context.WithoutCancel(ctx)

	e.report(ctx, reporter.Result(ctx, outcome.Status))

	var saveErr error
	if outcome.Status == types.ResultStatusSuccess {
		saveErr = e.save(ctx, job, outcome)
	}

	audit.LogSubmissionEvaluated(audit.ContextForJob(job), job.LanguageID.String(), outcome, fault)

	if recorder != nil {
		if _, err := e.archiver.Archive(ctx, job, outcome, recorder.Entries()); err != nil {
			logger.Logger.ErrorContext(ctx, "failed to archive transcript",
				"room", job.RoomID(),
				"error", err,
			)
		}
	}

	status := attribute.String("status", string(outcome.Status))
	e.jobs.Add(ctx, 1, metric.WithAttributes(status))
	e.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(status))

	span.SetAttributes(
		attribute.String("result.status", string(outcome.Status)),
		attribute.Int("tests_passed", outcome.TestsPassed),
	)

	if saveErr != nil {
		span.RecordError(saveErr)
		span.SetStatus(codes.Error, "failed to save accepted submission")
		return saveErr
	}
	if interrupted != nil {
		span.RecordError(interrupted)
		span.SetStatus(codes.Error, "evaluation interrupted")
		return interrupted
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "evaluated job")
	return nil
}

// run stops at the first failing test case. The returned error is the fault that stopped it, if
// any; wrong answers and judge verdicts are not faults.
func (e *Evaluator) run(
	ctx context.Context,
	job *types.SubmissionJob,
	reporter *progress.Reporter,
) (types.AggregateOutcome, error) {
	ctx, span := tracer.Start(ctx, "Evaluator.run")
	defer span.End()

	outcome := types.AggregateOutcome{
		Status:     types.ResultStatusFailed,
		TestsTotal: len(job.TestCases),
	}

	e.report(ctx, reporter.Info(ctx, "Starting test execution..."))

	// Failure logs go out even when ctx ended the job
	final := context.WithoutCancel(ctx)

	var totalTime float64
	var totalMemory int
	for i, testCase := range job.TestCases {
		n := i + 1
		e.report(ctx, reporter.Info(ctx, fmt.Sprintf("Running Test Case %d...", n)))

		result, err := e.execute(ctx, job, testCase)
		if err != nil {
			message := err.Error()
			if message == "" {
				message = unknownError
			}
			e.report(final, reporter.Error(final, fmt.Sprintf("Error in test case %d: %s", n, message)))

			span.RecordError(err)
			span.SetStatus(codes.Error, "test case faulted")
			return outcome, err
		}

		if result.Status != types.JudgeStatusAccepted {
			e.report(final, reporter.Error(final, "❌ Error: "+result.FirstOutput()))

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "judge rejected test case")
			return outcome, nil
		}

		languageID := job.LanguageID.String()
		if !normalize.Equivalent(result.Stdout, testCase.Output, languageID) {
			e.report(final, reporter.Error(final, fmt.Sprintf(
				"❌ Test Case %d Failed: expected %s but got %s (raw output: %s)",
				n,
				strings.TrimSpace(testCase.Output),
				normalize.Normalize(result.Stdout, testCase.Output, languageID),
				result.Stdout,
			)))

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "test case output mismatch")
			return outcome, nil
		}

		e.report(ctx, reporter.Success(ctx, fmt.Sprintf("✅ Test Case %d Passed", n)))
		outcome.TestsPassed++
		totalTime += result.Time
		totalMemory += result.Memory
	}

	if count := len(job.TestCases); count > 0 {
		outcome.AvgExecutionTime = roundTo(totalTime/float64(count), 5)
		outcome.AvgMemory = totalMemory / count
	}
	outcome.Status = types.ResultStatusSuccess

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "all test cases passed")
	return outcome, nil
}

func (e *Evaluator) execute(
	ctx context.Context,
	job *types.SubmissionJob,
	testCase types.TestCase,
) (*types.ExecutionOutcome, error) {
	ctx, span := tracer.Start(ctx, "Evaluator.execute")
	defer span.End()

	languageID := job.LanguageID.String()
	program := codegen.Generate(job.Code, job.FunctionName, testCase.Input, languageID)

	token, err := e.judge.Submit(ctx, program, languageID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit program")
		return nil, err
	}
	span.SetAttributes(attribute.String("judge.token", token))

	waitCtx, cancel := context.WithTimeout(ctx, e.maxWait)
	defer cancel()

	result, err := e.judge.AwaitResult(waitCtx, token)
	if err != nil {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			err = judge.ErrPollTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get result")
		return nil, err
	}

	span.SetAttributes(attribute.String("judge.status", string(result.Status)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "executed test case")
	return result, nil
}

func (e *Evaluator) save(
	ctx context.Context,
	job *types.SubmissionJob,
	outcome types.AggregateOutcome,
) error {
	languageID, err := job.LanguageID.Int()
	if err != nil {
		return fmt.Errorf("language id %q is not numeric: %w", job.LanguageID, err)
	}

	err = e.store.SaveAccepted(ctx, &store.Record{
		TeamID:        job.TeamID,
		SubmissionID:  job.ContestID,
		ProblemID:     job.ProblemID,
		UserID:        job.UserID,
		LanguageID:    languageID,
		Success:       true,
		Code:          job.Code,
		ExecutionTime: outcome.AvgExecutionTime,
		Memory:        outcome.AvgMemory,
	})
	if err != nil {
		return fmt.Errorf("failed to save accepted submission: %w", err)
	}
	return nil
}

// Publishing is best effort.
func (e *Evaluator) report(ctx context.Context, err error) {
	if err != nil {
		logger.Logger.WarnContext(ctx, "failed to publish event", "error", err)
	}
}

func roundTo(f float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(f*scale) / scale
}
