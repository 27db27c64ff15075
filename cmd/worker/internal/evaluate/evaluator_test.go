package evaluate_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/inacomp/submission-judge/cmd/worker/internal/evaluate"
	"github.com/inacomp/submission-judge/internal/audit"
	mockevents "github.com/inacomp/submission-judge/internal/events/mock"
	"github.com/inacomp/submission-judge/internal/judge"
	mockjudge "github.com/inacomp/submission-judge/internal/judge/mock"
	"github.com/inacomp/submission-judge/internal/store"
	mockstore "github.com/inacomp/submission-judge/internal/store/mock"
	"github.com/inacomp/submission-judge/internal/transcript"
	"github.com/inacomp/submission-judge/internal/types"
	mockuploader "github.com/inacomp/submission-judge/internal/upload/mock"
)

const roomID = "u1:p1"

type published struct {
	event   string
	payload any
}

type harness struct {
	judge     *mockjudge.MockClient
	publisher *mockevents.MockPublisher
	store     *mockstore.MockStore
	events    *[]published
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	prev := audit.SetOutput(io.Discard)
	t.Cleanup(func() { audit.SetOutput(prev) })

	ctrl := gomock.NewController(t)
	h := &harness{
		judge:     mockjudge.NewMockClient(ctrl),
		publisher: mockevents.NewMockPublisher(ctrl),
		store:     mockstore.NewMockStore(ctrl),
		events:    &[]published{},
	}

	// Like the redis and websocket publishers, nothing goes out on a finished context.
	h.publisher.EXPECT().
		Publish(gomock.Any(), roomID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, event string, payload any) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			*h.events = append(*h.events, published{event: event, payload: payload})
			return nil
		}).
		AnyTimes()

	return h
}

func (h *harness) evaluator(t *testing.T, maxWait time.Duration, opts ...evaluate.Option) *evaluate.Evaluator {
	t.Helper()

	e, err := evaluate.NewEvaluator(h.judge, h.publisher, h.store, maxWait, opts...)
	require.NoError(t, err, "failed to create evaluator")
	return e
}

// logs returns the published log entries, filtered to logType when it is not empty.
func (h *harness) logs(logType types.LogType) []string {
	var out []string
	for _, p := range *h.events {
		if p.event != types.EventSubmissionLog {
			continue
		}
		log := p.payload.(types.SubmissionLog)
		if logType == "" || log.Log.Type == logType {
			out = append(out, log.Log.Message)
		}
	}
	return out
}

func (h *harness) results() []types.ResultStatus {
	var out []types.ResultStatus
	for _, p := range *h.events {
		if p.event == types.EventSubmissionResult {
			out = append(out, p.payload.(types.SubmissionResult).Status)
		}
	}
	return out
}

// judges queues one submit and one result per outcome, in order.
func (h *harness) judges(outcomes ...*types.ExecutionOutcome) {
	var prev *gomock.Call
	for i, outcome := range outcomes {
		token := string(rune('a' + i))

		submit := h.judge.EXPECT().
			Submit(gomock.Any(), gomock.Any(), "15").
			Return(token, nil).
			Times(1)
		if prev != nil {
			submit.After(prev)
		}
		prev = h.judge.EXPECT().
			AwaitResult(gomock.Any(), token).
			Return(outcome, nil).
			Times(1).
			After(submit)
	}
}

func newJob(testCases ...types.TestCase) *types.SubmissionJob {
	return &types.SubmissionJob{
		UserID:       "u1",
		TeamID:       "t1",
		ContestID:    "c1",
		ProblemID:    "p1",
		FunctionName: "add",
		LanguageID:   "15",
		Code:         "function add(a, b) { return a + b }",
		TestCases:    testCases,
	}
}

func accepted(stdout string, seconds float64, memory int) *types.ExecutionOutcome {
	return &types.ExecutionOutcome{
		Status:   types.JudgeStatusAccepted,
		StatusID: 3,
		Stdout:   stdout,
		Time:     seconds,
		Memory:   memory,
	}
}

func TestEvaluateMismatch(t *testing.T) {
	h := newHarness(t)
	h.judges(accepted("3", 0.01, 100), accepted("8", 0.01, 100))
	h.store.EXPECT().SaveAccepted(gomock.Any(), gomock.Any()).Times(0)

	job := newJob(
		types.TestCase{Input: "1, 2", Output: "3"},
		types.TestCase{Input: "3, 4", Output: "7"},
	)
	require.NoError(t, h.evaluator(t, time.Minute).Evaluate(context.Background(), job))

	assert.Equal(t, []string{
		"Starting test execution...",
		"Running Test Case 1...",
		"✅ Test Case 1 Passed",
		"Running Test Case 2...",
		"❌ Test Case 2 Failed: expected 7 but got 8 (raw output: 8)",
	}, h.logs(""))
	assert.Len(t, h.logs(types.LogTypeSuccess), 1)
	assert.Len(t, h.logs(types.LogTypeError), 1)
	assert.Equal(t, []types.ResultStatus{types.ResultStatusFailed}, h.results())
}

func TestEvaluateAllPassed(t *testing.T) {
	h := newHarness(t)
	h.judges(
		accepted("3", 0.01, 1000),
		accepted("7", 0.02, 1001),
		accepted("11", 0.025, 1003),
	)

	var saved *store.Record
	h.store.EXPECT().
		SaveAccepted(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *store.Record) error {
			saved = r
			return nil
		}).
		Times(1)

	job := newJob(
		types.TestCase{Input: "1, 2", Output: "3"},
		types.TestCase{Input: "3, 4", Output: "7"},
		types.TestCase{Input: "5, 6", Output: "11"},
	)
	require.NoError(t, h.evaluator(t, time.Minute).Evaluate(context.Background(), job))

	assert.Equal(t, []string{
		"✅ Test Case 1 Passed",
		"✅ Test Case 2 Passed",
		"✅ Test Case 3 Passed",
	}, h.logs(types.LogTypeSuccess))
	assert.Empty(t, h.logs(types.LogTypeError))
	assert.Equal(t, []types.ResultStatus{types.ResultStatusSuccess}, h.results())

	require.NotNil(t, saved, "accepted submission was not saved")
	assert.Equal(t, "t1", saved.TeamID)
	assert.Equal(t, "c1", saved.SubmissionID)
	assert.Equal(t, "p1", saved.ProblemID)
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, 15, saved.LanguageID)
	assert.True(t, saved.Success)
	assert.Equal(t, job.Code, saved.Code)
	assert.InDelta(t, 0.01833, saved.ExecutionTime, 1e-9)
	assert.Equal(t, 1001, saved.Memory)
}

func TestEvaluateCompileError(t *testing.T) {
	h := newHarness(t)
	h.judges(&types.ExecutionOutcome{
		Status:        types.JudgeStatusCompileError,
		StatusID:      6,
		CompileOutput: "SyntaxError: Unexpected token",
	})
	h.store.EXPECT().SaveAccepted(gomock.Any(), gomock.Any()).Times(0)

	job := newJob(
		types.TestCase{Input: "1, 2", Output: "3"},
		types.TestCase{Input: "3, 4", Output: "7"},
	)
	require.NoError(t, h.evaluator(t, time.Minute).Evaluate(context.Background(), job))

	assert.Equal(t, []string{"❌ Error: SyntaxError: Unexpected token"}, h.logs(types.LogTypeError))
	assert.NotContains(t, h.logs(types.LogTypeInfo), "Running Test Case 2...")
	assert.Equal(t, []types.ResultStatus{types.ResultStatusFailed}, h.results())
}

func TestEvaluateFault(t *testing.T) {
	t.Run("SubmitFails", func(t *testing.T) {
		h := newHarness(t)
		h.judge.EXPECT().
			Submit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", errors.New("connection refused")).
			Times(1)
		h.judge.EXPECT().AwaitResult(gomock.Any(), gomock.Any()).Times(0)
		h.store.EXPECT().SaveAccepted(gomock.Any(), gomock.Any()).Times(0)

		job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
		require.NoError(t, h.evaluator(t, time.Minute).Evaluate(context.Background(), job))

		assert.Equal(t, []string{"Error in test case 1: connection refused"}, h.logs(types.LogTypeError))
		assert.Equal(t, []types.ResultStatus{types.ResultStatusFailed}, h.results())
	})

	t.Run("EmptyMessage", func(t *testing.T) {
		h := newHarness(t)
		h.judge.EXPECT().
			Submit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", errors.New("")).
			Times(1)

		job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
		require.NoError(t, h.evaluator(t, time.Minute).Evaluate(context.Background(), job))

		assert.Equal(t, []string{"Error in test case 1: Unknown error"}, h.logs(types.LogTypeError))
	})

	t.Run("PollTimeout", func(t *testing.T) {
		h := newHarness(t)
		h.judge.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("a", nil).Times(1)
		h.judge.EXPECT().
			AwaitResult(gomock.Any(), "a").
			DoAndReturn(func(ctx context.Context, _ string) (*types.ExecutionOutcome, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}).
			Times(1)

		job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
		require.NoError(t, h.evaluator(t, 20*time.Millisecond).Evaluate(context.Background(), job))

		assert.Equal(t,
			[]string{"Error in test case 1: " + judge.ErrPollTimeout.Error()},
			h.logs(types.LogTypeError),
		)
		assert.Equal(t, []types.ResultStatus{types.ResultStatusFailed}, h.results())
	})

	t.Run("Cancelled", func(t *testing.T) {
		h := newHarness(t)

		ctx, cancel := context.WithCancel(context.Background())
		h.judge.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("a", nil).Times(1)
		h.judge.EXPECT().
			AwaitResult(gomock.Any(), "a").
			DoAndReturn(func(ctx context.Context, _ string) (*types.ExecutionOutcome, error) {
				cancel()
				return nil, ctx.Err()
			}).
			Times(1)

		job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
		err := h.evaluator(t, time.Minute).Evaluate(ctx, job)
		require.ErrorIs(t, err, context.Canceled, "cancelled jobs should be handed back for redelivery")

		assert.Equal(t,
			[]string{"Error in test case 1: " + context.Canceled.Error()},
			h.logs(types.LogTypeError),
		)
		assert.Equal(t, []types.ResultStatus{types.ResultStatusFailed}, h.results(),
			"cancelled jobs still publish a verdict")
	})

	t.Run("JobDeadline", func(t *testing.T) {
		h := newHarness(t)
		h.judge.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("a", nil).Times(1)
		h.judge.EXPECT().
			AwaitResult(gomock.Any(), "a").
			DoAndReturn(func(ctx context.Context, _ string) (*types.ExecutionOutcome, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}).
			Times(1)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
		require.NoError(t, h.evaluator(t, time.Minute).Evaluate(ctx, job),
			"a job that ran out of time is finished, not redelivered")

		assert.Equal(t, []string{"Starting test execution...", "Running Test Case 1..."}, h.logs(types.LogTypeInfo))
		assert.Equal(t,
			[]string{"Error in test case 1: " + context.DeadlineExceeded.Error()},
			h.logs(types.LogTypeError),
			"the fault is logged after the job deadline",
		)
		assert.Equal(t, []types.ResultStatus{types.ResultStatusFailed}, h.results())
	})
}

func TestEvaluateStoreFails(t *testing.T) {
	h := newHarness(t)
	h.judges(accepted("3", 0.01, 100))

	expected := errors.New("database is down")
	h.store.EXPECT().SaveAccepted(gomock.Any(), gomock.Any()).Return(expected).Times(1)

	job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
	err := h.evaluator(t, time.Minute).Evaluate(context.Background(), job)
	require.ErrorIs(t, err, expected)

	assert.Equal(t, []types.ResultStatus{types.ResultStatusSuccess}, h.results())
}

func TestEvaluatePublishFails(t *testing.T) {
	prev := audit.SetOutput(io.Discard)
	t.Cleanup(func() { audit.SetOutput(prev) })

	ctrl := gomock.NewController(t)
	judgeClient := mockjudge.NewMockClient(ctrl)
	publisher := mockevents.NewMockPublisher(ctrl)
	resultStore := mockstore.NewMockStore(ctrl)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("relay down")).
		AnyTimes()
	judgeClient.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("a", nil).Times(1)
	judgeClient.EXPECT().AwaitResult(gomock.Any(), "a").Return(accepted("3", 0.01, 100), nil).Times(1)
	resultStore.EXPECT().SaveAccepted(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	e, err := evaluate.NewEvaluator(judgeClient, publisher, resultStore, time.Minute)
	require.NoError(t, err)

	job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
	require.NoError(t, e.Evaluate(context.Background(), job), "publish failures must not change the verdict")
}

func TestEvaluateArchivesTranscript(t *testing.T) {
	h := newHarness(t)
	h.judges(accepted("3", 0.01, 100))
	h.store.EXPECT().SaveAccepted(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	uploader := mockuploader.NewMockUploader(gomock.NewController(t))

	var uploaded transcript.Transcript
	uploader.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil).Times(1)
	uploader.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r io.ReadSeeker, _ int64, _ string) error {
			return json.NewDecoder(r).Decode(&uploaded)
		}).
		Times(1)
	uploader.EXPECT().StoreIdentifier(gomock.Any()).Return("transcripts", nil).Times(1)

	e := h.evaluator(t, time.Minute, evaluate.WithArchiver(transcript.NewArchiver(uploader, "archive")))

	job := newJob(types.TestCase{Input: "1, 2", Output: "3"})
	require.NoError(t, e.Evaluate(context.Background(), job))

	assert.Equal(t, types.ResultStatusSuccess, uploaded.Outcome.Status)
	assert.Equal(t, 1, uploaded.Outcome.TestsPassed)
	require.Len(t, uploaded.Events, len(*h.events), "every published event should be archived")
	assert.Equal(t, types.EventSubmissionResult, uploaded.Events[len(uploaded.Events)-1].Event)
}
