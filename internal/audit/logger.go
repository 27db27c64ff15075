package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
)

// Context identifies the submission an audit line is about. Nil fields are written as null.
type Context struct {
	UserID    *string
	TeamID    *string
	ContestID *string
	ProblemID *string
}

// ContextForJob builds the audit context of a decoded job.
func ContextForJob(job *types.SubmissionJob) Context {
	return Context{
		UserID:    &job.UserID,
		TeamID:    &job.TeamID,
		ContestID: &job.ContestID,
		ProblemID: &job.ProblemID,
	}
}

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stdout
)

// SetOutput redirects audit lines. Returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()

	prev := output
	output = w
	return prev
}

func newMessage(c Context, evtType EventType, disposition Disposition) Message {
	return Message{
		UserID:        c.UserID,
		TeamID:        c.TeamID,
		ContestID:     c.ContestID,
		ProblemID:     c.ProblemID,
		LogContext:    logContext,
		SchemaVersion: schemaVersion,
		Disposition:   disposition,
		Type:          evtType,
		Timestamp:     types.NowUnixMilli(),
	}
}

func emit(evtType EventType, event any) {
	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "eventType", evtType, "error", err)
		return
	}

	outputMu.Lock()
	defer outputMu.Unlock()
	fmt.Fprintln(output, string(evtStr))
}

func LogSubmissionEvaluated(
	c Context,
	languageID string,
	outcome types.AggregateOutcome,
	fault error,
) {
	event := SubmissionEvaluated{}
	disposition := DispositionGood
	if outcome.Status != types.ResultStatusSuccess {
		disposition = DispositionBad
	}
	event.Message = newMessage(c, EvtSubmissionEvaluated, disposition)

	event.Event.LanguageID = languageID
	event.Event.Status = outcome.Status
	event.Event.TestsPassed = outcome.TestsPassed
	event.Event.TestsTotal = outcome.TestsTotal
	event.Event.AvgExecutionTime = outcome.AvgExecutionTime
	event.Event.AvgMemory = outcome.AvgMemory
	if fault != nil {
		msg := fault.Error()
		event.Event.Fault = &msg
	}

	emit(EvtSubmissionEvaluated, event)
}

// Jobs that failed decoding. Whatever ids could be recovered go in c.
func LogSubmissionRejected(c Context, reason string) {
	event := SubmissionRejected{}
	event.Message = newMessage(c, EvtSubmissionRejected, DispositionBad)
	event.Event.Reason = reason

	emit(EvtSubmissionRejected, event)
}

func LogTranscriptArchived(c Context, storeName, objectName string) {
	event := TranscriptArchived{}
	event.Message = newMessage(c, EvtTranscriptArchived, DispositionNeutral)
	event.Event.StoreName = storeName
	event.Event.ObjectName = objectName

	emit(EvtTranscriptArchived, event)
}
