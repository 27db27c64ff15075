package audit

import (
	"github.com/inacomp/submission-judge/internal/types"
)

var schemaVersion = "1.0.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type EventType string

const (
	EvtSubmissionEvaluated EventType = "submission_evaluated"
	EvtSubmissionRejected  EventType = "submission_rejected"
	EvtTranscriptArchived  EventType = "transcript_archived"
)

type Message struct {
	UserID        *string     `json:"user_id"`
	TeamID        *string     `json:"team_id"`
	ContestID     *string     `json:"contest_id"`
	ProblemID     *string     `json:"problem_id"`
	LogContext    string      `json:"log_context" validate:"required"`
	SchemaVersion string      `json:"version"     validate:"required"`
	Disposition   Disposition `json:"disposition" validate:"required"`
	Type          EventType   `json:"event_type"  validate:"required"`

	Timestamp types.UnixMilli `json:"timestamp" validate:"required"`
}

type SubmissionEvaluatedEvent struct {
	LanguageID       string             `json:"language_id"        validate:"required"`
	Status           types.ResultStatus `json:"status"             validate:"required"`
	TestsPassed      int                `json:"tests_passed"`
	TestsTotal       int                `json:"tests_total"        validate:"required"`
	AvgExecutionTime float64            `json:"avg_execution_time"`
	AvgMemory        int                `json:"avg_memory"`
	// Set when the job stopped on a judge or transport fault rather than a verdict
	Fault *string `json:"fault,omitempty"`
}

type SubmissionEvaluated struct {
	Event SubmissionEvaluatedEvent `json:"event" validate:"required"`
	Message
}

type SubmissionRejectedEvent struct {
	Reason string `json:"reason" validate:"required"`
}

type SubmissionRejected struct {
	Event SubmissionRejectedEvent `json:"event" validate:"required"`
	Message
}

type TranscriptArchivedEvent struct {
	StoreName  string `json:"store_name"  validate:"required"`
	ObjectName string `json:"object_name" validate:"required"`
}

type TranscriptArchived struct {
	Event TranscriptArchivedEvent `json:"event" validate:"required"`
	Message
}
