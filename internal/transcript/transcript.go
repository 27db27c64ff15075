// Package transcript records the events published for a job and archives them to object storage.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/audit"
	"github.com/inacomp/submission-judge/internal/events"
	"github.com/inacomp/submission-judge/internal/types"
	"github.com/inacomp/submission-judge/internal/upload"
)

var tracer = otel.Tracer("github.com/inacomp/submission-judge/internal/transcript")

type (
	Entry struct {
		Event     string          `json:"event"`
		Payload   any             `json:"payload"`
		Timestamp types.UnixMilli `json:"timestamp"`
	}

	Transcript struct {
		UserID     string                 `json:"userId"`
		TeamID     string                 `json:"teamId"`
		ContestID  string                 `json:"contestId"`
		ProblemID  string                 `json:"problemId"`
		LanguageID string                 `json:"languageId"`
		Code       string                 `json:"code"`
		Outcome    types.AggregateOutcome `json:"outcome"`
		Events     []Entry                `json:"events"`
	}
)

// Ensure Recorder implements Publisher interface.
var _ events.Publisher = (*Recorder)(nil)

// Recorder keeps a copy of every event before handing it to the wrapped publisher. Events are
// recorded even when the wrapped publisher fails.
type Recorder struct {
	publisher events.Publisher

	mu      sync.Mutex
	entries []Entry
}

func NewRecorder(publisher events.Publisher) *Recorder {
	return &Recorder{publisher: publisher}
}

func (r *Recorder) Publish(ctx context.Context, roomID string, event string, payload any) error {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{
		Event:     event,
		Payload:   payload,
		Timestamp: types.NowUnixMilli(),
	})
	r.mu.Unlock()

	return r.publisher.Publish(ctx, roomID, event, payload)
}

// Entries returns a copy of the recorded events in publish order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

type Archiver struct {
	uploader upload.Uploader
	prefix   string
}

func NewArchiver(uploader upload.Uploader, prefix string) *Archiver {
	return &Archiver{
		uploader: uploader,
		prefix:   prefix,
	}
}

// Archive uploads the transcript of job under `prefix/team/contest/problem/<sha256>.json` and
// writes a transcript_archived audit line. Returns the object key.
func (a *Archiver) Archive(
	ctx context.Context,
	job *types.SubmissionJob,
	outcome types.AggregateOutcome,
	entries []Entry,
) (string, error) {
	ctx, span := tracer.Start(ctx, "Archiver.Archive", trace.WithAttributes(
		attribute.String("room.id", job.RoomID()),
		attribute.Int("events", len(entries)),
	))
	defer span.End()

	body, err := json.Marshal(Transcript{
		UserID:     job.UserID,
		TeamID:     job.TeamID,
		ContestID:  job.ContestID,
		ProblemID:  job.ProblemID,
		LanguageID: job.LanguageID.String(),
		Code:       job.Code,
		Outcome:    outcome,
		Events:     entries,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal transcript")
		return "", err
	}

	reader := bytes.NewReader(body)
	key, err := upload.Hashed(
		ctx,
		a.uploader,
		path.Join(a.prefix, job.TeamID, job.ContestID, job.ProblemID),
		".json",
		reader,
		reader.Size(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload transcript")
		return "", err
	}

	storeName, err := a.uploader.StoreIdentifier(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get store identifier")
		return "", err
	}

	audit.LogTranscriptArchived(audit.ContextForJob(job), storeName, key)

	span.SetAttributes(attribute.String("key", key))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived transcript")
	return key, nil
}
