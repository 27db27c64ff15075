package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/inacomp/submission-judge/internal/store")

var ErrNotFound = errors.New("record not found")

//go:generate mockgen -destination ./mock/mock.go -package mock . Store

// Persists accepted submissions
type Store interface {
	// Insert or update the record for (team, contest, problem). Safe to call concurrently for the
	// same key.
	SaveAccepted(ctx context.Context, record *Record) error
	Find(ctx context.Context, teamID, contestID, problemID string) (*Record, error)
}

// Derived from gorm.Model
type Model struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        uuid.UUID `gorm:"primaryKey;default:uuidv7_sub_ms()"`
}

// One accepted solution per team, contest and problem
type Record struct {
	Model
	TeamID string
	// The contest id. The column name is kept for existing consumers of the table.
	SubmissionID  string
	ProblemID     string
	UserID        string
	LanguageID    int
	Success       bool
	Code          string
	ExecutionTime float64
	Memory        int
}

func (Record) TableName() string {
	return "submission_problem"
}

var conflictColumns = []clause.Column{
	{Name: "team_id"},
	{Name: "submission_id"},
	{Name: "problem_id"},
}

var updateColumns = []string{
	"user_id",
	"language_id",
	"success",
	"code",
	"execution_time",
	"memory",
}

type GormStore struct {
	db *gorm.DB
}

// Ensure GormStore implements Store interface.
var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveAccepted(ctx context.Context, record *Record) error {
	ctx, span := tracer.Start(ctx, "GormStore.SaveAccepted", trace.WithAttributes(
		attribute.String("team.id", record.TeamID),
		attribute.String("contest.id", record.SubmissionID),
		attribute.String("problem.id", record.ProblemID),
	))
	defer span.End()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   conflictColumns,
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).Create(record).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save accepted submission")
		return fmt.Errorf("failed to save accepted submission: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved accepted submission")
	return nil
}

func (s *GormStore) Find(ctx context.Context, teamID, contestID, problemID string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "GormStore.Find", trace.WithAttributes(
		attribute.String("team.id", teamID),
		attribute.String("contest.id", contestID),
		attribute.String("problem.id", problemID),
	))
	defer span.End()

	var record Record
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND submission_id = ? AND problem_id = ?", teamID, contestID, problemID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "no record")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find record")
		return nil, fmt.Errorf("failed to find record: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found record")
	return &record, nil
}

// Ensure Discard implements Store interface.
var _ Store = Discard{}

// Discard accepts every save and finds nothing. Used when evaluating job files without a
// database.
type Discard struct{}

func (Discard) SaveAccepted(context.Context, *Record) error {
	return nil
}

func (Discard) Find(context.Context, string, string, string) (*Record, error) {
	return nil, ErrNotFound
}
