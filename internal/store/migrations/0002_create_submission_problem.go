package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0002, Down0002)
}

func Up0002(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE submission_problem (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	team_id TEXT NOT NULL,
	submission_id TEXT NOT NULL,
	problem_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	language_id INTEGER NOT NULL,
	success BOOLEAN NOT NULL DEFAULT false,
	code TEXT NOT NULL,
	execution_time DOUBLE PRECISION NOT NULL DEFAULT 0,
	memory INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);

CREATE UNIQUE INDEX submission_problem_team_submission_problem_idx
	ON submission_problem (team_id, submission_id, problem_id);
`)

	return err
}

func Down0002(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE submission_problem;`)
	return err
}
