package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

// Repository persists finished tutoring turns for later analysis.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OpenDB opens a pgx stdlib connection pool with conservative limits.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	degree TEXT,
	major TEXT,
	course TEXT NOT NULL,
	source_type TEXT NOT NULL,
	question TEXT NOT NULL,
	response_1 TEXT,
	score_1 DOUBLE PRECISION,
	response_2 TEXT,
	score_2 DOUBLE PRECISION,
	response_3 TEXT,
	score_3 DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interactions_student ON interactions(student_id);
CREATE INDEX IF NOT EXISTS idx_interactions_course ON interactions(course);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *Repository) LogInteraction(ctx context.Context, record domain.InteractionRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO interactions (
	id, student_id, degree, major, course, source_type, question,
	response_1, score_1, response_2, score_2, response_3, score_3, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		record.ID, record.StudentID, record.Degree, record.Major, record.Course,
		record.SourceType, record.Question,
		record.Response1, record.Score1, record.Response2, record.Score2,
		record.Response3, record.Score3, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interaction %s: %w", record.ID, err)
	}
	return nil
}

var _ ports.InteractionLogger = (*Repository)(nil)
