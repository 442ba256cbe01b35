package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

// Store keeps course chunks in Postgres with the pgvector extension,
// as a self-hosted alternative to the managed index. Cosine distance
// drives similarity ordering.
type Store struct {
	db         *sql.DB
	dimensions int
}

func NewStore(db *sql.DB, dimensions int) *Store {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &Store{db: db, dimensions: dimensions}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("ensure vector extension: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS course_chunks (
	id TEXT PRIMARY KEY,
	course_name TEXT NOT NULL,
	document_name TEXT NOT NULL,
	module_name TEXT,
	page_number INTEGER NOT NULL DEFAULT 0,
	chunk_timestamp TEXT,
	content TEXT NOT NULL,
	chunk_type TEXT,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_course_chunks_course ON course_chunks(course_name);
`, s.dimensions)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []domain.ChunkPoint) error {
	for _, p := range points {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO course_chunks (
	id, course_name, document_name, module_name, page_number, chunk_timestamp, content, chunk_type, chunk_index, embedding
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
	course_name = EXCLUDED.course_name,
	document_name = EXCLUDED.document_name,
	module_name = EXCLUDED.module_name,
	page_number = EXCLUDED.page_number,
	chunk_timestamp = EXCLUDED.chunk_timestamp,
	content = EXCLUDED.content,
	chunk_type = EXCLUDED.chunk_type,
	chunk_index = EXCLUDED.chunk_index,
	embedding = EXCLUDED.embedding
`,
			p.ID, p.CourseName, p.Chunk.DocumentName, p.Chunk.ModuleName, p.Chunk.PageNumber,
			p.Chunk.Timestamp, p.Chunk.Content, p.Chunk.Type, p.Chunk.ChunkIndex,
			pgv.NewVector(p.Vector),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, courseName string, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT content, document_name, COALESCE(module_name, ''), page_number, COALESCE(chunk_timestamp, ''),
	1 - (embedding <=> $1) AS score, COALESCE(chunk_type, ''), chunk_index
FROM course_chunks
WHERE course_name = $2
ORDER BY embedding <=> $1
LIMIT $3
`, pgv.NewVector(vector), courseName, topK)
	if err != nil {
		return nil, fmt.Errorf("query course chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.RetrievedChunk
	for rows.Next() {
		var c domain.RetrievedChunk
		if err := rows.Scan(&c.Content, &c.DocumentName, &c.ModuleName, &c.PageNumber, &c.Timestamp, &c.Score, &c.Type, &c.ChunkIndex); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return chunks, nil
}

var _ ports.VectorStore = (*Store)(nil)
