package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RijinRaju/healthcare-translation-backend/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, source_language, target_languages, started_at, status)
		 VALUES ($1, $2, $3, $4, 'running')
		 RETURNING id, source_language, target_languages, started_at, ended_at, status`,
		input.SessionID, input.SourceLanguage, input.TargetLanguages, input.StartedAt)
	var s repository.Session
	var endedAt *time.Time
	err := row.Scan(&s.ID, &s.SourceLanguage, &s.TargetLanguages, &s.StartedAt, &endedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = $2, stop_reason = $3 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.StopReason)
	return err
}

func (r *PostgresRepository) InsertSegment(ctx context.Context, input repository.InsertSegmentInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcript_segments (session_id, seq, content, spoken_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, seq) DO NOTHING`,
		input.SessionID, input.Seq, input.Content, input.SpokenAt)
	return err
}

func (r *PostgresRepository) InsertTranslation(ctx context.Context, input repository.InsertTranslationInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO translations (session_id, seq, language, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, seq, language) DO NOTHING`,
		input.SessionID, input.Seq, input.Language, input.Content)
	return err
}

func (r *PostgresRepository) ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, seq, content, spoken_at, created_at
		 FROM transcript_segments WHERE session_id = $1 ORDER BY seq ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TranscriptSegment
	for rows.Next() {
		var seg repository.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Seq, &seg.Content, &seg.SpokenAt, &seg.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, seg)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) ListTranslationsBySessionID(ctx context.Context, sessionID string) ([]repository.Translation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, seq, language, content, created_at
		 FROM translations WHERE session_id = $1 ORDER BY seq ASC, language ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Translation
	for rows.Next() {
		var tr repository.Translation
		if err := rows.Scan(&tr.ID, &tr.SessionID, &tr.Seq, &tr.Language, &tr.Content, &tr.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, tr)
	}
	return list, rows.Err()
}
