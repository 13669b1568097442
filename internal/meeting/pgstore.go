package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed meeting store, used when DATABASE_URL is
// configured. Same retention contract as the file store: at most retain
// records survive each append.
type PGStore struct {
	pool   *pgxpool.Pool
	retain int
}

const meetingsSchema = `
CREATE TABLE IF NOT EXISTS meetings (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	start_time           TIMESTAMPTZ NOT NULL,
	end_time             TIMESTAMPTZ NOT NULL,
	duration             INT NOT NULL,
	speaker_count        INT NOT NULL,
	language             TEXT NOT NULL,
	conversation         TEXT NOT NULL,
	summary              TEXT,
	analysis             TEXT,
	phrase_count         INT NOT NULL,
	last_phrase          TEXT NOT NULL,
	summary_generated    BOOLEAN NOT NULL DEFAULT FALSE,
	summary_generated_at TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPGStore connects to databaseURL, ensures the meetings table exists,
// and returns the store.
func NewPGStore(ctx context.Context, databaseURL string, retain int) (*PGStore, error) {
	if retain <= 0 {
		retain = 100
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, meetingsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure meetings table: %w", err)
	}

	return &PGStore{pool: pool, retain: retain}, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meetings (id, title, start_time, end_time, duration, speaker_count,
			language, conversation, summary, analysis, phrase_count, last_phrase,
			summary_generated, summary_generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rec.ID, rec.Title, rec.StartTime, rec.EndTime, rec.Duration, rec.SpeakerCount,
		rec.Language, rec.Conversation, rec.Summary, rec.Analysis, rec.PhraseCount,
		rec.LastPhrase, rec.SummaryGenerated, rec.SummaryGeneratedAt)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}

	// Trim-on-write: drop everything older than the newest retain rows.
	_, err = s.pool.Exec(ctx, `
		DELETE FROM meetings
		WHERE id NOT IN (
			SELECT id FROM meetings ORDER BY created_at DESC LIMIT $1
		)
	`, s.retain)
	if err != nil {
		return fmt.Errorf("trim meetings: %w", err)
	}
	return nil
}

const selectColumns = `id, title, start_time, end_time, duration, speaker_count,
	language, conversation, summary, analysis, phrase_count, last_phrase,
	summary_generated, summary_generated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Title, &rec.StartTime, &rec.EndTime, &rec.Duration,
		&rec.SpeakerCount, &rec.Language, &rec.Conversation, &rec.Summary, &rec.Analysis,
		&rec.PhraseCount, &rec.LastPhrase, &rec.SummaryGenerated, &rec.SummaryGeneratedAt)
	return rec, err
}

func (s *PGStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+` FROM meetings ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+selectColumns+` FROM meetings WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrMeetingNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get meeting: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

func (s *PGStore) AttachSummary(ctx context.Context, id, summary, analysis string) (Record, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE meetings
		SET summary = $2, analysis = $3, summary_generated = TRUE, summary_generated_at = $4
		WHERE id = $1
	`, id, summary, analysis, now)
	if err != nil {
		return Record{}, fmt.Errorf("attach summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Record{}, ErrMeetingNotFound
	}
	return s.Get(ctx, id)
}
