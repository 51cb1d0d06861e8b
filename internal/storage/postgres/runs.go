package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

// InsertRun records the start of an ingest run.
func (s *Store) InsertRun(ctx context.Context, run models.IngestRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_runs (id, started_at, status)
		VALUES ($1, $2, $3)`,
		run.ID, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}

	return nil
}

// FinishRun records the verdict of an ingest run.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, status string, counts models.RowCounts, errText string) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("encode row counts: %w", err)
	}

	var errVal *string
	if errText != "" {
		errVal = &errText
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_runs
		SET finished_at = $2, status = $3, row_counts = $4, error = $5
		WHERE id = $1`,
		id, time.Now().UTC(), status, string(countsJSON), errVal)
	if err != nil {
		return fmt.Errorf("finish ingest run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRunNotFound
	}

	return nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*models.IngestRun, error) {
	var (
		run        models.IngestRun
		finishedAt *time.Time
		countsJSON []byte
		errText    *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, status, row_counts, error
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT 1`).Scan(&run.ID, &run.StartedAt, &finishedAt, &run.Status, &countsJSON, &errText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRunNotFound
		}
		s.logger.ErrorContext(ctx, "failed to query latest run",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	run.FinishedAt = finishedAt
	if errText != nil {
		run.Error = *errText
	}
	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &run.Counts); err != nil {
			return nil, fmt.Errorf("decode row counts: %w", err)
		}
	}

	return &run, nil
}
