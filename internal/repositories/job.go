package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
)

const jobColumns = `destination_playlist_id, owner_id, source_playlist_id, created_at, updated_at`

// JobRepository implements [models.JobStore] for the jobs table.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new [JobRepository] with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Get retrieves a job by its destination playlist id.
func (r *JobRepository) Get(ctx context.Context, destinationID string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE destination_playlist_id = ?`, destinationID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, destinationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return job, nil
}

// Upsert inserts a job or updates the owner and source of the job with the same destination.
func (r *JobRepository) Upsert(ctx context.Context, j *models.Job) error {
	if err := j.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(destination_playlist_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			source_playlist_id = excluded.source_playlist_id,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, j.DestinationPlaylistID, j.OwnerID, j.SourcePlaylistID, now, now); err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}

	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	return nil
}

// Delete removes the job with the given destination playlist id.
func (r *JobRepository) Delete(ctx context.Context, destinationID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE destination_playlist_id = ?`, destinationID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, destinationID)
	}
	return nil
}

// ListByOwner retrieves all jobs owned by ownerID, oldest first.
func (r *JobRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Job, error) {
	return r.query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE owner_id = ? ORDER BY created_at ASC, destination_playlist_id ASC`, ownerID)
}

// List retrieves every job, oldest first.
func (r *JobRepository) List(ctx context.Context) ([]*models.Job, error) {
	return r.query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC, destination_playlist_id ASC`)
}

func (r *JobRepository) query(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

func scanJob(row scanner) (*models.Job, error) {
	var j models.Job
	if err := row.Scan(&j.DestinationPlaylistID, &j.OwnerID, &j.SourcePlaylistID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
