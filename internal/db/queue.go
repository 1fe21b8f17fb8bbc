package db

import (
	"context"
	"fmt"

	"github.com/derek/church-finder/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueueStore manages the enrichment work queue. One row per church; the
// status column is the coordination point between import and enrichment.
type QueueStore struct {
	pool *pgxpool.Pool
}

func NewQueueStore(pool *pgxpool.Pool) *QueueStore {
	return &QueueStore{pool: pool}
}

// Enqueue upserts a pending queue row for a church. Re-importing a listing
// therefore never creates duplicate queue rows; it resets the existing one.
func (q *QueueStore) Enqueue(ctx context.Context, churchID uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO enrichment_queue (church_id, status)
		VALUES ($1, 'pending')
		ON CONFLICT (church_id) DO UPDATE SET
			status = 'pending',
			error = NULL,
			updated_at = NOW()
	`, churchID)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	return nil
}

// ClaimPending atomically flips up to limit oldest pending rows to
// processing and returns their church IDs. FOR UPDATE SKIP LOCKED keeps
// concurrent workers from claiming overlapping sets.
func (q *QueueStore) ClaimPending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := q.pool.Query(ctx, `
		UPDATE enrichment_queue
		SET status = 'processing', updated_at = NOW()
		WHERE church_id IN (
			SELECT church_id FROM enrichment_queue
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING church_id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim failed: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("claim scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *QueueStore) MarkCompleted(ctx context.Context, churchID uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE enrichment_queue
		SET status = 'completed', error = NULL, updated_at = NOW()
		WHERE church_id = $1
	`, churchID)
	if err != nil {
		return fmt.Errorf("mark completed failed: %w", err)
	}
	return nil
}

func (q *QueueStore) MarkFailed(ctx context.Context, churchID uuid.UUID, message string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE enrichment_queue
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE church_id = $1
	`, churchID, message)
	if err != nil {
		return fmt.Errorf("mark failed failed: %w", err)
	}
	return nil
}

// RetryFailed resets up to limit failed rows back to pending and clears
// their error. Operator-triggered; there is no automatic retry.
func (q *QueueStore) RetryFailed(ctx context.Context, limit int) (int, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE enrichment_queue
		SET status = 'pending', error = NULL, updated_at = NOW()
		WHERE church_id IN (
			SELECT church_id FROM enrichment_queue
			WHERE status = 'failed'
			ORDER BY updated_at ASC
			LIMIT $1
		)
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("retry failed query failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListFailed returns the oldest failed entries with their error messages,
// for operator inspection before a retry.
func (q *QueueStore) ListFailed(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT church_id, status, COALESCE(error, ''), created_at, updated_at
		FROM enrichment_queue
		WHERE status = 'failed'
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed entries query failed: %w", err)
	}
	defer rows.Close()

	entries := []models.QueueEntry{}
	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.ChurchID, &e.Status, &e.Error, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed entries scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *QueueStore) Stats(ctx context.Context) (*models.QueueStats, error) {
	rows, err := q.pool.Query(ctx, "SELECT status, COUNT(*) FROM enrichment_queue GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("queue stats query failed: %w", err)
	}
	defer rows.Close()

	stats := &models.QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("queue stats scan failed: %w", err)
		}
		switch models.QueueStatus(status) {
		case models.QueuePending:
			stats.Pending = count
		case models.QueueProcessing:
			stats.Processing = count
		case models.QueueCompleted:
			stats.Completed = count
		case models.QueueFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}
