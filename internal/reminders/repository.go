package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository stores receipts and reads delegated credentials in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ CredentialStore = (*Repository)(nil)
	_ ReceiptStore    = (*Repository)(nil)
)

func (r *Repository) RefreshToken(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT refresh_token
		FROM delegated_credentials
		WHERE user_id = $1 AND provider = $2
	`

	var token string
	err := r.db.QueryRowContext(ctx, query, userID, providerName).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to query credential: %w", err)
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (r *Repository) SaveReceipt(ctx context.Context, rec Receipt) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedEventIDs == nil {
		rec.CreatedEventIDs = []string{}
	}

	query := `
		INSERT INTO reminder_batch_receipts
		(id, batch_id, user_id, created_event_ids, failed_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.BatchID,
		rec.UserID,
		pq.Array(rec.CreatedEventIDs),
		rec.FailedCount,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// ListReceipts returns a page of receipts for the batch, oldest first, and
// the total number of receipts.
func (r *Repository) ListReceipts(ctx context.Context, userID, batchID string, limit, offset int) ([]Receipt, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM reminder_batch_receipts
		WHERE user_id = $1 AND batch_id = $2
	`
	if err := r.db.QueryRowContext(ctx, countQuery, userID, batchID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count receipts: %w", err)
	}
	if total == 0 {
		return []Receipt{}, 0, nil
	}

	query := `
		SELECT id, batch_id, user_id, created_event_ids, failed_count, created_at
		FROM reminder_batch_receipts
		WHERE user_id = $1 AND batch_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, userID, batchID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	receipts := []Receipt{}
	for rows.Next() {
		var rec Receipt
		if err := rows.Scan(
			&rec.ID,
			&rec.BatchID,
			&rec.UserID,
			pq.Array(&rec.CreatedEventIDs),
			&rec.FailedCount,
			&rec.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan receipt: %w", err)
		}
		if rec.CreatedEventIDs == nil {
			rec.CreatedEventIDs = []string{}
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating receipts: %w", err)
	}
	return receipts, total, nil
}

// MergedEventIDs returns every event id created for the batch, in order of
// first appearance.
func (r *Repository) MergedEventIDs(ctx context.Context, userID, batchID string) ([]string, error) {
	query := `
		SELECT created_event_ids
		FROM reminder_batch_receipts
		WHERE user_id = $1 AND batch_id = $2
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipt ids: %w", err)
	}
	defer rows.Close()

	var batches [][]string
	for rows.Next() {
		var ids []string
		if err := rows.Scan(pq.Array(&ids)); err != nil {
			return nil, fmt.Errorf("failed to scan receipt ids: %w", err)
		}
		batches = append(batches, ids)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt ids: %w", err)
	}
	return mergeIDs(batches...), nil
}

func (r *Repository) DeleteReceiptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reminder_batch_receipts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete receipts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *Repository) CountReceiptsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminder_batch_receipts WHERE created_at < $1`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired receipts: %w", err)
	}
	return count, nil
}

func mergeIDs(batches ...[]string) []string {
	seen := make(map[string]bool)
	merged := []string{}
	for _, ids := range batches {
		for _, id := range ids {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}
