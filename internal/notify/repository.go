package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
)

// Repository handles notification_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records one delivery outcome.
func (r *Repository) Insert(ctx context.Context, l *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (id, event_id, channel, kind, recipient, subject, status, attempt, error_message)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.EventID, l.Channel, l.Kind, l.Recipient, l.Subject, l.Status, l.Attempt, l.ErrorMessage).
		Scan(&l.ID, &l.CreatedAt)
}

// ListByEvent returns delivery logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.NotificationLog, error) {
	const q = `SELECT id, event_id, channel, kind, recipient, subject, status, attempt, error_message, created_at
		FROM notification_logs
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT 500`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.NotificationLog{}
	for rows.Next() {
		var l models.NotificationLog
		var subject, errMsg *string
		if err := rows.Scan(&l.ID, &l.EventID, &l.Channel, &l.Kind, &l.Recipient, &subject, &l.Status, &l.Attempt, &errMsg, &l.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			l.Subject = *subject
		}
		if errMsg != nil {
			l.ErrorMessage = *errMsg
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
