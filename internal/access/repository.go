package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser returns a user by ID, including soft-deleted ones.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, full_name, role, deleted_at, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EventExists reports whether an event row exists.
func (r *Repository) EventExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// FindAssignments returns member and volunteer links resolved through the linked user.
func (r *Repository) FindAssignments(ctx context.Context, eventID, userID uuid.UUID) ([]Assignment, error) {
	const q = `SELECT 'member', em.can_edit
		FROM event_members em INNER JOIN members m ON m.id = em.member_id
		WHERE em.event_id = $1 AND m.user_id = $2
		UNION ALL
		SELECT 'volunteer', ev.can_edit
		FROM event_volunteers ev INNER JOIN volunteers v ON v.id = ev.volunteer_id
		WHERE ev.event_id = $1 AND v.user_id = $2`
	rows, err := r.pool.Query(ctx, q, eventID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.Source, &a.CanEdit); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
