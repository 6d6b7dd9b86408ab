package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/database"
)

const eventColumns = `id, title, description, date, status, COALESCE(venue_name, ''), COALESCE(created_by, '00000000-0000-0000-0000-000000000000'), created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Status, &e.VenueName, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, title, description, date, status, venue_name, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Date, string(e.Status), e.VenueName, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("event")
	}
	return e, err
}

// List returns every event, soonest first.
func (r *Repository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListForUser returns the events the user is linked to as a member or through a volunteer entry.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events e
		WHERE EXISTS (SELECT 1 FROM event_members em INNER JOIN members m ON m.id = em.member_id
			WHERE em.event_id = e.id AND m.user_id = $1)
		OR EXISTS (SELECT 1 FROM event_volunteers ev INNER JOIN volunteers v ON v.id = ev.volunteer_id
			WHERE ev.event_id = e.id AND v.user_id = $1)
		ORDER BY date ASC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListBetween returns scheduled events dated in [from, to).
func (r *Repository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events
		WHERE date >= $1 AND date < $2 AND status = 'SCHEDULED'
		ORDER BY date ASC`
	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Update writes the mutable event fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, date = $4, status = $5,
		venue_name = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Date, string(e.Status), e.VenueName).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("event")
	}
	return err
}

// Delete removes an event; checklists and links cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("event")
	}
	return nil
}

// AddMember links a member to an event. Duplicate links are conflicts.
func (r *Repository) AddMember(ctx context.Context, m *models.EventMember) error {
	const q = `INSERT INTO event_members (event_id, member_id, can_edit) VALUES ($1, $2, $3) RETURNING added_at`
	err := r.pool.QueryRow(ctx, q, m.EventID, m.MemberID, m.CanEdit).Scan(&m.AddedAt)
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("member already linked to this event")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("member")
	}
	return err
}

// RemoveMember unlinks a member from an event.
func (r *Repository) RemoveMember(ctx context.Context, eventID, memberID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_members WHERE event_id = $1 AND member_id = $2`, eventID, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("event member")
	}
	return nil
}

// ListMembers returns the members linked to an event.
func (r *Repository) ListMembers(ctx context.Context, eventID uuid.UUID) ([]MemberLink, error) {
	const q = `SELECT m.id, m.user_id, m.name, m.email, COALESCE(m.title, ''), m.created_at, em.can_edit, em.added_at
		FROM event_members em INNER JOIN members m ON m.id = em.member_id
		WHERE em.event_id = $1 ORDER BY em.added_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []MemberLink{}
	for rows.Next() {
		var l MemberLink
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.Email, &l.Title, &l.CreatedAt, &l.CanEdit, &l.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// ListVolunteerRecipients returns name and email of every volunteer assigned to the event.
func (r *Repository) ListVolunteerRecipients(ctx context.Context, eventID uuid.UUID) ([]Recipient, error) {
	const q = `SELECT v.name, v.email FROM event_volunteers ev
		INNER JOIN volunteers v ON v.id = ev.volunteer_id
		WHERE ev.event_id = $1 ORDER BY v.name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Recipient
	for rows.Next() {
		var rc Recipient
		if err := rows.Scan(&rc.Name, &rc.Email); err != nil {
			return nil, err
		}
		list = append(list, rc)
	}
	return list, rows.Err()
}
