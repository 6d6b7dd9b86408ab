package volunteers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/database"
)

const volunteerColumns = `v.id, v.user_id, v.name, v.email, COALESCE(v.phone, ''), v.created_at, v.updated_at`

// Repository handles volunteer and member directory persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a volunteer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVolunteer(row pgx.Row, extra ...any) (*models.Volunteer, error) {
	var v models.Volunteer
	dest := append([]any{&v.ID, &v.UserID, &v.Name, &v.Email, &v.Phone, &v.CreatedAt, &v.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a volunteer. A duplicate email is a conflict.
func (r *Repository) Create(ctx context.Context, v *models.Volunteer) error {
	const q = `INSERT INTO volunteers (id, user_id, name, email, phone)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, v.UserID, v.Name, v.Email, v.Phone).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("volunteer email already registered")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("user")
	}
	return err
}

// GetByID returns a volunteer by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error) {
	v, err := scanVolunteer(r.pool.QueryRow(ctx, `SELECT `+volunteerColumns+` FROM volunteers v WHERE v.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("volunteer")
	}
	return v, err
}

// List returns the directory ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Volunteer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+volunteerColumns+` FROM volunteers v ORDER BY v.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Volunteer{}
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Update writes the volunteer details.
func (r *Repository) Update(ctx context.Context, v *models.Volunteer) error {
	const q = `UPDATE volunteers SET user_id = $2, name = $3, email = $4, phone = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, v.ID, v.UserID, v.Name, v.Email, v.Phone).Scan(&v.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NotFound("volunteer")
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("volunteer email already registered")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("user")
	}
	return err
}

// Delete removes a volunteer; event assignments cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM volunteers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("volunteer")
	}
	return nil
}

// Assign links a volunteer to an event. A second assignment of the same pair is a conflict.
func (r *Repository) Assign(ctx context.Context, a *models.EventVolunteer) error {
	const q = `INSERT INTO event_volunteers (event_id, volunteer_id, assigned_role, can_edit)
		VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING added_at`
	err := r.pool.QueryRow(ctx, q, a.EventID, a.VolunteerID, a.AssignedRole, a.CanEdit).Scan(&a.AddedAt)
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("volunteer already assigned to this event")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("volunteer")
	}
	return err
}

// Unassign removes a volunteer from an event.
func (r *Repository) Unassign(ctx context.Context, eventID, volunteerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_volunteers WHERE event_id = $1 AND volunteer_id = $2`, eventID, volunteerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("event volunteer")
	}
	return nil
}

// ListByEvent returns the volunteers assigned to an event.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Assignment, error) {
	const q = `SELECT ` + volunteerColumns + `, COALESCE(ev.assigned_role, ''), ev.can_edit, ev.added_at
		FROM event_volunteers ev INNER JOIN volunteers v ON v.id = ev.volunteer_id
		WHERE ev.event_id = $1 ORDER BY v.name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Assignment{}
	for rows.Next() {
		var a Assignment
		v, err := scanVolunteer(rows, &a.AssignedRole, &a.CanEdit, &a.AddedAt)
		if err != nil {
			return nil, err
		}
		a.Volunteer = *v
		list = append(list, a)
	}
	return list, rows.Err()
}

// CountEventLinks returns how many events the volunteer is assigned to.
func (r *Repository) CountEventLinks(ctx context.Context, volunteerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_volunteers WHERE volunteer_id = $1`, volunteerID).Scan(&n)
	return n, err
}

// Promote converts a volunteer into a member in one transaction: the member entry is created,
// every event assignment becomes an event membership with the same edit flag, and the volunteer
// entry is deleted. The link count is re-checked under lock against minLinks.
func (r *Repository) Promote(ctx context.Context, volunteerID uuid.UUID, minLinks int) (*models.Member, int, error) {
	var member models.Member
	var carried int
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		v, err := scanVolunteer(tx.QueryRow(ctx, `SELECT `+volunteerColumns+` FROM volunteers v WHERE v.id = $1 FOR UPDATE`, volunteerID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("volunteer")
		}
		if err != nil {
			return err
		}
		var links int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM event_volunteers WHERE volunteer_id = $1`, volunteerID).Scan(&links); err != nil {
			return err
		}
		if links < minLinks {
			return apperrors.Validation("volunteer has %d event assignments; %d required for promotion", links, minLinks)
		}
		err = tx.QueryRow(ctx, `INSERT INTO members (id, user_id, name, email) VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING id, user_id, name, email, COALESCE(title, ''), created_at`, v.UserID, v.Name, v.Email).
			Scan(&member.ID, &member.UserID, &member.Name, &member.Email, &member.Title, &member.CreatedAt)
		if database.IsUniqueViolation(err) {
			return apperrors.Conflict("a member with this email already exists")
		}
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `INSERT INTO event_members (event_id, member_id, can_edit)
			SELECT event_id, $2, can_edit FROM event_volunteers WHERE volunteer_id = $1
			ON CONFLICT (event_id, member_id) DO NOTHING`, volunteerID, member.ID)
		if err != nil {
			return err
		}
		carried = int(tag.RowsAffected())
		_, err = tx.Exec(ctx, `DELETE FROM volunteers WHERE id = $1`, volunteerID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return &member, carried, nil
}

// ListMembers returns the member directory ordered by name.
func (r *Repository) ListMembers(ctx context.Context) ([]models.Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, name, email, COALESCE(title, ''), created_at FROM members ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Email, &m.Title, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// CreateMember inserts a member directory entry.
func (r *Repository) CreateMember(ctx context.Context, m *models.Member) error {
	const q = `INSERT INTO members (id, user_id, name, email, title) VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, m.UserID, m.Name, m.Email, m.Title).Scan(&m.ID, &m.CreatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("a member with this email already exists")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("user")
	}
	return err
}
