package venues

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

const venueColumns = `v.id, v.name, COALESCE(v.address, ''), v.capacity, COALESCE(v.contact_name, ''), COALESCE(v.photo_key, ''), v.created_at, v.updated_at`

// Repository handles venue directory and partner persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a venue repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVenue(row pgx.Row, extra ...any) (*models.Venue, error) {
	var v models.Venue
	dest := append([]any{&v.ID, &v.Name, &v.Address, &v.Capacity, &v.ContactName, &v.PhotoKey, &v.CreatedAt, &v.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a venue.
func (r *Repository) Create(ctx context.Context, v *models.Venue) error {
	const q = `INSERT INTO venues (id, name, address, capacity, contact_name)
		VALUES (gen_random_uuid(), $1, NULLIF($2, ''), $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.Name, v.Address, v.Capacity, v.ContactName).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a venue by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	v, err := scanVenue(r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues v WHERE v.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("venue")
	}
	return v, err
}

// List returns the directory ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Venue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+venueColumns+` FROM venues v ORDER BY v.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Update writes the venue details.
func (r *Repository) Update(ctx context.Context, v *models.Venue) error {
	const q = `UPDATE venues SET name = $2, address = NULLIF($3, ''), capacity = $4, contact_name = NULLIF($5, ''),
		updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, v.ID, v.Name, v.Address, v.Capacity, v.ContactName).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("venue")
	}
	return err
}

// Delete removes a venue and its partner links.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM venues WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("venue")
	}
	return nil
}

// PhotoKey returns the venue's photo key.
func (r *Repository) PhotoKey(ctx context.Context, id uuid.UUID) (string, error) {
	var key string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(photo_key, '') FROM venues WHERE id = $1`, id).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("venue")
	}
	return key, err
}

// SetPhotoKey stores the venue's photo key.
func (r *Repository) SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE venues SET photo_key = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("venue")
	}
	return nil
}

// LinkPartner links a venue to an event. A second link of the same pair is a conflict.
func (r *Repository) LinkPartner(ctx context.Context, p *models.EventVenuePartner) error {
	const q = `INSERT INTO event_venue_partners (event_id, venue_id, status) VALUES ($1, $2, $3)
		RETURNING added_at, updated_at`
	err := r.pool.QueryRow(ctx, q, p.EventID, p.VenueID, string(p.Status)).Scan(&p.AddedAt, &p.UpdatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("venue already linked to this event")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("venue")
	}
	return err
}

// UpdatePartnerStatus sets the link status and returns the previous one.
func (r *Repository) UpdatePartnerStatus(ctx context.Context, eventID, venueID uuid.UUID, status models.PartnerStatus) (models.PartnerStatus, error) {
	const q = `UPDATE event_venue_partners p SET status = $3, updated_at = NOW()
		FROM (SELECT status FROM event_venue_partners WHERE event_id = $1 AND venue_id = $2 FOR UPDATE) prev
		WHERE p.event_id = $1 AND p.venue_id = $2
		RETURNING prev.status`
	var prev models.PartnerStatus
	err := r.pool.QueryRow(ctx, q, eventID, venueID, string(status)).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("venue partner")
	}
	return prev, err
}

// UnlinkPartner removes the link and returns the status it had.
func (r *Repository) UnlinkPartner(ctx context.Context, eventID, venueID uuid.UUID) (models.PartnerStatus, error) {
	var status models.PartnerStatus
	err := r.pool.QueryRow(ctx, `DELETE FROM event_venue_partners WHERE event_id = $1 AND venue_id = $2 RETURNING status`,
		eventID, venueID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("venue partner")
	}
	return status, err
}

// ListPartners returns the venues linked to an event with their status.
func (r *Repository) ListPartners(ctx context.Context, eventID uuid.UUID) ([]Partner, error) {
	const q = `SELECT ` + venueColumns + `, p.status, p.added_at
		FROM event_venue_partners p INNER JOIN venues v ON v.id = p.venue_id
		WHERE p.event_id = $1 ORDER BY p.added_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Partner{}
	for rows.Next() {
		var p Partner
		v, err := scanVenue(rows, &p.Status, &p.AddedAt)
		if err != nil {
			return nil, err
		}
		p.Venue = *v
		list = append(list, p)
	}
	return list, rows.Err()
}
