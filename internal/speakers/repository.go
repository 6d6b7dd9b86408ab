package speakers

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

const speakerColumns = `s.id, s.name, COALESCE(s.email, ''), COALESCE(s.bio, ''), COALESCE(s.photo_key, ''), s.created_at, s.updated_at`

// Repository handles speaker directory persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a speaker repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSpeaker(row pgx.Row, extra ...any) (*models.Speaker, error) {
	var s models.Speaker
	dest := append([]any{&s.ID, &s.Name, &s.Email, &s.Bio, &s.PhotoKey, &s.CreatedAt, &s.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a speaker.
func (r *Repository) Create(ctx context.Context, s *models.Speaker) error {
	const q = `INSERT INTO speakers (id, name, email, bio) VALUES (gen_random_uuid(), $1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Name, s.Email, s.Bio).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a speaker by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Speaker, error) {
	s, err := scanSpeaker(r.pool.QueryRow(ctx, `SELECT `+speakerColumns+` FROM speakers s WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("speaker")
	}
	return s, err
}

// List returns the directory ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Speaker, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+speakerColumns+` FROM speakers s ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Speaker{}
	for rows.Next() {
		s, err := scanSpeaker(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Update writes name, email and bio.
func (r *Repository) Update(ctx context.Context, s *models.Speaker) error {
	const q = `UPDATE speakers SET name = $2, email = NULLIF($3, ''), bio = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, s.ID, s.Name, s.Email, s.Bio).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("speaker")
	}
	return err
}

// Delete removes a speaker and its event links.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM speakers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("speaker")
	}
	return nil
}

// PhotoKey returns the speaker's headshot key.
func (r *Repository) PhotoKey(ctx context.Context, id uuid.UUID) (string, error) {
	var key string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(photo_key, '') FROM speakers WHERE id = $1`, id).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("speaker")
	}
	return key, err
}

// SetPhotoKey stores the speaker's headshot key.
func (r *Repository) SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE speakers SET photo_key = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("speaker")
	}
	return nil
}

// Link adds a speaker to an event. A second link of the same pair is a conflict.
func (r *Repository) Link(ctx context.Context, l *models.EventSpeaker) error {
	const q = `INSERT INTO event_speakers (event_id, speaker_id, talk_title) VALUES ($1, $2, NULLIF($3, ''))
		RETURNING added_at`
	err := r.pool.QueryRow(ctx, q, l.EventID, l.SpeakerID, l.TalkTitle).Scan(&l.AddedAt)
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.Conflict("speaker already linked to this event")
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("speaker")
	}
	return err
}

// Unlink removes a speaker from an event.
func (r *Repository) Unlink(ctx context.Context, eventID, speakerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_speakers WHERE event_id = $1 AND speaker_id = $2`, eventID, speakerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("event speaker")
	}
	return nil
}

// ListByEvent returns the speakers linked to an event with their talk titles.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventSpeaker, error) {
	const q = `SELECT ` + speakerColumns + `, COALESCE(es.talk_title, ''), es.added_at
		FROM event_speakers es INNER JOIN speakers s ON s.id = es.speaker_id
		WHERE es.event_id = $1 ORDER BY es.added_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []EventSpeaker{}
	for rows.Next() {
		var es EventSpeaker
		s, err := scanSpeaker(rows, &es.TalkTitle, &es.AddedAt)
		if err != nil {
			return nil, err
		}
		es.Speaker = *s
		list = append(list, es)
	}
	return list, rows.Err()
}
