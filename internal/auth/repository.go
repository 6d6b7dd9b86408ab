package auth

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

// ErrRefreshInvalid is returned for unknown, expired or orphaned refresh tokens.
var ErrRefreshInvalid = apperrors.Unauthenticated("invalid refresh token")

// Repository handles user and refresh token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, deleted_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &role, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByID returns a user by ID, soft-deleted included.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	return u, err
}

// GetByEmail returns a user by email (case-insensitive), soft-deleted included.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	return u, err
}

// List returns active users ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, role, created_at
		FROM users WHERE deleted_at IS NULL ORDER BY full_name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserts a new user. A duplicate email is a conflict.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (id, email, password_hash, full_name, role)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, u.Email, u.Password, u.FullName, string(u.Role)).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperrors.Conflict("email already registered")
	}
	return err
}

// UpdateRole sets an active user's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}

// SoftDelete marks the user deleted and revokes every refresh token, in one transaction.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("user")
		}
		_, err = tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, id)
		return err
	})
}

// CreateRefreshToken stores a refresh token hash.
func (r *Repository) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, t.UserID, t.TokenHash, t.ExpiresAt).Scan(&t.ID, &t.CreatedAt)
}

// RotateRefreshToken consumes the token with oldHash and stores next for the same user, in one
// transaction: either the old token stays valid or only the new one is.
// next.UserID is filled in from the consumed token. Expired tokens and tokens of deleted users
// are still removed before ErrRefreshInvalid is reported.
func (r *Repository) RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken) (*models.User, error) {
	var user *models.User
	invalid := false
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var userID uuid.UUID
		var expiresAt time.Time
		err := tx.QueryRow(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING user_id, expires_at`, oldHash).
			Scan(&userID, &expiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRefreshInvalid
		}
		if err != nil {
			return err
		}
		if !expiresAt.After(time.Now()) {
			invalid = true
			return nil
		}
		user, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR SHARE`, userID))
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !user.Active()) {
			invalid = true
			return nil
		}
		if err != nil {
			return err
		}
		next.UserID = userID
		return tx.QueryRow(ctx, `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
			VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id, created_at`,
			next.UserID, next.TokenHash, next.ExpiresAt).Scan(&next.ID, &next.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if invalid {
		return nil, ErrRefreshInvalid
	}
	return user, nil
}

// DeleteRefreshToken revokes one refresh token. Unknown tokens are ignored.
func (r *Repository) DeleteRefreshToken(ctx context.Context, hash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash)
	return err
}
