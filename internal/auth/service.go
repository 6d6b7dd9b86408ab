// Package auth handles accounts, tokens and user administration.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/utils"
)

// errBadCredentials is deliberately the same for unknown, deleted and wrong-password logins.
var errBadCredentials = apperrors.Unauthenticated("invalid email or password")

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.UserPublic, error)
	Create(ctx context.Context, u *models.User) error
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken) (*models.User, error)
	DeleteRefreshToken(ctx context.Context, hash string) error
}

// Tokens is the pair returned by login, register and refresh.
type Tokens struct {
	AccessToken      string            `json:"access_token"`
	AccessExpiresAt  time.Time         `json:"access_expires_at"`
	RefreshToken     string            `json:"refresh_token"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at"`
	User             models.UserPublic `json:"user"`
}

// Service implements account operations.
type Service struct {
	store      Store
	jwt        *JWTService
	refreshTTL time.Duration
	audit      *audit.Recorder
	logger     *zap.Logger
}

// NewService creates an auth service.
func NewService(store Store, jwt *JWTService, refreshTTL time.Duration, rec *audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, jwt: jwt, refreshTTL: refreshTTL, audit: rec, logger: logger}
}

// Register creates a VIEWER account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*Tokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if email == "" || fullName == "" {
		return nil, apperrors.Validation("email and full_name are required")
	}
	if len(password) < utils.MinPasswordLength {
		return nil, apperrors.Validation("password must be at least %d characters", utils.MinPasswordLength)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Email: email, Password: hash, FullName: fullName, Role: models.RoleViewer}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     u.ID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntityUser,
		EntityID:   u.ID,
		EntityName: u.FullName,
		Changes:    map[string]any{"role": string(u.Role)},
	})
	return s.issue(ctx, u)
}

// Login checks credentials. Soft-deleted accounts are rejected like unknown ones.
func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, error) {
	u, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	hash := ""
	if u.Active() {
		hash = u.Password
	}
	if !utils.CheckPassword(password, hash) {
		return nil, errBadCredentials
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token and returns a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrRefreshInvalid
	}
	token, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	next := &models.RefreshToken{TokenHash: hash, ExpiresAt: time.Now().Add(s.refreshTTL)}
	u, err := s.store.RotateRefreshToken(ctx, hashRefreshToken(refreshToken), next)
	if err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.jwt.Generate(u)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     token,
		RefreshExpiresAt: next.ExpiresAt,
		User:             u.ToPublic(),
	}, nil
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.store.DeleteRefreshToken(ctx, hashRefreshToken(refreshToken))
}

func (s *Service) issue(ctx context.Context, u *models.User) (*Tokens, error) {
	accessToken, accessExp, err := s.jwt.Generate(u)
	if err != nil {
		return nil, err
	}
	token, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	rt := &models.RefreshToken{UserID: u.ID, TokenHash: hash, ExpiresAt: time.Now().Add(s.refreshTTL)}
	if err := s.store.CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     token,
		RefreshExpiresAt: rt.ExpiresAt,
		User:             u.ToPublic(),
	}, nil
}

// Authenticate validates an access token and loads the caller. The role comes from the
// database so demotions and deletions apply before the token expires.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Actor, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !u.Active() {
		return nil, ErrInvalidToken
	}
	return &models.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, actor *models.Actor) (models.UserPublic, error) {
	u, err := s.store.GetByID(ctx, actor.UserID)
	if err != nil {
		return models.UserPublic{}, err
	}
	return u.ToPublic(), nil
}

// ListUsers returns every active user.
func (s *Service) ListUsers(ctx context.Context) ([]models.UserPublic, error) {
	return s.store.List(ctx)
}

// ChangeRole sets another user's role. Callers cannot grant a role above their own, nor
// change someone ranked above them, nor change themselves.
func (s *Service) ChangeRole(ctx context.Context, actor *models.Actor, userID uuid.UUID, role models.Role) (models.UserPublic, error) {
	if !role.Valid() {
		return models.UserPublic{}, apperrors.Validation("invalid role %q", role)
	}
	if actor.UserID == userID {
		return models.UserPublic{}, apperrors.Forbidden("cannot change your own role")
	}
	if !access.HasMinimumRole(actor.Role, role) {
		return models.UserPublic{}, apperrors.Forbidden("cannot grant a role above your own")
	}
	target, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return models.UserPublic{}, err
	}
	if !target.Active() {
		return models.UserPublic{}, apperrors.NotFound("user")
	}
	if !access.HasMinimumRole(actor.Role, target.Role) {
		return models.UserPublic{}, apperrors.Forbidden("cannot change a user ranked above you")
	}
	if target.Role == role {
		return target.ToPublic(), nil
	}
	if err := s.store.UpdateRole(ctx, userID, role); err != nil {
		return models.UserPublic{}, err
	}
	before := map[string]any{"role": string(target.Role)}
	target.Role = role
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntityUser,
		EntityID:   userID,
		EntityName: target.FullName,
	}, before, map[string]any{"role": string(role)})
	return target.ToPublic(), nil
}

// DeleteUser soft-deletes a user and revokes their refresh tokens.
func (s *Service) DeleteUser(ctx context.Context, actor *models.Actor, userID uuid.UUID) error {
	if actor.UserID == userID {
		return apperrors.Forbidden("cannot delete yourself")
	}
	target, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !target.Active() {
		return apperrors.NotFound("user")
	}
	if !access.HasMinimumRole(actor.Role, target.Role) {
		return apperrors.Forbidden("cannot delete a user ranked above you")
	}
	if err := s.store.SoftDelete(ctx, userID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionDelete,
		EntityType: models.EntityUser,
		EntityID:   userID,
		EntityName: target.FullName,
	})
	s.logger.Info("user soft-deleted", zap.String("user_id", userID.String()), zap.String("by", actor.UserID.String()))
	return nil
}
