package access

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/models"
)

// Mode is the kind of event access requested.
type Mode string

const (
	ModeRead   Mode = "read"
	ModeUpdate Mode = "update"
)

// Assignment sources.
const (
	SourceMember    = "member"
	SourceVolunteer = "volunteer"
)

// Assignment is an explicit link between a user and an event.
type Assignment struct {
	Source  string
	CanEdit bool
}

// Store is the data the resolver needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	EventExists(ctx context.Context, id uuid.UUID) (bool, error)
	// FindAssignments returns the user's member and volunteer links to the event.
	FindAssignments(ctx context.Context, eventID, userID uuid.UUID) ([]Assignment, error)
}

// Resolver decides whether a user may read or update an event.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// NewResolver creates an event-access resolver.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// CanUserAccessEvent applies the event policy. Any lookup failure denies access.
func (r *Resolver) CanUserAccessEvent(ctx context.Context, userID, eventID uuid.UUID, mode Mode) bool {
	if mode != ModeRead && mode != ModeUpdate {
		return false
	}
	user, err := r.store.GetUser(ctx, userID)
	if err != nil || !user.Active() {
		return false
	}
	exists, err := r.store.EventExists(ctx, eventID)
	if err != nil {
		r.logger.Warn("event lookup failed during access check", zap.Error(err), zap.String("event_id", eventID.String()))
		return false
	}
	if !exists {
		return false
	}
	if HasMinimumRole(user.Role, models.RoleEventLead) {
		return true
	}
	assignments, err := r.store.FindAssignments(ctx, eventID, userID)
	if err != nil {
		r.logger.Warn("assignment lookup failed during access check", zap.Error(err),
			zap.String("event_id", eventID.String()), zap.String("user_id", userID.String()))
		return false
	}
	for _, a := range assignments {
		if mode == ModeRead || a.CanEdit {
			return true
		}
	}
	return false
}
