package speakers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

// EventSpeaker is a directory entry with its talk at one event.
type EventSpeaker struct {
	models.Speaker
	TalkTitle string    `json:"talk_title,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, s *models.Speaker) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Speaker, error)
	List(ctx context.Context) ([]models.Speaker, error)
	Update(ctx context.Context, s *models.Speaker) error
	Delete(ctx context.Context, id uuid.UUID) error
	Link(ctx context.Context, l *models.EventSpeaker) error
	Unlink(ctx context.Context, eventID, speakerID uuid.UUID) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventSpeaker, error)
}

// Service implements the speaker directory.
type Service struct {
	store Store
	audit *audit.Recorder
}

// NewService creates a speaker service.
func NewService(store Store, rec *audit.Recorder) *Service {
	return &Service{store: store, audit: rec}
}

// Input is the writable part of a speaker.
type Input struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
	Bio   string `json:"bio"`
}

func (in Input) normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return in, apperrors.Validation("name is required")
	}
	return in, nil
}

func speakerFields(s *models.Speaker) map[string]any {
	return map[string]any{"name": s.Name, "email": s.Email, "bio": s.Bio}
}

// Create adds a speaker to the directory.
func (s *Service) Create(ctx context.Context, actor *models.Actor, in Input) (*models.Speaker, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	sp := &models.Speaker{Name: in.Name, Email: in.Email, Bio: in.Bio}
	if err := s.store.Create(ctx, sp); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntitySpeaker,
		EntityID:   sp.ID,
		EntityName: sp.Name,
	})
	return sp, nil
}

// List returns the directory.
func (s *Service) List(ctx context.Context) ([]models.Speaker, error) {
	return s.store.List(ctx)
}

// Get returns one speaker.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Speaker, error) {
	return s.store.GetByID(ctx, id)
}

// Update replaces a speaker's details and records the diff.
func (s *Service) Update(ctx context.Context, actor *models.Actor, id uuid.UUID, in Input) (*models.Speaker, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	sp, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := speakerFields(sp)
	sp.Name, sp.Email, sp.Bio = in.Name, in.Email, in.Bio
	if err := s.store.Update(ctx, sp); err != nil {
		return nil, err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntitySpeaker,
		EntityID:   sp.ID,
		EntityName: sp.Name,
	}, before, speakerFields(sp))
	return sp, nil
}

// Delete removes a speaker from the directory and every event.
func (s *Service) Delete(ctx context.Context, actor *models.Actor, id uuid.UUID) error {
	sp, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionDelete,
		EntityType: models.EntitySpeaker,
		EntityID:   id,
		EntityName: sp.Name,
	})
	return nil
}

// LinkToEvent adds a speaker to an event.
func (s *Service) LinkToEvent(ctx context.Context, actor *models.Actor, eventID, speakerID uuid.UUID, talkTitle string) (*models.EventSpeaker, error) {
	sp, err := s.store.GetByID(ctx, speakerID)
	if err != nil {
		return nil, err
	}
	l := &models.EventSpeaker{EventID: eventID, SpeakerID: speakerID, TalkTitle: strings.TrimSpace(talkTitle)}
	if err := s.store.Link(ctx, l); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntitySpeaker,
		EntityID:   speakerID,
		EntityName: sp.Name,
		Changes: map[string]any{
			"event_linked": models.Change{From: nil, To: eventID.String()},
		},
	})
	return l, nil
}

// UnlinkFromEvent removes a speaker from an event.
func (s *Service) UnlinkFromEvent(ctx context.Context, actor *models.Actor, eventID, speakerID uuid.UUID) error {
	if err := s.store.Unlink(ctx, eventID, speakerID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntitySpeaker,
		EntityID:   speakerID,
		Changes: map[string]any{
			"event_linked": models.Change{From: eventID.String(), To: nil},
		},
	})
	return nil
}

// ListByEvent returns an event's speakers.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventSpeaker, error) {
	return s.store.ListByEvent(ctx, eventID)
}
