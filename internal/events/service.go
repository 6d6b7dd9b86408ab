package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

// dateLayout is how event dates appear in notifications.
const dateLayout = "Mon 2 Jan 2006 15:04 MST"

// MemberLink is a member directory entry with its event link.
type MemberLink struct {
	models.Member
	CanEdit bool      `json:"can_edit"`
	AddedAt time.Time `json:"added_at"`
}

// Recipient is a notification target.
type Recipient struct {
	Name  string
	Email string
}

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, m *models.EventMember) error
	RemoveMember(ctx context.Context, eventID, memberID uuid.UUID) error
	ListMembers(ctx context.Context, eventID uuid.UUID) ([]MemberLink, error)
	ListVolunteerRecipients(ctx context.Context, eventID uuid.UUID) ([]Recipient, error)
}

// Service implements event operations.
type Service struct {
	store    Store
	audit    *audit.Recorder
	notifier notify.Dispatcher
	linkBase string
	logger   *zap.Logger
}

// NewService creates an event service. linkBase is the web app URL used for links in notifications.
func NewService(store Store, rec *audit.Recorder, notifier notify.Dispatcher, linkBase string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		audit:    rec,
		notifier: notifier,
		linkBase: strings.TrimRight(linkBase, "/"),
		logger:   logger,
	}
}

// EventInput is the body for creating an event.
type EventInput struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	Date        time.Time          `json:"date" binding:"required"`
	Status      models.EventStatus `json:"status"`
	VenueName   string             `json:"venue_name"`
}

// EventUpdate is a partial event update.
type EventUpdate struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Date        *time.Time          `json:"date"`
	Status      *models.EventStatus `json:"status"`
	VenueName   *string             `json:"venue_name"`
}

// Create stores a new event. Status defaults to DRAFT.
func (s *Service) Create(ctx context.Context, actor *models.Actor, in EventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if in.Date.IsZero() {
		return nil, apperrors.Validation("date is required")
	}
	status := in.Status
	if status == "" {
		status = models.EventStatusDraft
	}
	if !status.Valid() {
		return nil, apperrors.Validation("invalid status %q", status)
	}
	e := &models.Event{
		Title:       title,
		Description: in.Description,
		Date:        in.Date.UTC(),
		Status:      status,
		VenueName:   strings.TrimSpace(in.VenueName),
		CreatedBy:   actor.UserID,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntityEvent,
		EntityID:   e.ID,
		EntityName: e.Title,
	})
	return e, nil
}

// List returns all events for event leads and above, and only assigned events for everyone else.
func (s *Service) List(ctx context.Context, actor *models.Actor) ([]models.Event, error) {
	if access.HasMinimumRole(actor.Role, models.RoleEventLead) {
		return s.store.List(ctx)
	}
	return s.store.ListForUser(ctx, actor.UserID)
}

// GetByID returns one event.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.store.GetByID(ctx, id)
}

// Update applies a partial update and records the field diff. Assigned volunteers are told when
// the event becomes scheduled or a scheduled event changes date.
func (s *Service) Update(ctx context.Context, actor *models.Actor, id uuid.UUID, in EventUpdate) (*models.Event, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperrors.Validation("title cannot be empty")
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.Validation("invalid status %q", *in.Status)
	}
	if in.Date != nil && in.Date.IsZero() {
		return nil, apperrors.Validation("date cannot be empty")
	}
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := e.AuditFields()
	prevDate, prevStatus := e.Date, e.Status

	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Date != nil {
		e.Date = in.Date.UTC()
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
	if in.VenueName != nil {
		e.VenueName = strings.TrimSpace(*in.VenueName)
	}

	if err := s.store.Update(ctx, e); err != nil {
		return nil, err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntityEvent,
		EntityID:   e.ID,
		EntityName: e.Title,
	}, before, e.AuditFields())

	switch {
	case e.Status == models.EventStatusScheduled && prevStatus != models.EventStatusScheduled:
		s.notifyVolunteers(ctx, e, models.NotificationEventScheduled, nil)
	case e.Status == models.EventStatusScheduled && !e.Date.Equal(prevDate):
		s.notifyVolunteers(ctx, e, models.NotificationEventRescheduled, map[string]string{
			"previous_date": prevDate.Format(dateLayout),
		})
	}
	return e, nil
}

// Delete removes an event with its checklists and links.
func (s *Service) Delete(ctx context.Context, actor *models.Actor, id uuid.UUID) error {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionDelete,
		EntityType: models.EntityEvent,
		EntityID:   id,
		EntityName: e.Title,
	})
	return nil
}

// AddMember links a member directory entry to the event.
func (s *Service) AddMember(ctx context.Context, actor *models.Actor, eventID, memberID uuid.UUID, canEdit bool) (*models.EventMember, error) {
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	m := &models.EventMember{EventID: eventID, MemberID: memberID, CanEdit: canEdit}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityEvent,
		EntityID:   eventID,
		EntityName: e.Title,
		Changes: map[string]any{
			"member_added": models.Change{From: nil, To: memberID.String()},
		},
	})
	return m, nil
}

// RemoveMember unlinks a member from the event.
func (s *Service) RemoveMember(ctx context.Context, actor *models.Actor, eventID, memberID uuid.UUID) error {
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveMember(ctx, eventID, memberID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityEvent,
		EntityID:   eventID,
		EntityName: e.Title,
		Changes: map[string]any{
			"member_removed": models.Change{From: memberID.String(), To: nil},
		},
	})
	return nil
}

// ListMembers returns the members linked to the event.
func (s *Service) ListMembers(ctx context.Context, eventID uuid.UUID) ([]MemberLink, error) {
	return s.store.ListMembers(ctx, eventID)
}

// Link returns the web app URL for an event.
func (s *Service) Link(eventID uuid.UUID) string {
	return s.linkBase + "/events/" + eventID.String()
}

func (s *Service) notifyVolunteers(ctx context.Context, e *models.Event, kind string, extra map[string]string) {
	recipients, err := s.store.ListVolunteerRecipients(ctx, e.ID)
	if err != nil {
		s.logger.Warn("volunteer lookup for notification failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		return
	}
	eventID := e.ID
	for _, rc := range recipients {
		data := map[string]string{
			"name":  rc.Name,
			"title": e.Title,
			"date":  e.Date.Format(dateLayout),
			"venue": e.VenueName,
			"link":  s.Link(e.ID),
		}
		for k, v := range extra {
			data[k] = v
		}
		s.notifier.Dispatch(ctx, notify.Notification{
			Channel:   models.ChannelEmail,
			Kind:      kind,
			EventID:   &eventID,
			Recipient: rc.Email,
			Data:      data,
		})
	}
}
