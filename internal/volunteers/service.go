package volunteers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

// dateLayout is how event dates appear in notifications.
const dateLayout = "Mon 2 Jan 2006 15:04 MST"

// Assignment is a volunteer with their role at one event.
type Assignment struct {
	models.Volunteer
	AssignedRole string    `json:"assigned_role,omitempty"`
	CanEdit      bool      `json:"can_edit"`
	AddedAt      time.Time `json:"added_at"`
}

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, v *models.Volunteer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error)
	List(ctx context.Context) ([]models.Volunteer, error)
	Update(ctx context.Context, v *models.Volunteer) error
	Delete(ctx context.Context, id uuid.UUID) error
	Assign(ctx context.Context, a *models.EventVolunteer) error
	Unassign(ctx context.Context, eventID, volunteerID uuid.UUID) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Assignment, error)
	CountEventLinks(ctx context.Context, volunteerID uuid.UUID) (int, error)
	Promote(ctx context.Context, volunteerID uuid.UUID, minLinks int) (*models.Member, int, error)
	ListMembers(ctx context.Context) ([]models.Member, error)
	CreateMember(ctx context.Context, m *models.Member) error
}

// EventInfo supplies event details for assignment emails; *events.Service satisfies it.
type EventInfo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Link(eventID uuid.UUID) string
}

// Service implements the volunteer and member directories.
type Service struct {
	store     Store
	events    EventInfo
	audit     *audit.Recorder
	notifier  notify.Dispatcher
	threshold int
	logger    *zap.Logger
}

// NewService creates a volunteer service. threshold is the number of event assignments a
// volunteer needs before promotion to member.
func NewService(store Store, events EventInfo, rec *audit.Recorder, notifier notify.Dispatcher, threshold int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if threshold < 1 {
		threshold = 1
	}
	return &Service{
		store:     store,
		events:    events,
		audit:     rec,
		notifier:  notifier,
		threshold: threshold,
		logger:    logger,
	}
}

// Input is the writable part of a volunteer.
type Input struct {
	Name   string     `json:"name" binding:"required"`
	Email  string     `json:"email" binding:"required,email"`
	Phone  string     `json:"phone"`
	UserID *uuid.UUID `json:"user_id"`
}

func (in Input) normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" {
		return in, apperrors.Validation("name is required")
	}
	if in.Email == "" {
		return in, apperrors.Validation("email is required")
	}
	return in, nil
}

func volunteerFields(v *models.Volunteer) map[string]any {
	var userID any
	if v.UserID != nil {
		userID = v.UserID.String()
	}
	return map[string]any{"name": v.Name, "email": v.Email, "phone": v.Phone, "user_id": userID}
}

// Create adds a volunteer to the directory.
func (s *Service) Create(ctx context.Context, actor *models.Actor, in Input) (*models.Volunteer, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	v := &models.Volunteer{Name: in.Name, Email: in.Email, Phone: in.Phone, UserID: in.UserID}
	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntityVolunteer,
		EntityID:   v.ID,
		EntityName: v.Name,
	})
	return v, nil
}

// List returns the directory.
func (s *Service) List(ctx context.Context) ([]models.Volunteer, error) {
	return s.store.List(ctx)
}

// Get returns one volunteer.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Volunteer, error) {
	return s.store.GetByID(ctx, id)
}

// Update replaces a volunteer's details and records the diff.
func (s *Service) Update(ctx context.Context, actor *models.Actor, id uuid.UUID, in Input) (*models.Volunteer, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := volunteerFields(v)
	v.Name, v.Email, v.Phone, v.UserID = in.Name, in.Email, in.Phone, in.UserID
	if err := s.store.Update(ctx, v); err != nil {
		return nil, err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntityVolunteer,
		EntityID:   v.ID,
		EntityName: v.Name,
	}, before, volunteerFields(v))
	return v, nil
}

// Delete removes a volunteer and their assignments.
func (s *Service) Delete(ctx context.Context, actor *models.Actor, id uuid.UUID) error {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionDelete,
		EntityType: models.EntityVolunteer,
		EntityID:   id,
		EntityName: v.Name,
	})
	return nil
}

// AssignInput is the body for assigning a volunteer to an event.
type AssignInput struct {
	VolunteerID  uuid.UUID `json:"volunteer_id" binding:"required"`
	AssignedRole string    `json:"assigned_role"`
	CanEdit      bool      `json:"can_edit"`
}

// Assign adds a volunteer to an event and emails them about it.
func (s *Service) Assign(ctx context.Context, actor *models.Actor, eventID uuid.UUID, in AssignInput) (*models.EventVolunteer, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetByID(ctx, in.VolunteerID)
	if err != nil {
		return nil, err
	}
	a := &models.EventVolunteer{
		EventID:      eventID,
		VolunteerID:  v.ID,
		AssignedRole: strings.TrimSpace(in.AssignedRole),
		CanEdit:      in.CanEdit,
	}
	if err := s.store.Assign(ctx, a); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityVolunteer,
		EntityID:   v.ID,
		EntityName: v.Name,
		Changes: map[string]any{
			"event_assigned": models.Change{From: nil, To: eventID.String()},
			"assigned_role":  models.Change{From: nil, To: a.AssignedRole},
			"can_edit":       models.Change{From: nil, To: a.CanEdit},
		},
	})
	s.notifier.Dispatch(ctx, notify.Notification{
		Channel:   models.ChannelEmail,
		Kind:      models.NotificationVolunteerAssigned,
		EventID:   &eventID,
		Recipient: v.Email,
		Data: map[string]string{
			"name":  v.Name,
			"title": event.Title,
			"date":  event.Date.Format(dateLayout),
			"role":  a.AssignedRole,
			"link":  s.events.Link(eventID),
		},
	})
	return a, nil
}

// Unassign removes a volunteer from an event.
func (s *Service) Unassign(ctx context.Context, actor *models.Actor, eventID, volunteerID uuid.UUID) error {
	if err := s.store.Unassign(ctx, eventID, volunteerID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityVolunteer,
		EntityID:   volunteerID,
		Changes: map[string]any{
			"event_assigned": models.Change{From: eventID.String(), To: nil},
		},
	})
	return nil
}

// ListByEvent returns an event's volunteers.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Assignment, error) {
	return s.store.ListByEvent(ctx, eventID)
}

// Promotion is the outcome of ConvertToMember.
type Promotion struct {
	Member        *models.Member `json:"member"`
	EventsCarried int            `json:"events_carried"`
}

// ConvertToMember promotes a volunteer with enough event assignments to the member directory.
// Their assignments carry over as event memberships and the volunteer entry is removed.
func (s *Service) ConvertToMember(ctx context.Context, actor *models.Actor, volunteerID uuid.UUID) (*Promotion, error) {
	v, err := s.store.GetByID(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	links, err := s.store.CountEventLinks(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	if links < s.threshold {
		return nil, apperrors.Validation("volunteer has %d event assignments; %d required for promotion", links, s.threshold)
	}
	member, carried, err := s.store.Promote(ctx, volunteerID, s.threshold)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionDelete,
		EntityType: models.EntityVolunteer,
		EntityID:   v.ID,
		EntityName: v.Name,
		Changes:    map[string]any{"promoted_to_member": member.ID.String()},
	})
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntityMember,
		EntityID:   member.ID,
		EntityName: member.Name,
		Changes: map[string]any{
			"promoted_from_volunteer": v.ID.String(),
			"events_carried":          carried,
		},
	})
	s.logger.Info("volunteer promoted",
		zap.String("volunteer_id", v.ID.String()),
		zap.String("member_id", member.ID.String()),
		zap.Int("events_carried", carried),
	)
	return &Promotion{Member: member, EventsCarried: carried}, nil
}

// MemberInput is the body for adding a member directly.
type MemberInput struct {
	Name   string     `json:"name" binding:"required"`
	Email  string     `json:"email" binding:"required,email"`
	Title  string     `json:"title"`
	UserID *uuid.UUID `json:"user_id"`
}

// CreateMember adds a core team member without a volunteer history.
func (s *Service) CreateMember(ctx context.Context, actor *models.Actor, in MemberInput) (*models.Member, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return nil, apperrors.Validation("name and email are required")
	}
	m := &models.Member{Name: name, Email: email, Title: strings.TrimSpace(in.Title), UserID: in.UserID}
	if err := s.store.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntityMember,
		EntityID:   m.ID,
		EntityName: m.Name,
	})
	return m, nil
}

// ListMembers returns the member directory.
func (s *Service) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.store.ListMembers(ctx)
}
