package venues

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

// Partner is a venue directory entry with its status for one event.
type Partner struct {
	models.Venue
	Status  models.PartnerStatus `json:"status"`
	AddedAt time.Time            `json:"added_at"`
}

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, v *models.Venue) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Venue, error)
	List(ctx context.Context) ([]models.Venue, error)
	Update(ctx context.Context, v *models.Venue) error
	Delete(ctx context.Context, id uuid.UUID) error
	LinkPartner(ctx context.Context, p *models.EventVenuePartner) error
	UpdatePartnerStatus(ctx context.Context, eventID, venueID uuid.UUID, status models.PartnerStatus) (models.PartnerStatus, error)
	UnlinkPartner(ctx context.Context, eventID, venueID uuid.UUID) (models.PartnerStatus, error)
	ListPartners(ctx context.Context, eventID uuid.UUID) ([]Partner, error)
}

// TaskResetter reopens venue confirmation tasks; *sop.Service satisfies it.
type TaskResetter interface {
	ResetVenueConfirmationTasks(ctx context.Context, actorID, eventID uuid.UUID) (int, error)
}

// EventGetter loads event titles for notifications.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service implements the venue directory and event partner links.
type Service struct {
	store    Store
	events   EventGetter
	resetter TaskResetter
	audit    *audit.Recorder
	notifier notify.Dispatcher
	logger   *zap.Logger
}

// NewService creates a venue service. notifier may be nil.
func NewService(store Store, events EventGetter, resetter TaskResetter, rec *audit.Recorder, notifier notify.Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		events:   events,
		resetter: resetter,
		audit:    rec,
		notifier: notifier,
		logger:   logger,
	}
}

// Input is the writable part of a venue.
type Input struct {
	Name        string `json:"name" binding:"required"`
	Address     string `json:"address"`
	Capacity    int    `json:"capacity"`
	ContactName string `json:"contact_name"`
}

func (in Input) normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.ContactName = strings.TrimSpace(in.ContactName)
	if in.Name == "" {
		return in, apperrors.Validation("name is required")
	}
	if in.Capacity < 0 {
		return in, apperrors.Validation("capacity cannot be negative")
	}
	return in, nil
}

func venueFields(v *models.Venue) map[string]any {
	return map[string]any{
		"name":         v.Name,
		"address":      v.Address,
		"capacity":     v.Capacity,
		"contact_name": v.ContactName,
	}
}

// Create adds a venue to the directory.
func (s *Service) Create(ctx context.Context, actor *models.Actor, in Input) (*models.Venue, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	v := &models.Venue{Name: in.Name, Address: in.Address, Capacity: in.Capacity, ContactName: in.ContactName}
	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntityVenue,
		EntityID:   v.ID,
		EntityName: v.Name,
	})
	return v, nil
}

// List returns the directory.
func (s *Service) List(ctx context.Context) ([]models.Venue, error) {
	return s.store.List(ctx)
}

// Get returns one venue.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	return s.store.GetByID(ctx, id)
}

// Update replaces a venue's details and records the diff.
func (s *Service) Update(ctx context.Context, actor *models.Actor, id uuid.UUID, in Input) (*models.Venue, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := venueFields(v)
	v.Name, v.Address, v.Capacity, v.ContactName = in.Name, in.Address, in.Capacity, in.ContactName
	if err := s.store.Update(ctx, v); err != nil {
		return nil, err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntityVenue,
		EntityID:   v.ID,
		EntityName: v.Name,
	}, before, venueFields(v))
	return v, nil
}

// Delete removes a venue from the directory. Partner links go with it; no task reset runs.
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
		EntityType: models.EntityVenue,
		EntityID:   id,
		EntityName: v.Name,
	})
	return nil
}

// LinkPartner links a venue to an event. Status defaults to PENDING.
func (s *Service) LinkPartner(ctx context.Context, actor *models.Actor, eventID, venueID uuid.UUID, status models.PartnerStatus) (*models.EventVenuePartner, error) {
	if status == "" {
		status = models.PartnerStatusPending
	}
	if !status.Valid() {
		return nil, apperrors.Validation("invalid status %q", status)
	}
	v, err := s.store.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	p := &models.EventVenuePartner{EventID: eventID, VenueID: venueID, Status: status}
	if err := s.store.LinkPartner(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityVenue,
		EntityID:   venueID,
		EntityName: v.Name,
		Changes: map[string]any{
			"event_linked": models.Change{From: nil, To: eventID.String()},
			"status":       models.Change{From: nil, To: string(status)},
		},
	})
	return p, nil
}

// UpdatePartnerStatus changes a partner link's status.
func (s *Service) UpdatePartnerStatus(ctx context.Context, actor *models.Actor, eventID, venueID uuid.UUID, status models.PartnerStatus) error {
	if !status.Valid() {
		return apperrors.Validation("invalid status %q", status)
	}
	prev, err := s.store.UpdatePartnerStatus(ctx, eventID, venueID, status)
	if err != nil {
		return err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntityVenue,
		EntityID:   venueID,
	}, map[string]any{"status": string(prev), "event": eventID.String()},
		map[string]any{"status": string(status), "event": eventID.String()})
	return nil
}

// UnlinkResult reports what removing a partner did.
type UnlinkResult struct {
	PreviousStatus models.PartnerStatus `json:"previous_status"`
	TasksReset     int                  `json:"tasks_reset"`
}

// UnlinkPartner removes a venue from an event. Removing a CONFIRMED partner reopens the event's
// completed venue confirmation tasks.
func (s *Service) UnlinkPartner(ctx context.Context, actor *models.Actor, eventID, venueID uuid.UUID) (*UnlinkResult, error) {
	prev, err := s.store.UnlinkPartner(ctx, eventID, venueID)
	if err != nil {
		return nil, err
	}
	venueName := ""
	if v, err := s.store.GetByID(ctx, venueID); err == nil {
		venueName = v.Name
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityVenue,
		EntityID:   venueID,
		EntityName: venueName,
		Changes: map[string]any{
			"event_linked": models.Change{From: eventID.String(), To: nil},
			"status":       models.Change{From: string(prev), To: nil},
		},
	})
	res := &UnlinkResult{PreviousStatus: prev}
	if prev != models.PartnerStatusConfirmed {
		return res, nil
	}

	n, err := s.resetter.ResetVenueConfirmationTasks(ctx, actor.UserID, eventID)
	if err != nil {
		s.logger.Error("venue confirmation reset failed after unlink",
			zap.Error(err),
			zap.String("event_id", eventID.String()),
			zap.String("venue_id", venueID.String()),
		)
		return nil, fmt.Errorf("venue unlinked but task reset failed: %w", err)
	}
	res.TasksReset = n
	if n > 0 {
		s.notifyReset(ctx, eventID, venueName, n)
	}
	return res, nil
}

func (s *Service) notifyReset(ctx context.Context, eventID uuid.UUID, venueName string, tasks int) {
	title := eventID.String()
	if e, err := s.events.GetByID(ctx, eventID); err == nil {
		title = e.Title
	}
	s.notifier.Dispatch(ctx, notify.Notification{
		Channel: models.ChannelDiscord,
		Kind:    models.NotificationVenueConfirmReset,
		EventID: &eventID,
		Data: map[string]string{
			"title": title,
			"venue": venueName,
			"tasks": strconv.Itoa(tasks),
		},
	})
}

// ListPartners returns the venues linked to an event.
func (s *Service) ListPartners(ctx context.Context, eventID uuid.UUID) ([]Partner, error) {
	return s.store.ListPartners(ctx, eventID)
}
