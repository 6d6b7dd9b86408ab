package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusScheduled EventStatus = "SCHEDULED"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusScheduled, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// Event represents a meetup. Date anchors SOP deadline derivation.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        time.Time   `json:"date"`
	Status      EventStatus `json:"status"`
	VenueName   string      `json:"venue_name,omitempty"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AuditFields is the field set compared when an event is updated.
func (e *Event) AuditFields() map[string]any {
	return map[string]any{
		"title":       e.Title,
		"description": e.Description,
		"date":        e.Date.UTC().Format(time.RFC3339),
		"status":      string(e.Status),
		"venue_name":  e.VenueName,
	}
}

// EventMember links a member directory entry to an event.
type EventMember struct {
	EventID  uuid.UUID `json:"event_id"`
	MemberID uuid.UUID `json:"member_id"`
	CanEdit  bool      `json:"can_edit"`
	AddedAt  time.Time `json:"added_at"`
}

// EventVolunteer assigns a volunteer to an event.
type EventVolunteer struct {
	EventID      uuid.UUID `json:"event_id"`
	VolunteerID  uuid.UUID `json:"volunteer_id"`
	AssignedRole string    `json:"assigned_role,omitempty"`
	CanEdit      bool      `json:"can_edit"`
	AddedAt      time.Time `json:"added_at"`
}

// EventSpeaker links a speaker to an event.
type EventSpeaker struct {
	EventID   uuid.UUID `json:"event_id"`
	SpeakerID uuid.UUID `json:"speaker_id"`
	TalkTitle string    `json:"talk_title,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// PartnerStatus is the confirmation state of a venue partner link.
type PartnerStatus string

const (
	PartnerStatusPending   PartnerStatus = "PENDING"
	PartnerStatusConfirmed PartnerStatus = "CONFIRMED"
	PartnerStatusDeclined  PartnerStatus = "DECLINED"
)

// Valid reports whether s is a known partner status.
func (s PartnerStatus) Valid() bool {
	switch s {
	case PartnerStatusPending, PartnerStatusConfirmed, PartnerStatusDeclined:
		return true
	}
	return false
}

// EventVenuePartner links a venue to an event.
type EventVenuePartner struct {
	EventID   uuid.UUID     `json:"event_id"`
	VenueID   uuid.UUID     `json:"venue_id"`
	Status    PartnerStatus `json:"status"`
	AddedAt   time.Time     `json:"added_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
