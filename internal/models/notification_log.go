package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelDiscord = "discord"
)

// Notification kinds.
const (
	NotificationEventScheduled    = "event_scheduled"
	NotificationEventRescheduled  = "event_rescheduled"
	NotificationVolunteerAssigned = "volunteer_assigned"
	NotificationChecklistsApplied = "checklists_applied"
	NotificationVenueConfirmReset = "venue_confirmation_reset"
	NotificationWeeklyDigest      = "weekly_digest"
	NotificationTaskAssigned      = "task_assigned"
)

// Delivery statuses.
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
	NotificationStatusDead   = "dead"
)

// NotificationLog records one delivery outcome.
type NotificationLog struct {
	ID           uuid.UUID  `json:"id"`
	EventID      *uuid.UUID `json:"event_id,omitempty"`
	Channel      string     `json:"channel"`
	Kind         string     `json:"kind"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject,omitempty"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
