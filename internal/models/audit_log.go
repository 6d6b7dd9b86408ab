package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of mutation recorded.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// EntityType tags the kind of entity an audit entry refers to.
type EntityType string

const (
	EntityEvent        EntityType = "EVENT"
	EntityUser         EntityType = "USER"
	EntitySpeaker      EntityType = "SPEAKER"
	EntityVenue        EntityType = "VENUE"
	EntityVolunteer    EntityType = "VOLUNTEER"
	EntityMember       EntityType = "MEMBER"
	EntitySOPTemplate  EntityType = "SOP_TEMPLATE"
	EntitySOPChecklist EntityType = "SOP_CHECKLIST"
	EntitySOPTask      EntityType = "SOP_TASK"
)

// EntityTypes lists every entity type that can appear in the audit log.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityEvent, EntityUser, EntitySpeaker, EntityVenue, EntityVolunteer,
		EntityMember, EntitySOPTemplate, EntitySOPChecklist, EntitySOPTask,
	}
}

// Change is one field's before/after pair.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// AuditLog is an immutable record of one mutation. Changes holds a field diff
// (map[string]Change) or a free-form payload such as a reason.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	UserID     *uuid.UUID  `json:"user_id,omitempty"`
	Action     AuditAction `json:"action"`
	EntityType EntityType  `json:"entity_type"`
	EntityID   uuid.UUID   `json:"entity_id"`
	EntityName string      `json:"entity_name,omitempty"`
	Changes    any         `json:"changes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
