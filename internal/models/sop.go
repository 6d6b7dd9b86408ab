package models

import (
	"time"

	"github.com/google/uuid"
)

// Section is the coarse phase of an event a task belongs to.
type Section string

const (
	SectionPreEvent  Section = "PRE_EVENT"
	SectionOnDay     Section = "ON_DAY"
	SectionPostEvent Section = "POST_EVENT"
)

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionPreEvent, SectionOnDay, SectionPostEvent:
		return true
	}
	return false
}

// Priority of an SOP task.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TaskStatus is the progress state of an SOP task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
	TaskStatusDone       TaskStatus = "DONE"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone:
		return true
	}
	return false
}

// TaskBlueprint is a template task not yet bound to an event date.
// RelativeDays > 0 is days before the event, 0 the day itself, < 0 days after.
type TaskBlueprint struct {
	Title        string   `json:"title"`
	RelativeDays *int     `json:"relative_days,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	Section      Section  `json:"section,omitempty"`
	Subcategory  string   `json:"subcategory,omitempty"`
}

// SOPTemplate is a reusable set of task blueprints.
type SOPTemplate struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	DefaultTasks []TaskBlueprint `json:"default_tasks"`
	CreatedBy    uuid.UUID       `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SOPChecklist groups the tasks of one section/subcategory for an event.
type SOPChecklist struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Title     string    `json:"title"`
	SortOrder int       `json:"sort_order"`
	Tasks     []SOPTask `json:"tasks"`
	CreatedAt time.Time `json:"created_at"`
}

// SOPTask is a concrete checklist task with an absolute deadline.
type SOPTask struct {
	ID          uuid.UUID  `json:"id"`
	ChecklistID uuid.UUID  `json:"checklist_id"`
	Title       string     `json:"title"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	SortOrder   int        `json:"sort_order"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AuditFields is the field set compared when a task is updated.
func (t *SOPTask) AuditFields() map[string]any {
	m := map[string]any{
		"title":       t.Title,
		"priority":    string(t.Priority),
		"status":      string(t.Status),
		"deadline":    nil,
		"assignee_id": nil,
	}
	if t.Deadline != nil {
		m["deadline"] = t.Deadline.UTC().Format(time.RFC3339)
	}
	if t.AssigneeID != nil {
		m["assignee_id"] = t.AssigneeID.String()
	}
	return m
}
