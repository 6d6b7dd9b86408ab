package sop

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

const (
	// maxRelativeDays bounds blueprint offsets to a sensible planning horizon.
	maxRelativeDays = 730
	deadlineLayout  = "Mon 2 Jan 2006"
)

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	CreateTemplate(ctx context.Context, t *models.SOPTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.SOPTemplate, error)
	ListTemplates(ctx context.Context) ([]*models.SOPTemplate, error)
	UpdateTemplate(ctx context.Context, t *models.SOPTemplate) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	ReplaceChecklists(ctx context.Context, eventID uuid.UUID, planned []PlannedChecklist) ([]models.SOPChecklist, int, error)
	ListChecklists(ctx context.Context, eventID uuid.UUID) ([]models.SOPChecklist, error)
	GetTask(ctx context.Context, eventID, taskID uuid.UUID) (*models.SOPTask, error)
	UpdateTask(ctx context.Context, t *models.SOPTask) error
	AddTask(ctx context.Context, eventID uuid.UUID, t *models.SOPTask) error
	ListTasksByStatus(ctx context.Context, eventID uuid.UUID, status models.TaskStatus) ([]models.SOPTask, error)
	ResetTasksToTodo(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	GetAssignee(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EventGetter loads the event a checklist belongs to.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Broadcaster pushes live updates to clients watching an event.
type Broadcaster interface {
	BroadcastToEventAndPublish(eventID uuid.UUID, msgType string, payload interface{})
}

// Live update message types.
const (
	MsgChecklistsReplaced = "checklists_replaced"
	MsgTaskUpdated        = "task_updated"
	MsgTaskAdded          = "task_added"
	MsgTasksReset         = "tasks_reset"
)

// Service implements the SOP template and checklist operations.
type Service struct {
	store    Store
	events   EventGetter
	audit    *audit.Recorder
	notifier notify.Dispatcher
	hub      Broadcaster
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an SOP service. notifier, hub and m may be nil.
func NewService(store Store, events EventGetter, rec *audit.Recorder, notifier notify.Dispatcher, hub Broadcaster, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		events:   events,
		audit:    rec,
		notifier: notifier,
		hub:      hub,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// TemplateInput is the writable part of a template.
type TemplateInput struct {
	Name         string                 `json:"name" binding:"required"`
	Description  string                 `json:"description"`
	DefaultTasks []models.TaskBlueprint `json:"default_tasks"`
}

// ValidateBlueprints checks blueprint fields before a template is stored.
func ValidateBlueprints(bps []models.TaskBlueprint) error {
	for i, b := range bps {
		if strings.TrimSpace(b.Title) == "" {
			return apperrors.Validation("default_tasks[%d]: title is required", i)
		}
		if b.Section != "" && !b.Section.Valid() {
			return apperrors.Validation("default_tasks[%d]: invalid section %q", i, b.Section)
		}
		if b.Priority != "" && !b.Priority.Valid() {
			return apperrors.Validation("default_tasks[%d]: invalid priority %q", i, b.Priority)
		}
		if b.RelativeDays != nil && (*b.RelativeDays > maxRelativeDays || *b.RelativeDays < -maxRelativeDays) {
			return apperrors.Validation("default_tasks[%d]: relative_days out of range", i)
		}
	}
	return nil
}

func (in TemplateInput) normalize() (TemplateInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apperrors.Validation("name is required")
	}
	if in.DefaultTasks == nil {
		in.DefaultTasks = []models.TaskBlueprint{}
	}
	for i := range in.DefaultTasks {
		in.DefaultTasks[i].Title = strings.TrimSpace(in.DefaultTasks[i].Title)
	}
	return in, ValidateBlueprints(in.DefaultTasks)
}

// CreateTemplate stores a new template.
func (s *Service) CreateTemplate(ctx context.Context, actor *models.Actor, in TemplateInput) (*models.SOPTemplate, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	t := &models.SOPTemplate{
		Name:         in.Name,
		Description:  in.Description,
		DefaultTasks: in.DefaultTasks,
		CreatedBy:    actor.UserID,
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntitySOPTemplate,
		EntityID:   t.ID,
		EntityName: t.Name,
		Changes:    map[string]any{"tasks": len(t.DefaultTasks)},
	})
	return t, nil
}

// ListTemplates returns every template.
func (s *Service) ListTemplates(ctx context.Context) ([]*models.SOPTemplate, error) {
	return s.store.ListTemplates(ctx)
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*models.SOPTemplate, error) {
	return s.store.GetTemplate(ctx, id)
}

// UpdateTemplate replaces a template's fields. Checklists already generated are untouched.
func (s *Service) UpdateTemplate(ctx context.Context, actor *models.Actor, id uuid.UUID, in TemplateInput) (*models.SOPTemplate, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	before := templateFields(t)
	t.Name, t.Description, t.DefaultTasks = in.Name, in.Description, in.DefaultTasks
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntitySOPTemplate,
		EntityID:   t.ID,
		EntityName: t.Name,
	}, before, templateFields(t))
	return t, nil
}

func templateFields(t *models.SOPTemplate) map[string]any {
	return map[string]any{
		"name":          t.Name,
		"description":   t.Description,
		"default_tasks": t.DefaultTasks,
	}
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, actor *models.Actor, id uuid.UUID) error {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionDelete,
		EntityType: models.EntitySOPTemplate,
		EntityID:   id,
		EntityName: t.Name,
	})
	return nil
}

// ApplyTemplateToEvent regenerates the event's checklists from a template. Every existing
// checklist and task of the event is replaced, completion state included.
func (s *Service) ApplyTemplateToEvent(ctx context.Context, actor *models.Actor, eventID, templateID uuid.UUID) ([]models.SOPChecklist, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	planned := ApplyTemplate(event.Date, tmpl.DefaultTasks)
	checklists, removed, err := s.store.ReplaceChecklists(ctx, eventID, planned)
	if err != nil {
		return nil, err
	}
	tasks := 0
	for _, cl := range checklists {
		tasks += len(cl.Tasks)
	}
	s.metrics.AddChecklistsGenerated(len(checklists))
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionUpdate,
		EntityType: models.EntityEvent,
		EntityID:   eventID,
		EntityName: event.Title,
		Changes: map[string]any{
			"sop_template": models.Change{From: nil, To: tmpl.Name},
			"checklists":   models.Change{From: removed, To: len(checklists)},
		},
	})
	s.broadcast(eventID, MsgChecklistsReplaced, checklists)
	s.notifier.Dispatch(ctx, notify.Notification{
		Channel: models.ChannelDiscord,
		Kind:    models.NotificationChecklistsApplied,
		EventID: &eventID,
		Data: map[string]string{
			"title":      event.Title,
			"template":   tmpl.Name,
			"checklists": strconv.Itoa(len(checklists)),
			"tasks":      strconv.Itoa(tasks),
		},
	})
	s.logger.Info("template applied",
		zap.String("event_id", eventID.String()),
		zap.String("template_id", templateID.String()),
		zap.Int("checklists", len(checklists)),
		zap.Int("replaced", removed),
	)
	return checklists, nil
}

// ListChecklists returns the event's checklists with tasks.
func (s *Service) ListChecklists(ctx context.Context, eventID uuid.UUID) ([]models.SOPChecklist, error) {
	return s.store.ListChecklists(ctx, eventID)
}

// TaskUpdate is a partial task update. Clear flags null the matching optional field.
type TaskUpdate struct {
	Title         *string            `json:"title"`
	Priority      *models.Priority   `json:"priority"`
	Status        *models.TaskStatus `json:"status"`
	Deadline      *time.Time         `json:"deadline"`
	ClearDeadline bool               `json:"clear_deadline"`
	AssigneeID    *uuid.UUID         `json:"assignee_id"`
	ClearAssignee bool               `json:"clear_assignee"`
}

// UpdateTask applies a partial update. Moving to DONE stamps completed_at; leaving DONE clears it.
func (s *Service) UpdateTask(ctx context.Context, actor *models.Actor, eventID, taskID uuid.UUID, in TaskUpdate) (*models.SOPTask, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperrors.Validation("title cannot be empty")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperrors.Validation("invalid priority %q", *in.Priority)
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.Validation("invalid status %q", *in.Status)
	}
	task, err := s.store.GetTask(ctx, eventID, taskID)
	if err != nil {
		return nil, err
	}
	before := task.AuditFields()
	previousAssignee := task.AssigneeID

	var assignee *models.User
	if !in.ClearAssignee && in.AssigneeID != nil && !sameID(previousAssignee, in.AssigneeID) {
		if assignee, err = s.store.GetAssignee(ctx, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.ClearDeadline {
		task.Deadline = nil
	} else if in.Deadline != nil {
		d := in.Deadline.UTC()
		task.Deadline = &d
	}
	if in.ClearAssignee {
		task.AssigneeID = nil
	} else if in.AssigneeID != nil {
		id := *in.AssigneeID
		task.AssigneeID = &id
	}
	if in.Status != nil && *in.Status != task.Status {
		switch {
		case *in.Status == models.TaskStatusDone:
			now := s.now().UTC()
			task.CompletedAt = &now
		case task.Status == models.TaskStatusDone:
			task.CompletedAt = nil
		}
		task.Status = *in.Status
	}
	if task.OwnerID == nil {
		owner := actor.UserID
		task.OwnerID = &owner
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	s.audit.LogChanges(ctx, audit.Entry{
		UserID:     actor.UserID,
		EntityType: models.EntitySOPTask,
		EntityID:   task.ID,
		EntityName: task.Title,
	}, before, task.AuditFields())
	s.broadcast(eventID, MsgTaskUpdated, task)
	if assignee != nil {
		s.notifyAssignee(ctx, actor, eventID, task, assignee)
	}
	return task, nil
}

// NewTask is the body for an ad-hoc task.
type NewTask struct {
	Title      string          `json:"title" binding:"required"`
	Priority   models.Priority `json:"priority"`
	Deadline   *time.Time      `json:"deadline"`
	AssigneeID *uuid.UUID      `json:"assignee_id"`
}

// AddTask appends an ad-hoc task to one of the event's checklists.
func (s *Service) AddTask(ctx context.Context, actor *models.Actor, eventID, checklistID uuid.UUID, in NewTask) (*models.SOPTask, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return nil, apperrors.Validation("invalid priority %q", in.Priority)
	}
	var assignee *models.User
	if in.AssigneeID != nil {
		var err error
		if assignee, err = s.store.GetAssignee(ctx, *in.AssigneeID); err != nil {
			return nil, err
		}
	}
	owner := actor.UserID
	task := &models.SOPTask{
		ChecklistID: checklistID,
		Title:       title,
		Priority:    ResolvePriority(in.Priority),
		Status:      models.TaskStatusTodo,
		Deadline:    in.Deadline,
		OwnerID:     &owner,
		AssigneeID:  in.AssigneeID,
	}
	if err := s.store.AddTask(ctx, eventID, task); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		UserID:     actor.UserID,
		Action:     models.AuditActionCreate,
		EntityType: models.EntitySOPTask,
		EntityID:   task.ID,
		EntityName: task.Title,
	})
	s.broadcast(eventID, MsgTaskAdded, task)
	if assignee != nil {
		s.notifyAssignee(ctx, actor, eventID, task, assignee)
	}
	return task, nil
}

// notifyAssignee emails a user who was just given a task. Self-assignment sends nothing.
func (s *Service) notifyAssignee(ctx context.Context, actor *models.Actor, eventID uuid.UUID, task *models.SOPTask, assignee *models.User) {
	if assignee.ID == actor.UserID {
		return
	}
	data := map[string]string{
		"name":  assignee.FullName,
		"task":  task.Title,
		"title": "",
	}
	if event, err := s.events.GetByID(ctx, eventID); err == nil {
		data["title"] = event.Title
	} else {
		s.logger.Warn("load event for assignment email failed", zap.Error(err), zap.String("event_id", eventID.String()))
	}
	if task.Deadline != nil {
		data["deadline"] = task.Deadline.Format(deadlineLayout)
	}
	s.notifier.Dispatch(ctx, notify.Notification{
		Channel:   models.ChannelEmail,
		Kind:      models.NotificationTaskAssigned,
		EventID:   &eventID,
		Recipient: assignee.Email,
		Data:      data,
	})
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

// ResetVenueConfirmationTasks reopens the event's DONE venue confirmation tasks after a
// confirmed venue partner was removed. One audit entry is written per reset task.
func (s *Service) ResetVenueConfirmationTasks(ctx context.Context, actorID, eventID uuid.UUID) (int, error) {
	done, err := s.store.ListTasksByStatus(ctx, eventID, models.TaskStatusDone)
	if err != nil {
		return 0, err
	}
	byID := make(map[uuid.UUID]models.SOPTask)
	var ids []uuid.UUID
	for _, t := range done {
		if IsVenueConfirmationTask(t.Title) {
			byID[t.ID] = t
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	reset, err := s.store.ResetTasksToTodo(ctx, ids)
	if err != nil {
		return 0, err
	}
	for _, id := range reset {
		t := byID[id]
		var completedAt any
		if t.CompletedAt != nil {
			completedAt = t.CompletedAt.UTC().Format(time.RFC3339)
		}
		s.audit.Log(ctx, audit.Entry{
			UserID:     actorID,
			Action:     models.AuditActionUpdate,
			EntityType: models.EntitySOPTask,
			EntityID:   id,
			EntityName: t.Title,
			Changes: map[string]any{
				"status":       models.Change{From: string(models.TaskStatusDone), To: string(models.TaskStatusTodo)},
				"completed_at": models.Change{From: completedAt, To: nil},
				"reason":       VenueResetReason,
			},
		})
	}
	s.metrics.AddVenueTasksReset(len(reset))
	if len(reset) > 0 {
		s.broadcast(eventID, MsgTasksReset, map[string]interface{}{"task_ids": reset, "reason": VenueResetReason})
	}
	return len(reset), nil
}

func (s *Service) broadcast(eventID uuid.UUID, msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToEventAndPublish(eventID, msgType, payload)
}
