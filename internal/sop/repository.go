package sop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/database"
)

// Repository handles sop_templates, sop_checklists and sop_tasks persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an SOP repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const templateColumns = `id, name, description, default_tasks, created_by, created_at, updated_at`

func scanTemplate(row pgx.Row) (*models.SOPTemplate, error) {
	var t models.SOPTemplate
	var raw []byte
	var createdBy *uuid.UUID
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &raw, &createdBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &t.DefaultTasks); err != nil {
		return nil, fmt.Errorf("decode default_tasks: %w", err)
	}
	if createdBy != nil {
		t.CreatedBy = *createdBy
	}
	return &t, nil
}

// CreateTemplate inserts a template.
func (r *Repository) CreateTemplate(ctx context.Context, t *models.SOPTemplate) error {
	raw, err := json.Marshal(t.DefaultTasks)
	if err != nil {
		return fmt.Errorf("encode default_tasks: %w", err)
	}
	const q = `INSERT INTO sop_templates (id, name, description, default_tasks, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.Name, t.Description, raw, t.CreatedBy).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetTemplate returns a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.SOPTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM sop_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("template")
	}
	return t, err
}

// ListTemplates returns all templates ordered by name.
func (r *Repository) ListTemplates(ctx context.Context) ([]*models.SOPTemplate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM sop_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.SOPTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// UpdateTemplate overwrites name, description and blueprints.
func (r *Repository) UpdateTemplate(ctx context.Context, t *models.SOPTemplate) error {
	raw, err := json.Marshal(t.DefaultTasks)
	if err != nil {
		return fmt.Errorf("encode default_tasks: %w", err)
	}
	const q = `UPDATE sop_templates SET name = $2, description = $3, default_tasks = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err = r.pool.QueryRow(ctx, q, t.ID, t.Name, t.Description, raw).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("template")
	}
	return err
}

// DeleteTemplate removes a template. Checklists already generated from it are kept.
func (r *Repository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sop_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("template")
	}
	return nil
}

// ReplaceChecklists deletes every checklist of the event (tasks cascade) and inserts the
// planned set, in one transaction. It returns the new checklists and how many were removed.
func (r *Repository) ReplaceChecklists(ctx context.Context, eventID uuid.UUID, planned []PlannedChecklist) ([]models.SOPChecklist, int, error) {
	var created []models.SOPChecklist
	var removed int
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM sop_checklists WHERE event_id = $1`, eventID)
		if err != nil {
			return fmt.Errorf("delete checklists: %w", err)
		}
		removed = int(tag.RowsAffected())

		created = make([]models.SOPChecklist, 0, len(planned))
		for _, pc := range planned {
			cl := models.SOPChecklist{EventID: eventID, Title: pc.Title, SortOrder: pc.SortOrder}
			err := tx.QueryRow(ctx, `INSERT INTO sop_checklists (id, event_id, title, sort_order)
				VALUES (gen_random_uuid(), $1, $2, $3) RETURNING id, created_at`,
				eventID, pc.Title, pc.SortOrder).Scan(&cl.ID, &cl.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert checklist: %w", err)
			}
			cl.Tasks = make([]models.SOPTask, 0, len(pc.Tasks))
			for _, pt := range pc.Tasks {
				task := models.SOPTask{
					ChecklistID: cl.ID,
					Title:       pt.Title,
					Priority:    pt.Priority,
					Status:      models.TaskStatusTodo,
					SortOrder:   pt.SortOrder,
					Deadline:    pt.Deadline,
				}
				err := tx.QueryRow(ctx, `INSERT INTO sop_tasks (id, checklist_id, title, priority, status, sort_order, deadline)
					VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
					cl.ID, task.Title, string(task.Priority), string(task.Status), task.SortOrder, task.Deadline).
					Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
				if err != nil {
					return fmt.Errorf("insert task: %w", err)
				}
				cl.Tasks = append(cl.Tasks, task)
			}
			created = append(created, cl)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return created, removed, nil
}

const taskColumns = `t.id, t.checklist_id, t.title, t.priority, t.status, t.sort_order, t.deadline,
	t.owner_id, t.assignee_id, t.completed_at, t.created_at, t.updated_at`

func scanTask(row pgx.Row) (*models.SOPTask, error) {
	var t models.SOPTask
	var priority, status string
	err := row.Scan(&t.ID, &t.ChecklistID, &t.Title, &priority, &status, &t.SortOrder, &t.Deadline,
		&t.OwnerID, &t.AssigneeID, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Priority = models.Priority(priority)
	t.Status = models.TaskStatus(status)
	return &t, nil
}

// ListChecklists returns the event's checklists with their tasks, both in sort order.
func (r *Repository) ListChecklists(ctx context.Context, eventID uuid.UUID) ([]models.SOPChecklist, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, title, sort_order, created_at
		FROM sop_checklists WHERE event_id = $1 ORDER BY sort_order, created_at`, eventID)
	if err != nil {
		return nil, err
	}
	var lists []models.SOPChecklist
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var cl models.SOPChecklist
		if err := rows.Scan(&cl.ID, &cl.EventID, &cl.Title, &cl.SortOrder, &cl.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		cl.Tasks = []models.SOPTask{}
		index[cl.ID] = len(lists)
		lists = append(lists, cl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return []models.SOPChecklist{}, nil
	}

	taskRows, err := r.pool.Query(ctx, `SELECT `+taskColumns+`
		FROM sop_tasks t JOIN sop_checklists c ON c.id = t.checklist_id
		WHERE c.event_id = $1 ORDER BY t.sort_order, t.created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer taskRows.Close()
	for taskRows.Next() {
		t, err := scanTask(taskRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[t.ChecklistID]; ok {
			lists[i].Tasks = append(lists[i].Tasks, *t)
		}
	}
	return lists, taskRows.Err()
}

// GetTask returns a task only if it belongs to the event.
func (r *Repository) GetTask(ctx context.Context, eventID, taskID uuid.UUID) (*models.SOPTask, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+`
		FROM sop_tasks t JOIN sop_checklists c ON c.id = t.checklist_id
		WHERE t.id = $1 AND c.event_id = $2`, taskID, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("task")
	}
	return t, err
}

// UpdateTask persists the mutable task fields.
func (r *Repository) UpdateTask(ctx context.Context, t *models.SOPTask) error {
	const q = `UPDATE sop_tasks SET title = $2, priority = $3, status = $4, deadline = $5,
		owner_id = $6, assignee_id = $7, completed_at = $8, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.Title, string(t.Priority), string(t.Status), t.Deadline,
		t.OwnerID, t.AssigneeID, t.CompletedAt).Scan(&t.UpdatedAt)
	return taskWriteError(err, "task")
}

// AddTask appends a task to a checklist of the event.
func (r *Repository) AddTask(ctx context.Context, eventID uuid.UUID, t *models.SOPTask) error {
	const q = `INSERT INTO sop_tasks (id, checklist_id, title, priority, status, sort_order, deadline, owner_id, assignee_id)
		SELECT gen_random_uuid(), c.id, $3, $4, $5,
			COALESCE((SELECT MAX(sort_order) + 1 FROM sop_tasks WHERE checklist_id = c.id), 0),
			$6, $7, $8
		FROM sop_checklists c WHERE c.id = $1 AND c.event_id = $2
		RETURNING id, sort_order, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, t.ChecklistID, eventID, t.Title, string(t.Priority), string(t.Status),
		t.Deadline, t.OwnerID, t.AssigneeID).Scan(&t.ID, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	return taskWriteError(err, "checklist")
}

// taskWriteError maps a task write failure: no row means the target is gone, a foreign key
// violation means the assignee is not a user.
func taskWriteError(err error, target string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NotFound(target)
	case database.IsForeignKeyViolation(err):
		return apperrors.NotFound("assignee")
	}
	return fmt.Errorf("write task: %w", err)
}

// GetAssignee returns an active user that tasks can be assigned to.
func (r *Repository) GetAssignee(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, email, full_name, role FROM users
		WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&u.ID, &u.Email, &u.FullName, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("assignee")
	}
	if err != nil {
		return nil, fmt.Errorf("get assignee: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

// ListTasksByStatus returns the event's tasks in the given status.
func (r *Repository) ListTasksByStatus(ctx context.Context, eventID uuid.UUID, status models.TaskStatus) ([]models.SOPTask, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+`
		FROM sop_tasks t JOIN sop_checklists c ON c.id = t.checklist_id
		WHERE c.event_id = $1 AND t.status = $2 ORDER BY c.sort_order, t.sort_order`, eventID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SOPTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// ResetTasksToTodo moves the given DONE tasks back to TODO and clears completed_at.
// It returns the IDs that were actually reset.
func (r *Repository) ResetTasksToTodo(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `UPDATE sop_tasks SET status = 'TODO', completed_at = NULL, updated_at = $2
		WHERE id = ANY($1) AND status = 'DONE' RETURNING id`, ids, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
