package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
)

// Repository handles audit_logs persistence. Rows are only ever inserted.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts one audit record.
func (r *Repository) Append(ctx context.Context, e *models.AuditLog) error {
	var changes []byte
	if e.Changes != nil {
		var err error
		if changes, err = json.Marshal(e.Changes); err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
	}
	const q = `INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, entity_name, changes, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id`
	return r.pool.QueryRow(ctx, q, e.UserID, string(e.Action), string(e.EntityType), e.EntityID, e.EntityName, changes, e.CreatedAt).
		Scan(&e.ID)
}

// Filter narrows an audit listing.
type Filter struct {
	EntityType *models.EntityType
	UserID     *uuid.UUID
	EntityID   *uuid.UUID
	Limit      int
	Offset     int
}

// List returns a page of audit records, newest first, and the total matching count.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.AuditLog, int, error) {
	var conds []string
	var args []interface{}
	if f.EntityType != nil {
		args = append(args, string(*f.EntityType))
		conds = append(conds, "entity_type = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}
	if f.EntityID != nil {
		args = append(args, *f.EntityID)
		conds = append(conds, "entity_id = $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	q := `SELECT id, user_id, action, entity_type, entity_id, COALESCE(entity_name, ''), changes, created_at
		FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var list []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		var changes []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.EntityName, &changes, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(changes) > 0 {
			e.Changes = json.RawMessage(changes)
		}
		list = append(list, e)
	}
	return list, total, rows.Err()
}
