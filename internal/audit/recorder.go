package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/models"
)

// persistTimeout bounds an audit write so a slow database cannot stall the caller.
const persistTimeout = 5 * time.Second

// Store persists audit records.
type Store interface {
	Append(ctx context.Context, entry *models.AuditLog) error
}

// Entry describes one mutation to record.
type Entry struct {
	UserID     uuid.UUID
	Action     models.AuditAction
	EntityType models.EntityType
	EntityID   uuid.UUID
	EntityName string
	Changes    any
}

// Recorder appends audit records on behalf of business operations. It never
// returns an error: by the time it runs, the mutation has already committed.
type Recorder struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder creates an audit recorder. m may be nil.
func NewRecorder(store Store, logger *zap.Logger, m *metrics.Metrics) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger, metrics: m, now: time.Now}
}

// Log appends one record. Persistence failures are logged and swallowed.
func (r *Recorder) Log(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	rec := &models.AuditLog{
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		Changes:    e.Changes,
		CreatedAt:  r.now().UTC(),
	}
	if e.UserID != uuid.Nil {
		uid := e.UserID
		rec.UserID = &uid
	}

	// detach from request cancellation; the mutation already happened
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := r.store.Append(ctx, rec)
	r.metrics.ObserveAuditWrite(err == nil)
	if err != nil {
		r.logger.Error("audit log write failed",
			zap.Error(err),
			zap.String("action", string(e.Action)),
			zap.String("entity_type", string(e.EntityType)),
			zap.String("entity_id", e.EntityID.String()),
		)
	}
}

// LogChanges diffs before and after and records an UPDATE only when something changed.
// It reports whether a record was attempted.
func (r *Recorder) LogChanges(ctx context.Context, e Entry, before, after map[string]any) bool {
	diff := DiffChanges(before, after)
	if len(diff) == 0 {
		return false
	}
	e.Action = models.AuditActionUpdate
	e.Changes = diff
	r.Log(ctx, e)
	return true
}
