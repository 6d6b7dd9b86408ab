package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-ops/backend/internal/models"
)

// NameLookup resolves a human-readable name for an entity ID.
type NameLookup func(ctx context.Context, id uuid.UUID) (string, error)

// NameRegistry maps entity types to their name lookups.
type NameRegistry struct {
	lookups map[models.EntityType]NameLookup
}

// NewNameRegistry creates an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{lookups: make(map[models.EntityType]NameLookup)}
}

// Register sets the lookup for an entity type, replacing any previous one.
func (r *NameRegistry) Register(t models.EntityType, fn NameLookup) {
	r.lookups[t] = fn
}

// Enrich fills EntityName on records that lack one. Lookup failures leave the name empty.
// Each distinct entity is looked up at most once.
func (r *NameRegistry) Enrich(ctx context.Context, logs []models.AuditLog) {
	type key struct {
		t  models.EntityType
		id uuid.UUID
	}
	cache := make(map[key]string)
	for i := range logs {
		if logs[i].EntityName != "" {
			continue
		}
		k := key{logs[i].EntityType, logs[i].EntityID}
		name, ok := cache[k]
		if !ok {
			if fn, registered := r.lookups[k.t]; registered {
				name, _ = fn(ctx, k.id)
			}
			cache[k] = name
		}
		logs[i].EntityName = name
	}
}

// nameColumns is the table and display column for each entity type.
var nameColumns = map[models.EntityType][2]string{
	models.EntityEvent:        {"events", "title"},
	models.EntityUser:         {"users", "full_name"},
	models.EntitySpeaker:      {"speakers", "name"},
	models.EntityVenue:        {"venues", "name"},
	models.EntityVolunteer:    {"volunteers", "name"},
	models.EntityMember:       {"members", "name"},
	models.EntitySOPTemplate:  {"sop_templates", "name"},
	models.EntitySOPChecklist: {"sop_checklists", "title"},
	models.EntitySOPTask:      {"sop_tasks", "title"},
}

// NewPostgresNameRegistry registers a table lookup for every entity type.
func NewPostgresNameRegistry(pool *pgxpool.Pool) *NameRegistry {
	reg := NewNameRegistry()
	for _, t := range models.EntityTypes() {
		cols, ok := nameColumns[t]
		if !ok {
			continue
		}
		q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", cols[1], cols[0])
		reg.Register(t, func(ctx context.Context, id uuid.UUID) (string, error) {
			var name string
			err := pool.QueryRow(ctx, q, id).Scan(&name)
			return name, err
		})
	}
	return reg
}
