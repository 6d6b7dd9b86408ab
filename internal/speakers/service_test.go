package speakers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

type memStore struct {
	speakers map[uuid.UUID]*models.Speaker
	links    map[[2]uuid.UUID]*models.EventSpeaker
}

func newMemStore() *memStore {
	return &memStore{speakers: map[uuid.UUID]*models.Speaker{}, links: map[[2]uuid.UUID]*models.EventSpeaker{}}
}

func (m *memStore) Create(_ context.Context, s *models.Speaker) error {
	s.ID = uuid.New()
	cp := *s
	m.speakers[s.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Speaker, error) {
	s, ok := m.speakers[id]
	if !ok {
		return nil, apperrors.NotFound("speaker")
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) List(context.Context) ([]models.Speaker, error) {
	var out []models.Speaker
	for _, s := range m.speakers {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, s *models.Speaker) error {
	cp := *s
	m.speakers[s.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.speakers, id)
	for k := range m.links {
		if k[1] == id {
			delete(m.links, k)
		}
	}
	return nil
}

func (m *memStore) Link(_ context.Context, l *models.EventSpeaker) error {
	k := [2]uuid.UUID{l.EventID, l.SpeakerID}
	if _, dup := m.links[k]; dup {
		return apperrors.Conflict("speaker already linked to this event")
	}
	m.links[k] = l
	return nil
}

func (m *memStore) Unlink(_ context.Context, eventID, speakerID uuid.UUID) error {
	k := [2]uuid.UUID{eventID, speakerID}
	if _, ok := m.links[k]; !ok {
		return apperrors.NotFound("event speaker")
	}
	delete(m.links, k)
	return nil
}

func (m *memStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]EventSpeaker, error) {
	out := []EventSpeaker{}
	for k, l := range m.links {
		if k[0] == eventID {
			out = append(out, EventSpeaker{Speaker: *m.speakers[k[1]], TalkTitle: l.TalkTitle})
		}
	}
	return out, nil
}

type auditStore struct{ entries []*models.AuditLog }

func (a *auditStore) Append(_ context.Context, e *models.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

var lead = &models.Actor{UserID: uuid.New(), Role: models.RoleEventLead}

func TestCreateNormalizesAndAudits(t *testing.T) {
	audits := &auditStore{}
	svc := NewService(newMemStore(), audit.NewRecorder(audits, nil, nil))

	sp, err := svc.Create(context.Background(), lead, Input{Name: " Ada ", Email: "ADA@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", sp.Name)
	assert.Equal(t, "ada@example.com", sp.Email)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, "Ada", audits.entries[0].EntityName)

	_, err = svc.Create(context.Background(), lead, Input{Name: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateDiffsFields(t *testing.T) {
	audits := &auditStore{}
	svc := NewService(newMemStore(), audit.NewRecorder(audits, nil, nil))
	sp, err := svc.Create(context.Background(), lead, Input{Name: "Ada", Bio: "compilers"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), lead, sp.ID, Input{Name: "Ada", Bio: "distributed systems"})
	require.NoError(t, err)
	require.Len(t, audits.entries, 2)
	assert.Equal(t, map[string]models.Change{"bio": {From: "compilers", To: "distributed systems"}},
		audits.entries[1].Changes.(map[string]models.Change))

	_, err = svc.Update(context.Background(), lead, uuid.New(), Input{Name: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLinkConflictAndUnlink(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	sp, err := svc.Create(context.Background(), lead, Input{Name: "Ada"})
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = svc.LinkToEvent(context.Background(), lead, eventID, sp.ID, " Generics in practice ")
	require.NoError(t, err)
	_, err = svc.LinkToEvent(context.Background(), lead, eventID, sp.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = svc.LinkToEvent(context.Background(), lead, eventID, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := svc.ListByEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Generics in practice", list[0].TalkTitle)

	require.NoError(t, svc.UnlinkFromEvent(context.Background(), lead, eventID, sp.ID))
	assert.ErrorIs(t, svc.UnlinkFromEvent(context.Background(), lead, eventID, sp.ID), apperrors.ErrNotFound)
}

func TestLinkHandlerStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	svc := NewService(store, nil)
	sp, err := svc.Create(context.Background(), lead, Input{Name: "Ada"})
	require.NoError(t, err)
	eventID := uuid.New()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextActor, lead)
		c.Set(middleware.ContextEventID, eventID)
	})
	r.POST("/events/:id/speakers", NewHandler(svc).Link)
	post := func(body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/speakers", strings.NewReader(body)))
		return w.Code
	}

	body := `{"speaker_id":"` + sp.ID.String() + `","talk_title":"Generics"}`
	assert.Equal(t, http.StatusCreated, post(body))
	assert.Equal(t, http.StatusConflict, post(body))
	assert.Equal(t, http.StatusBadRequest, post(`{"speaker_id":"not-a-uuid"}`))
	assert.Equal(t, http.StatusNotFound, post(`{"speaker_id":"`+uuid.NewString()+`"}`))
}
