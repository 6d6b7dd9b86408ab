package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/apperrors"
)

type memStore struct {
	events     map[uuid.UUID]*models.Event
	assigned   map[uuid.UUID][]uuid.UUID
	members    map[[2]uuid.UUID]bool
	recipients []Recipient
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[uuid.UUID]*models.Event{},
		assigned: map[uuid.UUID][]uuid.UUID{},
		members:  map[[2]uuid.UUID]bool{},
	}
}

func (m *memStore) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.New()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperrors.NotFound("event")
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) List(context.Context) ([]models.Event, error) {
	var out []models.Event
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Event, error) {
	var out []models.Event
	for _, id := range m.assigned[userID] {
		out = append(out, *m.events[id])
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, e *models.Event) error {
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.events, id)
	return nil
}

func (m *memStore) AddMember(_ context.Context, em *models.EventMember) error {
	k := [2]uuid.UUID{em.EventID, em.MemberID}
	if m.members[k] {
		return apperrors.Conflict("member already linked to this event")
	}
	m.members[k] = true
	return nil
}

func (m *memStore) RemoveMember(_ context.Context, eventID, memberID uuid.UUID) error {
	k := [2]uuid.UUID{eventID, memberID}
	if !m.members[k] {
		return apperrors.NotFound("event member")
	}
	delete(m.members, k)
	return nil
}

func (m *memStore) ListMembers(context.Context, uuid.UUID) ([]MemberLink, error) {
	return []MemberLink{}, nil
}

func (m *memStore) ListVolunteerRecipients(context.Context, uuid.UUID) ([]Recipient, error) {
	return m.recipients, nil
}

type auditStore struct{ entries []*models.AuditLog }

func (a *auditStore) Append(_ context.Context, e *models.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

type recordingDispatcher struct{ sent []notify.Notification }

func (r *recordingDispatcher) Dispatch(_ context.Context, n notify.Notification) {
	r.sent = append(r.sent, n)
}

type fixture struct {
	svc    *Service
	store  *memStore
	audits *auditStore
	sent   *recordingDispatcher
	lead   *models.Actor
}

func newFixture() *fixture {
	f := &fixture{
		store:  newMemStore(),
		audits: &auditStore{},
		sent:   &recordingDispatcher{},
		lead:   &models.Actor{UserID: uuid.New(), Role: models.RoleEventLead},
	}
	f.svc = NewService(f.store, audit.NewRecorder(f.audits, nil, nil), f.sent, "https://ops.example.com/", nil)
	return f
}

var eventDate = time.Date(2026, 11, 12, 18, 30, 0, 0, time.UTC)

func (f *fixture) create(t *testing.T, status models.EventStatus) *models.Event {
	t.Helper()
	e, err := f.svc.Create(context.Background(), f.lead, EventInput{Title: "Go Night", Date: eventDate, Status: status})
	require.NoError(t, err)
	return e
}

func TestCreateDefaultsToDraft(t *testing.T) {
	f := newFixture()
	e := f.create(t, "")
	assert.Equal(t, models.EventStatusDraft, e.Status)
	assert.Equal(t, f.lead.UserID, e.CreatedBy)
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, models.AuditActionCreate, f.audits.entries[0].Action)
}

func TestCreateValidates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.lead, EventInput{Title: "  ", Date: eventDate})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.Create(ctx, f.lead, EventInput{Title: "Go Night"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.Create(ctx, f.lead, EventInput{Title: "Go Night", Date: eventDate, Status: "POSTPONED"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.audits.entries)
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture()
	a := f.create(t, models.EventStatusDraft)
	f.create(t, models.EventStatusDraft)
	volunteer := &models.Actor{UserID: uuid.New(), Role: models.RoleVolunteer}
	f.store.assigned[volunteer.UserID] = []uuid.UUID{a.ID}

	all, err := f.svc.List(context.Background(), f.lead)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.List(context.Background(), volunteer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)
}

func TestUpdateRecordsOnlyChangedFields(t *testing.T) {
	f := newFixture()
	e := f.create(t, models.EventStatusDraft)
	title := "Go Night #12"
	same := ""

	_, err := f.svc.Update(context.Background(), f.lead, e.ID, EventUpdate{Title: &title, VenueName: &same})
	require.NoError(t, err)

	require.Len(t, f.audits.entries, 2)
	changes := f.audits.entries[1].Changes.(map[string]models.Change)
	assert.Equal(t, map[string]models.Change{"title": {From: "Go Night", To: "Go Night #12"}}, changes)
}

func TestUpdateWithoutChangesSkipsAudit(t *testing.T) {
	f := newFixture()
	e := f.create(t, models.EventStatusDraft)
	title := "Go Night"
	_, err := f.svc.Update(context.Background(), f.lead, e.ID, EventUpdate{Title: &title})
	require.NoError(t, err)
	assert.Len(t, f.audits.entries, 1)
}

func TestSchedulingNotifiesAssignedVolunteers(t *testing.T) {
	f := newFixture()
	f.store.recipients = []Recipient{{Name: "Ana", Email: "ana@example.com"}, {Name: "Bo", Email: "bo@example.com"}}
	e := f.create(t, models.EventStatusDraft)
	scheduled := models.EventStatusScheduled

	_, err := f.svc.Update(context.Background(), f.lead, e.ID, EventUpdate{Status: &scheduled})
	require.NoError(t, err)

	require.Len(t, f.sent.sent, 2)
	n := f.sent.sent[0]
	assert.Equal(t, models.ChannelEmail, n.Channel)
	assert.Equal(t, models.NotificationEventScheduled, n.Kind)
	assert.Equal(t, "ana@example.com", n.Recipient)
	assert.Equal(t, "https://ops.example.com/events/"+e.ID.String(), n.Data["link"])
	assert.Equal(t, e.ID, *n.EventID)
}

func TestReschedulingNotifiesWithPreviousDate(t *testing.T) {
	f := newFixture()
	f.store.recipients = []Recipient{{Name: "Ana", Email: "ana@example.com"}}
	e := f.create(t, models.EventStatusScheduled)
	moved := eventDate.Add(7 * 24 * time.Hour)

	_, err := f.svc.Update(context.Background(), f.lead, e.ID, EventUpdate{Date: &moved})
	require.NoError(t, err)

	require.Len(t, f.sent.sent, 1)
	n := f.sent.sent[0]
	assert.Equal(t, models.NotificationEventRescheduled, n.Kind)
	assert.Equal(t, eventDate.Format(dateLayout), n.Data["previous_date"])
	assert.Equal(t, moved.Format(dateLayout), n.Data["date"])
}

func TestDraftDateChangeDoesNotNotify(t *testing.T) {
	f := newFixture()
	f.store.recipients = []Recipient{{Name: "Ana", Email: "ana@example.com"}}
	e := f.create(t, models.EventStatusDraft)
	moved := eventDate.Add(time.Hour)

	_, err := f.svc.Update(context.Background(), f.lead, e.ID, EventUpdate{Date: &moved})
	require.NoError(t, err)
	assert.Empty(t, f.sent.sent)
}

func TestUpdateMissingEvent(t *testing.T) {
	f := newFixture()
	title := "x"
	_, err := f.svc.Update(context.Background(), f.lead, uuid.New(), EventUpdate{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteAudits(t *testing.T) {
	f := newFixture()
	e := f.create(t, models.EventStatusDraft)
	require.NoError(t, f.svc.Delete(context.Background(), f.lead, e.ID))
	last := f.audits.entries[len(f.audits.entries)-1]
	assert.Equal(t, models.AuditActionDelete, last.Action)
	assert.Equal(t, "Go Night", last.EntityName)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), f.lead, e.ID), apperrors.ErrNotFound)
}

func TestAddMemberConflict(t *testing.T) {
	f := newFixture()
	e := f.create(t, models.EventStatusDraft)
	memberID := uuid.New()

	_, err := f.svc.AddMember(context.Background(), f.lead, e.ID, memberID, true)
	require.NoError(t, err)
	_, err = f.svc.AddMember(context.Background(), f.lead, e.ID, memberID, false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, f.svc.RemoveMember(context.Background(), f.lead, e.ID, memberID))
	assert.ErrorIs(t, f.svc.RemoveMember(context.Background(), f.lead, e.ID, memberID), apperrors.ErrNotFound)
}

func TestHandlerCreateAndConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	h := NewHandler(f.svc)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextActor, f.lead) })
	r.POST("/events", h.Create)
	r.POST("/events/:id/members", h.AddMember)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events",
		strings.NewReader(`{"title":"Go Night","date":"2026-11-12T18:30:00Z"}`)))
	require.Equal(t, http.StatusCreated, w.Code)

	var eventID uuid.UUID
	for id := range f.store.events {
		eventID = id
	}
	body := `{"member_id":"` + uuid.NewString() + `"}`
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/members", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, w.Code)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/members", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"title":"no date"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
