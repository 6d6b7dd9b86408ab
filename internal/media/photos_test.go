package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/storage"
)

type mockObjects struct{ mock.Mock }

func (m *mockObjects) PresignUpload(ctx context.Context, key, contentType string) (*storage.PresignedUpload, error) {
	args := m.Called(ctx, key, contentType)
	up, _ := args.Get(0).(*storage.PresignedUpload)
	return up, args.Error(1)
}

func (m *mockObjects) PresignDownload(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockObjects) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	return m.Called(ctx, key, contentType, body).Error(0)
}

func (m *mockObjects) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type owners map[uuid.UUID]string

func (o owners) PhotoKey(_ context.Context, id uuid.UUID) (string, error) {
	key, ok := o[id]
	if !ok {
		return "", apperrors.NotFound("speaker")
	}
	return key, nil
}

func (o owners) SetPhotoKey(_ context.Context, id uuid.UUID, key string) error {
	o[id] = key
	return nil
}

type auditStore struct{ entries []*models.AuditLog }

func (a *auditStore) Append(_ context.Context, e *models.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

func TestRequestUploadPresignsUnderOwnerFolder(t *testing.T) {
	objs := &mockObjects{}
	speakerID := uuid.New()
	p := NewPhotos(objs, owners{speakerID: ""}, storage.FolderSpeakers, models.EntitySpeaker, nil, nil)

	objs.On("PresignUpload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "speakers/"+speakerID.String()+"/") && strings.HasSuffix(key, ".png")
	}), "image/png").Return(&storage.PresignedUpload{UploadURL: "https://s3/put"}, nil)

	up, err := p.RequestUpload(context.Background(), speakerID, "", "me.PNG")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/put", up.UploadURL)
	objs.AssertExpectations(t)
}

func TestRequestUploadRejects(t *testing.T) {
	objs := &mockObjects{}
	speakerID := uuid.New()
	p := NewPhotos(objs, owners{speakerID: ""}, storage.FolderSpeakers, models.EntitySpeaker, nil, nil)

	_, err := p.RequestUpload(context.Background(), speakerID, "application/pdf", "cv.pdf")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = p.RequestUpload(context.Background(), uuid.New(), "image/png", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	objs.AssertNotCalled(t, "PresignUpload", mock.Anything, mock.Anything, mock.Anything)
}

func TestWithoutStorageEverythingIsUnavailable(t *testing.T) {
	p := NewPhotos(nil, owners{}, storage.FolderVenues, models.EntityVenue, nil, nil)
	_, err := p.RequestUpload(context.Background(), uuid.New(), "image/png", "")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	_, err = p.DownloadURL(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestAttachReplacesAndDeletesPrevious(t *testing.T) {
	objs := &mockObjects{}
	speakerID := uuid.New()
	old := "speakers/" + speakerID.String() + "/old.png"
	next := "speakers/" + speakerID.String() + "/new.png"
	own := owners{speakerID: old}
	audits := &auditStore{}
	p := NewPhotos(objs, own, storage.FolderSpeakers, models.EntitySpeaker, audit.NewRecorder(audits, nil, nil), nil)
	objs.On("DeleteObject", mock.Anything, old).Return(errors.New("s3 down"))

	require.NoError(t, p.Attach(context.Background(), uuid.New(), speakerID, next))
	assert.Equal(t, next, own[speakerID])
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.Change{From: old, To: next}, audits.entries[0].Changes.(map[string]models.Change)["photo_key"])
	objs.AssertExpectations(t)
}

func TestAttachRejectsForeignKey(t *testing.T) {
	speakerID := uuid.New()
	p := NewPhotos(&mockObjects{}, owners{speakerID: ""}, storage.FolderSpeakers, models.EntitySpeaker, nil, nil)

	err := p.Attach(context.Background(), uuid.New(), speakerID, "speakers/"+uuid.NewString()+"/x.png")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	err = p.Attach(context.Background(), uuid.New(), speakerID, "speakers/"+speakerID.String()+"/../../venues/x.png")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDownloadURLWithoutPhoto(t *testing.T) {
	speakerID := uuid.New()
	p := NewPhotos(&mockObjects{}, owners{speakerID: ""}, storage.FolderSpeakers, models.EntitySpeaker, nil, nil)
	_, err := p.DownloadURL(context.Background(), speakerID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUploadHandlerStoresAndAttaches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	objs := &mockObjects{}
	venueID := uuid.New()
	own := owners{venueID: ""}
	p := NewPhotos(objs, own, storage.FolderVenues, models.EntityVenue, nil, nil)
	objs.On("Upload", mock.Anything, mock.AnythingOfType("string"), "image/webp", mock.Anything).Return(nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="hall.webp"`)
	hdr.Set("Content-Type", "image/webp")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("RIFF....WEBP"))
	require.NoError(t, mw.Close())

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextActor, &models.Actor{UserID: uuid.New()}) })
	r.POST("/venues/:id/photo", NewHandler(p).Upload)
	req := httptest.NewRequest(http.MethodPost, "/venues/"+venueID.String()+"/photo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, storage.KeyBelongsTo(own[venueID], storage.FolderVenues, venueID))
	objs.AssertExpectations(t)
}
