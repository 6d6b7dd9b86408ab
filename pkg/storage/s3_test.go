package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestImageContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		want        string
		ok          bool
	}{
		{"declared png", "image/png", "x.bin", "image/png", true},
		{"jpg alias normalized", "image/jpg", "", "image/jpeg", true},
		{"extension fallback", "", "Headshot.JPEG", "image/jpeg", true},
		{"declared non-image rejected", "application/pdf", "photo.png", "", false},
		{"unknown extension", "", "talk.mp4", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ImageContentType(tt.contentType, tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhotoKeys(t *testing.T) {
	id := uuid.New()
	key := SpeakerPhotoKey(id, "image/webp")
	assert.True(t, strings.HasPrefix(key, "speakers/"+id.String()+"/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
	assert.True(t, KeyBelongsTo(key, FolderSpeakers, id))
	assert.False(t, KeyBelongsTo(key, FolderVenues, id))
	assert.False(t, KeyBelongsTo(key, FolderSpeakers, uuid.New()))

	vkey := VenuePhotoKey(id, "image/png")
	assert.True(t, KeyBelongsTo(vkey, FolderVenues, id))
	assert.False(t, KeyBelongsTo("venues/"+id.String()+"/../other/x.png", FolderVenues, id))
}
