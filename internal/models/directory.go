package models

import (
	"time"

	"github.com/google/uuid"
)

// Speaker is a speaker directory entry.
type Speaker struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	PhotoKey  string    `json:"photo_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Venue is a venue directory entry.
type Venue struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Capacity    int       `json:"capacity"`
	ContactName string    `json:"contact_name,omitempty"`
	PhotoKey    string    `json:"photo_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Volunteer is a volunteer directory entry, optionally linked to a platform user.
type Volunteer struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Member is a core team member directory entry, optionally linked to a platform user.
type Member struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
