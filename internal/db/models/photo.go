package models

import "time"

// PhotoStatus is the curation stage of a stored photo.
type PhotoStatus string

const (
	StatusUnsorted PhotoStatus = "unsorted"
	StatusLibrary  PhotoStatus = "library"
	StatusAlbum    PhotoStatus = "album"
)

// Valid reports whether s is one of the known statuses.
func (s PhotoStatus) Valid() bool {
	switch s {
	case StatusUnsorted, StatusLibrary, StatusAlbum:
		return true
	}
	return false
}

// Photo mirrors the lifecycle of one object in the user's Drive folder.
// The (UserID, PhotoID) pair is unique; PhotoID is the Drive file id.
type Photo struct {
	ID               uint        `gorm:"primaryKey" json:"-"`
	UserID           string      `gorm:"not null;uniqueIndex:idx_photo_user_object;index:idx_photo_user_status,priority:1" json:"-"`
	PhotoID          string      `gorm:"not null;uniqueIndex:idx_photo_user_object" json:"photo_id"`
	PhotoName        string      `gorm:"not null" json:"photo_name"`
	PhotoURL         string      `json:"photo_url"`
	Status           PhotoStatus `gorm:"type:varchar(16);not null;index:idx_photo_user_status,priority:2" json:"status"`
	CreatedTime      *time.Time  `json:"created_time,omitempty"`
	MovedToLibraryAt *time.Time  `json:"moved_to_library_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (Photo) TableName() string { return "photo_metadata" }

// EffectiveTime is the creation time, falling back to the library move time.
func (p Photo) EffectiveTime() *time.Time {
	if p.CreatedTime != nil {
		return p.CreatedTime
	}
	return p.MovedToLibraryAt
}
