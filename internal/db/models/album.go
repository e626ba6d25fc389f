package models

import "time"

// Album is a named, colored collection of photos.
type Album struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"not null;index" json:"-"`
	Name       string    `gorm:"not null" json:"name"`
	Color      string    `gorm:"type:varchar(7)" json:"color"`
	CategoryID *uint     `gorm:"index" json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AlbumPhoto links a photo (by Drive file id) to an album.
type AlbumPhoto struct {
	ID        uint   `gorm:"primaryKey"`
	AlbumID   uint   `gorm:"not null;uniqueIndex:idx_album_photo"`
	PhotoID   string `gorm:"not null;uniqueIndex:idx_album_photo;index"`
	UserID    string `gorm:"not null;index"`
	CreatedAt time.Time
}

// Category groups albums.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index" json:"-"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every model for migration.
func All() []any {
	return []any{&DriveToken{}, &Photo{}, &Album{}, &AlbumPhoto{}, &Category{}}
}
