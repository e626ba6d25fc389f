package models

import "time"

// DriveToken stores one user's Google Drive OAuth credentials.
// There is at most one row per user.
type DriveToken struct {
	UserID       string `gorm:"primaryKey"`
	AccessToken  string `gorm:"not null"`
	RefreshToken string
	Expiry       *int64 // epoch milliseconds; nil when the provider gave none
	Scope        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DriveToken) TableName() string { return "drive_tokens" }
