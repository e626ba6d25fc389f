package photos

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pysugar/photo-nexus/internal/db/models"
)

// allowedFrom lists, per target status, the statuses a row may leave.
var allowedFrom = map[models.PhotoStatus][]models.PhotoStatus{
	models.StatusLibrary:  {models.StatusUnsorted},
	models.StatusAlbum:    {models.StatusUnsorted, models.StatusLibrary},
	models.StatusUnsorted: {models.StatusLibrary, models.StatusAlbum},
}

// CanTransition reports whether a photo in from may move to to.
func CanTransition(from, to models.PhotoStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ApplyTransition moves one row to status to when its current status allows
// it, and reports whether the row changed. It must run inside tx.
//
// Moving to library stamps moved_to_library_at; moving back to unsorted clears
// it and drops any album memberships. Attaching to an album keeps the stamp.
func ApplyTransition(tx *gorm.DB, userID, photoID string, to models.PhotoStatus, at time.Time) (bool, error) {
	from, ok := allowedFrom[to]
	if !ok {
		return false, fmt.Errorf("unknown target status %q", to)
	}
	updates := map[string]any{"status": to, "updated_at": at}
	switch to {
	case models.StatusLibrary:
		updates["moved_to_library_at"] = at
	case models.StatusUnsorted:
		updates["moved_to_library_at"] = nil
	}

	res := tx.Model(&models.Photo{}).
		Where("user_id = ? AND photo_id = ? AND status IN ?", userID, photoID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if to == models.StatusUnsorted {
		if err := tx.Where("user_id = ? AND photo_id = ?", userID, photoID).Delete(&models.AlbumPhoto{}).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}
