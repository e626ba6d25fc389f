package photos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/db/models"
)

// Store is the metadata store for photo rows.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for identifier resolution.
func (s *Store) DB() *gorm.DB { return s.db }

// InsertMany inserts rows in a single transaction.
func (s *Store) InsertMany(ctx context.Context, rows []models.Photo) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return apperror.Persistence("save photo metadata", err)
	}
	return nil
}

// List returns the user's rows, optionally filtered by status, newest
// effective time first. An empty status returns every row.
func (s *Store) List(ctx context.Context, userID string, status models.PhotoStatus) ([]models.Photo, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.Photo
	err := q.Order("COALESCE(created_time, moved_to_library_at) DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, apperror.Persistence("list photos", err)
	}
	return rows, nil
}

// Get returns the row for a provider object id, or nil.
func (s *Store) Get(ctx context.Context, userID, photoID string) (*models.Photo, error) {
	var row models.Photo
	err := s.db.WithContext(ctx).Where("user_id = ? AND photo_id = ?", userID, photoID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Persistence("load photo", err)
	}
	return &row, nil
}

// Transition applies the status change to each id in one transaction and
// returns how many rows actually moved. Rows whose current status does not
// allow the move are skipped.
func (s *Store) Transition(ctx context.Context, userID string, ids []string, to models.PhotoStatus, at time.Time) (int, error) {
	moved := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved = 0
		for _, id := range ids {
			ok, err := ApplyTransition(tx, userID, id, to, at)
			if err != nil {
				return err
			}
			if ok {
				moved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperror.Persistence("update photo status", err)
	}
	return moved, nil
}

// Delete removes the rows for photoIDs and their album memberships in one
// transaction.
func (s *Store) Delete(ctx context.Context, userID string, photoIDs []string) (int64, error) {
	if len(photoIDs) == 0 {
		return 0, nil
	}
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND photo_id IN ?", userID, photoIDs).Delete(&models.AlbumPhoto{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND photo_id IN ?", userID, photoIDs).Delete(&models.Photo{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, apperror.Persistence("delete photo metadata", err)
	}
	return removed, nil
}
