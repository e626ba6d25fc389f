// Package albums manages user albums and categories. Attaching a photo to an
// album moves it to the album status; detaching its last membership returns
// it to unsorted.
package albums

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/metrics"
	"github.com/pysugar/photo-nexus/internal/photos"
)

// DefaultColor is used when an album is created without one.
const DefaultColor = "#9e9e9e"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// AlbumView is an album with its photo count.
type AlbumView struct {
	models.Album
	PhotoCount int64 `json:"photo_count"`
}

// AlbumUpdate patches an album; nil fields are left as they are.
type AlbumUpdate struct {
	Name       *string `json:"name"`
	Color      *string `json:"color"`
	CategoryID *uint   `json:"category_id"`
	// ClearCategory detaches the album from its category.
	ClearCategory bool `json:"clear_category"`
}

// Service implements album and category operations.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates an album service backed by db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func idString(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func normalizeColor(c string) (string, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultColor, nil
	}
	if !colorPattern.MatchString(c) {
		return "", apperror.InvalidInput(fmt.Sprintf("color %q must look like #RRGGBB", c))
	}
	return strings.ToLower(c), nil
}

func requireName(name, what string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.InvalidInput(what + " name is required")
	}
	return name, nil
}

// CreateAlbum creates an album, optionally inside one of the user's
// categories.
func (s *Service) CreateAlbum(ctx context.Context, userID, name, color string, categoryID *uint) (*models.Album, error) {
	name, err := requireName(name, "album")
	if err != nil {
		return nil, err
	}
	color, err = normalizeColor(color)
	if err != nil {
		return nil, err
	}
	if categoryID != nil {
		if err := s.requireCategory(ctx, s.db, userID, *categoryID); err != nil {
			return nil, err
		}
	}
	album := &models.Album{UserID: userID, Name: name, Color: color, CategoryID: categoryID}
	if err := s.db.WithContext(ctx).Create(album).Error; err != nil {
		return nil, apperror.Persistence("create album", err)
	}
	return album, nil
}

// ListAlbums returns the user's albums, oldest first, with photo counts.
func (s *Service) ListAlbums(ctx context.Context, userID string) ([]AlbumView, error) {
	var albums []models.Album
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&albums).Error; err != nil {
		return nil, apperror.Persistence("list albums", err)
	}
	type countRow struct {
		AlbumID uint
		N       int64
	}
	var counts []countRow
	err := s.db.WithContext(ctx).Model(&models.AlbumPhoto{}).
		Select("album_id, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("album_id").
		Scan(&counts).Error
	if err != nil {
		return nil, apperror.Persistence("count album photos", err)
	}
	byAlbum := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byAlbum[c.AlbumID] = c.N
	}
	out := make([]AlbumView, len(albums))
	for i, a := range albums {
		out[i] = AlbumView{Album: a, PhotoCount: byAlbum[a.ID]}
	}
	return out, nil
}

// GetAlbum returns one album or a NotFound error.
func (s *Service) GetAlbum(ctx context.Context, userID string, id uint) (*models.Album, error) {
	return s.loadAlbum(ctx, s.db, userID, id)
}

// UpdateAlbum applies patch to an album.
func (s *Service) UpdateAlbum(ctx context.Context, userID string, id uint, patch AlbumUpdate) (*models.Album, error) {
	var album *models.Album
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		album, err = s.loadAlbum(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if patch.Name != nil {
			name, err := requireName(*patch.Name, "album")
			if err != nil {
				return err
			}
			updates["name"] = name
		}
		if patch.Color != nil {
			color, err := normalizeColor(*patch.Color)
			if err != nil {
				return err
			}
			updates["color"] = color
		}
		switch {
		case patch.ClearCategory:
			updates["category_id"] = nil
		case patch.CategoryID != nil:
			if err := s.requireCategory(ctx, tx, userID, *patch.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *patch.CategoryID
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(album).Updates(updates).Error; err != nil {
			return err
		}
		var fresh models.Album
		if err := tx.Take(&fresh, album.ID).Error; err != nil {
			return err
		}
		album = &fresh
		return nil
	})
	if err != nil {
		return nil, wrapPersistence("update album", err)
	}
	return album, nil
}

// DeleteAlbum removes the album. Photos left without any album go back to
// unsorted.
func (s *Service) DeleteAlbum(ctx context.Context, userID string, id uint) (err error) {
	defer func() { metrics.RecordOperation("delete_album", err) }()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadAlbum(ctx, tx, userID, id); err != nil {
			return err
		}
		var photoIDs []string
		if err := tx.Model(&models.AlbumPhoto{}).Where("album_id = ?", id).Pluck("photo_id", &photoIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", id).Delete(&models.AlbumPhoto{}).Error; err != nil {
			return err
		}
		if _, err := s.releaseOrphans(tx, userID, photoIDs); err != nil {
			return err
		}
		return tx.Delete(&models.Album{}, id).Error
	})
	return wrapPersistence("delete album", err)
}

// AlbumPhotos lists the photos attached to an album, newest first.
func (s *Service) AlbumPhotos(ctx context.Context, userID string, albumID uint) ([]models.Photo, error) {
	if _, err := s.loadAlbum(ctx, s.db, userID, albumID); err != nil {
		return nil, err
	}
	var rows []models.Photo
	err := s.db.WithContext(ctx).
		Joins("JOIN album_photos ON album_photos.photo_id = photo_metadata.photo_id AND album_photos.user_id = photo_metadata.user_id").
		Where("album_photos.album_id = ? AND photo_metadata.user_id = ?", albumID, userID).
		Order("album_photos.created_at DESC").Order("album_photos.id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.Persistence("list album photos", err)
	}
	return rows, nil
}

// AddPhotos attaches photos to an album and returns how many new
// memberships were created. Unknown photos and photos already in the album
// are skipped.
func (s *Service) AddPhotos(ctx context.Context, userID string, albumID uint, photoIDs []string) (added int, err error) {
	defer func() { metrics.RecordOperation("add_to_album", err) }()
	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		added = 0
		if _, err := s.loadAlbum(ctx, tx, userID, albumID); err != nil {
			return err
		}
		for _, pid := range photoIDs {
			var count int64
			if err := tx.Model(&models.Photo{}).Where("user_id = ? AND photo_id = ?", userID, pid).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				continue
			}
			var linked int64
			if err := tx.Model(&models.AlbumPhoto{}).Where("album_id = ? AND photo_id = ?", albumID, pid).Count(&linked).Error; err != nil {
				return err
			}
			if linked > 0 {
				continue
			}
			if err := tx.Create(&models.AlbumPhoto{AlbumID: albumID, PhotoID: pid, UserID: userID, CreatedAt: now}).Error; err != nil {
				return err
			}
			added++
			if _, err := photos.ApplyTransition(tx, userID, pid, models.StatusAlbum, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, wrapPersistence("add photos to album", err)
	}
	metrics.AddItems("add_to_album", "added", added)
	return added, nil
}

// RemovePhotos detaches photos from an album and returns how many
// memberships were removed.
func (s *Service) RemovePhotos(ctx context.Context, userID string, albumID uint, photoIDs []string) (removed int, err error) {
	defer func() { metrics.RecordOperation("remove_from_album", err) }()
	if len(photoIDs) == 0 {
		return 0, nil
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadAlbum(ctx, tx, userID, albumID); err != nil {
			return err
		}
		res := tx.Where("album_id = ? AND user_id = ? AND photo_id IN ?", albumID, userID, photoIDs).Delete(&models.AlbumPhoto{})
		if res.Error != nil {
			return res.Error
		}
		removed = int(res.RowsAffected)
		_, err := s.releaseOrphans(tx, userID, photoIDs)
		return err
	})
	if err != nil {
		return 0, wrapPersistence("remove photos from album", err)
	}
	return removed, nil
}

// releaseOrphans moves album photos with no remaining membership back to
// unsorted.
func (s *Service) releaseOrphans(tx *gorm.DB, userID string, photoIDs []string) (int, error) {
	if len(photoIDs) == 0 {
		return 0, nil
	}
	var orphans []string
	err := tx.Model(&models.Photo{}).
		Where("user_id = ? AND status = ? AND photo_id IN ?", userID, models.StatusAlbum, photoIDs).
		Where("photo_id NOT IN (?)", tx.Model(&models.AlbumPhoto{}).Select("photo_id").Where("user_id = ?", userID)).
		Pluck("photo_id", &orphans).Error
	if err != nil {
		return 0, err
	}
	now := s.now()
	released := 0
	for _, id := range orphans {
		ok, err := photos.ApplyTransition(tx, userID, id, models.StatusUnsorted, now)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	return released, nil
}

// CreateCategory creates a category.
func (s *Service) CreateCategory(ctx context.Context, userID, name string) (*models.Category, error) {
	name, err := requireName(name, "category")
	if err != nil {
		return nil, err
	}
	c := &models.Category{UserID: userID, Name: name}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, apperror.Persistence("create category", err)
	}
	return c, nil
}

// ListCategories returns the user's categories, oldest first.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]models.Category, error) {
	var out []models.Category
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error; err != nil {
		return nil, apperror.Persistence("list categories", err)
	}
	return out, nil
}

// DeleteCategory deletes a category; its albums are kept without one.
func (s *Service) DeleteCategory(ctx context.Context, userID string, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireCategory(ctx, tx, userID, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Album{}).Where("user_id = ? AND category_id = ?", userID, id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	})
	return wrapPersistence("delete category", err)
}

func (s *Service) loadAlbum(ctx context.Context, db *gorm.DB, userID string, id uint) (*models.Album, error) {
	var album models.Album
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&album).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("album", idString(id))
	}
	if err != nil {
		return nil, apperror.Persistence("load album", err)
	}
	return &album, nil
}

func (s *Service) requireCategory(ctx context.Context, db *gorm.DB, userID string, id uint) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Category{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
		return apperror.Persistence("load category", err)
	}
	if count == 0 {
		return apperror.NotFound("category", idString(id))
	}
	return nil
}

// wrapPersistence leaves application errors alone and wraps the rest.
func wrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Persistence(op, err)
}
