package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pysugar/photo-nexus/internal/albums"
	"github.com/pysugar/photo-nexus/internal/db/models"
)

// AlbumService is the album API the handlers call.
type AlbumService interface {
	CreateAlbum(ctx context.Context, userID, name, color string, categoryID *uint) (*models.Album, error)
	ListAlbums(ctx context.Context, userID string) ([]albums.AlbumView, error)
	GetAlbum(ctx context.Context, userID string, id uint) (*models.Album, error)
	UpdateAlbum(ctx context.Context, userID string, id uint, patch albums.AlbumUpdate) (*models.Album, error)
	DeleteAlbum(ctx context.Context, userID string, id uint) error
	AlbumPhotos(ctx context.Context, userID string, albumID uint) ([]models.Photo, error)
	AddPhotos(ctx context.Context, userID string, albumID uint, photoIDs []string) (int, error)
	RemovePhotos(ctx context.Context, userID string, albumID uint, photoIDs []string) (int, error)
	CreateCategory(ctx context.Context, userID, name string) (*models.Category, error)
	ListCategories(ctx context.Context, userID string) ([]models.Category, error)
	DeleteCategory(ctx context.Context, userID string, id uint) error
}

type createAlbumRequest struct {
	Name       string `json:"name"`
	Color      string `json:"color"`
	CategoryID *uint  `json:"category_id"`
}

// ListAlbumsHandler lists the caller's albums.
func ListAlbumsHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		list, err := svc.ListAlbums(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, fmt.Sprintf("Found %d album(s)", len(list)), list)
	}
}

// CreateAlbumHandler creates an album.
func CreateAlbumHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req createAlbumRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		album, err := svc.CreateAlbum(r.Context(), userID, req.Name, req.Color, req.CategoryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, "Album created", album)
	}
}

// GetAlbumHandler returns an album with its photos.
func GetAlbumHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		album, err := svc.GetAlbum(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := svc.AlbumPhotos(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Album loaded", map[string]any{"album": album, "photos": list})
	}
}

// UpdateAlbumHandler patches name, color or category.
func UpdateAlbumHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var patch albums.AlbumUpdate
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		album, err := svc.UpdateAlbum(r.Context(), userID, id, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Album updated", album)
	}
}

// DeleteAlbumHandler deletes an album; its photos return to unsorted.
func DeleteAlbumHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := svc.DeleteAlbum(r.Context(), userID, id); err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Album deleted", map[string]uint{"id": id})
	}
}

// AddAlbumPhotosHandler attaches photos to an album.
func AddAlbumPhotosHandler(svc AlbumService) http.HandlerFunc {
	return albumPhotosHandler(svc.AddPhotos, "added")
}

// RemoveAlbumPhotosHandler detaches photos from an album.
func RemoveAlbumPhotosHandler(svc AlbumService) http.HandlerFunc {
	return albumPhotosHandler(svc.RemovePhotos, "removed")
}

func albumPhotosHandler(apply func(context.Context, string, uint, []string) (int, error), verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req idsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, r, err)
			return
		}
		n, err := apply(r.Context(), userID, id, req.IDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, fmt.Sprintf("%d photo(s) %s", n, verb), map[string]int{verb: n})
	}
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

// ListCategoriesHandler lists the caller's categories.
func ListCategoriesHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		list, err := svc.ListCategories(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, fmt.Sprintf("Found %d categories", len(list)), list)
	}
}

// CreateCategoryHandler creates a category.
func CreateCategoryHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req createCategoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		c, err := svc.CreateCategory(r.Context(), userID, req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, "Category created", c)
	}
}

// DeleteCategoryHandler deletes a category and unassigns its albums.
func DeleteCategoryHandler(svc AlbumService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := svc.DeleteCategory(r.Context(), userID, id); err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Category deleted", map[string]uint{"id": id})
	}
}
