package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/photos"
)

// UploadField is the multipart field carrying the files.
const UploadField = "photos"

// PhotoService is the lifecycle API the handlers call.
type PhotoService interface {
	Upload(ctx context.Context, userID string, files []photos.File) ([]models.Photo, error)
	List(ctx context.Context, userID string, filter photos.Filter) (*photos.Listing, error)
	MoveToLibrary(ctx context.Context, userID string, ids []string) (int, error)
	MoveToUnsorted(ctx context.Context, userID string, ids []string) (int, error)
	Delete(ctx context.Context, userID, identifier string) (bool, error)
	DeleteByURL(ctx context.Context, userID, rawURL string) (bool, error)
	BatchDelete(ctx context.Context, userID string, identifiers []string) (*photos.BatchOutcome, error)
	Reconcile(ctx context.Context, userID string) (*photos.ReconcileResult, error)
}

// UploadLimits bound a multipart upload.
type UploadLimits struct {
	MaxBytes int64
	MaxFiles int
}

// UploadPhotosHandler accepts multipart uploads in the "photos" field.
func UploadPhotosHandler(svc PhotoService, limits UploadLimits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		if limits.MaxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBytes)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, r, apperror.InvalidInput(fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)))
				return
			}
			writeError(w, r, apperror.InvalidInput("Expected a multipart form"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File[UploadField]
		if len(headers) == 0 {
			writeError(w, r, apperror.InvalidInput(fmt.Sprintf("No files in field %q", UploadField)))
			return
		}
		if limits.MaxFiles > 0 && len(headers) > limits.MaxFiles {
			writeError(w, r, apperror.InvalidInput(fmt.Sprintf("At most %d files per upload", limits.MaxFiles)))
			return
		}

		files := make([]photos.File, 0, len(headers))
		for _, fh := range headers {
			ct := fh.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "image/") {
				writeError(w, r, apperror.InvalidInput(fmt.Sprintf("%q is not an image", fh.Filename)))
				return
			}
			f, err := fh.Open()
			if err != nil {
				writeError(w, r, apperror.InvalidInput(fmt.Sprintf("Cannot read %q", fh.Filename)))
				return
			}
			defer closeFile(f)
			files = append(files, photos.File{Name: fh.Filename, MimeType: ct, Content: f})
		}

		rows, err := svc.Upload(r.Context(), userID, files)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, fmt.Sprintf("Uploaded %d photo(s)", len(rows)), rows)
	}
}

func closeFile(f multipart.File) { f.Close() }

// ListPhotosHandler lists photos, filtered by ?status=all|unsorted|library|album.
func ListPhotosHandler(svc PhotoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		filter, err := photos.ParseFilter(r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		listing, err := svc.List(r.Context(), userID, filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, fmt.Sprintf("Found %d photo(s)", len(listing.Photos)), listing)
	}
}

// MoveToLibraryHandler moves unsorted photos into the library.
func MoveToLibraryHandler(svc PhotoService) http.HandlerFunc {
	return moveHandler(svc.MoveToLibrary, "library")
}

// MoveToUnsortedHandler moves library and album photos back to unsorted.
func MoveToUnsortedHandler(svc PhotoService) http.HandlerFunc {
	return moveHandler(svc.MoveToUnsorted, "unsorted")
}

func moveHandler(move func(context.Context, string, []string) (int, error), target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
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
		moved, err := move(r.Context(), userID, req.IDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, fmt.Sprintf("Moved %d photo(s) to %s", moved, target), map[string]int{
			"moved":     moved,
			"requested": len(req.IDs),
		})
	}
}

// DeletePhotoHandler deletes one photo by id, exact name or name fragment.
func DeletePhotoHandler(svc PhotoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ident, err := pathParam(r, "id")
		if err != nil || strings.TrimSpace(ident) == "" {
			writeError(w, r, apperror.InvalidInput("Invalid photo identifier"))
			return
		}
		deleted, err := svc.Delete(r.Context(), userID, ident)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !deleted {
			writeError(w, r, apperror.NotFound("photo", ident))
			return
		}
		writeData(w, http.StatusOK, "Photo deleted", map[string]string{"identifier": ident})
	}
}

// pathParam returns a decoded chi path parameter. chi matches on RawPath when
// the request carries one, so only then is the value still escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

// DeletePhotoByURLHandler deletes the photo behind ?url=.
func DeletePhotoByURLHandler(svc PhotoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		raw := r.URL.Query().Get("url")
		if raw == "" {
			writeError(w, r, apperror.InvalidInput("url query parameter is required"))
			return
		}
		deleted, err := svc.DeleteByURL(r.Context(), userID, raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !deleted {
			writeError(w, r, apperror.NotFound("photo", ""))
			return
		}
		writeData(w, http.StatusOK, "Photo deleted", map[string]string{"url": raw})
	}
}

type batchDeleteRequest struct {
	Identifiers []string `json:"identifiers"`
}

// BatchDeleteHandler deletes several photos and reports per-item results.
func BatchDeleteHandler(svc PhotoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req batchDeleteRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if len(req.Identifiers) == 0 {
			writeError(w, r, apperror.InvalidInput("identifiers must not be empty"))
			return
		}
		out, err := svc.BatchDelete(r.Context(), userID, req.Identifiers)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK,
			fmt.Sprintf("Deleted %d of %d photo(s)", len(out.Success), len(req.Identifiers)), out)
	}
}

// ReconcileHandler repairs drift between Drive and stored metadata.
func ReconcileHandler(svc PhotoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		res, err := svc.Reconcile(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "Reconciled", res)
	}
}
