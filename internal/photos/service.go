// Package photos implements the photo lifecycle: uploads into Drive, the
// unsorted/library/album status machine and deletes that keep Drive objects
// and metadata rows aligned.
package photos

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/auth/token"
	"github.com/pysugar/photo-nexus/internal/config"
	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/drive"
	"github.com/pysugar/photo-nexus/internal/logging"
	"github.com/pysugar/photo-nexus/internal/metrics"
)

// Tokens is the part of the token cache the service uses.
type Tokens interface {
	HasTokens(ctx context.Context, userID string) (bool, error)
	GetValid(ctx context.Context, userID string) (*token.Record, error)
	ConnectedUsers(ctx context.Context) ([]string, error)
}

// Storage is the part of the Drive adapter the service uses.
type Storage interface {
	Upload(ctx context.Context, tok *oauth2.Token, userID, name, mimeType string, content io.Reader) (*drive.Object, error)
	List(ctx context.Context, tok *oauth2.Token, userID string) ([]drive.Object, error)
	Delete(ctx context.Context, tok *oauth2.Token, id string) (bool, error)
	BatchDelete(ctx context.Context, tok *oauth2.Token, ids []string) (*drive.BatchResult, error)
}

// Filter selects which photos List returns.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterUnsorted Filter = "unsorted"
	FilterLibrary  Filter = "library"
	FilterAlbum    Filter = "album"
)

// ParseFilter accepts "" as all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUnsorted, FilterLibrary, FilterAlbum:
		return f, nil
	}
	return "", apperror.InvalidInput(fmt.Sprintf("unknown status filter %q", s))
}

// File is one upload input.
type File struct {
	Name     string
	MimeType string
	Content  io.Reader
}

// BatchOutcome is the result of BatchDelete. Success holds Drive object ids;
// Failed holds the identifiers as the caller sent them.
type BatchOutcome struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
	// Duplicate holds identifiers that named a photo an earlier identifier in
	// the same batch already resolved to. They are not deleted twice.
	Duplicate []string `json:"duplicate,omitempty"`
}

// Options configure a Service.
type Options struct {
	// UploadFailurePolicy is config.UploadPolicyRollback or
	// config.UploadPolicyPartial.
	UploadFailurePolicy string
	Resolve             Resolver
	NewName             func(original string) string
	Now                 func() time.Time
}

// Service is the photo lifecycle service.
type Service struct {
	tokens  Tokens
	storage Storage
	store   *Store
	opts    Options
}

// NewService wires the service. Unset options take their defaults.
func NewService(tokens Tokens, storage Storage, store *Store, opts Options) *Service {
	if opts.UploadFailurePolicy == "" {
		opts.UploadFailurePolicy = config.UploadPolicyRollback
	}
	if opts.Resolve == nil {
		opts.Resolve = ResolveIdentifier
	}
	if opts.NewName == nil {
		opts.NewName = GenerateName
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{tokens: tokens, storage: storage, store: store, opts: opts}
}

// GenerateName prefixes the original base name with a random UUID.
func GenerateName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "photo"
	}
	return uuid.NewString() + "_" + base
}

func (s *Service) requireConnected(ctx context.Context, userID string) error {
	ok, err := s.tokens.HasTokens(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotConnected()
	}
	return nil
}

func (s *Service) requireToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	if err := s.requireConnected(ctx, userID); err != nil {
		return nil, err
	}
	rec, err := s.tokens.GetValid(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperror.NotConnected()
	}
	return rec.OAuth2(), nil
}

// Upload stores each file in Drive and records it as unsorted. Rows are
// written in one transaction after every Drive call has finished.
//
// When a file fails, the error names it. Under the rollback policy the
// objects already uploaded are deleted and nothing is recorded; under the
// partial policy the earlier files are recorded and returned with the error.
func (s *Service) Upload(ctx context.Context, userID string, files []File) (rows []models.Photo, err error) {
	defer func() { metrics.RecordOperation("upload", err) }()
	if len(files) == 0 {
		return nil, apperror.InvalidInput("no files to upload")
	}
	tok, err := s.requireToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows = make([]models.Photo, 0, len(files))
	for _, f := range files {
		if f.Content == nil {
			return nil, s.abortUpload(ctx, tok, userID, rows, apperror.InvalidInput(fmt.Sprintf("file %q has no content", f.Name)))
		}
		name := s.opts.NewName(f.Name)
		obj, uerr := s.storage.Upload(ctx, tok, userID, name, contentType(f), f.Content)
		if uerr != nil {
			failure := apperror.Annotate(uerr, "upload %q", f.Name)
			if s.opts.UploadFailurePolicy == config.UploadPolicyPartial && len(rows) > 0 {
				if perr := s.persistUploads(ctx, tok, rows); perr != nil {
					return nil, perr
				}
				metrics.AddItems("upload", "stored", len(rows))
				return rows, failure
			}
			return nil, s.abortUpload(ctx, tok, userID, rows, failure)
		}
		rows = append(rows, s.rowFromObject(userID, obj))
	}

	if err := s.persistUploads(ctx, tok, rows); err != nil {
		return nil, err
	}
	metrics.AddItems("upload", "stored", len(rows))
	logging.FromContext(ctx).Info().Str("user_id", userID).Int("count", len(rows)).Msg("photos uploaded")
	return rows, nil
}

func (s *Service) abortUpload(ctx context.Context, tok *oauth2.Token, userID string, rows []models.Photo, failure error) error {
	if len(rows) > 0 {
		s.compensate(ctx, tok, rows)
		logging.FromContext(ctx).Warn().Err(failure).Str("user_id", userID).Int("rolled_back", len(rows)).Msg("upload batch rolled back")
	}
	return failure
}

// persistUploads inserts rows; on failure the uploaded objects are removed
// so Drive does not keep files no row points to.
func (s *Service) persistUploads(ctx context.Context, tok *oauth2.Token, rows []models.Photo) error {
	if err := s.store.InsertMany(ctx, rows); err != nil {
		s.compensate(ctx, tok, rows)
		return err
	}
	return nil
}

func (s *Service) compensate(ctx context.Context, tok *oauth2.Token, rows []models.Photo) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.PhotoID
	}
	res, err := s.storage.BatchDelete(context.WithoutCancel(ctx), tok, ids)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Strs("object_ids", ids).Msg("failed to remove uploaded objects")
		return
	}
	if len(res.Failed) > 0 {
		logging.FromContext(ctx).Error().Strs("object_ids", res.Failed).Msg("uploaded objects left orphaned in Drive")
	}
}

func (s *Service) rowFromObject(userID string, obj *drive.Object) models.Photo {
	created := obj.CreatedTime
	if created.IsZero() {
		created = s.opts.Now()
	}
	return models.Photo{
		UserID:      userID,
		PhotoID:     obj.ID,
		PhotoName:   obj.Name,
		PhotoURL:    obj.URL,
		Status:      models.StatusUnsorted,
		CreatedTime: &created,
	}
}

func contentType(f File) string {
	if f.MimeType != "" {
		return f.MimeType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// List returns the user's photos. FilterAll lists Drive itself, annotated
// with each object's recorded status; the other filters read metadata only.
// FilterLibrary also fills Listing.Library.
func (s *Service) List(ctx context.Context, userID string, filter Filter) (*Listing, error) {
	if filter == FilterAll {
		return s.listAll(ctx, userID)
	}
	if err := s.requireConnected(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx, userID, models.PhotoStatus(filter))
	if err != nil {
		return nil, err
	}
	out := &Listing{Filter: filter, Photos: make([]PhotoView, 0, len(rows))}
	for _, r := range rows {
		out.Photos = append(out.Photos, viewFromRow(r))
	}
	if filter == FilterLibrary {
		out.Library = GroupLibrary(out.Photos)
	}
	return out, nil
}

func (s *Service) listAll(ctx context.Context, userID string) (*Listing, error) {
	tok, err := s.requireToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	objects, err := s.storage.List(ctx, tok, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	status := make(map[string]models.PhotoStatus, len(rows))
	for _, r := range rows {
		status[r.PhotoID] = r.Status
	}
	out := &Listing{Filter: FilterAll, Photos: make([]PhotoView, 0, len(objects))}
	for _, o := range objects {
		out.Photos = append(out.Photos, viewFromObject(o, status[o.ID]))
	}
	return out, nil
}

// MoveToLibrary moves unsorted photos to the library and returns how many
// moved. Photos in any other status are left alone.
func (s *Service) MoveToLibrary(ctx context.Context, userID string, ids []string) (int, error) {
	return s.move(ctx, "move_to_library", userID, ids, models.StatusLibrary)
}

// MoveToUnsorted moves library and album photos back to unsorted.
func (s *Service) MoveToUnsorted(ctx context.Context, userID string, ids []string) (int, error) {
	return s.move(ctx, "move_to_unsorted", userID, ids, models.StatusUnsorted)
}

func (s *Service) move(ctx context.Context, op, userID string, ids []string, to models.PhotoStatus) (moved int, err error) {
	defer func() { metrics.RecordOperation(op, err) }()
	if err := s.requireConnected(ctx, userID); err != nil {
		return 0, err
	}
	moved, err = s.store.Transition(ctx, userID, ids, to, s.opts.Now())
	if err != nil {
		return 0, err
	}
	metrics.AddItems(op, "moved", moved)
	metrics.AddItems(op, "skipped", len(ids)-moved)
	return moved, nil
}

// Delete resolves identifier, deletes the Drive object and then its row. It
// returns false when nothing matches.
func (s *Service) Delete(ctx context.Context, userID, identifier string) (deleted bool, err error) {
	defer func() { metrics.RecordOperation("delete", err) }()
	tok, err := s.requireToken(ctx, userID)
	if err != nil {
		return false, err
	}
	row, err := s.opts.Resolve(ctx, s.store.DB(), userID, identifier)
	if err != nil {
		return false, apperror.Persistence("resolve photo", err)
	}
	if row == nil {
		return false, nil
	}
	return s.deleteRow(ctx, tok, userID, row)
}

// DeleteByURL deletes the photo whose public URL is rawURL.
func (s *Service) DeleteByURL(ctx context.Context, userID, rawURL string) (deleted bool, err error) {
	defer func() { metrics.RecordOperation("delete_by_url", err) }()
	id, ok := drive.ObjectIDFromURL(rawURL)
	if !ok {
		return false, apperror.InvalidInput(fmt.Sprintf("%q is not a Drive photo URL", rawURL))
	}
	tok, err := s.requireToken(ctx, userID)
	if err != nil {
		return false, err
	}
	row, err := s.store.Get(ctx, userID, id)
	if err != nil || row == nil {
		return false, err
	}
	return s.deleteRow(ctx, tok, userID, row)
}

func (s *Service) deleteRow(ctx context.Context, tok *oauth2.Token, userID string, row *models.Photo) (bool, error) {
	ok, err := s.storage.Delete(ctx, tok, row.PhotoID)
	if err != nil {
		return false, apperror.Annotate(err, "delete %q", row.PhotoName)
	}
	if !ok {
		return false, nil
	}
	if _, err := s.store.Delete(ctx, userID, []string{row.PhotoID}); err != nil {
		return false, err
	}
	logging.FromContext(ctx).Info().Str("user_id", userID).Str("photo_id", row.PhotoID).Msg("photo deleted")
	return true, nil
}

// BatchDelete deletes every identifier it can resolve. Success lists the
// deleted object ids. Unresolved identifiers and those whose object Drive
// failed to delete are reported in Failed, and repeats of an already
// resolved photo in Duplicate. Only systemic problems return an error.
func (s *Service) BatchDelete(ctx context.Context, userID string, identifiers []string) (out *BatchOutcome, err error) {
	defer func() { metrics.RecordOperation("batch_delete", err) }()
	tok, err := s.requireToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	out = &BatchOutcome{Success: []string{}, Failed: []string{}}
	byObject := make(map[string]string, len(identifiers))
	var ids []string
	for _, ident := range identifiers {
		row, err := s.opts.Resolve(ctx, s.store.DB(), userID, ident)
		if err != nil {
			return nil, apperror.Persistence("resolve photo", err)
		}
		if row == nil {
			out.Failed = append(out.Failed, ident)
			continue
		}
		if _, dup := byObject[row.PhotoID]; dup {
			out.Duplicate = append(out.Duplicate, ident)
			continue
		}
		byObject[row.PhotoID] = ident
		ids = append(ids, row.PhotoID)
	}
	if len(ids) == 0 {
		metrics.AddItems("batch_delete", "failed", len(out.Failed))
		return out, nil
	}

	res, err := s.storage.BatchDelete(ctx, tok, ids)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Delete(ctx, userID, res.Success); err != nil {
		return nil, err
	}
	out.Success = append(out.Success, res.Success...)
	for _, id := range res.Failed {
		out.Failed = append(out.Failed, byObject[id])
	}
	metrics.AddItems("batch_delete", "deleted", len(out.Success))
	metrics.AddItems("batch_delete", "failed", len(out.Failed))
	return out, nil
}
