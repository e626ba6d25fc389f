// Package drive stores photo bytes in the user's Google Drive. All calls are
// made with the caller's access token and bounded by a per-call timeout.
package drive

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/drive/v3"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/logging"
	"github.com/pysugar/photo-nexus/internal/metrics"
)

// Options tune the adapter.
type Options struct {
	// RootFolder prefixes each user's folder name.
	RootFolder  string
	CallTimeout time.Duration
	// PublicLinks grants anyone-with-link read access to stored objects.
	PublicLinks bool
	Concurrency int
}

// Folder is the per-user container for photo objects.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Object is a stored photo as reported by Drive.
type Object struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedTime time.Time `json:"created_time"`
	URL         string    `json:"url"`
}

// BatchResult partitions the IDs of a batch delete.
type BatchResult struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}

// Adapter is the storage adapter over Drive.
type Adapter struct {
	newAPI APIFactory
	opts   Options
}

// NewAdapter creates an adapter. Zero options fall back to sane defaults.
func NewAdapter(factory APIFactory, opts Options) *Adapter {
	if opts.RootFolder == "" {
		opts.RootFolder = "PhotoNexus"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Adapter{newAPI: factory, opts: opts}
}

// FolderName returns the folder name used for userID.
func (a *Adapter) FolderName(userID string) string {
	return a.opts.RootFolder + "_" + userID
}

func (a *Adapter) connect(ctx context.Context, tok *oauth2.Token) (API, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, apperror.StorageAuth("connect", errors.New("missing access token"))
	}
	api, err := a.newAPI(ctx, tok)
	if err != nil {
		return nil, apperror.Storage("connect", err)
	}
	return api, nil
}

// call runs fn under the per-call timeout and records metrics. The raw
// provider error is returned so callers can inspect status codes.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveDriveCall(op, start, err)
	return err
}

// EnsureUserFolder finds or creates the user's folder.
func (a *Adapter) EnsureUserFolder(ctx context.Context, tok *oauth2.Token, userID string) (*Folder, error) {
	api, err := a.connect(ctx, tok)
	if err != nil {
		return nil, err
	}
	return a.ensureFolder(ctx, api, userID)
}

func (a *Adapter) ensureFolder(ctx context.Context, api API, userID string) (*Folder, error) {
	name := a.FolderName(userID)
	var f *drive.File
	err := a.call(ctx, "find folder", func(ctx context.Context) (err error) {
		f, err = api.FindFolder(ctx, name)
		return err
	})
	if err != nil {
		return nil, classify("find folder", err)
	}
	if f == nil {
		err = a.call(ctx, "create folder", func(ctx context.Context) (err error) {
			f, err = api.CreateFolder(ctx, name)
			return err
		})
		if err != nil {
			return nil, classify("create folder", err)
		}
		logging.FromContext(ctx).Info().Str("user_id", userID).Str("folder_id", f.Id).Msg("created drive folder")
	}
	return &Folder{ID: f.Id, Name: f.Name}, nil
}

// Upload stores content in the user's folder and returns the new object.
// A failure to publish the object is logged, not returned.
func (a *Adapter) Upload(ctx context.Context, tok *oauth2.Token, userID, name, mimeType string, content io.Reader) (*Object, error) {
	api, err := a.connect(ctx, tok)
	if err != nil {
		return nil, err
	}
	folder, err := a.ensureFolder(ctx, api, userID)
	if err != nil {
		return nil, err
	}

	var f *drive.File
	err = a.call(ctx, "upload file", func(ctx context.Context) (err error) {
		f, err = api.CreateFile(ctx, name, mimeType, folder.ID, content)
		return err
	})
	if err != nil {
		return nil, classify("upload file", err)
	}
	if a.opts.PublicLinks {
		if err := a.makePublic(ctx, api, f.Id); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("object_id", f.Id).Msg("failed to publish uploaded file")
		}
	}
	return objectFromFile(f), nil
}

// List returns the objects in the user's folder, newest first.
func (a *Adapter) List(ctx context.Context, tok *oauth2.Token, userID string) ([]Object, error) {
	api, err := a.connect(ctx, tok)
	if err != nil {
		return nil, err
	}
	folder, err := a.ensureFolder(ctx, api, userID)
	if err != nil {
		return nil, err
	}

	var files []*drive.File
	err = a.call(ctx, "list files", func(ctx context.Context) (err error) {
		files, err = api.ListFiles(ctx, folder.ID)
		return err
	})
	if err != nil {
		return nil, classify("list files", err)
	}

	if a.opts.PublicLinks {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.opts.Concurrency)
		for _, f := range files {
			g.Go(func() error {
				if err := a.ensurePublic(gctx, api, f.Id); err != nil {
					logging.FromContext(ctx).Warn().Err(err).Str("object_id", f.Id).Msg("failed to publish listed file")
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	objects := make([]Object, 0, len(files))
	for _, f := range files {
		objects = append(objects, *objectFromFile(f))
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].CreatedTime.After(objects[j].CreatedTime)
	})
	return objects, nil
}

// Delete removes one object. An object that is already gone counts as
// deleted.
func (a *Adapter) Delete(ctx context.Context, tok *oauth2.Token, id string) (bool, error) {
	api, err := a.connect(ctx, tok)
	if err != nil {
		return false, err
	}
	if err := a.deleteOne(ctx, api, id); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) deleteOne(ctx context.Context, api API, id string) error {
	err := a.call(ctx, "delete file", func(ctx context.Context) error {
		return api.DeleteFile(ctx, id)
	})
	if err == nil || isNotFound(err) {
		return nil
	}
	return classify("delete file", err)
}

// BatchDelete deletes ids concurrently. Per-object failures land in Failed;
// a rejected token aborts the whole batch with a StorageAuth error.
func (a *Adapter) BatchDelete(ctx context.Context, tok *oauth2.Token, ids []string) (*BatchResult, error) {
	result := &BatchResult{Success: []string{}, Failed: []string{}}
	if len(ids) == 0 {
		return result, nil
	}
	api, err := a.connect(ctx, tok)
	if err != nil {
		return nil, err
	}

	outcome := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			err := a.deleteOne(gctx, api, id)
			if apperror.HasCode(err, apperror.CodeStorageAuth) {
				return err
			}
			outcome[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		if outcome[i] != nil {
			logging.FromContext(ctx).Warn().Err(outcome[i]).Str("object_id", id).Msg("batch delete item failed")
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}

func (a *Adapter) makePublic(ctx context.Context, api API, id string) error {
	err := a.call(ctx, "create permission", func(ctx context.Context) error {
		return api.CreatePermission(ctx, id, &drive.Permission{Type: "anyone", Role: "reader"})
	})
	return classify("create permission", err)
}

func (a *Adapter) ensurePublic(ctx context.Context, api API, id string) error {
	var perms []*drive.Permission
	err := a.call(ctx, "list permissions", func(ctx context.Context) (err error) {
		perms, err = api.ListPermissions(ctx, id)
		return err
	})
	if err != nil {
		return classify("list permissions", err)
	}
	for _, p := range perms {
		if p.Type == "anyone" {
			return nil
		}
	}
	return a.makePublic(ctx, api, id)
}

func objectFromFile(f *drive.File) *Object {
	obj := &Object{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		URL:      PublicURL(f.Id),
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		obj.CreatedTime = t.UTC()
	}
	return obj
}
