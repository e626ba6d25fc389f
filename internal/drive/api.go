package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

const fileFields = "id, name, mimeType, createdTime, size"

// API is the subset of the Drive v3 surface the adapter needs.
type API interface {
	FindFolder(ctx context.Context, name string) (*drive.File, error)
	CreateFolder(ctx context.Context, name string) (*drive.File, error)
	CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*drive.File, error)
	ListFiles(ctx context.Context, parentID string) ([]*drive.File, error)
	ListPermissions(ctx context.Context, fileID string) ([]*drive.Permission, error)
	CreatePermission(ctx context.Context, fileID string, perm *drive.Permission) error
	DeleteFile(ctx context.Context, fileID string) error
}

// APIFactory builds an API client authorized with tok.
type APIFactory func(ctx context.Context, tok *oauth2.Token) (API, error)

// NewServiceFactory returns a factory backed by the Google API client.
// Extra options (endpoint, HTTP client) are appended after the token source.
func NewServiceFactory(opts ...option.ClientOption) APIFactory {
	return func(ctx context.Context, tok *oauth2.Token) (API, error) {
		all := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}, opts...)
		svc, err := drive.NewService(ctx, all...)
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		return &serviceAPI{svc: svc}, nil
	}
}

type serviceAPI struct {
	svc *drive.Service
}

// FindFolder returns the oldest matching folder so that every call settles on
// the same one if a race ever created two.
func (s *serviceAPI) FindFolder(ctx context.Context, name string) (*drive.File, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false and 'root' in parents",
		escapeQuery(name), folderMimeType)
	res, err := s.svc.Files.List().Q(q).Spaces("drive").OrderBy("createdTime").PageSize(1).
		Fields(googleapi.Field("files(" + fileFields + ")")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(res.Files) == 0 {
		return nil, nil
	}
	return res.Files[0], nil
}

func (s *serviceAPI) CreateFolder(ctx context.Context, name string) (*drive.File, error) {
	return s.svc.Files.Create(&drive.File{Name: name, MimeType: folderMimeType, Parents: []string{"root"}}).
		Fields(googleapi.Field(fileFields)).Context(ctx).Do()
}

func (s *serviceAPI) CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*drive.File, error) {
	meta := &drive.File{Name: name, MimeType: mimeType, Parents: []string{parentID}}
	return s.svc.Files.Create(meta).Media(content, googleapi.ContentType(mimeType)).
		Fields(googleapi.Field(fileFields)).Context(ctx).Do()
}

func (s *serviceAPI) ListFiles(ctx context.Context, parentID string) ([]*drive.File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", escapeQuery(parentID), folderMimeType)
	var files []*drive.File
	err := s.svc.Files.List().Q(q).Spaces("drive").PageSize(1000).OrderBy("createdTime desc").
		Fields(googleapi.Field("nextPageToken, files("+fileFields+")")).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	return files, err
}

func (s *serviceAPI) ListPermissions(ctx context.Context, fileID string) ([]*drive.Permission, error) {
	res, err := s.svc.Permissions.List(fileID).Fields("permissions(id, type, role)").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return res.Permissions, nil
}

func (s *serviceAPI) CreatePermission(ctx context.Context, fileID string, perm *drive.Permission) error {
	_, err := s.svc.Permissions.Create(fileID, perm).Fields("id").Context(ctx).Do()
	return err
}

func (s *serviceAPI) DeleteFile(ctx context.Context, fileID string) error {
	return s.svc.Files.Delete(fileID).Context(ctx).Do()
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}
