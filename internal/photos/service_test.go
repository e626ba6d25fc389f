package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/auth/token"
	"github.com/pysugar/photo-nexus/internal/config"
	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/drive"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

type fakeTokens struct {
	connected map[string]bool
	err       error
}

func (f *fakeTokens) HasTokens(_ context.Context, userID string) (bool, error) {
	return f.connected[userID], nil
}

func (f *fakeTokens) GetValid(_ context.Context, userID string) (*token.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.connected[userID] {
		return nil, nil
	}
	return &token.Record{UserID: userID, AccessToken: "access-" + userID}, nil
}

func (f *fakeTokens) ConnectedUsers(context.Context) ([]string, error) {
	var out []string
	for id := range f.connected {
		out = append(out, id)
	}
	return out, nil
}

type fakeStorage struct {
	mu         sync.Mutex
	seq        int
	objects    map[string]drive.Object
	failUpload string
	failDelete map[string]bool
	batchErr   error
	deleted    []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]drive.Object{}, failDelete: map[string]bool{}}
}

func (f *fakeStorage) add(name string, created time.Time) drive.Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("obj-%d", f.seq)
	obj := drive.Object{ID: id, Name: name, URL: drive.PublicURL(id), CreatedTime: created}
	f.objects[id] = obj
	return obj
}

func (f *fakeStorage) Upload(_ context.Context, _ *oauth2.Token, _, name, _ string, content io.Reader) (*drive.Object, error) {
	if f.failUpload != "" && strings.Contains(name, f.failUpload) {
		return nil, apperror.Storage("upload file", errors.New("quota exceeded"))
	}
	if _, err := io.ReadAll(content); err != nil {
		return nil, err
	}
	obj := f.add(name, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	return &obj, nil
}

func (f *fakeStorage) List(context.Context, *oauth2.Token, string) ([]drive.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]drive.Object, 0, len(f.objects))
	for _, o := range f.objects {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStorage) Delete(_ context.Context, _ *oauth2.Token, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[id] {
		return false, apperror.Storage("delete file", errors.New("backend error"))
	}
	delete(f.objects, id)
	f.deleted = append(f.deleted, id)
	return true, nil
}

func (f *fakeStorage) BatchDelete(ctx context.Context, tok *oauth2.Token, ids []string) (*drive.BatchResult, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	res := &drive.BatchResult{Success: []string{}, Failed: []string{}}
	for _, id := range ids {
		if _, err := f.Delete(ctx, tok, id); err != nil {
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Success = append(res.Success, id)
	}
	return res, nil
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *Store
	storage *fakeStorage
	tokens  *fakeTokens
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	store := NewStore(newTestDB(t))
	storage := newFakeStorage()
	tokens := &fakeTokens{connected: map[string]bool{"u1": true}}
	svc := NewService(tokens, storage, store, Options{
		UploadFailurePolicy: policy,
		NewName:             func(o string) string { return "gen_" + o },
		Now:                 func() time.Time { return testNow },
	})
	return &fixture{svc: svc, store: store, storage: storage, tokens: tokens}
}

// seed stores an object in Drive and its row with the given status.
func (f *fixture) seed(t *testing.T, name string, status models.PhotoStatus, created time.Time) models.Photo {
	t.Helper()
	obj := f.storage.add(name, created)
	row := models.Photo{
		UserID:      "u1",
		PhotoID:     obj.ID,
		PhotoName:   name,
		PhotoURL:    obj.URL,
		Status:      status,
		CreatedTime: &created,
	}
	if status == models.StatusLibrary {
		at := testNow.Add(-time.Hour)
		row.MovedToLibraryAt = &at
	}
	if err := f.store.InsertMany(context.Background(), []models.Photo{row}); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return row
}

func (f *fixture) row(t *testing.T, photoID string) *models.Photo {
	t.Helper()
	row, err := f.store.Get(context.Background(), "u1", photoID)
	if err != nil {
		t.Fatalf("get %s: %v", photoID, err)
	}
	return row
}

func (f *fixture) rowCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.store.DB().Model(&models.Photo{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func files(names ...string) []File {
	out := make([]File, len(names))
	for i, n := range names {
		out[i] = File{Name: n, MimeType: "image/jpeg", Content: strings.NewReader("bytes of " + n)}
	}
	return out
}

func TestList_NotConnected(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)

	_, err := f.svc.List(context.Background(), "stranger", FilterAll)
	if !errors.Is(err, apperror.ErrNotConnected) {
		t.Fatalf("expected NOT_CONNECTED, got %v", err)
	}
	if !strings.Contains(err.Error(), "Drive") {
		t.Fatalf("expected provider name in %q", err.Error())
	}
	if apperror.HTTPStatus(err) != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", apperror.HTTPStatus(err))
	}
}

func TestUpload_RecordsUnsorted(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)

	rows, err := f.svc.Upload(context.Background(), "u1", files("a.jpg", "b.jpg"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		stored := f.row(t, r.PhotoID)
		if stored == nil || stored.Status != models.StatusUnsorted {
			t.Fatalf("expected unsorted row for %s, got %+v", r.PhotoID, stored)
		}
		if stored.MovedToLibraryAt != nil {
			t.Fatalf("new uploads must not carry moved_to_library_at")
		}
	}
	if rows[0].PhotoName != "gen_a.jpg" {
		t.Fatalf("expected generated name, got %q", rows[0].PhotoName)
	}
}

func TestUpload_RollbackOnFailure(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	f.storage.failUpload = "b.jpg"

	_, err := f.svc.Upload(context.Background(), "u1", files("a.jpg", "b.jpg", "c.jpg"))
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"b.jpg"`) {
		t.Fatalf("error should name the failing file: %v", err)
	}
	if n := f.rowCount(t); n != 0 {
		t.Fatalf("expected no metadata rows, got %d", n)
	}
	if len(f.storage.objects) != 0 {
		t.Fatalf("expected uploaded objects to be removed, %d left", len(f.storage.objects))
	}
}

func TestUpload_PartialPolicyKeepsEarlierFiles(t *testing.T) {
	f := newFixture(t, config.UploadPolicyPartial)
	f.storage.failUpload = "b.jpg"

	rows, err := f.svc.Upload(context.Background(), "u1", files("a.jpg", "b.jpg", "c.jpg"))
	if err == nil {
		t.Fatalf("expected an error naming b.jpg")
	}
	if len(rows) != 1 || rows[0].PhotoName != "gen_a.jpg" {
		t.Fatalf("expected only a.jpg recorded, got %+v", rows)
	}
	if n := f.rowCount(t); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestUpload_InsertFailureRemovesObjects(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	// The fake assigns obj-1 to the next upload; a row already owns it.
	taken := models.Photo{UserID: "u1", PhotoID: "obj-1", PhotoName: "old.jpg", Status: models.StatusUnsorted}
	if err := f.store.DB().Create(&taken).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := f.svc.Upload(context.Background(), "u1", files("a.jpg"))
	if !errors.Is(err, apperror.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(f.storage.objects) != 0 {
		t.Fatalf("expected the orphaned upload to be deleted")
	}
}

func TestUpload_RequiresFiles(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	if _, err := f.svc.Upload(context.Background(), "u1", nil); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestMoveToLibrary_OnlyMovesUnsorted(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	ctx := context.Background()
	unsorted := f.seed(t, "u.jpg", models.StatusUnsorted, testNow.Add(-48*time.Hour))
	library := f.seed(t, "l.jpg", models.StatusLibrary, testNow.Add(-72*time.Hour))
	before := f.row(t, library.PhotoID)

	moved, err := f.svc.MoveToLibrary(ctx, "u1", []string{unsorted.PhotoID, library.PhotoID, "missing"})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 moved, got %d", moved)
	}

	got := f.row(t, unsorted.PhotoID)
	if got.Status != models.StatusLibrary || got.MovedToLibraryAt == nil || !got.MovedToLibraryAt.Equal(testNow) {
		t.Fatalf("unexpected moved row %+v", got)
	}
	after := f.row(t, library.PhotoID)
	if !after.MovedToLibraryAt.Equal(*before.MovedToLibraryAt) || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("library row must be left unchanged")
	}
}

func TestMoveToUnsorted_ClearsStampAndAlbums(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	ctx := context.Background()
	lib := f.seed(t, "l.jpg", models.StatusLibrary, testNow)
	inAlbum := f.seed(t, "a.jpg", models.StatusAlbum, testNow)
	if err := f.store.DB().Create(&models.AlbumPhoto{AlbumID: 1, PhotoID: inAlbum.PhotoID, UserID: "u1"}).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	moved, err := f.svc.MoveToUnsorted(ctx, "u1", []string{lib.PhotoID, inAlbum.PhotoID, lib.PhotoID})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 moved, got %d", moved)
	}
	for _, id := range []string{lib.PhotoID, inAlbum.PhotoID} {
		row := f.row(t, id)
		if row.Status != models.StatusUnsorted || row.MovedToLibraryAt != nil {
			t.Fatalf("unexpected row %+v", row)
		}
	}
	var links int64
	f.store.DB().Model(&models.AlbumPhoto{}).Count(&links)
	if links != 0 {
		t.Fatalf("expected album membership to be dropped, %d left", links)
	}
}

func TestStatusIsAlwaysSingleAndKnown(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	ctx := context.Background()
	rows, err := f.svc.Upload(ctx, "u1", files("1.jpg", "2.jpg", "3.jpg"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	ids := []string{rows[0].PhotoID, rows[1].PhotoID, rows[2].PhotoID}
	steps := []func() error{
		func() error { _, err := f.svc.MoveToLibrary(ctx, "u1", ids[:2]); return err },
		func() error { _, err := f.svc.MoveToUnsorted(ctx, "u1", ids[1:]); return err },
		func() error { _, err := f.svc.MoveToLibrary(ctx, "u1", ids); return err },
		func() error { _, err := f.svc.MoveToUnsorted(ctx, "u1", ids[:1]); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		var all []models.Photo
		f.store.DB().Find(&all)
		if len(all) != 3 {
			t.Fatalf("step %d: expected 3 rows, got %d", i, len(all))
		}
		for _, r := range all {
			if !r.Status.Valid() {
				t.Fatalf("step %d: invalid status %q", i, r.Status)
			}
			if (r.Status == models.StatusLibrary) != (r.MovedToLibraryAt != nil) {
				t.Fatalf("step %d: library stamp out of sync for %+v", i, r)
			}
		}
	}
}

func TestList_LibraryGroupedByDay(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	f.seed(t, "jan-a.jpg", models.StatusLibrary, time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC))
	f.seed(t, "jan-b.jpg", models.StatusLibrary, time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC))
	f.seed(t, "dec.jpg", models.StatusLibrary, time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC))
	f.seed(t, "loose.jpg", models.StatusUnsorted, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	listing, err := f.svc.List(context.Background(), "u1", FilterLibrary)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing.Photos) != 3 {
		t.Fatalf("expected 3 library photos, got %d", len(listing.Photos))
	}
	if listing.Photos[0].Name != "dec.jpg" {
		t.Fatalf("expected newest first, got %s", listing.Photos[0].Name)
	}
	year := listing.Library["2024"]
	if len(year) != 2 {
		t.Fatalf("expected two months, got %v", year)
	}
	if n := len(year["01"]["05"]); n != 2 {
		t.Fatalf("expected 2 photos on 2024-01-05, got %d", n)
	}
	if n := len(year["12"]["31"]); n != 1 {
		t.Fatalf("expected 1 photo on 2024-12-31, got %d", n)
	}
	if got := year["01"]["05"][0].Name; got != "jan-b.jpg" {
		t.Fatalf("expected query order kept inside a day, got %s first", got)
	}
}

func TestList_AllAnnotatesStatus(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	row := f.seed(t, "known.jpg", models.StatusLibrary, testNow)
	stray := f.storage.add("stray.jpg", testNow)

	listing, err := f.svc.List(context.Background(), "u1", FilterAll)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]models.PhotoStatus{}
	for _, p := range listing.Photos {
		got[p.ID] = p.Status
	}
	if got[row.PhotoID] != models.StatusLibrary {
		t.Fatalf("expected library status for %s, got %q", row.PhotoID, got[row.PhotoID])
	}
	if s, ok := got[stray.ID]; !ok || s != "" {
		t.Fatalf("expected untracked object with empty status, got %q (present %v)", s, ok)
	}
}

func TestDelete_ResolutionOrder(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	ctx := context.Background()
	a := f.seed(t, "holiday-beach.jpg", models.StatusUnsorted, testNow)
	b := f.seed(t, "beach.jpg", models.StatusUnsorted, testNow)
	c := f.seed(t, "mountain.jpg", models.StatusUnsorted, testNow)

	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{name: "exact id", identifier: c.PhotoID, want: c.PhotoID},
		{name: "exact name beats earlier substring", identifier: "beach.jpg", want: b.PhotoID},
		{name: "substring takes oldest", identifier: "beach", want: a.PhotoID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.svc.Delete(ctx, "u1", tt.identifier)
			if err != nil || !ok {
				t.Fatalf("delete %q: %v %v", tt.identifier, ok, err)
			}
			if f.row(t, tt.want) != nil {
				t.Fatalf("expected %s to be deleted", tt.want)
			}
			if _, exists := f.storage.objects[tt.want]; exists {
				t.Fatalf("expected Drive object %s to be deleted", tt.want)
			}
		})
	}
}

func TestDelete_UnknownIdentifier(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	f.seed(t, "kept.jpg", models.StatusUnsorted, testNow)

	ok, err := f.svc.Delete(context.Background(), "u1", "nothing-like-it")
	if err != nil || ok {
		t.Fatalf("expected false without error, got %v %v", ok, err)
	}
	if len(f.storage.deleted) != 0 {
		t.Fatalf("no Drive call expected")
	}
}

func TestDelete_StorageFailureKeepsRow(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	row := f.seed(t, "kept.jpg", models.StatusUnsorted, testNow)
	f.storage.failDelete[row.PhotoID] = true

	_, err := f.svc.Delete(context.Background(), "u1", row.PhotoID)
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if f.row(t, row.PhotoID) == nil {
		t.Fatalf("row must survive a failed object delete")
	}
}

func TestDeleteByURL(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	row := f.seed(t, "linked.jpg", models.StatusLibrary, testNow)

	ok, err := f.svc.DeleteByURL(context.Background(), "u1", row.PhotoURL)
	if err != nil || !ok {
		t.Fatalf("delete by url: %v %v", ok, err)
	}
	if f.row(t, row.PhotoID) != nil {
		t.Fatalf("expected row removed")
	}
	if _, err := f.svc.DeleteByURL(context.Background(), "u1", "https://example.com/x.jpg"); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input for foreign url, got %v", err)
	}
}

func TestBatchDelete_PartialFailure(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	valid := f.seed(t, "valid.jpg", models.StatusUnsorted, testNow)
	other := f.seed(t, "other.jpg", models.StatusLibrary, testNow)

	out, err := f.svc.BatchDelete(context.Background(), "u1", []string{valid.PhotoID, "does-not-exist"})
	if err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if len(out.Success) != 1 || out.Success[0] != valid.PhotoID {
		t.Fatalf("unexpected success %v", out.Success)
	}
	if len(out.Failed) != 1 || out.Failed[0] != "does-not-exist" {
		t.Fatalf("unexpected failed %v", out.Failed)
	}
	if f.row(t, valid.PhotoID) != nil {
		t.Fatalf("expected valid row removed")
	}
	if got := f.row(t, other.PhotoID); got == nil || got.Status != models.StatusLibrary {
		t.Fatalf("unrelated row must be untouched, got %+v", got)
	}
	if n := f.rowCount(t); n != 1 {
		t.Fatalf("expected 1 row left, got %d", n)
	}
}

func TestBatchDelete_ReportsRepeatedIdentifiers(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	row := f.seed(t, "dup.jpg", models.StatusUnsorted, testNow)

	out, err := f.svc.BatchDelete(context.Background(), "u1", []string{row.PhotoID, "dup.jpg"})
	if err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if len(out.Success) != 1 || out.Success[0] != row.PhotoID {
		t.Fatalf("unexpected success %v", out.Success)
	}
	if len(out.Failed) != 0 {
		t.Fatalf("unexpected failed %v", out.Failed)
	}
	if len(out.Duplicate) != 1 || out.Duplicate[0] != "dup.jpg" {
		t.Fatalf("expected the repeated identifier reported, got %v", out.Duplicate)
	}
	if f.row(t, row.PhotoID) != nil {
		t.Fatalf("expected row removed")
	}
}

func TestBatchDelete_DriveFailureKeepsRow(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	ok := f.seed(t, "ok.jpg", models.StatusUnsorted, testNow)
	bad := f.seed(t, "bad.jpg", models.StatusUnsorted, testNow)
	f.storage.failDelete[bad.PhotoID] = true

	out, err := f.svc.BatchDelete(context.Background(), "u1", []string{"ok.jpg", "bad.jpg"})
	if err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if len(out.Success) != 1 || out.Success[0] != ok.PhotoID {
		t.Fatalf("unexpected success %v", out.Success)
	}
	if len(out.Failed) != 1 || out.Failed[0] != "bad.jpg" {
		t.Fatalf("failed should carry the caller's identifier, got %v", out.Failed)
	}
	if f.row(t, bad.PhotoID) == nil {
		t.Fatalf("row for failed object must survive")
	}
}

func TestBatchDelete_SystemicFailure(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	row := f.seed(t, "x.jpg", models.StatusUnsorted, testNow)
	f.storage.batchErr = apperror.StorageAuth("delete file", nil)

	if _, err := f.svc.BatchDelete(context.Background(), "u1", []string{row.PhotoID}); !errors.Is(err, apperror.ErrStorageAuth) {
		t.Fatalf("expected storage auth error, got %v", err)
	}
	if f.row(t, row.PhotoID) == nil {
		t.Fatalf("row must survive a systemic failure")
	}
}

func TestBatchDelete_NotConnected(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	if _, err := f.svc.BatchDelete(context.Background(), "nobody", []string{"x"}); !errors.Is(err, apperror.ErrNotConnected) {
		t.Fatalf("expected NOT_CONNECTED, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	ctx := context.Background()
	kept := f.seed(t, "kept.jpg", models.StatusLibrary, testNow.Add(-time.Hour))
	gone := f.seed(t, "gone.jpg", models.StatusUnsorted, testNow.Add(-time.Hour))
	delete(f.storage.objects, gone.PhotoID)
	stray := f.storage.add("stray.jpg", testNow.Add(-time.Hour))
	fresh := f.storage.add("fresh.jpg", testNow.Add(-time.Minute))

	res, err := f.svc.Reconcile(ctx, "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Removed != 1 || res.Adopted != 1 {
		t.Fatalf("expected 1 removed and 1 adopted, got %+v", res)
	}
	if f.row(t, gone.PhotoID) != nil {
		t.Fatalf("stale row should be removed")
	}
	if got := f.row(t, stray.ID); got == nil || got.Status != models.StatusUnsorted {
		t.Fatalf("stray object should be adopted as unsorted, got %+v", got)
	}
	if f.row(t, fresh.ID) != nil {
		t.Fatalf("recent objects are left for their upload to record")
	}
	if got := f.row(t, kept.PhotoID); got == nil || got.Status != models.StatusLibrary {
		t.Fatalf("matching row must be untouched")
	}
}

func TestReconcileAll_SkipsReauth(t *testing.T) {
	f := newFixture(t, config.UploadPolicyRollback)
	f.tokens.err = apperror.ReauthRequired("expired")
	// Must not panic or block; errors are logged.
	f.svc.reconcileAll(context.Background())
}

func TestParseFilter(t *testing.T) {
	for in, want := range map[string]Filter{"": FilterAll, "ALL": FilterAll, "library": FilterLibrary, " album ": FilterAlbum} {
		got, err := ParseFilter(in)
		if err != nil || got != want {
			t.Errorf("ParseFilter(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFilter("trash"); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGenerateName(t *testing.T) {
	a, b := GenerateName("dir/cat.jpg"), GenerateName("dir/cat.jpg")
	if a == b {
		t.Fatalf("names must differ")
	}
	if !strings.HasSuffix(a, "_cat.jpg") {
		t.Fatalf("expected base name kept, got %q", a)
	}
	if got := GenerateName(""); !strings.HasSuffix(got, "_photo") {
		t.Fatalf("expected fallback name, got %q", got)
	}
}
