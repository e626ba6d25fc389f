package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func TestServiceAPI_FindFolderPicksOldest(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		if got := r.URL.Query().Get("orderBy"); got != "createdTime" {
			http.Error(w, `{"error":{"code":400,"message":"missing orderBy"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"files":[{"id":"folder-old","name":"Photos_u1","mimeType":"application/vnd.google-apps.folder"}]}`))
	}))
	defer srv.Close()

	factory := NewServiceFactory(option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	api, err := factory(context.Background(), &oauth2.Token{AccessToken: "access"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	folder, err := api.FindFolder(context.Background(), "Photos_u1")
	if err != nil {
		t.Fatalf("find folder: %v", err)
	}
	if folder == nil || folder.Id != "folder-old" {
		t.Fatalf("expected folder-old, got %+v", folder)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 1 || !strings.Contains(queries[0], "pageSize=1") {
		t.Fatalf("expected a single one-item page request, got %v", queries)
	}
}
