package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pysugar/photo-nexus/internal/auth/identity"
	"github.com/pysugar/photo-nexus/internal/logging"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(identity.UserID(r.Context())))
	})
}

func TestBearerAuth(t *testing.T) {
	h := BearerAuth(stubVerifier{"good": "u1"})(echoUser())
	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid", header: "Bearer good", status: http.StatusOK, body: "u1"},
		{name: "missing", header: "", status: http.StatusUnauthorized, body: "Missing bearer token"},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized, body: "Missing bearer token"},
		{name: "rejected", header: "Bearer nope", status: http.StatusUnauthorized, body: "UNAUTHORIZED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("expected %q in body %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestBearerAuth_RealVerifier(t *testing.T) {
	v := identity.NewVerifier("secret", "photo-nexus")
	tok, err := v.Issue("u42", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	BearerAuth(v)(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u42" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupWriter(&buf, "info", "json")
	t.Cleanup(func() { logging.Setup("info", "json") })

	h := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.RequestIDFrom(r.Context()) != "abc123" {
			t.Errorf("request id not propagated")
		}
		w.WriteHeader(http.StatusNotFound)
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
	req.Header.Set(logging.RequestIDHeader, "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get(logging.RequestIDHeader) != "abc123" {
		t.Fatalf("expected request id echoed")
	}
	out := buf.String()
	for _, want := range []string{`"request_id":"abc123"`, `"status":404`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log line %s", want, out)
		}
	}
}
