package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"renovationAi/internal/studio"
)

func TestRouter(t *testing.T) {
	static := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "frontend")
	})
	h := studio.Handler{Service: studio.NewService(studio.Deps{})}
	srv := httptest.NewServer(NewRouter(h, static))
	defer srv.Close()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{"health", http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{"create session", http.MethodPost, "/api/sessions", http.StatusCreated, `"state":"idle"`},
		{"unknown session", http.MethodGet, "/api/sessions/missing", http.StatusNotFound, `"error"`},
		{"static fallback", http.MethodGet, "/index.html", http.StatusOK, "frontend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d (%s)", tt.status, resp.StatusCode, body)
			}
			if !strings.Contains(string(body), tt.body) {
				t.Errorf("Expected body to contain %q, got %s", tt.body, body)
			}
		})
	}
}

func TestNewSizesWriteTimeout(t *testing.T) {
	srv := New(Config{Port: "9090", RequestTimeout: time.Minute}, studio.Handler{Service: studio.NewService(studio.Deps{})}, nil)
	if srv.Addr != ":9090" {
		t.Errorf("Expected addr :9090, got %s", srv.Addr)
	}
	if srv.WriteTimeout != 210*time.Second {
		t.Errorf("Expected write timeout to cover three model calls plus margin, got %s", srv.WriteTimeout)
	}
}
