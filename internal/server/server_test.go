package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/signspeak/internal/store"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		if _, exists := response["recognition"]; exists {
			t.Error("recognition block should be absent without a recognizer")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON 404 for API paths, got Content-Type %q", ct)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"serves index.html at root path", "/", http.StatusOK, testContent},
		{"serves static files from configured directory", "/style.css", http.StatusOK, cssContent},
		{"falls back to index.html for client routes", "/training", http.StatusOK, testContent},
		{"returns 404 for non-existent static files", "/nonexistent.html", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	t.Run("root path returns 404 when no static dir configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_CORS(t *testing.T) {
	s := New(Config{AllowedOrigins: []string{"https://signspeak.example.com/"}})

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://signspeak.example.com", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://evil.example.com", false},
		{"http://localhost.evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("preflight status = %d, want 200", rec.Code)
			}
			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.allowed && got != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want none", got)
			}
		})
	}
}

func TestPageRedirect(t *testing.T) {
	member := &store.User{Roles: []string{store.RoleUser}}
	admin := &store.User{Roles: []string{store.RoleAdmin}}

	tests := []struct {
		path string
		user *store.User
		want string
	}{
		{"/", nil, "/login"},
		{"/", member, ""},
		{"/about", nil, "/login"},
		{"/profile", member, ""},
		{"/login", nil, ""},
		{"/login", member, "/"},
		{"/login", admin, "/dashboard"},
		{"/signup", member, "/"},
		{"/signup", admin, "/"},
		{"/dashboard", nil, "/"},
		{"/dashboard", member, "/"},
		{"/dashboard", admin, ""},
		{"/dashboard/users", member, "/"},
		{"/dashboard/users", admin, ""},
		{"/dashboards", nil, ""},
		{"/forgot-password", nil, ""},
	}

	for _, tt := range tests {
		name := tt.path
		switch {
		case tt.user == nil:
			name += " anonymous"
		case tt.user.IsAdmin():
			name += " admin"
		default:
			name += " member"
		}
		t.Run(name, func(t *testing.T) {
			if got := pageRedirect(tt.path, tt.user); got != tt.want {
				t.Errorf("pageRedirect(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCleanPagePath(t *testing.T) {
	tests := map[string]string{
		"":              "/",
		"/":             "/",
		"/about/":       "/about",
		"/a/../profile": "/profile",
		"//dashboard//": "/dashboard",
	}
	for in, want := range tests {
		if got := cleanPagePath(in); got != want {
			t.Errorf("cleanPagePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	s := New(Config{})
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.Router() == nil {
		t.Error("Router() returned nil")
	}
	if s.Hub() != nil {
		t.Error("Hub() should be nil without a recognizer")
	}
}
