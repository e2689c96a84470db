package server

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/store"
)

// Pages that need a signed-in user.
var memberPages = map[string]bool{
	"/":        true,
	"/about":   true,
	"/contact": true,
	"/profile": true,
}

// Pages only shown to visitors who are not signed in.
var guestPages = map[string]bool{
	"/login":  true,
	"/signup": true,
}

func isDashboard(p string) bool {
	return p == "/dashboard" || strings.HasPrefix(p, "/dashboard/")
}

func cleanPagePath(p string) string {
	p = path.Clean("/" + p)
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// guardedPage reports whether the page's access depends on the session.
func guardedPage(p string) bool {
	return memberPages[p] || guestPages[p] || isDashboard(p)
}

// pageRedirect returns where a visitor to p should be sent instead, or ""
// to serve the page. u is nil for anonymous visitors.
func pageRedirect(p string, u *store.User) string {
	switch {
	case isDashboard(p):
		if u == nil || !u.IsAdmin() {
			return "/"
		}
	case guestPages[p]:
		if u != nil {
			if p == "/login" && u.IsAdmin() {
				return "/dashboard"
			}
			return "/"
		}
	case memberPages[p]:
		if u == nil {
			return "/login"
		}
	}
	return ""
}

// pageGuard redirects page requests according to the visitor's session.
func pageGuard(sm *auth.SessionManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := cleanPagePath(r.URL.Path)
		if sm == nil || !guardedPage(p) {
			next.ServeHTTP(w, r)
			return
		}

		user, _, err := sm.FromRequest(r)
		if err != nil && !errors.Is(err, auth.ErrUnauthorized) {
			logrus.WithError(err).Warn("session lookup failed for page request")
		}

		if target := pageRedirect(p, user); target != "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// spaHandler serves files from dir. Unknown paths without a file extension get
// index.html so client-side routes load the app.
type spaHandler struct {
	dir   string
	files http.Handler
}

func newSPAHandler(dir string) *spaHandler {
	h := &spaHandler{dir: dir}
	if dir != "" {
		h.files = http.FileServer(http.Dir(dir))
	}
	return h
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if h.files == nil {
		http.NotFound(w, r)
		return
	}

	p := cleanPagePath(r.URL.Path)
	if _, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(p))); err != nil && path.Ext(p) == "" {
		index := filepath.Join(h.dir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	h.files.ServeHTTP(w, r)
}
