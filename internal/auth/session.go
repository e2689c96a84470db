package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/store"
)

const (
	// CookieName is the session cookie.
	CookieName = "signspeak_session"
	// DefaultSessionTTL is how long a login lasts.
	DefaultSessionTTL = 24 * time.Hour
)

// ErrUnauthorized is returned when a request carries no valid session.
var ErrUnauthorized = errors.New("unauthorized")

// SessionManager issues and validates sessions persisted in the store.
type SessionManager struct {
	sessions *store.SessionRepository
	users    *store.UserRepository
	secret   []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// NewSessionManager creates a session manager. An empty secret falls back to
// a development value and logs a warning.
func NewSessionManager(st *store.Store, secret string, ttl time.Duration) *SessionManager {
	if secret == "" {
		logrus.Warn("no session secret configured, using an insecure development secret")
		secret = "signspeak-dev-secret-change-in-production"
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: st.Sessions(),
		users:    st.Users(),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetSecureCookies marks issued cookies Secure, for deployments behind HTTPS.
func (sm *SessionManager) SetSecureCookies(secure bool) {
	sm.secure = secure
}

// TTL returns the session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Create starts a session for userID.
func (sm *SessionManager) Create(userID string) (*store.Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	t := sm.now().Truncate(time.Second)
	sess := &store.Session{
		ID:        base64.RawURLEncoding.EncodeToString(idBytes),
		UserID:    userID,
		CreatedAt: t,
		ExpiresAt: t.Add(sm.ttl),
	}
	if err := sm.sessions.Create(sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Resolve returns the active user behind session id. Expired sessions are
// removed as they are found.
func (sm *SessionManager) Resolve(id string) (*store.User, *store.Session, error) {
	if id == "" {
		return nil, nil, ErrUnauthorized
	}

	sess, err := sm.sessions.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}

	if sess.Expired(sm.now()) {
		if err := sm.sessions.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			logrus.WithError(err).Warn("failed to delete expired session")
		}
		return nil, nil, ErrUnauthorized
	}

	user, err := sm.users.GetByID(sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	if user.Deleted {
		return nil, nil, ErrUnauthorized
	}

	return user, sess, nil
}

// FromRequest resolves the session carried by r: the signed cookie first,
// then an "Authorization: Bearer <id>" header.
func (sm *SessionManager) FromRequest(r *http.Request) (*store.User, *store.Session, error) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if id, ok := sm.verifyCookie(cookie.Value); ok {
			user, sess, err := sm.Resolve(id)
			if err == nil {
				return user, sess, nil
			}
			if !errors.Is(err, ErrUnauthorized) {
				return nil, nil, err
			}
		}
	}

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return sm.Resolve(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
	}

	return nil, nil, ErrUnauthorized
}

// Destroy ends a session. Unknown IDs are ignored.
func (sm *SessionManager) Destroy(id string) error {
	if err := sm.sessions.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// DestroyForUser ends every session of userID.
func (sm *SessionManager) DestroyForUser(userID string) error {
	_, err := sm.sessions.DeleteForUser(userID)
	return err
}

// SetCookie writes the signed session cookie.
func (sm *SessionManager) SetCookie(w http.ResponseWriter, sess *store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID + "." + sm.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.ttl.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func (sm *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// RunCleanup deletes expired sessions every interval until ctx is done.
func (sm *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sm.sessions.DeleteExpired(sm.now())
			if err != nil {
				logrus.WithError(err).Warn("session cleanup failed")
				continue
			}
			if n > 0 {
				logrus.WithField("removed", n).Debug("expired sessions removed")
			}
		}
	}
}

func (sm *SessionManager) sign(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) verifyCookie(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(sig), []byte(sm.sign(id)))
}
