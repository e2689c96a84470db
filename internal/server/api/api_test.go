package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/capture"
	"github.com/ayusman/signspeak/internal/detector"
	"github.com/ayusman/signspeak/internal/notify"
	"github.com/ayusman/signspeak/internal/recognizer"
	"github.com/ayusman/signspeak/internal/store"
)

func init() {
	auth.BcryptCost = bcrypt.MinCost
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return ""
	}
	return n.msgs[len(n.msgs)-1].Data["code"]
}

type testEnv struct {
	store    *store.Store
	auth     *auth.Service
	notifier *recordingNotifier
	rec      *recognizer.Recognizer
	camera   *capture.MockCamera
	detector *detector.MockDetector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	n := &recordingNotifier{}
	svc := auth.NewService(st, auth.NewSessionManager(st, "test-secret", time.Hour), n)

	cam := capture.NewMockCamera(nil, true)
	det := detector.NewMockDetector()
	rec := recognizer.New(recognizer.Config{
		Camera:          cam,
		Detector:        det,
		LiveInterval:    5 * time.Millisecond,
		CaptureInterval: 5 * time.Millisecond,
	})
	t.Cleanup(rec.Stop)

	return &testEnv{store: st, auth: svc, notifier: n, rec: rec, camera: cam, detector: det}
}

func (e *testEnv) createUser(t *testing.T, email string, roles ...string) *store.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{store.RoleUser}
	}
	u, err := e.auth.CreateUser("Test User", email, "secret1", roles)
	require.NoError(t, err)
	return u
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(r *http.Request, u *store.User) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), u, nil))
}

func withParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h http.HandlerFunc, r *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, r)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

func decodeData(t *testing.T, resp response, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}
