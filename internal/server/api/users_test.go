package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/store"
)

func TestUsersHandler_Register(t *testing.T) {
	env := newTestEnv(t)
	h := NewUsersHandler(env.auth, env.store)

	t.Run("creates user", func(t *testing.T) {
		rec, resp := serve(t, h.Register, jsonRequest(t, http.MethodPost, "/api/users/register", map[string]string{
			"fullname": "Asha Rao",
			"email":    "asha@example.com",
			"password": "secret1",
		}))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, resp.Success)

		var u map[string]any
		decodeData(t, resp, &u)
		assert.Equal(t, "asha@example.com", u["email"])
		assert.Equal(t, []any{"user"}, u["role"])
		assert.NotContains(t, u, "PasswordHash")
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec, resp := serve(t, h.Register, jsonRequest(t, http.MethodPost, "/api/users/register", map[string]string{
			"fullname": "Other",
			"email":    "ASHA@example.com",
			"password": "secret1",
		}))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, resp.Success)
	})

	t.Run("validation message", func(t *testing.T) {
		rec, resp := serve(t, h.Register, jsonRequest(t, http.MethodPost, "/api/users/register", map[string]string{
			"fullname": "Ravi",
			"email":    "ravi@example.com",
			"password": "123",
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Password must be at least 6 characters", resp.Message)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec, _ := serve(t, h.Register, jsonRequest(t, http.MethodPost, "/api/users/register", "not an object"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUsersHandler_LoginLogout(t *testing.T) {
	env := newTestEnv(t)
	h := NewUsersHandler(env.auth, env.store)
	env.createUser(t, "asha@example.com")

	rec, resp := serve(t, h.Login, jsonRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "asha@example.com",
		"password": "secret1",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		User  store.User `json:"user"`
		Token string     `json:"token"`
	}
	decodeData(t, resp, &data)
	assert.Equal(t, "asha@example.com", data.User.Email)
	assert.NotEmpty(t, data.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	t.Run("wrong password", func(t *testing.T) {
		rec, resp := serve(t, h.Login, jsonRequest(t, http.MethodPost, "/api/users/login", map[string]string{
			"email":    "asha@example.com",
			"password": "nope-nope",
		}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", resp.Message)
	})

	t.Run("logout ends session", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/users/logout", nil)
		req.Header.Set("Authorization", "Bearer "+data.Token)
		rec, resp := serve(t, h.Logout, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)

		_, _, err := env.auth.Sessions().Resolve(data.Token)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("logout without session", func(t *testing.T) {
		rec, _ := serve(t, h.Logout, jsonRequest(t, http.MethodPost, "/api/users/logout", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUsersHandler_Profile(t *testing.T) {
	env := newTestEnv(t)
	h := NewUsersHandler(env.auth, env.store)
	u := env.createUser(t, "asha@example.com")

	rec, resp := serve(t, h.Me, asUser(jsonRequest(t, http.MethodGet, "/api/users/me", nil), u))
	require.Equal(t, http.StatusOK, rec.Code)
	var me store.User
	decodeData(t, resp, &me)
	assert.Equal(t, u.ID, me.ID)

	rec, resp = serve(t, h.UpdateProfile, asUser(jsonRequest(t, http.MethodPut, "/api/users/update-profile", map[string]string{
		"fullname": "Asha R",
		"password": "changed1",
	}), u))
	require.Equal(t, http.StatusOK, rec.Code)
	var updated store.User
	decodeData(t, resp, &updated)
	assert.Equal(t, "Asha R", updated.FullName)

	_, _, err := env.auth.Login("asha@example.com", "changed1")
	assert.NoError(t, err)

	rec, _ = serve(t, h.UpdateProfile, asUser(jsonRequest(t, http.MethodPut, "/api/users/update-profile", map[string]string{
		"fullname": "",
	}), u))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsersHandler_Feedback(t *testing.T) {
	env := newTestEnv(t)
	h := NewUsersHandler(env.auth, env.store)
	u := env.createUser(t, "asha@example.com")

	for _, stars := range []int{0, 6} {
		rec, _ := serve(t, h.Feedback, asUser(jsonRequest(t, http.MethodPost, "/api/users/feedback", map[string]any{
			"stars": stars, "feedback": "meh",
		}), u))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "stars=%d", stars)
	}

	rec, resp := serve(t, h.Feedback, asUser(jsonRequest(t, http.MethodPost, "/api/users/feedback", map[string]any{
		"stars": 5, "feedback": "  Great app  ",
	}), u))
	require.Equal(t, http.StatusCreated, rec.Code)

	var f store.Feedback
	decodeData(t, resp, &f)
	assert.Equal(t, u.ID, f.UserID)
	assert.Equal(t, "Great app", f.Feedback)

	n, err := env.store.Feedbacks().Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUsersHandler_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	h := NewUsersHandler(env.auth, env.store)
	env.createUser(t, "asha@example.com")

	rec, _ := serve(t, h.SendCode, jsonRequest(t, http.MethodPost, "/api/users/send-code", map[string]string{
		"email": "nobody@example.com",
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, h.SendCode, jsonRequest(t, http.MethodPost, "/api/users/send-code", map[string]string{
		"email": "asha@example.com",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	code := env.notifier.lastCode()
	require.Len(t, code, 6)

	rec, _ = serve(t, h.Reset, jsonRequest(t, http.MethodPost, "/api/users/reset", map[string]string{
		"email": "asha@example.com", "newPassword": "brandnew",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing code")

	rec, resp := serve(t, h.Reset, jsonRequest(t, http.MethodPost, "/api/users/reset", map[string]string{
		"email": "asha@example.com", "code": code, "newPassword": "brandnew",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = serve(t, h.Reset, jsonRequest(t, http.MethodPost, "/api/users/reset", map[string]string{
		"email": "asha@example.com", "code": code, "newPassword": "again123",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired code", resp.Message)
}
