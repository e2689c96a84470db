package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signspeak/internal/store"
)

func TestAdminHandler_AddAndListUsers(t *testing.T) {
	env := newTestEnv(t)
	h := NewAdminHandler(env.auth, env.store)
	admin := env.createUser(t, "admin@example.com", store.RoleAdmin)

	rec, resp := serve(t, h.AddUser, asUser(jsonRequest(t, http.MethodPost, "/api/admin/addUser", map[string]any{
		"fullname": "Ravi",
		"email":    "ravi@example.com",
		"password": "secret1",
		"role":     "Admin",
	}), admin))
	require.Equal(t, http.StatusCreated, rec.Code)
	var added store.User
	decodeData(t, resp, &added)
	assert.Equal(t, []string{"admin"}, added.Roles)

	for i := 0; i < 3; i++ {
		env.createUser(t, "user"+string(rune('a'+i))+"@example.com")
	}

	rec, resp = serve(t, h.GetAllUsers, asUser(jsonRequest(t, http.MethodGet, "/api/admin/getAllUsers?page=2&limit=2", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Users      []store.User `json:"users"`
		Pagination pagination   `json:"pagination"`
	}
	decodeData(t, resp, &page)
	assert.Len(t, page.Users, 2)
	assert.Equal(t, pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3}, page.Pagination)
}

func TestAdminHandler_UpdateAndDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	h := NewAdminHandler(env.auth, env.store)
	admin := env.createUser(t, "admin@example.com", store.RoleAdmin)
	u := env.createUser(t, "asha@example.com")

	req := withParams(jsonRequest(t, http.MethodPatch, "/api/admin/updateUser/"+u.ID, map[string]any{
		"fullname": "Asha Admin",
		"role":     []string{"admin", "user"},
	}), map[string]string{"id": u.ID})
	rec, resp := serve(t, h.UpdateUser, asUser(req, admin))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated store.User
	decodeData(t, resp, &updated)
	assert.Equal(t, "Asha Admin", updated.FullName)
	assert.Equal(t, "asha@example.com", updated.Email, "email untouched when omitted")
	assert.True(t, updated.IsAdmin())

	req = withParams(jsonRequest(t, http.MethodPatch, "/api/admin/updateUser/missing", map[string]any{}), map[string]string{"id": "missing"})
	rec, _ = serve(t, h.UpdateUser, asUser(req, admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = withParams(jsonRequest(t, http.MethodPatch, "/api/admin/deleteUser/"+admin.ID, nil), map[string]string{"id": admin.ID})
	rec, _ = serve(t, h.DeleteUser, asUser(req, admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admins cannot delete themselves")

	req = withParams(jsonRequest(t, http.MethodPatch, "/api/admin/deleteUser/"+u.ID, nil), map[string]string{"id": u.ID})
	rec, _ = serve(t, h.DeleteUser, asUser(req, admin))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.store.Users().GetByID(u.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	rec, _ = serve(t, h.DeleteUser, asUser(req, admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandler_Dashboard(t *testing.T) {
	env := newTestEnv(t)
	h := NewAdminHandler(env.auth, env.store)
	admin := env.createUser(t, "admin@example.com", store.RoleAdmin)
	u := env.createUser(t, "asha@example.com")
	gone := env.createUser(t, "gone@example.com")
	require.NoError(t, env.auth.DeleteUser(gone.ID))

	t.Run("counts", func(t *testing.T) {
		rec, resp := serve(t, h.GetUserCounts, asUser(jsonRequest(t, http.MethodGet, "/api/admin/getUserCounts", nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var counts store.UserCounts
		decodeData(t, resp, &counts)
		assert.Equal(t, store.UserCounts{TotalUsers: 2, TodaysUsers: 2, SoftDeletedUsers: 1, Admins: 1}, counts)
	})

	t.Run("recent users", func(t *testing.T) {
		rec, resp := serve(t, h.GetRecentUsers, asUser(jsonRequest(t, http.MethodGet, "/api/admin/getRecentUsers?limit=1", nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var recent []map[string]any
		decodeData(t, resp, &recent)
		require.Len(t, recent, 1)
		assert.Equal(t, u.ID, recent[0]["id"])
		assert.NotEmpty(t, recent[0]["joined"])
	})

	t.Run("last 7 days", func(t *testing.T) {
		rec, resp := serve(t, h.GetLast7DaysUsers, asUser(jsonRequest(t, http.MethodGet, "/api/admin/getLast7DaysUsers", nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var buckets []struct {
			ID    string `json:"_id"`
			Count int    `json:"count"`
		}
		decodeData(t, resp, &buckets)
		require.Len(t, buckets, 7)
		assert.Equal(t, time.Now().UTC().Format(time.DateOnly), buckets[6].ID)
		assert.Equal(t, 2, buckets[6].Count)
	})

	t.Run("last 4 weeks", func(t *testing.T) {
		rec, resp := serve(t, h.GetLast4WeeksUsers, asUser(jsonRequest(t, http.MethodGet, "/api/admin/getLast4WeeksUsers", nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var buckets []struct {
			ID    int `json:"_id"`
			Count int `json:"count"`
		}
		decodeData(t, resp, &buckets)
		require.NotEmpty(t, buckets)
		_, week := time.Now().UTC().ISOWeek()
		last := buckets[len(buckets)-1]
		assert.Equal(t, week, last.ID)
		assert.Equal(t, 2, last.Count)
	})

	t.Run("feedbacks", func(t *testing.T) {
		require.NoError(t, env.store.Feedbacks().Create(&store.Feedback{UserID: u.ID, Stars: 4, Feedback: "nice"}))
		require.NoError(t, env.store.Feedbacks().Create(&store.Feedback{UserID: u.ID, Stars: 2}))

		rec, resp := serve(t, h.GetAllFeedbacks, asUser(jsonRequest(t, http.MethodGet, "/api/admin/getAllFeedbacks", nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var page struct {
			Feedbacks    []store.Feedback `json:"feedbacks"`
			AverageStars float64          `json:"averageStars"`
			Pagination   pagination       `json:"pagination"`
		}
		decodeData(t, resp, &page)
		assert.Len(t, page.Feedbacks, 2)
		assert.InDelta(t, 3.0, page.AverageStars, 1e-9)
		assert.Equal(t, pagination{Page: 1, Limit: 10, Total: 2, TotalPages: 1}, page.Pagination)
		require.NotNil(t, page.Feedbacks[0].User)
		assert.Equal(t, "asha@example.com", page.Feedbacks[0].User.Email)
	})
}

func TestDailyBuckets(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := start.AddDate(0, 0, 6)
	times := []time.Time{
		start.Add(3 * time.Hour),
		start.Add(5 * time.Hour),
		last.Add(23 * time.Hour),
	}

	got := dailyBuckets(start, last, times)
	require.Len(t, got, 7)
	assert.Equal(t, bucket{ID: "2026-03-01", Count: 2}, got[0])
	assert.Equal(t, bucket{ID: "2026-03-02", Count: 0}, got[1])
	assert.Equal(t, bucket{ID: "2026-03-07", Count: 1}, got[6])
}

func TestWeeklyBuckets(t *testing.T) {
	// 2026-03-02 is a Monday in ISO week 10.
	last := time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC)
	start := last.AddDate(0, 0, -27)
	times := []time.Time{
		time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 29, 10, 0, 0, 0, time.UTC),
	}

	got := weeklyBuckets(start, last, times)
	require.Len(t, got, 4)
	assert.Equal(t, bucket{ID: 10, Count: 2}, got[0])
	assert.Equal(t, bucket{ID: 11, Count: 0}, got[1])
	assert.Equal(t, bucket{ID: 13, Count: 1}, got[3])
}

func TestRoleList(t *testing.T) {
	tests := []struct {
		in   string
		want roleList
	}{
		{`"admin"`, roleList{"admin"}},
		{`["admin","user"]`, roleList{"admin", "user"}},
		{`""`, nil},
	}
	for _, tt := range tests {
		var got roleList
		require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
		assert.Equal(t, tt.want, got, tt.in)
	}

	var bad roleList
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, 1, newPagination(1, 10, 0).TotalPages)
	assert.Equal(t, 1, newPagination(1, 10, 10).TotalPages)
	assert.Equal(t, 2, newPagination(1, 10, 11).TotalPages)
}
