package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/store"
)

const defaultRecentUsers = 5

// AdminHandler serves the dashboard endpoints under /api/admin.
type AdminHandler struct {
	auth  *auth.Service
	store *store.Store
	now   func() time.Time
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc *auth.Service, s *store.Store) *AdminHandler {
	return &AdminHandler{
		auth:  svc,
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// roleList accepts either "admin" or ["admin", "user"].
type roleList []string

func (l *roleList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = roleList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

type addUserRequest struct {
	FullName string   `json:"fullname"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     roleList `json:"role"`
}

type updateUserRequest struct {
	FullName *string  `json:"fullname"`
	Email    *string  `json:"email"`
	Password string   `json:"password"`
	Role     roleList `json:"role"`
}

type usersPage struct {
	Users      []*store.User `json:"users"`
	Pagination pagination    `json:"pagination"`
}

type feedbacksPage struct {
	Feedbacks    []*store.Feedback `json:"feedbacks"`
	AverageStars float64           `json:"averageStars"`
	Pagination   pagination        `json:"pagination"`
}

type recentUser struct {
	*store.User
	Joined string `json:"joined"`
}

// bucket is one point of a signup chart. ID is a YYYY-MM-DD date for daily
// charts and an ISO week number for weekly ones.
type bucket struct {
	ID    any `json:"_id"`
	Count int `json:"count"`
}

// AddUser handles POST /api/admin/addUser.
func (h *AdminHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	u, err := h.auth.CreateUser(req.FullName, req.Email, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User added successfully", u)
}

// GetAllUsers handles GET /api/admin/getAllUsers?page&limit.
func (h *AdminHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	users, total, err := h.store.Users().List(page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", usersPage{Users: users, Pagination: newPagination(page, limit, total)})
}

// UpdateUser handles PATCH /api/admin/updateUser/{id}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	u, err := h.auth.UpdateUser(chi.URLParam(r, "id"), auth.UserChanges{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "User updated successfully", u)
}

// DeleteUser handles PATCH /api/admin/deleteUser/{id}. Users are soft-deleted.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if me := auth.UserFromContext(r.Context()); me != nil && me.ID == id {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	if err := h.auth.DeleteUser(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "User deleted successfully", nil)
}

// GetUserCounts handles GET /api/admin/getUserCounts.
func (h *AdminHandler) GetUserCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Users().Counts(startOfDay(h.now()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", counts)
}

// GetRecentUsers handles GET /api/admin/getRecentUsers?limit.
func (h *AdminHandler) GetRecentUsers(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if n <= 0 {
		n = defaultRecentUsers
	}
	_, n = store.Page(1, n)

	users, err := h.store.Users().Recent(n)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	now := h.now()
	out := make([]recentUser, len(users))
	for i, u := range users {
		out[i] = recentUser{User: u, Joined: humanize.RelTime(u.CreatedAt, now, "ago", "from now")}
	}
	writeData(w, http.StatusOK, "", out)
}

// GetLast7DaysUsers handles GET /api/admin/getLast7DaysUsers. Every day in
// the window is present, with zero counts where nobody signed up.
func (h *AdminHandler) GetLast7DaysUsers(w http.ResponseWriter, r *http.Request) {
	today := startOfDay(h.now())
	start := today.AddDate(0, 0, -6)

	times, err := h.store.Users().CreatedSince(start)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", dailyBuckets(start, today, times))
}

// GetLast4WeeksUsers handles GET /api/admin/getLast4WeeksUsers. Signups in
// the last 28 days are grouped by ISO week.
func (h *AdminHandler) GetLast4WeeksUsers(w http.ResponseWriter, r *http.Request) {
	today := startOfDay(h.now())
	start := today.AddDate(0, 0, -27)

	times, err := h.store.Users().CreatedSince(start)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", weeklyBuckets(start, today, times))
}

// GetAllFeedbacks handles GET /api/admin/getAllFeedbacks?page&limit.
func (h *AdminHandler) GetAllFeedbacks(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	feedbacks, total, err := h.store.Feedbacks().List(page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	avg, err := h.store.Feedbacks().AverageStars()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", feedbacksPage{
		Feedbacks:    feedbacks,
		AverageStars: avg,
		Pagination:   newPagination(page, limit, total),
	})
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dailyBuckets(start, last time.Time, times []time.Time) []bucket {
	counts := make(map[string]int)
	for _, t := range times {
		counts[t.UTC().Format(time.DateOnly)]++
	}

	var out []bucket
	for d := start; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, bucket{ID: key, Count: counts[key]})
	}
	return out
}

func weeklyBuckets(start, last time.Time, times []time.Time) []bucket {
	counts := make(map[int]int)
	for _, t := range times {
		_, wk := t.UTC().ISOWeek()
		counts[wk]++
	}

	var out []bucket
	seen := make(map[int]bool)
	for d := start; !d.After(last); d = d.AddDate(0, 0, 1) {
		_, wk := d.ISOWeek()
		if seen[wk] {
			continue
		}
		seen[wk] = true
		out = append(out, bucket{ID: wk, Count: counts[wk]})
	}
	return out
}
