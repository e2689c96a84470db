package api

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/store"
)

// UsersHandler serves the account endpoints under /api/users.
type UsersHandler struct {
	auth  *auth.Service
	store *store.Store
}

// NewUsersHandler creates a UsersHandler.
func NewUsersHandler(svc *auth.Service, s *store.Store) *UsersHandler {
	return &UsersHandler{auth: svc, store: s}
}

type registerRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  *store.User `json:"user"`
	Token string      `json:"token"`
}

type updateProfileRequest struct {
	FullName string `json:"fullname"`
	Password string `json:"password"`
}

type feedbackRequest struct {
	Stars    int    `json:"stars"`
	Feedback string `json:"feedback"`
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// Register handles POST /api/users/register.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	u, err := h.auth.Register(req.FullName, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User registered successfully", u)
}

// Login handles POST /api/users/login. The session is returned both as a
// cookie and as a bearer token.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	u, sess, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.auth.Sessions().SetCookie(w, sess)
	writeData(w, http.StatusOK, "Login successful", loginResponse{User: u, Token: sess.ID})
}

// Logout handles POST /api/users/logout. It succeeds even without a session.
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, sess, err := h.auth.Sessions().FromRequest(r); err == nil {
		if err := h.auth.Logout(sess.ID); err != nil {
			logrus.WithError(err).Warn("failed to delete session on logout")
		}
	}
	h.auth.Sessions().ClearCookie(w)
	writeData(w, http.StatusOK, "Logged out", nil)
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", auth.UserFromContext(r.Context()))
}

// UpdateProfile handles PUT /api/users/update-profile.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	u, err := h.auth.UpdateProfile(auth.UserFromContext(r.Context()), req.FullName, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profile updated successfully", u)
}

// Feedback handles POST /api/users/feedback.
func (h *UsersHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}
	if req.Stars < 1 || req.Stars > 5 {
		writeError(w, http.StatusBadRequest, "Stars must be between 1 and 5")
		return
	}

	f := &store.Feedback{
		UserID:   auth.UserFromContext(r.Context()).ID,
		Stars:    req.Stars,
		Feedback: strings.TrimSpace(req.Feedback),
	}
	if err := h.store.Feedbacks().Create(f); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Thank you for your feedback", f)
}

// SendCode handles POST /api/users/send-code.
func (h *UsersHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	if err := h.auth.SendResetCode(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Reset code sent to your email", nil)
}

// Reset handles POST /api/users/reset.
func (h *UsersHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	if err := h.auth.ResetPassword(req.Email, req.Code, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Password reset successfully", nil)
}
