// Package server provides the HTTP server for signspeak: the JSON API, the
// recognition websocket, the camera preview and the web app.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/signspeak/internal/auth"
	"github.com/ayusman/signspeak/internal/recognizer"
	"github.com/ayusman/signspeak/internal/server/api"
	"github.com/ayusman/signspeak/internal/store"
)

const apiTimeout = 30 * time.Second

// Config holds the server configuration. Store and Auth enable the account
// and admin API; Recognizer enables recognition, samples and the preview.
type Config struct {
	StaticDir      string
	AllowedOrigins []string
	Store          *store.Store
	Auth           *auth.Service
	Recognizer     *recognizer.Recognizer
}

// Server is the signspeak HTTP server.
type Server struct {
	config  Config
	router  *chi.Mux
	origins originPolicy
	hub     *Hub
	start   time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a Server with its routes registered.
func New(config Config) *Server {
	s := &Server{
		config:  config,
		router:  chi.NewRouter(),
		origins: newOriginPolicy(config.AllowedOrigins),
		start:   time.Now(),
	}

	if rec := config.Recognizer; rec != nil {
		s.hub = NewHub(s.origins.checkWebSocketOrigin, rec.Last)
		rec.OnResult(s.hub.Publish)
	}

	s.router.Use(chiMiddleware.RequestID)
	s.router.Use(chiMiddleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(chiMiddleware.Recoverer)
	s.router.Use(s.origins.cors)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Get("/api/health", s.handleHealth)

	var sessions *auth.SessionManager
	if s.config.Auth != nil && s.config.Store != nil {
		sessions = s.config.Auth.Sessions()
		users := api.NewUsersHandler(s.config.Auth, s.config.Store)
		admin := api.NewAdminHandler(s.config.Auth, s.config.Store)

		r.Route("/api/users", func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(apiTimeout))
			r.Post("/register", users.Register)
			r.Post("/login", users.Login)
			r.Post("/logout", users.Logout)
			r.Post("/send-code", users.SendCode)
			r.Post("/reset", users.Reset)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth(sessions))
				r.Get("/me", users.Me)
				r.Put("/update-profile", users.UpdateProfile)
				r.Post("/feedback", users.Feedback)
			})
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(apiTimeout))
			r.Use(requireAuth(sessions))
			r.Use(requireAdmin)
			r.Post("/addUser", admin.AddUser)
			r.Get("/getAllUsers", admin.GetAllUsers)
			r.Patch("/updateUser/{id}", admin.UpdateUser)
			r.Patch("/deleteUser/{id}", admin.DeleteUser)
			r.Get("/getUserCounts", admin.GetUserCounts)
			r.Get("/getRecentUsers", admin.GetRecentUsers)
			r.Get("/getLast7DaysUsers", admin.GetLast7DaysUsers)
			r.Get("/getLast4WeeksUsers", admin.GetLast4WeeksUsers)
			r.Get("/getAllFeedbacks", admin.GetAllFeedbacks)
		})

		if rec := s.config.Recognizer; rec != nil {
			recognition := api.NewRecognitionHandler(rec)
			samples := api.NewSamplesHandler(s.config.Store, rec)

			r.Route("/api/recognition", func(r chi.Router) {
				r.Use(requireAuth(sessions))
				r.Get("/status", recognition.Status)
				r.Post("/start", recognition.Start)
				r.Post("/stop", recognition.Stop)
				r.Post("/classify", recognition.Classify)
				r.Get("/ws", s.hub.ServeHTTP)
			})

			r.Route("/api/samples", func(r chi.Router) {
				r.Use(requireAuth(sessions))
				r.Use(requireAdmin)
				r.Get("/", samples.List)
				r.Post("/", samples.Create)
				r.Post("/reload", samples.ReloadSamples)
				r.Delete("/{id}", samples.Delete)
			})

			r.With(requireAuth(sessions)).Get("/api/stream", NewStreamHandler(rec.Camera()).ServeHTTP)
		}
	}

	pages := pageGuard(sessions, newSPAHandler(s.config.StaticDir))
	r.Get("/*", pages.ServeHTTP)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Hub returns the recognition websocket hub, or nil without a recognizer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "ok",
		"uptime":  strings.TrimSpace(humanize.RelTime(s.start, time.Now(), "", "")),
		"started": s.start.UTC().Format(time.RFC3339),
	}
	if rec := s.config.Recognizer; rec != nil {
		mode, running := rec.Running()
		response["recognition"] = map[string]any{
			"running": running,
			"mode":    mode,
			"samples": rec.Classifier().Len(),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logrus.WithField("addr", addr).Info("starting web server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops accepting requests, disconnects websocket clients and waits
// for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
