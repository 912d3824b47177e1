// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the campus login, dashboard and registration pages.
package web

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	"github.com/randiU/cse340-practice-umphrey/internal/observability"
	"github.com/randiU/cse340-practice-umphrey/internal/session"
)

// Authenticator is the login side of the auth package.
type Authenticator interface {
	Login(ctx context.Context, sess auth.SessionState, email, password string) (*auth.Grant, error)
	Logout(ctx context.Context, sess auth.SessionState)
	CurrentUser(ctx context.Context, sess auth.SessionState) (*auth.UserPublic, error)
}

// Registrar manages user accounts.
type Registrar interface {
	Register(ctx context.Context, input auth.RegistrationInput) (*auth.UserPublic, error)
	List(ctx context.Context) ([]auth.UserPublic, error)
	Delete(ctx context.Context, id int64) error
}

// Deps holds the server's collaborators. All fields are required.
type Deps struct {
	Logins        Authenticator
	Registrations Registrar
	Sessions      *session.Manager
	Metrics       *observability.Metrics
	Logger        *slog.Logger
	// Development renders error detail and marks pages as development.
	Development bool
}

// Server holds the HTTP handlers.
type Server struct {
	logins        Authenticator
	registrations Registrar
	sessions      *session.Manager
	metrics       *observability.Metrics
	logger        *slog.Logger
	dev           bool
	templates     map[string]*template.Template
}

// NewServer validates deps and parses the page templates.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Logins == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("login service is required")
	case deps.Registrations == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("registration service is required")
	case deps.Sessions == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("session manager is required")
	case deps.Metrics == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("metrics are required")
	case deps.Logger == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Server{
		logins:        deps.Logins,
		registrations: deps.Registrations,
		sessions:      deps.Sessions,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		dev:           deps.Development,
		templates:     templates,
	}, nil
}

// Handler returns the full middleware chain around the routes. From the
// outside in: tracing, request logging, security headers, session load and
// commit, panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.recoverer(h)
	h = s.sessions.LoadAndSave(h)
	h = securityHeaders(h)
	h = s.requestLog(h)
	return otelhttp.NewHandler(h, "campus")
}

func (s *Server) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /{$}", http.HandlerFunc(s.handleHome))

	s.handle(mux, "GET /login", http.HandlerFunc(s.handleLoginForm))
	s.handle(mux, "POST /login", http.HandlerFunc(s.handleLogin))
	s.handle(mux, "GET /logout", http.HandlerFunc(s.handleLogout))
	s.handle(mux, "GET /dashboard", requireAuth(http.HandlerFunc(s.handleDashboard)))

	s.handle(mux, "GET /register", http.HandlerFunc(s.handleRegisterForm))
	s.handle(mux, "POST /register", http.HandlerFunc(s.handleRegister))
	s.handle(mux, "GET /register/list", requireAuth(http.HandlerFunc(s.handleUserList)))
	s.handle(mux, "POST /register/delete/{id}", requireAuth(http.HandlerFunc(s.handleUserDelete)))

	s.handle(mux, "GET /demo", demoHeaders(http.HandlerFunc(s.handleDemo)))

	s.handle(mux, "/", http.HandlerFunc(s.handleNotFound))
}

// handle registers h and records its pattern for request logs and metrics.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info := requestInfoFrom(r.Context()); info != nil {
			info.route = pattern
		}
		h.ServeHTTP(w, r)
	}))
}
