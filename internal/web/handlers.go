// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	"github.com/randiU/cse340-practice-umphrey/internal/observability"
	"github.com/randiU/cse340-practice-umphrey/internal/session"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

// User-visible messages.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgDuplicateEmail     = "An account with that email already exists"
	msgGeneric            = "Something went wrong, please try again"
	msgRegistered         = "Registration successful! Please log in."
	msgLoggedOut          = "You have been logged out."
	msgUserDeleted        = "User deleted."
	msgUserNotFound       = "That user no longer exists."
)

// maxFormBytes bounds form submissions.
const maxFormBytes = 64 << 10

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// currentSession returns the request's session. LoadAndSave always attaches
// one; a missing session means the handler was mounted outside it.
func currentSession(r *http.Request) *session.Session {
	sess := session.FromContext(r.Context())
	if sess == nil {
		panic("web: handler mounted outside session middleware")
	}
	return sess
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.logger.InfoContext(r.Context(), "rejected form", "error", err)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.AuthenticatedUserID(currentSession(r)); ok {
		redirect(w, r, "/dashboard")
		return
	}
	redirect(w, r, "/login")
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.AuthenticatedUserID(currentSession(r)); ok {
		redirect(w, r, "/dashboard")
		return
	}
	s.render(w, r, http.StatusOK, "login", view{Title: "Log in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	sess := currentSession(r)

	grant, err := s.logins.Login(r.Context(), sess, r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.LoginAttempts.WithLabelValues(observability.OutcomeInvalidCredentials).Inc()
			sess.AddFlash(session.FlashError, msgInvalidCredentials)
		} else {
			s.metrics.LoginAttempts.WithLabelValues(observability.OutcomeError).Inc()
			errutil.LogErrorContext(r.Context(), s.logger, "login failed", err)
			sess.AddFlash(session.FlashError, msgGeneric)
		}
		redirect(w, r, "/login")
		return
	}

	s.metrics.LoginAttempts.WithLabelValues(observability.OutcomeSuccess).Inc()
	sess.AddFlash(session.FlashSuccess, "Welcome back, "+grant.Name+"!")
	redirect(w, r, "/dashboard")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	s.logins.Logout(r.Context(), sess)
	sess.AddFlash(session.FlashInfo, msgLoggedOut)
	redirect(w, r, "/login")
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	user, err := s.logins.CurrentUser(r.Context(), sess)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			// The account was deleted while this session was live.
			s.logins.Logout(r.Context(), sess)
			redirect(w, r, "/login")
			return
		}
		errutil.LogErrorContext(r.Context(), s.logger, "dashboard lookup failed", err)
		s.renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	s.render(w, r, http.StatusOK, "dashboard", view{Title: "Dashboard", User: user})
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", view{Title: "User Registration"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	sess := currentSession(r)
	f := r.PostForm

	_, err := s.registrations.Register(r.Context(), auth.RegistrationInput{
		Name:            f.Get("name"),
		Phone:           f.Get("phone"),
		Address:         f.Get("address"),
		Email:           f.Get("email"),
		EmailConfirm:    f.Get("emailConfirm"),
		Password:        f.Get("password"),
		PasswordConfirm: f.Get("passwordConfirm"),
	})

	var verr *auth.ValidationError
	switch {
	case err == nil:
		s.metrics.Registrations.WithLabelValues(observability.OutcomeSuccess).Inc()
		sess.AddFlash(session.FlashSuccess, msgRegistered)
		redirect(w, r, "/login")
	case errors.As(err, &verr):
		s.metrics.Registrations.WithLabelValues(observability.OutcomeInvalid).Inc()
		for _, fe := range verr.Fields {
			sess.AddFlash(session.FlashError, fe.Message)
		}
		redirect(w, r, "/register")
	case errors.Is(err, auth.ErrDuplicateEmail):
		s.metrics.Registrations.WithLabelValues(observability.OutcomeDuplicate).Inc()
		sess.AddFlash(session.FlashError, msgDuplicateEmail)
		redirect(w, r, "/register")
	default:
		s.metrics.Registrations.WithLabelValues(observability.OutcomeError).Inc()
		errutil.LogErrorContext(r.Context(), s.logger, "registration failed", err)
		sess.AddFlash(session.FlashError, msgGeneric)
		redirect(w, r, "/register")
	}
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := s.registrations.List(r.Context())
	if err != nil {
		errutil.LogErrorContext(r.Context(), s.logger, "listing users failed", err)
		s.render(w, r, http.StatusInternalServerError, "users", view{
			Title:   "Registered Users",
			Flashes: []session.Flash{{Kind: session.FlashError, Message: msgGeneric}},
		})
		return
	}
	s.render(w, r, http.StatusOK, "users", view{Title: "Registered Users", Users: users})
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		sess.AddFlash(session.FlashError, msgUserNotFound)
		redirect(w, r, "/register/list")
		return
	}

	switch err := s.registrations.Delete(r.Context(), id); {
	case err == nil:
		sess.AddFlash(session.FlashSuccess, msgUserDeleted)
	case errors.Is(err, auth.ErrNotFound):
		sess.AddFlash(session.FlashError, msgUserNotFound)
	default:
		errutil.LogErrorContext(r.Context(), s.logger, "deleting user failed", err)
		sess.AddFlash(session.FlashError, msgGeneric)
	}
	redirect(w, r, "/register/list")
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	count := s.metrics.DemoRequests.Inc()
	s.render(w, r, http.StatusOK, "demo", view{Title: "Middleware Demo", Count: count})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "")
}
