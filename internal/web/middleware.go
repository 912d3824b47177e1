// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	"github.com/randiU/cse340-practice-umphrey/internal/logging"
	"github.com/randiU/cse340-practice-umphrey/internal/session"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

// requestInfo is filled in while a request travels down the chain and read
// back by requestLog once it returns.
type requestInfo struct {
	route string
}

type requestInfoKey struct{}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// statusRecorder captures the status code written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// requestLog tags the request with a ULID, logs its outcome and records it
// in the HTTP metrics.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ulid.Make().String()
		info := &requestInfo{}

		ctx := logging.WithRequestID(r.Context(), id)
		ctx = context.WithValue(ctx, requestInfoKey{}, info)
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, info.route, status, elapsed)
		s.logger.InfoContext(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", info.route,
			"status", status,
			"duration", elapsed,
		)
	})
}

// recoverer turns a handler panic into a generic 500 page. It runs inside
// the session middleware so session changes made before the panic are still
// committed.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			stack := string(debug.Stack())
			err := oops.Code("WEB_PANIC").With("path", r.URL.Path).Errorf("panic: %v", rec)
			errutil.LogErrorContext(r.Context(), s.logger, "handler panicked", err)
			s.renderError(w, r, http.StatusInternalServerError, fmt.Sprintf("%v\n\n%s", rec, stack))
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders forbids framing and MIME sniffing.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Content-Security-Policy", "frame-ancestors 'self'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// requireAuth admits requests whose session carries an authenticated user
// and redirects everything else to the login page without calling next.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if _, ok := auth.AuthenticatedUserID(sess); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// demoHeaders marks responses from the demo page.
func demoHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Demo-Page", "true")
		w.Header().Set("X-Middleware-Demo", "request counted by injected counter")
		next.ServeHTTP(w, r)
	})
}
