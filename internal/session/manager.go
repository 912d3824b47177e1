// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

// Defaults for Config.
const (
	DefaultCookieName = "sid"
	DefaultLifetime   = 24 * time.Hour

	// MinSecretLength is the minimum accepted signing secret, in bytes.
	MinSecretLength = 32
)

// Config configures a Manager.
type Config struct {
	// Secret signs the cookie value. At least MinSecretLength bytes.
	Secret []byte
	// Lifetime is the absolute lifetime of a session.
	Lifetime time.Duration
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// Secure sets the cookie's Secure attribute. Enabled outside development.
	Secure bool
}

// Manager loads the session for each request, exposes it through the request
// context and commits changes before the response is written.
type Manager struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(store Store, cfg Config, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("session store is required")
	}
	if logger == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("logger is required")
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("SESSION_INVALID_CONFIG").
			With("min_length", MinSecretLength).
			Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Manager{store: store, cfg: cfg, logger: logger}, nil
}

type contextKey struct{}

// FromContext returns the session attached by LoadAndSave, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// NewContext attaches s to ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// LoadAndSave is middleware that loads the request's session and commits it
// after next returns. The response is buffered so the session cookie can
// still be set and a failed commit never leaves a half-sent success page.
func (m *Manager) LoadAndSave(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Cookie")

		sess, err := m.Load(r.Context(), r)
		if err != nil {
			errutil.LogErrorContext(r.Context(), m.logger, "session load failed", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		bw := &bufferedResponseWriter{ResponseWriter: w}
		next.ServeHTTP(bw, r.WithContext(NewContext(r.Context(), sess)))

		if err := m.Commit(r.Context(), w, sess); err != nil {
			errutil.LogErrorContext(r.Context(), m.logger, "session commit failed", err)
			w.Header().Del("Location")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if bw.code != 0 {
			w.WriteHeader(bw.code)
		}
		_, _ = w.Write(bw.buf.Bytes()) //nolint:errcheck // client went away
	})
}

// Load returns the session named by the request cookie, or a new anonymous
// session when the cookie is missing, forged or refers to an expired or
// unknown session.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return newSession(m.cfg.Lifetime), nil
	}
	id, err := m.VerifyCookie(cookie.Value)
	if err != nil {
		m.logger.DebugContext(ctx, "ignoring session cookie", "reason", err.Error())
		return newSession(m.cfg.Lifetime), nil
	}

	payload, expiry, found, err := m.store.Find(ctx, id)
	if err != nil {
		return nil, oops.Code("SESSION_LOAD_FAILED").With("operation", "find session").Wrap(err)
	}
	if !found {
		return newSession(m.cfg.Lifetime), nil
	}

	sess, err := loadSession(id, payload, expiry, m.cfg.Lifetime)
	if err != nil {
		// An undecodable row is dropped rather than failing every request
		// that presents its cookie.
		m.logger.WarnContext(ctx, "discarding corrupt session", "error", err)
		fresh := newSession(m.cfg.Lifetime)
		fresh.obsolete = append(fresh.obsolete, id)
		return fresh, nil
	}
	return sess, nil
}

// Commit persists the session's changes and sets or expires the cookie on w.
// An unmodified session touches neither the store nor the cookie.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, old := range sess.obsolete {
		if err := m.store.Delete(ctx, old); err != nil {
			return oops.Code("SESSION_COMMIT_FAILED").With("operation", "delete obsolete session").Wrap(err)
		}
	}
	sess.obsolete = nil

	switch sess.status {
	case Unmodified:
		return nil
	case Destroyed:
		http.SetCookie(w, m.expiredCookie())
		return nil
	}

	payload, err := sess.encode()
	if err != nil {
		return err
	}
	if sess.id == "" {
		if sess.id, err = newID(); err != nil {
			return err
		}
	}
	if err := m.store.Commit(ctx, sess.id, payload, sess.expiry); err != nil {
		return oops.Code("SESSION_COMMIT_FAILED").With("operation", "commit session").Wrap(err)
	}
	http.SetCookie(w, m.cookie(sess.id, sess.expiry))
	sess.status = Unmodified
	return nil
}

func (m *Manager) cookie(id string, expiry time.Time) *http.Cookie {
	maxAge := int(time.Until(expiry).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    m.SignCookie(id),
		Path:     "/",
		Expires:  expiry.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(1, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SignCookie returns "<id>.<signature>", the signature being the unpadded
// base64url HMAC-SHA256 of id under the manager's secret.
func (m *Manager) SignCookie(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(m.mac(id))
}

// VerifyCookie returns the session id carried by a signed cookie value.
func (m *Manager) VerifyCookie(value string) (string, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || !validID(id) {
		return "", ErrInvalidCookie
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidCookie
	}
	if !hmac.Equal(got, m.mac(id)) {
		return "", ErrInvalidCookie
	}
	return id, nil
}

func (m *Manager) mac(id string) []byte {
	h := hmac.New(sha256.New, m.cfg.Secret)
	h.Write([]byte(id))
	return h.Sum(nil)
}

func validID(id string) bool {
	if len(id) != hex.EncodedLen(IDBytes) {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// bufferedResponseWriter holds the handler's status and body until the
// session has been committed.
type bufferedResponseWriter struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (bw *bufferedResponseWriter) Write(b []byte) (int, error) {
	return bw.buf.Write(b)
}

func (bw *bufferedResponseWriter) WriteHeader(code int) {
	if bw.code == 0 {
		bw.code = code
	}
}

func (bw *bufferedResponseWriter) Unwrap() http.ResponseWriter {
	return bw.ResponseWriter
}
