// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	"github.com/randiU/cse340-practice-umphrey/internal/session"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pages = []string{"login", "dashboard", "register", "users", "demo", "error"}

// view is the data every page template receives.
type view struct {
	Title         string
	Flashes       []session.Flash
	Authenticated bool
	Development   bool
	Year          int

	User    *auth.UserPublic
	Users   []auth.UserPublic
	Count   int64
	Message string
	Detail  string
}

// parseTemplates parses each page together with the shared layout.
func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.ParseFS(templateFiles, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, oops.Code("WEB_TEMPLATE_PARSE_FAILED").With("page", page).Wrap(err)
		}
		out[page] = t
	}
	return out, nil
}

// render executes page into a buffer first so a template error never leaves
// a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	sess := session.FromContext(r.Context())
	if sess != nil {
		v.Flashes = append(sess.Flashes(), v.Flashes...)
		_, v.Authenticated = auth.AuthenticatedUserID(sess)
	}
	v.Development = s.dev
	v.Year = time.Now().Year()

	var buf bytes.Buffer
	if err := s.templates[page].ExecuteTemplate(&buf, "layout", v); err != nil {
		errutil.LogErrorContext(r.Context(), s.logger, "render failed",
			oops.Code("WEB_RENDER_FAILED").With("page", page).Wrap(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w) //nolint:errcheck // client went away
}

// renderError shows the generic error page. detail is only rendered in
// development.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	v := view{Title: http.StatusText(status), Message: msgGeneric}
	if status == http.StatusNotFound {
		v.Message = "The page you requested does not exist."
	}
	if s.dev {
		v.Detail = detail
	}
	s.render(w, r, status, "error", v)
}
