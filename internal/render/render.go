// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the public site and
// the admin panel. Each page is paired with its section's base layout;
// admin pages also support HTMX partial rendering, detected via the
// HX-Request header.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"folio/internal/gate"
	"folio/internal/middleware"
	"folio/internal/session"
)

//go:embed templates/site/*.html templates/admin/*.html
var templateFS embed.FS

// layouts are the template directories; each has a base.html.
var layouts = []string{"site", "admin"}

// PageData holds all data passed to templates.
type PageData struct {
	Title       string         // Page title for <title> tag
	Description string         // Meta description
	Section     string         // Active navigation section (e.g., "blog", "posts")
	Session     *session.Data  // Current user session (nil if unauthenticated)
	IsAdmin     bool           // Session matches the configured admin
	CSRFToken   string         // CSRF token for forms and script headers
	Data        map[string]any // Page-specific data
	Flashes     []Flash        // One-time notification messages
}

// Flash represents a one-time notification message displayed to the user.
type Flash struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

// Renderer handles template parsing and execution.
type Renderer struct {
	templates map[string]*template.Template
	admin     gate.AdminIdentity
}

// New parses every page template from the embedded filesystem, keyed as
// "<layout>/<page>" (e.g. "site/post", "admin/posts"). When devMode is
// true, layouts load assets from CDNs; otherwise they reference the files
// served at /static/.
func New(devMode bool, admin gate.AdminIdentity) (*Renderer, error) {
	funcMap := template.FuncMap{
		// isDev returns true when the app runs in development mode.
		"isDev": func() bool { return devMode },
		// deref safely dereferences a string pointer.
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"isoDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"activeClass": func(current, target string) string {
			if current == target {
				return "active"
			}
			return ""
		},
		"initial": func(name string) string {
			name = strings.TrimSpace(name)
			if name == "" {
				return "?"
			}
			return strings.ToUpper(string([]rune(name)[:1]))
		},
	}

	r := &Renderer{templates: make(map[string]*template.Template), admin: admin}

	for _, layout := range layouts {
		dir := "templates/" + layout
		entries, err := fs.ReadDir(templateFS, dir)
		if err != nil {
			return nil, fmt.Errorf("read embedded templates: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || name == "base.html" || !strings.HasSuffix(name, ".html") {
				continue
			}
			tmpl, err := template.New("base.html").Funcs(funcMap).ParseFS(
				templateFS, dir+"/base.html", dir+"/"+name,
			)
			if err != nil {
				return nil, fmt.Errorf("parse template %s/%s: %w", layout, name, err)
			}
			r.templates[layout+"/"+strings.TrimSuffix(name, ".html")] = tmpl
		}
	}

	return r, nil
}

// Has reports whether a page template exists.
func (rn *Renderer) Has(name string) bool {
	_, ok := rn.templates[name]
	return ok
}

// Page renders a page with status 200.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	rn.PageStatus(w, r, http.StatusOK, name, data)
}

// PageStatus renders a full page, or only its "content" block for HTMX
// requests. Output is buffered so a template error never leaves a
// half-written page behind.
func (rn *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = &PageData{}
	}
	if data.Data == nil {
		data.Data = map[string]any{}
	}

	// Inject CSRF token from context (set by CSRF middleware).
	data.CSRFToken = middleware.CSRFTokenFromCtx(r.Context())

	// Inject session from context.
	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(r.Context())
	}
	data.IsAdmin = gate.Classify(data.Session.Identity(), rn.admin) == gate.VerifiedAdmin

	execName := "base.html"
	if isHTMX(r) {
		execName = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, execName, data); err != nil {
		slog.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// isHTMX returns true if the request was made by HTMX (has HX-Request header).
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
