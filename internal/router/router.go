// Package router sets up all HTTP routes and middleware chains for folio.
// Routes are grouped by the access gate route kind they require: public,
// verify-pending, protected and admin, plus the JSON API.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"folio/internal/gate"
	"folio/internal/handlers"
	"folio/internal/middleware"
	"folio/web"
)

// Options carries the settings the middleware stack needs.
type Options struct {
	// SecureCookies marks the CSRF cookie Secure and turns on HSTS (production).
	SecureCookies bool
	// CORSOrigins may call the JSON API from other origins. Empty sends no
	// CORS headers, leaving browsers at same-origin.
	CORSOrigins []string
	// FormLimiter throttles sign-in, sign-up, 2FA and contact submissions.
	// Nil disables throttling.
	FormLimiter *middleware.RateLimiter
}

// Handlers are the handler groups the router dispatches to.
type Handlers struct {
	Public *handlers.Public
	Auth   *handlers.Auth
	Admin  *handlers.Admin
	API    *handlers.API
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(sessions middleware.SessionGetter, g *middleware.Gate, h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.NewSecureHeaders(opts.SecureCookies))
	r.Use(middleware.LoadSession(sessions))

	// Health check and static assets: no gate, no CSRF.
	r.Get("/health", healthHandler)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles()))))

	limited := func(fn http.HandlerFunc) http.Handler {
		if opts.FormLimiter == nil {
			return fn
		}
		return opts.FormLimiter.Middleware(fn)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(opts.SecureCookies))

		// Public site and sign-in flows.
		r.Group(func(r chi.Router) {
			r.Use(g.Require(gate.Public))

			r.Get("/", h.Public.Home)
			r.Get("/about", h.Public.About)
			r.Get("/skills", h.Public.Skills)
			r.Get("/projects", h.Public.Projects)
			r.Get("/blog", h.Public.Blog)
			r.Get("/blog/{slug}", h.Public.Post)
			r.Get("/contact", h.Public.ContactPage)
			r.Method(http.MethodPost, "/contact", limited(h.Public.ContactSubmit))
			r.Get(gate.AccessDeniedPath, h.Public.AccessDenied)

			r.Get("/auth/register", h.Auth.RegisterPage)
			r.Method(http.MethodPost, "/auth/register", limited(h.Auth.RegisterSubmit))
			r.Get(gate.LoginPath, h.Auth.LoginPage)
			r.Method(http.MethodPost, gate.LoginPath, limited(h.Auth.LoginSubmit))
			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/auth/verify", h.Auth.Verify)
			r.Get(gate.TwoFactorPath, h.Auth.TwoFAPage)
			r.Method(http.MethodPost, gate.TwoFactorPath, limited(h.Auth.TwoFASubmit))
		})

		// Signed in, waiting for email verification.
		r.Group(func(r chi.Router) {
			r.Use(g.Require(gate.VerifyPending))
			r.Get(gate.VerifyPendingPath, h.Auth.VerifyPendingPage)
			r.Method(http.MethodPost, gate.VerifyPendingPath, limited(h.Auth.VerifyPendingResend))
		})

		// Verified accounts.
		r.Group(func(r chi.Router) {
			r.Use(g.Require(gate.Protected))
			r.Get("/account/2fa/setup", h.Auth.TwoFASetupPage)
			r.Post("/account/2fa/setup", h.Auth.TwoFASetupSubmit)
		})

		// Admin panel.
		r.Route("/admin", func(r chi.Router) {
			r.Use(g.Require(gate.Admin))

			r.Get("/", h.Admin.Dashboard)

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", h.Admin.PostsList)
				r.Get("/new", h.Admin.PostNew)
				r.Post("/", h.Admin.PostCreate)
				r.Get("/{id}/edit", h.Admin.PostEdit)
				r.Post("/{id}", h.Admin.PostUpdate)
				r.Delete("/{id}", h.Admin.PostDelete)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.Admin.ProjectsList)
				r.Get("/new", h.Admin.ProjectNew)
				r.Post("/", h.Admin.ProjectCreate)
				r.Get("/{id}/edit", h.Admin.ProjectEdit)
				r.Post("/{id}", h.Admin.ProjectUpdate)
				r.Delete("/{id}", h.Admin.ProjectDelete)
			})

			r.Route("/skills", func(r chi.Router) {
				r.Get("/", h.Admin.SkillsList)
				r.Get("/new", h.Admin.SkillNew)
				r.Post("/", h.Admin.SkillCreate)
				r.Get("/{id}/edit", h.Admin.SkillEdit)
				r.Post("/{id}", h.Admin.SkillUpdate)
				r.Delete("/{id}", h.Admin.SkillDelete)
			})

			r.Get("/settings", h.Admin.SettingsPage)
			r.Post("/settings/{section}", h.Admin.SettingsUpdate)

			r.Get("/moderation", h.Admin.Moderation)
			r.Get("/moderation/{postID}", h.Admin.ModerationPost)
			r.Delete("/comments/{id}", h.Admin.CommentDelete)

			r.Post("/uploads", h.Admin.Upload)
		})

		// JSON API behind the post page.
		r.Route("/api", func(r chi.Router) {
			// cors treats an empty origin list as "*", so it is only
			// installed when origins are configured.
			if len(opts.CORSOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   opts.CORSOrigins,
					AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
					AllowedHeaders:   []string{"Accept", "Content-Type", middleware.CSRFHeaderName},
					AllowCredentials: true,
					MaxAge:           300,
				}))
			}

			r.Group(func(r chi.Router) {
				r.Use(g.RequireJSON(gate.Public))
				r.Get("/posts/{id}/interactions", h.API.Interactions)
				r.Get("/posts/{id}/interactions/stream", h.API.Stream)
			})

			r.Group(func(r chi.Router) {
				r.Use(g.RequireJSON(gate.Protected))
				r.Post("/posts/{id}/like", h.API.Like)
				r.Post("/posts/{id}/comments", h.API.Comment)
				r.Delete("/comments/{id}", h.API.DeleteComment)
			})
		})
	})

	r.NotFound(h.Public.NotFound)

	return r
}

// staticFiles roots the embedded assets at web/static.
func staticFiles() fs.FS {
	sub, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		// "static" is a constant, valid path.
		panic(err)
	}
	return sub
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
