// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"folio/internal/gate"
	"folio/internal/models"
	"folio/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// SessionKey is the context key for the session data.
	SessionKey contextKey = "session"

	// stateKey is the context key for the gate state computed by Require.
	stateKey contextKey = "gate_state"
)

// SessionGetter reads the session for a request. *session.Store implements it.
type SessionGetter interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
}

// SessionUpdater persists a changed session. *session.Store implements it.
type SessionUpdater interface {
	Update(ctx context.Context, r *http.Request, data *session.Data) error
}

// UserFinder reloads accounts. *store.UserStore implements it.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// LoadSession retrieves the session from Valkey and stores it in the
// request context. Downstream handlers can access it via SessionFromCtx().
// This middleware does NOT enforce anything; Gate.Require does.
func LoadSession(store SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("session load failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if data != nil {
				r = r.WithContext(WithSession(r.Context(), data))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns ctx carrying data, as LoadSession would.
func WithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, SessionKey, data)
}

// SessionFromCtx extracts the session data from the request context.
// Returns nil if no session is loaded (user is not authenticated).
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}

// StateFromCtx returns the gate state recorded by Require, or
// Unauthenticated for routes that were not gated.
func StateFromCtx(ctx context.Context) gate.State {
	s, ok := ctx.Value(stateKey).(gate.State)
	if !ok {
		return gate.Unauthenticated
	}
	return s
}

// Gate enforces the access state machine on route groups.
type Gate struct {
	admin    gate.AdminIdentity
	users    UserFinder
	sessions SessionUpdater
}

// NewGate creates the gate middleware factory.
func NewGate(admin gate.AdminIdentity, users UserFinder, sessions SessionUpdater) *Gate {
	return &Gate{admin: admin, users: users, sessions: sessions}
}

// Admin returns the configured admin identity.
func (g *Gate) Admin() gate.AdminIdentity {
	return g.admin
}

// Require redirects visitors whose state does not permit routes of kind.
// The decision is made before next runs, so nothing from a denied route
// reaches the client.
func (g *Gate) Require(kind gate.RouteKind) func(http.Handler) http.Handler {
	return g.require(kind, func(w http.ResponseWriter, r *http.Request, _ gate.State, d gate.Decision) {
		http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
	})
}

// RequireJSON is Require for API routes: denials are answered with 401 or
// 403 and a JSON body naming the redirect instead of a redirect.
func (g *Gate) RequireJSON(kind gate.RouteKind) func(http.Handler) http.Handler {
	return g.require(kind, func(w http.ResponseWriter, _ *http.Request, s gate.State, d gate.Decision) {
		status := http.StatusForbidden
		if s == gate.Unauthenticated {
			status = http.StatusUnauthorized
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{
			"error":    http.StatusText(status),
			"redirect": d.RedirectTo,
		})
	})
}

type denyFunc func(w http.ResponseWriter, r *http.Request, s gate.State, d gate.Decision)

func (g *Gate) require(kind gate.RouteKind, deny denyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromCtx(r.Context())

			if sess != nil && sess.TwoFAPending && kind != gate.Public {
				deny(w, r, gate.Unauthenticated, gate.Decision{RedirectTo: gate.TwoFactorPath})
				return
			}

			if sess != nil && !sess.EmailVerified && kind != gate.Public {
				sess = g.refresh(r, sess)
				r = r.WithContext(WithSession(r.Context(), sess))
			}

			state := gate.Classify(sess.Identity(), g.admin)
			d := gate.Decide(state, kind, r.URL.RequestURI())
			if !d.Allowed() {
				deny(w, r, state, d)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateKey, state)))
		})
	}
}

// refresh reloads the verified flag for an unverified session, since
// verification happens out of band. A deleted account yields nil.
func (g *Gate) refresh(r *http.Request, sess *session.Data) *session.Data {
	user, err := g.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		slog.Error("gate user reload failed", "error", err, "user_id", sess.UserID)
		return sess
	}
	if user == nil {
		return nil
	}
	if !user.EmailVerified {
		return sess
	}

	updated := *sess
	updated.EmailVerified = true
	if err := g.sessions.Update(r.Context(), r, &updated); err != nil {
		slog.Warn("session update after verification failed", "error", err)
	}
	return &updated
}
