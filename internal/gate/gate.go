// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package gate decides whether a visitor may see a route. It is a pure
// state machine: the middleware package feeds it the session identity and
// acts on the returned decision before any handler writes a response.
package gate

import (
	"net/url"

	"github.com/google/uuid"
)

// State is the visitor's position in the access state machine.
type State int

const (
	Unauthenticated State = iota
	Unverified
	VerifiedUser
	VerifiedAdmin
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Unverified:
		return "authenticated-unverified"
	case VerifiedUser:
		return "authenticated-verified-user"
	case VerifiedAdmin:
		return "authenticated-verified-admin"
	}
	return "unknown"
}

// RouteKind classifies what a route requires.
type RouteKind int

const (
	// Public routes are open to everyone.
	Public RouteKind = iota
	// Protected routes need a signed-in, verified account.
	Protected
	// VerifyPending is the screen shown to unverified accounts.
	VerifyPending
	// Admin routes need the configured admin identity.
	Admin
)

// Redirect targets.
const (
	LoginPath         = "/auth/login"
	VerifyPendingPath = "/auth/verify-pending"
	AccessDeniedPath  = "/access-denied"
	TwoFactorPath     = "/auth/2fa"
)

// Identity is what the session knows about the signed-in visitor.
type Identity struct {
	UserID        uuid.UUID
	Email         string
	EmailVerified bool
	// TwoFAPending is set between password check and TOTP verification.
	TwoFAPending bool
}

// AdminIdentity is the single configured administrator. Either field may
// be empty; a visitor is the admin if any non-empty field matches exactly.
type AdminIdentity struct {
	UserID uuid.UUID
	Email  string
}

// Matches reports whether id is the admin.
func (a AdminIdentity) Matches(id Identity) bool {
	if a.UserID != uuid.Nil && id.UserID == a.UserID {
		return true
	}
	return a.Email != "" && id.Email == a.Email
}

// Classify maps a session identity to a state. A nil identity, or one still
// waiting for its TOTP code, is unauthenticated.
func Classify(id *Identity, admin AdminIdentity) State {
	switch {
	case id == nil || id.UserID == uuid.Nil || id.TwoFAPending:
		return Unauthenticated
	case !id.EmailVerified:
		return Unverified
	case admin.Matches(*id):
		return VerifiedAdmin
	default:
		return VerifiedUser
	}
}

// Decision is the outcome of Decide. An empty RedirectTo means allow.
type Decision struct {
	RedirectTo string
}

// Allowed reports whether the route may be served.
func (d Decision) Allowed() bool {
	return d.RedirectTo == ""
}

var allow = Decision{}

// Decide applies the transition table for a visitor in state s requesting
// a route of kind k. requestURI is carried to the login page as ?next=.
func Decide(s State, k RouteKind, requestURI string) Decision {
	if k == Public {
		return allow
	}

	switch s {
	case Unauthenticated:
		return Decision{RedirectTo: LoginPath + "?next=" + url.QueryEscape(SafeNext(requestURI))}
	case Unverified:
		if k == VerifyPending {
			return allow
		}
		return Decision{RedirectTo: VerifyPendingPath}
	case VerifiedUser:
		if k == Admin {
			return Decision{RedirectTo: AccessDeniedPath}
		}
		return allow
	case VerifiedAdmin:
		return allow
	}
	return Decision{RedirectTo: LoginPath}
}

// SafeNext keeps only local absolute paths so a ?next= value cannot point
// at another host.
func SafeNext(uri string) string {
	if len(uri) == 0 || uri[0] != '/' || (len(uri) > 1 && (uri[1] == '/' || uri[1] == '\\')) {
		return "/"
	}
	return uri
}
