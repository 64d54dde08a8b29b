package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"folio/internal/gate"
	"folio/internal/identity"
	"folio/internal/mail"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/render"
	"folio/internal/session"
)

// SessionManager creates and ends sessions. *session.Store implements it.
type SessionManager interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Auth groups the registration, sign-in, email verification and 2FA
// handlers.
type Auth struct {
	renderer *render.Renderer
	accounts *identity.Service
	users    middleware.UserFinder
	sessions SessionManager
	mailer   mail.Dispatcher
	baseURL  string
}

// NewAuth creates a new Auth handler group. baseURL prefixes the links
// sent in verification emails.
func NewAuth(renderer *render.Renderer, accounts *identity.Service, users middleware.UserFinder, sessions SessionManager, mailer mail.Dispatcher, baseURL string) *Auth {
	return &Auth{
		renderer: renderer,
		accounts: accounts,
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		baseURL:  baseURL,
	}
}

// RegisterPage renders the sign-up form.
func (a *Auth) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	a.renderer.Page(w, r, "site/register", &render.PageData{Title: "Create an account"})
}

// RegisterSubmit creates an unverified account, emails the verification
// link and signs the new user in.
func (a *Auth) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	displayName := r.FormValue("display_name")

	user, token, err := a.accounts.Register(r.Context(), email, password, displayName)
	if err != nil {
		msg := registerError(err)
		if msg == "" {
			slog.Error("register failed", "error", err)
			msg = "An unexpected error occurred."
		}
		a.renderer.PageStatus(w, r, http.StatusUnprocessableEntity, "site/register", &render.PageData{
			Title: "Create an account",
			Data: map[string]any{
				"Error":       msg,
				"Email":       email,
				"DisplayName": displayName,
			},
		})
		return
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	if err := a.sendVerification(r.Context(), user, token); err != nil {
		slog.Error("verification email dispatch failed", "error", err, "user_id", user.ID)
	}

	if !a.startSession(w, r, user, false) {
		return
	}
	http.Redirect(w, r, gate.VerifyPendingPath, http.StatusSeeOther)
}

// registerError maps validation failures to form messages. Unknown errors
// return "".
func registerError(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		return "Please enter a valid email address."
	case errors.Is(err, identity.ErrWeakPassword):
		return "Password must be 8 to 72 characters."
	case errors.Is(err, identity.ErrInvalidName):
		return "Display name must be 1 to 80 characters."
	case errors.Is(err, identity.ErrEmailTaken):
		return "An account with this email already exists."
	}
	return ""
}

// LoginPage renders the login form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := gate.SafeNext(r.URL.Query().Get("next"))
	if signedIn(r) {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "site/login", &render.PageData{
		Title: "Sign In",
		Data:  map[string]any{"Next": next},
	})
}

// LoginSubmit processes the login form. Accounts with 2FA get a session
// that still waits for the TOTP code; unverified accounts are signed in
// and sent to the verification notice.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	next := gate.SafeNext(r.FormValue("next"))

	user, err := a.accounts.Authenticate(r.Context(), email, password)
	if err != nil {
		msg := "Invalid email or password."
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			slog.Error("login lookup failed", "error", err)
			msg = "An unexpected error occurred."
		}
		a.renderer.PageStatus(w, r, http.StatusUnauthorized, "site/login", &render.PageData{
			Title: "Sign In",
			Data:  map[string]any{"Error": msg, "Email": email, "Next": next},
		})
		return
	}

	pending := user.Needs2FA()
	if !a.startSession(w, r, user, pending) {
		return
	}
	slog.Info("user signed in", "user_id", user.ID, "totp_pending", pending)

	switch {
	case pending:
		http.Redirect(w, r, gate.TwoFactorPath+"?next="+url.QueryEscape(next), http.StatusSeeOther)
	case !user.EmailVerified:
		http.Redirect(w, r, gate.VerifyPendingPath, http.StatusSeeOther)
	default:
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

// Logout destroys the session and returns to the home page.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Verify consumes an emailed verification link.
func (a *Auth) Verify(w http.ResponseWriter, r *http.Request) {
	user, err := a.accounts.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidToken) {
			slog.Error("email verification failed", "error", err)
		}
		a.renderer.PageStatus(w, r, http.StatusBadRequest, "site/verify_result", &render.PageData{
			Title: "Verification failed",
			Data:  map[string]any{"Error": "This link is invalid or has expired."},
		})
		return
	}

	// Refresh the current session if it belongs to the verified account.
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil && sess.UserID == user.ID && !sess.EmailVerified {
		sess.EmailVerified = true
		if err := a.sessions.Update(r.Context(), r, sess); err != nil {
			slog.Warn("session update after verification failed", "error", err)
		}
	}

	slog.Info("email verified", "user_id", user.ID)
	a.renderer.Page(w, r, "site/verify_result", &render.PageData{Title: "Email verified"})
}

// VerifyPendingPage tells an unverified user to check their inbox.
func (a *Auth) VerifyPendingPage(w http.ResponseWriter, r *http.Request) {
	if middleware.StateFromCtx(r.Context()) >= gate.VerifiedUser {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	a.renderer.Page(w, r, "site/verify_pending", &render.PageData{Title: "Verify your email"})
}

// VerifyPendingResend emails a fresh verification link.
func (a *Auth) VerifyPendingResend(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.EmailVerified {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := map[string]any{"Sent": true}
	token, err := a.accounts.ResendToken(user)
	if err == nil {
		err = a.sendVerification(r.Context(), user, token)
	}
	if err != nil {
		slog.Error("resend verification failed", "error", err, "user_id", user.ID)
		data = map[string]any{"Error": "The link could not be sent. Please try again later."}
	}

	a.renderer.Page(w, r, "site/verify_pending", &render.PageData{
		Title: "Verify your email",
		Data:  data,
	})
}

// TwoFAPage renders the TOTP prompt for a session waiting for its code.
func (a *Auth) TwoFAPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil || !sess.TwoFAPending {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "site/2fa_verify", &render.PageData{
		Title: "Two-Factor Authentication",
		Data:  map[string]any{"Next": gate.SafeNext(r.URL.Query().Get("next"))},
	})
}

// TwoFASubmit validates the TOTP code and completes sign-in.
func (a *Auth) TwoFASubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil || !sess.TwoFAPending {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}
	next := gate.SafeNext(r.FormValue("next"))

	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		if err != nil {
			slog.Error("user lookup for 2fa failed", "error", err)
		}
		a.sessions.Destroy(r.Context(), w, r)
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	if err := a.accounts.CheckTOTP(user, r.FormValue("code")); err != nil {
		slog.Warn("invalid totp code", "user_id", user.ID)
		a.renderer.PageStatus(w, r, http.StatusUnauthorized, "site/2fa_verify", &render.PageData{
			Title: "Two-Factor Authentication",
			Data:  map[string]any{"Error": "Invalid code. Please try again.", "Next": next},
		})
		return
	}

	sess.TwoFAPending = false
	sess.EmailVerified = user.EmailVerified
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if !user.EmailVerified {
		next = gate.VerifyPendingPath
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// TwoFASetupPage generates a TOTP secret and displays the QR code.
func (a *Auth) TwoFASetupPage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.Needs2FA() {
		a.renderer.Page(w, r, "site/2fa_setup", &render.PageData{
			Title: "Two-Factor Authentication",
			Data:  map[string]any{"Enabled": true},
		})
		return
	}

	enr, err := a.accounts.BeginTOTP(r.Context(), user)
	if err != nil {
		slog.Error("totp enrollment failed", "error", err, "user_id", user.ID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	a.renderer.Page(w, r, "site/2fa_setup", &render.PageData{
		Title: "Set Up Two-Factor Authentication",
		Data:  enrollmentData(enr),
	})
}

// TwoFASetupSubmit enables 2FA once the first code checks out.
func (a *Auth) TwoFASetupSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.Needs2FA() {
		http.Redirect(w, r, "/account/2fa/setup", http.StatusSeeOther)
		return
	}

	if err := a.accounts.ConfirmTOTP(r.Context(), user, r.FormValue("code")); err != nil {
		if !errors.Is(err, identity.ErrInvalidCode) {
			slog.Error("enable totp failed", "error", err, "user_id", user.ID)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		enr, perr := a.accounts.PendingTOTP(user)
		if perr != nil {
			// No secret stored yet; start over.
			http.Redirect(w, r, "/account/2fa/setup", http.StatusSeeOther)
			return
		}
		data := enrollmentData(enr)
		data["Error"] = "Invalid code. Please try again."
		a.renderer.PageStatus(w, r, http.StatusUnprocessableEntity, "site/2fa_setup", &render.PageData{
			Title: "Set Up Two-Factor Authentication",
			Data:  data,
		})
		return
	}

	slog.Info("totp enabled", "user_id", user.ID)
	a.renderer.Page(w, r, "site/2fa_setup", &render.PageData{
		Title: "Two-Factor Authentication",
		Data:  map[string]any{"Enabled": true},
	})
}

// enrollmentData exposes the QR code as a data URI for the setup page.
func enrollmentData(enr *identity.TOTPEnrollment) map[string]any {
	return map[string]any{
		"QRCode": template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(enr.QRCode)),
		"Secret": enr.Secret,
	}
}

// currentUser reloads the signed-in account. A missing account ends the
// session and redirects to the login page.
func (a *Auth) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return nil, false
	}

	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		slog.Error("user lookup failed", "error", err, "user_id", sess.UserID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if user == nil {
		a.sessions.Destroy(r.Context(), w, r)
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// startSession creates the session cookie for user. It writes a 500 and
// returns false on failure.
func (a *Auth) startSession(w http.ResponseWriter, r *http.Request, user *models.User, pending bool) bool {
	_, err := a.sessions.Create(r.Context(), w, &session.Data{
		UserID:        user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.AvatarURL,
		EmailVerified: user.EmailVerified,
		TwoFAPending:  pending,
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

func (a *Auth) sendVerification(ctx context.Context, user *models.User, token string) error {
	link := strings.TrimRight(a.baseURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
	return a.mailer.Dispatch(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateVerify,
		Data:     map[string]string{"Name": user.DisplayName, "Link": link},
	})
}

// signedIn reports whether the request carries a completed session.
func signedIn(r *http.Request) bool {
	sess := middleware.SessionFromCtx(r.Context())
	return sess != nil && !sess.TwoFAPending
}
