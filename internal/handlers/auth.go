package handlers

import (
	"context"
	"net/http"

	"github.com/nlstn/go-datagrid/internal/auth"
	"github.com/nlstn/go-datagrid/internal/notify"
	"github.com/nlstn/go-datagrid/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// Auth routes below /auth.
const (
	AuthLogin  = "login"
	AuthLogout = "logout"
	AuthMe     = "me"
)

// AuthHandler serves login, logout and the current session.
type AuthHandler struct {
	base
	auth     *auth.Authenticator
	notifier notify.Notifier
	onLogout func(ctx context.Context, sess auth.Session)
}

// NewAuthHandler creates an auth handler. onLogout, when set, runs after a
// session is revoked so its per-session state can be released.
func NewAuthHandler(a *auth.Authenticator, notifier notify.Notifier, onLogout func(context.Context, auth.Session)) *AuthHandler {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &AuthHandler{base: newBase(), auth: a, notifier: notifier, onLogout: onLogout}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IsPublic reports whether the request may be served without a session.
func IsPublic(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/auth/"+AuthLogin
}

// HandleCollection handles /auth, which has no representation.
func (h *AuthHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, h.logger, &Error{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: "Not found"})
}

// HandleEntity handles /auth/login, /auth/logout and /auth/me.
func (h *AuthHandler) HandleEntity(w http.ResponseWriter, r *http.Request, name string) {
	switch name {
	case AuthLogin:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, h.logger, "login", http.MethodPost)
			return
		}
		h.serve(w, r, observability.ResourceSession, observability.OpLogin, "", h.handleLogin)
	case AuthLogout:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, h.logger, "logout", http.MethodPost)
			return
		}
		h.serve(w, r, observability.ResourceSession, observability.OpLogout, "", h.handleLogout)
	case AuthMe:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, h.logger, "the session", http.MethodGet)
			return
		}
		h.serve(w, r, observability.ResourceSession, observability.OpRead, "", h.handleMe)
	default:
		h.HandleCollection(w, r)
	}
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.notifier.Notify(notify.LevelError, "Invalid email or password")
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	h.log(r.Context()).InfoContext(r.Context(), "session opened", observability.LogFieldSessionID, sess.ID)
	h.notifier.Notify(notify.LevelSuccess, "Login successful!")
	h.writeJSON(w, r, http.StatusOK, sess)
	return nil
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
	sess, err := h.auth.Logout(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		return err
	}
	if h.onLogout != nil {
		h.onLogout(r.Context(), sess)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.log(r.Context()).InfoContext(r.Context(), "session closed", observability.LogFieldSessionID, sess.ID)
	h.notifier.Notify(notify.LevelInfo, "You have been logged out")
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return auth.ErrUnauthenticated
	}
	sess.Token = ""
	h.writeJSON(w, r, http.StatusOK, sess)
	return nil
}
