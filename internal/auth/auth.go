// Package auth implements the admin panel's simulated login: a single
// configured account, signed session tokens, and session persistence in the
// local key-value store so that logout revokes a token before it expires.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nlstn/go-datagrid/internal/kvstore"
)

var (
	// ErrInvalidCredentials is returned by Login for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when a request carries no usable session.
	ErrUnauthenticated = errors.New("authentication required")
)

// DefaultIssuer is the token issuer when none is configured.
const DefaultIssuer = "go-datagrid"

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 12 * time.Hour

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "datagrid_session"

const sessionKeyPrefix = "session:"

// User describes the signed-in account.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// MockUser is the account presented after a successful login.
var MockUser = User{
	ID:     "1",
	Name:   "John Doe",
	Email:  "john.doe@example.com",
	Role:   "Admin",
	Avatar: "https://i.pravatar.cc/150?img=1",
}

// Config configures the authenticator.
type Config struct {
	// Email and Password are the only accepted credentials.
	Email    string
	Password string
	// User is the descriptor stored for the session.
	User User
	// Secret signs session tokens (HS256). Required.
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Session is an authenticated session.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticator checks credentials and issues, verifies and revokes sessions.
type Authenticator struct {
	cfg   Config
	store kvstore.Store
}

// New creates an authenticator persisting sessions in store.
func New(cfg Config, store kvstore.Store) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	if store == nil {
		return nil, fmt.Errorf("auth: session store is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("auth: credentials are required")
	}
	if cfg.User.ID == "" {
		cfg.User = MockUser
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Authenticator{cfg: cfg, store: store}, nil
}

// Login verifies the credentials and opens a session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(a.cfg.Email)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	if !emailOK || !passwordOK {
		return Session{}, ErrInvalidCredentials
	}

	now := a.cfg.Now()
	sess := Session{
		ID:        uuid.NewString(),
		User:      a.cfg.User,
		ExpiresAt: now.Add(a.cfg.TTL).Truncate(time.Second),
	}

	claims := jwt.RegisteredClaims{
		Issuer:    a.cfg.Issuer,
		Subject:   sess.User.ID,
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("auth: sign session token: %w", err)
	}
	sess.Token = token

	raw, err := json.Marshal(sess.User)
	if err != nil {
		return Session{}, fmt.Errorf("auth: encode session user: %w", err)
	}
	if err := a.store.Set(ctx, sessionKeyPrefix+sess.ID, string(raw)); err != nil {
		return Session{}, fmt.Errorf("auth: persist session: %w", err)
	}
	return sess, nil
}

// Authenticate verifies token and returns its live session.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := a.parse(token)
	if errors.Is(err, jwt.ErrTokenExpired) {
		a.revokeExpired(ctx, token)
	}
	if err != nil {
		return Session{}, err
	}

	raw, err := a.store.Get(ctx, sessionKeyPrefix+claims.ID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: session revoked", ErrUnauthenticated)
	}
	if err != nil {
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return Session{}, fmt.Errorf("auth: decode session user: %w", err)
	}
	return Session{
		ID:        claims.ID,
		Token:     token,
		User:      user,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session behind token. A token that no longer
// authenticates yields ErrUnauthenticated.
func (a *Authenticator) Logout(ctx context.Context, token string) (Session, error) {
	sess, err := a.Authenticate(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if err := a.Revoke(ctx, sess.ID); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Revoke removes the persisted session id. Revoking an unknown id is not an
// error.
func (a *Authenticator) Revoke(ctx context.Context, id string) error {
	if err := a.store.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	return nil
}

// revokeExpired deletes the stored session of an expired token once its
// signature has been verified.
func (a *Authenticator) revokeExpired(ctx context.Context, token string) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.ID == "" || claims.Issuer != a.cfg.Issuer {
		return
	}
	_ = a.Revoke(ctx, claims.ID) //nolint:errcheck
}

func (a *Authenticator) parse(token string) (*jwt.RegisteredClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.cfg.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no session id", ErrUnauthenticated)
	}
	return claims, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware rejects requests without a valid session by calling onError, and
// otherwise stores the session in the request context.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := a.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

type contextKey string

// SessionContextKey is the context key holding the authenticated Session.
const SessionContextKey contextKey = "datagrid_auth_session"

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, sess)
}

// SessionFromContext returns the session stored by Middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	sess, ok := ctx.Value(SessionContextKey).(Session)
	return sess, ok
}

// IsAuthenticated reports whether ctx carries a session.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := SessionFromContext(ctx)
	return ok
}
