// Package auth resolves the calling user from a bearer JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	applog "lifedash/internal/log"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// HeaderUserID names the caller when no signing secret is configured.
const HeaderUserID = "X-User-ID"

var (
	ErrMissingToken  = errors.New("missing auth token")
	ErrInvalidToken  = errors.New("invalid auth token")
	ErrMissingUserID = errors.New("user id missing")
)

// Authenticator validates HS256 tokens whose subject is the user id. With an
// empty secret it trusts the X-User-ID header instead, for local use.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Authenticator)

// WithClock overrides the clock used for expiry checks and issued tokens.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func New(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enforced reports whether tokens are required.
func (a *Authenticator) Enforced() bool {
	return len(a.secret) > 0
}

// Issue signs a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if !a.Enforced() {
		return "", errors.New("no signing secret configured")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate extracts the user id from r.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	if !a.Enforced() {
		uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if uid == "" {
			return "", ErrMissingUserID
		}
		return uid, nil
	}

	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", ErrMissingToken
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrMissingUserID
	}
	return claims.Subject, nil
}

// Middleware rejects unauthenticated requests via onFail and stores the user
// id in the context otherwise.
func (a *Authenticator) Middleware(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if onFail == nil {
		onFail = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := a.Authenticate(r)
			if err != nil {
				applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(),
					"Authentication failed", applog.FieldPath, r.URL.Path, applog.FieldError, err)
				onFail(w, r, err)
				return
			}
			ctx := WithUserID(r.Context(), uid)
			logger := applog.FromContext(ctx).With(applog.FieldUserID, uid)
			next.ServeHTTP(w, r.WithContext(applog.NewContext(ctx, logger)))
		})
	}
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", errors.New("user not authenticated")
	}
	return uid, nil
}
