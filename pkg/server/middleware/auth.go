package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/trace"

	"pennywise-hq/budgetd/pkg/telemetry/logging"
	"pennywise-hq/budgetd/pkg/telemetry/tracing"
)

// ErrMissingToken is returned when a request has no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// Claims are the JWT claims identifying a user.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

type identityKey struct{}

// IdentityFrom returns the caller stored by Authenticate.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = logging.WithUserID(ctx, id.UserID)
	return context.WithValue(ctx, identityKey{}, id)
}

// IssueToken signs an HS256 token for a user. A non-positive ttl defaults
// to 24 hours.
func IssueToken(secret, issuer, userID, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenStr and returns its claims.
func ParseToken(secret, issuer, tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Authenticate requires a valid bearer token and stores the caller's
// Identity in the request context.
func Authenticate(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err == nil {
				var claims *Claims
				claims, err = ParseToken(secret, issuer, raw)
				if err == nil {
					id := Identity{UserID: claims.UserID, Email: claims.Email}
					tracing.SetUser(trace.SpanFromContext(r.Context()), id.UserID)
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
					return
				}
			}
			slog.WarnContext(r.Context(), "authentication failed",
				"error", err,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			unauthorized(w, "Not authorized")
		})
	}
}

// AdminAPIKey requires one of keys in the X-API-Key header or as a bearer
// token. With no keys configured every request is rejected.
func AdminAPIKey(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key, _ = bearerToken(r)
			}
			if key == "" || !validKey(keys, key) {
				slog.WarnContext(r.Context(), "invalid admin API key",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys []string, key string) bool {
	ok := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(h[len(prefix):]), nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
