// Package auth guards the mutating API surface with short-lived operator
// tokens. There is no user database: a single admin credential, supplied via
// the environment, unlocks token issuance.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const subjectKey ctxKey = iota

const (
	tokenIssuer = "mentionwatch"

	// ScopeOperator is the only scope tokens carry: full access to rule
	// mutation, cursor resets and on-demand ingestion runs.
	ScopeOperator = "operator"

	defaultTokenTTL = 12 * time.Hour
)

// Config holds the signing secret and the admin credential.
type Config struct {
	JWTSecret string

	// AdminPasswordHash is a bcrypt hash; preferred when set.
	AdminPasswordHash string

	// AdminPassword is the plaintext fallback for dev setups without a hash.
	AdminPassword string

	TokenDuration time.Duration
}

// LoadConfigFromEnv reads ADMIN_JWT_SECRET, ADMIN_PASSWORD_HASH,
// ADMIN_PASSWORD and AUTH_TOKEN_TTL_HOURS, with dev-only defaults for the
// secret and password.
func LoadConfigFromEnv() Config {
	cfg := Config{
		JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		TokenDuration:     defaultTokenTTL,
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "change-this-secret"
	}
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		cfg.AdminPassword = "admin"
	}
	if v := os.Getenv("AUTH_TOKEN_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.TokenDuration = time.Duration(hours) * time.Hour
		}
	}
	return cfg
}

// VerifyAdminPassword checks the presented password against the configured
// credential: bcrypt when a hash is set, constant-time compare otherwise.
func (c Config) VerifyAdminPassword(password string) bool {
	if c.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.AdminPasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(c.AdminPassword)) == 1
}

// Claims carries the operator scope alongside the registered claim set.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issue mints an operator token for the subject, returning the signed token
// and its expiry.
func Issue(cfg Config, subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.TokenDuration)
	claims := Claims{
		Scope: ScopeOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry, issuer and scope, and returns the subject
// the token was issued to.
func Verify(cfg Config, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Scope != ScopeOperator {
		return "", fmt.Errorf("token lacks the operator scope")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid operator token and stores the
// token's subject on the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Bearer token required", http.StatusUnauthorized)
				return
			}

			subject, err := Verify(cfg, token)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// SubjectFromContext returns the subject of the token that authorized the
// request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}
