package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultRoleClaim = "role"
	defaultNameClaim = "name"

	apiKeyHeader = "X-Api-Key"
)

var (
	// ErrTokenExpired signals that the provided token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Authenticator verifies HMAC-signed JWTs and wires identities into HTTP middleware.
type Authenticator struct {
	secret []byte
	issuer string

	roleClaim      string
	nameClaim      string
	allowAnonymous bool
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithIssuer requires tokens to carry the given issuer claim.
func WithIssuer(issuer string) Option {
	return func(a *Authenticator) {
		a.issuer = strings.TrimSpace(issuer)
	}
}

// WithRoleClaim overrides the custom claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithAnonymousAccess lets requests without a bearer token pass through without an identity.
// Role-restricted groups still reject anonymous callers.
func WithAnonymousAccess(allow bool) Option {
	return func(a *Authenticator) {
		a.allowAnonymous = allow
	}
}

// NewAuthenticator constructs an Authenticator validating HS256 tokens with the shared secret.
func NewAuthenticator(secret string, opts ...Option) (*Authenticator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	a := &Authenticator{
		secret:    []byte(secret),
		roleClaim: defaultRoleClaim,
		nameClaim: defaultNameClaim,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Verify parses and validates the raw token, returning the extracted identity.
func (a *Authenticator) Verify(tokenStr string) (*Identity, error) {
	if a == nil || len(a.secret) == 0 {
		return nil, ErrTokenInvalid
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}

	subject, _ := claims["sub"].(string)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject claim missing", ErrTokenInvalid)
	}

	return &Identity{
		Subject: subject,
		Name:    claimAsString(claims, a.nameClaim),
		Roles:   rolesFromClaims(claims, a.roleClaim),
	}, nil
}

// Middleware authenticates bearer tokens and stores the identity on the request context.
// Anonymous requests pass through without an identity when anonymous access is enabled.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				if a != nil && a.allowAnonymous {
					next.ServeHTTP(w, r)
					return
				}
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}

			identity, err := a.Verify(tokenStr)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRoles rejects requests whose identity lacks all of the allowed roles.
// It expects Middleware to have run earlier in the chain.
func RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(allowedRoles))
	for _, role := range allowedRoles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" {
			allowed = append(allowed, role)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if len(allowed) > 0 && !identity.HasAnyRole(allowed...) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey guards a route group with a shared key carried in the X-Api-Key header.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(key))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "api key not configured")
				return
			}
			provided := []byte(strings.TrimSpace(r.Header.Get(apiKeyHeader)))
			if len(provided) == 0 || subtle.ConstantTimeCompare(expected, provided) != 1 {
				respondAuthError(w, http.StatusUnauthorized, "invalid_api_key", "api key missing or invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rolesFromClaims(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case string:
		role := strings.ToLower(strings.TrimSpace(v))
		if role == "" {
			return nil
		}
		return []string{role}
	case []any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := strings.ToLower(strings.TrimSpace(str))
			if role == "" {
				continue
			}
			if _, exists := seen[role]; exists {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	default:
		return nil
	}
}

func claimAsString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	if str, ok := raw.(string); ok {
		return strings.TrimSpace(str)
	}
	return ""
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}

	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "token invalid")
	}
}
