package middleware

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// AuthenticatedTenantContextKey carries the AuthenticatedTenant in the
	// request context.
	AuthenticatedTenantContextKey = ContextKey("authenticatedTenant")
)

// AuthenticatedTenant identifies the tenant a request acts on behalf of.
type AuthenticatedTenant struct {
	TenantID string
	Subject  string // user or API key id
	IsActive bool
}

// APIKeyStore resolves a sha3-256 key digest to a tenant. Plaintext keys are
// never stored.
type APIKeyStore interface {
	GetTenantByKeyDigest(ctx context.Context, digest string) (*AuthenticatedTenant, error)
}

// tenantClaims are the JWT claims the API accepts.
type tenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates requests via "Bearer <jwt>" or "ApiKey <key>".
func AuthMiddleware(jwtSecret string, keys APIKeyStore, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			var tenant *AuthenticatedTenant
			switch parts[0] {
			case "Bearer":
				claims := &tenantClaims{}
				token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(jwtSecret), nil
				})
				if err != nil || !token.Valid || claims.TenantID == "" {
					logger.WarnContext(r.Context(), "JWT validation failed", "error", err)
					http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
					return
				}
				tenant = &AuthenticatedTenant{
					TenantID: claims.TenantID,
					Subject:  claims.Subject,
					IsActive: true,
				}
			case "ApiKey":
				sum := sha3.Sum256([]byte(parts[1]))
				resolved, err := keys.GetTenantByKeyDigest(r.Context(), hex.EncodeToString(sum[:]))
				if err != nil || resolved == nil {
					logger.WarnContext(r.Context(), "API key validation failed", "error", err)
					http.Error(w, "Invalid API key", http.StatusUnauthorized)
					return
				}
				tenant = resolved
			default:
				logger.WarnContext(r.Context(), "Unsupported Authorization scheme", "scheme", parts[0])
				http.Error(w, "Unsupported Authorization scheme", http.StatusUnauthorized)
				return
			}

			if !tenant.IsActive {
				http.Error(w, "Tenant account inactive", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), AuthenticatedTenantContextKey, *tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext extracts the authenticated tenant set by AuthMiddleware.
func TenantFromContext(ctx context.Context) (AuthenticatedTenant, bool) {
	tenant, ok := ctx.Value(AuthenticatedTenantContextKey).(AuthenticatedTenant)
	return tenant, ok
}
