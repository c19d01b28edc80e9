package middleware

import (
	"context"
	"net/http"
	"strings"

	"sentinel/internal/auth"
	"sentinel/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

// ServiceClaimsKey is the context key holding validated token claims
const ServiceClaimsKey ContextKey = "serviceClaims"

// JWTMiddleware validates bearer tokens and requires at least one of the
// listed roles when any are given
func JWTMiddleware(secret []byte, requiredRoles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}
			tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

			claims, err := auth.ValidateServiceToken(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if len(requiredRoles) > 0 {
				allowed := false
				for _, role := range requiredRoles {
					if claims.HasRole(role) {
						allowed = true
						break
					}
				}
				if !allowed {
					utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
					return
				}
			}

			ctx := context.WithValue(r.Context(), ServiceClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetServiceClaims retrieves the token claims from the request context
func GetServiceClaims(ctx context.Context) (*auth.ServiceClaims, bool) {
	claims, ok := ctx.Value(ServiceClaimsKey).(*auth.ServiceClaims)
	return claims, ok
}
