package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
)

// UserHeader carries the caller's Auth0 ID into MockAuthFromHeader
const UserHeader = "X-Test-User"

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// MockAuthMiddleware authenticates every request as userID
func MockAuthMiddleware(userID, role string, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := MockValidatedClaims(userID, "https://test.auth0.com/", role, scopes)
		middleware.SetAuthContext(c, claims, "mock-token")
		c.Next()
	}
}

// MockAuthFromHeader authenticates requests that carry UserHeader and leaves the rest
// anonymous, so one router can serve several callers.
func MockAuthFromHeader(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(UserHeader); userID != "" {
			claims := MockValidatedClaims(userID, "https://test.auth0.com/", "", scopes)
			middleware.SetAuthContext(c, claims, AccessTokenFor(userID))
		}
		c.Next()
	}
}

// RequireMockUser rejects requests without UserHeader the way the token middleware does
func RequireMockUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("user_id"); !exists {
			c.AbortWithStatusJSON(401, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_TOKEN", "message": "Failed to validate JWT."},
			})
			return
		}
		c.Next()
	}
}

// AccessTokenFor is the access token MockAuthFromHeader stores for auth0ID
func AccessTokenFor(auth0ID string) string {
	return "token-" + auth0ID
}

// NewMockAuth0Server serves /userinfo for the given access tokens
func NewMockAuth0Server(users map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		info, ok := users[token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}))
}
