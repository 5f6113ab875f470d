// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request identifiers, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → Auth → RateLimit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Auth runs before the general rate limiter so the limiter can key on the
// authenticated user rather than the client IP; the login endpoint has its own
// limiter in front of auth, since it is the brute-force target. Auth populates
// the user identity and stamps the actor into the request context so activity
// recording downstream can resolve who acted without every handler threading
// identity explicitly.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nexocrm/nexo-backend/internal/activity/actorctx"
	"github.com/nexocrm/nexo-backend/internal/auth"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
)

// AuthMiddleware validates the Bearer JWT, loads the user, and sets identity
// in both the gin context (for handlers) and the request context (for the
// activity recorder).
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)

		// Stamp actor and provenance into the request context. Anything in the
		// request path that records activity picks these up implicitly.
		ctx := actorctx.WithActor(c.Request.Context(), user.ID, user.Name)
		ctx = actorctx.WithProvenance(ctx, clientIP(c), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// OptionalAuthMiddleware is AuthMiddleware without the abort: anonymous
// requests continue with no actor in context, so any activity they try to
// record is dropped by the recorder rather than rejected here.
func OptionalAuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
			if err == nil && user != nil {
				c.Set("user", user)
				c.Set("user_id", user.ID)

				ctx := actorctx.WithActor(c.Request.Context(), user.ID, user.Name)
				ctx = actorctx.WithProvenance(ctx, clientIP(c), c.Request.UserAgent())
				c.Request = c.Request.WithContext(ctx)
			}
		}

		c.Next()
	}
}

// bearerToken extracts a non-empty token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// clientIP resolves the originating address. Proxy headers take precedence
// over the socket address since the service normally sits behind a load
// balancer.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		// First hop is the original client.
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := c.GetHeader("X-Real-IP"); rip != "" {
		return rip
	}
	return c.ClientIP()
}
