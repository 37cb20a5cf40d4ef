package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"requisition/internal/identity"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

var errMissingToken = errors.New("authorization is missing")

// IdentityResolver turns an access token into the caller's identity record
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (identity.Identity, error)
}

// SetTokenCookies sets access_token as an HttpOnly cookie
func SetTokenCookies(c *gin.Context, accessToken string, ttl time.Duration) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookies removes the access_token cookie
func ClearTokenCookies(c *gin.Context) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
}

func cookiePolicy() (http.SameSite, bool) {
	if gin.Mode() == gin.ReleaseMode || os.Getenv("RENDER") != "" {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// TokenFromRequest reads the access token from the cookie, falling back to the
// Authorization header.
func TokenFromRequest(c *gin.Context) (string, error) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization format. Expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireIdentity resolves the caller and, when roles are given, checks that
// the account role is one of them. The identity is stored on the gin context.
func RequireIdentity(resolver IdentityResolver, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := TokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		id, err := resolver.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Session expired, login required"))
			return
		}

		if len(allowedRoles) > 0 {
			roleAllowed := false
			for _, role := range allowedRoles {
				if id.Role == role {
					roleAllowed = true
					break
				}
			}
			if !roleAllowed {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
				return
			}
		}

		c.Set(identityKey, id)
		c.Set("userID", id.ID.String())
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by RequireIdentity
func CurrentIdentity(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}
