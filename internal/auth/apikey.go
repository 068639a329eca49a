package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	headerName   = "X-API-Key"
	principalKey = "auth.principal"
)

// APIKeyMiddleware resolves the caller's principal from the X-API-Key header
// or an "Authorization: Bearer" credential. keys maps credential -> principal.
// Missing and unknown credentials get the same 401 so callers cannot probe keys.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := lookup(keys, credential(c.Request))
		if principal == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid credentials",
				"code":  "unauthenticated",
			})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// Principal returns the identity set by APIKeyMiddleware, or "".
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

func credential(r *http.Request) string {
	if key := r.Header.Get(headerName); key != "" {
		return key
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// lookup compares against every key so timing does not depend on which one matched.
func lookup(keys map[string]string, provided string) string {
	if provided == "" {
		return ""
	}
	var principal string
	for key, p := range keys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
			principal = p
		}
	}
	return principal
}
