package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

var errStaleToken = errors.New("token revoked")

// VersionSource reports the current token version of a user. Tokens signed
// with an older version are rejected.
type VersionSource interface {
	GetTokenVersion(ctx context.Context, id string) (int, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// Verify parses raw and, when versions is set, checks it has not been
// revoked.
func Verify(ctx context.Context, tokens TokenService, versions VersionSource, raw string) (*Claims, error) {
	claims, err := tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		return claims, nil
	}
	current, err := versions.GetTokenVersion(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if current != claims.TokenVersion {
		return nil, errStaleToken
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the claims for MustGetClaims. versions may be nil.
func AuthMiddleware(tokens TokenService, versions VersionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := Verify(c.Request.Context(), tokens, versions, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func MustGetClaims(c *gin.Context) *Claims {
	if v, ok := c.Get(CtxClaimsKey); ok {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// CallerName is the display name rounds use to identify the caller, or ""
// when the request is unauthenticated.
func CallerName(c *gin.Context) string {
	if claims := MustGetClaims(c); claims != nil {
		return claims.Username
	}
	return ""
}
