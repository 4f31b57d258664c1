package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/auth"
	"go.uber.org/zap"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// Authenticate validates the bearer token and stores its claims and username in the context.
// With required=false a missing header passes through anonymously, but a bad token is still rejected.
func Authenticate(validator TokenValidator, logger *zap.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			if !required {
				c.Next()
				return
			}
			AbortWithError(c, logger, pkg.NewAppError(pkg.ErrUnauthorizedCode, "", nil))
			return
		}
		claims, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			msg := "invalid or expired token"
			if errors.Is(err, pkg.ErrTokenRevoked) {
				msg = "token has been revoked"
			} else if !errors.Is(err, pkg.ErrInvalidToken) {
				AbortWithError(c, logger, pkg.NewAppError(pkg.ErrUnavailableCode, "", err))
				return
			}
			AbortWithError(c, logger, pkg.NewAppError(pkg.ErrUnauthorizedCode, msg, err))
			return
		}
		c.Set(pkg.Claims, claims)
		c.Set(pkg.Username, claims.Subject)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate, if any.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(pkg.Claims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
