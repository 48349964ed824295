package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
)

const principalKey = "principal"

// AuthMiddleware authenticates requests with access tokens
type AuthMiddleware struct {
	jwtService *auth.JWTService
	principals *authz.PrincipalLoader
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService, principals *authz.PrincipalLoader) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		principals: principals,
	}
}

// JWTAuth validates the bearer token and loads the caller's current flags from the store.
// Disabled accounts are rejected even while their tokens are unexpired.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			detail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(detail))
			return
		}

		tokenString, err := auth.ExtractBearerToken(authHeader)
		if err != nil {
			HandleAPIError(c, err)
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString, auth.TokenTypeAccess)
		if err != nil {
			HandleAPIError(c, err)
			return
		}

		principal, err := m.principals.Load(c.Request.Context(), claims.UserID)
		if err != nil {
			HandleAPIError(c, err)
			return
		}
		if !principal.IsActive {
			HandleAPIError(c, apperrors.ErrAccountDisabled)
			return
		}

		c.Set(principalKey, principal)
		c.Set("userID", principal.UserID)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by JWTAuth, or nil on public routes
func PrincipalFrom(c *gin.Context) *authz.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*authz.Principal)
	return p
}
