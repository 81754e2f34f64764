package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"user-directory/internal/domain"
	"user-directory/internal/service"
)

const principalKey = "auth_principal"

// Authenticator resuelve el usuario a partir del header Authorization.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (domain.User, error)
}

// AuthMiddleware exige un bearer token válido de un usuario activo y guarda
// el principal en el contexto.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				abortUnauthorized(c)
				return
			}
			writeServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// GetPrincipal obtiene el usuario autenticado desde el contexto.
func GetPrincipal(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
