package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"user-directory/internal/service"
)

// writeServiceError traduce errores del servicio a respuestas HTTP. Los
// errores desconocidos se loguean y devuelven 500 sin detalle.
func writeServiceError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(c, verr)
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect email or password"})
	case errors.Is(err, service.ErrUnauthorized):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		requestLogger(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func writeValidationError(c *gin.Context, verr *service.ValidationError) {
	details := verr.Fields
	if details == nil {
		details = []service.FieldError{}
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": details})
}

// writeBindError responde 422 ante un body que no se pudo decodificar o que
// no cumple los tags binding.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]service.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, service.FieldError{Field: strings.ToLower(fe.Field()), Rule: fe.Tag()})
		}
		writeValidationError(c, &service.ValidationError{Fields: fields})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
}

func requestLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return zap.NewNop()
}
