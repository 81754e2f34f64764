package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-directory/internal/service"
)

// AuthHandler expone registro, login y el principal actual.
type AuthHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

func NewAuthHandler(logger *zap.Logger, userServ *service.UserService) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger, userServ: userServ}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func newTokenResponse(t service.Token) tokenResponse {
	return tokenResponse{
		AccessToken: t.Value,
		TokenType:   service.TokenTypeBearer,
		ExpiresIn:   t.ExpiresIn(),
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid register request", zap.Error(err))
		writeBindError(c, err)
		return
	}

	_, token, err := h.userServ.Register(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newTokenResponse(token))
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid login request", zap.Error(err))
		writeBindError(c, err)
		return
	}

	token, err := h.userServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(token))
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := GetPrincipal(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, user)
}
