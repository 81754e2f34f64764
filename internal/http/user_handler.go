package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-directory/internal/domain"
	"user-directory/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type listUsersResponse struct {
	Data       []domain.User      `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

// ListUsers maneja GET /users?page&limit&active_only. Por defecto sólo lista
// usuarios activos; active_only=false incluye las bajas.
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := service.ListParams{Page: service.DefaultPage, Limit: service.DefaultLimit, ActiveOnly: service.DefaultActiveOnly}

	var fields []service.FieldError
	if raw, ok := c.GetQuery("page"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, service.FieldError{Field: "page", Rule: "int"})
		}
		params.Page = v
	}
	if raw, ok := c.GetQuery("limit"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, service.FieldError{Field: "limit", Rule: "int"})
		}
		params.Limit = v
	}
	if raw, ok := c.GetQuery("active_only"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fields = append(fields, service.FieldError{Field: "active_only", Rule: "bool"})
		}
		params.ActiveOnly = v
	}
	if len(fields) > 0 {
		writeValidationError(c, &service.ValidationError{Fields: fields})
		return
	}

	page, err := h.userServ.ListUsers(c.Request.Context(), params)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	items := page.Items
	if items == nil {
		items = []domain.User{}
	}
	c.JSON(http.StatusOK, listUsersResponse{
		Data: items,
		Pagination: paginationResponse{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages(),
		},
	})
}

// GetUser maneja GET /users/:id.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := h.userServ.GetUser(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser maneja POST /users.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid create user request", zap.Error(err))
		writeBindError(c, err)
		return
	}

	user, err := h.userServ.CreateUser(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser maneja PUT /users/:id. Sólo se modifican los campos presentes.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req service.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid update user request", zap.Error(err))
		writeBindError(c, err)
		return
	}

	user, err := h.userServ.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser maneja DELETE /users/:id (baja lógica).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := h.userServ.DeleteUser(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		writeValidationError(c, &service.ValidationError{Fields: []service.FieldError{{Field: "id", Rule: "int"}}})
		return 0, false
	}
	return id, true
}
