package http

import (
	"net/http"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/services"
	"livetranslate/internal/infrastructure/middleware"
	"livetranslate/pkg/errors"
	"livetranslate/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)

		authed := api.Group("", middleware.AuthMiddleware(h.authService))
		authed.PATCH("/role", h.UpdateRole)
		authed.GET("/me", h.Me)
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=72"`
}

// UpdateRoleRequest accepts "HOST", "CLIENT" or null; a missing role means null.
type UpdateRoleRequest struct {
	Role *string `json:"role"`
}

type authResponse struct {
	User  domain.UserView `json:"user"`
	Token string          `json:"token"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{User: user.View(), Token: token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{User: user.View(), Token: token})
}

func (h *AuthHandler) UpdateRole(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, domain.ErrUnauthenticated)
		return
	}

	var req UpdateRoleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errors.NewInvalidInputError("invalid request format"))
			return
		}
	}
	if err := validation.ValidateRole(req.Role); err != nil {
		respondError(c, domain.NewValidationError("role", err))
		return
	}

	requested := domain.RoleNone
	if req.Role != nil {
		requested = domain.UserRole(*req.Role)
	}

	updated, changed, err := h.authService.UpdateRole(c.Request.Context(), user, requested)
	if err != nil {
		respondError(c, err)
		return
	}

	if !changed {
		c.JSON(http.StatusOK, gin.H{
			"message": "User already has the requested role",
			"user":    updated.View(),
		})
		return
	}
	c.JSON(http.StatusOK, updated.View())
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, domain.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, user.View())
}
