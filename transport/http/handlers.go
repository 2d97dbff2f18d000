package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/logging"
	"github.com/regrant/regrant-auth/service"
)

const (
	detailVerificationFailed = "SIWE verification failed"
	detailInactiveUser       = "Inactive user"
	detailInternal           = "Internal server error"
)

// AuthHandlers contains HTTP handlers for auth and user endpoints
type AuthHandlers struct {
	authService *service.AuthService
	log         logging.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, log logging.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         log,
	}
}

type userResponse struct {
	ID            string     `json:"id"`
	WalletAddress string     `json:"wallet_address"`
	Email         *string    `json:"email"`
	FullName      *string    `json:"full_name"`
	Role          core.Role  `json:"role"`
	IsActive      bool       `json:"is_active"`
	IsSuperuser   bool       `json:"is_superuser"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

func newUserResponse(u *core.User) userResponse {
	return userResponse{
		ID:            u.ID,
		WalletAddress: u.WalletAddress,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		IsActive:      u.IsActive,
		IsSuperuser:   u.IsSuperuser,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Nonce issues a SIWE nonce for the wallet_address query parameter
func (h *AuthHandlers) Nonce(c *gin.Context) {
	address := c.Query("wallet_address")
	if !core.IsWalletAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid wallet address"})
		return
	}

	nonce, err := h.authService.IssueNonce(c.Request.Context(), address)
	if err != nil {
		h.log.Error(c.Request.Context(), "failed to issue nonce", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":   nonce,
		"address": address,
	})
}

// Login verifies a signed SIWE message and returns a bearer token
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Address   string `json:"address" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	user, err := h.authService.Login(c.Request.Context(), core.LoginRequest{
		Message:   req.Message,
		Signature: req.Signature,
		Address:   req.Address,
		Nonce:     req.Nonce,
	})
	if err != nil {
		// Which step failed is logged by the service and never returned
		switch {
		case core.IsAuthFailure(err):
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"detail": detailVerificationFailed})
		case errors.Is(err, core.ErrInactiveUser):
			c.JSON(http.StatusBadRequest, gin.H{"detail": detailInactiveUser})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
		}
		return
	}

	token, err := h.authService.IssueAccessToken(user)
	if err != nil {
		h.log.Error(c.Request.Context(), "failed to issue access token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Me returns the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// UpdateMe changes the profile fields of the authenticated user
func (h *AuthHandlers) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "User not found in context"})
		return
	}

	var req struct {
		Email    *string `json:"email" binding:"omitempty,email"`
		FullName *string `json:"full_name" binding:"omitempty,max=255"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	updated, err := h.authService.UpdateProfile(c.Request.Context(), user, core.ProfileUpdate{
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"detail": "The user with this email already exists in the system"})
		case errors.Is(err, core.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		default:
			h.log.Error(c.Request.Context(), "failed to update profile", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
		}
		return
	}

	c.JSON(http.StatusOK, newUserResponse(updated))
}

// GetUser returns a user by id. Mounted behind RequireSuperuser.
func (h *AuthHandlers) GetUser(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
			return
		}
		h.log.Error(c.Request.Context(), "failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
