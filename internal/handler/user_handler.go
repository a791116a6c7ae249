package handler

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"

	"account_service/internal/middleware"
	"account_service/internal/model"
	"account_service/internal/service"
	"account_service/internal/upload"

	"github.com/gin-gonic/gin"
)

// UserHandler handles account management requests
type UserHandler struct {
	service service.UserService
	uploads *upload.Store
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(s service.UserService, uploads *upload.Store) *UserHandler {
	return &UserHandler{service: s, uploads: uploads}
}

// Helper to get authenticated user ID from context
func getAuthUserID(c *gin.Context) (string, error) {
	userIDVal, exists := c.Get(middleware.AuthUserKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	userID, ok := userIDVal.(string)
	if !ok {
		return "", errors.New("invalid user ID type in context")
	}
	return userID, nil
}

// multipartForm returns the parsed multipart form, or nil when the request
// carries none (urlencoded bodies and file-less updates are both valid).
func multipartForm(c *gin.Context) *multipart.Form {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	return form
}

func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	docs, err := h.uploads.SaveDocuments(multipartForm(c))
	if err != nil {
		log.Printf("Error storing identity documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded documents"})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req, docs)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		log.Printf("Error during registration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered",
		"user":    user,
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		log.Printf("Error during login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user.LoginInfo(),
	})
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("Error getting profile: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get profile"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	docs, err := h.uploads.SaveDocuments(multipartForm(c))
	if err != nil {
		log.Printf("Error storing identity documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded documents"})
		return
	}

	user, err := h.service.UpdateSelf(c.Request.Context(), userID, req, docs)
	if err != nil {
		h.updateError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- Admin Routes ---

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		log.Printf("Error listing users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) UpdateUserByID(c *gin.Context) {
	var req model.AdminUpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	docs, err := h.uploads.SaveDocuments(multipartForm(c))
	if err != nil {
		log.Printf("Error storing identity documents: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded documents"})
		return
	}

	user, err := h.service.UpdateUserByID(c.Request.Context(), c.Param("id"), req, docs)
	if err != nil {
		h.updateError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.service.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("Error deleting user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *UserHandler) updateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	default:
		log.Printf("Error updating user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
	}
}

// RegisterUserRoutes registers user account routes
func (h *UserHandler) RegisterUserRoutes(rg *gin.RouterGroup, authMW, adminMW, loginRateMW gin.HandlerFunc) {
	users := rg.Group("/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", loginRateMW, h.Login)

		users.GET("/me", authMW, h.GetMe)
		users.PUT("/me", authMW, h.UpdateMe)

		// Admin-only management routes
		users.GET("", authMW, adminMW, h.ListUsers)
		users.PUT("/:id", authMW, adminMW, h.UpdateUserByID)
		users.DELETE("/:id", authMW, adminMW, h.DeleteUser)
	}
}
