// Package authapi implements session endpoints: password login, logout, and
// the current-user probe. Login outcomes are recorded in the activity log —
// LOGIN on success, LOGIN_FAILED when a known account presents a bad password.
// Attempts against unknown emails only produce a warning log line, since the
// activity log refuses entries without a real actor.
package authapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexocrm/nexo-backend/internal/activity"
	"github.com/nexocrm/nexo-backend/internal/auth"
	"github.com/nexocrm/nexo-backend/internal/db/models"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
)

// Handler handles authentication API requests.
type Handler struct {
	users           *repositories.UserRepository
	recorder        *activity.Recorder
	sessionDuration time.Duration
}

// NewHandler creates a new auth handler.
func NewHandler(users *repositories.UserRepository, recorder *activity.Recorder, sessionDuration time.Duration) *Handler {
	return &Handler{
		users:           users,
		recorder:        recorder,
		sessionDuration: sessionDuration,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// userResponse is the public view of a user; the password hash never leaves
// this package.
type userResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

func publicUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.AvatarURL}
}

// @Summary      Log in
// @Description  Validates credentials and returns a session JWT.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "token, user"
// @Failure      400  {object}  map[string]interface{}  "Missing credentials"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if user == nil {
		// No account, so no actor to attribute a LOGIN_FAILED entry to.
		slog.Warn("login attempt for unknown email", "email", req.Email, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		h.recorder.LogLoginFailed(c.Request.Context(), user.ID, user.Name, "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, h.sessionDuration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.recorder.LogLogin(c.Request.Context(), user.ID, user.Name)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  publicUser(user),
	})
}

// @Summary      Log out
// @Description  Records the logout. JWTs are stateless, so the client simply discards the token.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status"
// @Router       /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if u, exists := c.Get("user"); exists {
		if user, ok := u.(*models.User); ok {
			h.recorder.LogLogout(c.Request.Context(), user.ID, user.Name)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// @Summary      Current user
// @Description  Returns the profile of the authenticated user.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  userResponse
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	user, ok := u.(*models.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user context"})
		return
	}
	c.JSON(http.StatusOK, publicUser(user))
}
