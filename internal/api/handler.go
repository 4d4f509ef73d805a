package api

import (
	stderrors "errors"
	"net/http"

	"github.com/aspirant2018/niqatech-backend/internal/auth"
	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/internal/db"
	"github.com/aspirant2018/niqatech-backend/internal/excel"
	"github.com/aspirant2018/niqatech-backend/internal/grades"
	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/storage"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	repo     db.Repository
	store    storage.Storage
	strategy excel.ParsingStrategy
	auth     *auth.Service
	grades   *grades.Service
	cfg      *config.Config
	log      zerolog.Logger
}

func NewHandler(
	repo db.Repository,
	store storage.Storage,
	strategy excel.ParsingStrategy,
	authService *auth.Service,
	gradeService *grades.Service,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		repo:     repo,
		store:    store,
		strategy: strategy,
		auth:     authService,
		grades:   gradeService,
		cfg:      cfg,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Message: "API is running"})
}

func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.respondLogin(c, func() (*model.AuthResponse, error) {
		return h.auth.Login(c.Request.Context(), req)
	})
}

func (h *Handler) GoogleSignup(c *gin.Context) {
	var req model.GoogleTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.auth.GoogleSignup(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GoogleLogin(c *gin.Context) {
	var req model.GoogleTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.respondLogin(c, func() (*model.AuthResponse, error) {
		return h.auth.GoogleLogin(c.Request.Context(), req)
	})
}

// respondLogin sends 403 with the token when the profile still needs
// completing, so the client can call PUT /me/profile.
func (h *Handler) respondLogin(c *gin.Context, login func() (*model.AuthResponse, error)) {
	resp, err := login()
	if stderrors.Is(err, errors.ErrProfileIncomplete) && resp != nil {
		c.JSON(http.StatusForbidden, resp)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.auth.GetProfile(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var profile model.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), profile)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// Logout is stateless: tokens stay valid until they expire and the client
// discards its copy.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Message: "Logged out"})
}
