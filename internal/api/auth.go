package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/apierr"
	"github.com/steemit/bulletin/internal/auth"
	"github.com/steemit/bulletin/internal/models"
	"github.com/steemit/bulletin/pkg/logging"
)

// AuthAPI handles registration and login
type AuthAPI struct {
	users  UserStore
	tokens Tokens
	logger *zap.Logger
}

// NewAuthAPI creates a new auth API
func NewAuthAPI(users UserStore, tokens Tokens) *AuthAPI {
	return &AuthAPI{
		users:  users,
		tokens: tokens,
		logger: logging.WithComponent("auth-api"),
	}
}

// Register handles POST /auth/register
func (a *AuthAPI) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, a.logger, &req) {
		return
	}

	username, usernameErr := trimmedText("username", req.Username, 3, 50)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if err := collect(usernameErr); err != nil {
		respondError(c, a.logger, err)
		return
	}

	ctx := c.Request.Context()
	taken, err := a.users.Exists(ctx, username, email)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}
	if taken {
		respondError(c, a.logger, apierr.New(apierr.KindConflict, "username or email already in use"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := a.users.Create(ctx, user); err != nil {
		respondError(c, a.logger, err)
		return
	}

	token, err := a.tokens.Issue(user.Summary())
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	a.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusCreated, models.AuthResponse{
		Message: "User registered successfully",
		Token:   token,
		User:    user.Summary(),
	})
}

// Login handles POST /auth/login
func (a *AuthAPI) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, a.logger, &req) {
		return
	}

	user, err := a.users.GetByEmail(c.Request.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		respondError(c, a.logger, err)
		return
	}
	if user == nil {
		respondError(c, a.logger, apierr.Unauthorized("invalid email or password"))
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}
	if !ok {
		respondError(c, a.logger, apierr.Unauthorized("invalid email or password"))
		return
	}

	token, err := a.tokens.Issue(user.Summary())
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Message: "Login successful",
		Token:   token,
		User:    user.Summary(),
	})
}
