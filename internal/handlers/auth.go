package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/linkupapp/linkup/internal/auth"
	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/services"
	"github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/response"
)

// AuthHandler exposes registration, login and identity endpoints.
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService) (*AuthHandler, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{users: users, jwt: jwt}, nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string            `json:"token"`
	User  *services.UserDTO `json:"user"`
}

// Register creates an account and returns an access token for it.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		response.Error(c, errors.Wrap(err, "failed to issue token"))
		return
	}

	response.Success(c, http.StatusCreated, authResponse{Token: token, User: user})
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		response.Error(c, errors.Wrap(err, "failed to issue token"))
		return
	}

	response.Success(c, http.StatusOK, authResponse{Token: token, User: user})
}

// Me returns the current account.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}
