package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/services"
	"github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/response"
)

// ProfileHandler exposes profile read and owner-update endpoints.
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(db *gorm.DB) (*ProfileHandler, error) {
	profiles, err := services.NewProfileService(db)
	if err != nil {
		return nil, err
	}
	return &ProfileHandler{profiles: profiles}, nil
}

// Get returns the profile of the requested user.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		response.Error(c, errors.ErrInvalidArgument)
		return
	}

	profile, err := h.profiles.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}

// UpdateMine applies a partial update to the caller's own profile.
func (h *ProfileHandler) UpdateMine(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req services.UpdateProfileInput
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.profiles.Update(requestContext(c), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}
