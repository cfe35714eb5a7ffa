package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/services"
	"github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/response"
)

// SuggestionHandler exposes the candidate listing endpoint.
type SuggestionHandler struct {
	suggestions *services.SuggestionService
}

// NewSuggestionHandler constructs a suggestion handler with the default
// candidate ordering.
func NewSuggestionHandler(db *gorm.DB) (*SuggestionHandler, error) {
	suggestions, err := services.NewSuggestionService(db, nil)
	if err != nil {
		return nil, err
	}
	return &SuggestionHandler{suggestions: suggestions}, nil
}

// List returns suggestion candidates for the caller.
func (h *SuggestionHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	items, err := h.suggestions.Suggest(requestContext(c), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}
