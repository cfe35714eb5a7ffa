package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/services"
	"github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/response"
)

// QueryHandler exposes the read-only projection endpoints.
type QueryHandler struct {
	queries *services.QueryService
}

// NewQueryHandler constructs a query handler.
func NewQueryHandler(db *gorm.DB) (*QueryHandler, error) {
	queries, err := services.NewQueryService(db)
	if err != nil {
		return nil, err
	}
	return &QueryHandler{queries: queries}, nil
}

// Matches returns the caller's current matches.
func (h *QueryHandler) Matches(c *gin.Context) {
	h.list(c, h.queries.ListMatches)
}

// PendingIncoming returns requests awaiting the caller's response.
func (h *QueryHandler) PendingIncoming(c *gin.Context) {
	h.list(c, h.queries.ListPendingIncoming)
}

// PendingOutgoing returns requests the caller has sent.
func (h *QueryHandler) PendingOutgoing(c *gin.Context) {
	h.list(c, h.queries.ListPendingOutgoing)
}

// Blocked returns the users the caller has blocked.
func (h *QueryHandler) Blocked(c *gin.Context) {
	h.list(c, h.queries.ListBlocked)
}

func (h *QueryHandler) list(c *gin.Context, load func(ctx context.Context, userID string) ([]services.CounterpartDTO, error)) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := load(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}
