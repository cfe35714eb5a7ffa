package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/realtime"
	"github.com/linkupapp/linkup/internal/services"
	"github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/response"
)

// RelationshipHandler exposes the connect, respond, block and unblock endpoints.
type RelationshipHandler struct {
	relationships *services.RelationshipService
}

// NewRelationshipHandler constructs a relationship handler wired to the
// shared notification service and realtime hub.
func NewRelationshipHandler(db *gorm.DB, notifications *services.NotificationService, hub *realtime.Hub) (*RelationshipHandler, error) {
	store, err := services.NewRelationshipStore(db)
	if err != nil {
		return nil, err
	}
	relationships, err := services.NewRelationshipService(db, store, notifications, hub)
	if err != nil {
		return nil, err
	}
	return &RelationshipHandler{relationships: relationships}, nil
}

type connectRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type respondRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
}

// Connect creates a pending request toward the supplied user.
func (h *RelationshipHandler) Connect(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req connectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rel, err := h.relationships.Connect(requestContext(c), actorID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, rel)
}

// Respond answers a pending request addressed to the caller.
func (h *RelationshipHandler) Respond(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	relationshipID := strings.TrimSpace(c.Param("id"))
	var req respondRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rel, err := h.relationships.Respond(requestContext(c), relationshipID, actorID, services.Decision(req.Decision))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, rel)
}

// Block severs any relationship with the supplied user and records a block.
func (h *RelationshipHandler) Block(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req connectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rel, err := h.relationships.Block(requestContext(c), actorID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, rel)
}

// Unblock lifts a block the caller previously placed.
func (h *RelationshipHandler) Unblock(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	relationshipID := strings.TrimSpace(c.Param("id"))
	if err := h.relationships.Unblock(requestContext(c), relationshipID, actorID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unblocked": true})
}

// Get returns one relationship the caller participates in.
func (h *RelationshipHandler) Get(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	relationshipID := strings.TrimSpace(c.Param("id"))
	rel, err := h.relationships.GetByID(requestContext(c), relationshipID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, rel)
}
