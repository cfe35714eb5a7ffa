package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/internal/realtime"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/logger"
	"github.com/linkupapp/linkup/pkg/metrics"
)

// RelationshipDTO represents the API-friendly relationship payload.
type RelationshipDTO struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	ReceiverID  string     `json:"receiver_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// RelationshipService drives the request and match lifecycle. All writes go
// through the relationship store; notifications ride after the committed
// mutation and never fail the mutation itself.
type RelationshipService struct {
	db            *gorm.DB
	store         *RelationshipStore
	notifications *NotificationService
	hub           *realtime.Hub
	log           *zap.Logger
}

// NewRelationshipService constructs a RelationshipService. The hub is
// optional; without one, state changes are still recorded on the feed.
func NewRelationshipService(db *gorm.DB, store *RelationshipStore, notifications *NotificationService, hub *realtime.Hub) (*RelationshipService, error) {
	if db == nil {
		return nil, errors.New("relationship service: db is required")
	}
	if store == nil {
		return nil, errors.New("relationship service: store is required")
	}
	if notifications == nil {
		return nil, errors.New("relationship service: notification service is required")
	}
	return &RelationshipService{
		db:            db,
		store:         store,
		notifications: notifications,
		hub:           hub,
		log:           logger.WithModule("relationships"),
	}, nil
}

// Connect creates a pending request from the actor toward the target and
// notifies the target. The target must exist and differ from the actor.
func (s *RelationshipService) Connect(ctx context.Context, actorID, targetID string) (*RelationshipDTO, error) {
	ctx = ensureContext(ctx)
	actorID = trimmedID(actorID)
	targetID = trimmedID(targetID)

	if err := s.requireUser(ctx, targetID); err != nil {
		metrics.ConnectAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	rel, err := s.store.UpsertPending(ctx, actorID, targetID)
	if err != nil {
		metrics.ConnectAttempts.WithLabelValues(connectOutcome(err)).Inc()
		return nil, err
	}
	metrics.ConnectAttempts.WithLabelValues("pending").Inc()
	metrics.RelationshipTransitions.WithLabelValues(models.RelationshipPending).Inc()

	s.dispatch(ctx, NotifyInput{
		RecipientID:    targetID,
		Type:           models.NotificationMatchRequest,
		ActorID:        actorID,
		RelationshipID: rel.ID,
	})
	s.broadcast("relationship.requested", rel)

	dto := mapRelationship(rel)
	return &dto, nil
}

// Respond answers a pending request on behalf of its receiver. Accepting
// matches the pair and notifies the original requester; declining records
// the decision silently.
func (s *RelationshipService) Respond(ctx context.Context, relationshipID, responderID string, decision Decision) (*RelationshipDTO, error) {
	ctx = ensureContext(ctx)

	rel, err := s.store.Respond(ctx, relationshipID, trimmedID(responderID), decision)
	if err != nil {
		return nil, err
	}
	metrics.RelationshipTransitions.WithLabelValues(rel.Status).Inc()

	if rel.Status == models.RelationshipMatched {
		s.dispatch(ctx, NotifyInput{
			RecipientID:    rel.RequesterID,
			Type:           models.NotificationMatchAccepted,
			ActorID:        rel.ReceiverID,
			RelationshipID: rel.ID,
		})
		s.broadcast("relationship.matched", rel)
	} else {
		s.broadcast("relationship.declined", rel)
	}

	dto := mapRelationship(rel)
	return &dto, nil
}

// Block severs whatever the pair holds and records a block owned by the
// actor. The blocked user is never notified.
func (s *RelationshipService) Block(ctx context.Context, actorID, targetID string) (*RelationshipDTO, error) {
	ctx = ensureContext(ctx)
	actorID = trimmedID(actorID)
	targetID = trimmedID(targetID)

	if err := s.requireUser(ctx, targetID); err != nil {
		return nil, err
	}

	rel, err := s.store.Block(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	metrics.RelationshipTransitions.WithLabelValues(models.RelationshipBlocked).Inc()

	dto := mapRelationship(rel)
	return &dto, nil
}

// Unblock lifts a block owned by the actor, returning the pair to no
// relationship.
func (s *RelationshipService) Unblock(ctx context.Context, relationshipID, actorID string) error {
	ctx = ensureContext(ctx)

	if err := s.store.Unblock(ctx, relationshipID, trimmedID(actorID)); err != nil {
		return err
	}
	metrics.RelationshipTransitions.WithLabelValues("none").Inc()
	return nil
}

// StatusBetween reports the current relationship between two users, or nil
// when the pair has none.
func (s *RelationshipService) StatusBetween(ctx context.Context, userA, userB string) (*RelationshipDTO, error) {
	rel, err := s.store.Get(ensureContext(ctx), userA, userB)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, nil
	}
	dto := mapRelationship(rel)
	return &dto, nil
}

// GetByID loads a single relationship visible to the actor.
func (s *RelationshipService) GetByID(ctx context.Context, relationshipID, actorID string) (*RelationshipDTO, error) {
	rel, err := s.store.GetByID(ensureContext(ctx), relationshipID)
	if err != nil {
		return nil, err
	}
	if !rel.Involves(trimmedID(actorID)) {
		return nil, apperrors.ErrForbidden
	}
	dto := mapRelationship(rel)
	return &dto, nil
}

// dispatch sends a notification after the mutation has committed. Delivery
// is best effort: a failed dispatch is logged and retried never, the
// relationship mutation stands.
func (s *RelationshipService) dispatch(ctx context.Context, input NotifyInput) {
	if _, err := s.notifications.Notify(ctx, input); err != nil {
		s.log.Warn("notification dispatch failed",
			zap.String("type", input.Type),
			zap.String("recipient_id", input.RecipientID),
			zap.String("relationship_id", input.RelationshipID),
			zap.Error(err),
		)
	}
}

func (s *RelationshipService) broadcast(event string, rel *models.Relationship) {
	if s.hub == nil {
		return
	}
	dto := mapRelationship(rel)
	s.hub.BroadcastToUsers(realtime.StreamRelationships,
		[]string{rel.RequesterID, rel.ReceiverID},
		realtime.Message{Event: event, Data: dto},
	)
}

func (s *RelationshipService) requireUser(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.ErrInvalidArgument.WithMessage("target user id is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("relationship service: check user: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound.WithMessage("user does not exist")
	}
	return nil
}

func connectOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

func mapRelationship(rel *models.Relationship) RelationshipDTO {
	return RelationshipDTO{
		ID:          rel.ID,
		RequesterID: rel.RequesterID,
		ReceiverID:  rel.ReceiverID,
		Status:      rel.Status,
		CreatedAt:   rel.CreatedAt,
		UpdatedAt:   rel.UpdatedAt,
		EndedAt:     rel.SupersededAt,
	}
}
