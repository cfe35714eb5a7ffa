package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/internal/realtime"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
	"github.com/linkupapp/linkup/pkg/metrics"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID             string               `json:"id"`
	RecipientID    string               `json:"recipient_id"`
	Type           string               `json:"type"`
	ActorID        string               `json:"actor_id,omitempty"`
	RelationshipID string               `json:"relationship_id"`
	Payload        map[string]any       `json:"payload,omitempty"`
	IsRead         bool                 `json:"is_read"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	ReadAt         *time.Time           `json:"read_at,omitempty"`
	Raw            *models.Notification `json:"-"`
}

// NotifyInput defines attributes required to dispatch a notification.
type NotifyInput struct {
	RecipientID    string
	Type           string
	ActorID        string
	RelationshipID string
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Since  *time.Time
	Limit  int
	Offset int
}

// NotificationService is the dispatcher: it owns notification rows, keeps
// per-recipient event order on the change feed, and never mutates rows for
// anyone but the recipient.
type NotificationService struct {
	db   *gorm.DB
	feed *realtime.Feed
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, feed *realtime.Feed) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if feed == nil {
		feed = realtime.NewFeed(0)
	}
	return &NotificationService{db: db, feed: feed}, nil
}

// Feed exposes the change feed consumed by external delivery transports.
func (s *NotificationService) Feed() *realtime.Feed {
	return s.feed
}

// Notify creates a notification referencing the originating relationship
// and appends the created event to the change feed.
func (s *NotificationService) Notify(ctx context.Context, input NotifyInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	recipientID := trimmedID(input.RecipientID)
	if recipientID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("recipient id is required")
	}
	notificationType := trimmedID(input.Type)
	if notificationType == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("notification type is required")
	}
	relationshipID := trimmedID(input.RelationshipID)
	if relationshipID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("relationship reference is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", recipientID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("notification service: check recipient: %w", err)
	}
	if count == 0 {
		metrics.NotificationsDispatched.WithLabelValues(notificationType, "error").Inc()
		return nil, apperrors.ErrNotFound.WithMessage("recipient does not exist")
	}

	payload, err := json.Marshal(map[string]string{
		"relationship_id": relationshipID,
		"actor_id":        trimmedID(input.ActorID),
	})
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload: %w", err)
	}

	notification := models.Notification{
		RecipientID:    recipientID,
		Type:           notificationType,
		ActorID:        trimmedID(input.ActorID),
		RelationshipID: relationshipID,
		Payload:        datatypes.JSON(payload),
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		metrics.NotificationsDispatched.WithLabelValues(notificationType, "error").Inc()
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(notification)
	s.feed.Append(recipientID, realtime.OpCreated, &dto)
	metrics.NotificationsDispatched.WithLabelValues(notificationType, "ok").Inc()
	return &dto, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := trimmedID(input.UserID)
	if userID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	query := s.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if input.Since != nil {
		query = query.Where("created_at > ?", *input.Since)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items, nil
}

// MarkRead flips the read flag for a notification owned by the actor.
// Repeating the call is a no-op success.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, actorID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	if err := s.db.WithContext(ctx).First(&notification, "id = ?", trimmedID(notificationID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if notification.RecipientID != trimmedID(actorID) {
		return nil, apperrors.ErrForbidden
	}

	if notification.IsRead {
		dto := mapNotification(notification)
		return &dto, nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	notification.IsRead = true
	notification.ReadAt = &now
	dto := mapNotification(notification)
	s.feed.Append(notification.RecipientID, realtime.OpUpdated, &dto)
	return &dto, nil
}

// MarkAllRead marks every unread notification for the user as read. Each
// affected row gets its own updated event so feed consumers always receive
// a concrete record reference.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	userID = trimmedID(userID)
	if userID == "" {
		return apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Find(&rows).Error; err != nil {
		return fmt.Errorf("notification service: load unread: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	for _, row := range rows {
		row.IsRead = true
		row.ReadAt = &now
		dto := mapNotification(row)
		s.feed.Append(userID, realtime.OpUpdated, &dto)
	}
	return nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = trimmedID(userID)
	if userID == "" {
		return 0, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:             row.ID,
		RecipientID:    row.RecipientID,
		Type:           row.Type,
		ActorID:        row.ActorID,
		RelationshipID: row.RelationshipID,
		Payload:        decodeJSON(row.Payload),
		IsRead:         row.IsRead,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		ReadAt:         row.ReadAt,
		Raw:            &row,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
