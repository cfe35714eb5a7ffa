package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

// CounterpartDTO pairs a relationship with the other user's display data.
type CounterpartDTO struct {
	RelationshipID string    `json:"relationship_id"`
	Status         string    `json:"status"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Bio            string    `json:"bio,omitempty"`
	PictureURL     string    `json:"picture_url,omitempty"`
	Since          time.Time `json:"since"`
}

// QueryService is the read-only projection layer over relationship and
// notification state. It carries no invariants of its own; reads are
// read-committed against the store.
type QueryService struct {
	db *gorm.DB
}

// NewQueryService constructs a QueryService.
func NewQueryService(db *gorm.DB) (*QueryService, error) {
	if db == nil {
		return nil, errors.New("query service: db is required")
	}
	return &QueryService{db: db}, nil
}

// ListMatches returns the user's current matches with counterpart profiles.
func (s *QueryService) ListMatches(ctx context.Context, userID string) ([]CounterpartDTO, error) {
	return s.listByStatus(ctx, userID, models.RelationshipMatched, roleAny)
}

// ListPendingIncoming returns pending requests awaiting the user's response.
func (s *QueryService) ListPendingIncoming(ctx context.Context, userID string) ([]CounterpartDTO, error) {
	return s.listByStatus(ctx, userID, models.RelationshipPending, roleReceiver)
}

// ListPendingOutgoing returns pending requests the user has sent.
func (s *QueryService) ListPendingOutgoing(ctx context.Context, userID string) ([]CounterpartDTO, error) {
	return s.listByStatus(ctx, userID, models.RelationshipPending, roleRequester)
}

// ListBlocked returns the users the caller has blocked.
func (s *QueryService) ListBlocked(ctx context.Context, userID string) ([]CounterpartDTO, error) {
	return s.listByStatus(ctx, userID, models.RelationshipBlocked, roleRequester)
}

type role int

const (
	roleAny role = iota
	roleRequester
	roleReceiver
)

func (s *QueryService) listByStatus(ctx context.Context, userID string, status string, r role) ([]CounterpartDTO, error) {
	ctx = ensureContext(ctx)
	userID = trimmedID(userID)
	if userID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	query := s.db.WithContext(ctx).
		Where("superseded_at IS NULL").
		Where("status = ?", status)

	switch r {
	case roleRequester:
		query = query.Where("requester_id = ?", userID)
	case roleReceiver:
		query = query.Where("receiver_id = ?", userID)
	default:
		query = query.Where("requester_id = ? OR receiver_id = ?", userID, userID)
	}

	var rows []models.Relationship
	if err := query.Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query service: load relationships: %w", err)
	}

	if len(rows) == 0 {
		return []CounterpartDTO{}, nil
	}

	counterpartIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		counterpartIDs = append(counterpartIDs, row.Other(userID))
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", counterpartIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("query service: load profiles: %w", err)
	}

	profileByUser := make(map[string]models.Profile, len(profiles))
	for _, profile := range profiles {
		profileByUser[profile.UserID] = profile
	}

	out := make([]CounterpartDTO, 0, len(rows))
	for _, row := range rows {
		counterpartID := row.Other(userID)
		item := CounterpartDTO{
			RelationshipID: row.ID,
			Status:         row.Status,
			UserID:         counterpartID,
			Since:          row.UpdatedAt,
		}
		if profile, ok := profileByUser[counterpartID]; ok {
			item.Username = profile.Username
			item.Bio = profile.Bio
			item.PictureURL = profile.PictureURL
		}
		out = append(out, item)
	}
	return out, nil
}
