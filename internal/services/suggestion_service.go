package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

// SuggestionDTO is a candidate user surfaced to the caller.
type SuggestionDTO struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Bio        string `json:"bio,omitempty"`
	Interests  string `json:"interests,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

// Comparator orders suggestion candidates. It reports whether a should rank
// before b. Ranking policy is pluggable; the engine only guarantees the
// exclusion rules and a stable order for identical inputs.
type Comparator func(a, b SuggestionDTO) bool

// byUsername is the default ordering: deterministic and human-scannable.
func byUsername(a, b SuggestionDTO) bool {
	if a.Username != b.Username {
		return strings.Compare(a.Username, b.Username) < 0
	}
	return a.UserID < b.UserID
}

// SuggestionService produces candidate users for a given user, excluding
// anyone the user already has a live relationship with.
type SuggestionService struct {
	db      *gorm.DB
	compare Comparator
}

// NewSuggestionService constructs a SuggestionService. A nil comparator
// falls back to username order.
func NewSuggestionService(db *gorm.DB, compare Comparator) (*SuggestionService, error) {
	if db == nil {
		return nil, errors.New("suggestion service: db is required")
	}
	if compare == nil {
		compare = byUsername
	}
	return &SuggestionService{db: db, compare: compare}, nil
}

const defaultSuggestionLimit = 20

// Suggest returns up to limit candidates for the user. Candidates never
// include the user themselves, anyone with a current pending, matched or
// blocked relationship with them, or privacy-flagged users. A previously
// declined pair is suggestible again.
func (s *SuggestionService) Suggest(ctx context.Context, userID string, limit int) ([]SuggestionDTO, error) {
	ctx = ensureContext(ctx)
	userID = trimmedID(userID)
	if userID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = defaultSuggestionLimit
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("suggestion service: check user: %w", err)
	}
	if exists == 0 {
		return nil, apperrors.ErrNotFound.WithMessage("user does not exist")
	}

	excluded, err := s.excludedCounterparts(ctx, userID)
	if err != nil {
		return nil, err
	}

	var users []models.User
	query := s.db.WithContext(ctx).
		Preload("Profile").
		Where("id <> ?", userID).
		Where("is_active = ?", true).
		Where("is_private = ?", false)
	if len(excluded) > 0 {
		query = query.Where("id NOT IN ?", excluded)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("suggestion service: load candidates: %w", err)
	}

	candidates := make([]SuggestionDTO, 0, len(users))
	for _, user := range users {
		candidate := SuggestionDTO{UserID: user.ID}
		if user.Profile != nil {
			candidate.Username = user.Profile.Username
			candidate.Bio = user.Profile.Bio
			candidate.Interests = user.Profile.Interests
			candidate.PictureURL = user.Profile.PictureURL
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return s.compare(candidates[i], candidates[j])
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// excludedCounterparts lists the users the given user holds a current
// pending, matched or blocked row with, in either role.
func (s *SuggestionService) excludedCounterparts(ctx context.Context, userID string) ([]string, error) {
	var rows []models.Relationship
	err := s.db.WithContext(ctx).
		Where("superseded_at IS NULL").
		Where("status IN ?", []string{
			models.RelationshipPending,
			models.RelationshipMatched,
			models.RelationshipBlocked,
		}).
		Where("requester_id = ? OR receiver_id = ?", userID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("suggestion service: load relationships: %w", err)
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Other(userID))
	}
	return out, nil
}
