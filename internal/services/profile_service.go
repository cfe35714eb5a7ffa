package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

// ProfileDTO represents the API-friendly profile payload.
type ProfileDTO struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Bio        string    `json:"bio,omitempty"`
	Interests  string    `json:"interests,omitempty"`
	PictureURL string    `json:"picture_url,omitempty"`
	IsPrivate  bool      `json:"is_private"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpdateProfileInput carries partial profile mutations. Nil fields are left
// untouched.
type UpdateProfileInput struct {
	Username   *string `json:"username" validate:"omitempty,min=3,max=64"`
	Bio        *string `json:"bio" validate:"omitempty,max=2048"`
	Interests  *string `json:"interests" validate:"omitempty,max=2048"`
	PictureURL *string `json:"picture_url" validate:"omitempty,max=2048"`
	IsPrivate  *bool   `json:"is_private"`
}

// ProfileService owns profile rows. A profile is mutated only by its owner.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db}, nil
}

// Get returns the profile for the given user.
func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileDTO, error) {
	ctx = ensureContext(ctx)
	userID = trimmedID(userID)
	if userID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	profile, privacy, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	dto := mapProfile(*profile)
	dto.IsPrivate = privacy
	return &dto, nil
}

// Update applies a partial mutation to the actor's own profile.
func (s *ProfileService) Update(ctx context.Context, actorID string, input UpdateProfileInput) (*ProfileDTO, error) {
	ctx = ensureContext(ctx)
	actorID = trimmedID(actorID)
	if actorID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	profile, privacy, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, apperrors.ErrInvalidArgument.WithMessage("username cannot be empty")
		}
		updates["username"] = username
	}
	if input.Bio != nil {
		updates["bio"] = strings.TrimSpace(*input.Bio)
	}
	if input.Interests != nil {
		updates["interests"] = strings.TrimSpace(*input.Interests)
	}
	if input.PictureURL != nil {
		updates["picture_url"] = strings.TrimSpace(*input.PictureURL)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(profile).Updates(updates).Error; err != nil {
				if isUniqueConstraintError(err) {
					return apperrors.ErrConflict.WithMessage("username is already taken")
				}
				return fmt.Errorf("profile service: update profile: %w", err)
			}
		}

		if input.IsPrivate != nil && *input.IsPrivate != privacy {
			if err := tx.Model(&models.User{}).Where("id = ?", actorID).
				Update("is_private", *input.IsPrivate).Error; err != nil {
				return fmt.Errorf("profile service: update privacy: %w", err)
			}
			privacy = *input.IsPrivate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refreshed, _, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}

	dto := mapProfile(*refreshed)
	dto.IsPrivate = privacy
	return &dto, nil
}

func (s *ProfileService) load(ctx context.Context, userID string) (*models.Profile, bool, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.ErrNotFound
		}
		return nil, false, fmt.Errorf("profile service: load profile: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("is_private").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.ErrNotFound
		}
		return nil, false, fmt.Errorf("profile service: load user: %w", err)
	}

	return &profile, user.IsPrivate, nil
}

func mapProfile(profile models.Profile) ProfileDTO {
	return ProfileDTO{
		UserID:     profile.UserID,
		Username:   profile.Username,
		Bio:        profile.Bio,
		Interests:  profile.Interests,
		PictureURL: profile.PictureURL,
		UpdatedAt:  profile.UpdatedAt,
	}
}
