package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/pkg/crypto"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

// UserDTO represents the API-friendly account payload.
type UserDTO struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	IsPrivate bool        `json:"is_private"`
	IsActive  bool        `json:"is_active"`
	Profile   *ProfileDTO `json:"profile,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// RegisterInput defines attributes required to create an account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Username string `json:"username" validate:"required,min=3,max=64"`
}

// UserService owns account records. Identity sits outside the relationship
// engine; other services only ever reference users by ID.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Register creates an account with its profile in one transaction.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if email == "" || input.Password == "" || username == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("email, password and username are required")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Email:    email,
		Password: hash,
		IsActive: true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.ErrConflict.WithMessage("email is already registered")
			}
			return fmt.Errorf("user service: create user: %w", err)
		}

		profile := models.Profile{
			UserID:   user.ID,
			Username: username,
		}
		if err := tx.Create(&profile).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.ErrConflict.WithMessage("username is already taken")
			}
			return fmt.Errorf("user service: create profile: %w", err)
		}

		user.Profile = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := mapUser(user)
	return &dto, nil
}

// Authenticate verifies credentials and returns the account.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*UserDTO, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Preload("Profile").First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.ErrForbidden.WithMessage("account is disabled")
	}
	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	dto := mapUser(user)
	return &dto, nil
}

// GetByID loads an account with its profile.
func (s *UserService) GetByID(ctx context.Context, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)
	userID = trimmedID(userID)
	if userID == "" {
		return nil, apperrors.ErrInvalidArgument.WithMessage("user id is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Preload("Profile").First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	dto := mapUser(user)
	return &dto, nil
}

func mapUser(user models.User) UserDTO {
	dto := UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		IsPrivate: user.IsPrivate,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
	if user.Profile != nil {
		profile := mapProfile(*user.Profile)
		dto.Profile = &profile
	}
	return dto
}
