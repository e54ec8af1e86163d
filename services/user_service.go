package services

import (
	"context"
	"fmt"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/repository"
)

// UserService covers the caller's own account and the user directory.
type UserService interface {
	Me(ctx context.Context, userID string) (*models.User, error)
	// List returns every user but the caller, ordered by username.
	List(ctx context.Context, userID string) ([]models.UserSummary, error)
	UpdateSettings(ctx context.Context, userID string, req *models.UpdateSettingsRequest) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService, constructor.
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *userService) List(ctx context.Context, userID string) ([]models.UserSummary, error) {
	return s.userRepo.ListExcept(ctx, userID)
}

// UpdateSettings applies a partial patch; absent fields keep their value.
func (s *userService) UpdateSettings(ctx context.Context, userID string, req *models.UpdateSettingsRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Settings = req.Apply(user.Settings)
	if err := s.userRepo.UpdateSettings(ctx, userID, user.Settings); err != nil {
		return nil, err
	}
	return user, nil
}
