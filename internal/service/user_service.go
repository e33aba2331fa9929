package service

import (
	"context"
	"errors"

	"github.com/busbuddy/backend/internal/domain"
)

// UserService manages passenger and driver profiles and their eco points
type UserService struct {
	repo DataRepository
}

// NewUserService creates a new user service
func NewUserService(repo DataRepository) *UserService {
	return &UserService{repo: repo}
}

// GetByFirebaseUID returns the profile linked to a Firebase account
func (s *UserService) GetByFirebaseUID(ctx context.Context, firebaseUID string) (domain.User, error) {
	return s.repo.GetUserByFirebaseUID(ctx, firebaseUID)
}

// Register creates a profile, or returns the existing one for the same
// Firebase account. created is false when nothing was written.
func (s *UserService) Register(ctx context.Context, req domain.NewUser) (user domain.User, created bool, err error) {
	if err := req.Normalize(); err != nil {
		return domain.User{}, false, err
	}

	existing, err := s.repo.GetUserByFirebaseUID(ctx, req.FirebaseUID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return domain.User{}, false, err
	}

	user, err = s.repo.CreateUser(ctx, req)
	if errors.Is(err, domain.ErrDuplicateUser) {
		// a concurrent registration for the same account may have won
		if existing, lookupErr := s.repo.GetUserByFirebaseUID(ctx, req.FirebaseUID); lookupErr == nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// SetEcoPoints replaces the eco point balance of a user
func (s *UserService) SetEcoPoints(ctx context.Context, id string, u domain.EcoPointsUpdate) (domain.User, error) {
	points, err := u.Value()
	if err != nil {
		return domain.User{}, err
	}
	return s.repo.SetEcoPoints(ctx, id, points)
}
