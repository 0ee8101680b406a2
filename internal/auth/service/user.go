package service

import (
	"context"
	"errors"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/store"
)

var ErrUserNotFound = errors.New("user not found")

// UserService serves profile lookups for authenticated principals.
type UserService struct {
	Store store.Store
}

func (s *UserService) GetByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}
