package services

import (
	"context"
	"fmt"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// UserService reads user accounts
type UserService struct {
	deps Deps
}

func (s *UserService) List(ctx context.Context, opts ...ReadOptions) ([]model.User, error) {
	users, err := cache.Query(ctx, s.deps.Cache, api.UserKeys.Lists(), queryOptions(StaleUsers, opts), s.deps.Repos.Users.GetAll)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, userID string, opts ...ReadOptions) (*model.User, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}
	user, err := cache.Query(ctx, s.deps.Cache, api.UserKeys.Detail(userID), queryOptions(StaleUsers, opts),
		func(ctx context.Context) (*model.User, error) {
			return s.deps.Repos.Users.GetByID(ctx, userID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return user, nil
}
