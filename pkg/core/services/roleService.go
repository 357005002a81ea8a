package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// RoleService reads roles and manages role assignments
type RoleService struct {
	deps Deps
}

func (s *RoleService) List(ctx context.Context, opts ...ReadOptions) ([]string, error) {
	roles, err := cache.Query(ctx, s.deps.Cache, api.RoleKeys.Lists(), queryOptions(StaleRoles, opts), s.deps.Repos.Roles.GetAll)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return roles, nil
}

func (s *RoleService) UserRoles(ctx context.Context, userID string, opts ...ReadOptions) ([]string, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}
	roles, err := cache.Query(ctx, s.deps.Cache, api.RoleKeys.UserRoles(userID), queryOptions(StaleUserRoles, opts),
		func(ctx context.Context) ([]string, error) {
			return s.deps.Repos.Roles.GetUserRoles(ctx, userID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles for user %s: %w", userID, err)
	}
	return roles, nil
}

// Assign gives a user a role
func (s *RoleService) Assign(ctx context.Context, userID, roleName string) error {
	req := model.AssignRoleRequest{UserID: userID, RoleName: roleName}
	return mutation(s.deps, opAssignRole(roleName, s.userLabel(userID)), func() error {
		return s.change(ctx, req, s.deps.Repos.Roles.Assign, "assign")
	})
}

// Remove takes a role away from a user
func (s *RoleService) Remove(ctx context.Context, userID, roleName string) error {
	req := model.AssignRoleRequest{UserID: userID, RoleName: roleName}
	return mutation(s.deps, opRemoveRole(roleName, s.userLabel(userID)), func() error {
		return s.change(ctx, req, s.deps.Repos.Roles.Remove, "remove")
	})
}

func (s *RoleService) change(ctx context.Context, req model.AssignRoleRequest,
	call func(context.Context, model.AssignRoleRequest) (*model.AssignRoleResponse, error), verb string) error {
	if err := model.Validate(req); err != nil {
		return err
	}
	s.deps.Logger.Debug("Changing user role",
		zap.String("action", verb),
		zap.String("user_id", req.UserID),
		zap.String("role", req.RoleName))

	resp, err := call(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to %s role %q: %w", verb, req.RoleName, err)
	}
	if resp != nil && !resp.Success && resp.Message != "" {
		return errors.New(resp.Message)
	}

	s.deps.Cache.Invalidate(api.RoleKeys.UserRoles(req.UserID), api.UserKeys.All())
	return nil
}

func (s *RoleService) Create(ctx context.Context, name string) error {
	return mutation(s.deps, opCreateRole(name), func() error {
		req := model.CreateRoleRequest{Name: name}
		if err := model.Validate(req); err != nil {
			return err
		}
		if err := s.deps.Repos.Roles.Create(ctx, req); err != nil {
			return fmt.Errorf("failed to create role %q: %w", name, err)
		}
		s.deps.Cache.Invalidate(api.RoleKeys.Lists())
		return nil
	})
}

// userLabel names a user in notifications by email when the user list is cached
func (s *RoleService) userLabel(userID string) string {
	users, ok := cache.Peek[[]model.User](s.deps.Cache, api.UserKeys.Lists())
	if !ok {
		return userID
	}
	for _, u := range users {
		if u.ID == userID && u.Email != "" {
			return u.Email
		}
	}
	return userID
}
