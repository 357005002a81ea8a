package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	roleAssignPath = "/role/assign-role"
	roleRemovePath = "/role/remove-role"
	roleAllPath    = "/role/all-roles"
	roleCreatePath = "/role/create-role"
)

func roleUserRolesPath(userID string) string {
	return fmt.Sprintf("/role/user-roles/%s", url.PathEscape(userID))
}

// RoleAPI is the HTTP implementation of RoleRepository
type RoleAPI struct {
	doer Doer
}

func NewRoleAPI(doer Doer) *RoleAPI {
	return &RoleAPI{doer: doer}
}

func (a *RoleAPI) GetAll(ctx context.Context) ([]string, error) {
	var roles []string
	if err := a.doer.Do(ctx, http.MethodGet, roleAllPath, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (a *RoleAPI) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	var roles []string
	if err := a.doer.Do(ctx, http.MethodGet, roleUserRolesPath(userID), nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (a *RoleAPI) Assign(ctx context.Context, req model.AssignRoleRequest) (*model.AssignRoleResponse, error) {
	var resp model.AssignRoleResponse
	if err := a.doer.Do(ctx, http.MethodPost, roleAssignPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove sends the assignment in the DELETE body, as the service expects
func (a *RoleAPI) Remove(ctx context.Context, req model.AssignRoleRequest) (*model.AssignRoleResponse, error) {
	var resp model.AssignRoleResponse
	if err := a.doer.Do(ctx, http.MethodDelete, roleRemovePath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *RoleAPI) Create(ctx context.Context, req model.CreateRoleRequest) error {
	return a.doer.Do(ctx, http.MethodPost, roleCreatePath, req, nil)
}
