package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	userGetAllPath = "/user/get-all"
	userMePath     = "/user/me"
	authLoginPath  = "/auth/login"
	authLogoutPath = "/auth/logout"
)

func userGetPath(userID string) string {
	return fmt.Sprintf("/user/%s", url.PathEscape(userID))
}

// UserAPI is the HTTP implementation of UserRepository
type UserAPI struct {
	doer Doer
}

func NewUserAPI(doer Doer) *UserAPI {
	return &UserAPI{doer: doer}
}

func (a *UserAPI) GetAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := a.doer.Do(ctx, http.MethodGet, userGetAllPath, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (a *UserAPI) GetByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := a.doer.Do(ctx, http.MethodGet, userGetPath(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthAPI is the HTTP implementation of AuthRepository
type AuthAPI struct {
	doer Doer
}

func NewAuthAPI(doer Doer) *AuthAPI {
	return &AuthAPI{doer: doer}
}

func (a *AuthAPI) Login(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := a.doer.Do(ctx, http.MethodGet, authLoginPath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *AuthAPI) LoginWithPassword(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := a.doer.Do(ctx, http.MethodPost, authLoginPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AuthAPI) Logout(ctx context.Context) error {
	return a.doer.Do(ctx, http.MethodPost, authLogoutPath, nil, nil)
}

func (a *AuthAPI) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := a.doer.Do(ctx, http.MethodGet, userMePath, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
