package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

var errNoSession = errors.New("no session store configured")

// AuthService signs users in and out and keeps the session store in step
// with the server
type AuthService struct {
	deps Deps

	mu sync.Mutex
	// owner is the user the cached queries were fetched for
	owner string
}

func newAuthService(deps Deps) *AuthService {
	s := &AuthService{deps: deps}
	if deps.Session != nil {
		s.owner = deps.Session.UserID()
	}
	return s
}

// adopt makes user the owner of the cache, dropping everything cached for
// anyone else, and caches user as the current user
func (s *AuthService) adopt(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != user.ID {
		s.deps.Logger.Debug("Signed-in user changed, clearing cache",
			zap.String("previous_user_id", s.owner),
			zap.String("user_id", user.ID))
		s.deps.Cache.Clear()
		s.owner = user.ID
	}
	s.deps.Cache.Set(api.AuthKeys.Me(), user)
}

func (s *AuthService) forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = ""
}

// Me returns the signed-in user. A 401 is not retried.
func (s *AuthService) Me(ctx context.Context, opts ...ReadOptions) (*model.User, error) {
	q := queryOptions(StaleCurrentUser, opts)
	q.DisableRetry = true
	user, err := cache.Query(ctx, s.deps.Cache, api.AuthKeys.Me(), q, s.deps.Repos.Auth.Me)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current user: %w", err)
	}
	return user, nil
}

// LoginWithPassword exchanges credentials for a bearer token, then loads the
// user it belongs to into the session
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (*model.User, error) {
	var user *model.User
	err := mutation(s.deps, opLogin, func() error {
		req := model.LoginRequest{Email: email, Password: password}
		if err := model.Validate(req); err != nil {
			return err
		}
		if s.deps.Session == nil {
			return errNoSession
		}

		s.deps.Logger.Debug("Logging in with password", zap.String("email", email))
		resp, err := s.deps.Repos.Auth.LoginWithPassword(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
		if err := s.deps.Session.SetToken(ctx, resp.JWTToken); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		user, err = s.deps.Repos.Auth.Me(ctx)
		if err != nil {
			if clearErr := s.deps.Session.SetToken(ctx, ""); clearErr != nil {
				s.deps.Logger.Warn("Failed to discard token", zap.Error(clearErr))
			}
			return fmt.Errorf("failed to fetch current user: %w", err)
		}
		return s.establish(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// WindowsLogin authenticates with the caller's integrated credentials
func (s *AuthService) WindowsLogin(ctx context.Context) (*model.User, error) {
	var user *model.User
	err := mutation(s.deps, opWindowsLogin, func() error {
		if s.deps.Session == nil {
			return errNoSession
		}
		var err error
		user, err = s.deps.Repos.Auth.Login(ctx)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
		return s.establish(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) establish(ctx context.Context, user *model.User) error {
	if err := s.deps.Session.Login(ctx, user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.adopt(user)
	s.deps.Logger.Debug("Logged in", zap.String("user_id", user.ID), zap.Strings("roles", user.Roles))
	return nil
}

// Logout ends the session on the server, then clears local state and every
// cached query. Local state is cleared even when the server call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	return mutation(s.deps, opLogout, func() error {
		apiErr := s.deps.Repos.Auth.Logout(ctx)
		if apiErr != nil {
			s.deps.Logger.Debug("Server logout failed, clearing local session anyway", zap.Error(apiErr))
		}

		var sessionErr error
		if s.deps.Session != nil {
			sessionErr = s.deps.Session.Logout(ctx)
		}
		s.forget()
		s.deps.Cache.Clear()

		if apiErr != nil {
			return fmt.Errorf("failed to log out: %w", apiErr)
		}
		if sessionErr != nil {
			return fmt.Errorf("failed to clear session: %w", sessionErr)
		}
		return nil
	})
}

// Probe tries to establish a session from existing credentials when nobody
// is signed in. It reports whether a session exists afterwards; failures
// are logged and otherwise ignored.
func (s *AuthService) Probe(ctx context.Context) bool {
	if s.deps.Session == nil {
		return false
	}
	if s.deps.Session.IsAuthenticated() {
		return true
	}

	s.deps.Session.SetLoading(true)
	defer s.deps.Session.SetLoading(false)

	user, err := s.Me(ctx, ReadOptions{Fresh: true})
	if err != nil {
		s.deps.Logger.Debug("Automatic authentication failed", zap.Error(err))
		return false
	}
	if err := s.deps.Session.Login(ctx, user); err != nil {
		s.deps.Logger.Debug("Failed to save session after automatic authentication", zap.Error(err))
		return false
	}
	s.adopt(user)
	s.deps.Logger.Debug("Automatic authentication succeeded", zap.String("user_name", user.UserName))
	return true
}
