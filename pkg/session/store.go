package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/model"
)

// Storage keys, shared with the browser client so a kiosk profile can be migrated as-is
const (
	SnapshotKey = "auth-storage"
	TokenKey    = "auth-token"
)

// Snapshot is the persisted part of the session
type Snapshot struct {
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// Store holds the current user, roles and credential. Only its methods
// mutate session state.
type Store struct {
	mu      sync.RWMutex
	storage Storage
	logger  *zap.Logger
	now     func() time.Time

	user          *model.User
	authenticated bool
	token         string
	loading       bool
}

// NewStore creates a Store persisting to storage. Call Init to load any saved session.
func NewStore(storage Storage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Init loads the persisted snapshot and token. An expired token is dropped.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.storage.Get(ctx, SnapshotKey)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if ok {
		var snapshot Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			// a corrupt snapshot is treated as no session
			s.logger.Warn("Discarding unreadable session snapshot", zap.Error(err))
		} else {
			s.user = snapshot.User
			s.authenticated = snapshot.IsAuthenticated && snapshot.User != nil
		}
	}

	token, ok, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if ok && len(token) > 0 {
		expiry, err := tokenExpiry(string(token))
		switch {
		case err != nil:
			s.logger.Debug("Token has no readable expiry, keeping it", zap.Error(err))
			s.token = string(token)
		case !expiry.IsZero() && !expiry.After(s.now()):
			s.logger.Info("Stored token has expired, discarding it", zap.Time("expiry", expiry))
			if err := s.storage.Remove(ctx, TokenKey); err != nil {
				return fmt.Errorf("failed to remove expired token: %w", err)
			}
		default:
			s.token = string(token)
		}
	}

	s.logger.Debug("Session loaded",
		zap.Bool("authenticated", s.authenticated),
		zap.Bool("has_token", s.token != ""))
	return nil
}

// Login records user as the authenticated user
func (s *Store) Login(ctx context.Context, user *model.User) error {
	if user == nil {
		return fmt.Errorf("login requires a user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user
	s.authenticated = true
	s.loading = false
	return s.persistLocked(ctx)
}

// SetUser replaces the current user; a nil user ends the session
func (s *Store) SetUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user
	s.authenticated = user != nil
	return s.persistLocked(ctx)
}

// SetToken stores the bearer credential
func (s *Store) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if token == "" {
		if err := s.storage.Remove(ctx, TokenKey); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		return nil
	}
	if err := s.storage.Set(ctx, TokenKey, []byte(token)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// SetLoading flags an authentication check in progress. It is not persisted.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// Logout ends the session and removes everything persisted
func (s *Store) Logout(ctx context.Context) error {
	s.logger.Debug("Logging out")
	return s.Clear(ctx)
}

// Clear drops local session remnants. It is called when the service rejects
// the credential, so it must not call the service itself.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.authenticated = false
	s.token = ""
	s.loading = false

	if err := s.storage.Remove(ctx, TokenKey); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	if err := s.storage.Remove(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(Snapshot{User: s.user, IsAuthenticated: s.authenticated})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.storage.Set(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// User returns a copy of the current user, or nil
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	user.Roles = slices.Clone(s.user.Roles)
	return &user
}

// UserID returns the current user's ID, or an empty string
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Roles returns the current user's role names
func (s *Store) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	return slices.Clone(s.user.Roles)
}

func (s *Store) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.HasRole(role)
}

// HasAnyRole reports whether the user holds at least one of roles
func (s *Store) HasAnyRole(roles ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range roles {
		if s.user.HasRole(role) {
			return true
		}
	}
	return false
}

func (s *Store) IsAdmin() bool {
	return s.HasRole(model.RoleAdmin)
}

func (s *Store) IsTeamLead() bool {
	return s.HasRole(model.RoleTeamLead)
}
