package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/apiclient"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// How long each kind of data is served from the cache before revalidation
const (
	StaleAvailableDesks   = 30 * time.Second
	StaleDesks            = 2 * time.Minute
	StaleFloors           = 5 * time.Minute
	StaleRoles            = 5 * time.Minute
	StaleUserRoles        = 2 * time.Minute
	StaleUsers            = 2 * time.Minute
	StaleMyReservations   = 2 * time.Minute
	StaleReservations     = 30 * time.Second
	StalePastReservations = time.Minute
	StaleCurrentUser      = 5 * time.Minute
)

// SessionStore is the part of the session the services read and update
type SessionStore interface {
	UserID() string
	IsAuthenticated() bool
	Login(ctx context.Context, user *model.User) error
	SetToken(ctx context.Context, token string) error
	SetLoading(loading bool)
	Logout(ctx context.Context) error
	Clear(ctx context.Context) error
}

// ReadOptions tunes a single read
type ReadOptions struct {
	// Fresh blocks on a refetch instead of returning a stale value
	Fresh bool
}

func queryOptions(staleTime time.Duration, opts []ReadOptions) cache.QueryOptions {
	q := cache.QueryOptions{StaleTime: staleTime}
	for _, o := range opts {
		q.RequireFresh = q.RequireFresh || o.Fresh
	}
	return q
}

// Retryable reports whether a failed read is worth retrying: transport
// failures and server errors are, client errors (4xx) never are
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	status := apiclient.StatusOf(err)
	return status == 0 || status >= http.StatusInternalServerError
}

// Deps is everything the services share
type Deps struct {
	Cache    *cache.Cache
	Repos    *api.Repositories
	Session  SessionStore
	Notifier Notifier
	Logger   *zap.Logger
}

// Services bundles one service per resource over a single cache
type Services struct {
	Desks        *DeskService
	Floors       *FloorService
	Reservations *ReservationService
	Roles        *RoleService
	Users        *UserService
	Auth         *AuthService
}

// New creates the services
func New(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &Services{
		Desks:        &DeskService{deps: deps},
		Floors:       &FloorService{deps: deps},
		Reservations: &ReservationService{deps: deps},
		Roles:        &RoleService{deps: deps},
		Users:        &UserService{deps: deps},
		Auth:         newAuthService(deps),
	}
}

// Clear drops the local session and every cached query. The API client calls
// it when the service rejects the credential: cached data belongs to the user
// whose credential was rejected and must not be served to whoever signs in next.
func (s *Services) Clear(ctx context.Context) error {
	s.Auth.forget()
	if s.Auth.deps.Cache != nil {
		s.Auth.deps.Cache.Clear()
	}
	if s.Auth.deps.Session == nil {
		return nil
	}
	if err := s.Auth.deps.Session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// mutation runs fn and reports its outcome through the notifier
func mutation(deps Deps, op operation, fn func() error) error {
	if err := fn(); err != nil {
		deps.Logger.Debug("Mutation failed", zap.String("operation", op.name), zap.Error(err))
		deps.Notifier.Error(failureMessage(op, err))
		return err
	}
	deps.Notifier.Success(op.success)
	return nil
}
