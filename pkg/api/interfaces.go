package api

import (
	"context"

	"github.com/jakechorley/desk-booking/pkg/model"
)

// Doer is the transport the repositories call through. *apiclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
	DoStatus(ctx context.Context, method, path string, body, out any) (int, error)
}

// DeskRepository defines the desk endpoints
type DeskRepository interface {
	GetAll(ctx context.Context) ([]model.Desk, error)
	GetByID(ctx context.Context, deskID int) (*model.Desk, error)
	GetByFloor(ctx context.Context, floorID int) ([]model.Desk, error)
	GetAvailable(ctx context.Context, req model.DeskAvailabilityRequest) ([]model.Desk, error)
	Create(ctx context.Context, req model.CreateDeskRequest) error
	Update(ctx context.Context, deskID int, req model.UpdateDeskRequest) error
	Delete(ctx context.Context, deskID int) error
}

// FloorRepository defines the floor endpoints
type FloorRepository interface {
	GetAll(ctx context.Context) ([]model.Floor, error)
	GetByID(ctx context.Context, floorID int) (*model.Floor, error)
	Create(ctx context.Context, req model.CreateFloorRequest) error
	Update(ctx context.Context, floorID int, req model.UpdateFloorRequest) error
	Delete(ctx context.Context, floorID int) error
}

// ReservationRepository defines the reservation endpoints
type ReservationRepository interface {
	GetAll(ctx context.Context) ([]model.Reservation, error)
	GetByID(ctx context.Context, reservationID int) (*model.Reservation, error)
	GetMine(ctx context.Context) ([]model.Reservation, error)
	GetByDesk(ctx context.Context, deskID int) ([]model.Reservation, error)
	GetActive(ctx context.Context) ([]model.Reservation, error)
	GetPast(ctx context.Context) ([]model.Reservation, error)
	GetUpcoming(ctx context.Context) ([]model.Reservation, error)
	Create(ctx context.Context, req model.CreateReservationRequest) error
	Update(ctx context.Context, reservationID int, req model.UpdateReservationRequest) error
	UpdateStatus(ctx context.Context, reservationID int, req model.UpdateReservationStatusRequest) error
	Cancel(ctx context.Context, reservationID int) error
	Delete(ctx context.Context, reservationID int) error
}

// RoleRepository defines the role endpoints
type RoleRepository interface {
	GetAll(ctx context.Context) ([]string, error)
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
	Assign(ctx context.Context, req model.AssignRoleRequest) (*model.AssignRoleResponse, error)
	Remove(ctx context.Context, req model.AssignRoleRequest) (*model.AssignRoleResponse, error)
	Create(ctx context.Context, req model.CreateRoleRequest) error
}

// UserRepository defines the user endpoints
type UserRepository interface {
	GetAll(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
}

// AuthRepository defines the authentication endpoints
type AuthRepository interface {
	// Login performs integrated (Windows) authentication and returns the user
	Login(ctx context.Context) (*model.User, error)
	// LoginWithPassword exchanges credentials for a bearer token
	LoginWithPassword(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.User, error)
}

// Repositories bundles one repository per entity
type Repositories struct {
	Desks        DeskRepository
	Floors       FloorRepository
	Reservations ReservationRepository
	Roles        RoleRepository
	Users        UserRepository
	Auth         AuthRepository
}

// NewRepositories builds the HTTP-backed repositories over one transport
func NewRepositories(doer Doer) *Repositories {
	return &Repositories{
		Desks:        NewDeskAPI(doer),
		Floors:       NewFloorAPI(doer),
		Reservations: NewReservationAPI(doer),
		Roles:        NewRoleAPI(doer),
		Users:        NewUserAPI(doer),
		Auth:         NewAuthAPI(doer),
	}
}
