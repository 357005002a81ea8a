package services

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// calls counts repository calls by name
type calls struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *calls) hit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

type mockDesks struct {
	calls
	desks     []model.Desk
	getAllErr error
	createErr error
	deleteErr error
	created   []model.CreateDeskRequest
}

func (m *mockDesks) GetAll(ctx context.Context) ([]model.Desk, error) {
	m.hit("GetAll")
	return slices.Clone(m.desks), m.getAllErr
}

func (m *mockDesks) GetByID(ctx context.Context, deskID int) (*model.Desk, error) {
	m.hit("GetByID")
	for _, d := range m.desks {
		if d.DeskID == deskID {
			return &d, nil
		}
	}
	return nil, apiErr(404, "Desk not found")
}

func (m *mockDesks) GetByFloor(ctx context.Context, floorID int) ([]model.Desk, error) {
	m.hit("GetByFloor")
	var out []model.Desk
	for _, d := range m.desks {
		if d.FloorID == floorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDesks) GetAvailable(ctx context.Context, req model.DeskAvailabilityRequest) ([]model.Desk, error) {
	m.hit("GetAvailable")
	return slices.Clone(m.desks), nil
}

func (m *mockDesks) Create(ctx context.Context, req model.CreateDeskRequest) error {
	m.hit("Create")
	m.created = append(m.created, req)
	return m.createErr
}

func (m *mockDesks) Update(ctx context.Context, deskID int, req model.UpdateDeskRequest) error {
	m.hit("Update")
	return nil
}

func (m *mockDesks) Delete(ctx context.Context, deskID int) error {
	m.hit("Delete")
	return m.deleteErr
}

type mockFloors struct {
	calls
	floors    []model.Floor
	updateErr error
}

func (m *mockFloors) GetAll(ctx context.Context) ([]model.Floor, error) {
	m.hit("GetAll")
	return slices.Clone(m.floors), nil
}

func (m *mockFloors) GetByID(ctx context.Context, floorID int) (*model.Floor, error) {
	m.hit("GetByID")
	return &model.Floor{FloorID: floorID}, nil
}

func (m *mockFloors) Create(ctx context.Context, req model.CreateFloorRequest) error {
	m.hit("Create")
	return nil
}

func (m *mockFloors) Update(ctx context.Context, floorID int, req model.UpdateFloorRequest) error {
	m.hit("Update")
	return m.updateErr
}

func (m *mockFloors) Delete(ctx context.Context, floorID int) error {
	m.hit("Delete")
	return nil
}

type mockReservations struct {
	calls
	mine      []model.Reservation
	getErr    error
	createErr error
	cancelErr error
	created   []model.CreateReservationRequest
	cancelled []int
	// onCreate and onCancel run inside the call, before it returns
	onCreate func()
	onCancel func()
	mu       sync.Mutex
}

func (m *mockReservations) list(name string) ([]model.Reservation, error) {
	m.hit(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.mine), m.getErr
}

func (m *mockReservations) GetAll(ctx context.Context) ([]model.Reservation, error) {
	return m.list("GetAll")
}

func (m *mockReservations) GetByID(ctx context.Context, reservationID int) (*model.Reservation, error) {
	m.hit("GetByID")
	return &model.Reservation{ReservationID: reservationID}, m.getErr
}

func (m *mockReservations) GetMine(ctx context.Context) ([]model.Reservation, error) {
	return m.list("GetMine")
}

func (m *mockReservations) GetByDesk(ctx context.Context, deskID int) ([]model.Reservation, error) {
	return m.list("GetByDesk")
}

func (m *mockReservations) GetActive(ctx context.Context) ([]model.Reservation, error) {
	return m.list("GetActive")
}

func (m *mockReservations) GetPast(ctx context.Context) ([]model.Reservation, error) {
	return m.list("GetPast")
}

func (m *mockReservations) GetUpcoming(ctx context.Context) ([]model.Reservation, error) {
	return m.list("GetUpcoming")
}

func (m *mockReservations) Create(ctx context.Context, req model.CreateReservationRequest) error {
	m.hit("Create")
	if m.onCreate != nil {
		m.onCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return m.createErr
}

func (m *mockReservations) Update(ctx context.Context, reservationID int, req model.UpdateReservationRequest) error {
	m.hit("Update")
	return nil
}

func (m *mockReservations) UpdateStatus(ctx context.Context, reservationID int, req model.UpdateReservationStatusRequest) error {
	m.hit("UpdateStatus")
	return nil
}

func (m *mockReservations) Cancel(ctx context.Context, reservationID int) error {
	m.hit("Cancel")
	if m.onCancel != nil {
		m.onCancel()
	}
	m.cancelled = append(m.cancelled, reservationID)
	return m.cancelErr
}

func (m *mockReservations) Delete(ctx context.Context, reservationID int) error {
	m.hit("Delete")
	return nil
}

type mockRoles struct {
	calls
	roles     []string
	userRoles map[string][]string
	assignErr error
	response  *model.AssignRoleResponse
	assigned  []model.AssignRoleRequest
	removed   []model.AssignRoleRequest
}

func (m *mockRoles) GetAll(ctx context.Context) ([]string, error) {
	m.hit("GetAll")
	return slices.Clone(m.roles), nil
}

func (m *mockRoles) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	m.hit("GetUserRoles")
	return slices.Clone(m.userRoles[userID]), nil
}

func (m *mockRoles) Assign(ctx context.Context, req model.AssignRoleRequest) (*model.AssignRoleResponse, error) {
	m.hit("Assign")
	m.assigned = append(m.assigned, req)
	if m.assignErr != nil {
		return nil, m.assignErr
	}
	if m.response != nil {
		return m.response, nil
	}
	return &model.AssignRoleResponse{Success: true}, nil
}

func (m *mockRoles) Remove(ctx context.Context, req model.AssignRoleRequest) (*model.AssignRoleResponse, error) {
	m.hit("Remove")
	m.removed = append(m.removed, req)
	return &model.AssignRoleResponse{Success: true}, nil
}

func (m *mockRoles) Create(ctx context.Context, req model.CreateRoleRequest) error {
	m.hit("Create")
	return nil
}

type mockUsers struct {
	calls
	users []model.User
}

func (m *mockUsers) GetAll(ctx context.Context) ([]model.User, error) {
	m.hit("GetAll")
	return slices.Clone(m.users), nil
}

func (m *mockUsers) GetByID(ctx context.Context, userID string) (*model.User, error) {
	m.hit("GetByID")
	for _, u := range m.users {
		if u.ID == userID {
			return &u, nil
		}
	}
	return nil, apiErr(404, "User not found")
}

type mockAuth struct {
	calls
	user      *model.User
	token     string
	loginErr  error
	meErr     error
	logoutErr error
}

func (m *mockAuth) Login(ctx context.Context) (*model.User, error) {
	m.hit("Login")
	return m.user, m.loginErr
}

func (m *mockAuth) LoginWithPassword(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	m.hit("LoginWithPassword")
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &model.LoginResponse{JWTToken: m.token}, nil
}

func (m *mockAuth) Logout(ctx context.Context) error {
	m.hit("Logout")
	return m.logoutErr
}

func (m *mockAuth) Me(ctx context.Context) (*model.User, error) {
	m.hit("Me")
	if m.meErr != nil {
		return nil, m.meErr
	}
	return m.user, nil
}

type mockSession struct {
	mu            sync.Mutex
	user          *model.User
	token         string
	loadingSeen   []bool
	loginErr      error
	logoutCalls   int
	clearCalls    int
	tokenHistory  []string
	authenticated bool
}

func (m *mockSession) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

func (m *mockSession) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

func (m *mockSession) Login(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return m.loginErr
	}
	m.user = user
	m.authenticated = true
	return nil
}

func (m *mockSession) SetToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.tokenHistory = append(m.tokenHistory, token)
	return nil
}

func (m *mockSession) SetLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadingSeen = append(m.loadingSeen, loading)
}

func (m *mockSession) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	m.user = nil
	m.token = ""
	m.authenticated = false
	return nil
}

func (m *mockSession) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	m.user = nil
	m.token = ""
	m.authenticated = false
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

type fixture struct {
	svc          *Services
	cache        *cache.Cache
	desks        *mockDesks
	floors       *mockFloors
	reservations *mockReservations
	roles        *mockRoles
	users        *mockUsers
	auth         *mockAuth
	session      *mockSession
	notifier     *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := cache.New(cache.Config{
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
		Retryable:     Retryable,
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(c.Wait)

	f := &fixture{
		cache:        c,
		desks:        &mockDesks{},
		floors:       &mockFloors{},
		reservations: &mockReservations{},
		roles:        &mockRoles{},
		users:        &mockUsers{},
		auth:         &mockAuth{},
		session:      &mockSession{user: &model.User{ID: "user-1", Email: "user@example.com"}, authenticated: true},
		notifier:     &recordingNotifier{},
	}
	f.svc = New(Deps{
		Cache: c,
		Repos: &api.Repositories{
			Desks:        f.desks,
			Floors:       f.floors,
			Reservations: f.reservations,
			Roles:        f.roles,
			Users:        f.users,
			Auth:         f.auth,
		},
		Session:  f.session,
		Notifier: f.notifier,
		Logger:   zap.NewNop(),
	})
	return f
}

// future returns a one hour range starting the given number of hours from now
func future(hoursAhead int) (model.Timestamp, model.Timestamp) {
	start := time.Now().Add(time.Duration(hoursAhead) * time.Hour).Truncate(time.Second)
	return model.NewTimestamp(start), model.NewTimestamp(start.Add(time.Hour))
}
