package fakeapi

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jakechorley/desk-booking/pkg/model"
)

// httpError is a failure with the status the handler should answer with
type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string {
	return e.Message
}

func newHTTPError(status int, format string, args ...any) *httpError {
	return &httpError{Status: status, Message: fmt.Sprintf(format, args...)}
}

var (
	errNotFound  = func(what string, id any) *httpError { return newHTTPError(http.StatusNotFound, "%s %v not found", what, id) }
	errForbidden = newHTTPError(http.StatusForbidden, "Forbidden")
)

// SeedUser is an account created when the server starts
type SeedUser struct {
	Email    string
	UserName string
	Password string
	Roles    []string
}

type account struct {
	user         model.User
	passwordHash []byte
}

type reservation struct {
	model.Reservation
	userID string
}

// store is the in-memory state behind the fake service
type store struct {
	mu  sync.Mutex
	now func() time.Time

	floors       map[int]*model.Floor
	desks        map[int]*model.Desk
	reservations map[int]*reservation
	accounts     map[string]*account
	roles        []string

	nextFloorID       int
	nextDeskID        int
	nextReservationID int
}

func newStore(now func() time.Time) *store {
	return &store{
		now:               now,
		floors:            map[int]*model.Floor{},
		desks:             map[int]*model.Desk{},
		reservations:      map[int]*reservation{},
		accounts:          map[string]*account{},
		roles:             []string{model.RoleAdmin, model.RoleTeamLead, model.RoleUser},
		nextFloorID:       1,
		nextDeskID:        1,
		nextReservationID: 1,
	}
}

func (s *store) addAccount(seed SeedUser) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", seed.Email, err)
	}
	roles := slices.Clone(seed.Roles)
	if len(roles) == 0 {
		roles = []string{model.RoleUser}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &account{
		user: model.User{
			ID:       uuid.NewString(),
			Email:    seed.Email,
			UserName: cmp.Or(seed.UserName, seed.Email),
			Roles:    roles,
		},
		passwordHash: hash,
	}
	s.accounts[acc.user.ID] = acc
	u := copyUser(acc.user)
	return &u, nil
}

func copyUser(u model.User) model.User {
	u.Roles = slices.Clone(u.Roles)
	return u
}

// Accounts

func (s *store) authenticate(email, password string) (*model.User, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if !strings.EqualFold(acc.user.Email, email) {
			continue
		}
		if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
			break
		}
		u := copyUser(acc.user)
		return &u, nil
	}
	return nil, newHTTPError(http.StatusUnauthorized, "Invalid email or password")
}

func (s *store) userByEmail(email string) (*model.User, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.user.Email, email) {
			u := copyUser(acc.user)
			return &u, nil
		}
	}
	return nil, errNotFound("user", email)
}

func (s *store) user(id string) (*model.User, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, errNotFound("user", id)
	}
	u := copyUser(acc.user)
	return &u, nil
}

func (s *store) users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, copyUser(acc.user))
	}
	slices.SortFunc(out, func(a, b model.User) int { return strings.Compare(a.Email, b.Email) })
	return out
}

// Roles

func (s *store) allRoles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.roles)
}

func (s *store) createRole(name string) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.roles, name) {
		return newHTTPError(http.StatusConflict, "Role %s already exists", name)
	}
	s.roles = append(s.roles, name)
	return nil
}

func (s *store) assignRole(userID, role string) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return errNotFound("user", userID)
	}
	if !slices.Contains(s.roles, role) {
		return errNotFound("role", role)
	}
	if slices.Contains(acc.user.Roles, role) {
		return newHTTPError(http.StatusConflict, "User already has role %s", role)
	}
	acc.user.Roles = append(acc.user.Roles, role)
	return nil
}

func (s *store) removeRole(userID, role string) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return errNotFound("user", userID)
	}
	i := slices.Index(acc.user.Roles, role)
	if i < 0 {
		return newHTTPError(http.StatusBadRequest, "User does not have role %s", role)
	}
	acc.user.Roles = slices.Delete(acc.user.Roles, i, i+1)
	return nil
}

// Floors

func (s *store) allFloors() []model.Floor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Floor, 0, len(s.floors))
	for _, f := range s.floors {
		out = append(out, s.floorLocked(f))
	}
	slices.SortFunc(out, func(a, b model.Floor) int { return cmp.Compare(a.FloorNumber, b.FloorNumber) })
	return out
}

func (s *store) floorLocked(f *model.Floor) model.Floor {
	out := *f
	out.DeskCount = 0
	for _, d := range s.desks {
		if d.FloorID == f.FloorID {
			out.DeskCount++
		}
	}
	return out
}

func (s *store) floor(id int) (*model.Floor, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floors[id]
	if !ok {
		return nil, errNotFound("floor", id)
	}
	out := s.floorLocked(f)
	return &out, nil
}

func (s *store) floorNumberTakenLocked(number, except int) bool {
	for _, f := range s.floors {
		if f.FloorNumber == number && f.FloorID != except {
			return true
		}
	}
	return false
}

func (s *store) createFloor(number int) (int, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.floorNumberTakenLocked(number, 0) {
		return 0, newHTTPError(http.StatusConflict, "Floor %d already exists", number)
	}
	id := s.nextFloorID
	s.nextFloorID++
	s.floors[id] = &model.Floor{FloorID: id, FloorNumber: number, CreatedAt: model.NewTimestamp(s.now())}
	return id, nil
}

func (s *store) updateFloor(id, number int) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floors[id]
	if !ok {
		return errNotFound("floor", id)
	}
	if s.floorNumberTakenLocked(number, id) {
		return newHTTPError(http.StatusConflict, "Floor %d already exists", number)
	}
	f.FloorNumber = number
	for _, d := range s.desks {
		if d.FloorID == id {
			d.FloorNumber = fmt.Sprint(number)
		}
	}
	return nil
}

func (s *store) deleteFloor(id int) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.floors[id]; !ok {
		return errNotFound("floor", id)
	}
	for _, d := range s.desks {
		if d.FloorID == id {
			return newHTTPError(http.StatusConflict, "Floor still has desks")
		}
	}
	delete(s.floors, id)
	return nil
}

// Desks

// deskLocked fills in the availability snapshot as of now
func (s *store) deskLocked(d *model.Desk) model.Desk {
	out := *d
	out.IsAvailable = true
	out.NextReservationStart = nil
	now := s.now()
	for _, r := range s.reservations {
		if r.DeskID != d.DeskID || r.Status == model.StatusCancelled || !r.EndTime.After(now) {
			continue
		}
		if !r.StartTime.After(now) {
			out.IsAvailable = false
			continue
		}
		if out.NextReservationStart == nil || r.StartTime.Before(out.NextReservationStart.Time) {
			start := r.StartTime
			out.NextReservationStart = &start
		}
	}
	return out
}

func (s *store) listDesks(keep func(*model.Desk) bool) []model.Desk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Desk, 0, len(s.desks))
	for _, d := range s.desks {
		if keep(d) {
			out = append(out, s.deskLocked(d))
		}
	}
	slices.SortFunc(out, func(a, b model.Desk) int { return cmp.Compare(a.DeskID, b.DeskID) })
	return out
}

func (s *store) allDesks() []model.Desk {
	return s.listDesks(func(*model.Desk) bool { return true })
}

func (s *store) desksOnFloor(floorID int) []model.Desk {
	return s.listDesks(func(d *model.Desk) bool { return d.FloorID == floorID })
}

// availableDesks lists desks with no live reservation overlapping [start, end)
func (s *store) availableDesks(start, end time.Time) []model.Desk {
	busy := map[int]bool{}
	s.mu.Lock()
	for _, r := range s.reservations {
		if r.Status != model.StatusCancelled && overlaps(r.StartTime.Time, r.EndTime.Time, start, end) {
			busy[r.DeskID] = true
		}
	}
	s.mu.Unlock()
	return s.listDesks(func(d *model.Desk) bool { return !busy[d.DeskID] })
}

func (s *store) desk(id int) (*model.Desk, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.desks[id]
	if !ok {
		return nil, errNotFound("desk", id)
	}
	out := s.deskLocked(d)
	return &out, nil
}

func (s *store) deskNameTakenLocked(name string, floorID, except int) bool {
	for _, d := range s.desks {
		if d.FloorID == floorID && d.DeskID != except && strings.EqualFold(d.DeskName, name) {
			return true
		}
	}
	return false
}

func (s *store) createDesk(name string, floorID int) (int, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.floors[floorID]
	if !ok {
		return 0, errNotFound("floor", floorID)
	}
	if s.deskNameTakenLocked(name, floorID, 0) {
		return 0, newHTTPError(http.StatusConflict, "Desk %s already exists on floor %d", name, f.FloorNumber)
	}
	id := s.nextDeskID
	s.nextDeskID++
	s.desks[id] = &model.Desk{DeskID: id, DeskName: name, FloorID: floorID, FloorNumber: fmt.Sprint(f.FloorNumber)}
	return id, nil
}

func (s *store) updateDesk(id int, name string, floorID int) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.desks[id]
	if !ok {
		return errNotFound("desk", id)
	}
	f, ok := s.floors[floorID]
	if !ok {
		return errNotFound("floor", floorID)
	}
	if s.deskNameTakenLocked(name, floorID, id) {
		return newHTTPError(http.StatusConflict, "Desk %s already exists on floor %d", name, f.FloorNumber)
	}
	d.DeskName = name
	d.FloorID = floorID
	d.FloorNumber = fmt.Sprint(f.FloorNumber)
	for _, r := range s.reservations {
		if r.DeskID == id {
			r.DeskName = name
			r.FloorNumber = f.FloorNumber
		}
	}
	return nil
}

func (s *store) deleteDesk(id int) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.desks[id]; !ok {
		return errNotFound("desk", id)
	}
	now := s.now()
	for _, r := range s.reservations {
		if r.DeskID == id && r.Status != model.StatusCancelled && r.EndTime.After(now) {
			return newHTTPError(http.StatusConflict, "Desk has upcoming reservations")
		}
	}
	delete(s.desks, id)
	return nil
}

// Reservations

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// view derives the time-dependent fields as of now
func (s *store) view(r *reservation) model.Reservation {
	out := r.Reservation
	now := s.now()
	out.Duration = formatDuration(out.EndTime.Sub(out.StartTime.Time))
	out.IsPast = !out.EndTime.After(now)
	out.IsUpcoming = out.StartTime.After(now)
	out.IsActive = out.Status != model.StatusCancelled && !out.IsPast && !out.IsUpcoming
	return out
}

func (s *store) listReservations(keep func(*reservation) bool) []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, s.view(r))
		}
	}
	slices.SortFunc(out, func(a, b model.Reservation) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime.Time), cmp.Compare(a.ReservationID, b.ReservationID))
	})
	return out
}

func (s *store) reservation(id int) (*reservation, *httpError) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, errNotFound("reservation", id)
	}
	return r, nil
}

func (s *store) getReservation(id int) (*model.Reservation, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, herr := s.reservation(id)
	if herr != nil {
		return nil, herr
	}
	out := s.view(r)
	return &out, nil
}

func (s *store) conflictLocked(deskID int, start, end time.Time, except int) *httpError {
	for _, r := range s.reservations {
		if r.ReservationID == except || r.DeskID != deskID || r.Status == model.StatusCancelled {
			continue
		}
		if overlaps(r.StartTime.Time, r.EndTime.Time, start, end) {
			return newHTTPError(http.StatusConflict, "Desk is already booked from %s to %s", r.StartTime, r.EndTime)
		}
	}
	return nil
}

func (s *store) createReservation(userID string, req model.CreateReservationRequest) (int, *httpError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.desks[req.DeskID]
	if !ok {
		return 0, errNotFound("desk", req.DeskID)
	}
	if herr := s.conflictLocked(req.DeskID, req.StartTime.Time, req.EndTime.Time, 0); herr != nil {
		return 0, herr
	}
	floorNumber := 0
	if f, ok := s.floors[d.FloorID]; ok {
		floorNumber = f.FloorNumber
	}
	id := s.nextReservationID
	s.nextReservationID++
	s.reservations[id] = &reservation{
		Reservation: model.Reservation{
			ReservationID: id,
			UserID:        userID,
			DeskID:        d.DeskID,
			DeskName:      d.DeskName,
			FloorNumber:   floorNumber,
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			Status:        model.StatusActive,
			CreatedAt:     model.NewTimestamp(s.now()),
		},
		userID: userID,
	}
	return id, nil
}

// owned fetches a reservation the caller may change
func (s *store) owned(id int, caller *model.User) (*reservation, *httpError) {
	r, herr := s.reservation(id)
	if herr != nil {
		return nil, herr
	}
	if r.userID != caller.ID && !caller.HasRole(model.RoleAdmin) {
		return nil, errForbidden
	}
	return r, nil
}

func (s *store) updateReservation(id int, caller *model.User, req model.UpdateReservationRequest) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, herr := s.owned(id, caller)
	if herr != nil {
		return herr
	}
	d, ok := s.desks[req.DeskID]
	if !ok {
		return errNotFound("desk", req.DeskID)
	}
	if herr := s.conflictLocked(req.DeskID, req.StartTime.Time, req.EndTime.Time, id); herr != nil {
		return herr
	}
	r.DeskID = d.DeskID
	r.DeskName = d.DeskName
	r.StartTime = req.StartTime
	r.EndTime = req.EndTime
	return nil
}

func (s *store) setReservationStatus(id int, caller *model.User, status model.ReservationStatus) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, herr := s.owned(id, caller)
	if herr != nil {
		return herr
	}
	if r.Status != model.StatusCancelled && status != model.StatusCancelled {
		if herr := s.conflictLocked(r.DeskID, r.StartTime.Time, r.EndTime.Time, id); herr != nil {
			return herr
		}
	}
	r.Status = status
	return nil
}

func (s *store) cancelReservation(id int, caller *model.User) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, herr := s.owned(id, caller)
	if herr != nil {
		return herr
	}
	if r.Status == model.StatusCancelled {
		return newHTTPError(http.StatusConflict, "Reservation is already cancelled")
	}
	if !r.EndTime.After(s.now()) {
		return newHTTPError(http.StatusConflict, "Reservation has already ended")
	}
	r.Status = model.StatusCancelled
	return nil
}

func (s *store) deleteReservation(id int, caller *model.User) *httpError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, herr := s.owned(id, caller); herr != nil {
		return herr
	}
	delete(s.reservations, id)
	return nil
}
