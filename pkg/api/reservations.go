package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	reservationGetAllPath   = "/reservation/get-all"
	reservationMinePath     = "/reservation/my-reservations"
	reservationActivePath   = "/reservation/active"
	reservationPastPath     = "/reservation/past"
	reservationUpcomingPath = "/reservation/upcoming"
	reservationCreatePath   = "/reservation/create"
)

func reservationGetPath(id int) string    { return fmt.Sprintf("/reservation/get/%d", id) }
func reservationByDeskPath(id int) string { return fmt.Sprintf("/reservation/desk/%d", id) }
func reservationUpdatePath(id int) string { return fmt.Sprintf("/reservation/update/%d", id) }
func reservationStatusPath(id int) string { return fmt.Sprintf("/reservation/%d/status", id) }
func reservationCancelPath(id int) string { return fmt.Sprintf("/reservation/%d/cancel", id) }
func reservationDeletePath(id int) string { return fmt.Sprintf("/reservation/%d/delete", id) }

// ReservationAPI is the HTTP implementation of ReservationRepository
type ReservationAPI struct {
	doer Doer
}

func NewReservationAPI(doer Doer) *ReservationAPI {
	return &ReservationAPI{doer: doer}
}

func (a *ReservationAPI) list(ctx context.Context, path string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	if err := a.doer.Do(ctx, http.MethodGet, path, nil, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (a *ReservationAPI) GetAll(ctx context.Context) ([]model.Reservation, error) {
	return a.list(ctx, reservationGetAllPath)
}

func (a *ReservationAPI) GetByID(ctx context.Context, reservationID int) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := a.doer.Do(ctx, http.MethodGet, reservationGetPath(reservationID), nil, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetMine returns the current user's reservations as one flat sequence:
// active first, then upcoming, then past, each in server order.
func (a *ReservationAPI) GetMine(ctx context.Context) ([]model.Reservation, error) {
	var mine model.MyReservations
	if err := a.doer.Do(ctx, http.MethodGet, reservationMinePath, nil, &mine); err != nil {
		return nil, err
	}
	return mine.Flatten(), nil
}

func (a *ReservationAPI) GetByDesk(ctx context.Context, deskID int) ([]model.Reservation, error) {
	return a.list(ctx, reservationByDeskPath(deskID))
}

func (a *ReservationAPI) GetActive(ctx context.Context) ([]model.Reservation, error) {
	return a.list(ctx, reservationActivePath)
}

func (a *ReservationAPI) GetPast(ctx context.Context) ([]model.Reservation, error) {
	return a.list(ctx, reservationPastPath)
}

func (a *ReservationAPI) GetUpcoming(ctx context.Context) ([]model.Reservation, error) {
	return a.list(ctx, reservationUpcomingPath)
}

// Create books a desk. Like the other create endpoints it answers with a
// Location header only.
func (a *ReservationAPI) Create(ctx context.Context, req model.CreateReservationRequest) error {
	_, err := a.doer.DoStatus(ctx, http.MethodPost, reservationCreatePath, req, nil)
	return err
}

func (a *ReservationAPI) Update(ctx context.Context, reservationID int, req model.UpdateReservationRequest) error {
	return a.doer.Do(ctx, http.MethodPut, reservationUpdatePath(reservationID), req, nil)
}

func (a *ReservationAPI) UpdateStatus(ctx context.Context, reservationID int, req model.UpdateReservationStatusRequest) error {
	return a.doer.Do(ctx, http.MethodPatch, reservationStatusPath(reservationID), req, nil)
}

func (a *ReservationAPI) Cancel(ctx context.Context, reservationID int) error {
	return a.doer.Do(ctx, http.MethodPost, reservationCancelPath(reservationID), nil, nil)
}

func (a *ReservationAPI) Delete(ctx context.Context, reservationID int) error {
	return a.doer.Do(ctx, http.MethodDelete, reservationDeletePath(reservationID), nil, nil)
}
