package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	deskGetAllPath    = "/desk/get-all"
	deskAvailablePath = "/desk/available"
	deskCreatePath    = "/desk/create"
)

func deskGetPath(deskID int) string      { return fmt.Sprintf("/desk/get/%d", deskID) }
func deskByFloorPath(floorID int) string { return fmt.Sprintf("/desk/floor/%d", floorID) }
func deskUpdatePath(deskID int) string   { return fmt.Sprintf("/desk/%d/update", deskID) }
func deskDeletePath(deskID int) string   { return fmt.Sprintf("/desk/%d/delete", deskID) }

// DeskAPI is the HTTP implementation of DeskRepository
type DeskAPI struct {
	doer Doer
}

func NewDeskAPI(doer Doer) *DeskAPI {
	return &DeskAPI{doer: doer}
}

func (a *DeskAPI) GetAll(ctx context.Context) ([]model.Desk, error) {
	var desks []model.Desk
	if err := a.doer.Do(ctx, http.MethodGet, deskGetAllPath, nil, &desks); err != nil {
		return nil, err
	}
	return desks, nil
}

func (a *DeskAPI) GetByID(ctx context.Context, deskID int) (*model.Desk, error) {
	var desk model.Desk
	if err := a.doer.Do(ctx, http.MethodGet, deskGetPath(deskID), nil, &desk); err != nil {
		return nil, err
	}
	return &desk, nil
}

func (a *DeskAPI) GetByFloor(ctx context.Context, floorID int) ([]model.Desk, error) {
	var desks []model.Desk
	if err := a.doer.Do(ctx, http.MethodGet, deskByFloorPath(floorID), nil, &desks); err != nil {
		return nil, err
	}
	return desks, nil
}

// GetAvailable lists desks free for the whole requested range
func (a *DeskAPI) GetAvailable(ctx context.Context, req model.DeskAvailabilityRequest) ([]model.Desk, error) {
	var desks []model.Desk
	if err := a.doer.Do(ctx, http.MethodPost, deskAvailablePath, req, &desks); err != nil {
		return nil, err
	}
	return desks, nil
}

// Create adds a desk. The service answers 201 with only a Location header,
// so no ID is returned; callers refresh lists to see the new desk.
func (a *DeskAPI) Create(ctx context.Context, req model.CreateDeskRequest) error {
	_, err := a.doer.DoStatus(ctx, http.MethodPost, deskCreatePath, req, nil)
	return err
}

func (a *DeskAPI) Update(ctx context.Context, deskID int, req model.UpdateDeskRequest) error {
	return a.doer.Do(ctx, http.MethodPut, deskUpdatePath(deskID), req, nil)
}

func (a *DeskAPI) Delete(ctx context.Context, deskID int) error {
	return a.doer.Do(ctx, http.MethodDelete, deskDeletePath(deskID), nil, nil)
}
