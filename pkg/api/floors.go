package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	floorGetAllPath = "/floor/get-all"
	floorCreatePath = "/floor/create"
)

func floorGetPath(floorID int) string    { return fmt.Sprintf("/floor/get/%d", floorID) }
func floorUpdatePath(floorID int) string { return fmt.Sprintf("/floor/%d/update", floorID) }
func floorDeletePath(floorID int) string { return fmt.Sprintf("/floor/%d/delete", floorID) }

// FloorAPI is the HTTP implementation of FloorRepository
type FloorAPI struct {
	doer Doer
}

func NewFloorAPI(doer Doer) *FloorAPI {
	return &FloorAPI{doer: doer}
}

func (a *FloorAPI) GetAll(ctx context.Context) ([]model.Floor, error) {
	var floors []model.Floor
	if err := a.doer.Do(ctx, http.MethodGet, floorGetAllPath, nil, &floors); err != nil {
		return nil, err
	}
	return floors, nil
}

func (a *FloorAPI) GetByID(ctx context.Context, floorID int) (*model.Floor, error) {
	var floor model.Floor
	if err := a.doer.Do(ctx, http.MethodGet, floorGetPath(floorID), nil, &floor); err != nil {
		return nil, err
	}
	return &floor, nil
}

// Create adds a floor; see DeskAPI.Create for why nothing is returned
func (a *FloorAPI) Create(ctx context.Context, req model.CreateFloorRequest) error {
	_, err := a.doer.DoStatus(ctx, http.MethodPost, floorCreatePath, req, nil)
	return err
}

func (a *FloorAPI) Update(ctx context.Context, floorID int, req model.UpdateFloorRequest) error {
	return a.doer.Do(ctx, http.MethodPut, floorUpdatePath(floorID), req, nil)
}

func (a *FloorAPI) Delete(ctx context.Context, floorID int) error {
	return a.doer.Do(ctx, http.MethodDelete, floorDeletePath(floorID), nil, nil)
}
