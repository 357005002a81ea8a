package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// FloorService reads and changes floors through the shared cache
type FloorService struct {
	deps Deps
}

func (s *FloorService) List(ctx context.Context, opts ...ReadOptions) ([]model.Floor, error) {
	floors, err := cache.Query(ctx, s.deps.Cache, api.FloorKeys.List(api.FloorFilters{}), queryOptions(StaleFloors, opts), s.deps.Repos.Floors.GetAll)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch floors: %w", err)
	}
	return floors, nil
}

func (s *FloorService) Get(ctx context.Context, floorID int, opts ...ReadOptions) (*model.Floor, error) {
	if err := model.ValidateID("floorId", floorID); err != nil {
		return nil, err
	}
	floor, err := cache.Query(ctx, s.deps.Cache, api.FloorKeys.Detail(floorID), queryOptions(StaleFloors, opts),
		func(ctx context.Context) (*model.Floor, error) {
			return s.deps.Repos.Floors.GetByID(ctx, floorID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch floor %d: %w", floorID, err)
	}
	return floor, nil
}

func (s *FloorService) Create(ctx context.Context, req model.CreateFloorRequest) error {
	return mutation(s.deps, opCreateFloor, func() error {
		if err := model.Validate(req); err != nil {
			return err
		}
		s.deps.Logger.Debug("Creating floor", zap.Int("floor_number", req.FloorNumber))
		if err := s.deps.Repos.Floors.Create(ctx, req); err != nil {
			return fmt.Errorf("failed to create floor: %w", err)
		}
		s.deps.Cache.Invalidate(api.FloorKeys.All())
		return nil
	})
}

// Update changes a floor. Desks carry the floor number, so desk views are
// invalidated as well.
func (s *FloorService) Update(ctx context.Context, floorID int, req model.UpdateFloorRequest) error {
	return mutation(s.deps, opUpdateFloor, func() error {
		if err := model.ValidateID("floorId", floorID); err != nil {
			return err
		}
		if err := model.Validate(req); err != nil {
			return err
		}
		if err := s.deps.Repos.Floors.Update(ctx, floorID, req); err != nil {
			return fmt.Errorf("failed to update floor %d: %w", floorID, err)
		}
		s.deps.Cache.Invalidate(api.FloorKeys.Detail(floorID), api.FloorKeys.Lists(), api.DeskKeys.All())
		return nil
	})
}

// Delete removes a floor; its desks go with it on the server
func (s *FloorService) Delete(ctx context.Context, floorID int) error {
	return mutation(s.deps, opDeleteFloor, func() error {
		if err := model.ValidateID("floorId", floorID); err != nil {
			return err
		}
		if err := s.deps.Repos.Floors.Delete(ctx, floorID); err != nil {
			return fmt.Errorf("failed to delete floor %d: %w", floorID, err)
		}
		s.deps.Cache.Remove(api.FloorKeys.Detail(floorID))
		s.deps.Cache.Invalidate(api.FloorKeys.Lists(), api.DeskKeys.All())
		return nil
	})
}
