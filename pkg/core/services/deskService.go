package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// DeskService reads and changes desks through the shared cache
type DeskService struct {
	deps Deps
}

func (s *DeskService) List(ctx context.Context, opts ...ReadOptions) ([]model.Desk, error) {
	desks, err := cache.Query(ctx, s.deps.Cache, api.DeskKeys.List(api.DeskFilters{}), queryOptions(StaleDesks, opts), s.deps.Repos.Desks.GetAll)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch desks: %w", err)
	}
	return desks, nil
}

func (s *DeskService) Get(ctx context.Context, deskID int, opts ...ReadOptions) (*model.Desk, error) {
	if err := model.ValidateID("deskId", deskID); err != nil {
		return nil, err
	}
	desk, err := cache.Query(ctx, s.deps.Cache, api.DeskKeys.Detail(deskID), queryOptions(StaleDesks, opts),
		func(ctx context.Context) (*model.Desk, error) {
			return s.deps.Repos.Desks.GetByID(ctx, deskID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch desk %d: %w", deskID, err)
	}
	return desk, nil
}

func (s *DeskService) ByFloor(ctx context.Context, floorID int, opts ...ReadOptions) ([]model.Desk, error) {
	if err := model.ValidateID("floorId", floorID); err != nil {
		return nil, err
	}
	desks, err := cache.Query(ctx, s.deps.Cache, api.DeskKeys.ByFloor(floorID), queryOptions(StaleDesks, opts),
		func(ctx context.Context) ([]model.Desk, error) {
			return s.deps.Repos.Desks.GetByFloor(ctx, floorID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch desks for floor %d: %w", floorID, err)
	}
	return desks, nil
}

// Available lists desks free for the whole of [start, end). Availability
// changes quickly, so it has the shortest stale window.
func (s *DeskService) Available(ctx context.Context, start, end model.Timestamp, opts ...ReadOptions) ([]model.Desk, error) {
	req := model.DeskAvailabilityRequest{StartTime: start, EndTime: end}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	key := api.DeskKeys.Available(start.String(), end.String())
	desks, err := cache.Query(ctx, s.deps.Cache, key, queryOptions(StaleAvailableDesks, opts),
		func(ctx context.Context) ([]model.Desk, error) {
			return s.deps.Repos.Desks.GetAvailable(ctx, req)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch available desks: %w", err)
	}
	return desks, nil
}

func (s *DeskService) Create(ctx context.Context, req model.CreateDeskRequest) error {
	return mutation(s.deps, opCreateDesk, func() error {
		if err := model.Validate(req); err != nil {
			return err
		}
		s.deps.Logger.Debug("Creating desk", zap.String("desk_name", req.DeskName), zap.Int("floor_id", req.FloorID))
		if err := s.deps.Repos.Desks.Create(ctx, req); err != nil {
			return fmt.Errorf("failed to create desk: %w", err)
		}
		s.deps.Cache.Invalidate(api.DeskKeys.All())
		return nil
	})
}

func (s *DeskService) Update(ctx context.Context, deskID int, req model.UpdateDeskRequest) error {
	return mutation(s.deps, opUpdateDesk, func() error {
		if err := model.ValidateID("deskId", deskID); err != nil {
			return err
		}
		if err := model.Validate(req); err != nil {
			return err
		}
		if err := s.deps.Repos.Desks.Update(ctx, deskID, req); err != nil {
			return fmt.Errorf("failed to update desk %d: %w", deskID, err)
		}
		s.deps.Cache.Invalidate(api.DeskKeys.All())
		return nil
	})
}

func (s *DeskService) Delete(ctx context.Context, deskID int) error {
	return mutation(s.deps, opDeleteDesk, func() error {
		if err := model.ValidateID("deskId", deskID); err != nil {
			return err
		}
		if err := s.deps.Repos.Desks.Delete(ctx, deskID); err != nil {
			return fmt.Errorf("failed to delete desk %d: %w", deskID, err)
		}
		s.deps.Cache.Remove(api.DeskKeys.Detail(deskID))
		s.deps.Cache.Invalidate(api.DeskKeys.All())
		return nil
	})
}
