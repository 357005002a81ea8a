package services

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// Placeholder text shown until the server's version of a new reservation arrives
const (
	PlaceholderDeskName = "Loading..."
	PlaceholderDuration = "Calculating..."
)

// ReservationService reads and changes reservations through the shared
// cache. Create and Cancel update the current user's list optimistically.
type ReservationService struct {
	deps    Deps
	tempIDs atomic.Int64
}

func (s *ReservationService) list(ctx context.Context, key cache.Key, staleTime time.Duration, opts []ReadOptions, what string,
	fetch func(ctx context.Context) ([]model.Reservation, error)) ([]model.Reservation, error) {
	reservations, err := cache.Query(ctx, s.deps.Cache, key, queryOptions(staleTime, opts), fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", what, err)
	}
	return reservations, nil
}

// Mine returns the current user's reservations: active, then upcoming, then past
func (s *ReservationService) Mine(ctx context.Context, opts ...ReadOptions) ([]model.Reservation, error) {
	return s.list(ctx, api.ReservationKeys.Mine(), StaleMyReservations, opts, "my reservations", s.deps.Repos.Reservations.GetMine)
}

func (s *ReservationService) List(ctx context.Context, opts ...ReadOptions) ([]model.Reservation, error) {
	return s.list(ctx, api.ReservationKeys.List(api.ReservationFilters{}), StaleReservations, opts, "reservations", s.deps.Repos.Reservations.GetAll)
}

func (s *ReservationService) Active(ctx context.Context, opts ...ReadOptions) ([]model.Reservation, error) {
	return s.list(ctx, api.ReservationKeys.Active(), StaleReservations, opts, "active reservations", s.deps.Repos.Reservations.GetActive)
}

func (s *ReservationService) Upcoming(ctx context.Context, opts ...ReadOptions) ([]model.Reservation, error) {
	return s.list(ctx, api.ReservationKeys.Upcoming(), StaleReservations, opts, "upcoming reservations", s.deps.Repos.Reservations.GetUpcoming)
}

func (s *ReservationService) Past(ctx context.Context, opts ...ReadOptions) ([]model.Reservation, error) {
	return s.list(ctx, api.ReservationKeys.Past(), StalePastReservations, opts, "past reservations", s.deps.Repos.Reservations.GetPast)
}

func (s *ReservationService) ByDesk(ctx context.Context, deskID int, opts ...ReadOptions) ([]model.Reservation, error) {
	if err := model.ValidateID("deskId", deskID); err != nil {
		return nil, err
	}
	return s.list(ctx, api.ReservationKeys.ByDesk(deskID), StaleReservations, opts, "desk reservations",
		func(ctx context.Context) ([]model.Reservation, error) {
			return s.deps.Repos.Reservations.GetByDesk(ctx, deskID)
		})
}

func (s *ReservationService) Get(ctx context.Context, reservationID int, opts ...ReadOptions) (*model.Reservation, error) {
	if err := model.ValidateID("reservationId", reservationID); err != nil {
		return nil, err
	}
	reservation, err := cache.Query(ctx, s.deps.Cache, api.ReservationKeys.Detail(reservationID), queryOptions(StaleReservations, opts),
		func(ctx context.Context) (*model.Reservation, error) {
			return s.deps.Repos.Reservations.GetByID(ctx, reservationID)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reservation %d: %w", reservationID, err)
	}
	return reservation, nil
}

// Create books a desk. When the current user's list is cached, a placeholder
// is shown in it until the server confirms; on failure the list is restored.
func (s *ReservationService) Create(ctx context.Context, req model.CreateReservationRequest) error {
	return mutation(s.deps, opCreateReservation, func() error {
		return s.create(ctx, req)
	})
}

func (s *ReservationService) create(ctx context.Context, req model.CreateReservationRequest) error {
	if err := model.Validate(req); err != nil {
		return err
	}

	txn := cache.BeginOptimistic[[]model.Reservation](s.deps.Cache, api.ReservationKeys.Mine())
	if current, ok := txn.Current(); ok {
		placeholder := s.placeholder(req)
		s.deps.Logger.Debug("Adding placeholder reservation", zap.Int("temp_id", placeholder.ReservationID))
		txn.Apply(append(slices.Clone(current), placeholder))
	}

	if err := s.deps.Repos.Reservations.Create(ctx, req); err != nil {
		txn.Rollback()
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	txn.Commit()

	s.invalidate(0, false)
	return nil
}

func (s *ReservationService) placeholder(req model.CreateReservationRequest) model.Reservation {
	var userID string
	if s.deps.Session != nil {
		userID = s.deps.Session.UserID()
	}
	return model.Reservation{
		ReservationID: -int(s.tempIDs.Add(1)),
		UserID:        userID,
		DeskID:        req.DeskID,
		DeskName:      PlaceholderDeskName,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        model.StatusActive,
		CreatedAt:     model.NewTimestamp(time.Now()),
		Duration:      PlaceholderDuration,
		IsUpcoming:    true,
	}
}

// Cancel cancels a reservation, showing it as cancelled in the current
// user's list straight away and restoring the list if the server refuses
func (s *ReservationService) Cancel(ctx context.Context, reservationID int) error {
	return mutation(s.deps, opCancelReservation, func() error {
		if err := model.ValidateID("reservationId", reservationID); err != nil {
			return err
		}

		txn := cache.BeginOptimistic[[]model.Reservation](s.deps.Cache, api.ReservationKeys.Mine())
		if current, ok := txn.Current(); ok {
			next := slices.Clone(current)
			for i := range next {
				if next[i].ReservationID == reservationID {
					next[i].Status = model.StatusCancelled
				}
			}
			txn.Apply(next)
		}

		if err := s.deps.Repos.Reservations.Cancel(ctx, reservationID); err != nil {
			txn.Rollback()
			return fmt.Errorf("failed to cancel reservation %d: %w", reservationID, err)
		}
		txn.Commit()

		s.invalidate(reservationID, false)
		return nil
	})
}

func (s *ReservationService) Update(ctx context.Context, reservationID int, req model.UpdateReservationRequest) error {
	return mutation(s.deps, opUpdateReservation, func() error {
		if err := model.ValidateID("reservationId", reservationID); err != nil {
			return err
		}
		if err := model.Validate(req); err != nil {
			return err
		}
		if err := s.deps.Repos.Reservations.Update(ctx, reservationID, req); err != nil {
			return fmt.Errorf("failed to update reservation %d: %w", reservationID, err)
		}
		s.invalidate(reservationID, false)
		return nil
	})
}

func (s *ReservationService) UpdateStatus(ctx context.Context, reservationID int, status model.ReservationStatus) error {
	return mutation(s.deps, opReservationStatus, func() error {
		if err := model.ValidateID("reservationId", reservationID); err != nil {
			return err
		}
		req := model.UpdateReservationStatusRequest{Status: status}
		if err := model.Validate(req); err != nil {
			return err
		}
		if err := s.deps.Repos.Reservations.UpdateStatus(ctx, reservationID, req); err != nil {
			return fmt.Errorf("failed to update status of reservation %d: %w", reservationID, err)
		}
		s.invalidate(reservationID, false)
		return nil
	})
}

func (s *ReservationService) Delete(ctx context.Context, reservationID int) error {
	return mutation(s.deps, opDeleteReservation, func() error {
		if err := model.ValidateID("reservationId", reservationID); err != nil {
			return err
		}
		if err := s.deps.Repos.Reservations.Delete(ctx, reservationID); err != nil {
			return fmt.Errorf("failed to delete reservation %d: %w", reservationID, err)
		}
		s.invalidate(reservationID, true)
		return nil
	})
}

// invalidate refreshes everything a reservation write can change: the
// reservation itself, every reservation list and desk availability
func (s *ReservationService) invalidate(reservationID int, removed bool) {
	c := s.deps.Cache
	if reservationID > 0 {
		if removed {
			c.Remove(api.ReservationKeys.Detail(reservationID))
		} else {
			c.Invalidate(api.ReservationKeys.Detail(reservationID))
		}
	}
	c.Invalidate(append(api.ReservationKeys.ListViews(), api.DeskKeys.AvailableAll())...)
}
