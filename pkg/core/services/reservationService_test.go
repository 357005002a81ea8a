package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/apiclient"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

func existingReservation(id int) model.Reservation {
	start, end := future(2)
	return model.Reservation{
		ReservationID: id,
		UserID:        "user-1",
		DeskID:        3,
		DeskName:      "3A",
		StartTime:     start,
		EndTime:       end,
		Status:        model.StatusActive,
		Duration:      "1h",
		IsUpcoming:    true,
	}
}

func TestReservationCreate_ShowsPlaceholderUntilConfirmed(t *testing.T) {
	f := newFixture(t)
	f.reservations.mine = []model.Reservation{existingReservation(7)}
	ctx := context.Background()

	_, err := f.svc.Reservations.Mine(ctx)
	require.NoError(t, err)

	var during []model.Reservation
	f.reservations.onCreate = func() {
		during, _ = cache.Peek[[]model.Reservation](f.cache, api.ReservationKeys.Mine())
	}

	start, end := future(24)
	require.NoError(t, f.svc.Reservations.Create(ctx, model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}))

	require.Len(t, during, 2)
	placeholder := during[1]
	assert.Less(t, placeholder.ReservationID, 0)
	assert.Equal(t, "user-1", placeholder.UserID)
	assert.Equal(t, 5, placeholder.DeskID)
	assert.Equal(t, PlaceholderDeskName, placeholder.DeskName)
	assert.Equal(t, PlaceholderDuration, placeholder.Duration)
	assert.Equal(t, model.StatusActive, placeholder.Status)
	assert.True(t, placeholder.IsUpcoming)
	assert.True(t, placeholder.StartTime.Equal(start.Time))

	assert.Equal(t, cache.StateStale, f.cache.State(api.ReservationKeys.Mine()))
	assert.Equal(t, []string{"Reservation created successfully!"}, f.notifier.successes)
}

func TestReservationCreate_RollsBackOnConflict(t *testing.T) {
	f := newFixture(t)
	f.reservations.mine = []model.Reservation{existingReservation(7)}
	f.reservations.createErr = apiErr(409, "Desk is already booked from 09:00 to 10:00")
	ctx := context.Background()

	before, err := f.svc.Reservations.Mine(ctx)
	require.NoError(t, err)

	var during []model.Reservation
	f.reservations.onCreate = func() {
		during, _ = cache.Peek[[]model.Reservation](f.cache, api.ReservationKeys.Mine())
	}

	start, end := future(24)
	err = f.svc.Reservations.Create(ctx, model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end})
	require.Error(t, err)
	assert.Equal(t, 409, apiclient.StatusOf(err))

	assert.Len(t, during, 2)
	after, ok := cache.Peek[[]model.Reservation](f.cache, api.ReservationKeys.Mine())
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"Desk is already reserved for the selected time: Desk is already booked from 09:00 to 10:00"}, f.notifier.errors)
	assert.Empty(t, f.notifier.successes)
}

func TestReservationCreate_WithoutCachedListStillInvalidates(t *testing.T) {
	f := newFixture(t)
	f.desks.desks = []model.Desk{{DeskID: 5}}
	ctx := context.Background()

	_, err := f.svc.Reservations.Active(ctx)
	require.NoError(t, err)
	start, end := future(24)
	_, err = f.svc.Desks.Available(ctx, start, end)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reservations.Create(ctx, model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}))

	assert.Equal(t, cache.StateAbsent, f.cache.State(api.ReservationKeys.Mine()))
	assert.Equal(t, cache.StateStale, f.cache.State(api.ReservationKeys.Active()))
	assert.Equal(t, cache.StateStale, f.cache.State(api.DeskKeys.Available(start.String(), end.String())))
}

func TestReservationCreate_PlaceholderIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reservations.Mine(ctx)
	require.NoError(t, err)

	var seen []int
	f.reservations.onCreate = func() {
		current, _ := cache.Peek[[]model.Reservation](f.cache, api.ReservationKeys.Mine())
		for _, r := range current {
			seen = append(seen, r.ReservationID)
		}
	}

	start, end := future(24)
	req := model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}
	require.NoError(t, f.svc.Reservations.Create(ctx, req))
	// the list is stale now, so seed it again to get a second placeholder
	f.cache.Set(api.ReservationKeys.Mine(), []model.Reservation{})
	require.NoError(t, f.svc.Reservations.Create(ctx, req))

	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1])
	assert.Less(t, seen[0], 0)
	assert.Less(t, seen[1], 0)
}

func TestReservationCreate_RejectsPastStart(t *testing.T) {
	f := newFixture(t)
	start := time.Now().Add(-2 * time.Hour)

	err := f.svc.Reservations.Create(context.Background(), model.CreateReservationRequest{
		DeskID:    5,
		StartTime: model.NewTimestamp(start),
		EndTime:   model.NewTimestamp(start.Add(time.Hour)),
	})
	require.Error(t, err)
	assert.Zero(t, f.reservations.count("Create"))
	require.Len(t, f.notifier.errors, 1)
	assert.Contains(t, f.notifier.errors[0], "startTime cannot be in the past")
}

func TestReservationCancel_Optimistic(t *testing.T) {
	f := newFixture(t)
	f.reservations.mine = []model.Reservation{existingReservation(7), existingReservation(8)}
	ctx := context.Background()

	_, err := f.svc.Reservations.Mine(ctx)
	require.NoError(t, err)

	var during []model.Reservation
	f.reservations.onCancel = func() {
		during, _ = cache.Peek[[]model.Reservation](f.cache, api.ReservationKeys.Mine())
	}

	require.NoError(t, f.svc.Reservations.Cancel(ctx, 7))

	require.Len(t, during, 2)
	assert.Equal(t, model.StatusCancelled, during[0].Status)
	assert.Equal(t, model.StatusActive, during[1].Status)
	assert.Equal(t, []int{7}, f.reservations.cancelled)
	assert.Equal(t, []string{"Reservation cancelled successfully"}, f.notifier.successes)
}

func TestReservationCancel_RollsBack(t *testing.T) {
	f := newFixture(t)
	f.reservations.mine = []model.Reservation{existingReservation(7)}
	f.reservations.cancelErr = apiErr(409, "")
	ctx := context.Background()

	_, err := f.svc.Reservations.Mine(ctx)
	require.NoError(t, err)

	require.Error(t, f.svc.Reservations.Cancel(ctx, 7))

	after, ok := cache.Peek[[]model.Reservation](f.cache, api.ReservationKeys.Mine())
	require.True(t, ok)
	assert.Equal(t, model.StatusActive, after[0].Status)
	assert.Equal(t, []string{"Reservation can no longer be cancelled"}, f.notifier.errors)
}

func TestReservationCancel_RejectsPlaceholderIDs(t *testing.T) {
	f := newFixture(t)

	require.Error(t, f.svc.Reservations.Cancel(context.Background(), -1))
	assert.Zero(t, f.reservations.count("Cancel"))
}

func TestReservationDelete_RemovesDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reservations.Get(ctx, 7)
	require.NoError(t, err)
	_, err = f.svc.Reservations.ByDesk(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reservations.Delete(ctx, 7))
	assert.Equal(t, cache.StateAbsent, f.cache.State(api.ReservationKeys.Detail(7)))
	assert.Equal(t, cache.StateStale, f.cache.State(api.ReservationKeys.ByDesk(3)))
}

func TestReservationUpdateStatus_Validates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Error(t, f.svc.Reservations.UpdateStatus(ctx, 7, "Paused"))
	assert.Zero(t, f.reservations.count("UpdateStatus"))

	require.NoError(t, f.svc.Reservations.UpdateStatus(ctx, 7, model.StatusCompleted))
	assert.Equal(t, 1, f.reservations.count("UpdateStatus"))
}

func TestReservationReads_RetryServerErrors(t *testing.T) {
	f := newFixture(t)
	f.reservations.getErr = apiErr(503, "Service Unavailable")

	_, err := f.svc.Reservations.Past(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch past reservations")
	assert.Equal(t, 3, f.reservations.count("GetPast"))
}

func TestOccurrences(t *testing.T) {
	start, end := future(24)
	req := model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}

	t.Run("daily count", func(t *testing.T) {
		got, err := Occurrences(req, "FREQ=DAILY;COUNT=3")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, occurrence := range got {
			want := start.AddDate(0, 0, i)
			assert.True(t, occurrence.StartTime.Equal(want), "occurrence %d starts %s", i, occurrence.StartTime)
			assert.Equal(t, time.Hour, occurrence.EndTime.Sub(occurrence.StartTime.Time))
			assert.Equal(t, 5, occurrence.DeskID)
		}
	})

	t.Run("open ended rule is capped", func(t *testing.T) {
		got, err := Occurrences(req, "FREQ=WEEKLY")
		require.NoError(t, err)
		assert.Len(t, got, MaxOccurrences)
	})

	t.Run("invalid rule", func(t *testing.T) {
		_, err := Occurrences(req, "FREQ=SOMETIMES")
		assert.Error(t, err)
	})

	t.Run("invalid request", func(t *testing.T) {
		_, err := Occurrences(model.CreateReservationRequest{DeskID: 5, StartTime: end, EndTime: start}, "FREQ=DAILY;COUNT=2")
		var validationErr *model.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestCreateRecurring_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.reservations.onCreate = func() {
		calls++
		if calls == 2 {
			f.reservations.createErr = apiErr(409, "")
		} else {
			f.reservations.createErr = nil
		}
	}

	start, end := future(24)
	results, err := f.svc.Reservations.CreateRecurring(context.Background(),
		model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}, "FREQ=DAILY;COUNT=3")
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "Desk is already reserved for the selected time")
	assert.NoError(t, results[2].Err)

	assert.Equal(t, 3, f.reservations.count("Create"))
	assert.Empty(t, f.notifier.successes)
	assert.Equal(t, []string{"Created 2 of 3 reservations"}, f.notifier.errors)
}

func TestCreateRecurring_AllSucceed(t *testing.T) {
	f := newFixture(t)

	start, end := future(24)
	results, err := f.svc.Reservations.CreateRecurring(context.Background(),
		model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}, "FREQ=WEEKLY;COUNT=4")
	require.NoError(t, err)

	assert.Len(t, results, 4)
	assert.Len(t, f.reservations.created, 4)
	assert.Equal(t, []string{"4 reservations created successfully!"}, f.notifier.successes)
}

func TestCreateRecurring_BadRule(t *testing.T) {
	f := newFixture(t)

	start, end := future(24)
	_, err := f.svc.Reservations.CreateRecurring(context.Background(),
		model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}, "not a rule")
	require.Error(t, err)
	assert.Zero(t, f.reservations.count("Create"))
	assert.Equal(t, []string{"Failed to create reservation"}, f.notifier.errors)
}

func TestCreateRecurring_StopsWhenCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.reservations.onCreate = cancel

	start, end := future(24)
	results, err := f.svc.Reservations.CreateRecurring(ctx,
		model.CreateReservationRequest{DeskID: 5, StartTime: start, EndTime: end}, "FREQ=DAILY;COUNT=5")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, f.reservations.count("Create"))
}
