package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/desk-booking/pkg/apiclient"
	"github.com/jakechorley/desk-booking/pkg/model"
)

func apiErr(status int, message string) error {
	return &apiclient.APIError{Status: status, Message: message}
}

func networkErr() error {
	return &apiclient.APIError{Message: "Network error - please check your connection", Code: apiclient.CodeNetworkError}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport failure", networkErr(), true},
		{"server error", apiErr(500, "boom"), true},
		{"bad gateway wrapped", fmt.Errorf("failed to fetch: %w", apiErr(502, "")), true},
		{"unauthorized", apiErr(401, "Unauthorized"), false},
		{"not found", apiErr(404, "missing"), false},
		{"conflict", apiErr(409, "taken"), false},
		{"validation", &model.ValidationError{Fields: []string{"deskId is required"}}, false},
		{"cancelled", context.Canceled, false},
		{"plain error", errors.New("decode failed"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		op   operation
		err  error
		want string
	}{
		{
			name: "server message wins",
			op:   opCreateDesk,
			err:  apiErr(400, "Desk name is too long"),
			want: "Desk name is too long",
		},
		{
			name: "generic status text falls back",
			op:   opUpdateReservation,
			err:  apiErr(500, "HTTP 500 Error"),
			want: "Failed to update reservation",
		},
		{
			name: "conflict without detail",
			op:   opCreateReservation,
			err:  apiErr(409, "HTTP 409 Error"),
			want: "Desk is already reserved for the selected time",
		},
		{
			name: "conflict with detail",
			op:   opCreateReservation,
			err:  fmt.Errorf("failed to create reservation: %w", apiErr(409, "Desk is already booked from 09:00 to 10:00")),
			want: "Desk is already reserved for the selected time: Desk is already booked from 09:00 to 10:00",
		},
		{
			name: "conflict on operation without wording",
			op:   opLogin,
			err:  apiErr(409, "Account locked"),
			want: "Account locked",
		},
		{
			name: "transport failure",
			op:   opCreateFloor,
			err:  networkErr(),
			want: "Failed to create floor: Network error - please check your connection",
		},
		{
			name: "validation error",
			op:   opCreateDesk,
			err:  &model.ValidationError{Fields: []string{"deskName is required"}},
			want: "validation failed: deskName is required",
		},
		{
			name: "unknown error",
			op:   opDeleteFloor,
			err:  errors.New("something odd"),
			want: "Failed to delete floor",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureMessage(tt.op, tt.err))
		})
	}
}

func TestMutation_ReportsOutcome(t *testing.T) {
	f := newFixture(t)
	deps := f.svc.Desks.deps

	require.NoError(t, mutation(deps, opCreateDesk, func() error { return nil }))
	err := mutation(deps, opDeleteDesk, func() error { return apiErr(409, "") })
	require.Error(t, err)

	assert.Equal(t, []string{"Desk created successfully!"}, f.notifier.successes)
	assert.Equal(t, []string{"Desk has reservations and cannot be deleted"}, f.notifier.errors)
}

func TestQueryOptions(t *testing.T) {
	q := queryOptions(StaleDesks, nil)
	assert.Equal(t, StaleDesks, q.StaleTime)
	assert.False(t, q.RequireFresh)

	q = queryOptions(StaleDesks, []ReadOptions{{Fresh: true}})
	assert.True(t, q.RequireFresh)
}

func TestNew_DefaultsNotifierAndLogger(t *testing.T) {
	f := newFixture(t)
	svc := New(Deps{Cache: f.cache, Repos: f.svc.Desks.deps.Repos})

	require.NotNil(t, svc.Desks.deps.Logger)
	assert.IsType(t, NopNotifier{}, svc.Desks.deps.Notifier)
	require.NoError(t, svc.Floors.Create(context.Background(), model.CreateFloorRequest{FloorNumber: 2}))
}

func TestClear_DropsSessionAndCache(t *testing.T) {
	f := newFixture(t)
	f.desks.desks = []model.Desk{{DeskID: 1}}
	ctx := context.Background()

	_, err := f.svc.Desks.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	require.NoError(t, f.svc.Clear(ctx))

	assert.Zero(t, f.cache.Len())
	assert.Equal(t, 1, f.session.clearCalls)
	assert.False(t, f.session.IsAuthenticated())
}
