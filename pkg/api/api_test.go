package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jakechorley/desk-booking/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	body   any
}

// mockDoer records calls and replies with a canned JSON body
type mockDoer struct {
	calls    []call
	response string
	status   int
	doErr    error
}

func (m *mockDoer) Do(ctx context.Context, method, path string, body, out any) error {
	_, err := m.DoStatus(ctx, method, path, body, out)
	return err
}

func (m *mockDoer) DoStatus(ctx context.Context, method, path string, body, out any) (int, error) {
	m.calls = append(m.calls, call{method: method, path: path, body: body})
	if m.doErr != nil {
		return 0, m.doErr
	}
	if out != nil && m.response != "" {
		if err := json.Unmarshal([]byte(m.response), out); err != nil {
			return 0, err
		}
	}
	if m.status == 0 {
		return http.StatusOK, nil
	}
	return m.status, nil
}

func (m *mockDoer) last(t *testing.T) call {
	t.Helper()
	require.NotEmpty(t, m.calls)
	return m.calls[len(m.calls)-1]
}

func TestDeskAPI_Endpoints(t *testing.T) {
	ctx := context.Background()
	doer := &mockDoer{response: `[{"deskId":1,"deskName":"A1","floorId":2,"floorNumber":"2","isAvailable":true}]`}
	desks := NewDeskAPI(doer)

	got, err := desks.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].DeskName)
	assert.Equal(t, call{http.MethodGet, "/desk/get-all", nil}, doer.last(t))

	_, err = desks.GetByFloor(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "/desk/floor/2", doer.last(t).path)

	req := model.DeskAvailabilityRequest{}
	_, err = desks.GetAvailable(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, doer.last(t).method)
	assert.Equal(t, "/desk/available", doer.last(t).path)

	doer.response = ""
	doer.status = http.StatusCreated
	require.NoError(t, desks.Create(ctx, model.CreateDeskRequest{DeskName: "B2", FloorID: 1}))
	assert.Equal(t, "/desk/create", doer.last(t).path)

	require.NoError(t, desks.Update(ctx, 7, model.UpdateDeskRequest{DeskName: "B3", FloorID: 1}))
	assert.Equal(t, call{http.MethodPut, "/desk/7/update", model.UpdateDeskRequest{DeskName: "B3", FloorID: 1}}, doer.last(t))

	require.NoError(t, desks.Delete(ctx, 7))
	assert.Equal(t, call{http.MethodDelete, "/desk/7/delete", nil}, doer.last(t))
}

func TestDeskAPI_GetByID_PropagatesError(t *testing.T) {
	doer := &mockDoer{doErr: errors.New("boom")}
	desk, err := NewDeskAPI(doer).GetByID(context.Background(), 3)
	assert.Nil(t, desk)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "/desk/get/3", doer.last(t).path)
}

func TestFloorAPI_Endpoints(t *testing.T) {
	ctx := context.Background()
	doer := &mockDoer{response: `{"floorId":4,"floorNumber":3,"deskCount":12}`}
	floors := NewFloorAPI(doer)

	floor, err := floors.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 12, floor.DeskCount)
	assert.Equal(t, "/floor/get/4", doer.last(t).path)

	doer.response = ""
	require.NoError(t, floors.Create(ctx, model.CreateFloorRequest{FloorNumber: 5}))
	assert.Equal(t, call{http.MethodPost, "/floor/create", model.CreateFloorRequest{FloorNumber: 5}}, doer.last(t))

	require.NoError(t, floors.Update(ctx, 4, model.UpdateFloorRequest{FloorNumber: 6}))
	assert.Equal(t, "/floor/4/update", doer.last(t).path)

	require.NoError(t, floors.Delete(ctx, 4))
	assert.Equal(t, call{http.MethodDelete, "/floor/4/delete", nil}, doer.last(t))
}

func TestReservationAPI_GetMine_FlattensInGroupOrder(t *testing.T) {
	doer := &mockDoer{response: `{
		"activeReservations":[{"reservationId":1}],
		"upcomingReservations":[{"reservationId":2},{"reservationId":3}],
		"pastReservations":[{"reservationId":4}]
	}`}

	got, err := NewReservationAPI(doer).GetMine(context.Background())
	require.NoError(t, err)

	ids := make([]int, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ReservationID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
	assert.Equal(t, "/reservation/my-reservations", doer.last(t).path)
}

func TestReservationAPI_Mutations(t *testing.T) {
	ctx := context.Background()
	doer := &mockDoer{}
	reservations := NewReservationAPI(doer)

	tests := []struct {
		name   string
		run    func() error
		method string
		path   string
	}{
		{"create", func() error { return reservations.Create(ctx, model.CreateReservationRequest{DeskID: 1}) }, http.MethodPost, "/reservation/create"},
		{"update", func() error { return reservations.Update(ctx, 9, model.UpdateReservationRequest{DeskID: 1}) }, http.MethodPut, "/reservation/update/9"},
		{"status", func() error {
			return reservations.UpdateStatus(ctx, 9, model.UpdateReservationStatusRequest{Status: model.StatusCompleted})
		}, http.MethodPatch, "/reservation/9/status"},
		{"cancel", func() error { return reservations.Cancel(ctx, 9) }, http.MethodPost, "/reservation/9/cancel"},
		{"delete", func() error { return reservations.Delete(ctx, 9) }, http.MethodDelete, "/reservation/9/delete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.run())
			assert.Equal(t, tt.method, doer.last(t).method)
			assert.Equal(t, tt.path, doer.last(t).path)
		})
	}
}

func TestReservationAPI_ListViews(t *testing.T) {
	ctx := context.Background()
	doer := &mockDoer{response: `[]`}
	reservations := NewReservationAPI(doer)

	_, _ = reservations.GetAll(ctx)
	_, _ = reservations.GetByDesk(ctx, 5)
	_, _ = reservations.GetActive(ctx)
	_, _ = reservations.GetPast(ctx)
	_, _ = reservations.GetUpcoming(ctx)

	var paths []string
	for _, c := range doer.calls {
		paths = append(paths, c.path)
	}
	assert.Equal(t, []string{
		"/reservation/get-all",
		"/reservation/desk/5",
		"/reservation/active",
		"/reservation/past",
		"/reservation/upcoming",
	}, paths)
}

func TestRoleAPI_RemoveSendsBodyWithDelete(t *testing.T) {
	doer := &mockDoer{response: `{"success":true,"message":"removed"}`}
	req := model.AssignRoleRequest{UserID: "u-1", RoleName: model.RoleTeamLead}

	resp, err := NewRoleAPI(doer).Remove(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, call{http.MethodDelete, "/role/remove-role", req}, doer.last(t))
}

func TestRoleAPI_UserRolesEscapesID(t *testing.T) {
	doer := &mockDoer{response: `["User","Admin"]`}

	roles, err := NewRoleAPI(doer).GetUserRoles(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Admin"}, roles)
	assert.Equal(t, "/role/user-roles/a%20b", doer.last(t).path)
}

func TestAuthAPI(t *testing.T) {
	ctx := context.Background()
	doer := &mockDoer{response: `{"jwtToken":"abc"}`}
	auth := NewAuthAPI(doer)

	resp, err := auth.LoginWithPassword(ctx, model.LoginRequest{Email: "a@b.c", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.JWTToken)
	assert.Equal(t, http.MethodPost, doer.last(t).method)
	assert.Equal(t, "/auth/login", doer.last(t).path)

	doer.response = `{"id":"u-1","email":"a@b.c","roles":["User"]}`
	user, err := auth.Login(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, http.MethodGet, doer.last(t).method)

	_, err = auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/user/me", doer.last(t).path)

	require.NoError(t, auth.Logout(ctx))
	assert.Equal(t, "/auth/logout", doer.last(t).path)
}

func TestKeys_PrefixHierarchy(t *testing.T) {
	assert.True(t, DeskKeys.Detail(3).HasPrefix(DeskKeys.All()))
	assert.True(t, DeskKeys.Available("s", "e").HasPrefix(DeskKeys.AvailableAll()))
	assert.False(t, DeskKeys.Detail(3).HasPrefix(DeskKeys.Lists()))
	assert.True(t, ReservationKeys.ByDesk(2).HasPrefix(ReservationKeys.ByDeskAll()))
	assert.False(t, ReservationKeys.Detail(2).HasPrefix(ReservationKeys.Mine()))
	assert.Equal(t, "roles/user/u-1", RoleKeys.UserRoles("u-1").String())
}

func TestKeys_EqualFiltersProduceEqualKeys(t *testing.T) {
	yes := true
	a := DeskKeys.List(DeskFilters{FloorID: 2, IsAvailable: &yes})
	b := DeskKeys.List(DeskFilters{FloorID: 2, IsAvailable: &yes})
	c := DeskKeys.List(DeskFilters{FloorID: 3})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, `desks/list/{}`, DeskKeys.List(DeskFilters{}).String())
}

func TestNewRepositories(t *testing.T) {
	repos := NewRepositories(&mockDoer{})
	assert.NotNil(t, repos.Desks)
	assert.NotNil(t, repos.Floors)
	assert.NotNil(t, repos.Reservations)
	assert.NotNil(t, repos.Roles)
	assert.NotNil(t, repos.Users)
	assert.NotNil(t, repos.Auth)
}
