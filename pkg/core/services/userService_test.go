package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/desk-booking/pkg/api"
	"github.com/jakechorley/desk-booking/pkg/cache"
	"github.com/jakechorley/desk-booking/pkg/model"
)

func TestUserList_CachedUnderUserLists(t *testing.T) {
	f := newFixture(t)
	f.users.users = []model.User{{ID: "u-1", Email: "admin@example.com"}, {ID: "u-2", Email: "lead@example.com"}}
	ctx := context.Background()

	users, err := f.svc.Users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	_, err = f.svc.Users.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.count("GetAll"))
	assert.Equal(t, cache.StateFresh, f.cache.State(api.UserKeys.Lists()))

	f.cache.Invalidate(api.UserKeys.All())
	_, err = f.svc.Users.List(ctx, ReadOptions{Fresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, f.users.count("GetAll"))
}

func TestUserGet(t *testing.T) {
	f := newFixture(t)
	f.users.users = []model.User{{ID: "u-2", Email: "lead@example.com"}}
	ctx := context.Background()

	user, err := f.svc.Users.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", user.Email)

	_, err = f.svc.Users.Get(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User not found")

	_, err = f.svc.Users.Get(ctx, " ")
	require.Error(t, err)
	assert.Equal(t, 2, f.users.count("GetByID"))
}
