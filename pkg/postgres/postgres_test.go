package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/model"
	"github.com/jakechorley/desk-booking/pkg/session"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("BOOKING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func TestPendingMigrations(t *testing.T) {
	pending, err := pendingMigrations(map[string]bool{})
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "001_create_session_values.sql", pending[0])

	pending, err = pendingMigrations(map[string]bool{"001_create_session_values.sql": true})
	require.NoError(t, err)
	assert.NotContains(t, pending, "001_create_session_values.sql")
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.RunMigrations(context.Background()))
}

func TestSessionStorage_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	storage := db.SessionStorage("test-" + uuid.NewString())

	_, ok, err := storage.Get(ctx, session.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(ctx, session.TokenKey, []byte("a")))
	require.NoError(t, storage.Set(ctx, session.TokenKey, []byte("b")))
	value, ok, err := storage.Get(ctx, session.TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", string(value))

	require.NoError(t, storage.Remove(ctx, session.TokenKey))
	_, ok, err = storage.Get(ctx, session.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStorage_NamespacesAreIsolated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kioskA := db.SessionStorage("kiosk-a-" + uuid.NewString())
	kioskB := db.SessionStorage("kiosk-b-" + uuid.NewString())

	store := session.NewStore(kioskA, zap.NewNop())
	require.NoError(t, store.Login(ctx, &model.User{ID: "u-1"}))

	other := session.NewStore(kioskB, zap.NewNop())
	require.NoError(t, other.Init(ctx))
	assert.False(t, other.IsAuthenticated())

	same := session.NewStore(kioskA, zap.NewNop())
	require.NoError(t, same.Init(ctx))
	assert.True(t, same.IsAuthenticated())
}
