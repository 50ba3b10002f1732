package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/db"
)

func newStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	clock := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s := NewStore(conn, time.Hour).WithClock(func() time.Time { return clock })
	return s, &clock
}

func TestStore_CreateGet(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	u := dataset.User{ID: "u1", Username: "ann", Email: "ann@example.com", Role: dataset.RoleUser}

	rec, err := s.Create(ctx, u, "tok-u1")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.False(t, rec.Local())

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got.User)
	assert.Equal(t, "tok-u1", got.UpstreamToken)
	assert.Equal(t, rec.ExpiresAt, got.ExpiresAt)
}

func TestStore_Expiry(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, dataset.User{ID: "a", Role: dataset.RoleAdmin}, "")
	require.NoError(t, err)
	assert.True(t, rec.Local())

	*clock = clock.Add(time.Hour)
	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, ids)
}

func TestStore_UpdateDelete(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, dataset.User{ID: "u1", Username: "ann", Role: dataset.RoleUser}, "tok")
	require.NoError(t, err)

	require.NoError(t, s.UpdateUser(ctx, rec.ID, dataset.User{ID: "u1", Username: "ann", Role: dataset.RoleAdmin}))
	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.User.IsAdmin())

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateUser(ctx, rec.ID, got.User), ErrNotFound)
}
