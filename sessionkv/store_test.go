package sessionkv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "route:home")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "route:home", "1"))
	v, err := s.Get(ctx, "route:home")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, s.Set(ctx, "route:home", "2"))
	v, err = s.Get(ctx, "route:home")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	require.NoError(t, s.Del(ctx, "route:home"))
	_, err = s.Get(ctx, "route:home")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is a no-op.
	require.NoError(t, s.Del(ctx, "route:home"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, 0, m.Len())
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := OpenSQLite(path, "session-a")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteSessionScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	a, err := OpenSQLite(path, "session-a")
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "route:test", "2"))
	require.NoError(t, a.Close())

	// Reopening the same session sees the value, like a reload would.
	again, err := OpenSQLite(path, "session-a")
	require.NoError(t, err)
	defer again.Close()
	v, err := again.Get(ctx, "route:test")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	other, err := OpenSQLite(path, "session-b")
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Get(ctx, "route:test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConstructorValidation(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), " ")
	require.Error(t, err)

	_, err = NewRedis(nil, "s", 0)
	require.Error(t, err)
	_, err = NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "", 0)
	require.Error(t, err)
	_, err = NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "s", -time.Second)
	require.Error(t, err)

	_, err = NewPostgres(nil, "s")
	require.Error(t, err)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("LAZYLOAD_REDIS_ADDR")
	if addr == "" {
		t.Skip("LAZYLOAD_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	s, err := NewRedis(client, "test-"+time.Now().Format("150405.000000"), time.Minute)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("LAZYLOAD_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LAZYLOAD_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	s, err := NewPostgres(pool, "test-"+time.Now().Format("150405.000000"))
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	exerciseStore(t, s)
}
