package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// exerciseStore checks the Store contract; advance moves the backend's
// notion of time forward.
func exerciseStore(t *testing.T, s Store, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, s.Put(ctx, "k", []byte("v2"), time.Minute))
	got, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", string(got))

	require.NoError(t, s.Put(ctx, "forever", []byte("x"), 0))

	advance(2 * time.Minute)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "entry should expire after its ttl")

	_, found, err = s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.Delete(ctx, "forever"))
	_, found, err = s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, s.Put(ctx, "", []byte("x"), 0), ErrEmptyKey)
}

func TestMemoryStore(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	exerciseStore(t, NewMemory().WithClock(clock.Now), clock.Advance)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s.now = clock.Now
	exerciseStore(t, s, clock.Advance)

	require.NoError(t, s.Put(context.Background(), "old", []byte("x"), time.Second))
	clock.Advance(time.Minute)
	n, err := s.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedis(client, "test:")
	exerciseStore(t, s, mr.FastForward)

	require.NoError(t, s.Put(context.Background(), "prefixed", []byte("x"), 0))
	assert.True(t, mr.Exists("test:prefixed"))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, PutJSON(ctx, s, "p", payload{Name: "hello"}, time.Hour))

	var got payload
	found, err := GetJSON(ctx, s, "p", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello", got.Name)

	require.NoError(t, s.Put(ctx, "bad", []byte("{"), time.Hour))
	_, err = GetJSON(ctx, s, "bad", &got)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open("etcd", "")
	assert.Error(t, err)
}
