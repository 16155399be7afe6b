package rate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, rdb.UniversalClient) {
	t.Helper()
	s := miniredis.RunT(t)
	c := rdb.NewClient(&rdb.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return s, c
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	s, c := newMiniredis(t)
	l := NewRedisLimiter(c, "rl:", 2, time.Minute)
	fixed := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	r, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, r.Allowed)
	require.EqualValues(t, 1, r.Remaining)

	r, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, r.Allowed)

	r, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.EqualValues(t, 3, r.CurrentHits)
	require.Greater(t, r.RetryAfter, time.Duration(0))

	// otra clave no comparte ventana
	r, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, r.Allowed)

	key := "rl:1.2.3.4:" + strconv.FormatInt(fixed.Truncate(time.Minute).Unix(), 10)
	require.True(t, s.Exists(key))
	require.Equal(t, time.Minute, s.TTL(key))

	// ventana siguiente
	l.now = func() time.Time { return fixed.Add(time.Minute) }
	r, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, r.Allowed)
}

func TestRedisLimiter_ErrorWhenDown(t *testing.T) {
	s, c := newMiniredis(t)
	l := NewRedisLimiter(c, "", 1, time.Minute)
	s.Close()
	_, err := l.Allow(context.Background(), "k")
	require.Error(t, err)
}

func TestMemoryLimiter_Burst(t *testing.T) {
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		r, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		require.True(t, r.Allowed, "request %d", i)
	}
	r, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.GreaterOrEqual(t, r.RetryAfter, time.Second)

	r, err = l.Allow(ctx, "other")
	require.NoError(t, err)
	require.True(t, r.Allowed)
}

func TestNoop(t *testing.T) {
	r, err := Noop{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, r.Allowed)
}
