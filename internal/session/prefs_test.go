package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPreferenceStores(t *testing.T) {
	stores := map[string]func(t *testing.T) PreferenceStore{
		"memory": func(*testing.T) PreferenceStore { return NewMemoryPreferences() },
		"redis": func(t *testing.T) PreferenceStore {
			_, client := newRedis(t)
			return NewRedisPreferences(client, "tab-1", time.Hour)
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := newStore(t)

			_, ok, err := p.Get(ctx, DisplayKey("q1"))
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, p.Set(ctx, DisplayKey("q1"), "hidden"))
			require.NoError(t, p.Set(ctx, DisplayKey("q2"), "visible"))
			require.NoError(t, p.Set(ctx, AllHiddenKey, "true"))

			v, ok, err := p.Get(ctx, DisplayKey("q1"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "hidden", v)

			require.NoError(t, p.DeletePrefix(ctx, DisplayKeyPrefix))

			for _, id := range []string{"q1", "q2"} {
				_, ok, err := p.Get(ctx, DisplayKey(id))
				require.NoError(t, err)
				assert.False(t, ok, id)
			}
			v, ok, err = p.Get(ctx, AllHiddenKey)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "true", v)

			require.NoError(t, p.DeletePrefix(ctx, DisplayKeyPrefix), "deleting nothing is fine")
		})
	}
}

func TestRedisPreferences_TTLAndNamespace(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)

	tab1 := NewRedisPreferences(client, "tab-1", 12*time.Hour)
	tab2 := NewRedisPreferences(client, "tab-2", 12*time.Hour)

	require.NoError(t, tab1.Set(ctx, DisplayKey("q1"), "hidden"))
	require.NoError(t, tab2.Set(ctx, DisplayKey("q1"), "visible"))

	assert.True(t, mr.Exists("quizlens:session:tab-1:quizlens-display-q1"))
	assert.Equal(t, 12*time.Hour, mr.TTL("quizlens:session:tab-1:quizlens-display-q1"))

	require.NoError(t, tab1.DeletePrefix(ctx, DisplayKeyPrefix))
	v, ok, err := tab2.Get(ctx, DisplayKey("q1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "visible", v)

	mr.FastForward(13 * time.Hour)
	_, ok, err = tab2.Get(ctx, DisplayKey("q1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPreferences_ConnectionError(t *testing.T) {
	mr, client := newRedis(t)
	p := NewRedisPreferences(client, "tab-1", time.Minute)
	mr.Close()

	_, _, err := p.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session: get preference k")
}
