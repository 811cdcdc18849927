package usermanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := usermanager.NewMemoryStore(4, 0)
		v, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, v)

		v, err = s.Remove(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("set get remove", func(t *testing.T) {
		s := usermanager.NewMemoryStore(4, 0)
		require.NoError(t, s.Set(ctx, "k", "v"))

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"k"}, keys)

		v, err = s.Remove(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)

		v, err = s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("evicts beyond size", func(t *testing.T) {
		s := usermanager.NewMemoryStore(2, 0)
		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))
		require.NoError(t, s.Set(ctx, "c", "3"))

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"b", "c"}, keys)
	})

	t.Run("expires entries", func(t *testing.T) {
		t.Parallel()
		s := usermanager.NewMemoryStore(4, 50*time.Millisecond)
		require.NoError(t, s.Set(ctx, "k", "v"))
		require.Eventually(t, func() bool {
			v, _ := s.Get(ctx, "k")
			return v == ""
		}, time.Second, 10*time.Millisecond)
	})
}

func TestPrefixStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backing := usermanager.NewMemoryStore(8, 0)
	a := usermanager.PrefixStore(backing, "a:")
	b := usermanager.PrefixStore(backing, "b:")

	require.NoError(t, a.Set(ctx, "user", "alice"))
	require.NoError(t, b.Set(ctx, "user", "bob"))

	v, err := a.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, keys)

	v, err = b.Remove(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, "bob", v)

	v, err = a.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, "alice", v, "removing through one prefix leaves the other")

	all, err := backing.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:user"}, all)
}
