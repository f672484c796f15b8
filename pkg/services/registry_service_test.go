package services

import (
	"context"
	"strings"
	"testing"

	"github.com/arguslabs/argus/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryService_Register(t *testing.T) {
	service := NewRegistryService(newTestStore(t))
	ctx := context.Background()

	t.Run("creates hook entry", func(t *testing.T) {
		entry, created, err := service.Register(ctx, "price-watcher", "watcher.py", "Track price changes")
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, strings.HasPrefix(entry.ID, "hook-"))
		assert.Equal(t, "price-watcher", entry.Name)
		assert.Equal(t, models.AgentSourceHook, entry.Source)
		assert.Equal(t, "analyzed", entry.Status)
		require.NotNil(t, entry.Discovery)
		assert.Equal(t, "Hook Agent", entry.Discovery.AgentType)
	})

	t.Run("idempotent on name", func(t *testing.T) {
		first, created, err := service.Register(ctx, "repeat-agent", "", "")
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := service.Register(ctx, "repeat-agent", "other.py", "different task")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		count := 0
		for _, e := range service.List(ctx) {
			if e.Name == "repeat-agent" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("requires name", func(t *testing.T) {
		for _, name := range []string{"", "   "} {
			_, _, err := service.Register(ctx, name, "", "")
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		}
	})

	t.Run("trims whitespace", func(t *testing.T) {
		entry, _, err := service.Register(ctx, "  padded-agent  ", "", "")
		require.NoError(t, err)
		assert.Equal(t, "padded-agent", entry.Name)
	})
}

func TestRegistryService_GetAndDelete(t *testing.T) {
	service := NewRegistryService(newTestStore(t))
	ctx := context.Background()

	entry, _, err := service.Register(ctx, "short-lived", "", "")
	require.NoError(t, err)

	got, err := service.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Name, got.Name)

	_, err = service.Get(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, service.Delete(ctx, entry.ID))
	_, err = service.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, service.Delete(ctx, entry.ID), ErrNotFound)
}

func TestRegistryService_ListEmpty(t *testing.T) {
	service := NewRegistryService(newTestStore(t))

	entries := service.List(context.Background())
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
