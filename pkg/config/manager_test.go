package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/pkg/models"
)

func TestManagerApplyPersistsAndSwaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path)

	applied, next, err := m.Apply(map[string]any{"guard_mode": "intervene"})

	require.NoError(t, err)
	assert.Equal(t, []string{"guard_mode"}, applied)
	assert.Equal(t, models.GuardModeIntervene, next.GuardMode)
	assert.Same(t, next, m.Current())

	// The update survives a fresh load from disk.
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.GuardModeIntervene, reloaded.GuardMode)
}

func TestManagerApplyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path)
	before := m.Current()

	_, _, err := m.Apply(map[string]any{"guard_mode": "chaos"})

	assert.ErrorIs(t, err, ErrInvalidValue)
	// Failed updates leave the active snapshot untouched.
	assert.Same(t, before, m.Current())
	assert.False(t, m.Exists())
}

func TestManagerReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path)
	assert.Equal(t, 50, m.Current().MaxSteps)

	require.NoError(t, os.WriteFile(path, []byte(`{"max_steps": 7}`), 0o644))
	require.NoError(t, m.Reload())

	assert.Equal(t, 7, m.Current().MaxSteps)
}
