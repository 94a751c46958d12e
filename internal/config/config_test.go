package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/drawcore/internal/geom"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins)

	r, err := cfg.IndexRect()
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("INDEX_BOUNDS", "0, 0, 4096, 4096")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "*")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)

	r, err := cfg.IndexRect()
	require.NoError(t, err)
	assert.Equal(t, geom.R(0, 0, 4096, 4096), r)

	l, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"driver", "STORE_DRIVER", "mysql"},
		{"bounds arity", "INDEX_BOUNDS", "1,2,3"},
		{"bounds size", "INDEX_BOUNDS", "0,0,0,10"},
		{"level", "LOG_LEVEL", "loud"},
		{"undo limit", "UNDO_LIMIT", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
