package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/frontdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	t.Run("writes loadable config", func(t *testing.T) {
		dir := t.TempDir()

		written, err := Initialize(dir, false)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "frontdesk.yml"),
			filepath.Join(dir, ".env.example"),
		}, written)

		cfg, err := config.Load(filepath.Join(dir, "frontdesk.yml"))
		require.NoError(t, err)
		assert.Equal(t, config.Default().Lifecycle.RequestTimeout, cfg.Lifecycle.RequestTimeout)
		assert.Equal(t, 4*time.Hour, cfg.Lifecycle.RequestTimeout)
		assert.Equal(t, "http://localhost:8080", cfg.Supervisor.DashboardURL)
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "frontdesk.yml"), []byte("custom"), 0o644))

		_, err := Initialize(dir, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Found existing: frontdesk.yml")

		content, err := os.ReadFile(filepath.Join(dir, "frontdesk.yml"))
		require.NoError(t, err)
		assert.Equal(t, "custom", string(content))
	})

	t.Run("force overwrites", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "frontdesk.yml"), []byte("custom"), 0o644))

		_, err := Initialize(dir, true)
		require.NoError(t, err)
		_, err = config.Load(filepath.Join(dir, "frontdesk.yml"))
		require.NoError(t, err)
	})
}

func TestCheckExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, CheckExisting(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "frontdesk.yml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.example"), nil, 0o644))

	err := CheckExisting(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "  - frontdesk.yml\n  - .env.example\n")
	assert.Contains(t, err.Error(), "frontdesk init --force")
}

func TestPrintSuccess(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf, []string{"frontdesk.yml"})
	assert.Contains(t, buf.String(), "  ✓ frontdesk.yml\n")
	assert.Contains(t, buf.String(), "frontdesk serve")
}
