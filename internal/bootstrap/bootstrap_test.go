package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
[app]
env = "test"

[log]
level = "debug"
format = "json"
output = "` + filepath.ToSlash(filepath.Join(dir, "app.log")) + `"

[database]
driver = "sqlite"
path = "` + filepath.ToSlash(filepath.Join(dir, "rotas.db")) + `"
auto_migrate = true

[routing]
provider = "disabled"
`
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_OpensMigratedStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	app, err := New(ctx, writeConfig(t, dir))
	require.NoError(t, err)
	assert.False(t, app.Telemetry.Enabled())
	assert.Equal(t, "test", app.Config.App.Env)

	db, err := app.Database()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Driver)
	for _, table := range []string{"filiais", "fato_cte", "etl_runs"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}

	again, err := app.Database()
	require.NoError(t, err)
	assert.Same(t, db, again)

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, app.Close(ctx))

	logged, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Database connected")
}

func TestNew_MissingConfigFile(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestDBSystem(t *testing.T) {
	assert.Equal(t, "postgresql", dbSystem("postgres"))
	assert.Equal(t, "sqlite", dbSystem("sqlite"))
}
