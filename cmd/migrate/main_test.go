package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/logtower/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRun_SQLite(t *testing.T) {
	dbCfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "data", "rotas.db")}
	log := zaptest.NewLogger(t)
	exec := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		require.NoError(t, run(dbCfg, args, &out, log))
		return out.String()
	}

	assert.Contains(t, exec("list"), "000001")
	assert.Contains(t, exec("version"), "No migrations applied")

	exec("up")
	assert.Contains(t, exec("version"), "version 3 (dirty: false)")

	exec("steps", "-1")
	assert.Contains(t, exec("version"), "version 2")

	exec("force", "2")
	assert.Contains(t, exec("version"), "version 2 (dirty: false)")

	exec("up")
	assert.Contains(t, exec("version"), "version 3")

	exec("down")
	assert.Contains(t, exec("version"), "No migrations applied")
}

func TestRun_Errors(t *testing.T) {
	dbCfg := &config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "rotas.db")}
	log := zaptest.NewLogger(t)

	var out bytes.Buffer
	err := run(dbCfg, []string{"drop"}, &out, log)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Usage:")

	require.Error(t, run(dbCfg, []string{"steps"}, &out, log))
	require.Error(t, run(dbCfg, []string{"steps", "x"}, &out, log))
	require.Error(t, run(dbCfg, []string{"force"}, &out, log))
}
