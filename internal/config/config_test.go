package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cc", cfg.Toolchain.CC)
	assert.Equal(t, "-std=c11 -Wall -Wextra -MMD -MP", cfg.Toolchain.CFlags)
	assert.Equal(t, "-lsqlite3", cfg.Toolchain.Libs)
	assert.Empty(t, cfg.Toolchain.Headers, "HEADERS has no default")
	assert.Equal(t, ".", cfg.Build.Dir)
	assert.Empty(t, cfg.Build.Verbose)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Greater(t, cfg.Jobs(), 0)
}

func TestLoadBareEnvironmentVariables(t *testing.T) {
	t.Setenv("V", "1")
	t.Setenv("CC", "clang")
	t.Setenv("LIBS", "-lsqlite3.47")
	t.Setenv("HEADERS", "/opt/sqlite/include")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Build.Verbose)
	assert.Equal(t, "clang", cfg.Toolchain.CC)
	assert.Equal(t, "-lsqlite3.47", cfg.Toolchain.Libs)
	assert.Equal(t, "/opt/sqlite/include", cfg.Toolchain.Headers)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harness.yaml")
	data := "toolchain:\n  headers: /usr/local/include\nbuild:\n  jobs: 3\nwatch:\n  debounce: 1s\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/include", cfg.Toolchain.Headers)
	assert.Equal(t, 3, cfg.Build.Jobs)
	assert.Equal(t, 3, cfg.Jobs())
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestApplyOverride(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.NoError(t, cfg.ApplyOverride("V", "yes"))
	require.NoError(t, cfg.ApplyOverride("CFLAGS", "-std=c99 -Wall -MMD"))
	require.NoError(t, cfg.ApplyOverride("JOBS", "8"))

	assert.Equal(t, "yes", cfg.Build.Verbose)
	assert.Equal(t, "-std=c99 -Wall -MMD", cfg.Toolchain.CFlags)
	assert.Equal(t, 8, cfg.Build.Jobs)

	assert.Error(t, cfg.ApplyOverride("JOBS", "many"))
	assert.Error(t, cfg.ApplyOverride("NOPE", "x"))
}

func TestValidateRequiresHeadersForBuilds(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.ErrorContains(t, cfg.Validate(true), "HEADERS")
	assert.NoError(t, cfg.Validate(false), "clean does not need an include path")

	cfg.Toolchain.Headers = "/usr/include"
	assert.NoError(t, cfg.Validate(true))
}
