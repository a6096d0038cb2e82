package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("/* "+n+" */"), 0o644))
	}
}

func TestLoadDefaultsAndDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "main.c", "test-aux.c", "test-close.c", "test-open.c", "test-prepare.c", "helper.c")

	m, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite3-tests", m.Target)
	assert.Equal(t, "main.c", m.Driver)
	assert.Equal(t, []string{"test-aux.c", "test-close.c", "test-open.c", "test-prepare.c"}, m.Tests)
	assert.Equal(t, []string{"main.c", "test-aux.c", "test-close.c", "test-open.c", "test-prepare.c"}, m.Sources())
}

func TestLoadHonorsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "main.c", "test-open.c", "test-wip.c")
	require.NoError(t, os.WriteFile(filepath.Join(dir, IgnoreFileName), []byte("test-wip.c\n"), 0o644))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"test-open.c"}, m.Tests)
}

func TestLoadExplicitManifest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "driver.c", "test-open.c", "test-close.c")
	data := `{"target": "db-tests", "driver": "driver.c", "tests": ["test-open.c", "test-close.c"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "db-tests", m.Target)
	assert.Equal(t, "driver.c", m.Driver)
	assert.Equal(t, []string{"driver.c", "test-close.c", "test-open.c"}, m.Sources())
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"target with path separator": `{"target": "bin/tests"}`,
		"driver without .c suffix":   `{"driver": "main.txt"}`,
		"duplicate tests":            `{"tests": ["test-a.c", "test-a.c"]}`,
		"unknown field":              `{"sources": ["main.c"]}`,
		"not json":                   `target = tests`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, "main.c", "test-a.c")
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644))

			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresDriverAndTests(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "test-open.c")
	_, err := Load(dir)
	assert.ErrorContains(t, err, "driver")

	empty := t.TempDir()
	writeFiles(t, empty, "main.c")
	_, err = Load(empty)
	assert.ErrorContains(t, err, "no test sources")
}

func TestLoadMissingListedTest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "main.c")
	data := `{"tests": ["test-gone.c"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "test-gone.c")
}
