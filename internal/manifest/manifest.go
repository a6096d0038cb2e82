// Package manifest describes the test project being built: the target
// executable, the driver source, and the test-unit sources.
//
// A project may carry a harness.json manifest; when absent, the canonical
// layout is assumed (driver main.c, every test-*.c in the project root,
// target sqlite3-tests). Manifest files are validated against a JSON schema
// before use, and source discovery honors an optional .harnessignore file.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

const (
	// FileName is the manifest file looked up in the project root.
	FileName = "harness.json"

	// IgnoreFileName filters discovered test sources.
	IgnoreFileName = ".harnessignore"

	// DefaultTarget is the executable produced when the manifest names none.
	DefaultTarget = "sqlite3-tests"

	// DefaultDriver is the driver source compiled into every build.
	DefaultDriver = "main.c"
)

// Manifest describes one test project.
type Manifest struct {
	Target string   `json:"target"`
	Driver string   `json:"driver"`
	Tests  []string `json:"tests"`
}

// Load reads, validates and resolves the manifest for a project directory.
// A missing manifest file is not an error; defaults and discovery apply.
func Load(dir string) (*Manifest, error) {
	m := &Manifest{}

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := validate(data); err != nil {
			return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
		}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	if m.Target == "" {
		m.Target = DefaultTarget
	}
	if m.Driver == "" {
		m.Driver = DefaultDriver
	}
	if len(m.Tests) == 0 {
		tests, err := discoverTests(dir)
		if err != nil {
			return nil, err
		}
		m.Tests = tests
	}
	if len(m.Tests) == 0 {
		return nil, fmt.Errorf("no test sources in %s: expected test-*.c or a manifest listing them", dir)
	}

	if _, err := os.Stat(filepath.Join(dir, m.Driver)); err != nil {
		return nil, fmt.Errorf("driver source %s: %w", m.Driver, err)
	}
	for _, t := range m.Tests {
		if _, err := os.Stat(filepath.Join(dir, t)); err != nil {
			return nil, fmt.Errorf("test source %s: %w", t, err)
		}
	}

	return m, nil
}

// Sources returns the driver followed by the test units, sorted.
func (m *Manifest) Sources() []string {
	srcs := make([]string, 0, len(m.Tests)+1)
	srcs = append(srcs, m.Driver)
	srcs = append(srcs, m.Tests...)
	sort.Strings(srcs[1:])
	return srcs
}

// discoverTests scans dir for test-*.c sources, filtered through
// .harnessignore when present.
func discoverTests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	var matcher *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, IgnoreFileName)); err == nil {
		matcher = gi
	}

	var tests []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "test-") || !strings.HasSuffix(name, ".c") {
			continue
		}
		if matcher != nil && matcher.MatchesPath(name) {
			continue
		}
		tests = append(tests, name)
	}
	sort.Strings(tests)
	return tests, nil
}
