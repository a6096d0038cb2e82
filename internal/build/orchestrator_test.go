package build

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlharness/internal/config"
	"sqlharness/internal/logging"
	"sqlharness/internal/manifest"
)

var canonicalSources = []string{"main.c", "test-aux.c", "test-close.c", "test-open.c", "test-prepare.c"}

// ccStub mimics a compiler: in compile mode it produces the object and a
// depfile recording the source; in link mode it produces a runnable target.
// Every invocation appends one line to cc.log so tests can count rebuilds.
const ccStub = `out= dep= src= mode=link prev=
for a in "$@"; do
  case "$prev" in
    -o) out="$a" ;;
    -MF) dep="$a" ;;
    -c) src="$a"; mode=compile ;;
  esac
  prev="$a"
done
echo "$mode ${src:-$out}" >> cc.log
if [ "$mode" = compile ]; then
  : > "$out"
  [ -n "$dep" ] && printf '%s: %s\n' "$(basename "$out")" "$src" > "$dep"
else
  printf '#!/bin/sh\nexit %s\n' "${SUITE_EXIT:-0}" > "$out"
  chmod +x "$out"
fi
exit 0
`

type harness struct {
	t    *testing.T
	dir  string
	orch *Orchestrator
	out  *bytes.Buffer
}

func newHarness(t *testing.T, verbose, stub string) *harness {
	t.Helper()
	dir := t.TempDir()

	for _, src := range canonicalSources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, src), []byte("/* "+src+" */"), 0o644))
	}
	cc := filepath.Join(dir, "cc-stub")
	require.NoError(t, os.WriteFile(cc, []byte("#!/bin/sh\n"+stub), 0o755))

	cfg := &config.Config{
		Toolchain: config.ToolchainConfig{
			CC:      cc,
			CFlags:  "-std=c11 -Wall -Wextra -MMD -MP",
			Headers: filepath.Join(dir, "hdr"),
			Libs:    "-lsqlite3",
		},
		Build: config.BuildConfig{Dir: dir, Jobs: 2, Verbose: verbose},
	}

	man, err := manifest.Load(dir)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	log := logging.New(verbose, out, io.Discard)
	return &harness{t: t, dir: dir, orch: New(cfg, man, log), out: out}
}

func (h *harness) ccLog() []string {
	data, err := os.ReadFile(filepath.Join(h.dir, "cc.log"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(h.t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	sort.Strings(lines)
	return lines
}

func (h *harness) resetCCLog() {
	os.Remove(filepath.Join(h.dir, "cc.log"))
}

func (h *harness) touch(name string) {
	future := time.Now().Add(time.Hour)
	require.NoError(h.t, os.Chtimes(filepath.Join(h.dir, name), future, future))
}

func (h *harness) exists(name string) bool {
	_, err := os.Stat(filepath.Join(h.dir, name))
	return err == nil
}

func TestBuildFromCleanCheckout(t *testing.T) {
	h := newHarness(t, "", ccStub)
	require.NoError(t, h.orch.Build(context.Background()))

	for _, stem := range []string{"main", "test-aux", "test-close", "test-open", "test-prepare"} {
		assert.True(t, h.exists(stem+".o"), "missing object %s.o", stem)
		assert.True(t, h.exists(stem+".d"), "missing depfile %s.d", stem)
	}
	assert.True(t, h.exists("sqlite3-tests"))

	assert.Equal(t, []string{
		"compile main.c",
		"compile test-aux.c",
		"compile test-close.c",
		"compile test-open.c",
		"compile test-prepare.c",
		"link sqlite3-tests",
	}, h.ccLog())
}

func TestBuildIsIncremental(t *testing.T) {
	h := newHarness(t, "", ccStub)
	require.NoError(t, h.orch.Build(context.Background()))
	h.resetCCLog()

	h.touch("test-open.c")
	require.NoError(t, h.orch.Build(context.Background()))

	assert.Equal(t, []string{"compile test-open.c", "link sqlite3-tests"}, h.ccLog())
}

func TestBuildUpToDateRunsNothing(t *testing.T) {
	h := newHarness(t, "", ccStub)
	require.NoError(t, h.orch.Build(context.Background()))
	h.resetCCLog()

	require.NoError(t, h.orch.Build(context.Background()))
	assert.Empty(t, h.ccLog())
}

func TestCleanThenBuildLeavesNoStaleArtifacts(t *testing.T) {
	h := newHarness(t, "", ccStub)
	require.NoError(t, h.orch.Build(context.Background()))

	require.NoError(t, h.orch.Clean(context.Background()))
	for _, stem := range []string{"main", "test-aux", "test-close", "test-open", "test-prepare"} {
		assert.False(t, h.exists(stem+".o"))
		assert.False(t, h.exists(stem+".d"))
	}
	assert.False(t, h.exists("sqlite3-tests"))

	// Idempotent when artifacts are already absent.
	require.NoError(t, h.orch.Clean(context.Background()))

	h.resetCCLog()
	require.NoError(t, h.orch.Build(context.Background()))
	assert.Len(t, h.ccLog(), 6, "clean checkout rebuilds everything")
}

func TestQuietModePrintsStepLabels(t *testing.T) {
	h := newHarness(t, "", ccStub)
	require.NoError(t, h.orch.Build(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "CC    main.c")
	assert.Contains(t, out, "LINK  sqlite3-tests")
	assert.NotContains(t, out, "cc-stub", "quiet mode suppresses command lines")
}

func TestVerboseModeEchoesCommandLines(t *testing.T) {
	h := newHarness(t, "1", ccStub)
	require.NoError(t, h.orch.Build(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "cc-stub")
	assert.Contains(t, out, "-MF test-open.d -c test-open.c -o test-open.o")
	assert.NotContains(t, out, "CC    ")
}

func TestCompileFailureHaltsBeforeLink(t *testing.T) {
	failing := `prev=
for a in "$@"; do
  [ "$prev" = -c ] && { echo "compile $a" >> cc.log; echo "$a: syntax error" >&2; exit 1; }
  prev="$a"
done
echo "link" >> cc.log
exit 0
`
	h := newHarness(t, "", failing)

	err := h.orch.Build(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "compiling")

	for _, line := range h.ccLog() {
		assert.NotEqual(t, "link", line, "link stage must not run after a failed compile")
	}
	assert.False(t, h.exists("sqlite3-tests"))
	assert.Contains(t, h.out.String(), "syntax error", "compiler diagnostics pass through unmodified")
}
