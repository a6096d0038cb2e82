// Package buildgraph models the harness build graph: one compile node per
// source unit feeding a single link node, with staleness decided by
// filesystem timestamps and compiler-recorded header dependencies.
package buildgraph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Unit is one compilable source unit.
type Unit struct {
	Source string // path relative to the build root
	Stem   string // base name without the .c suffix
}

// Object returns the unit's object file name.
func (u Unit) Object() string { return u.Stem + ".o" }

// Depfile returns the unit's dependency-metadata file name.
func (u Unit) Depfile() string { return u.Stem + ".d" }

// Graph is an immutable, validated build graph.
//
// It is safe for concurrent read access. Units are held in canonical
// (stem-sorted) order; every scheduling decision derives from that order so
// plans are deterministic.
type Graph struct {
	dir    string
	target string
	units  []Unit
	byStem map[string]int
}

// New builds and validates a Graph.
//
// Validation rejects an empty target, an empty source list, sources without
// a .c suffix, and duplicate stems (two sources that would collide on the
// same object file).
func New(dir, target string, sources []string) (*Graph, error) {
	if target == "" {
		return nil, fmt.Errorf("build graph: target name is required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("build graph: no source units")
	}

	byStem := make(map[string]int, len(sources))
	units := make([]Unit, 0, len(sources))
	for _, src := range sources {
		base := filepath.Base(src)
		if !strings.HasSuffix(base, ".c") {
			return nil, fmt.Errorf("build graph: %q is not a C source unit", src)
		}
		stem := strings.TrimSuffix(base, ".c")
		if prev, exists := byStem[stem]; exists {
			return nil, fmt.Errorf("build graph: %q and %q collide on object %s.o", units[prev].Source, src, stem)
		}
		byStem[stem] = len(units)
		units = append(units, Unit{Source: src, Stem: stem})
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Stem < units[j].Stem })
	for i, u := range units {
		byStem[u.Stem] = i
	}

	return &Graph{dir: dir, target: target, units: units, byStem: byStem}, nil
}

// Dir returns the build root.
func (g *Graph) Dir() string { return g.dir }

// Target returns the executable name.
func (g *Graph) Target() string { return g.target }

// TargetPath returns the executable path.
func (g *Graph) TargetPath() string { return filepath.Join(g.dir, g.target) }

// Units returns the units in canonical order.
func (g *Graph) Units() []Unit {
	cp := make([]Unit, len(g.units))
	copy(cp, g.units)
	return cp
}

// Unit looks up a unit by stem.
func (g *Graph) Unit(stem string) (Unit, bool) {
	i, ok := g.byStem[stem]
	if !ok {
		return Unit{}, false
	}
	return g.units[i], true
}

// SourcePath returns the absolute-or-root-relative path of the unit source.
func (g *Graph) SourcePath(u Unit) string { return filepath.Join(g.dir, u.Source) }

// ObjectPath returns the path of the unit's object artifact.
func (g *Graph) ObjectPath(u Unit) string { return filepath.Join(g.dir, u.Object()) }

// DepfilePath returns the path of the unit's dependency-metadata file.
func (g *Graph) DepfilePath(u Unit) string { return filepath.Join(g.dir, u.Depfile()) }

// ObjectPaths returns every object path in canonical order.
func (g *Graph) ObjectPaths() []string {
	paths := make([]string, len(g.units))
	for i, u := range g.units {
		paths[i] = g.ObjectPath(u)
	}
	return paths
}
