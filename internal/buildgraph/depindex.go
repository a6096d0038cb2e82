package buildgraph

import (
	"path/filepath"
	"sort"

	radix "github.com/armon/go-radix"

	"sqlharness/internal/depfile"
)

// DepIndex is a reverse index from header path to the stems of the units
// whose depfiles record it. Backed by a radix tree so watch mode can answer
// "which units does anything under this directory invalidate" with a prefix
// walk.
type DepIndex struct {
	tree *radix.Tree
}

// NewDepIndex creates an empty index.
func NewDepIndex() *DepIndex {
	return &DepIndex{tree: radix.New()}
}

// BuildDepIndex loads every unit's depfile and indexes its recorded headers.
// Units without a depfile contribute nothing.
func BuildDepIndex(g *Graph) (*DepIndex, error) {
	ix := NewDepIndex()
	for _, u := range g.units {
		headers, err := depfile.Prereqs(g.DepfilePath(u), u.Object())
		if err != nil {
			return nil, err
		}
		for _, h := range headers {
			ix.Add(g.resolve(h), u.Stem)
		}
	}
	return ix, nil
}

// Add records that the unit with the given stem depends on header.
func (ix *DepIndex) Add(header, stem string) {
	key := filepath.Clean(header)
	stems := map[string]struct{}{stem: {}}
	if v, ok := ix.tree.Get(key); ok {
		stems = v.(map[string]struct{})
		stems[stem] = struct{}{}
	}
	ix.tree.Insert(key, stems)
}

// Dependents returns the stems recording the exact header path, sorted.
func (ix *DepIndex) Dependents(header string) []string {
	v, ok := ix.tree.Get(filepath.Clean(header))
	if !ok {
		return nil
	}
	return sortedStems(v.(map[string]struct{}))
}

// DependentsUnder returns the stems recording any header under prefix.
func (ix *DepIndex) DependentsUnder(prefix string) []string {
	merged := make(map[string]struct{})
	ix.tree.WalkPrefix(filepath.Clean(prefix), func(_ string, v interface{}) bool {
		for stem := range v.(map[string]struct{}) {
			merged[stem] = struct{}{}
		}
		return false
	})
	return sortedStems(merged)
}

// Len returns the number of indexed headers.
func (ix *DepIndex) Len() int { return ix.tree.Len() }

func sortedStems(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	stems := make([]string, 0, len(set))
	for s := range set {
		stems = append(stems, s)
	}
	sort.Strings(stems)
	return stems
}
