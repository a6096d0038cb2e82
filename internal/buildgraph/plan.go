package buildgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring"

	"sqlharness/internal/depfile"
)

// Plan is the outcome of a staleness sweep: which units must be recompiled
// and whether the executable must be relinked.
//
// Stale holds canonical unit indices. A derived artifact is stale iff it is
// missing, or older than its source, or older than any header its depfile
// records; the executable additionally goes stale whenever any object does.
type Plan struct {
	Stale  *roaring.Bitmap
	Relink bool
}

// Fresh reports whether nothing needs to run.
func (p *Plan) Fresh() bool { return p.Stale.IsEmpty() && !p.Relink }

// StaleUnits resolves the bitmap back to units in canonical order.
func (p *Plan) StaleUnits(g *Graph) []Unit {
	units := make([]Unit, 0, p.Stale.GetCardinality())
	it := p.Stale.Iterator()
	for it.HasNext() {
		units = append(units, g.units[it.Next()])
	}
	return units
}

// Plan sweeps the filesystem and computes the incremental work set.
func (g *Graph) Plan() (*Plan, error) {
	p := &Plan{Stale: roaring.New()}

	exeTime, exeExists, err := mtime(g.TargetPath())
	if err != nil {
		return nil, err
	}
	if !exeExists {
		p.Relink = true
	}

	for i, u := range g.units {
		stale, objTime, err := g.unitStale(u)
		if err != nil {
			return nil, err
		}
		if stale {
			p.Stale.Add(uint32(i))
			p.Relink = true
			continue
		}
		if exeExists && objTime.After(exeTime) {
			p.Relink = true
		}
	}

	return p, nil
}

// unitStale decides one compile node. The returned time is the object's
// mtime and is only meaningful when the unit is fresh.
func (g *Graph) unitStale(u Unit) (bool, time.Time, error) {
	srcTime, srcExists, err := mtime(g.SourcePath(u))
	if err != nil {
		return false, time.Time{}, err
	}
	if !srcExists {
		return false, time.Time{}, fmt.Errorf("source unit %s does not exist", u.Source)
	}

	objTime, objExists, err := mtime(g.ObjectPath(u))
	if err != nil {
		return false, time.Time{}, err
	}
	if !objExists || srcTime.After(objTime) {
		return true, time.Time{}, nil
	}

	headers, err := depfile.Prereqs(g.DepfilePath(u), u.Object())
	if err != nil {
		return false, time.Time{}, err
	}
	for _, h := range headers {
		hTime, hExists, err := mtime(g.resolve(h))
		if err != nil {
			return false, time.Time{}, err
		}
		// A recorded header that vanished forces a recompile so the
		// failure (or the new include resolution) is surfaced by the
		// compiler rather than silently ignored.
		if !hExists || hTime.After(objTime) {
			return true, time.Time{}, nil
		}
	}

	return false, objTime, nil
}

// resolve interprets a depfile path the way the compiler wrote it: relative
// paths are relative to the build root.
func (g *Graph) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(g.dir, path)
}

func mtime(path string) (time.Time, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.ModTime(), true, nil
}
