package history

import (
	"context"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises recorded durations for one action.
type Stats struct {
	Count    int
	MeanMs   float64
	StdDevMs float64
}

// Stats computes duration statistics for an action; an empty action covers
// every recorded action.
func (s *Store) Stats(ctx context.Context, action string) (*Stats, error) {
	durations, err := s.Durations(ctx, action)
	if err != nil {
		return nil, err
	}
	if len(durations) == 0 {
		return &Stats{}, nil
	}

	st := &Stats{
		Count:  len(durations),
		MeanMs: stat.Mean(durations, nil),
	}
	if len(durations) > 1 {
		st.StdDevMs = stat.StdDev(durations, nil)
	}
	return st, nil
}
