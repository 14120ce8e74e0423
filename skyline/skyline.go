// Package skyline reconstructs Bayesian skyline step functions from
// posterior samples, resamples them into time windows and detects
// changes in relative genetic diversity.
//
// All dates are calendar dates in decimal years. Skyline vectors are
// expected in past-to-present order (as returned by the beast
// package).
package skyline

import (
	"errors"
	"fmt"
	"sort"

	"bitbucket.org/Davydov/bsky/beast"
	"bitbucket.org/Davydov/bsky/tree"
)

// ErrAlignment is returned when the skyline groups don't fit the
// tree nodes.
var ErrAlignment = errors.New("skyline groups don't match the tree")

// Segment is an interval of constant population size.
type Segment struct {
	Start, End float64
	Size       float64
	// First is the date of the first coalescence of the group.
	First float64
}

// Skyline is a piecewise-constant population size function from the
// root date to the latest sample date. Segments are ordered from
// the past to the present and consecutive segments share a boundary.
type Skyline []Segment

// RootDate returns the calendar date of the tree root.
func RootDate(t *tree.Tree, latest float64) float64 {
	return latest - t.Height()
}

// NodeDates returns the calendar dates of all internal nodes of the
// tree, in ascending order. latest is the date of the most recent
// tip. A tree with a single tip has no internal nodes.
func NodeDates(t *tree.Tree, latest float64) []float64 {
	depths := t.Depths()
	height := t.Height()
	dates := make([]float64, 0, t.NInternal())
	for node := range t.NonTerminals() {
		dates = append(dates, latest-(height-depths[node.Id]))
	}
	sort.Float64s(dates)
	return dates
}

// Build creates the step function of one sample. groups[k] is the
// number of coalescent events in the k-th group and sizes[k] is its
// population size, both past-to-present. dates are the sorted
// internal node dates.
//
// The k-th group ends at the node with index sum(groups[:k+1])-1.
// The last segment always ends at latest.
func Build(groups []int, sizes []float64, dates []float64, root, latest float64) (Skyline, error) {
	if len(groups) != len(sizes) {
		return nil, fmt.Errorf("%w: %d groups, %d population sizes", ErrAlignment, len(groups), len(sizes))
	}
	if len(groups) == 0 || len(dates) == 0 {
		return nil, nil
	}

	s := make(Skyline, len(groups))
	start := root
	nodes := 0
	for k, g := range groups {
		if g <= 0 {
			return nil, fmt.Errorf("%w: group %d has size %d", ErrAlignment, k+1, g)
		}
		nodes += g
		if nodes > len(dates) {
			return nil, fmt.Errorf("%w: groups need %d nodes, tree has %d internal nodes",
				ErrAlignment, sum(groups), len(dates))
		}
		end := dates[nodes-1]
		if k == len(groups)-1 {
			end = latest
		}
		s[k] = Segment{Start: start, End: end, Size: sizes[k], First: dates[nodes-g]}
		start = end
	}
	return s, nil
}

func sum(v []int) (s int) {
	for _, x := range v {
		s += x
	}
	return
}

// FromSample builds the skyline of a posterior sample.
func FromSample(s *beast.PosteriorSample, latest float64) (Skyline, error) {
	t, err := s.Tree()
	if err != nil {
		return nil, err
	}
	sky, err := Build(s.GroupSizes, s.PopulationSizes, NodeDates(t, latest), RootDate(t, latest), latest)
	if err != nil {
		return nil, fmt.Errorf("sample %d (state %s): %w", s.Index+1, s.State, err)
	}
	return sky, nil
}

// Find returns the index of the first segment containing date, or -1.
func (s Skyline) Find(date float64) int {
	for i, seg := range s {
		if date >= seg.Start && date <= seg.End {
			return i
		}
	}
	return -1
}
