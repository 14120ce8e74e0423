package beast

import (
	"fmt"
	"io"
	"strings"

	"bitbucket.org/Davydov/bsky/tree"
)

// PosteriorSample is one MCMC draw: a tree paired with the skyline
// parameters from the same state.
//
// GroupSizes and PopulationSizes are stored past-to-present, i.e.
// reversed with respect to the log column order.
type PosteriorSample struct {
	// Index is the zero-based position in the posterior (burn-in
	// included).
	Index int
	// State is the MCMC state label from the log.
	State string
	// Newick is the tree text.
	Newick string

	GroupSizes      []int
	PopulationSizes []float64
}

// Tree parses the sample tree.
func (s *PosteriorSample) Tree() (*tree.Tree, error) {
	t, err := tree.ParseNewick(strings.NewReader(s.Newick))
	if err != nil {
		return nil, fmt.Errorf("%w: tree %d (state %s): %v", ErrFormat, s.Index+1, s.State, err)
	}
	return t, nil
}

// Label returns the 1-based sample label used in output tables.
func (s *PosteriorSample) Label() string {
	return fmt.Sprintf("Sample%d", s.Index+1)
}

// Reader pairs trees with log rows.
type Reader struct {
	log    *Log
	trees  *TreeScanner
	burnin int
	i      int
	done   bool
}

// NewReader creates a new Reader. The first burnin samples are
// skipped.
func NewReader(l *Log, trees io.Reader, burnin int) *Reader {
	return &Reader{
		log:    l,
		trees:  NewTreeScanner(trees),
		burnin: burnin,
	}
}

// Next returns the next sample, or io.EOF after the last tree.
func (r *Reader) Next() (*PosteriorSample, error) {
	if r.done {
		return nil, io.EOF
	}
	for r.trees.Scan() {
		i := r.i
		r.i++
		if i >= r.log.NRows() {
			return nil, fmt.Errorf("%w: tree %d has no log row (%d rows)", ErrAlignment, i+1, r.log.NRows())
		}
		if i < r.burnin {
			continue
		}
		s, err := r.log.Row(i)
		if err != nil {
			return nil, err
		}
		s.Newick = r.trees.Newick()
		return s, nil
	}
	if err := r.trees.Err(); err != nil {
		return nil, err
	}
	r.done = true
	if r.i < r.log.NRows() {
		log.Warningf("%d trees for %d log rows, ignoring the remaining rows", r.i, r.log.NRows())
	}
	if r.burnin > 0 && r.i <= r.burnin {
		log.Warningf("Burn-in (%d) covers all %d trees", r.burnin, r.i)
	}
	return nil, io.EOF
}
