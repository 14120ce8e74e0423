package beast

import (
	"bufio"
	"io"
	"strings"
)

// maxTreeLine is the longest tree line accepted.
const maxTreeLine = 256 * 1024 * 1024

// TreeScanner iterates over the tree lines of a BEAST trees file.
// Only lines starting with "tree" are considered, everything else
// (NEXUS blocks, translate tables) is skipped.
type TreeScanner struct {
	scanner *bufio.Scanner
	newick  string
	n       int
}

// NewTreeScanner creates a new TreeScanner.
func NewTreeScanner(rd io.Reader) *TreeScanner {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxTreeLine)
	return &TreeScanner{scanner: scanner}
}

// Scan advances to the next tree line.
func (s *TreeScanner) Scan() bool {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "tree") {
			continue
		}
		s.newick = StripTreePrefix(strings.TrimSpace(line))
		s.n++
		return true
	}
	return false
}

// Newick returns the current tree without the "tree NAME =" prefix.
func (s *TreeScanner) Newick() string {
	return s.newick
}

// N returns the number of tree lines scanned so far.
func (s *TreeScanner) N() int {
	return s.n
}

func (s *TreeScanner) Err() error {
	return s.scanner.Err()
}

// CountTrees returns the number of tree lines in rd.
func CountTrees(rd io.Reader) (int, error) {
	s := NewTreeScanner(rd)
	for s.Scan() {
	}
	return s.N(), s.Err()
}

// StripTreePrefix removes "tree STATE_0 [&lnP=...] =" from a tree
// line. The prefix ends at the first '=' outside of a comment; if
// there is none, everything up to the last space is removed.
func StripTreePrefix(line string) string {
	depth := 0
	for i, c := range line {
		switch c {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth == 0 {
				return strings.TrimSpace(line[i+1:])
			}
		}
	}
	if i := strings.LastIndexByte(line, ' '); i >= 0 {
		return line[i+1:]
	}
	return line
}
