// Package beast reads the posterior output of a BEAST Bayesian
// skyline analysis: the tab-delimited parameter log and the trees
// file, and pairs them into posterior samples.
package beast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/op/go-logging"
)

// log is the package logger.
var log = logging.MustGetLogger("beast")

var (
	// ErrFormat is returned when the log or the trees can't be
	// interpreted.
	ErrFormat = errors.New("unrecognized BEAST output")
	// ErrAlignment is returned when log rows and trees don't pair up.
	ErrAlignment = errors.New("log and trees are not aligned")
)

// Version is the BEAST major version which produced the log. It
// defines the skyline column naming scheme.
type Version string

const (
	V1 Version = "1"
	V2 Version = "2"
)

// Columns returns the substrings identifying group size and
// population size columns.
func (v Version) Columns() (groups, sizes string, err error) {
	switch v {
	case V1:
		return "groupSize", "popSize", nil
	case V2:
		return "GroupSizes", "PopSizes", nil
	}
	return "", "", fmt.Errorf("unknown BEAST version %q (should be 1 or 2)", string(v))
}

// Schema maps skyline fields to log columns. It is resolved once per
// log from the header.
type Schema struct {
	// State is the column with the MCMC state.
	State int
	// GroupSizes are the group size columns in header order.
	GroupSizes []int
	// PopSizes are the population size columns in header order.
	PopSizes []int
}

// NewSchema resolves the schema from the header columns.
func NewSchema(header []string, v Version) (*Schema, error) {
	groups, sizes, err := v.Columns()
	if err != nil {
		return nil, err
	}
	s := &Schema{}
	for i, column := range header {
		if strings.Contains(column, groups) {
			s.GroupSizes = append(s.GroupSizes, i)
		}
		if strings.Contains(column, sizes) {
			s.PopSizes = append(s.PopSizes, i)
		}
	}
	if len(s.GroupSizes) == 0 || len(s.PopSizes) == 0 {
		return nil, fmt.Errorf("%w: no columns containing %q and %q for BEAST version %s "+
			"(found %d and %d), check the version",
			ErrFormat, groups, sizes, string(v), len(s.GroupSizes), len(s.PopSizes))
	}
	if len(s.GroupSizes) != len(s.PopSizes) {
		return nil, fmt.Errorf("%w: %d %q columns but %d %q columns",
			ErrFormat, len(s.GroupSizes), groups, len(s.PopSizes), sizes)
	}
	return s, nil
}

// Log is a BEAST parameter log with comments and end markers removed.
type Log struct {
	Version Version
	Header  []string
	*Schema
	rows []string
}

// skipLine is true for comments, block end markers and empty lines.
func skipLine(line string) bool {
	return line == "" || line[0] == '#' || line == "End;" || line == "end;"
}

// ReadLog reads a log and resolves the skyline columns. An error
// is returned if the header has no skyline columns for the version.
func ReadLog(rd io.Reader, v Version) (*Log, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	l := &Log{Version: v}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if skipLine(line) {
			continue
		}
		if l.Header == nil {
			l.Header = strings.Split(strings.TrimSpace(line), "\t")
			continue
		}
		l.rows = append(l.rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if l.Header == nil {
		return nil, fmt.Errorf("%w: log has no header", ErrFormat)
	}

	var err error
	l.Schema, err = NewSchema(l.Header, v)
	if err != nil {
		return nil, err
	}
	log.Debugf("Skyline columns: groups=%v, sizes=%v", l.GroupSizes, l.PopSizes)
	log.Infof("Read log with %d rows and %d skyline groups", len(l.rows), len(l.GroupSizes))
	return l, nil
}

// NRows returns the number of data rows.
func (l *Log) NRows() int {
	return len(l.rows)
}

// Check verifies that nTrees trees pair with the log rows and that
// every paired row parses. More trees than rows is an alignment error.
func (l *Log) Check(nTrees int) error {
	if nTrees > len(l.rows) {
		return fmt.Errorf("%w: %d trees for %d log rows", ErrAlignment, nTrees, len(l.rows))
	}
	for i := 0; i < nTrees; i++ {
		if _, err := l.Row(i); err != nil {
			return err
		}
	}
	return nil
}

// Row parses the i-th data row. Skyline vectors are reversed into
// past-to-present order.
func (l *Log) Row(i int) (*PosteriorSample, error) {
	if i < 0 || i >= len(l.rows) {
		return nil, fmt.Errorf("%w: no log row %d (%d rows)", ErrAlignment, i, len(l.rows))
	}
	fields := strings.Split(strings.TrimSpace(l.rows[i]), "\t")

	field := func(c int) (string, error) {
		if c >= len(fields) {
			return "", fmt.Errorf("%w: row %d has %d columns, expected %d",
				ErrFormat, i+1, len(fields), len(l.Header))
		}
		return fields[c], nil
	}

	s := &PosteriorSample{Index: i}
	var err error
	if s.State, err = field(l.State); err != nil {
		return nil, err
	}

	n := len(l.GroupSizes)
	s.GroupSizes = make([]int, n)
	s.PopulationSizes = make([]float64, n)
	for j := 0; j < n; j++ {
		// present-to-past in the log
		k := n - 1 - j

		f, err := field(l.GroupSizes[j])
		if err != nil {
			return nil, err
		}
		g, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d, %s=%q: %v", ErrFormat, i+1, l.Header[l.GroupSizes[j]], f, err)
		}
		s.GroupSizes[k] = int(g)

		f, err = field(l.PopSizes[j])
		if err != nil {
			return nil, err
		}
		s.PopulationSizes[k], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d, %s=%q: %v", ErrFormat, i+1, l.Header[l.PopSizes[j]], f, err)
		}
	}
	return s, nil
}
