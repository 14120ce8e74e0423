package beast

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/op/go-logging"
)

func init() {
	logging.SetLevel(logging.ERROR, "beast")
}

const (
	log2 = `# BEAST v2.6.7
# Generated Thu Jan 01 2020
Sample	posterior	bPopSizes.1	bPopSizes.2	bPopSizes.3	bGroupSizes.1	bGroupSizes.2	bGroupSizes.3
0	-100.5	10.0	20.0	30.0	1	1	2
1000	-99.1	11.0	21.0	31.0	2.0	1	1
End;
`
	log1 = `state	skyline.popSize1	skyline.popSize2	skyline.groupSize1	skyline.groupSize2
0	1.5	2.5	3	1
`
	// version 1 naming, read as version 2
	logNoPop = `Sample	posterior	skyline.popSize1	bGroupSizes.1
0	-1	2	3
`

	trees2 = `#NEXUS

Begin taxa;
	Dimensions ntax=5;
End;
Begin trees;
	Translate
		   1 a,
		   2 b
;
tree STATE_0 = ((1:1.0,2:1.0):1.0,(3:0.5,(4:0.2,5:0.2):0.3):1.5):0.0;
tree STATE_1000 [&lnP=-99.1,posterior=-99.1] = [&R] ((1:1.0,2:1.0):1.0,(3:0.5,(4:0.2,5:0.2):0.3):1.5):0.0;
End;
`
)

func TestReadLog(tst *testing.T) {
	l, err := ReadLog(strings.NewReader(log2), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	if l.NRows() != 2 {
		tst.Error("Expected 2 rows, got", l.NRows())
	}
	if len(l.GroupSizes) != 3 || l.GroupSizes[0] != 5 || l.GroupSizes[2] != 7 {
		tst.Error("Wrong group size columns:", l.GroupSizes)
	}
	if len(l.PopSizes) != 3 || l.PopSizes[0] != 2 || l.PopSizes[2] != 4 {
		tst.Error("Wrong population size columns:", l.PopSizes)
	}

	s, err := l.Row(0)
	if err != nil {
		tst.Fatal("Error reading row:", err)
	}
	if s.State != "0" {
		tst.Error("Wrong state:", s.State)
	}
	// reversed into past-to-present order
	if s.GroupSizes[0] != 2 || s.GroupSizes[1] != 1 || s.GroupSizes[2] != 1 {
		tst.Error("Wrong group sizes:", s.GroupSizes)
	}
	if s.PopulationSizes[0] != 30 || s.PopulationSizes[2] != 10 {
		tst.Error("Wrong population sizes:", s.PopulationSizes)
	}

	s, err = l.Row(1)
	if err != nil {
		tst.Fatal("Error reading row:", err)
	}
	if s.GroupSizes[2] != 2 {
		tst.Error("Group size 2.0 should be read as 2, got", s.GroupSizes[2])
	}
}

func TestReadLogV1(tst *testing.T) {
	l, err := ReadLog(strings.NewReader(log1), V1)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	s, err := l.Row(0)
	if err != nil {
		tst.Fatal("Error reading row:", err)
	}
	if s.GroupSizes[0] != 1 || s.GroupSizes[1] != 3 {
		tst.Error("Wrong group sizes:", s.GroupSizes)
	}
	if s.PopulationSizes[0] != 2.5 || s.PopulationSizes[1] != 1.5 {
		tst.Error("Wrong population sizes:", s.PopulationSizes)
	}
}

func TestReadLogWrongVersion(tst *testing.T) {
	// v1 log read as v2
	_, err := ReadLog(strings.NewReader(log1), V2)
	if !errors.Is(err, ErrFormat) {
		tst.Error("Expected format error, got", err)
	}
	tst.Log(err)

	_, err = ReadLog(strings.NewReader(logNoPop), V2)
	if !errors.Is(err, ErrFormat) {
		tst.Error("Expected format error, got", err)
	}
	if err != nil && !strings.Contains(err.Error(), "PopSizes") {
		tst.Error("Error should name the expected column:", err)
	}

	_, err = ReadLog(strings.NewReader(log2), Version("3"))
	if err == nil {
		tst.Error("Expected error for unknown version")
	}
}

func TestRowErrors(tst *testing.T) {
	bad := "Sample\tbPopSizes.1\tbGroupSizes.1\n0\tx\t1\n1\t2\n"
	l, err := ReadLog(strings.NewReader(bad), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	if _, err := l.Row(0); !errors.Is(err, ErrFormat) {
		tst.Error("Expected format error for non-numeric field, got", err)
	}
	if _, err := l.Row(1); !errors.Is(err, ErrFormat) {
		tst.Error("Expected format error for short row, got", err)
	}
	if _, err := l.Row(2); !errors.Is(err, ErrAlignment) {
		tst.Error("Expected alignment error for missing row, got", err)
	}
}

func TestStripTreePrefix(tst *testing.T) {
	for line, exp := range map[string]string{
		"tree STATE_0 = ((a:1,b:1):1,c:2);":                 "((a:1,b:1):1,c:2);",
		"tree STATE_0 [&lnP=-1.5] = [&R] ((a:1,b:1):1,c:2);": "[&R] ((a:1,b:1):1,c:2);",
		"tree ((a:1,b:1):1,c:2);":                           "((a:1,b:1):1,c:2);",
	} {
		if got := StripTreePrefix(line); got != exp {
			tst.Errorf("%q: expected %q, got %q", line, exp, got)
		}
	}
}

func TestReader(tst *testing.T) {
	l, err := ReadLog(strings.NewReader(log2), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	r := NewReader(l, strings.NewReader(trees2), 0)
	var samples []*PosteriorSample
	for {
		s, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			tst.Fatal("Error reading samples:", err)
		}
		samples = append(samples, s)
	}
	if len(samples) != 2 {
		tst.Fatal("Expected 2 samples, got", len(samples))
	}
	if samples[1].State != "1000" || samples[1].Label() != "Sample2" {
		tst.Error("Wrong second sample:", samples[1].State, samples[1].Label())
	}
	t, err := samples[1].Tree()
	if err != nil {
		tst.Fatal("Error parsing tree:", err)
	}
	if t.NLeaves() != 5 || t.NInternal() != 4 {
		tst.Error("Wrong tree:", t)
	}
}

func TestReaderBurnin(tst *testing.T) {
	l, err := ReadLog(strings.NewReader(log2), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	r := NewReader(l, strings.NewReader(trees2), 1)
	s, err := r.Next()
	if err != nil {
		tst.Fatal("Error reading samples:", err)
	}
	if s.Index != 1 || s.State != "1000" {
		tst.Error("Burn-in sample was not skipped:", s.Index, s.State)
	}
	if _, err := r.Next(); err != io.EOF {
		tst.Error("Expected EOF, got", err)
	}
}

func TestReaderMisaligned(tst *testing.T) {
	oneRow := "Sample\tbPopSizes.1\tbGroupSizes.1\n0\t1\t4\n"
	l, err := ReadLog(strings.NewReader(oneRow), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	r := NewReader(l, strings.NewReader(trees2), 0)
	if _, err := r.Next(); err != nil {
		tst.Fatal("Error reading first sample:", err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrAlignment) {
		tst.Error("Expected alignment error, got", err)
	}
}

func TestCheck(tst *testing.T) {
	n, err := CountTrees(strings.NewReader(trees2))
	if err != nil {
		tst.Fatal("Error counting trees:", err)
	}
	if n != 2 {
		tst.Fatal("Expected 2 trees, got", n)
	}

	l, err := ReadLog(strings.NewReader(log2), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	if err := l.Check(n); err != nil {
		tst.Error("Unexpected error:", err)
	}
	if err := l.Check(n + 1); !errors.Is(err, ErrAlignment) {
		tst.Error("Expected alignment error, got", err)
	}

	bad := "Sample\tbPopSizes.1\tbGroupSizes.1\n0\t1\t4\n1\tx\t4\n"
	l, err = ReadLog(strings.NewReader(bad), V2)
	if err != nil {
		tst.Fatal("Error reading log:", err)
	}
	if err := l.Check(1); err != nil {
		tst.Error("Unpaired rows should not be parsed, got", err)
	}
	if err := l.Check(2); !errors.Is(err, ErrFormat) {
		tst.Error("Expected format error, got", err)
	}
}
