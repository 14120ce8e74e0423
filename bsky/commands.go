package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"bitbucket.org/Davydov/bsky/beast"
	"bitbucket.org/Davydov/bsky/skyline"
	"bitbucket.org/Davydov/bsky/skyplot"
)

// execute runs the command of cfg. Tables without an output file and
// the printed proportions go to stdout.
func execute(cfg *config, stdout io.Writer) (summary *RunSummary, err error) {
	startTime := time.Now()
	summary = &RunSummary{
		Command:  cfg.Command,
		NThreads: cfg.NThreads,
	}

	// the log header is checked before any tree is read
	logFile, err := os.Open(cfg.Log)
	if err != nil {
		return nil, err
	}
	l, err := beast.ReadLog(logFile, cfg.Version)
	logFile.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Log, err)
	}
	log.Infof("Read %d log rows with %d skyline groups", l.NRows(), len(l.GroupSizes))

	treesFile, err := os.Open(cfg.Trees)
	if err != nil {
		return nil, err
	}
	defer treesFile.Close()
	if st, err := treesFile.Stat(); err == nil {
		log.Infof("Reading trees from %s (%s)", cfg.Trees, humanize.Bytes(uint64(st.Size())))
	}
	// trees and rows are paired before anything is written
	nTrees, err := beast.CountTrees(treesFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Trees, err)
	}
	if err := l.Check(nTrees); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Trees, err)
	}
	if _, err := treesFile.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	src := beast.NewReader(l, treesFile, cfg.Burnin)

	p, err := newPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening checkpoint: %w", err)
	}
	defer func() {
		if cerr := p.close(); cerr != nil {
			log.Error("Error saving checkpoint:", cerr)
		}
	}()

	switch cfg.Command {
	case "windows":
		err = runWindows(cfg, p, src, stdout, summary)
	case "support":
		err = runSupport(cfg, p, src, stdout, summary)
	case "increase":
		err = runIncrease(cfg, p, src, stdout, summary)
	default:
		err = fmt.Errorf("unknown command: %s", cfg.Command)
	}
	if err != nil {
		return nil, err
	}

	deltaT := time.Since(startTime)
	log.Noticef("Running time: %v", deltaT)
	summary.Time = deltaT.Seconds()
	return summary, nil
}

// output stages a table in a temporary file. The table replaces
// the output file, or is copied to stdout, only on commit, so a failed
// run leaves no partial table behind.
type output struct {
	*os.File
	fn     string
	stdout io.Writer
}

// createOutput creates the staging file for fn, or for stdout if fn
// is empty.
func createOutput(fn string, stdout io.Writer) (*output, error) {
	dir, pattern := "", "bsky-*"
	if fn != "" {
		dir, pattern = filepath.Dir(fn), "."+filepath.Base(fn)+".*"
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &output{File: f, fn: fn, stdout: stdout}, nil
}

// commit moves the table to its destination.
func (o *output) commit() error {
	if o.fn != "" {
		if err := o.Chmod(0644); err != nil {
			return err
		}
		if err := o.Close(); err != nil {
			return err
		}
		return os.Rename(o.Name(), o.fn)
	}
	if _, err := o.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(o.stdout, o.File)
	return err
}

// discard removes the staging file. It is a no-op after a successful
// commit to a file.
func (o *output) discard() {
	o.Close()
	os.Remove(o.Name())
}

// formatDate formats a calendar date for output tables.
func formatDate(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// newResult creates a result for the sample without analysis data.
func newResult(s *beast.PosteriorSample) *result {
	return &result{
		Index: s.Index,
		Label: s.Label(),
		State: s.State,
	}
}

// finish records the sample counts and reports an incomplete run.
func finish(p *pool, n int, interrupted bool, summary *RunSummary) {
	summary.Samples = n
	summary.Resumed = p.resumed
	summary.Interrupted = interrupted
	if p.resumed > 0 {
		log.Noticef("%d of %d samples were read from the checkpoint", p.resumed, n)
	}
	if interrupted {
		if p.db != nil {
			log.Warningf("Stopped after %d samples, run again with the same checkpoint to resume", n)
		} else {
			log.Warningf("Stopped after %d samples, the output is incomplete", n)
		}
	}
	log.Noticef("Analysed %s samples", humanize.Comma(int64(n)))
}

// runWindows writes the resampled skyline of every sample.
func runWindows(cfg *config, p *pool, src sampleSource, stdout io.Writer, summary *RunSummary) error {
	ws, err := skyline.Windows(cfg.D1, cfg.D2, cfg.Windows)
	if err != nil {
		return err
	}
	log.Infof("%d windows of width %v between %v and %v", len(ws), (cfg.D2-cfg.D1)/float64(len(ws)), cfg.D1, cfg.D2)

	out, err := createOutput(cfg.Out, stdout)
	if err != nil {
		return err
	}
	defer out.discard()
	w := bufio.NewWriter(out)

	w.WriteString("Sample")
	for _, win := range ws {
		w.WriteString("\t" + formatDate(win.Start))
	}
	w.WriteString("\n")

	var rows [][]skyline.Value
	analyze := func(s *beast.PosteriorSample) (*result, error) {
		sky, err := skyline.FromSample(s, cfg.Latest)
		if err != nil {
			return nil, err
		}
		r := newResult(s)
		r.Values = skyline.Resample(sky, ws)
		return r, nil
	}
	emit := func(r *result) error {
		if len(r.Values) != len(ws) {
			return fmt.Errorf("%s has %d windows instead of %d", r.Label, len(r.Values), len(ws))
		}
		w.WriteString(r.Label)
		for _, v := range r.Values {
			w.WriteString("\t" + v.String())
		}
		w.WriteString("\n")
		if cfg.Plot != "" {
			rows = append(rows, r.Values)
		}
		return nil
	}

	n, interrupted, err := p.run(src, analyze, emit)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}
	finish(p, n, interrupted, summary)

	if cfg.Plot != "" {
		summary.Band = skyline.Band(rows, len(ws))
		if err := skyplot.Draw(cfg.Plot, ws, summary.Band); err != nil {
			log.Error("Error drawing skyline plot:", err)
		} else {
			log.Noticef("Skyline plot saved to %s", cfg.Plot)
		}
	}
	return nil
}

// runSupport prints the proportion of samples with a change in the
// window of interest.
func runSupport(cfg *config, p *pool, src sampleSource, stdout io.Writer, summary *RunSummary) error {
	dir := cfg.direction()
	win := cfg.window()
	log.Infof("Looking for a %s of more than %v%% between %v and %v", dir, cfg.Percent, win.Start, win.End)

	var tally skyline.Tally
	analyze := func(s *beast.PosteriorSample) (*result, error) {
		sky, err := skyline.FromSample(s, cfg.Latest)
		if err != nil {
			return nil, err
		}
		r := newResult(s)
		r.Change = skyline.Support(sky, win, cfg.Percent, dir)
		return r, nil
	}
	emit := func(r *result) error {
		log.Debugf("%s (state %s): %s", r.Label, r.State, r.Change.Status)
		tally.Add(r.Change)
		return nil
	}

	n, interrupted, err := p.run(src, analyze, emit)
	if err != nil {
		return err
	}
	finish(p, n, interrupted, summary)

	if tally.NoCoverage > 0 {
		log.Infof("%d samples don't cover the window start", tally.NoCoverage)
	}
	fmt.Fprintf(stdout, "The proportion of trees with a population %s in the required window is %v\n", dir, tally.Proportion())
	summary.Tally = &tally
	summary.Proportion = tally.Proportion()
	return nil
}

// runIncrease writes the date of the first increase of every sample
// which has one and prints the proportion of such samples.
func runIncrease(cfg *config, p *pool, src sampleSource, stdout io.Writer, summary *RunSummary) error {
	from := cfg.origin()
	log.Infof("Looking for an increase of more than %v%% from the %s", cfg.Percent, from)

	out, err := createOutput(cfg.Out, stdout)
	if err != nil {
		return err
	}
	defer out.discard()
	w := bufio.NewWriter(out)
	w.WriteString("MCMC_state\tIncrease_date\n")

	var tally skyline.Tally
	var dates []float64
	analyze := func(s *beast.PosteriorSample) (*result, error) {
		sky, err := skyline.FromSample(s, cfg.Latest)
		if err != nil {
			return nil, err
		}
		r := newResult(s)
		r.Change = skyline.FirstIncrease(sky, cfg.Percent, from)
		return r, nil
	}
	emit := func(r *result) error {
		tally.Add(r.Change)
		if r.Change.Status == skyline.Changed {
			w.WriteString(r.State + "\t" + formatDate(r.Change.Date) + "\n")
			dates = append(dates, r.Change.Date)
		}
		return nil
	}

	n, interrupted, err := p.run(src, analyze, emit)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}
	finish(p, n, interrupted, summary)

	fmt.Fprintf(stdout, "Proportion of trees with an inferred increase in relative genetic diversity of %v%% "+
		"above baseline (0.0 is none, 1.0 is all trees): %v\n", cfg.Percent, tally.Proportion())
	summary.Tally = &tally
	summary.Proportion = tally.Proportion()
	if len(dates) > 0 {
		s := skyline.Summarize(dates)
		fmt.Fprintf(stdout, "Date of the increase: mean %v, median %v, 95%% interval %v-%v\n",
			formatDate(s.Mean), formatDate(s.Median), formatDate(s.Lower), formatDate(s.Upper))
		summary.IncreaseDate = &s
	}
	return nil
}
