package main

import (
	"errors"
	"fmt"
	"os"

	"bitbucket.org/Davydov/bsky/beast"
	"bitbucket.org/Davydov/bsky/skyline"
)

// config stores the settings of one run. Exported fields without the
// "-" tag define the checkpoint key, so changing any of them starts
// a new set of results.
type config struct {
	Command string `json:"command"`

	Log        string `json:"log"`
	Trees      string `json:"trees"`
	LogStamp   string `json:"logStamp"`
	TreesStamp string `json:"treesStamp"`

	Latest  float64       `json:"latest"`
	Version beast.Version `json:"version"`
	Burnin  int           `json:"burnin"`

	// windows
	D1      float64 `json:"d1,omitempty"`
	D2      float64 `json:"d2,omitempty"`
	Windows int     `json:"windows,omitempty"`

	// support and increase
	Percent  float64 `json:"percent,omitempty"`
	Start    float64 `json:"start,omitempty"`
	End      float64 `json:"end,omitempty"`
	Decrease bool    `json:"decrease,omitempty"`
	From     string  `json:"from,omitempty"`

	Out               string  `json:"-"`
	Plot              string  `json:"-"`
	NThreads          int     `json:"-"`
	Report            int     `json:"-"`
	Checkpoint        string  `json:"-"`
	CheckpointSeconds float64 `json:"-"`
}

// newConfig creates a config for the selected command from the
// command line parameters (global variables).
func newConfig(command string) (*config, error) {
	cfg := &config{
		Command:           command,
		Latest:            *latest,
		Version:           beast.Version(*beastVersion),
		Burnin:            *burnin,
		NThreads:          *nThreads,
		Report:            *report,
		Checkpoint:        *checkpointF,
		CheckpointSeconds: *checkpointSeconds,
	}
	switch command {
	case windowsCmd.FullCommand():
		cfg.Log, cfg.Trees = *windowsLog, *windowsTrees
		cfg.D1, cfg.D2, cfg.Windows = *windowsD1, *windowsD2, *windowsN
		cfg.Out, cfg.Plot = *windowsOut, *windowsPlot
	case supportCmd.FullCommand():
		cfg.Log, cfg.Trees = *supportLog, *supportTrees
		cfg.Percent = *supportPercent
		cfg.Start, cfg.End = *supportStart, *supportEnd
		cfg.Decrease = *supportDecrease
	case increaseCmd.FullCommand():
		cfg.Log, cfg.Trees = *increaseLog, *increaseTrees
		cfg.Percent = *increasePercent
		cfg.From = *increaseFrom
		cfg.Out = *increaseOut
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, cfg.stamp()
}

// check validates parameters which the command line parser cannot.
func (cfg *config) check() error {
	if cfg.Burnin < 0 {
		return errors.New("burn-in should be non-negative")
	}
	if cfg.Percent < 0 {
		return errors.New("percentage threshold should be non-negative")
	}
	switch cfg.Command {
	case "windows":
		_, err := skyline.Windows(cfg.D1, cfg.D2, cfg.Windows)
		return err
	case "support":
		if cfg.End < cfg.Start {
			return fmt.Errorf("window end (%v) is before window start (%v)", cfg.End, cfg.Start)
		}
	}
	return nil
}

// stamp records size and modification time of the input files.
func (cfg *config) stamp() (err error) {
	if cfg.LogStamp, err = fileStamp(cfg.Log); err != nil {
		return err
	}
	cfg.TreesStamp, err = fileStamp(cfg.Trees)
	return err
}

func fileStamp(fn string) (string, error) {
	st, err := os.Stat(fn)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d", st.Size(), st.ModTime().UnixNano()), nil
}

// direction returns the direction of change for support.
func (cfg *config) direction() skyline.Direction {
	if cfg.Decrease {
		return skyline.Decrease
	}
	return skyline.Increase
}

// origin returns where the first increase search starts.
func (cfg *config) origin() skyline.Origin {
	if cfg.From == "root" {
		return skyline.FromRoot
	}
	return skyline.FromPresent
}

// window returns the window of interest for support.
func (cfg *config) window() skyline.Window {
	return skyline.Window{Start: cfg.Start, End: cfg.End}
}
